package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/polyarb/internal/schema"
	"github.com/yanun0323/polyarb/internal/signer"
)

// RESTClient implements og.Submitter and og.Canceller against a
// Polymarket-style CLOB REST API. Order payloads are signed via the
// injected signer.Signer before submission; this package never
// constructs or holds private key material itself.
type RESTClient struct {
	BaseURL string
	HTTP    *http.Client
	Signer  signer.Signer
}

type submitRequest struct {
	Order     signer.SignedOrder `json:"order"`
	OwnerAddr string             `json:"owner"`
}

type submitResponse struct {
	OrderID  string `json:"orderID"`
	Status   string `json:"status"`
	ErrorMsg string `json:"errorMsg"`
}

// Submit signs and posts a new order intent.
func (c *RESTClient) Submit(ctx context.Context, intent schema.OrderIntent) (schema.OrderAck, error) {
	signed, err := c.Signer.Sign(ctx, intent)
	if err != nil {
		return schema.OrderAck{}, errors.Wrap(err, "sign order")
	}

	body, err := json.Marshal(submitRequest{Order: signed, OwnerAddr: c.Signer.Address()})
	if err != nil {
		return schema.OrderAck{}, errors.Wrap(err, "marshal submit request")
	}

	var resp submitResponse
	if err := c.doJSON(ctx, http.MethodPost, "/order", body, &resp); err != nil {
		return schema.OrderAck{}, err
	}
	if resp.ErrorMsg != "" {
		return schema.OrderAck{OrderID: intent.OrderID, Status: schema.OrderAckStatusRejected}, nil
	}
	return schema.OrderAck{OrderID: intent.OrderID, SymbolID: intent.SymbolID, Status: schema.OrderAckStatusAcked, Qty: intent.Qty, LeavesQty: intent.Qty}, nil
}

// Cancel posts a cancel request for a live order.
func (c *RESTClient) Cancel(ctx context.Context, orderID uint64) (schema.OrderAck, error) {
	var resp submitResponse
	body, _ := json.Marshal(map[string]uint64{"orderID": orderID})
	if err := c.doJSON(ctx, http.MethodDelete, "/order", body, &resp); err != nil {
		return schema.OrderAck{}, err
	}
	return schema.OrderAck{OrderID: orderID, Status: schema.OrderAckStatusCanceled}, nil
}

// getBookResponse is the REST counterpart of the "book" websocket
// frame: a full snapshot plus the seq it was taken at, so a resync
// caller can re-arm BookState's gap detection against a known point.
type getBookResponse struct {
	AssetID string     `json:"asset_id"`
	Seq     uint64     `json:"seq"`
	Bids    []rawLevel `json:"bids"`
	Asks    []rawLevel `json:"asks"`
}

// FetchBook implements core.BookFetcher: the REST resync path used
// whenever the incremental feed reports a sequence gap.
func (c *RESTClient) FetchBook(ctx context.Context, tokenID schema.TokenID) (schema.BookSnapshot, error) {
	var resp getBookResponse
	path := fmt.Sprintf("/book?token_id=%d", tokenID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return schema.BookSnapshot{}, err
	}

	bids, err := decodeLevels(resp.Bids)
	if err != nil {
		return schema.BookSnapshot{}, errors.Wrap(err, "decode bids")
	}
	asks, err := decodeLevels(resp.Asks)
	if err != nil {
		return schema.BookSnapshot{}, errors.Wrap(err, "decode asks")
	}
	return schema.BookSnapshot{TokenID: tokenID, Seq: resp.Seq, Bids: bids, Asks: asks}, nil
}

// GetFills backfills fills recorded since the given unix-nano
// timestamp, implementing the external interfaces contract's "GET
// /fills for backfill" — used once at startup to recover any fills
// missed while the process was down, before the live user stream
// takes over attributing exposure.
func (c *RESTClient) GetFills(ctx context.Context, sinceUnixNano int64) ([]schema.Fill, error) {
	var resp struct {
		Fills []rawUserMessage `json:"fills"`
	}
	path := fmt.Sprintf("/fills?since=%d", sinceUnixNano)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	fills := make([]schema.Fill, 0, len(resp.Fills))
	for _, msg := range resp.Fills {
		orderID, err := strconv.ParseUint(msg.OrderID, 10, 64)
		if err != nil {
			continue
		}
		tokenID, err := strconv.ParseUint(msg.AssetID, 10, 32)
		if err != nil {
			continue
		}
		price, err := decodeProbabilityBps(msg.Price)
		if err != nil {
			continue
		}
		size, err := decodeScaledUnits(msg.SizeMatch)
		if err != nil {
			continue
		}
		side := schema.OrderSideBuy
		if strings.EqualFold(msg.Side, "SELL") {
			side = schema.OrderSideSell
		}
		fills = append(fills, schema.Fill{OrderID: orderID, SymbolID: uint32(tokenID), Side: side, Price: price, Qty: size})
	}
	return fills, nil
}

func (c *RESTClient) doJSON(ctx context.Context, method, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return errors.Errorf("venue rest error: status=%d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
