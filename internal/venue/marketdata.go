package venue

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/polyarb/internal/schema"
)

// bpsScale mirrors the identity scaling in internal/edge: a decimal
// probability in [0,1] becomes an integer in [0,10000].
const bpsScale = 10000

// rawLevel is one side of a Polymarket-style book message: price and
// size travel as decimal strings, never as JSON numbers.
type rawLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// rawBookMessage is the "book" event frame on the market data channel.
// Other event types (last_trade_price, tick_size_change) land on the
// same socket and are ignored by DecodeBookSnapshot; price_change
// deltas are handled separately by DecodeBookUpdate.
type rawBookMessage struct {
	EventType string     `json:"event_type"`
	AssetID   string     `json:"asset_id"`
	Market    string     `json:"market"`
	Seq       uint64     `json:"seq"`
	Bids      []rawLevel `json:"bids"`
	Asks      []rawLevel `json:"asks"`
}

// DecodeBookSnapshot parses one market data frame into a book
// snapshot. ok is false for frames that are not a full book replacement
// (price_change deltas, trade prints) or that fail to parse; callers
// should simply skip those rather than treat them as errors, since a
// reconnecting feed sees a steady trickle of frame types it does not
// act on.
func DecodeBookSnapshot(raw []byte) (schema.BookSnapshot, bool) {
	var msg rawBookMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return schema.BookSnapshot{}, false
	}
	if msg.EventType != "book" || msg.AssetID == "" {
		return schema.BookSnapshot{}, false
	}

	tokenID, err := strconv.ParseUint(msg.AssetID, 10, 32)
	if err != nil {
		return schema.BookSnapshot{}, false
	}

	bids, err := decodeLevels(msg.Bids)
	if err != nil {
		return schema.BookSnapshot{}, false
	}
	asks, err := decodeLevels(msg.Asks)
	if err != nil {
		return schema.BookSnapshot{}, false
	}

	return schema.BookSnapshot{
		TokenID: schema.TokenID(tokenID),
		Seq:     msg.Seq,
		Bids:    bids,
		Asks:    asks,
	}, true
}

// rawPriceChangeMessage is the "price_change" event frame: an
// incremental delta against the last seen book state for one token,
// rather than a full replacement.
type rawPriceChangeMessage struct {
	EventType string          `json:"event_type"`
	AssetID   string          `json:"asset_id"`
	Seq       uint64          `json:"seq"`
	Changes   []rawPriceLevel `json:"changes"`
}

// rawPriceLevel is one level of a price_change frame: a side-tagged
// absolute size at a price, exactly like a full book level but
// carrying its own side rather than being bucketed by array.
type rawPriceLevel struct {
	Price string `json:"price"`
	Side  string `json:"side"`
	Size  string `json:"size"`
}

// DecodeBookUpdate parses a "price_change" frame into an incremental
// book update. ok is false for any other frame type or a parse
// failure; callers should skip those rather than treat them as errors.
func DecodeBookUpdate(raw []byte) (schema.BookUpdate, bool) {
	var msg rawPriceChangeMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return schema.BookUpdate{}, false
	}
	if msg.EventType != "price_change" || msg.AssetID == "" {
		return schema.BookUpdate{}, false
	}

	tokenID, err := strconv.ParseUint(msg.AssetID, 10, 32)
	if err != nil {
		return schema.BookUpdate{}, false
	}

	upd := schema.BookUpdate{TokenID: schema.TokenID(tokenID), Seq: msg.Seq}
	for _, chg := range msg.Changes {
		price, err := decodeProbabilityBps(chg.Price)
		if err != nil {
			return schema.BookUpdate{}, false
		}
		size, err := decodeScaledUnits(chg.Size)
		if err != nil {
			return schema.BookUpdate{}, false
		}
		lvl := schema.BookLevel{Price: price, Size: size}
		if strings.EqualFold(chg.Side, "SELL") {
			upd.Asks = append(upd.Asks, lvl)
		} else {
			upd.Bids = append(upd.Bids, lvl)
		}
	}
	return upd, true
}

func decodeLevels(raw []rawLevel) ([]schema.BookLevel, error) {
	levels := make([]schema.BookLevel, 0, len(raw))
	for _, lvl := range raw {
		price, err := decodeProbabilityBps(lvl.Price)
		if err != nil {
			return nil, err
		}
		size, err := decodeScaledUnits(lvl.Size)
		if err != nil {
			return nil, err
		}
		levels = append(levels, schema.BookLevel{Price: price, Size: size})
	}
	return levels, nil
}

// decodeProbabilityBps converts a decimal probability string ("0.55")
// to the engine's bps-scaled fixed point, matching the same
// scaleToBps identity used throughout internal/edge.
func decodeProbabilityBps(s string) (schema.Price, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, errors.Wrap(err, "parse price")
	}
	return schema.Price(f*bpsScale + 0.5), nil
}

// decodeScaledUnits converts a decimal size string to whole units; the
// venue quotes share sizes, not fractional probability, so no bps
// scaling applies here.
func decodeScaledUnits(s string) (schema.Quantity, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, errors.Wrap(err, "parse size")
	}
	return schema.Quantity(f + 0.5), nil
}

// rawTradeMessage is the "last_trade_price" frame on the market data
// channel: a trade print, distinct from the authenticated user
// channel's own "trade" frame for fills on the account's own orders.
type rawTradeMessage struct {
	EventType string `json:"event_type"`
	AssetID   string `json:"asset_id"`
	Price     string `json:"price"`
	Size      string `json:"size"`
}

// DecodeLastTrade parses a market data "last_trade_price" frame into a
// MarketData record for WAL audit; it never feeds the decision core,
// which only ever reacts to book snapshots and book updates.
func DecodeLastTrade(raw []byte) (schema.MarketData, bool) {
	var msg rawTradeMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return schema.MarketData{}, false
	}
	if msg.EventType != "last_trade_price" || msg.AssetID == "" {
		return schema.MarketData{}, false
	}

	tokenID, err := strconv.ParseUint(msg.AssetID, 10, 32)
	if err != nil {
		return schema.MarketData{}, false
	}
	price, err := decodeProbabilityBps(msg.Price)
	if err != nil {
		return schema.MarketData{}, false
	}
	size, err := decodeScaledUnits(msg.Size)
	if err != nil {
		return schema.MarketData{}, false
	}

	return schema.MarketData{
		SymbolID: uint32(tokenID),
		Kind:     schema.MarketDataTrade,
		Price:    price,
		Size:     size,
	}, true
}

// rawUserMessage is one frame on the authenticated user channel: order
// acknowledgements and fills share a channel, discriminated by
// event_type.
type rawUserMessage struct {
	EventType string `json:"event_type"`
	OrderID   string `json:"id"`
	AssetID   string `json:"asset_id"`
	Side      string `json:"side"`
	Status    string `json:"status"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	SizeMatch string `json:"size_matched"`
}

// DecodeOrderAck parses a user-channel "order" status frame into an
// order acknowledgement. ok is false for frames that are not an order
// status update (e.g. a trade frame, handled by DecodeFill) or that
// fail to parse.
func DecodeOrderAck(raw []byte) (schema.OrderAck, bool) {
	var msg rawUserMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return schema.OrderAck{}, false
	}
	if msg.EventType != "order" {
		return schema.OrderAck{}, false
	}

	orderID, err := strconv.ParseUint(msg.OrderID, 10, 64)
	if err != nil {
		return schema.OrderAck{}, false
	}
	tokenID, err := strconv.ParseUint(msg.AssetID, 10, 32)
	if err != nil {
		return schema.OrderAck{}, false
	}
	price, err := decodeProbabilityBps(msg.Price)
	if err != nil {
		return schema.OrderAck{}, false
	}
	size, err := decodeScaledUnits(msg.Size)
	if err != nil {
		return schema.OrderAck{}, false
	}

	return schema.OrderAck{
		OrderID:  orderID,
		SymbolID: uint32(tokenID),
		Status:   decodeAckStatus(msg.Status),
		Price:    price,
		Qty:      size,
	}, true
}

func decodeAckStatus(status string) schema.OrderAckStatus {
	switch status {
	case "LIVE", "OPEN":
		return schema.OrderAckStatusAcked
	case "MATCHED":
		return schema.OrderAckStatusFilled
	case "CANCELED", "CANCELLED":
		return schema.OrderAckStatusCanceled
	case "EXPIRED":
		return schema.OrderAckStatusExpired
	default:
		return schema.OrderAckStatusRejected
	}
}

// DecodeFill parses a user-channel "trade" frame into a fill. ok is
// false for any other frame type or a parse failure.
func DecodeFill(raw []byte) (schema.Fill, bool) {
	var msg rawUserMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return schema.Fill{}, false
	}
	if msg.EventType != "trade" {
		return schema.Fill{}, false
	}

	orderID, err := strconv.ParseUint(msg.OrderID, 10, 64)
	if err != nil {
		return schema.Fill{}, false
	}
	tokenID, err := strconv.ParseUint(msg.AssetID, 10, 32)
	if err != nil {
		return schema.Fill{}, false
	}
	price, err := decodeProbabilityBps(msg.Price)
	if err != nil {
		return schema.Fill{}, false
	}
	size, err := decodeScaledUnits(msg.SizeMatch)
	if err != nil {
		return schema.Fill{}, false
	}

	side := schema.OrderSideBuy
	if strings.EqualFold(msg.Side, "SELL") {
		side = schema.OrderSideSell
	}

	return schema.Fill{
		OrderID:  orderID,
		SymbolID: uint32(tokenID),
		Side:     side,
		Price:    price,
		Qty:      size,
	}, true
}
