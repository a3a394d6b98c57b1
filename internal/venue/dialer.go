// Package venue adapts the generic multiplexed websocket transport in
// pkg/websocket to the two feeds a Polymarket-style CLOB venue exposes:
// a market data feed (per-token order book deltas) and a user feed
// (order acks and fills). It builds directly on pkg/websocket's
// exported Conn/Dialer/Backoff primitives rather than its Manager/
// Router/Subscriptions machinery, whose Config wiring (TopicParser vs.
// the package-private subscriptions type) does not compose without
// changes out of scope here; DESIGN.md records the reasoning.
package venue

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	pkgws "github.com/yanun0323/polyarb/pkg/websocket"
)

// GorillaDialer implements pkgws.Dialer over gorilla/websocket, the
// teacher's transport of choice for exchange feeds.
type GorillaDialer struct {
	URL     string
	Header  http.Header
	Timeout time.Duration
}

// Dial opens a new connection to the configured URL.
func (d GorillaDialer) Dial(ctx context.Context) (pkgws.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: d.Timeout}
	if dialer.HandshakeTimeout == 0 {
		dialer.HandshakeTimeout = 10 * time.Second
	}
	u, err := url.Parse(d.URL)
	if err != nil {
		return nil, err
	}
	conn, _, err := dialer.DialContext(ctx, u.String(), d.Header)
	if err != nil {
		return nil, err
	}
	return &gorillaConn{conn: conn}, nil
}

type gorillaConn struct {
	conn *websocket.Conn
}

func (c *gorillaConn) Read(ctx context.Context, dst []byte) (int, pkgws.MessageType, error) {
	msgType, data, err := c.conn.ReadMessage()
	if err != nil {
		return 0, 0, err
	}
	n := copy(dst, data)
	return n, toPkgMessageType(msgType), nil
}

func (c *gorillaConn) Write(ctx context.Context, msgType pkgws.MessageType, payload []byte) error {
	return c.conn.WriteMessage(toGorillaMessageType(msgType), payload)
}

func (c *gorillaConn) Close(code pkgws.CloseCode, reason string) error {
	msg := websocket.FormatCloseMessage(int(code), reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.conn.Close()
}

func toPkgMessageType(t int) pkgws.MessageType {
	switch t {
	case websocket.TextMessage:
		return pkgws.MessageText
	case websocket.BinaryMessage:
		return pkgws.MessageBinary
	case websocket.CloseMessage:
		return pkgws.MessageClose
	case websocket.PingMessage:
		return pkgws.MessagePing
	case websocket.PongMessage:
		return pkgws.MessagePong
	default:
		return pkgws.MessageBinary
	}
}

func toGorillaMessageType(t pkgws.MessageType) int {
	switch t {
	case pkgws.MessageText:
		return websocket.TextMessage
	case pkgws.MessagePing:
		return websocket.PingMessage
	case pkgws.MessagePong:
		return websocket.PongMessage
	case pkgws.MessageClose:
		return websocket.CloseMessage
	default:
		return websocket.BinaryMessage
	}
}
