package venue

import (
	"context"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	pkgws "github.com/yanun0323/polyarb/pkg/websocket"
)

// FeedConfig parameterizes a reconnecting feed.
type FeedConfig struct {
	Dialer  pkgws.Dialer
	Backoff pkgws.Backoff
	// Subscribe, if non-nil, is called with the fresh connection on
	// every (re)connect to send subscription control messages.
	Subscribe func(ctx context.Context, conn pkgws.Conn) error
}

// Feed runs a reconnect loop over a single websocket connection,
// invoking onMessage for every frame received. It is the shared shape
// behind both MarketFeed and UserFeed; the teacher's dialer/backoff
// pair supplies the reconnect policy.
type Feed struct {
	cfg FeedConfig
}

// NewFeed constructs a reconnecting feed. A zero Backoff uses
// pkgws.DefaultBackoff().
func NewFeed(cfg FeedConfig) *Feed {
	if cfg.Backoff == (pkgws.Backoff{}) {
		cfg.Backoff = pkgws.DefaultBackoff()
	}
	return &Feed{cfg: cfg}
}

// Run connects, subscribes, and reads frames until ctx is canceled,
// reconnecting with the configured backoff on any read/dial error.
func (f *Feed) Run(ctx context.Context, onMessage func([]byte, pkgws.MessageType)) error {
	attempt := 0
	buf := make([]byte, 64*1024)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		conn, err := f.cfg.Dialer.Dial(ctx)
		if err != nil {
			attempt++
			logs.Errorf("venue feed dial, err: %+v", errors.Wrap(err, "dial"))
			if !sleepBackoff(ctx, f.cfg.Backoff.Next(attempt)) {
				return ctx.Err()
			}
			continue
		}
		attempt = 0

		if f.cfg.Subscribe != nil {
			if err := f.cfg.Subscribe(ctx, conn); err != nil {
				logs.Errorf("venue feed subscribe, err: %+v", errors.Wrap(err, "subscribe"))
				_ = conn.Close(pkgws.CloseNormal, "subscribe failed")
				continue
			}
		}

		for {
			n, msgType, err := conn.Read(ctx, buf)
			if err != nil {
				logs.Errorf("venue feed read, err: %+v", errors.Wrap(err, "read"))
				break
			}
			onMessage(buf[:n], msgType)
		}
		_ = conn.Close(pkgws.CloseNormal, "reconnecting")

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

func sleepBackoff(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
