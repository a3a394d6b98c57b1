// Package watchdog monitors the user data stream's heartbeat and signals
// a stale-feed condition when no heartbeat has landed within a timeout.
// Grounded on the teacher's ticker-driven polling goroutine shape (see
// the former cmd/trader watchConfig loop): a single ticker, a last-seen
// timestamp, and a callback fired when the deadline is missed.
package watchdog

import (
	"context"
	"time"
)

// Watchdog tracks the age of the last observed user-stream heartbeat
// and invokes onStale when it exceeds Timeout.
type Watchdog struct {
	timeout      time.Duration
	pollInterval time.Duration
	lastSeen     time.Time
	onStale      func()
	nowFunc      func() time.Time
}

// New constructs a watchdog that polls every pollInterval and fires
// onStale the first time the gap since the last heartbeat exceeds
// timeout. nowFunc defaults to time.Now when nil; tests may override it
// for determinism.
func New(timeout, pollInterval time.Duration, onStale func(), nowFunc func() time.Time) *Watchdog {
	if nowFunc == nil {
		nowFunc = time.Now
	}
	return &Watchdog{
		timeout:      timeout,
		pollInterval: pollInterval,
		lastSeen:     nowFunc(),
		onStale:      onStale,
		nowFunc:      nowFunc,
	}
}

// Heartbeat records a fresh heartbeat, resetting the staleness clock.
func (w *Watchdog) Heartbeat() {
	w.lastSeen = w.nowFunc()
}

// Stale reports whether the watchdog currently considers the feed
// stale given its last recorded heartbeat.
func (w *Watchdog) Stale() bool {
	return w.nowFunc().Sub(w.lastSeen) > w.timeout
}

// Run polls on pollInterval until ctx is done, invoking onStale the
// first time the feed goes stale. It does not re-fire onStale
// repeatedly while the feed remains stale; Heartbeat must be called to
// re-arm detection.
func (w *Watchdog) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	fired := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if w.Stale() {
				if !fired && w.onStale != nil {
					w.onStale()
				}
				fired = true
			} else {
				fired = false
			}
		}
	}
}
