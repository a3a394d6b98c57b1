package watchdog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStaleDetection(t *testing.T) {
	now := time.Unix(1000, 0)
	w := New(5*time.Second, time.Second, nil, func() time.Time { return now })
	require.False(t, w.Stale())

	now = now.Add(10 * time.Second)
	require.True(t, w.Stale())

	w.Heartbeat()
	require.False(t, w.Stale())
}

func TestOnStaleFiresOnce(t *testing.T) {
	now := time.Unix(0, 0)
	fires := 0
	w := New(time.Second, time.Millisecond, func() { fires++ }, func() time.Time { return now })

	now = now.Add(5 * time.Second)
	require.True(t, w.Stale())

	// Run polls many times while the feed stays stale, then returns once
	// the context expires; onStale must have fired exactly once.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	w.Run(ctx)
	require.Equal(t, 1, fires)
}
