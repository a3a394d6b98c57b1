package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/yanun0323/polyarb/internal/schema"
)

func TestPriorityQueueDrainsCriticalFirst(t *testing.T) {
	q := NewPriorityQueue(4, 4)
	require.NoError(t, q.TryPublish(Event{Header: schema.EventHeader{Type: schema.EventMarketData}}))
	require.NoError(t, q.TryPublish(Event{Header: schema.EventHeader{Type: schema.EventCommand}}))

	var order []schema.EventType
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		q.Run(ctx, func(e Event) {
			order = append(order, e.Header.Type)
			if len(order) == 2 {
				close(done)
			}
		})
	}()

	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timed out waiting for events")
	}
	require.Equal(t, schema.EventCommand, order[0])
}

func TestPriorityQueueRunWithTickFiresOnTick(t *testing.T) {
	q := NewPriorityQueue(1, 1)
	ticks := make(chan time.Time, 1)
	ticks <- time.Unix(1, 0)

	var fired bool
	done := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go q.RunWithTick(ctx, ticks, func(Event) {}, func(time.Time) {
		fired = true
		close(done)
	})

	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timed out waiting for tick")
	}
	require.True(t, fired)
}

func TestPriorityQueueClosedRejects(t *testing.T) {
	q := NewPriorityQueue(1, 1)
	q.Close()
	err := q.TryPublish(Event{Header: schema.EventHeader{Type: schema.EventCommand}})
	require.ErrorIs(t, err, ErrQueueClosed)
}
