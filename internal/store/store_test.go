package store

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yanun0323/polyarb/internal/schema"
)

func TestWriteFillBackpressureReturnsErrQueueFull(t *testing.T) {
	w := &Writer{queue: make(chan any, 1), done: make(chan struct{})}

	require.NoError(t, w.WriteFill(schema.EventHeader{Seq: 1}, schema.Fill{OrderID: 1}))
	err := w.WriteFill(schema.EventHeader{Seq: 2}, schema.Fill{OrderID: 2})
	require.ErrorIs(t, err, ErrQueueFull)
}

func TestWriteSafetyTransitionBackpressureReturnsErrQueueFull(t *testing.T) {
	w := &Writer{queue: make(chan any, 1), done: make(chan struct{})}

	require.NoError(t, w.WriteSafetyTransition(schema.SafetyTransition{Reason: "drawdown"}))
	err := w.WriteSafetyTransition(schema.SafetyTransition{Reason: "daily loss"})
	require.ErrorIs(t, err, ErrQueueFull)
}
