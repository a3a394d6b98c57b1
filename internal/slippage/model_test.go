package slippage

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yanun0323/polyarb/internal/schema"
)

func TestFailureBufferUsesFloorWhenNoHistory(t *testing.T) {
	m := NewModel(Config{FloorBps: 25, Multiplier: 1.5})
	require.Equal(t, int64(25), m.FailureBuffer(1))
}

func TestFailureBufferNeverGoesBelowFloor(t *testing.T) {
	m := NewModel(Config{FloorBps: 50, Multiplier: 2})
	for i := 0; i < 10; i++ {
		m.Observe(1, 5)
	}
	require.Equal(t, int64(50), m.FailureBuffer(1))
}

func TestFailureBufferAdaptsAboveFloor(t *testing.T) {
	m := NewModel(Config{FloorBps: 10, Multiplier: 1.0})
	for i := 0; i < DefaultRingCapacity; i++ {
		m.Observe(1, int64(100+i))
	}
	require.Greater(t, m.FailureBuffer(1), int64(10))
}

func TestBaselineScalesBySizeUnits(t *testing.T) {
	m := NewModel(Config{BaselineBpsPerUnit: 2})
	require.Equal(t, int64(2), m.Baseline(schema.Quantity(5), schema.Quantity(10)))
	require.Equal(t, int64(6), m.Baseline(schema.Quantity(30), schema.Quantity(10)))
}
