package book

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yanun0323/polyarb/internal/schema"
)

func TestStateApplyAndView(t *testing.T) {
	s := NewState(2)
	require.NoError(t, s.Apply(Update{
		TokenID: 1,
		Seq:     1,
		Bids:    []Delta{{Price: 50, Size: 10}, {Price: 49, Size: 5}, {Price: 48, Size: 3}},
		Asks:    []Delta{{Price: 51, Size: 10}},
	}))

	bids, asks := s.View()
	require.Len(t, bids, 2)
	require.Equal(t, schema.Price(50), bids[0].Price)
	require.Len(t, asks, 1)
}

func TestStateSequenceGapTriggersResync(t *testing.T) {
	s := NewState(10)
	require.NoError(t, s.Apply(Update{Seq: 1, Bids: []Delta{{Price: 1, Size: 1}}}))
	err := s.Apply(Update{Seq: 5, Bids: []Delta{{Price: 1, Size: 1}}})
	require.ErrorIs(t, err, ErrSequenceGap)
	require.True(t, s.Resyncing())

	s.Reset(schema.BookSnapshot{Seq: 5, Bids: []schema.BookLevel{{Price: 1, Size: 1}}})
	require.False(t, s.Resyncing())
	require.NoError(t, s.Apply(Update{Seq: 6, Bids: []Delta{{Price: 2, Size: 2}}}))
}

func TestDepthForSizePartialFill(t *testing.T) {
	levels := []schema.BookLevel{{Price: 50, Size: 5}, {Price: 51, Size: 5}}
	vwap, fillable := DepthForSize(levels, 8)
	require.Equal(t, schema.Quantity(8), fillable)
	require.Equal(t, schema.Price((50*5+51*3)/8), vwap)

	_, fillable = DepthForSize(levels, 100)
	require.Equal(t, schema.Quantity(10), fillable)
}
