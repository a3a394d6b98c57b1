package backtest

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yanun0323/polyarb/internal/schema"
)

func TestMatcherFillsLimitBuyAtOrBetter(t *testing.T) {
	m := NewMatcher(10)
	levels := []schema.BookLevel{{Price: 4800, Size: 5}, {Price: 4900, Size: 5}, {Price: 5100, Size: 5}}
	res := m.Match(schema.OrderIntent{Side: schema.OrderSideBuy, Type: schema.OrderTypeLimit, Price: 4900, Qty: 8}, levels)
	require.Equal(t, schema.Quantity(8), res.FilledQty)
	require.True(t, res.FullyFilled)
	require.Greater(t, int64(res.Fee), int64(0))
}

func TestMatcherStopsAtLimitPrice(t *testing.T) {
	m := NewMatcher(0)
	levels := []schema.BookLevel{{Price: 52, Size: 100}}
	res := m.Match(schema.OrderIntent{Side: schema.OrderSideBuy, Type: schema.OrderTypeLimit, Price: 50, Qty: 10}, levels)
	require.Equal(t, schema.Quantity(0), res.FilledQty)
	require.False(t, res.FullyFilled)
}
