package backtest

import "github.com/yanun0323/polyarb/internal/schema"

// Matcher simulates venue execution for a backtest: given a resting
// book side and an incoming order, it decides the fill (if any) using
// price/time priority against the visible top-of-book depth, replacing
// the live venue adapter so the same og/risk/strategy code paths that
// run in production also run in replay.
type Matcher struct {
	feeBps int64
}

// NewMatcher constructs a matcher charging the given taker fee.
func NewMatcher(feeBps int64) *Matcher {
	return &Matcher{feeBps: feeBps}
}

// MatchResult is the outcome of attempting to match an incoming order
// intent against resting book levels.
type MatchResult struct {
	FilledQty  schema.Quantity
	FillPrice  schema.Price
	Fee        schema.Fee
	FullyFilled bool
}

// Match walks levels in the order given (assumed already sorted
// best-first for the order's side) and fills up to intent.Qty at each
// level's price until either the order is exhausted or the book is.
// A limit order only takes liquidity priced at or better than its
// limit price.
func (m *Matcher) Match(intent schema.OrderIntent, levels []schema.BookLevel) MatchResult {
	var res MatchResult
	remaining := intent.Qty
	var notional int64

	for _, lvl := range levels {
		if remaining <= 0 {
			break
		}
		if intent.Type == schema.OrderTypeLimit && !priceCrosses(intent.Side, intent.Price, lvl.Price) {
			break
		}
		take := lvl.Size
		if take > remaining {
			take = remaining
		}
		notional += int64(lvl.Price) * int64(take)
		res.FilledQty += take
		remaining -= take
	}

	if res.FilledQty > 0 {
		res.FillPrice = schema.Price(notional / int64(res.FilledQty))
		res.Fee = schema.Fee(notional * m.feeBps / 10000)
	}
	res.FullyFilled = remaining == 0
	return res
}

func priceCrosses(side schema.OrderSide, limit, level schema.Price) bool {
	switch side {
	case schema.OrderSideBuy:
		return level <= limit
	case schema.OrderSideSell:
		return level >= limit
	default:
		return false
	}
}
