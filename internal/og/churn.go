package og

import "github.com/yanun0323/polyarb/internal/schema"

// ChurnGovernor caps how many submit-then-cancel cycles a market may
// go through in a rolling window, guarding against a strategy that
// oscillates on a flickering edge and burns rate-limit budget or
// venue goodwill without ever getting filled.
type ChurnGovernor struct {
	maxChurns  int
	windowSecs int64
	counts     map[schema.MarketID]*churnWindow
}

type churnWindow struct {
	windowStart int64
	count       int
}

// NewChurnGovernor constructs a governor allowing maxChurns
// submit-cancel cycles per market within a rolling window of
// windowSecs seconds.
func NewChurnGovernor(maxChurns int, windowSecs int64) *ChurnGovernor {
	return &ChurnGovernor{
		maxChurns:  maxChurns,
		windowSecs: windowSecs,
		counts:     make(map[schema.MarketID]*churnWindow),
	}
}

// RecordCancel registers a cancel against a market's churn window.
func (c *ChurnGovernor) RecordCancel(marketID schema.MarketID, nowUnix int64) {
	w, ok := c.counts[marketID]
	if !ok || nowUnix-w.windowStart >= c.windowSecs {
		w = &churnWindow{windowStart: nowUnix}
		c.counts[marketID] = w
	}
	w.count++
}

// Allowed reports whether a new submission to a market is permitted
// given its recent churn history.
func (c *ChurnGovernor) Allowed(marketID schema.MarketID, nowUnix int64) bool {
	w, ok := c.counts[marketID]
	if !ok {
		return true
	}
	if nowUnix-w.windowStart >= c.windowSecs {
		return true
	}
	return w.count < c.maxChurns
}
