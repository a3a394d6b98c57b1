// Package mdg generates synthetic YES/NO book ticks for paper trading
// and backtest fixtures, round-robining over the tracked markets the
// way the teacher's generator round-robins over venue symbols.
package mdg

import (
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/polyarb/internal/market"
	"github.com/yanun0323/polyarb/internal/schema"
)

// Generator creates synthetic book ticks for every tracked market's
// YES and NO tokens.
type Generator struct {
	markets   []schema.Market
	source    uint16
	baseAsk   int64
	baseSize  int64
	spread    int64
	arbBiasBps int64
	index     int
	tick      int
}

// NewGenerator builds a generator over every active market in reg.
// baseAsk and spread are scaled prices (e.g. 1e4 = 1.0000); arbBiasBps
// periodically shrinks yesAsk+noAsk below 1.0 by arbBiasBps to produce
// a synthetic arbitrage window every few ticks, useful for exercising
// the strategy and risk path without a live venue.
func NewGenerator(reg *market.Registry, source uint16, baseAsk, baseSize, spread, arbBiasBps int64) (*Generator, error) {
	if reg == nil || reg.Count() == 0 {
		return nil, errors.New("market registry has no markets")
	}
	if baseSize <= 0 {
		baseSize = 1
	}
	if spread < 0 {
		spread = 0
	}
	return &Generator{
		markets:    reg.ActiveMarkets(),
		source:     source,
		baseAsk:    baseAsk,
		baseSize:   baseSize,
		spread:     spread,
		arbBiasBps: arbBiasBps,
	}, nil
}

// Next produces the next raw tick, alternating between a market's YES
// and NO token each call.
func (g *Generator) Next(now time.Time) RawTick {
	m := g.markets[g.index/2%len(g.markets)]
	outcome := schema.OutcomeYes
	token := m.YesToken
	if g.index%2 == 1 {
		outcome = schema.OutcomeNo
		token = m.NoToken
	}
	g.index++
	g.tick++

	ask := g.baseAsk
	if g.arbBiasBps > 0 && g.tick%5 == 0 {
		ask -= g.arbBiasBps
	}

	return RawTick{
		MarketID: m.ID,
		TokenID:  token,
		Outcome:  outcome,
		BidPrice: ask - g.spread,
		BidSize:  g.baseSize,
		AskPrice: ask,
		AskSize:  g.baseSize,
		Source:   g.source,
		TsEvent:  now.UnixNano(),
		TsRecv:   now.UnixNano(),
	}
}
