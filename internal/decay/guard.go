// Package decay implements the edge decay guard: it tracks, per
// market, how closely realised fill quality has tracked the edge
// calculator's predictions, and disables a market (not the whole
// engine) when quality degrades past a threshold. Uses the same
// fixed-capacity ring idiom as internal/slippage.
package decay

import "github.com/yanun0323/polyarb/internal/schema"

const ringCapacity = 50

type sample struct {
	predicted int64
	realised  int64
}

type ring struct {
	samples [ringCapacity]sample
	count   int
	next    int
}

func (r *ring) push(s sample) {
	r.samples[r.next] = s
	r.next = (r.next + 1) % ringCapacity
	if r.count < ringCapacity {
		r.count++
	}
}

func (r *ring) means() (meanPredicted, meanRealised float64) {
	if r.count == 0 {
		return 0, 0
	}
	var sumP, sumR int64
	for i := 0; i < r.count; i++ {
		sumP += r.samples[i].predicted
		sumR += r.samples[i].realised
	}
	return float64(sumP) / float64(r.count), float64(sumR) / float64(r.count)
}

// Config parameterizes the guard's disable/re-enable thresholds.
type Config struct {
	// MinQuality is the minimum acceptable mean(realised)/mean(predicted)
	// ratio; a market is disabled when quality drops below this and
	// the ring holds at least MinSamples observations.
	MinQuality float64
	MinSamples int
}

// Guard tracks per-market edge quality history and exposes an
// enabled/disabled flag consulted by the strategy package.
type Guard struct {
	cfg      Config
	history  map[schema.MarketID]*ring
	disabled map[schema.MarketID]bool
}

// New constructs an edge decay guard.
func New(cfg Config) *Guard {
	return &Guard{cfg: cfg, history: make(map[schema.MarketID]*ring), disabled: make(map[schema.MarketID]bool)}
}

// Observe records a (predicted, realised) edge pair for a market and
// re-evaluates its disable state.
func (g *Guard) Observe(marketID schema.MarketID, predictedBps, realisedBps int64) {
	r, ok := g.history[marketID]
	if !ok {
		r = &ring{}
		g.history[marketID] = r
	}
	r.push(sample{predicted: predictedBps, realised: realisedBps})

	if r.count < g.cfg.MinSamples {
		return
	}
	meanP, meanR := r.means()
	if meanP == 0 {
		return
	}
	quality := meanR / meanP
	g.disabled[marketID] = quality < g.cfg.MinQuality
}

// Disabled reports whether a market is currently disabled by quality
// decay.
func (g *Guard) Disabled(marketID schema.MarketID) bool {
	return g.disabled[marketID]
}

// Reenable clears a market's disabled flag and its history, used when
// an operator manually overrides the guard via the command bus.
func (g *Guard) Reenable(marketID schema.MarketID) {
	delete(g.disabled, marketID)
	delete(g.history, marketID)
}

// Quality returns the current mean(realised)/mean(predicted) ratio for
// a market, or 1.0 (neutral) if no history exists yet.
func (g *Guard) Quality(marketID schema.MarketID) float64 {
	r, ok := g.history[marketID]
	if !ok || r.count == 0 {
		return 1.0
	}
	meanP, meanR := r.means()
	if meanP == 0 {
		return 1.0
	}
	return meanR / meanP
}
