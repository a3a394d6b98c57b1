// Package slippage estimates the execution cost of walking a book for
// a given size: a baseline linear model plus an adaptive failure
// buffer derived from a fixed-capacity ring of recently observed
// realised slippage samples.
package slippage

import "github.com/yanun0323/polyarb/internal/schema"

// DefaultRingCapacity is the number of recent samples retained per
// market for the adaptive p95 estimate.
const DefaultRingCapacity = 50

// ring is a fixed-capacity circular buffer of basis-point samples,
// mirroring the teacher's fixed-array depth-row idiom rather than a
// growable slice.
type ring struct {
	samples [DefaultRingCapacity]int64
	count   int
	next    int
}

func (r *ring) push(sampleBps int64) {
	r.samples[r.next] = sampleBps
	r.next = (r.next + 1) % DefaultRingCapacity
	if r.count < DefaultRingCapacity {
		r.count++
	}
}

// p95 returns the 95th percentile of the retained samples, or 0 if
// empty. The ring is small enough that a full sort on read is cheap
// and keeps the implementation simple.
func (r *ring) p95() int64 {
	if r.count == 0 {
		return 0
	}
	sorted := make([]int64, r.count)
	copy(sorted, r.samples[:r.count])
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	idx := (len(sorted) * 95) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// Config parameterizes the baseline and adaptive components of the
// model.
type Config struct {
	// BaselineBpsPerUnit is the linear baseline slippage, in basis
	// points, charged per whole multiple of a market's min order size
	// (at least one multiple; per unit of size when min size is 0).
	BaselineBpsPerUnit int64
	// FloorBps is the minimum failure buffer regardless of observed
	// history.
	FloorBps int64
	// Multiplier scales the adaptive p95 estimate before it is
	// compared against the floor.
	Multiplier float64
}

// Model tracks per-market adaptive slippage history and computes the
// effective failure buffer used by the edge calculator. It is owned by
// the single-writer core loop.
type Model struct {
	cfg  Config
	hist map[schema.MarketID]*ring
}

// NewModel constructs a slippage model with the given configuration.
func NewModel(cfg Config) *Model {
	return &Model{cfg: cfg, hist: make(map[schema.MarketID]*ring)}
}

// Baseline returns the linear baseline slippage estimate, in basis
// points, for the given order size relative to a market's minimum
// order size.
func (m *Model) Baseline(size, minSize schema.Quantity) int64 {
	units := int64(size)
	if minSize > 0 {
		units = int64(size) / int64(minSize)
		if units < 1 {
			units = 1
		}
	}
	return m.cfg.BaselineBpsPerUnit * units
}

// Observe records a realised slippage sample (predicted vs. actual
// execution price, expressed in basis points) for a market.
func (m *Model) Observe(marketID schema.MarketID, realisedBps int64) {
	r, ok := m.hist[marketID]
	if !ok {
		r = &ring{}
		m.hist[marketID] = r
	}
	r.push(realisedBps)
}

// FailureBuffer returns the effective failure buffer for a market: the
// floor, unless the adaptive p95 (scaled by Multiplier) exceeds it, in
// which case the adaptive figure is used. The floor is never bypassed
// downward.
func (m *Model) FailureBuffer(marketID schema.MarketID) int64 {
	floor := m.cfg.FloorBps
	r, ok := m.hist[marketID]
	if !ok || r.count == 0 {
		return floor
	}
	adaptive := int64(float64(r.p95()) * m.cfg.Multiplier)
	if adaptive > floor {
		return adaptive
	}
	return floor
}
