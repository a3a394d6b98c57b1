// Package edge computes the executable edge of buying both outcome
// tokens of a binary market. It is a pure function package: no state,
// safe to call from any goroutine, deterministic given its inputs.
package edge

import "github.com/yanun0323/polyarb/internal/schema"

// bpsScale expresses edge and fee inputs in basis points of the
// [0,1] probability space; a Price of 10000 represents probability 1.
const bpsScale = 10000

// Inputs bundles the per-market quantities required to compute an
// executable edge estimate.
type Inputs struct {
	YesAsk           schema.Price
	NoAsk            schema.Price
	FeeRateBps       int64
	SlippageBps      int64
	FailureBufferBps int64
	Size             schema.Quantity
	Fillable         schema.Quantity
}

// Predicted computes the executable edge, in basis points, of buying
// one YES and one NO token at their respective best asks:
//
//	edge = 1 - (yesAsk + noAsk) - feeRate - slippage - failureBuffer
//
// and reports the quantity actually fillable at that edge (the lesser
// of the requested size and the size available on both books).
func Predicted(in Inputs) (edgeBps int64, fillable schema.Quantity) {
	fillable = in.Size
	if in.Fillable < fillable {
		fillable = in.Fillable
	}

	askSumBps := scaleToBps(in.YesAsk) + scaleToBps(in.NoAsk)
	edgeBps = bpsScale - askSumBps - in.FeeRateBps - in.SlippageBps - in.FailureBufferBps
	return edgeBps, fillable
}

// scaleToBps converts a schema.Price (assumed scaled to bpsScale units,
// i.e. 10000 = probability 1.0) to basis points. Prices already live in
// that scale by convention across the engine, so this is an identity
// conversion kept explicit for readability at call sites.
func scaleToBps(p schema.Price) int64 {
	return int64(p)
}

// Actionable reports whether a predicted edge strictly exceeds the
// minimum threshold and has enough size to be worth acting on.
func Actionable(edgeBps int64, fillable, minSize schema.Quantity, minEdgeBps int64) bool {
	return edgeBps > minEdgeBps && fillable >= minSize
}
