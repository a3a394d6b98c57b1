// Package strategy evaluates a market's book against risk and decay
// state and decides whether to fire a paired arbitrage entry: buying
// both the YES and NO tokens when their combined cost implies a
// guaranteed profit net of fees, slippage, and a failure buffer.
package strategy

import (
	"github.com/google/uuid"
	"github.com/yanun0323/polyarb/internal/edge"
	"github.com/yanun0323/polyarb/internal/schema"
)

// PurposeArbEntry tags every order intent this package produces.
const PurposeArbEntry = "ARB_ENTRY"

// BookView is the minimal per-token book information the strategy
// needs, decoupled from internal/book's mutable State so this package
// stays a pure function of its inputs.
type BookView struct {
	YesAsk       schema.Price
	NoAsk        schema.Price
	YesAskSize   schema.Quantity
	NoAskSize    schema.Quantity
	YesTokenID   schema.TokenID
	NoTokenID    schema.TokenID
	Resyncing    bool
}

// RiskView is the subset of risk manager state the strategy reads.
type RiskView struct {
	SafetyMode      schema.SafetyMode
	MaxOrderQty     schema.Quantity
	MaxOrderNotional schema.Notional
}

// DecayView reports whether a market is currently disabled by the edge
// decay guard.
type DecayView struct {
	Disabled bool
}

// Config parameterizes strategy decisions.
type Config struct {
	MinEdgeBps    int64
	MinOrderSize  schema.Quantity
	FeeRateBps    int64
	RequestedSize schema.Quantity
}

// Decision is the zero-or-one outcome of evaluating a market.
type Decision struct {
	Fire          bool
	CorrelationID string
	Yes           schema.OrderIntent
	No            schema.OrderIntent
	EdgeQuality   schema.EdgeQuality
}

// idGenerator is swappable in tests so decisions are deterministic.
type idGenerator func() string

var newCorrelationID idGenerator = func() string {
	return uuid.NewString()
}

// Evaluate is the stateless decision function: given a market's book,
// current risk and decay views, the active slippage failure buffer,
// and strategy config, it returns zero or one paired order intent. The
// function never mutates its inputs and is safe to call from the
// single-writer loop on every book update.
func Evaluate(marketID schema.MarketID, book BookView, risk RiskView, decay DecayView, failureBufferBps int64, cfg Config) Decision {
	if book.Resyncing || decay.Disabled || risk.SafetyMode != schema.SafetyModeRunning {
		return Decision{}
	}

	size := cfg.RequestedSize
	if size <= 0 {
		size = cfg.MinOrderSize
	}
	if risk.MaxOrderQty > 0 && size > risk.MaxOrderQty {
		size = risk.MaxOrderQty
	}

	fillable := book.YesAskSize
	if book.NoAskSize < fillable {
		fillable = book.NoAskSize
	}

	edgeBps, qty := edge.Predicted(edge.Inputs{
		YesAsk:           book.YesAsk,
		NoAsk:            book.NoAsk,
		FeeRateBps:       cfg.FeeRateBps,
		SlippageBps:      0,
		FailureBufferBps: failureBufferBps,
		Size:             size,
		Fillable:         fillable,
	})

	quality := schema.EdgeQuality{
		MarketID:         marketID,
		ExecutableEdge:   edgeBps,
		YesAskPrice:      book.YesAsk,
		NoAskPrice:       book.NoAsk,
		FeeRateBps:       cfg.FeeRateBps,
		FailureBufferBps: failureBufferBps,
		Size:             qty,
	}

	if !edge.Actionable(edgeBps, qty, cfg.MinOrderSize, cfg.MinEdgeBps) {
		return Decision{EdgeQuality: quality}
	}
	quality.Actionable = true

	correlationID := newCorrelationID()
	return Decision{
		Fire:          true,
		CorrelationID: correlationID,
		EdgeQuality:   quality,
		Yes: schema.OrderIntent{
			SymbolID:    uint32(book.YesTokenID),
			Side:        schema.OrderSideBuy,
			Type:        schema.OrderTypeLimit,
			TimeInForce: schema.TimeInForceIOC,
			Price:       book.YesAsk,
			Qty:         qty,
		},
		No: schema.OrderIntent{
			SymbolID:    uint32(book.NoTokenID),
			Side:        schema.OrderSideBuy,
			Type:        schema.OrderTypeLimit,
			TimeInForce: schema.TimeInForceIOC,
			Price:       book.NoAsk,
			Qty:         qty,
		},
	}
}
