// Package flatten implements the flatten workflow: walk every live
// order, cancel it, and optionally unwind any resulting net position
// back to flat.
package flatten

import (
	"context"
	"time"

	"github.com/yanun0323/polyarb/internal/og"
	"github.com/yanun0323/polyarb/internal/schema"
)

// Mode controls whether flattening only cancels resting orders or also
// actively unwinds any resulting net position with marketable orders.
type Mode uint8

const (
	// ModeCancelOnly cancels every live order and stops; any residual
	// position from partial fills is left for a human or for the next
	// cycle once SafetyMode returns to Running.
	ModeCancelOnly Mode = iota
	// ModeCancelAndUnwind cancels every live order and then submits
	// marketable orders to bring every token's net position back to
	// flat.
	ModeCancelAndUnwind
)

// Config bounds how aggressively the unwind step is allowed to chase a
// residual position.
type Config struct {
	// MaxUnwindSlippageBps refuses to unwind a lot whose estimated
	// slippage would exceed this many basis points; 0 disables the
	// check. Refused lots are counted as residual, not retried.
	MaxUnwindSlippageBps int64
	// UnwindDeadlineMs bounds the wall-clock time the unwind step may
	// spend working through the token list; 0 disables the deadline.
	// Positions not reached before the deadline are counted as
	// residual so the caller can still transition into SAFE rather
	// than block indefinitely.
	UnwindDeadlineMs int64
}

// PositionSource reports current net exposure per token so the unwind
// step knows what remains after cancellation.
type PositionSource interface {
	Position(tokenID schema.TokenID) schema.Position
}

// Unwinder submits a marketable order to close out a residual
// position.
type Unwinder interface {
	Unwind(ctx context.Context, tokenID schema.TokenID, qty schema.Quantity, side schema.OrderSide) error
}

// SlippageEstimator estimates the basis points of slippage an unwind
// of the given size would realise, used to refuse unwinds that would
// cost more than MaxUnwindSlippageBps allows.
type SlippageEstimator interface {
	EstimateBps(tokenID schema.TokenID, qty schema.Quantity) int64
}

// Workflow drives a single flatten pass across every market the engine
// tracks.
type Workflow struct {
	cfg        Config
	mode       Mode
	manager    *og.StateMachine
	canceller  og.Canceller
	positions  PositionSource
	unwinder   Unwinder
	slippage   SlippageEstimator
}

// NewWorkflow constructs a flatten workflow over the given order state
// machine, canceller, and (for ModeCancelAndUnwind) position source,
// unwinder, and slippage estimator. slippage may be nil, in which case
// the max-slippage refusal never fires.
func NewWorkflow(cfg Config, mode Mode, manager *og.StateMachine, canceller og.Canceller, positions PositionSource, unwinder Unwinder, slippage SlippageEstimator) *Workflow {
	return &Workflow{cfg: cfg, mode: mode, manager: manager, canceller: canceller, positions: positions, unwinder: unwinder, slippage: slippage}
}

// Residual describes one token whose position could not be unwound
// flat during a flatten pass.
type Residual struct {
	TokenID schema.TokenID
	Qty     schema.Quantity
	Reason  string
}

// Result summarizes the outcome of one flatten pass.
type Result struct {
	CancelRequested int
	UnwindRequested int
	Residual        []Residual
	Errors          []error
}

// Run cancels every live order and, in ModeCancelAndUnwind, unwinds any
// residual per-token position. It is safe to call repeatedly: orders
// already Cancelling or terminal are skipped. The unwind step refuses
// any lot whose estimated slippage exceeds Config.MaxUnwindSlippageBps
// and stops making new unwind attempts once UnwindDeadlineMs has
// elapsed; either case leaves the position as Residual rather than
// blocking the caller from reaching SAFE.
func (w *Workflow) Run(ctx context.Context, tokens []schema.TokenID) Result {
	var res Result
	for _, o := range w.manager.LiveOrders() {
		if o.State == og.OrderStateCancelling {
			continue
		}
		if _, err := w.canceller.Cancel(ctx, o.ID); err != nil {
			res.Errors = append(res.Errors, err)
			continue
		}
		res.CancelRequested++
	}

	if w.mode != ModeCancelAndUnwind || w.positions == nil || w.unwinder == nil {
		return res
	}

	deadline := time.Time{}
	if w.cfg.UnwindDeadlineMs > 0 {
		deadline = time.Now().Add(time.Duration(w.cfg.UnwindDeadlineMs) * time.Millisecond)
	}

	for _, tokenID := range tokens {
		pos := w.positions.Position(tokenID)
		if pos.NetQty == 0 {
			continue
		}
		side := schema.OrderSideSell
		qty := pos.NetQty
		if pos.NetQty < 0 {
			side = schema.OrderSideBuy
			qty = -pos.NetQty
		}

		if !deadline.IsZero() && time.Now().After(deadline) {
			res.Residual = append(res.Residual, Residual{TokenID: tokenID, Qty: qty, Reason: "unwind deadline elapsed"})
			continue
		}
		if w.cfg.MaxUnwindSlippageBps > 0 && w.slippage != nil {
			if estimated := w.slippage.EstimateBps(tokenID, qty); estimated > w.cfg.MaxUnwindSlippageBps {
				res.Residual = append(res.Residual, Residual{TokenID: tokenID, Qty: qty, Reason: "max unwind slippage exceeded"})
				continue
			}
		}

		if err := w.unwinder.Unwind(ctx, tokenID, qty, side); err != nil {
			res.Errors = append(res.Errors, err)
			res.Residual = append(res.Residual, Residual{TokenID: tokenID, Qty: qty, Reason: "unwind submit failed"})
			continue
		}
		res.UnwindRequested++
	}
	return res
}
