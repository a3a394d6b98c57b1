package backtest

import (
	"context"

	"github.com/yanun0323/polyarb/internal/chaos"
	"github.com/yanun0323/polyarb/internal/codec"
	"github.com/yanun0323/polyarb/internal/og"
	"github.com/yanun0323/polyarb/internal/recorder"
	"github.com/yanun0323/polyarb/internal/risk"
	"github.com/yanun0323/polyarb/internal/schema"
)

// Config controls a harness run.
type Config struct {
	Playback recorder.PlaybackConfig
	FeeBps   int64
	// Chaos, if set, runs every replayed record through a chaos.Engine
	// before it reaches the decision core, so a single recorded WAL can
	// be stress-tested against drops, duplicates, reordering, and
	// delayed delivery the way a flaky live venue feed would behave.
	Chaos *chaos.Engine
}

// Harness replays a recorded WAL through the live decision core: every
// EventBookSnapshot record rebuilds the relevant book side, every book
// update is offered to the caller-supplied strategy hook, and any
// resulting order intents are settled by the Matcher instead of a live
// venue round trip. Fills flow back into the same og.StateMachine the
// production engine uses. The risk.Manager passed to New is held on the
// harness but is not consulted or updated during replay.
type Harness struct {
	cfg      Config
	matcher  *Matcher
	orders   *og.StateMachine
	risk     *risk.Manager
	nextID   uint64
	onDecide func(schema.MarketID) []schema.OrderIntent
}

// New constructs a backtest harness. onDecide is called with the id of
// the market whose book just changed and returns zero or more order
// intents to attempt to fill; it is expected to read its own book view
// (however the caller chooses to derive it) the same way the live
// strategy hook does.
func New(cfg Config, orders *og.StateMachine, riskMgr *risk.Manager, onDecide func(schema.MarketID) []schema.OrderIntent) *Harness {
	return &Harness{
		cfg:      cfg,
		matcher:  NewMatcher(cfg.FeeBps),
		orders:   orders,
		risk:     riskMgr,
		onDecide: onDecide,
	}
}

// Fill is emitted for every simulated execution during a run.
type Fill struct {
	Header schema.EventHeader
	Fill   schema.Fill
}

// Run replays the configured WAL directory. Every EventBookSnapshot
// record is first handed to update so the caller can fold it into
// whatever book representation it keeps (the harness itself is
// book-shape agnostic — the live engine's cmd wiring hands it the same
// internal/book.State it runs live), then onDecide is asked for any
// resulting order intents. Each intent is matched against levelsFor's
// opposing book side for the intent's own token — the same side a live
// venue would cross against. It returns every simulated fill in replay
// order for post-run PnL accounting.
func (h *Harness) Run(
	ctx context.Context,
	update func(schema.BookSnapshot),
	marketOf func(tokenID schema.TokenID) schema.MarketID,
	levelsFor func(tokenID schema.TokenID, side schema.OrderSide) []schema.BookLevel,
) ([]Fill, error) {
	pb, err := recorder.NewPlayback(h.cfg.Playback)
	if err != nil {
		return nil, err
	}

	var fills []Fill
	err = pb.Run(ctx, func(header schema.EventHeader, payload []byte) error {
		outputs := []chaos.Event{{Header: header, Payload: payload}}
		if h.cfg.Chaos != nil {
			outputs = h.cfg.Chaos.Process(chaos.Event{Header: header, Payload: payload})
		}
		for _, ev := range outputs {
			h.applyEvent(ev.Header, ev.Payload, update, marketOf, levelsFor, &fills)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if h.cfg.Chaos != nil {
		for _, ev := range h.cfg.Chaos.Flush() {
			h.applyEvent(ev.Header, ev.Payload, update, marketOf, levelsFor, &fills)
		}
	}
	return fills, nil
}

// applyEvent decodes and applies a single book snapshot record (after
// any chaos transformation) to the book, then runs the strategy hook
// and settles any resulting intents against the matcher.
func (h *Harness) applyEvent(
	header schema.EventHeader,
	payload []byte,
	update func(schema.BookSnapshot),
	marketOf func(tokenID schema.TokenID) schema.MarketID,
	levelsFor func(tokenID schema.TokenID, side schema.OrderSide) []schema.BookLevel,
	fills *[]Fill,
) {
	if header.Type != schema.EventBookSnapshot {
		return
	}
	snap, ok := codec.DecodeBookSnapshot(payload)
	if !ok {
		return
	}
	update(snap)
	marketID := marketOf(snap.TokenID)

	for _, intent := range h.onDecide(marketID) {
		h.nextID++
		intent.OrderID = h.nextID
		if _, err := h.orders.ApplyIntent(intent); err != nil {
			continue
		}
		levels := levelsFor(schema.TokenID(intent.SymbolID), intent.Side)
		result := h.matcher.Match(intent, levels)
		if result.FilledQty == 0 {
			continue
		}
		fill := schema.Fill{
			OrderID:  intent.OrderID,
			SymbolID: intent.SymbolID,
			Side:     intent.Side,
			Price:    result.FillPrice,
			Qty:      result.FilledQty,
			Fee:      result.Fee,
		}
		if _, err := h.orders.ApplyFill(fill); err != nil {
			continue
		}
		*fills = append(*fills, Fill{Header: header, Fill: fill})
	}
}
