package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanun0323/polyarb/internal/bus"
	"github.com/yanun0323/polyarb/internal/codec"
	"github.com/yanun0323/polyarb/internal/command"
	"github.com/yanun0323/polyarb/internal/decay"
	"github.com/yanun0323/polyarb/internal/market"
	"github.com/yanun0323/polyarb/internal/obs"
	"github.com/yanun0323/polyarb/internal/og"
	"github.com/yanun0323/polyarb/internal/ops"
	"github.com/yanun0323/polyarb/internal/recorder"
	"github.com/yanun0323/polyarb/internal/risk"
	"github.com/yanun0323/polyarb/internal/schema"
	"github.com/yanun0323/polyarb/internal/slippage"
)

// fakeSubmitter/fakeCanceller stand in for venue.RESTClient so tests
// never touch the network. Both record every call under a mutex since
// Dispatcher invokes them from worker goroutines.
type fakeSubmitter struct {
	mu      sync.Mutex
	intents []schema.OrderIntent
}

func (f *fakeSubmitter) Submit(ctx context.Context, intent schema.OrderIntent) (schema.OrderAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intents = append(f.intents, intent)
	return schema.OrderAck{OrderID: intent.OrderID, SymbolID: intent.SymbolID, Status: schema.OrderAckStatusAcked, Qty: intent.Qty}, nil
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.intents)
}

type fakeCanceller struct {
	mu       sync.Mutex
	canceled []uint64
}

func (f *fakeCanceller) Cancel(ctx context.Context, orderID uint64) (schema.OrderAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.canceled = append(f.canceled, orderID)
	return schema.OrderAck{OrderID: orderID, Status: schema.OrderAckStatusCanceled}, nil
}

func (f *fakeCanceller) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.canceled)
}

const (
	testYesToken schema.TokenID = 101
	testNoToken  schema.TokenID = 102
)

func newTestEngine(t *testing.T) (*Engine, *fakeSubmitter, *fakeCanceller) {
	t.Helper()

	registry := market.NewRegistry(schema.LabelModePermissive)
	_, err := registry.Upsert(market.UpsertSpec{
		ConditionID:  "cond-1",
		YesTokenID:   testYesToken,
		NoTokenID:    testNoToken,
		MinOrderSize: 1,
		FeeBps:       0,
		Active:       true,
	})
	require.NoError(t, err)

	submitter := &fakeSubmitter{}
	canceller := &fakeCanceller{}

	riskMgr := risk.NewManager(risk.NewEngine(risk.Config{}), risk.BreakerConfig{})
	positions := risk.NewPositionBook()
	orders := og.NewStateMachine()
	dedupe := og.NewDeduper()
	churn := og.NewChurnGovernor(20, 60)
	rateLimit := og.NewRateLimiter(100, 100, 1)
	ttl := og.NewTTLScanner(30)
	commands := command.NewBus(16)
	loaded := ops.Loaded{
		Thresholds: ops.ThresholdConfig{MinEdgeBps: 50, RequestedSize: 10},
		Flatten:    ops.FlattenModeCancelOnly,
	}
	cfg := ops.NewRuntimeConfig(loaded)
	priorityBus := bus.NewPriorityQueue(32, 32)
	slippageModel := slippage.NewModel(slippage.Config{})
	decayGuard := decay.New(decay.Config{MinQuality: 0, MinSamples: 1000})
	metrics := obs.NewMetrics()

	dispatcher := og.NewDispatcher(1, 16, submitter, canceller, func(ack schema.OrderAck) {
		// delivered straight back onto the bus, mirroring how the real
		// wiring connects Dispatcher's onAck to Engine.OnAck.
	})
	ctx, cancel := context.WithCancel(context.Background())
	dispatcher.Run(ctx)
	t.Cleanup(cancel)

	e := New(Deps{
		Registry:   registry,
		Slippage:   slippageModel,
		Decay:      decayGuard,
		Risk:       riskMgr,
		Positions:  positions,
		Orders:     orders,
		Dedupe:     dedupe,
		Churn:      churn,
		RateLimit:  rateLimit,
		TTL:        ttl,
		Dispatcher: dispatcher,
		Canceller:  canceller,
		Commands:   commands,
		Config:     cfg,
		Bus:        priorityBus,
		Metrics:    metrics,
		Source:     1,
	})
	return e, submitter, canceller
}

func snapshotFor(token schema.TokenID, ask schema.Price, size schema.Quantity, seq uint64) schema.BookSnapshot {
	return schema.BookSnapshot{
		TokenID: token,
		Seq:     seq,
		Bids:    []schema.BookLevel{{Price: ask - 1, Size: size}},
		Asks:    []schema.BookLevel{{Price: ask, Size: size}},
	}
}

// applyBookSnapshot feeds a snapshot through the same decode path
// OnBookSnapshot's published event would take, without needing a
// goroutine to drain the bus: tests call the single-writer handler
// directly since they already run on what would be that goroutine.
func applyBookSnapshot(e *Engine, snap schema.BookSnapshot, tsEvent int64) {
	header := schema.NewHeader(schema.EventBookSnapshot, e.source, 0, tsEvent, tsEvent)
	e.handleBookSnapshot(header, codec.EncodeBookSnapshot(nil, snap))
}

func applyFill(e *Engine, fill schema.Fill, tsEvent int64) {
	header := schema.NewHeader(schema.EventFill, e.source, 0, tsEvent, tsEvent)
	e.handleFill(header, codec.EncodeFill(nil, fill))
}

func TestEngineFiresPairedOrdersOnProfitableBook(t *testing.T) {
	e, submitter, _ := newTestEngine(t)

	// yesAsk + noAsk = 9000, implying a 1000bps edge, well above the
	// 50bps threshold configured in newTestEngine.
	applyBookSnapshot(e, snapshotFor(testYesToken, 4500, 100, 1), 1)
	applyBookSnapshot(e, snapshotFor(testNoToken, 4500, 100, 1), 2)

	require.Len(t, e.entries, 1)
	require.Eventually(t, func() bool { return submitter.count() == 2 }, 200*time.Millisecond, 5*time.Millisecond)
}

func TestEngineSkipsUnprofitableBook(t *testing.T) {
	e, submitter, _ := newTestEngine(t)

	// yesAsk + noAsk = 9990, only 10bps of edge: below the 50bps floor.
	applyBookSnapshot(e, snapshotFor(testYesToken, 5000, 100, 1), 1)
	applyBookSnapshot(e, snapshotFor(testNoToken, 4990, 100, 1), 2)

	require.Equal(t, 0, submitter.count())
	require.Empty(t, e.entries)
}

func TestEngineAttributesPairedFillToDecayAndSlippage(t *testing.T) {
	e, _, _ := newTestEngine(t)

	applyBookSnapshot(e, snapshotFor(testYesToken, 4500, 100, 1), 1)
	applyBookSnapshot(e, snapshotFor(testNoToken, 4500, 100, 1), 2)
	require.Len(t, e.entries, 1)

	var correlationID string
	for id := range e.entries {
		correlationID = id
	}
	entry := e.entries[correlationID]
	require.Equal(t, testYesToken, entry.yesTokenID)
	require.Equal(t, testNoToken, entry.noTokenID)

	// Order IDs were handed out in submitPair starting at 1: the YES
	// leg first, then the NO leg.
	applyFill(e, schema.Fill{OrderID: 1, SymbolID: uint32(testYesToken), Side: schema.OrderSideBuy, Price: 4500, Qty: 100}, 3)
	applyFill(e, schema.Fill{OrderID: 2, SymbolID: uint32(testNoToken), Side: schema.OrderSideBuy, Price: 4500, Qty: 100}, 4)

	require.Empty(t, e.entries, "entry should be consumed once both legs have filled")
}

func TestEngineForcesSafeOnFillForUnknownOrder(t *testing.T) {
	e, _, _ := newTestEngine(t)
	require.Equal(t, schema.SafetyModeRunning, e.risk.Mode())

	applyFill(e, schema.Fill{OrderID: 999, SymbolID: uint32(testYesToken), Side: schema.OrderSideBuy, Price: 4500, Qty: 10}, 1)

	require.Equal(t, schema.SafetyModeSafe, e.risk.Mode())
}

func TestEngineTickHandlesPauseAndResumeCommands(t *testing.T) {
	e, _, _ := newTestEngine(t)

	require.NoError(t, e.commands.Submit(schema.Command{Type: schema.CommandPause, IssuedAt: 1}))
	e.Tick(time.Unix(1, 0))
	require.Equal(t, schema.SafetyModePaused, e.risk.Mode())

	require.NoError(t, e.commands.Submit(schema.Command{Type: schema.CommandResume, IssuedAt: 2}))
	e.Tick(time.Unix(2, 0))
	require.Equal(t, schema.SafetyModeRunning, e.risk.Mode())
}

func TestEngineTickHandlesKillSwitchCommand(t *testing.T) {
	e, _, _ := newTestEngine(t)

	require.NoError(t, e.commands.Submit(schema.Command{Type: schema.CommandKillSwitch, IssuedAt: 1}))
	e.Tick(time.Unix(1, 0))
	require.Equal(t, schema.SafetyModeSafe, e.risk.Mode())
}

func TestEngineTickHandlesSetMinEdgeCommand(t *testing.T) {
	e, _, _ := newTestEngine(t)

	require.NoError(t, e.commands.Submit(schema.Command{Type: schema.CommandSetMinEdge, MarketID: 1, Param: 200, IssuedAt: 1}))
	e.Tick(time.Unix(1, 0))
	require.Equal(t, int64(200), e.config.Load().Thresholds.MinEdgeBps)
}

func TestEngineTickCancelsExpiredOrders(t *testing.T) {
	e, _, canceller := newTestEngine(t)

	intent := schema.OrderIntent{OrderID: 1, SymbolID: uint32(testYesToken), Side: schema.OrderSideBuy, Price: 4500, Qty: 10}
	_, err := e.orders.ApplyIntent(intent)
	require.NoError(t, err)
	_, err = e.orders.Dispatch(intent.OrderID, 1)
	require.NoError(t, err)
	_, err = e.orders.ApplyAck(schema.OrderAck{OrderID: intent.OrderID, Status: schema.OrderAckStatusAcked})
	require.NoError(t, err)

	// ttl is 30s, submitted at t=1; ticking at t=60 should expire it.
	e.Tick(time.Unix(60, 0))

	require.Eventually(t, func() bool { return canceller.count() == 1 }, 200*time.Millisecond, 5*time.Millisecond)
}

func TestEngineUnwindSubmitsFlaggedMarketOrder(t *testing.T) {
	e, submitter, _ := newTestEngine(t)

	err := e.Unwind(context.Background(), testYesToken, 5, schema.OrderSideSell)
	require.NoError(t, err)

	// Unwind dispatches asynchronously through the worker pool; give it
	// a moment to land, then confirm the flag carried through.
	require.Eventually(t, func() bool { return submitter.count() == 1 }, 200*time.Millisecond, 5*time.Millisecond)
	require.Equal(t, schema.OrderIntentFlagUnwind, submitter.intents[0].Flags)
}

// TestEngineAppendsBookSnapshotsAndMarketDataToWAL confirms both the
// decision-relevant book snapshot stream and the purely informational
// trade-print stream are persisted, so a backtest replaying this WAL
// sees the same book history the live run acted on.
func TestEngineAppendsBookSnapshotsAndMarketDataToWAL(t *testing.T) {
	dir := t.TempDir()
	wal, err := recorder.NewWriter(recorder.DefaultConfig(dir))
	require.NoError(t, err)
	require.NoError(t, wal.Start(context.Background()))

	e, _, _ := newTestEngine(t)
	e.wal = wal

	applyBookSnapshot(e, snapshotFor(testYesToken, 4500, 100, 1), 1)
	header := schema.NewHeader(schema.EventMarketData, e.source, 0, 2, 2)
	e.handleMarketData(header, codec.EncodeMarketData(nil, schema.MarketData{SymbolID: uint32(testYesToken), Kind: schema.MarketDataTrade, Price: 4500, Size: 10}))

	require.NoError(t, wal.Close())

	pb, err := recorder.NewPlayback(recorder.PlaybackConfig{Dir: dir})
	require.NoError(t, err)

	var types []schema.EventType
	require.NoError(t, pb.Run(context.Background(), func(h schema.EventHeader, payload []byte) error {
		types = append(types, h.Type)
		return nil
	}))
	require.Contains(t, types, schema.EventBookSnapshot)
	require.Contains(t, types, schema.EventMarketData)
}
