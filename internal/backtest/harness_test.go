package backtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanun0323/polyarb/internal/chaos"
	"github.com/yanun0323/polyarb/internal/codec"
	"github.com/yanun0323/polyarb/internal/og"
	"github.com/yanun0323/polyarb/internal/recorder"
	"github.com/yanun0323/polyarb/internal/risk"
	"github.com/yanun0323/polyarb/internal/schema"
)

// writeSnapshotRecord appends one EventBookSnapshot record through a
// real recorder.Writer so the harness test exercises the same wire
// format the live engine records.
func writeSnapshotRecord(t *testing.T, dir string, seq uint64, snap schema.BookSnapshot) {
	t.Helper()
	w, err := recorder.NewWriter(recorder.DefaultConfig(dir))
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer func() { require.NoError(t, w.Close()) }()

	payload := codec.EncodeBookSnapshot(nil, snap)
	require.NoError(t, w.TryAppend(schema.EventHeader{
		Type: schema.EventBookSnapshot,
		Seq:  seq,
	}, payload))
}

func TestHarnessRunFillsCrossingIntent(t *testing.T) {
	dir := t.TempDir()
	writeSnapshotRecord(t, dir, 1, schema.BookSnapshot{
		TokenID: 1,
		MarketID: 7,
		Asks:    []schema.BookLevel{{Price: 4800, Size: 10}},
		Bids:    []schema.BookLevel{{Price: 4700, Size: 10}},
	})

	books := map[schema.TokenID][]schema.BookLevel{}
	asked := false
	update := func(snap schema.BookSnapshot) {
		books[snap.TokenID] = snap.Asks
	}
	marketOf := func(tokenID schema.TokenID) schema.MarketID { return 7 }
	levelsFor := func(tokenID schema.TokenID, side schema.OrderSide) []schema.BookLevel {
		return books[tokenID]
	}
	onDecide := func(marketID schema.MarketID) []schema.OrderIntent {
		if asked {
			return nil
		}
		asked = true
		return []schema.OrderIntent{{
			SymbolID: 1,
			Side:     schema.OrderSideBuy,
			Type:     schema.OrderTypeLimit,
			Price:    4800,
			Qty:      5,
		}}
	}

	orders := og.NewStateMachine()
	riskMgr := risk.NewManager(risk.NewEngine(risk.Config{}), risk.BreakerConfig{})
	h := New(Config{Playback: recorder.PlaybackConfig{Dir: dir, Speed: 0}, FeeBps: 10}, orders, riskMgr, onDecide)

	fills, err := h.Run(context.Background(), update, marketOf, levelsFor)
	require.NoError(t, err)
	require.Len(t, fills, 1)
	require.Equal(t, schema.Quantity(5), fills[0].Fill.Qty)
	require.Equal(t, schema.Price(4800), fills[0].Fill.Price)

	order, ok := orders.Order(fills[0].Fill.OrderID)
	require.True(t, ok)
	require.Equal(t, og.OrderStateFilled, order.State)
}

func TestHarnessSkipsNonBookSnapshotEvents(t *testing.T) {
	dir := t.TempDir()
	w, err := recorder.NewWriter(recorder.DefaultConfig(dir))
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.TryAppend(schema.EventHeader{Type: schema.EventFill, Seq: 1}, codec.EncodeFill(nil, schema.Fill{OrderID: 1, SymbolID: 1, Qty: 1})))
	require.NoError(t, w.Close())

	called := false
	onDecide := func(marketID schema.MarketID) []schema.OrderIntent {
		called = true
		return nil
	}
	orders := og.NewStateMachine()
	riskMgr := risk.NewManager(risk.NewEngine(risk.Config{}), risk.BreakerConfig{})
	h := New(Config{Playback: recorder.PlaybackConfig{Dir: dir, Speed: 0}, FeeBps: 0}, orders, riskMgr, onDecide)

	fills, err := h.Run(context.Background(),
		func(schema.BookSnapshot) {},
		func(schema.TokenID) schema.MarketID { return 0 },
		func(schema.TokenID, schema.OrderSide) []schema.BookLevel { return nil })
	require.NoError(t, err)
	require.Empty(t, fills)
	require.False(t, called)
}

func TestHarnessChaosDropRateOneDiscardsEveryRecord(t *testing.T) {
	dir := t.TempDir()
	writeSnapshotRecord(t, dir, 1, schema.BookSnapshot{
		TokenID: 1,
		MarketID: 7,
		Asks:    []schema.BookLevel{{Price: 4800, Size: 10}},
	})

	called := false
	onDecide := func(marketID schema.MarketID) []schema.OrderIntent {
		called = true
		return nil
	}
	orders := og.NewStateMachine()
	riskMgr := risk.NewManager(risk.NewEngine(risk.Config{}), risk.BreakerConfig{})
	chaosEngine, err := chaos.NewEngine(chaos.Config{Seed: 1, DropRate: 1})
	require.NoError(t, err)
	h := New(Config{Playback: recorder.PlaybackConfig{Dir: dir, Speed: 0}, FeeBps: 0, Chaos: chaosEngine}, orders, riskMgr, onDecide)

	fills, err := h.Run(context.Background(),
		func(schema.BookSnapshot) {},
		func(schema.TokenID) schema.MarketID { return 0 },
		func(schema.TokenID, schema.OrderSide) []schema.BookLevel { return nil })
	require.NoError(t, err)
	require.Empty(t, fills)
	require.False(t, called)
}
