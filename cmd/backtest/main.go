// Command backtest replays a recorded WAL through the same decision
// core the live engine runs, via internal/backtest.Harness, and
// reports the resulting fills and position PnL. Grounded on the
// teacher's cmd/tools/replay virtual-clock playback and on
// cmd/trader's runReplay branch.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yanun0323/logs"

	"github.com/yanun0323/polyarb/internal/backtest"
	"github.com/yanun0323/polyarb/internal/book"
	"github.com/yanun0323/polyarb/internal/chaos"
	"github.com/yanun0323/polyarb/internal/decay"
	"github.com/yanun0323/polyarb/internal/og"
	"github.com/yanun0323/polyarb/internal/ops"
	"github.com/yanun0323/polyarb/internal/recorder"
	"github.com/yanun0323/polyarb/internal/risk"
	"github.com/yanun0323/polyarb/internal/schema"
	"github.com/yanun0323/polyarb/internal/slippage"
	"github.com/yanun0323/polyarb/internal/strategy"
)

const exitOK, exitConfigError = 0, 1

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to JSON market/threshold config")
	walDir := flag.String("wal-dir", "", "WAL directory to replay")
	speed := flag.Float64("speed", 0, "playback speed multiplier; 0 replays as fast as possible, ignoring recorded timing")
	recoverSnapshot := flag.String("recover-snapshot", "", "optional snapshot path to resume from before replay")
	outSnapshot := flag.String("out-snapshot", "", "path to write a position snapshot after the run completes")
	chaosSeed := flag.Int64("chaos-seed", 0, "chaos RNG seed; 0 derives one from the current time")
	chaosDropRate := flag.Float64("chaos-drop-rate", 0, "probability each WAL record is dropped before reaching the decision core")
	chaosDuplicateRate := flag.Float64("chaos-duplicate-rate", 0, "probability each surviving record is delivered twice")
	chaosReorderWindow := flag.Int("chaos-reorder-window", 1, "buffer this many records and emit them out of order; 1 disables reordering")
	chaosMaxDelay := flag.Duration("chaos-max-delay", 0, "maximum simulated delivery delay applied to each record")
	flag.Parse()

	if *configPath == "" || *walDir == "" {
		logs.Errorf("run, err: %+v", argErr("-config and -wal-dir are required"))
		return exitConfigError
	}

	loaded, err := ops.Load(*configPath)
	if err != nil {
		logs.Errorf("run load config, err: %+v", err)
		return exitConfigError
	}
	registry, err := ops.BuildRegistry(loaded)
	if err != nil {
		logs.Errorf("run build registry, err: %+v", err)
		return exitConfigError
	}
	cfg := ops.NewRuntimeConfig(loaded)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orders := og.NewStateMachine()
	riskMgr := risk.NewManager(risk.NewEngine(risk.Config{}), loaded.Breaker)
	positions := risk.NewPositionBook()
	decayGuard := decay.New(decay.Config{MinQuality: 0.5, MinSamples: 30})
	slippageModel := slippage.NewModel(slippage.Config{BaselineBpsPerUnit: 1, FloorBps: 5, Multiplier: 1.5})

	var lastSeq uint64
	var lastEventTs int64
	if *recoverSnapshot != "" {
		recovered, err := backtest.RecoverPositions(ctx, backtest.RecoverConfig{
			WALDir:       *walDir,
			SnapshotPath: *recoverSnapshot,
		})
		if err != nil {
			logs.Errorf("run recover positions, err: %+v", err)
			return exitConfigError
		}
		positions.Restore(recovered.Positions.Entries())
		lastSeq, lastEventTs = recovered.LastSeq, recovered.LastEventTs
		logs.Infof("recovered positions=%d last_seq=%d", positions.Count(), lastSeq)
	}

	books := make(map[schema.TokenID]*book.State)
	update := func(snap schema.BookSnapshot) {
		st, ok := books[snap.TokenID]
		if !ok {
			st = book.NewState(16)
			books[snap.TokenID] = st
		}
		st.Reset(snap)
	}
	marketOf := func(tokenID schema.TokenID) schema.MarketID {
		mkt, ok := registry.MarketForToken(tokenID)
		if !ok {
			return 0
		}
		return mkt.ID
	}
	levelsFor := func(tokenID schema.TokenID, side schema.OrderSide) []schema.BookLevel {
		st, ok := books[tokenID]
		if !ok {
			return nil
		}
		bids, asks := st.View()
		if side == schema.OrderSideBuy {
			return asks
		}
		return bids
	}
	onDecide := func(marketID schema.MarketID) []schema.OrderIntent {
		mkt, ok := registry.Market(marketID)
		if !ok {
			return nil
		}
		yesBook, ok := books[mkt.YesToken]
		if !ok {
			return nil
		}
		noBook, ok := books[mkt.NoToken]
		if !ok {
			return nil
		}
		_, yesAsk, yesOK := yesBook.BestBidAsk()
		_, noAsk, noOK := noBook.BestBidAsk()
		if !yesOK || !noOK {
			return nil
		}

		loadedCfg := cfg.Load()
		decision := strategy.Evaluate(mkt.ID, strategy.BookView{
			YesAsk:     yesAsk.Price,
			NoAsk:      noAsk.Price,
			YesAskSize: yesAsk.Size,
			NoAskSize:  noAsk.Size,
			YesTokenID: mkt.YesToken,
			NoTokenID:  mkt.NoToken,
			Resyncing:  yesBook.Resyncing() || noBook.Resyncing(),
		}, strategy.RiskView{SafetyMode: riskMgr.Mode()}, strategy.DecayView{Disabled: decayGuard.Disabled(mkt.ID)},
			slippageModel.FailureBuffer(mkt.ID), strategy.Config{
				MinEdgeBps:    loadedCfg.Thresholds.MinEdgeBps,
				MinOrderSize:  mkt.MinOrderSize,
				FeeRateBps:    mkt.FeeBps,
				RequestedSize: schema.Quantity(loadedCfg.Thresholds.RequestedSize),
			})
		if !decision.Fire {
			return nil
		}
		return []schema.OrderIntent{decision.Yes, decision.No}
	}

	var chaosEngine *chaos.Engine
	if *chaosDropRate > 0 || *chaosDuplicateRate > 0 || *chaosReorderWindow > 1 || *chaosMaxDelay > 0 {
		chaosEngine, err = chaos.NewEngine(chaos.Config{
			Seed:          *chaosSeed,
			DropRate:      *chaosDropRate,
			DuplicateRate: *chaosDuplicateRate,
			ReorderWindow: *chaosReorderWindow,
			MaxDelay:      *chaosMaxDelay,
		})
		if err != nil {
			logs.Errorf("run new chaos engine, err: %+v", err)
			return exitConfigError
		}
	}

	h := backtest.New(backtest.Config{
		Playback: recorder.PlaybackConfig{
			Dir:   *walDir,
			Speed: *speed,
		},
		FeeBps: loaded.Markets[0].FeeBps,
		Chaos:  chaosEngine,
	}, orders, riskMgr, onDecide)

	fills, err := h.Run(ctx, update, marketOf, levelsFor)
	if err != nil {
		logs.Errorf("run harness, err: %+v", err)
		return exitConfigError
	}

	for _, f := range fills {
		pos := positions.ApplyFill(schema.TokenID(f.Fill.SymbolID), f.Fill.Side, f.Fill.Price, f.Fill.Qty)
		if f.Header.Seq > lastSeq {
			lastSeq = f.Header.Seq
		}
		if f.Header.TsEvent > lastEventTs {
			lastEventTs = f.Header.TsEvent
		}
		logs.Infof("fill token=%d side=%v price=%d qty=%d net=%d realized_pl=%d",
			f.Fill.SymbolID, f.Fill.Side, f.Fill.Price, f.Fill.Qty, pos.NetQty, pos.RealizedPL)
	}

	logs.Infof("backtest complete: fills=%d total_realized_pl=%d", len(fills), positions.TotalRealizedPL())

	if *outSnapshot != "" {
		snap := backtest.BuildSnapshot(positions.Entries(), lastSeq, lastEventTs, time.Now().UnixNano())
		if err := backtest.WriteSnapshot(*outSnapshot, snap); err != nil {
			logs.Errorf("run write snapshot, err: %+v", err)
			return exitConfigError
		}
	}

	return exitOK
}

type argError string

func (e argError) Error() string { return string(e) }

func argErr(msg string) error { return argError(msg) }
