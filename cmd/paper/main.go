// Command paper runs the full single-writer core against a synthetic
// book feed instead of a live venue connection, for exercising the
// strategy, risk, and order-gateway path without real credentials or
// network access. Grounded on cmd/engine/main.go's wiring shape, with
// the venue feed goroutines swapped for an internal/mdg generator and
// a fill-on-submit paper broker in place of internal/venue.RESTClient.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"github.com/yanun0323/polyarb/internal/bus"
	"github.com/yanun0323/polyarb/internal/command"
	"github.com/yanun0323/polyarb/internal/core"
	"github.com/yanun0323/polyarb/internal/decay"
	"github.com/yanun0323/polyarb/internal/mdg"
	"github.com/yanun0323/polyarb/internal/obs"
	"github.com/yanun0323/polyarb/internal/og"
	"github.com/yanun0323/polyarb/internal/ops"
	"github.com/yanun0323/polyarb/internal/recorder"
	"github.com/yanun0323/polyarb/internal/risk"
	"github.com/yanun0323/polyarb/internal/schema"
	"github.com/yanun0323/polyarb/internal/slippage"
)

const (
	exitOK          = 0
	exitConfigError = 1
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to JSON market/threshold config")
	walDir := flag.String("wal-dir", "./wal-paper", "WAL segment directory")
	tickInterval := flag.Duration("tick-interval", 250*time.Millisecond, "core loop maintenance tick interval")
	genInterval := flag.Duration("gen-interval", 200*time.Millisecond, "synthetic tick generation interval")
	baseAsk := flag.Int64("base-ask", 5100, "baseline ask price in bps, per side")
	baseSize := flag.Int64("base-size", 100, "baseline synthetic book size")
	spread := flag.Int64("spread", 20, "synthetic bid/ask spread in bps")
	arbBiasBps := flag.Int64("arb-bias-bps", 150, "bps shaved off the ask every 5th tick to synthesize an arbitrage window; 0 disables")
	flag.Parse()

	if *configPath == "" {
		logs.Errorf("run, err: %+v", errors.New("-config is required"))
		return exitConfigError
	}

	loaded, err := ops.Load(*configPath)
	if err != nil {
		logs.Errorf("run load config, err: %+v", err)
		return exitConfigError
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry, err := ops.BuildRegistry(loaded)
	if err != nil {
		logs.Errorf("run build registry, err: %+v", err)
		return exitConfigError
	}
	cfg := ops.NewRuntimeConfig(loaded)

	generator, err := mdg.NewGenerator(registry, 1, *baseAsk, *baseSize, *spread, *arbBiasBps)
	if err != nil {
		logs.Errorf("run new generator, err: %+v", err)
		return exitConfigError
	}
	normalizer := mdg.NewNormalizer()

	wal, err := recorder.NewWriter(recorder.DefaultConfig(*walDir))
	if err != nil {
		logs.Errorf("run new wal writer, err: %+v", err)
		return exitConfigError
	}
	if err := wal.Start(ctx); err != nil {
		logs.Errorf("run start wal writer, err: %+v", err)
		return exitConfigError
	}
	defer func() {
		if err := wal.Close(); err != nil {
			logs.Errorf("run close wal writer, err: %+v", err)
		}
	}()

	dedupe := og.NewDeduper()
	orders := og.NewStateMachine()
	churn := og.NewChurnGovernor(loaded.TTLs.MaxChurnsPerWindow, loaded.TTLs.ChurnWindowSecs)
	rateLimit := og.NewRateLimiter(float64(loaded.TTLs.MaxChurnsPerWindow)*2, float64(loaded.TTLs.MaxChurnsPerWindow), 1)
	ttl := og.NewTTLScanner(loaded.TTLs.OrderTTLSecs)
	positions := risk.NewPositionBook()
	riskMgr := risk.NewManager(risk.NewEngine(risk.Config{}), loaded.Breaker)
	decayGuard := decay.New(decay.Config{MinQuality: 0.5, MinSamples: 30})
	slippageModel := slippage.NewModel(slippage.Config{BaselineBpsPerUnit: 1, FloorBps: 5, Multiplier: 1.5})
	commands := command.NewBus(64)
	priorityBus := bus.NewPriorityQueue(1024, 4096)
	metrics := obs.NewMetrics()

	// broker needs engine to deliver the synthetic fill that follows
	// every simulated ack; engine needs a dispatcher wired to broker.
	// Same forward-reference pattern as cmd/engine/main.go.
	var engine *core.Engine
	broker := &paperBroker{onFill: func(f schema.Fill) { engine.OnFill(f) }}
	dispatcher := og.NewDispatcher(2, 64, broker, broker, func(ack schema.OrderAck) {
		engine.OnAck(ack)
	})
	dispatcher.Run(ctx)

	engine = core.New(core.Deps{
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
		Canceller:  broker,
		Commands:   commands,
		Config:     cfg,
		Bus:        priorityBus,
		WAL:        wal,
		Metrics:    metrics,
		Source:     1,
	})

	go generateTicks(ctx, generator, normalizer, engine, *genInterval)

	engine.Run(ctx, *tickInterval)

	logs.Infof("run paper session ended, safety mode: %v, pnl: %+v", riskMgr.Mode(), riskMgr.PnL())
	return exitOK
}

// generateTicks drives synthetic book snapshots into the engine at a
// fixed cadence until ctx is cancelled.
func generateTicks(ctx context.Context, gen *mdg.Generator, norm *mdg.Normalizer, engine *core.Engine, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var seq uint64
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			seq++
			raw := gen.Next(now)
			_, snap, err := norm.Normalize(seq, raw)
			if err != nil {
				logs.Errorf("generate ticks normalize, err: %+v", err)
				continue
			}
			ts := now.UnixNano()
			engine.OnBookSnapshot(snap, ts, ts)
		}
	}
}

// paperBroker implements og.Submitter and og.Canceller by acknowledging
// every order as immediately and fully filled at its requested price,
// with no venue round trip. Submit synthesizes the Fill event itself
// since the real venue feed normally delivers acks and fills on
// separate callbacks that this tool has no feed for.
type paperBroker struct {
	nextOrderID uint64
	onFill      func(schema.Fill)
}

func (b *paperBroker) Submit(_ context.Context, intent schema.OrderIntent) (schema.OrderAck, error) {
	b.onFill(schema.Fill{
		OrderID:  intent.OrderID,
		SymbolID: intent.SymbolID,
		Side:     intent.Side,
		Price:    intent.Price,
		Qty:      intent.Qty,
	})
	return schema.OrderAck{
		OrderID:   intent.OrderID,
		SymbolID:  intent.SymbolID,
		Status:    schema.OrderAckStatusFilled,
		Price:     intent.Price,
		Qty:       intent.Qty,
		LeavesQty: 0,
	}, nil
}

func (b *paperBroker) Cancel(_ context.Context, orderID uint64) (schema.OrderAck, error) {
	return schema.OrderAck{OrderID: orderID, Status: schema.OrderAckStatusCanceled}, nil
}
