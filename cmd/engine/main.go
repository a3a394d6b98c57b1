// Command engine is the live-trading entrypoint: it wires every
// component named in the component table into a single core.Engine and
// runs it until a signal or an unrecoverable condition stops it.
// Grounded on the teacher's cmd/trader/main.go flag/signal/wiring shape,
// generalised from a single-exchange executor to the paired YES/NO
// arbitrage loop.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"github.com/yanun0323/polyarb/internal/bus"
	"github.com/yanun0323/polyarb/internal/command"
	"github.com/yanun0323/polyarb/internal/core"
	"github.com/yanun0323/polyarb/internal/decay"
	"github.com/yanun0323/polyarb/internal/obs"
	"github.com/yanun0323/polyarb/internal/og"
	"github.com/yanun0323/polyarb/internal/ops"
	"github.com/yanun0323/polyarb/internal/recorder"
	"github.com/yanun0323/polyarb/internal/risk"
	"github.com/yanun0323/polyarb/internal/schema"
	"github.com/yanun0323/polyarb/internal/signer"
	"github.com/yanun0323/polyarb/internal/slippage"
	"github.com/yanun0323/polyarb/internal/store"
	"github.com/yanun0323/polyarb/internal/venue"
	"github.com/yanun0323/polyarb/internal/watchdog"
	"github.com/yanun0323/polyarb/pkg/conn"
	pkgws "github.com/yanun0323/polyarb/pkg/websocket"
)

// exit codes per the external interfaces contract.
const (
	exitOK             = 0
	exitConfigError    = 1
	exitVenueError     = 2
	exitUncleanFlatten = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to JSON market/threshold config")
	configReload := flag.Duration("config-reload-interval", 30*time.Second, "config file poll interval; 0 disables hot-reload")
	walDir := flag.String("wal-dir", "./wal", "WAL segment directory")
	tickInterval := flag.Duration("tick-interval", 250*time.Millisecond, "core loop maintenance tick interval")
	userStreamTimeout := flag.Duration("user-stream-timeout", 15*time.Second, "user stream staleness timeout before the watchdog fires a flatten")
	metricsAddr := flag.String("metrics-addr", ":9090", "address to serve /metrics on; empty disables the HTTP server")
	enableStore := flag.Bool("store", false, "persist fills and safety transitions to Postgres")
	enablePyroscope := flag.Bool("pyroscope", false, "attach a continuous Pyroscope profiler")
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
	env, err := ops.LoadEnv()
	if err != nil {
		logs.Errorf("run load env, err: %+v", err)
		return exitConfigError
	}
	if env.StartPaused {
		logs.Infof("engine starting in paused mode per START_PAUSED")
	}

	if *enablePyroscope {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "polyarb.engine",
			ServerAddress:   "http://localhost:4040",
			Tags:            map[string]string{"bot_mode": string(env.BotMode)},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			logs.Errorf("run pyroscope start, err: %+v", err)
			return exitConfigError
		}
		defer func() { _ = profiler.Stop() }()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry, err := ops.BuildRegistry(loaded)
	if err != nil {
		logs.Errorf("run build registry, err: %+v", err)
		return exitConfigError
	}
	cfg := ops.NewRuntimeConfig(loaded)
	go ops.Watch(ctx, *configPath, *configReload, cfg.Update)

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

	var storeWriter *store.Writer
	if *enableStore {
		storeWriter, err = store.NewWriter(conn.Option{ConnString: env.DBPath}, 1024)
		if err != nil {
			logs.Errorf("run new store writer, err: %+v", err)
			return exitConfigError
		}
		go storeWriter.Run(ctx)
		defer func() {
			if err := storeWriter.Close(); err != nil {
				logs.Errorf("run close store writer, err: %+v", err)
			}
		}()
	}

	sig, err := buildSigner(env)
	if err != nil {
		logs.Errorf("run build signer, err: %+v", err)
		return exitConfigError
	}

	rest := &venue.RESTClient{BaseURL: env.VenueRESTURL, Signer: sig}
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

	reg := prometheus.NewRegistry()
	promExporter := obs.NewPromExporter(metrics, reg)

	// Dispatcher's ack callback must route back into the engine, but the
	// engine needs the dispatcher to construct. engine is wired in below;
	// the closure only runs once Submit/Cancel actually complete, by
	// which point engine is set.
	var engine *core.Engine
	dispatcher := og.NewDispatcher(4, 256, rest, rest, func(ack schema.OrderAck) {
		engine.OnAck(ack)
	})
	dispatcher.Run(ctx)

	engine = core.New(core.Deps{
		Registry:       registry,
		Slippage:       slippageModel,
		Decay:          decayGuard,
		Risk:           riskMgr,
		Positions:      positions,
		Orders:         orders,
		Dedupe:         dedupe,
		Churn:          churn,
		RateLimit:      rateLimit,
		TTL:            ttl,
		Dispatcher:     dispatcher,
		Canceller:      rest,
		Commands:       commands,
		Config:         cfg,
		Bus:            priorityBus,
		WAL:            wal,
		Store:          storeWriter,
		Metrics:        metrics,
		Source:         1,
		ConfigPath:     *configPath,
		BotMode:        env.BotMode,
		BacktestRunner: nil,
		BookFetcher:    rest,
	})

	if env.StartPaused {
		riskMgr.Pause()
	}

	if fills, err := rest.GetFills(ctx, 0); err != nil {
		logs.Errorf("run backfill fills, err: %+v", errors.Wrap(err, "get fills"))
	} else {
		for _, fill := range fills {
			engine.OnFill(fill)
		}
	}

	wd := watchdog.New(*userStreamTimeout, *userStreamTimeout/3, func() {
		logs.Errorf("run user stream watchdog, err: %+v", errors.New("user stream stale, requesting flatten"))
		if err := commands.Submit(schema.Command{Type: schema.CommandFlatten, IssuedAt: time.Now().UnixNano()}); err != nil {
			logs.Errorf("run watchdog submit flatten, err: %+v", err)
		}
	}, nil)
	go wd.Run(ctx)

	marketFeed := venue.NewFeed(venue.FeedConfig{
		Dialer: venue.GorillaDialer{URL: env.VenueWSURL, Timeout: 10 * time.Second},
	})
	userFeed := venue.NewFeed(venue.FeedConfig{
		Dialer: venue.GorillaDialer{URL: env.VenueWSURL, Timeout: 10 * time.Second},
	})

	venueErrCh := make(chan error, 2)
	go func() {
		venueErrCh <- marketFeed.Run(ctx, func(raw []byte, _ pkgws.MessageType) {
			now := time.Now().UnixNano()
			if snap, ok := venue.DecodeBookSnapshot(raw); ok {
				engine.OnBookSnapshot(snap, now, now)
				return
			}
			if upd, ok := venue.DecodeBookUpdate(raw); ok {
				engine.OnBookUpdate(upd, now, now)
				return
			}
			if md, ok := venue.DecodeLastTrade(raw); ok {
				engine.OnMarketData(md, now, now)
			}
		})
	}()
	go func() {
		venueErrCh <- userFeed.Run(ctx, func(raw []byte, _ pkgws.MessageType) {
			wd.Heartbeat()
			if ack, ok := venue.DecodeOrderAck(raw); ok {
				engine.OnAck(ack)
				return
			}
			if fill, ok := venue.DecodeFill(raw); ok {
				engine.OnFill(fill)
			}
		})
	}()

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: *metricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logs.Errorf("run metrics server, err: %+v", err)
			}
		}()
		go func() {
			<-ctx.Done()
			_ = srv.Close()
		}()
	}
	go reportMetricsLoop(ctx, promExporter, riskMgr)

	engine.Run(ctx, *tickInterval)

	select {
	case err := <-venueErrCh:
		if err != nil && err != context.Canceled {
			logs.Errorf("run venue feed, err: %+v", err)
			return exitVenueError
		}
	default:
	}

	if riskMgr.Mode() == schema.SafetyModeSafe {
		return exitUncleanFlatten
	}
	return exitOK
}

// buildSigner selects a signer implementation from the environment.
// The signer package intentionally ships no real EIP-712 signing
// implementation; a production deployment swaps in an external signer
// behind the same interface. DRY_RUN always uses the no-op signer so a
// misconfigured key can never submit a real order.
func buildSigner(env ops.EnvConfig) (signer.Signer, error) {
	if env.DryRun || env.BotMode == ops.BotModeBacktest {
		return signer.NoopSigner{}, nil
	}
	return nil, fmt.Errorf("no signer configured for live trading: %w", signer.ErrNotConfigured)
}

func reportMetricsLoop(ctx context.Context, exporter *obs.PromExporter, riskMgr *risk.Manager) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			exporter.Collect(riskMgr.Mode())
		}
	}
}
