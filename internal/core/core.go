// Package core implements the Engine: the single goroutine that owns
// every piece of mutable trading state — book state, order state,
// positions, and safety mode. Every other goroutine (the venue feed,
// the order dispatcher's worker pool, the command bus) talks to the
// engine only by publishing events onto a bounded bus; Engine.Run is
// the only place those events are ever applied. This mirrors the
// teacher's single Usecase loop pattern, generalised from a
// single-exchange trade executor to the paired YES/NO arbitrage loop.
package core

import (
	"context"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"github.com/yanun0323/polyarb/internal/book"
	"github.com/yanun0323/polyarb/internal/bus"
	"github.com/yanun0323/polyarb/internal/codec"
	"github.com/yanun0323/polyarb/internal/command"
	"github.com/yanun0323/polyarb/internal/decay"
	"github.com/yanun0323/polyarb/internal/flatten"
	"github.com/yanun0323/polyarb/internal/market"
	"github.com/yanun0323/polyarb/internal/obs"
	"github.com/yanun0323/polyarb/internal/og"
	"github.com/yanun0323/polyarb/internal/ops"
	"github.com/yanun0323/polyarb/internal/recorder"
	"github.com/yanun0323/polyarb/internal/risk"
	"github.com/yanun0323/polyarb/internal/schema"
	"github.com/yanun0323/polyarb/internal/slippage"
	"github.com/yanun0323/polyarb/internal/store"
	"github.com/yanun0323/polyarb/internal/strategy"
)

// ErrUnknownToken is returned when an event references a token the
// market registry has never seen.
var ErrUnknownToken = errors.New("unknown token")

// bookDepth bounds the number of price levels internal/book.State
// retains per token; the strategy only ever reads best bid/ask.
const bookDepth = 16

// correlationEntry tracks the two legs of one paired arbitrage entry
// between submission and the point both legs have filled (or the
// entry is abandoned), so a fill on either leg can be attributed back
// to the edge that was predicted when the pair was fired.
type correlationEntry struct {
	marketID     schema.MarketID
	predictedBps int64
	feeBps       int64
	yesTokenID   schema.TokenID
	noTokenID    schema.TokenID
	yesFilled    bool
	noFilled     bool
	yesFillPrice schema.Price
	noFillPrice  schema.Price
}

// Deps bundles every subsystem the engine wires together. All fields
// are required except Store and WAL, which are nil when durable
// persistence or WAL recording is disabled (e.g. backtest mode), and
// the fields marked optional below.
type Deps struct {
	Registry   *market.Registry
	Slippage   *slippage.Model
	Decay      *decay.Guard
	Risk       *risk.Manager
	Positions  *risk.PositionBook
	Orders     *og.StateMachine
	Dedupe     *og.Deduper
	Churn      *og.ChurnGovernor
	RateLimit  *og.RateLimiter
	TTL        *og.TTLScanner
	Dispatcher *og.Dispatcher
	Canceller  og.Canceller // synchronous cancel path used by the flatten workflow, distinct from Dispatcher's async queue
	Commands   *command.Bus
	Config     *ops.RuntimeConfig
	Bus        *bus.PriorityQueue
	WAL        *recorder.Writer
	Store      *store.Writer
	Metrics    *obs.Metrics
	Source     uint16
	// ConfigPath is the file CommandReloadConfig re-reads; empty disables
	// the command (it is logged and dropped rather than failing).
	ConfigPath string
	// BotMode gates CommandBacktest: refused outright in Live, and run
	// through BacktestRunner in Backtest.
	BotMode ops.BotMode
	// BacktestRunner executes the backtest harness against a recorded
	// WAL directory when CommandBacktest is accepted. Optional; if nil
	// the command is accepted but logged as unwired.
	BacktestRunner func(ctx context.Context) error
	// BookFetcher performs the REST resync fetch triggered when an
	// incremental book update reports a sequence gap. Deltas are not
	// buffered for replay; every gap goes to this fetch. Optional; nil
	// disables resync.
	BookFetcher BookFetcher
}

// BookFetcher fetches a fresh full book snapshot over REST, used to
// resync a token's book after Apply reports a sequence gap.
type BookFetcher interface {
	FetchBook(ctx context.Context, tokenID schema.TokenID) (schema.BookSnapshot, error)
}

// Engine is the single-writer core loop.
type Engine struct {
	registry   *market.Registry
	slippage   *slippage.Model
	decay      *decay.Guard
	risk       *risk.Manager
	positions  *risk.PositionBook
	orders     *og.StateMachine
	dedupe     *og.Deduper
	churn      *og.ChurnGovernor
	rateLimit  *og.RateLimiter
	ttl        *og.TTLScanner
	dispatcher *og.Dispatcher
	canceller  og.Canceller
	commands   *command.Bus
	config     *ops.RuntimeConfig
	bus        *bus.PriorityQueue
	wal        *recorder.Writer
	store      *store.Writer
	metrics    *obs.Metrics
	source     uint16
	traceGen   *obs.TraceGenerator

	configPath     string
	botMode        ops.BotMode
	backtestRunner func(ctx context.Context) error
	bookFetcher    BookFetcher

	books   map[schema.TokenID]*book.State
	entries map[string]*correlationEntry

	seq     uint64
	orderID uint64
}

// New constructs an engine from its wired dependencies. It does not
// start any goroutine; call Run to drive the loop.
func New(d Deps) *Engine {
	return &Engine{
		registry:   d.Registry,
		slippage:   d.Slippage,
		decay:      d.Decay,
		risk:       d.Risk,
		positions:  d.Positions,
		orders:     d.Orders,
		dedupe:     d.Dedupe,
		churn:      d.Churn,
		rateLimit:  d.RateLimit,
		ttl:        d.TTL,
		dispatcher: d.Dispatcher,
		canceller:  d.Canceller,
		commands:   d.Commands,
		config:     d.Config,
		bus:        d.Bus,
		wal:        d.WAL,
		store:      d.Store,
		metrics:        d.Metrics,
		source:         d.Source,
		traceGen:       obs.NewTraceGenerator(0),
		configPath:     d.ConfigPath,
		botMode:        d.BotMode,
		backtestRunner: d.BacktestRunner,
		bookFetcher:    d.BookFetcher,
		books:          make(map[schema.TokenID]*book.State),
		entries:        make(map[string]*correlationEntry),
	}
}

// Run drives the single-writer loop until ctx is canceled: it drains
// the event bus, applying book/ack/fill events as they arrive, and
// folds in periodic maintenance (command draining, TTL scans,
// rate-limiter refill, PnL/breaker evaluation) on every tick without
// ever leaving this goroutine.
func (e *Engine) Run(ctx context.Context, tickInterval time.Duration) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	e.bus.RunWithTick(ctx, ticker.C, e.handle, e.Tick)
}

func (e *Engine) nextSeq() uint64 {
	e.seq++
	return e.seq
}

func (e *Engine) nextOrderID() uint64 {
	e.orderID++
	return e.orderID
}

// handle applies one event from the bus. It is only ever called from
// the goroutine running Run.
func (e *Engine) handle(ev bus.Event) {
	e.metrics.ObserveEvent(ev.Header)

	switch ev.Header.Type {
	case schema.EventBookSnapshot:
		e.handleBookSnapshot(ev.Header, ev.Payload)
	case schema.EventBookUpdate:
		e.handleBookUpdate(ev.Header, ev.Payload)
	case schema.EventOrderAck:
		e.handleAck(ev.Header, ev.Payload)
	case schema.EventFill:
		e.handleFill(ev.Header, ev.Payload)
	case schema.EventMarketData:
		e.handleMarketData(ev.Header, ev.Payload)
	default:
		logs.Errorf("core handle, err: %+v", errors.New("unhandled event type "+ev.Header.Type.String()))
	}
}

func (e *Engine) handleBookSnapshot(header schema.EventHeader, payload []byte) {
	snap, ok := codec.DecodeBookSnapshot(payload)
	if !ok {
		logs.Errorf("core handle book snapshot, err: %+v", errors.New("truncated book snapshot payload"))
		return
	}
	st, ok := e.books[snap.TokenID]
	if !ok {
		st = book.NewState(bookDepth)
		e.books[snap.TokenID] = st
	}
	st.Reset(snap)
	e.appendWAL(schema.EventBookSnapshot, payload, header.TsEvent)

	mkt, ok := e.registry.MarketForToken(snap.TokenID)
	if !ok {
		return
	}
	e.evaluateMarket(mkt, time.Unix(0, header.TsEvent))
}

// handleBookUpdate applies an incremental book delta against the
// retained per-token book state. Any sequence gap triggers a REST
// resync; out-of-order deltas are not buffered or replayed, and there
// is no periodic resync independent of gaps.
func (e *Engine) handleBookUpdate(header schema.EventHeader, payload []byte) {
	upd, ok := codec.DecodeBookUpdate(payload)
	if !ok {
		logs.Errorf("core handle book update, err: %+v", errors.New("truncated book update payload"))
		return
	}

	st, ok := e.books[upd.TokenID]
	if !ok {
		st = book.NewState(bookDepth)
		e.books[upd.TokenID] = st
	}

	bookUpd := book.Update{TokenID: upd.TokenID, Seq: upd.Seq}
	for _, lvl := range upd.Bids {
		bookUpd.Bids = append(bookUpd.Bids, book.Delta{Price: lvl.Price, Size: lvl.Size})
	}
	for _, lvl := range upd.Asks {
		bookUpd.Asks = append(bookUpd.Asks, book.Delta{Price: lvl.Price, Size: lvl.Size})
	}

	if err := st.Apply(bookUpd); err != nil {
		logs.Errorf("core handle book update, err: %+v", errors.Wrap(err, "apply book update"))
		if e.bookFetcher != nil {
			go e.resyncBook(upd.TokenID)
		}
		return
	}
	e.appendWAL(schema.EventBookUpdate, payload, header.TsEvent)

	mkt, ok := e.registry.MarketForToken(upd.TokenID)
	if !ok {
		return
	}
	e.evaluateMarket(mkt, time.Unix(0, header.TsEvent))
}

// resyncBook fetches a fresh full snapshot over REST after a sequence
// gap and feeds it back through OnBookSnapshot so it crosses onto the
// single-writer goroutine the same way every other feed event does.
// Runs on its own goroutine since the REST round trip must never block
// the core loop.
func (e *Engine) resyncBook(tokenID schema.TokenID) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := e.bookFetcher.FetchBook(ctx, tokenID)
	if err != nil {
		logs.Errorf("core resync book, err: %+v", errors.Wrap(err, "fetch book"))
		return
	}
	now := time.Now().UnixNano()
	e.OnBookSnapshot(snap, now, now)
}

func (e *Engine) evaluateMarket(mkt schema.Market, now time.Time) {
	yesBook, ok := e.books[mkt.YesToken]
	if !ok {
		return
	}
	noBook, ok := e.books[mkt.NoToken]
	if !ok {
		return
	}
	_, yesAsk, yesOK := yesBook.BestBidAsk()
	_, noAsk, noOK := noBook.BestBidAsk()
	if !yesOK || !noOK {
		return
	}

	loaded := e.config.Load()
	cfg := strategy.Config{
		MinEdgeBps:    loaded.Thresholds.MinEdgeBps,
		MinOrderSize:  mkt.MinOrderSize,
		FeeRateBps:    mkt.FeeBps,
		RequestedSize: schema.Quantity(loaded.Thresholds.RequestedSize),
	}
	riskView := strategy.RiskView{SafetyMode: e.risk.Mode()}
	decayView := strategy.DecayView{Disabled: e.decay.Disabled(mkt.ID)}
	failureBufferBps := e.slippage.FailureBuffer(mkt.ID)

	decision := strategy.Evaluate(mkt.ID, strategy.BookView{
		YesAsk:     yesAsk.Price,
		NoAsk:      noAsk.Price,
		YesAskSize: yesAsk.Size,
		NoAskSize:  noAsk.Size,
		YesTokenID: mkt.YesToken,
		NoTokenID:  mkt.NoToken,
		Resyncing:  yesBook.Resyncing() || noBook.Resyncing(),
	}, riskView, decayView, failureBufferBps, cfg)

	e.appendWAL(schema.EventEdgeQuality, codec.EncodeEdgeQuality(nil, decision.EdgeQuality), now.UnixNano())

	if !decision.Fire {
		return
	}
	if !e.churn.Allowed(mkt.ID, now.Unix()) {
		return
	}
	if !e.rateLimit.AllowSubmit() {
		return
	}
	e.submitPair(mkt, decision, now)
}

func (e *Engine) submitPair(mkt schema.Market, decision strategy.Decision, now time.Time) {
	legs := []schema.OrderIntent{decision.Yes, decision.No}
	submitted := 0
	for _, intent := range legs {
		intent.OrderID = e.nextOrderID()

		riskState := risk.StateView{
			Position:       e.positions.Position(schema.TokenID(intent.SymbolID)).NetQty,
			ReferencePrice: intent.Price,
			Now:            now.UnixNano(),
		}
		riskDecision := e.risk.Evaluate(intent, riskState)
		e.appendWAL(schema.EventRiskDecision, codec.EncodeRiskDecision(nil, riskDecision), now.UnixNano())
		if riskDecision.Action == schema.RiskActionDeny {
			e.metrics.IncRiskReason(riskDecision.Reason)
			continue
		}

		fingerprint := og.Fingerprint(decision.CorrelationID, intent)
		if _, duplicate := e.dedupe.Admit(fingerprint, intent.OrderID); duplicate {
			continue
		}
		if _, err := e.orders.ApplyIntent(intent); err != nil {
			logs.Errorf("core submit pair, err: %+v", errors.Wrap(err, "apply intent"))
			continue
		}
		e.orders.Annotate(intent.OrderID, decision.CorrelationID, fingerprint, mkt.ID)
		e.appendWAL(schema.EventOrderIntent, codec.EncodeOrderIntent(nil, intent), now.UnixNano())

		if err := e.dispatcher.Submit(intent); err != nil {
			logs.Errorf("core submit pair, err: %+v", errors.Wrap(err, "dispatch submit"))
			continue
		}
		if _, err := e.orders.Dispatch(intent.OrderID, now.Unix()); err != nil {
			logs.Errorf("core submit pair, err: %+v", errors.Wrap(err, "mark dispatched"))
		}
		submitted++
	}
	if submitted == 0 {
		return
	}

	e.entries[decision.CorrelationID] = &correlationEntry{
		marketID:     mkt.ID,
		predictedBps: decision.EdgeQuality.ExecutableEdge,
		feeBps:       mkt.FeeBps,
		yesTokenID:   mkt.YesToken,
		noTokenID:    mkt.NoToken,
	}
}

func (e *Engine) handleAck(header schema.EventHeader, payload []byte) {
	ack, ok := codec.DecodeOrderAck(payload)
	if !ok {
		logs.Errorf("core handle ack, err: %+v", errors.New("truncated order ack payload"))
		return
	}
	if _, err := e.orders.ApplyAck(ack); err != nil {
		logs.Errorf("core handle ack, err: %+v", errors.Wrap(err, "apply ack"))
		return
	}

	switch ack.Status {
	case schema.OrderAckStatusRejected:
		e.rateLimit.OnSubmitRejected()
	case schema.OrderAckStatusAcked, schema.OrderAckStatusFilled, schema.OrderAckStatusPartFilled:
		e.rateLimit.OnSubmitAccepted()
	case schema.OrderAckStatusCanceled:
		e.rateLimit.OnCancelAccepted()
	}
	e.appendWAL(schema.EventOrderAck, payload, header.TsEvent)
}

func (e *Engine) handleFill(header schema.EventHeader, payload []byte) {
	fill, ok := codec.DecodeFill(payload)
	if !ok {
		logs.Errorf("core handle fill, err: %+v", errors.New("truncated fill payload"))
		return
	}
	if fill.Qty <= 0 {
		return
	}
	order, err := e.orders.ApplyFill(fill)
	if err != nil && err != og.ErrOverfill {
		logs.Errorf("core handle fill, err: %+v", errors.Wrap(err, "apply fill"))
		if err == og.ErrUnknownOrder && !e.risk.SoftenUnknownFill() {
			before := e.risk.Mode()
			e.risk.ForceSafe()
			e.recordTransition(before, e.risk.Mode(), "fill for unrecognized order", time.Unix(0, header.TsEvent))
		}
		return
	}
	if err == og.ErrOverfill {
		logs.Errorf("core handle fill, err: %+v", errors.Wrap(err, "apply fill"))
		before := e.risk.Mode()
		e.risk.ForceSafe()
		e.recordTransition(before, e.risk.Mode(), "fill exceeded remaining order size", time.Unix(0, header.TsEvent))
	}

	e.positions.ApplyFill(schema.TokenID(fill.SymbolID), fill.Side, fill.Price, fill.Qty)
	e.appendWAL(schema.EventFill, payload, header.TsEvent)
	if e.store != nil {
		if err := e.store.WriteFill(header, fill); err != nil {
			logs.Errorf("core handle fill, err: %+v", errors.Wrap(err, "store write fill"))
		}
	}

	e.attributeFill(order, fill)
}

// attributeFill correlates a fill against its paired entry, feeding
// the realised edge into the decay guard and the residual slippage
// into the slippage model once each leg has reported at least one
// fill. Each leg's price is that of its most recent fill; partial fills
// are not size-weighted, and fills arriving after attribution are not
// counted.
func (e *Engine) attributeFill(order *og.Order, fill schema.Fill) {
	entry, ok := e.entries[order.CorrelationID]
	if !ok {
		return
	}

	switch schema.TokenID(fill.SymbolID) {
	case entry.yesTokenID:
		entry.yesFillPrice = fill.Price
		entry.yesFilled = true
	case entry.noTokenID:
		entry.noFillPrice = fill.Price
		entry.noFilled = true
	default:
		return
	}
	if !entry.yesFilled || !entry.noFilled {
		return
	}

	const bpsScale = 10000
	realizedBps := int64(bpsScale) - int64(entry.yesFillPrice) - int64(entry.noFillPrice) - entry.feeBps
	e.decay.Observe(entry.marketID, entry.predictedBps, realizedBps)

	slippageBps := entry.predictedBps - realizedBps
	if slippageBps < 0 {
		slippageBps = 0
	}
	e.slippage.Observe(entry.marketID, slippageBps)

	delete(e.entries, order.CorrelationID)
}

// Tick folds periodic maintenance into the single-writer loop: pending
// operator commands, TTL-based cancels, rate-limiter recovery, and the
// PnL/breaker evaluation that can trip the engine into Flattening or
// Safe.
func (e *Engine) Tick(now time.Time) {
	for _, cmd := range e.commands.Drain(32) {
		e.handleCommand(cmd, now)
	}

	e.rateLimit.Tick()

	nowUnix := now.Unix()
	for _, orderID := range e.ttl.Expired(e.orders, nowUnix) {
		if _, err := e.orders.RequestCancel(orderID); err != nil {
			continue
		}
		if err := e.dispatcher.Cancel(orderID); err != nil {
			logs.Errorf("core tick ttl cancel, err: %+v", errors.Wrap(err, "dispatch cancel"))
		}
	}

	e.evaluatePnL(now)
}

func (e *Engine) evaluatePnL(now time.Time) {
	before := e.risk.Mode()
	pnl := schema.PnLState{
		AsOf:           now.UnixNano(),
		RealizedPL:     e.positions.TotalRealizedPL(),
		OpenOrderCount: len(e.orders.LiveOrders()),
	}
	tripped, reason := e.risk.ObservePnL(pnl)
	if !tripped {
		return
	}
	e.recordTransition(before, e.risk.Mode(), reason, now)
	e.runFlatten(context.Background(), now)
}

func (e *Engine) handleCommand(cmd schema.Command, now time.Time) {
	switch cmd.Type {
	case schema.CommandPause:
		before := e.risk.Mode()
		if e.risk.Pause() {
			e.recordTransition(before, e.risk.Mode(), "operator pause", now)
		}
	case schema.CommandResume:
		before := e.risk.Mode()
		if e.risk.Resume() {
			e.recordTransition(before, e.risk.Mode(), "operator resume", now)
		}
	case schema.CommandFlatten:
		before := e.risk.Mode()
		e.risk.EnterFlattening()
		e.recordTransition(before, e.risk.Mode(), "operator flatten", now)
		e.runFlatten(context.Background(), now)
	case schema.CommandFlattenMarket:
		e.flattenMarket(context.Background(), cmd.MarketID, now)
	case schema.CommandKillSwitch:
		before := e.risk.Mode()
		e.risk.ForceSafe()
		e.recordTransition(before, e.risk.Mode(), "operator kill switch", now)
		e.runFlatten(context.Background(), now)
	case schema.CommandSetMinEdge:
		loaded := e.config.Load()
		loaded.Thresholds.MinEdgeBps = cmd.Param
		e.config.Update(loaded)
	case schema.CommandSet:
		e.applySettings(cmd.Settings)
	case schema.CommandMarketsOn:
		for _, id := range cmd.MarketIDs {
			e.decay.Reenable(id)
			if err := e.registry.Activate(id); err != nil {
				logs.Errorf("core handle command, err: %+v", errors.Wrap(err, "activate market"))
			}
		}
	case schema.CommandMarketsOff:
		for _, id := range cmd.MarketIDs {
			if err := e.registry.Deactivate(id); err != nil {
				logs.Errorf("core handle command, err: %+v", errors.Wrap(err, "deactivate market"))
			}
		}
	case schema.CommandBacktest:
		e.handleBacktest(context.Background())
	case schema.CommandReloadConfig:
		e.reloadConfig()
	default:
		logs.Errorf("core handle command, err: %+v", errors.New("unknown command type"))
	}
}

// applySettings atomically applies a generalized "set" command's
// key/value pairs to the runtime config. Keys were already bounds
// validated by command.Validate before admission to the bus.
func (e *Engine) applySettings(settings map[schema.SettingKey]int64) {
	loaded := e.config.Load()
	for k, v := range settings {
		switch k {
		case schema.SettingMinEdgeBps:
			loaded.Thresholds.MinEdgeBps = v
		case schema.SettingRequestedSize:
			loaded.Thresholds.RequestedSize = v
		}
	}
	e.config.Update(loaded)
}

// reloadConfig re-reads the configuration file from ConfigPath and
// re-applies the threshold-only keys the runtime config exposes; the
// market list and breaker thresholds are intentionally left alone, a
// restart is required for those.
func (e *Engine) reloadConfig() {
	if e.configPath == "" {
		logs.Infof("config reload command received, no config path wired")
		return
	}
	loaded, err := ops.Load(e.configPath)
	if err != nil {
		logs.Errorf("core reload config, err: %+v", errors.Wrap(err, "load config"))
		return
	}
	e.config.Update(loaded)
	logs.Infof("config reloaded from %s", e.configPath)
}

// handleBacktest refuses a backtest command outright in live mode, and
// in backtest mode runs the wired harness if one was configured.
func (e *Engine) handleBacktest(ctx context.Context) {
	if e.botMode == ops.BotModeLive {
		logs.Errorf("core handle backtest, err: %+v", errors.New("backtest command refused while running live"))
		return
	}
	if e.backtestRunner == nil {
		logs.Infof("backtest command received, no backtest runner wired")
		return
	}
	if err := e.backtestRunner(ctx); err != nil {
		logs.Errorf("core handle backtest, err: %+v", errors.Wrap(err, "run backtest"))
	}
}

// runFlatten walks every tracked market's two tokens, canceling every
// live order and, in ModeCancelAndUnwind, unwinding any residual
// position back to flat.
func (e *Engine) runFlatten(ctx context.Context, now time.Time) {
	loaded := e.config.Load()
	mode := flatten.ModeCancelOnly
	if loaded.Flatten == ops.FlattenModeCancelAndUnwind {
		mode = flatten.ModeCancelAndUnwind
	}

	wf := flatten.NewWorkflow(flatten.Config{
		MaxUnwindSlippageBps: loaded.MaxUnwindSlippageBps,
		UnwindDeadlineMs:     loaded.UnwindDeadlineMs,
	}, mode, e.orders, e.canceller, e.positions, e, e)
	res := wf.Run(ctx, e.allTokens())
	for _, err := range res.Errors {
		logs.Errorf("core flatten, err: %+v", errors.Wrap(err, "flatten"))
	}
	for _, residual := range res.Residual {
		logs.Errorf("core flatten residual position left open, err: %+v",
			errors.Errorf("token=%d qty=%d reason=%s", residual.TokenID, residual.Qty, residual.Reason))
	}
	logs.Infof("flatten pass complete: canceled=%d unwound=%d residual=%d", res.CancelRequested, res.UnwindRequested, len(res.Residual))

	before := e.risk.Mode()
	e.risk.ForceSafe()
	e.recordTransition(before, e.risk.Mode(), "flatten pass complete", now)
}

// flattenMarket cancels every live order belonging to a single market,
// used by the operator FlattenMarket command to pull one misbehaving
// market offline without halting the rest of the engine.
func (e *Engine) flattenMarket(ctx context.Context, marketID schema.MarketID, now time.Time) {
	for _, o := range e.orders.LiveOrders() {
		if o.MarketID != marketID || o.State == og.OrderStateCancelling {
			continue
		}
		if _, err := e.canceller.Cancel(ctx, o.ID); err != nil {
			logs.Errorf("core flatten market, err: %+v", errors.Wrap(err, "cancel"))
			continue
		}
		e.churn.RecordCancel(marketID, now.Unix())
	}
}

func (e *Engine) allTokens() []schema.TokenID {
	markets := e.registry.ActiveMarkets()
	tokens := make([]schema.TokenID, 0, len(markets)*2)
	for _, mkt := range markets {
		tokens = append(tokens, mkt.YesToken, mkt.NoToken)
	}
	return tokens
}

// Unwind implements flatten.Unwinder by submitting a marketable,
// flag-tagged order through the normal async dispatch path. Unlike
// cancellation, unwind submission does not need the synchronous
// canceller: the workflow only needs to know the attempt was
// accepted, not its eventual ack.
func (e *Engine) Unwind(ctx context.Context, tokenID schema.TokenID, qty schema.Quantity, side schema.OrderSide) error {
	mkt, ok := e.registry.MarketForToken(tokenID)
	if !ok {
		return ErrUnknownToken
	}

	intent := schema.OrderIntent{
		OrderID:     e.nextOrderID(),
		SymbolID:    uint32(tokenID),
		Side:        side,
		Type:        schema.OrderTypeMarket,
		TimeInForce: schema.TimeInForceIOC,
		Flags:       schema.OrderIntentFlagUnwind,
		Qty:         qty,
	}
	if _, err := e.orders.ApplyIntent(intent); err != nil {
		return err
	}
	e.orders.Annotate(intent.OrderID, "", og.Fingerprint("UNWIND", intent), mkt.ID)
	return e.dispatcher.Submit(intent)
}

// EstimateBps implements flatten.SlippageEstimator using the same
// adaptive baseline the strategy consults before firing, so an unwind
// under duress is refused by the same yardstick a healthy entry would
// be held to.
func (e *Engine) EstimateBps(tokenID schema.TokenID, qty schema.Quantity) int64 {
	mkt, ok := e.registry.MarketForToken(tokenID)
	if !ok {
		return 0
	}
	return e.slippage.Baseline(qty, mkt.MinOrderSize)
}

func (e *Engine) recordTransition(from, to schema.SafetyMode, reason string, now time.Time) {
	if from == to {
		return
	}
	t := schema.SafetyTransition{From: from, To: to, Reason: reason, AsOf: now.UnixNano()}
	e.appendWAL(schema.EventSafetyTransition, codec.EncodeSafetyTransition(nil, t), t.AsOf)
	if e.store != nil {
		if err := e.store.WriteSafetyTransition(t); err != nil {
			logs.Errorf("core record transition, err: %+v", errors.Wrap(err, "store write safety transition"))
		}
	}
	logs.Infof("safety transition %s -> %s: %s", from, to, reason)
}

func (e *Engine) appendWAL(eventType schema.EventType, payload []byte, tsEvent int64) {
	if e.wal == nil {
		return
	}
	header := schema.NewHeader(eventType, e.source, e.nextSeq(), tsEvent, time.Now().UnixNano())
	header.TraceID = e.traceGen.Next()
	if err := e.wal.TryAppend(header, payload); err != nil {
		logs.Errorf("core append wal, err: %+v", errors.Wrap(err, "wal append"))
	}
}

// handleMarketData persists a trade print to the WAL for post-hoc
// audit and TCA. It never touches book state or fires strategy
// evaluation: last-trade prints are informational, not the book the
// strategy crosses against.
func (e *Engine) handleMarketData(header schema.EventHeader, payload []byte) {
	if _, ok := codec.DecodeMarketData(payload); !ok {
		logs.Errorf("core handle market data, err: %+v", errors.New("truncated market data payload"))
		return
	}
	e.appendWAL(schema.EventMarketData, payload, header.TsEvent)
}

// OnMarketData is the venue feed's trade-print callback. Published
// onto the bus like every other feed event so it crosses onto the
// single-writer goroutine rather than touching engine state directly.
func (e *Engine) OnMarketData(md schema.MarketData, tsEvent, tsRecv int64) {
	header := schema.NewHeader(schema.EventMarketData, e.source, 0, tsEvent, tsRecv)
	if err := e.bus.TryPublish(bus.Event{Header: header, Payload: codec.EncodeMarketData(nil, md)}); err != nil {
		e.metrics.IncQueueDrop()
	}
}

// OnAck adapts a Dispatcher acknowledgment callback, which runs on a
// worker goroutine, into an event published onto the core loop's own
// bus. It must never call into StateMachine or any other engine state
// directly: TryPublish is the only thread-safe crossing point back
// onto the single-writer goroutine.
func (e *Engine) OnAck(ack schema.OrderAck) {
	header := schema.NewHeader(schema.EventOrderAck, e.source, 0, time.Now().UnixNano(), time.Now().UnixNano())
	if err := e.bus.TryPublish(bus.Event{Header: header, Payload: codec.EncodeOrderAck(nil, ack)}); err != nil {
		logs.Errorf("core on ack publish, err: %+v", errors.Wrap(err, "publish ack"))
	}
}

// OnFill is the venue feed's fill callback, also published onto the
// bus rather than applied inline for the same single-writer reason as
// OnAck.
func (e *Engine) OnFill(fill schema.Fill) {
	header := schema.NewHeader(schema.EventFill, e.source, 0, time.Now().UnixNano(), time.Now().UnixNano())
	if err := e.bus.TryPublish(bus.Event{Header: header, Payload: codec.EncodeFill(nil, fill)}); err != nil {
		logs.Errorf("core on fill publish, err: %+v", errors.Wrap(err, "publish fill"))
	}
}

// OnBookSnapshot is the venue feed's (or backtest generator's) book
// update callback, published onto the bus for the same reason.
func (e *Engine) OnBookSnapshot(snap schema.BookSnapshot, tsEvent, tsRecv int64) {
	header := schema.NewHeader(schema.EventBookSnapshot, e.source, 0, tsEvent, tsRecv)
	if err := e.bus.TryPublish(bus.Event{Header: header, Payload: codec.EncodeBookSnapshot(nil, snap)}); err != nil {
		e.metrics.IncQueueDrop()
	}
}

// OnBookUpdate is the venue feed's incremental book delta callback,
// published onto the bus for the same reason.
func (e *Engine) OnBookUpdate(upd schema.BookUpdate, tsEvent, tsRecv int64) {
	header := schema.NewHeader(schema.EventBookUpdate, e.source, 0, tsEvent, tsRecv)
	if err := e.bus.TryPublish(bus.Event{Header: header, Payload: codec.EncodeBookUpdate(nil, upd)}); err != nil {
		e.metrics.IncQueueDrop()
	}
}

