package risk

import "github.com/yanun0323/polyarb/internal/schema"

// BreakerConfig parameterizes the circuit breakers that sit on top of
// the per-order Engine checks and own SafetyMode transitions.
type BreakerConfig struct {
	MaxDrawdown      int64
	MaxHourlyLoss    int64
	MaxDailyLoss     int64
	MaxRejectRatio   float64
	MinOrdersForRatio int
	// SoftenUnknownFill, when true, downgrades a fill referencing an
	// order ID the gateway never admitted from an immediate ForceSafe
	// trip to a logged-and-dropped event. Left false by default: a fill
	// for an order this process never sent almost always means the
	// position book has already silently diverged from the venue, and
	// the safe default is to stop trading rather than keep accruing
	// unattributed exposure.
	SoftenUnknownFill bool
}

// Manager owns SafetyMode and aggregates realised/unrealised PnL,
// drawdown from the running high-watermark, and the order reject
// ratio, tripping the engine into a progressively safer mode when any
// breaker threshold is crossed. It generalises Engine's single-order
// admission check into the full aggregator described for the engine's
// risk subsystem; Engine itself remains the per-order gate Manager
// delegates to before considering a breaker trip.
type Manager struct {
	engine  *Engine
	cfg     BreakerConfig
	mode    schema.SafetyMode
	pnl     schema.PnLState
	accepts int
	rejects int
}

// NewManager constructs a manager wrapping a per-order Engine with
// aggregate circuit breakers, starting in SafetyModeRunning.
func NewManager(engine *Engine, cfg BreakerConfig) *Manager {
	return &Manager{engine: engine, cfg: cfg, mode: schema.SafetyModeRunning}
}

// Mode returns the current safety mode.
func (m *Manager) Mode() schema.SafetyMode {
	return m.mode
}

// Evaluate denies outright while the safety mode is not Running;
// otherwise it runs the per-order Engine check. Every denial is counted
// as a reject; the reject ratio is recomputed after Engine checks only.
func (m *Manager) Evaluate(intent schema.OrderIntent, state StateView) schema.RiskDecision {
	if m.mode != schema.SafetyModeRunning {
		m.rejects++
		return schema.RiskDecision{
			OrderID: intent.OrderID, StrategyID: intent.StrategyID, SymbolID: intent.SymbolID,
			Action: schema.RiskActionDeny, Reason: schema.RiskReasonKillSwitch,
		}
	}

	decision := m.engine.Evaluate(intent, state)
	if decision.Action == schema.RiskActionDeny {
		m.rejects++
	} else {
		m.accepts++
	}
	m.refreshRejectRatio()
	return decision
}

func (m *Manager) refreshRejectRatio() {
	total := m.accepts + m.rejects
	if total < m.cfg.MinOrdersForRatio {
		m.pnl.RejectRatio = 0
		return
	}
	m.pnl.RejectRatio = float64(m.rejects) / float64(total)
}

// ObservePnL folds a fresh PnL snapshot into the manager and trips a
// breaker (transitioning SafetyMode toward Flattening/Safe) when any
// threshold is crossed. Once SAFE, the manager never clears on its
// own: only an explicit operator Resume (handled by the command bus,
// outside this package) can return to Running, and only from Paused.
func (m *Manager) ObservePnL(next schema.PnLState) (tripped bool, reason string) {
	next.RejectRatio = m.pnl.RejectRatio
	if next.RealizedPL+next.UnrealizedPL > m.pnl.HighWatermark {
		next.HighWatermark = next.RealizedPL + next.UnrealizedPL
	} else {
		next.HighWatermark = m.pnl.HighWatermark
	}
	m.pnl = next

	drawdown := next.HighWatermark - (next.RealizedPL + next.UnrealizedPL)
	switch {
	case m.cfg.MaxDrawdown > 0 && drawdown > m.cfg.MaxDrawdown:
		m.trip(schema.SafetyModeFlattening)
		return true, "max drawdown exceeded"
	case m.cfg.MaxDailyLoss > 0 && next.DailyPL < -m.cfg.MaxDailyLoss:
		m.trip(schema.SafetyModeFlattening)
		return true, "max daily loss exceeded"
	case m.cfg.MaxHourlyLoss > 0 && next.HourlyPL < -m.cfg.MaxHourlyLoss:
		m.trip(schema.SafetyModeFlattening)
		return true, "max hourly loss exceeded"
	case m.cfg.MaxRejectRatio > 0 && next.RejectRatio > m.cfg.MaxRejectRatio:
		m.trip(schema.SafetyModeFlattening)
		return true, "reject ratio exceeded"
	default:
		return false, ""
	}
}

func (m *Manager) trip(to schema.SafetyMode) {
	if to > m.mode || m.mode == schema.SafetyModeRunning {
		m.mode = to
	}
}

// Resume attempts to return to Running from Paused. It is a no-op
// returning false from Flattening or Safe, matching the invariant that
// those modes only clear via the flatten workflow completing or a
// process restart, respectively.
func (m *Manager) Resume() bool {
	if m.mode != schema.SafetyModePaused {
		return false
	}
	m.mode = schema.SafetyModeRunning
	return true
}

// Pause transitions from Running to Paused on an operator Pause
// command. A no-op outside Running: Flattening and Safe are already
// more conservative and must not regress from an unrelated command.
func (m *Manager) Pause() bool {
	if m.mode != schema.SafetyModeRunning {
		return false
	}
	m.mode = schema.SafetyModePaused
	return true
}

// ForceSafe immediately drops to SafetyModeSafe, used by the kill
// switch command and by the user stream watchdog on a stale feed.
func (m *Manager) ForceSafe() {
	m.mode = schema.SafetyModeSafe
}

// EnterFlattening transitions to Flattening, e.g. on an operator
// flatten command rather than a breaker trip.
func (m *Manager) EnterFlattening() {
	if m.mode != schema.SafetyModeSafe {
		m.mode = schema.SafetyModeFlattening
	}
}

// PnL returns the last observed PnL snapshot.
func (m *Manager) PnL() schema.PnLState {
	return m.pnl
}

// SoftenUnknownFill reports whether a fill for an order this process
// never admitted should be logged and dropped instead of tripping
// ForceSafe.
func (m *Manager) SoftenUnknownFill() bool {
	return m.cfg.SoftenUnknownFill
}
