package schema

// MarketID identifies a binary-outcome market (a Polymarket condition).
type MarketID uint32

// TokenID identifies one of the two outcome tokens (YES/NO) of a market.
type TokenID uint32

// Outcome distinguishes the YES and NO legs of a binary market.
type Outcome uint8

const (
	OutcomeUnknown Outcome = iota
	OutcomeYes
	OutcomeNo
)

// LabelMode controls how strictly the registry enforces YES/NO labeling
// on market refresh.
type LabelMode uint8

const (
	// LabelModeStrict rejects any market whose outcome labels do not
	// resolve unambiguously to YES/NO.
	LabelModeStrict LabelMode = iota
	// LabelModePermissive falls back to token order when labels are
	// missing or ambiguous, and records the fallback for later audit.
	LabelModePermissive
)

// Market describes a single binary-outcome CLOB market and its two
// outcome tokens.
type Market struct {
	ID           MarketID
	ConditionID  string
	Question     string
	YesToken     TokenID
	NoToken      TokenID
	TickSize     Price
	MinOrderSize Quantity
	FeeBps       int64
	Active       bool
	ClosingTime  int64
	LabelSource  LabelMode
}

// SafetyMode is the engine-wide operating mode. Transitions only ever
// move toward a more conservative mode except for the explicit resume
// path back to Running from Paused.
type SafetyMode uint8

const (
	SafetyModeUnknown SafetyMode = iota
	SafetyModeRunning
	SafetyModePaused
	SafetyModeFlattening
	SafetyModeSafe
)

func (m SafetyMode) String() string {
	switch m {
	case SafetyModeRunning:
		return "RUNNING"
	case SafetyModePaused:
		return "PAUSED"
	case SafetyModeFlattening:
		return "FLATTENING"
	case SafetyModeSafe:
		return "SAFE"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports whether the mode never transitions back to Running
// on its own; SAFE only clears on process restart.
func (m SafetyMode) IsTerminal() bool {
	return m == SafetyModeSafe
}

// BookLevel is a single price/size level of an order book side.
type BookLevel struct {
	Price Price
	Size  Quantity
}

// BookSnapshot is the payload for EventBookSnapshot: a leveled view of a
// single token's order book at a point in time.
type BookSnapshot struct {
	TokenID   TokenID
	MarketID  MarketID
	Seq       uint64
	Bids      []BookLevel
	Asks      []BookLevel
	Resyncing bool
}

// BestBidAsk returns the top of book, or ok=false if either side is empty.
func (b BookSnapshot) BestBidAsk() (bid, ask BookLevel, ok bool) {
	if len(b.Bids) == 0 || len(b.Asks) == 0 {
		return BookLevel{}, BookLevel{}, false
	}
	return b.Bids[0], b.Asks[0], true
}

// BookUpdate is the payload for EventBookUpdate: an incremental delta
// to a single token's order book, applied relative to the book's last
// accepted sequence number rather than replacing it wholesale.
type BookUpdate struct {
	TokenID TokenID
	Seq     uint64
	Bids    []BookLevel
	Asks    []BookLevel
}

// EdgeQuality is the payload for EventEdgeQuality, produced by the edge
// calculator for every evaluated market on every book update.
type EdgeQuality struct {
	MarketID         MarketID
	ExecutableEdge   int64 // basis points (10000 = 1.0)
	YesAskPrice      Price
	NoAskPrice       Price
	FeeRateBps       int64
	SlippageBps      int64
	FailureBufferBps int64
	Size             Quantity
	Actionable       bool
}

// Position tracks signed exposure per token.
type Position struct {
	TokenID    TokenID
	NetQty     Quantity
	AvgPrice   Price
	RealizedPL int64
}

// PnLState is the rolling PnL snapshot the risk manager evaluates
// against drawdown and loss-breaker thresholds.
type PnLState struct {
	AsOf           int64
	RealizedPL     int64
	UnrealizedPL   int64
	HighWatermark  int64
	HourlyPL       int64
	DailyPL        int64
	RejectRatio    float64
	OpenOrderCount int
}

// CommandType enumerates the operator commands accepted by the command
// bus.
type CommandType uint16

const (
	CommandUnknown CommandType = iota
	CommandPause
	CommandResume
	CommandFlatten
	CommandFlattenMarket
	CommandKillSwitch
	CommandSetMinEdge
	CommandReloadConfig
	// CommandSet is the generalized "set k=v ..." command: an atomic,
	// bounds-validated update of one or more runtime threshold keys,
	// carried in Command.Settings rather than the single-field Param
	// CommandSetMinEdge uses.
	CommandSet
	// CommandMarketsOn re-enables a market the edge decay guard
	// disabled, clearing its quality history.
	CommandMarketsOn
	// CommandMarketsOff manually disables a market in the registry,
	// independent of the decay guard.
	CommandMarketsOff
	// CommandBacktest runs the backtest harness against a recorded WAL
	// directory; refused when the engine is running live.
	CommandBacktest
)

// SettingKey names one of the runtime thresholds the generalized "set"
// command may mutate atomically.
type SettingKey string

const (
	SettingMinEdgeBps    SettingKey = "min_edge_bps"
	SettingRequestedSize SettingKey = "requested_size"
)

// Command is the payload for EventCommand: an operator-issued control
// message accepted by the command bus and applied on the core loop.
type Command struct {
	Type      CommandType
	MarketID  MarketID
	MarketIDs []MarketID
	Param     int64
	Settings  map[SettingKey]int64
	IssuedBy  string
	IssuedAt  int64
	RequestID string
}

// SafetyTransition is the payload for EventSafetyTransition, recorded
// to the WAL every time the engine's safety mode changes so replay can
// reconstruct the exact operating history.
type SafetyTransition struct {
	From   SafetyMode
	To     SafetyMode
	Reason string
	AsOf   int64
}
