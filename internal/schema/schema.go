package schema

// SchemaVersion is the current event schema version.
const SchemaVersion uint16 = 1

// EventType defines the category of an event stored in the WAL.
type EventType uint16

const (
	EventUnknown EventType = iota
	EventMarketData
	EventOrderIntent
	EventOrderAck
	EventFill
	EventRiskDecision
	EventStrategyDecision
	EventBookSnapshot
	EventEdgeQuality
	EventSafetyTransition
	EventCommand
	EventPosition
	EventPnL
	EventBookUpdate
)

var eventTypeNames = [...]string{
	"unknown", "market_data", "order_intent", "order_ack", "fill",
	"risk_decision", "strategy_decision", "book_snapshot", "edge_quality",
	"safety_transition", "command", "position", "pnl", "book_update",
}

// String returns the lowercase snake_case name used in logs and metric
// labels.
func (t EventType) String() string {
	if int(t) < len(eventTypeNames) {
		return eventTypeNames[t]
	}
	return "unknown"
}

// EventHeader is the common metadata attached to every event.
type EventHeader struct {
	Type    EventType
	Version uint16
	Source  uint16
	Flags   uint16
	Seq     uint64
	TsEvent int64
	TsRecv  int64
	TraceID uint64
}

// NewHeader builds a header with the current schema version.
func NewHeader(eventType EventType, source uint16, seq uint64, tsEvent, tsRecv int64) EventHeader {
	return EventHeader{
		Type:    eventType,
		Version: SchemaVersion,
		Source:  source,
		Seq:     seq,
		TsEvent: tsEvent,
		TsRecv:  tsRecv,
	}
}
