package og

import (
	"errors"

	"github.com/yanun0323/polyarb/internal/schema"
)

var (
	ErrDuplicateOrder    = errors.New("order already exists")
	ErrUnknownOrder      = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid order state transition")
	ErrInvalidFill       = errors.New("invalid fill quantity")
	ErrOverfill          = errors.New("fill exceeds remaining order size")
)

// OrderState tracks the lifecycle of an order.
type OrderState uint16

const (
	OrderStateUnknown OrderState = iota
	OrderStateNew
	OrderStatePendingSubmit
	OrderStateSent
	OrderStateAcked
	OrderStatePartFilled
	OrderStateFilled
	OrderStateCancelling
	OrderStateCanceled
	OrderStateRejected
	OrderStateExpired
)

// Order holds the gateway's view of an order.
type Order struct {
	ID            uint64
	CorrelationID string
	Fingerprint   string
	MarketID      schema.MarketID
	SymbolID      uint32
	Side          schema.OrderSide
	Price         schema.Price
	Qty           schema.Quantity
	LeavesQty     schema.Quantity
	State         OrderState
	SubmittedAt   int64
}

// StateMachine updates orders from intent/ack/fill events.
type StateMachine struct {
	orders map[uint64]*Order
}

// NewStateMachine creates an empty state machine.
func NewStateMachine() *StateMachine {
	return &StateMachine{orders: make(map[uint64]*Order)}
}

// Order returns the current order state.
func (m *StateMachine) Order(id uint64) (*Order, bool) {
	o, ok := m.orders[id]
	return o, ok
}

// ApplyIntent admits a new order in PendingSubmit state; it has been
// accepted locally but not yet handed to the venue. Dispatch moves it
// to Sent once the gateway has written it to the wire.
func (m *StateMachine) ApplyIntent(intent schema.OrderIntent) (*Order, error) {
	if intent.OrderID == 0 {
		return nil, ErrUnknownOrder
	}
	if _, ok := m.orders[intent.OrderID]; ok {
		return nil, ErrDuplicateOrder
	}
	o := &Order{
		ID:        intent.OrderID,
		SymbolID:  intent.SymbolID,
		Side:      intent.Side,
		Price:     intent.Price,
		Qty:       intent.Qty,
		LeavesQty: intent.Qty,
		State:     OrderStatePendingSubmit,
	}
	m.orders[o.ID] = o
	return o, nil
}

// Annotate attaches correlation, fingerprint, and market metadata to an
// order right after admission. Kept separate from ApplyIntent because
// schema.OrderIntent carries none of these fields on the wire.
func (m *StateMachine) Annotate(orderID uint64, correlationID, fingerprint string, marketID schema.MarketID) {
	if o, ok := m.orders[orderID]; ok {
		o.CorrelationID = correlationID
		o.Fingerprint = fingerprint
		o.MarketID = marketID
	}
}

// Dispatch transitions an order from PendingSubmit to Sent once the
// gateway has written it to the venue connection.
func (m *StateMachine) Dispatch(orderID uint64, submittedAt int64) (*Order, error) {
	o, ok := m.orders[orderID]
	if !ok {
		return nil, ErrUnknownOrder
	}
	if o.State != OrderStatePendingSubmit {
		return o, ErrInvalidTransition
	}
	o.State = OrderStateSent
	o.SubmittedAt = submittedAt
	return o, nil
}

// RequestCancel transitions a live (Sent, Acked or PartFilled) order to
// Cancelling. It is idempotent: an order already Cancelling is
// returned unchanged rather than erroring, since cancel requests may
// be retried.
func (m *StateMachine) RequestCancel(orderID uint64) (*Order, error) {
	o, ok := m.orders[orderID]
	if !ok {
		return nil, ErrUnknownOrder
	}
	if o.State == OrderStateCancelling {
		return o, nil
	}
	if o.State != OrderStateAcked && o.State != OrderStatePartFilled && o.State != OrderStateSent {
		return o, ErrInvalidTransition
	}
	o.State = OrderStateCancelling
	return o, nil
}

// LiveOrders returns every order not yet in a terminal state, used by
// the flatten workflow and the TTL scanner.
func (m *StateMachine) LiveOrders() []*Order {
	out := make([]*Order, 0, len(m.orders))
	for _, o := range m.orders {
		if !isTerminal(o.State) {
			out = append(out, o)
		}
	}
	return out
}

// ApplyAck updates an order from an acknowledgment event.
func (m *StateMachine) ApplyAck(ack schema.OrderAck) (*Order, error) {
	o, ok := m.orders[ack.OrderID]
	if !ok {
		return nil, ErrUnknownOrder
	}
	if isTerminal(o.State) {
		return o, ErrInvalidTransition
	}
	if ack.SymbolID != 0 {
		o.SymbolID = ack.SymbolID
	}
	if ack.Qty != 0 {
		o.Qty = ack.Qty
	}
	if ack.LeavesQty != 0 {
		o.LeavesQty = ack.LeavesQty
	}

	switch ack.Status {
	case schema.OrderAckStatusAcked:
		o.State = OrderStateAcked
	case schema.OrderAckStatusRejected:
		o.State = OrderStateRejected
	case schema.OrderAckStatusCanceled:
		o.State = OrderStateCanceled
	case schema.OrderAckStatusExpired:
		o.State = OrderStateExpired
	case schema.OrderAckStatusPartFilled:
		o.State = OrderStatePartFilled
	case schema.OrderAckStatusFilled:
		o.State = OrderStateFilled
	default:
		o.State = OrderStateUnknown
	}
	return o, nil
}

// ApplyFill updates an order from a fill event.
func (m *StateMachine) ApplyFill(fill schema.Fill) (*Order, error) {
	o, ok := m.orders[fill.OrderID]
	if !ok {
		return nil, ErrUnknownOrder
	}
	if isTerminal(o.State) {
		return o, ErrInvalidTransition
	}
	qty := int64(fill.Qty)
	if qty == 0 {
		// Zero-size fills are a no-op, not an error: some venues echo a
		// fill message for a cancel-replace boundary with size 0.
		return o, nil
	}
	if qty < 0 {
		return o, ErrInvalidFill
	}
	if o.LeavesQty == 0 && o.Qty > 0 {
		o.LeavesQty = o.Qty
	}
	leaves := int64(o.LeavesQty) - qty
	if leaves < 0 {
		o.LeavesQty = 0
		o.State = OrderStateFilled
		return o, ErrOverfill
	}
	if leaves == 0 {
		o.LeavesQty = 0
		o.State = OrderStateFilled
	} else {
		o.LeavesQty = schema.Quantity(leaves)
		o.State = OrderStatePartFilled
	}
	return o, nil
}

func isTerminal(state OrderState) bool {
	switch state {
	case OrderStateFilled, OrderStateCanceled, OrderStateRejected, OrderStateExpired:
		return true
	default:
		return false
	}
}
