package og

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yanun0323/polyarb/internal/schema"
)

func TestStateMachineLifecycle(t *testing.T) {
	sm := NewStateMachine()
	o, err := sm.ApplyIntent(schema.OrderIntent{OrderID: 1, SymbolID: 7, Qty: 10})
	require.NoError(t, err)
	require.Equal(t, OrderStatePendingSubmit, o.State)

	_, err = sm.ApplyIntent(schema.OrderIntent{OrderID: 1, SymbolID: 7, Qty: 10})
	require.ErrorIs(t, err, ErrDuplicateOrder)

	o, err = sm.Dispatch(1, 1000)
	require.NoError(t, err)
	require.Equal(t, OrderStateSent, o.State)

	o, err = sm.ApplyAck(schema.OrderAck{OrderID: 1, Status: schema.OrderAckStatusAcked, Qty: 10, LeavesQty: 10})
	require.NoError(t, err)
	require.Equal(t, OrderStateAcked, o.State)

	o, err = sm.ApplyFill(schema.Fill{OrderID: 1, Qty: 4})
	require.NoError(t, err)
	require.Equal(t, OrderStatePartFilled, o.State)
	require.Equal(t, schema.Quantity(6), o.LeavesQty)

	o, err = sm.ApplyFill(schema.Fill{OrderID: 1, Qty: 6})
	require.NoError(t, err)
	require.Equal(t, OrderStateFilled, o.State)

	_, err = sm.ApplyFill(schema.Fill{OrderID: 1, Qty: 1})
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRequestCancelIsIdempotent(t *testing.T) {
	sm := NewStateMachine()
	_, _ = sm.ApplyIntent(schema.OrderIntent{OrderID: 1, Qty: 10})
	_, _ = sm.Dispatch(1, 1)
	_, _ = sm.ApplyAck(schema.OrderAck{OrderID: 1, Status: schema.OrderAckStatusAcked})

	o, err := sm.RequestCancel(1)
	require.NoError(t, err)
	require.Equal(t, OrderStateCancelling, o.State)

	o, err = sm.RequestCancel(1)
	require.NoError(t, err)
	require.Equal(t, OrderStateCancelling, o.State)
}

func TestDeduperRejectsDuplicateFingerprint(t *testing.T) {
	d := NewDeduper()
	fp := Fingerprint("corr-1", schema.OrderIntent{SymbolID: 1, Side: schema.OrderSideBuy, Price: 100, Qty: 5})
	_, dup := d.Admit(fp, 1)
	require.False(t, dup)

	id, dup := d.Admit(fp, 2)
	require.True(t, dup)
	require.Equal(t, uint64(1), id)
}

func TestChurnGovernorCapsWithinWindow(t *testing.T) {
	g := NewChurnGovernor(2, 60)
	g.RecordCancel(1, 1000)
	g.RecordCancel(1, 1010)
	require.False(t, g.Allowed(1, 1020))
	require.True(t, g.Allowed(1, 1070))
}

func TestRateLimiterHalvesOnRejectAndRecovers(t *testing.T) {
	r := NewRateLimiter(4, 4, 1)
	require.True(t, r.AllowSubmit())
	r.OnSubmitRejected()
	// capacity halved to 2, already consumed 1 token leaves at most 2
	for i := 0; i < 2; i++ {
		require.True(t, r.AllowSubmit())
	}
	require.False(t, r.AllowSubmit())

	// an acceptance recovers capacity to 3; refills then cap at 3 tokens
	r.OnSubmitAccepted()
	for i := 0; i < 4; i++ {
		r.Tick()
	}
	for i := 0; i < 3; i++ {
		require.True(t, r.AllowSubmit())
	}
	require.False(t, r.AllowSubmit())
}
