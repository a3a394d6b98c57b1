package flatten

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yanun0323/polyarb/internal/og"
	"github.com/yanun0323/polyarb/internal/schema"
)

type stubCanceller struct{ calls int }

func (s *stubCanceller) Cancel(ctx context.Context, orderID uint64) (schema.OrderAck, error) {
	s.calls++
	return schema.OrderAck{OrderID: orderID, Status: schema.OrderAckStatusCanceled}, nil
}

type stubPositions struct{ byToken map[schema.TokenID]schema.Position }

func (s stubPositions) Position(tokenID schema.TokenID) schema.Position {
	return s.byToken[tokenID]
}

type stubUnwinder struct{ calls int }

func (s *stubUnwinder) Unwind(ctx context.Context, tokenID schema.TokenID, qty schema.Quantity, side schema.OrderSide) error {
	s.calls++
	return nil
}

func TestWorkflowCancelOnlySkipsUnwind(t *testing.T) {
	sm := og.NewStateMachine()
	_, _ = sm.ApplyIntent(schema.OrderIntent{OrderID: 1, Qty: 1})
	canceller := &stubCanceller{}

	wf := NewWorkflow(Config{}, ModeCancelOnly, sm, canceller, nil, nil, nil)
	res := wf.Run(context.Background(), nil)
	require.Equal(t, 1, res.CancelRequested)
	require.Equal(t, 1, canceller.calls)
}

func TestWorkflowCancelAndUnwind(t *testing.T) {
	sm := og.NewStateMachine()
	canceller := &stubCanceller{}
	positions := stubPositions{byToken: map[schema.TokenID]schema.Position{1: {TokenID: 1, NetQty: 5}}}
	unwinder := &stubUnwinder{}

	wf := NewWorkflow(Config{}, ModeCancelAndUnwind, sm, canceller, positions, unwinder, nil)
	res := wf.Run(context.Background(), []schema.TokenID{1})
	require.Equal(t, 1, res.UnwindRequested)
	require.Equal(t, 1, unwinder.calls)
}
