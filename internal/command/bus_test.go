package command

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yanun0323/polyarb/internal/schema"
)

func TestSubmitAndDrainRoundTrip(t *testing.T) {
	b := NewBus(4)
	require.NoError(t, b.Submit(schema.Command{Type: schema.CommandPause, IssuedBy: "operator", IssuedAt: 1}))
	require.NoError(t, b.Submit(schema.Command{Type: schema.CommandFlattenMarket, MarketID: 7, RequestID: "req-1"}))

	cmds := b.Drain(10)
	require.Len(t, cmds, 2)
	require.Equal(t, schema.CommandPause, cmds[0].Type)
	require.Equal(t, "operator", cmds[0].IssuedBy)
	require.Equal(t, schema.MarketID(7), cmds[1].MarketID)
	require.Equal(t, "req-1", cmds[1].RequestID)
}

func TestValidateRejectsMissingMarket(t *testing.T) {
	err := Validate(schema.Command{Type: schema.CommandFlattenMarket})
	require.ErrorIs(t, err, ErrMissingMarket)

	err = Validate(schema.Command{Type: schema.CommandType(99)})
	require.ErrorIs(t, err, ErrUnknownCommand)
}
