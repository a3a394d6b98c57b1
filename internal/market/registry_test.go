package market

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yanun0323/polyarb/internal/schema"
)

func TestRegistryUpsertAndLookup(t *testing.T) {
	reg := NewRegistry(schema.LabelModeStrict)

	id, err := reg.Upsert(UpsertSpec{
		ConditionID: "0xabc",
		Question:    "Will it rain tomorrow?",
		YesTokenID:  1,
		NoTokenID:   2,
		YesLabel:    "Yes",
		NoLabel:     "No",
		TickSize:    1,
		Active:      true,
	})
	require.NoError(t, err)
	require.Equal(t, schema.MarketID(1), id)

	m, ok := reg.MarketByCondition("0xabc")
	require.True(t, ok)
	require.Equal(t, schema.TokenID(1), m.YesToken)

	outcome, ok := reg.OutcomeForToken(2)
	require.True(t, ok)
	require.Equal(t, schema.OutcomeNo, outcome)

	_, err = reg.Upsert(UpsertSpec{ConditionID: "0xdef", YesTokenID: 0, NoTokenID: 0})
	require.ErrorIs(t, err, ErrAmbiguousLabel)
}

func TestRegistryRefreshRejectsTokenChange(t *testing.T) {
	reg := NewRegistry(schema.LabelModePermissive)
	_, err := reg.Upsert(UpsertSpec{ConditionID: "c1", YesTokenID: 1, NoTokenID: 2, Active: true})
	require.NoError(t, err)

	_, err = reg.Upsert(UpsertSpec{ConditionID: "c1", YesTokenID: 3, NoTokenID: 4, Active: true})
	require.Error(t, err)
}

func TestRegistryDeactivate(t *testing.T) {
	reg := NewRegistry(schema.LabelModePermissive)
	id, err := reg.Upsert(UpsertSpec{ConditionID: "c1", YesTokenID: 1, NoTokenID: 2, Active: true})
	require.NoError(t, err)
	require.NoError(t, reg.Deactivate(id))

	require.Len(t, reg.ActiveMarkets(), 0)
	require.Error(t, reg.Deactivate(schema.MarketID(99)))
}
