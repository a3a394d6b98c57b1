package mdg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/yanun0323/polyarb/internal/market"
	"github.com/yanun0323/polyarb/internal/schema"
)

func seedRegistry(t *testing.T) *market.Registry {
	t.Helper()
	reg := market.NewRegistry(schema.LabelModePermissive)
	_, err := reg.Upsert(market.UpsertSpec{
		ConditionID: "0xabc", YesTokenID: 1, NoTokenID: 2,
		TickSize: 1, MinOrderSize: 1, Active: true,
	})
	require.NoError(t, err)
	return reg
}

func TestGeneratorAlternatesYesAndNo(t *testing.T) {
	reg := seedRegistry(t)
	gen, err := NewGenerator(reg, 1, 9900, 100, 10, 0)
	require.NoError(t, err)

	first := gen.Next(time.Unix(0, 0))
	second := gen.Next(time.Unix(0, 0))
	require.Equal(t, schema.OutcomeYes, first.Outcome)
	require.Equal(t, schema.OutcomeNo, second.Outcome)
}

func TestGeneratorAppliesArbBiasEveryFifthTick(t *testing.T) {
	reg := seedRegistry(t)
	gen, err := NewGenerator(reg, 1, 9900, 100, 10, 500)
	require.NoError(t, err)

	var biased bool
	for i := 0; i < 10; i++ {
		tick := gen.Next(time.Unix(0, 0))
		if tick.AskPrice < 9900 {
			biased = true
		}
	}
	require.True(t, biased)
}

func TestNewGeneratorRejectsEmptyRegistry(t *testing.T) {
	reg := market.NewRegistry(schema.LabelModeStrict)
	_, err := NewGenerator(reg, 1, 9900, 100, 10, 0)
	require.Error(t, err)
}

func TestNormalizeProducesBookSnapshot(t *testing.T) {
	n := NewNormalizer()
	header, snap, err := n.Normalize(5, RawTick{
		MarketID: 1, TokenID: 1, Outcome: schema.OutcomeYes,
		BidPrice: 9890, BidSize: 100, AskPrice: 9900, AskSize: 100,
	})
	require.NoError(t, err)
	require.Equal(t, schema.EventBookSnapshot, header.Type)
	require.Equal(t, uint64(5), snap.Seq)
	require.Equal(t, schema.Price(9900), snap.Asks[0].Price)
}

func TestNormalizeRejectsZeroToken(t *testing.T) {
	n := NewNormalizer()
	_, _, err := n.Normalize(1, RawTick{})
	require.Error(t, err)
}
