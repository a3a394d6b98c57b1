package risk

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yanun0323/polyarb/internal/schema"
)

func TestManagerTripsOnDrawdown(t *testing.T) {
	m := NewManager(NewEngine(Config{}), BreakerConfig{MaxDrawdown: 100})
	tripped, reason := m.ObservePnL(schema.PnLState{RealizedPL: 100})
	require.False(t, tripped)
	require.Equal(t, schema.SafetyModeRunning, m.Mode())

	tripped, reason = m.ObservePnL(schema.PnLState{RealizedPL: -50})
	require.True(t, tripped)
	require.Contains(t, reason, "drawdown")
	require.Equal(t, schema.SafetyModeFlattening, m.Mode())
}

func TestManagerDeniesWhenNotRunning(t *testing.T) {
	m := NewManager(NewEngine(Config{}), BreakerConfig{})
	m.ForceSafe()
	decision := m.Evaluate(schema.OrderIntent{OrderID: 1}, StateView{})
	require.Equal(t, schema.RiskActionDeny, decision.Action)
}

func TestManagerResumeOnlyFromPaused(t *testing.T) {
	m := NewManager(NewEngine(Config{}), BreakerConfig{})
	require.False(t, m.Resume())

	m.mode = schema.SafetyModePaused
	require.True(t, m.Resume())
	require.Equal(t, schema.SafetyModeRunning, m.Mode())

	m.ForceSafe()
	require.False(t, m.Resume())
}

func TestManagerPauseOnlyFromRunning(t *testing.T) {
	m := NewManager(NewEngine(Config{}), BreakerConfig{})
	require.True(t, m.Pause())
	require.Equal(t, schema.SafetyModePaused, m.Mode())
	require.False(t, m.Pause())
}

func TestPositionBookRealizesProfitOnClose(t *testing.T) {
	b := NewPositionBook()
	b.ApplyFill(1, schema.OrderSideBuy, 100, 10)
	pos := b.ApplyFill(1, schema.OrderSideSell, 110, 10)
	require.Equal(t, schema.Quantity(0), pos.NetQty)
	require.Equal(t, int64(100), pos.RealizedPL)
}

func TestPositionBookAveragesSameSideFills(t *testing.T) {
	b := NewPositionBook()
	b.ApplyFill(1, schema.OrderSideBuy, 100, 10)
	pos := b.ApplyFill(1, schema.OrderSideBuy, 120, 10)
	require.Equal(t, schema.Quantity(20), pos.NetQty)
	require.Equal(t, schema.Price(110), pos.AvgPrice)
}
