package obs

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/polyarb/internal/schema"
)

func TestPromExporterCollectReflectsMetrics(t *testing.T) {
	m := NewMetrics()
	m.ObserveEvent(schema.NewHeader(schema.EventFill, 1, 1, 0, 0))
	m.IncRiskReason(schema.RiskReasonMaxQty)
	m.IncQueueDrop()

	reg := prometheus.NewRegistry()
	exp := NewPromExporter(m, reg)
	exp.Collect(schema.SafetyModeRunning)

	families, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, f := range families {
		if f.GetName() == "polyarb_safety_mode" {
			found = true
			require.Equal(t, float64(schema.SafetyModeRunning), f.Metric[0].GetGauge().GetValue())
		}
	}
	require.True(t, found, "safety_mode gauge should be registered")
}
