package edge

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yanun0323/polyarb/internal/schema"
)

func TestPredictedComputesExecutableEdge(t *testing.T) {
	edgeBps, fillable := Predicted(Inputs{
		YesAsk:           4800,
		NoAsk:            4900,
		FeeRateBps:       20,
		SlippageBps:      10,
		FailureBufferBps: 25,
		Size:             100,
		Fillable:         50,
	})

	require.Equal(t, int64(10000-4800-4900-20-10-25), edgeBps)
	require.Equal(t, schema.Quantity(50), fillable)
}

func TestActionableRequiresThresholdAndSize(t *testing.T) {
	require.True(t, Actionable(50, 20, 10, 30))
	require.False(t, Actionable(20, 20, 10, 30))
	require.False(t, Actionable(50, 5, 10, 30))
}
