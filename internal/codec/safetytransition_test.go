package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yanun0323/polyarb/internal/schema"
)

func TestSafetyTransitionRoundTrip(t *testing.T) {
	tr := schema.SafetyTransition{
		From:   schema.SafetyModeRunning,
		To:     schema.SafetyModeFlattening,
		Reason: "max drawdown exceeded",
		AsOf:   1700000000,
	}

	encoded := EncodeSafetyTransition(nil, tr)
	decoded, ok := DecodeSafetyTransition(encoded)
	require.True(t, ok)
	require.Equal(t, tr, decoded)
}

func TestDecodeSafetyTransitionRejectsTruncatedReason(t *testing.T) {
	tr := schema.SafetyTransition{From: schema.SafetyModeRunning, To: schema.SafetyModeSafe, Reason: "kill switch"}
	encoded := EncodeSafetyTransition(nil, tr)
	_, ok := DecodeSafetyTransition(encoded[:len(encoded)-4])
	require.False(t, ok)
}
