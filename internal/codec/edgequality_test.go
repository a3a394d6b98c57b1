package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yanun0323/polyarb/internal/schema"
)

func TestEdgeQualityRoundTrip(t *testing.T) {
	q := schema.EdgeQuality{
		MarketID:         3,
		ExecutableEdge:   42,
		YesAskPrice:      4900,
		NoAskPrice:       4950,
		FeeRateBps:       10,
		SlippageBps:      5,
		FailureBufferBps: 15,
		Size:             25,
		Actionable:       true,
	}

	encoded := EncodeEdgeQuality(nil, q)
	decoded, ok := DecodeEdgeQuality(encoded)
	require.True(t, ok)
	require.Equal(t, q.MarketID, decoded.MarketID)
	require.Equal(t, q.ExecutableEdge, decoded.ExecutableEdge)
	require.Equal(t, q.Actionable, decoded.Actionable)
	require.Equal(t, q.FailureBufferBps, decoded.FailureBufferBps)
	require.Equal(t, q.Size, decoded.Size)
}

func TestDecodeEdgeQualityRejectsTruncatedPayload(t *testing.T) {
	_, ok := DecodeEdgeQuality([]byte{1, 2, 3})
	require.False(t, ok)
}
