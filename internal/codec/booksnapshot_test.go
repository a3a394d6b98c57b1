package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yanun0323/polyarb/internal/schema"
)

func TestBookSnapshotRoundTrip(t *testing.T) {
	snap := schema.BookSnapshot{
		TokenID:  7,
		MarketID: 3,
		Seq:      42,
		Bids:     []schema.BookLevel{{Price: 9890, Size: 500}, {Price: 9880, Size: 250}},
		Asks:     []schema.BookLevel{{Price: 9900, Size: 400}},
	}

	encoded := EncodeBookSnapshot(nil, snap)
	decoded, ok := DecodeBookSnapshot(encoded)
	require.True(t, ok)
	require.Equal(t, snap, decoded)
}

func TestDecodeBookSnapshotRejectsTruncatedPayload(t *testing.T) {
	_, ok := DecodeBookSnapshot([]byte{1, 2, 3})
	require.False(t, ok)
}

func TestDecodeBookSnapshotRejectsShortLevelData(t *testing.T) {
	snap := schema.BookSnapshot{TokenID: 1, Bids: []schema.BookLevel{{Price: 1, Size: 1}}}
	encoded := EncodeBookSnapshot(nil, snap)
	_, ok := DecodeBookSnapshot(encoded[:len(encoded)-4])
	require.False(t, ok)
}
