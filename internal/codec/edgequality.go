package codec

import (
	"encoding/binary"

	"github.com/yanun0323/polyarb/internal/schema"
)

const EdgeQualityPayloadSize = 64

// EncodeEdgeQuality serializes an edge quality sample into a fixed-size
// payload, used to WAL every strategy evaluation for later backtest
// comparison against realised fills.
func EncodeEdgeQuality(dst []byte, q schema.EdgeQuality) []byte {
	if cap(dst) < EdgeQualityPayloadSize {
		dst = make([]byte, EdgeQualityPayloadSize)
	} else {
		dst = dst[:EdgeQualityPayloadSize]
	}

	binary.LittleEndian.PutUint32(dst[0:4], uint32(q.MarketID))
	actionable := uint32(0)
	if q.Actionable {
		actionable = 1
	}
	binary.LittleEndian.PutUint32(dst[4:8], actionable)
	binary.LittleEndian.PutUint64(dst[8:16], uint64(q.ExecutableEdge))
	binary.LittleEndian.PutUint64(dst[16:24], uint64(q.YesAskPrice))
	binary.LittleEndian.PutUint64(dst[24:32], uint64(q.NoAskPrice))
	binary.LittleEndian.PutUint64(dst[32:40], uint64(q.FeeRateBps))
	binary.LittleEndian.PutUint64(dst[40:48], uint64(q.SlippageBps))
	binary.LittleEndian.PutUint64(dst[48:56], uint64(q.FailureBufferBps))
	binary.LittleEndian.PutUint64(dst[56:64], uint64(q.Size))

	return dst
}

// DecodeEdgeQuality parses a fixed-size edge quality payload.
func DecodeEdgeQuality(src []byte) (schema.EdgeQuality, bool) {
	if len(src) < EdgeQualityPayloadSize {
		return schema.EdgeQuality{}, false
	}
	return schema.EdgeQuality{
		MarketID:         schema.MarketID(binary.LittleEndian.Uint32(src[0:4])),
		Actionable:       binary.LittleEndian.Uint32(src[4:8]) != 0,
		ExecutableEdge:   int64(binary.LittleEndian.Uint64(src[8:16])),
		YesAskPrice:      schema.Price(int64(binary.LittleEndian.Uint64(src[16:24]))),
		NoAskPrice:       schema.Price(int64(binary.LittleEndian.Uint64(src[24:32]))),
		FeeRateBps:       int64(binary.LittleEndian.Uint64(src[32:40])),
		SlippageBps:      int64(binary.LittleEndian.Uint64(src[40:48])),
		FailureBufferBps: int64(binary.LittleEndian.Uint64(src[48:56])),
		Size:             schema.Quantity(int64(binary.LittleEndian.Uint64(src[56:64]))),
	}, true
}
