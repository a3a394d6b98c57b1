package codec

import (
	"encoding/binary"

	"github.com/yanun0323/polyarb/internal/schema"
)

// safetyTransitionHeaderSize is the fixed prefix before the
// variable-length reason string: from, to, AsOf, then a uint16 reason
// length.
const safetyTransitionHeaderSize = 1 + 1 + 8 + 2

// EncodeSafetyTransition serializes a safety mode transition, recorded
// to the WAL every time the engine's mode changes so replay can
// reconstruct the exact operating history.
func EncodeSafetyTransition(dst []byte, t schema.SafetyTransition) []byte {
	total := safetyTransitionHeaderSize + len(t.Reason)
	if cap(dst) < total {
		dst = make([]byte, total)
	} else {
		dst = dst[:total]
	}

	dst[0] = byte(t.From)
	dst[1] = byte(t.To)
	binary.LittleEndian.PutUint64(dst[2:10], uint64(t.AsOf))
	binary.LittleEndian.PutUint16(dst[10:12], uint16(len(t.Reason)))
	copy(dst[12:], t.Reason)

	return dst
}

// DecodeSafetyTransition parses a safety mode transition payload.
func DecodeSafetyTransition(src []byte) (schema.SafetyTransition, bool) {
	if len(src) < safetyTransitionHeaderSize {
		return schema.SafetyTransition{}, false
	}
	reasonLen := int(binary.LittleEndian.Uint16(src[10:12]))
	if len(src) < safetyTransitionHeaderSize+reasonLen {
		return schema.SafetyTransition{}, false
	}
	return schema.SafetyTransition{
		From:   schema.SafetyMode(src[0]),
		To:     schema.SafetyMode(src[1]),
		AsOf:   int64(binary.LittleEndian.Uint64(src[2:10])),
		Reason: string(src[12 : 12+reasonLen]),
	}, true
}
