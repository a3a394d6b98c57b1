package codec

import (
	"encoding/binary"

	"github.com/yanun0323/polyarb/internal/schema"
)

// bookSnapshotHeaderSize is the fixed prefix before the variable-length
// bid/ask level arrays: token id, market id, seq, resyncing flag, then
// two uint16 level counts.
const bookSnapshotHeaderSize = 4 + 4 + 8 + 1 + 2 + 2

// levelSize is the encoded size of one schema.BookLevel (price, size).
const levelSize = 8 + 8

// EncodeBookSnapshot serializes a book snapshot into a variable-length
// payload: fixed header followed by bid levels then ask levels.
func EncodeBookSnapshot(dst []byte, snap schema.BookSnapshot) []byte {
	total := bookSnapshotHeaderSize + (len(snap.Bids)+len(snap.Asks))*levelSize
	if cap(dst) < total {
		dst = make([]byte, total)
	} else {
		dst = dst[:total]
	}

	binary.LittleEndian.PutUint32(dst[0:4], uint32(snap.TokenID))
	binary.LittleEndian.PutUint32(dst[4:8], uint32(snap.MarketID))
	binary.LittleEndian.PutUint64(dst[8:16], snap.Seq)
	if snap.Resyncing {
		dst[16] = 1
	} else {
		dst[16] = 0
	}
	binary.LittleEndian.PutUint16(dst[17:19], uint16(len(snap.Bids)))
	binary.LittleEndian.PutUint16(dst[19:21], uint16(len(snap.Asks)))

	off := bookSnapshotHeaderSize
	for _, lvl := range snap.Bids {
		binary.LittleEndian.PutUint64(dst[off:off+8], uint64(lvl.Price))
		binary.LittleEndian.PutUint64(dst[off+8:off+16], uint64(lvl.Size))
		off += levelSize
	}
	for _, lvl := range snap.Asks {
		binary.LittleEndian.PutUint64(dst[off:off+8], uint64(lvl.Price))
		binary.LittleEndian.PutUint64(dst[off+8:off+16], uint64(lvl.Size))
		off += levelSize
	}
	return dst
}

// DecodeBookSnapshot parses a variable-length book snapshot payload.
func DecodeBookSnapshot(src []byte) (schema.BookSnapshot, bool) {
	if len(src) < bookSnapshotHeaderSize {
		return schema.BookSnapshot{}, false
	}
	snap := schema.BookSnapshot{
		TokenID:   schema.TokenID(binary.LittleEndian.Uint32(src[0:4])),
		MarketID:  schema.MarketID(binary.LittleEndian.Uint32(src[4:8])),
		Seq:       binary.LittleEndian.Uint64(src[8:16]),
		Resyncing: src[16] != 0,
	}
	bidCount := int(binary.LittleEndian.Uint16(src[17:19]))
	askCount := int(binary.LittleEndian.Uint16(src[19:21]))

	off := bookSnapshotHeaderSize
	need := off + (bidCount+askCount)*levelSize
	if len(src) < need {
		return schema.BookSnapshot{}, false
	}

	snap.Bids = make([]schema.BookLevel, bidCount)
	for i := range snap.Bids {
		snap.Bids[i] = schema.BookLevel{
			Price: schema.Price(int64(binary.LittleEndian.Uint64(src[off : off+8]))),
			Size:  schema.Quantity(int64(binary.LittleEndian.Uint64(src[off+8 : off+16]))),
		}
		off += levelSize
	}
	snap.Asks = make([]schema.BookLevel, askCount)
	for i := range snap.Asks {
		snap.Asks[i] = schema.BookLevel{
			Price: schema.Price(int64(binary.LittleEndian.Uint64(src[off : off+8]))),
			Size:  schema.Quantity(int64(binary.LittleEndian.Uint64(src[off+8 : off+16]))),
		}
		off += levelSize
	}
	return snap, true
}
