package codec

import (
	"encoding/binary"

	"github.com/yanun0323/polyarb/internal/schema"
)

// bookUpdateHeaderSize is the fixed prefix before the variable-length
// bid/ask level arrays: token id, seq, then two uint16 level counts.
const bookUpdateHeaderSize = 4 + 8 + 2 + 2

// EncodeBookUpdate serializes an incremental book update into a
// variable-length payload: fixed header followed by bid deltas then
// ask deltas.
func EncodeBookUpdate(dst []byte, upd schema.BookUpdate) []byte {
	total := bookUpdateHeaderSize + (len(upd.Bids)+len(upd.Asks))*levelSize
	if cap(dst) < total {
		dst = make([]byte, total)
	} else {
		dst = dst[:total]
	}

	binary.LittleEndian.PutUint32(dst[0:4], uint32(upd.TokenID))
	binary.LittleEndian.PutUint64(dst[4:12], upd.Seq)
	binary.LittleEndian.PutUint16(dst[12:14], uint16(len(upd.Bids)))
	binary.LittleEndian.PutUint16(dst[14:16], uint16(len(upd.Asks)))

	off := bookUpdateHeaderSize
	for _, lvl := range upd.Bids {
		binary.LittleEndian.PutUint64(dst[off:off+8], uint64(lvl.Price))
		binary.LittleEndian.PutUint64(dst[off+8:off+16], uint64(lvl.Size))
		off += levelSize
	}
	for _, lvl := range upd.Asks {
		binary.LittleEndian.PutUint64(dst[off:off+8], uint64(lvl.Price))
		binary.LittleEndian.PutUint64(dst[off+8:off+16], uint64(lvl.Size))
		off += levelSize
	}
	return dst
}

// DecodeBookUpdate parses a variable-length book update payload.
func DecodeBookUpdate(src []byte) (schema.BookUpdate, bool) {
	if len(src) < bookUpdateHeaderSize {
		return schema.BookUpdate{}, false
	}
	upd := schema.BookUpdate{
		TokenID: schema.TokenID(binary.LittleEndian.Uint32(src[0:4])),
		Seq:     binary.LittleEndian.Uint64(src[4:12]),
	}
	bidCount := int(binary.LittleEndian.Uint16(src[12:14]))
	askCount := int(binary.LittleEndian.Uint16(src[14:16]))

	off := bookUpdateHeaderSize
	need := off + (bidCount+askCount)*levelSize
	if len(src) < need {
		return schema.BookUpdate{}, false
	}

	upd.Bids = make([]schema.BookLevel, bidCount)
	for i := range upd.Bids {
		upd.Bids[i] = schema.BookLevel{
			Price: schema.Price(int64(binary.LittleEndian.Uint64(src[off : off+8]))),
			Size:  schema.Quantity(int64(binary.LittleEndian.Uint64(src[off+8 : off+16]))),
		}
		off += levelSize
	}
	upd.Asks = make([]schema.BookLevel, askCount)
	for i := range upd.Asks {
		upd.Asks[i] = schema.BookLevel{
			Price: schema.Price(int64(binary.LittleEndian.Uint64(src[off : off+8]))),
			Size:  schema.Quantity(int64(binary.LittleEndian.Uint64(src[off+8 : off+16]))),
		}
		off += levelSize
	}
	return upd, true
}
