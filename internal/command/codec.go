package command

import (
	"encoding/binary"

	"github.com/yanun0323/polyarb/internal/schema"
)

// fixedPayloadSize covers Type, MarketID, Param, and IssuedAt; every
// variable-length field (MarketIDs, Settings, IssuedBy, RequestID)
// follows as a length-prefixed section.
const fixedPayloadSize = 2 + 4 + 8 + 8

func encode(cmd schema.Command) []byte {
	issuedBy := []byte(cmd.IssuedBy)
	requestID := []byte(cmd.RequestID)

	settingsSize := 2
	for k := range cmd.Settings {
		settingsSize += 2 + len(k) + 8
	}

	size := fixedPayloadSize +
		2 + 4*len(cmd.MarketIDs) +
		settingsSize +
		2 + len(issuedBy) +
		2 + len(requestID)
	dst := make([]byte, size)

	binary.LittleEndian.PutUint16(dst[0:2], uint16(cmd.Type))
	binary.LittleEndian.PutUint32(dst[2:6], uint32(cmd.MarketID))
	binary.LittleEndian.PutUint64(dst[6:14], uint64(cmd.Param))
	binary.LittleEndian.PutUint64(dst[14:22], uint64(cmd.IssuedAt))

	off := fixedPayloadSize
	binary.LittleEndian.PutUint16(dst[off:off+2], uint16(len(cmd.MarketIDs)))
	off += 2
	for _, id := range cmd.MarketIDs {
		binary.LittleEndian.PutUint32(dst[off:off+4], uint32(id))
		off += 4
	}

	binary.LittleEndian.PutUint16(dst[off:off+2], uint16(len(cmd.Settings)))
	off += 2
	for k, v := range cmd.Settings {
		kb := []byte(k)
		binary.LittleEndian.PutUint16(dst[off:off+2], uint16(len(kb)))
		off += 2
		off += copy(dst[off:], kb)
		binary.LittleEndian.PutUint64(dst[off:off+8], uint64(v))
		off += 8
	}

	binary.LittleEndian.PutUint16(dst[off:off+2], uint16(len(issuedBy)))
	off += 2
	off += copy(dst[off:], issuedBy)
	binary.LittleEndian.PutUint16(dst[off:off+2], uint16(len(requestID)))
	off += 2
	copy(dst[off:], requestID)

	return dst
}

func decode(src []byte) (schema.Command, bool) {
	if len(src) < fixedPayloadSize+2 {
		return schema.Command{}, false
	}
	cmd := schema.Command{
		Type:     schema.CommandType(binary.LittleEndian.Uint16(src[0:2])),
		MarketID: schema.MarketID(binary.LittleEndian.Uint32(src[2:6])),
		Param:    int64(binary.LittleEndian.Uint64(src[6:14])),
		IssuedAt: int64(binary.LittleEndian.Uint64(src[14:22])),
	}
	off := fixedPayloadSize

	marketIDCount := int(binary.LittleEndian.Uint16(src[off : off+2]))
	off += 2
	for i := 0; i < marketIDCount; i++ {
		if off+4 > len(src) {
			return schema.Command{}, false
		}
		cmd.MarketIDs = append(cmd.MarketIDs, schema.MarketID(binary.LittleEndian.Uint32(src[off:off+4])))
		off += 4
	}

	if off+2 > len(src) {
		return schema.Command{}, false
	}
	settingsCount := int(binary.LittleEndian.Uint16(src[off : off+2]))
	off += 2
	if settingsCount > 0 {
		cmd.Settings = make(map[schema.SettingKey]int64, settingsCount)
	}
	for i := 0; i < settingsCount; i++ {
		if off+2 > len(src) {
			return schema.Command{}, false
		}
		keyLen := int(binary.LittleEndian.Uint16(src[off : off+2]))
		off += 2
		if off+keyLen+8 > len(src) {
			return schema.Command{}, false
		}
		key := schema.SettingKey(src[off : off+keyLen])
		off += keyLen
		value := int64(binary.LittleEndian.Uint64(src[off : off+8]))
		off += 8
		cmd.Settings[key] = value
	}

	if off+2 > len(src) {
		return schema.Command{}, false
	}
	issuedByLen := int(binary.LittleEndian.Uint16(src[off : off+2]))
	off += 2
	if off+issuedByLen > len(src) {
		return schema.Command{}, false
	}
	cmd.IssuedBy = string(src[off : off+issuedByLen])
	off += issuedByLen

	if off+2 > len(src) {
		return schema.Command{}, false
	}
	requestIDLen := int(binary.LittleEndian.Uint16(src[off : off+2]))
	off += 2
	if off+requestIDLen > len(src) {
		return schema.Command{}, false
	}
	cmd.RequestID = string(src[off : off+requestIDLen])

	return cmd, true
}
