// Package srr implements the SRR container: SrrWriter frames a set of
// RAR volumes plus embedded auxiliary files into a headers-only
// envelope, and SrrReconstructor replays that envelope against source
// payload files to rebuild the original volumes. Both share the SRR
// block type space defined here, generalizing rarlist's RAR4 header
// parsing into a symmetric read/write codec for SRR's own five block
// types.
package srr

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// SRR block type bytes (spec.md §3/§6). These share the 7-byte RAR4
// base-header shape so that a RAR-unaware reader can still skip over
// them using headerSize alone.
const (
	TypeHeader     = 0x69
	TypeStoredFile = 0x6A
	TypeOsoHash    = 0x6B
	TypeRarPadding = 0x6C
	TypeRarFile    = 0x71
)

// LongBlock mirrors rarblock.Rar4LongBlock; SRR blocks reuse the same
// bit so RAR tooling that only understands LONG_BLOCK still knows to
// skip addSize bytes of payload.
const LongBlock = 0x8000

const (
	headerFlagAppName = 0x0001
)

var (
	ErrMalformed = errors.New("srr: malformed block")
	ErrNotFound  = errors.New("srr: not found")
)

// baseHeader is the common 7-byte prefix of every SRR block:
// crc16|type|flags|headerSize, identical in shape to a RAR4 base
// header.
func putBaseHeader(buf []byte, crc uint16, typ byte, flags uint16, headerSize uint16) {
	binary.LittleEndian.PutUint16(buf[0:2], crc)
	buf[2] = typ
	binary.LittleEndian.PutUint16(buf[3:5], flags)
	binary.LittleEndian.PutUint16(buf[5:7], headerSize)
}

// sentinelCRC returns the static "crc" field SRR blocks use in place
// of a real CRC16 — the type byte duplicated into both bytes, per
// spec.md §6 ("never verified; exists so RAR readers skip gracefully").
func sentinelCRC(typ byte) uint16 {
	return uint16(typ) | uint16(typ)<<8
}

// EncodeHeader builds an SrrHeader block (tag 0x69).
func EncodeHeader(appName string) []byte {
	var flags uint16
	var nameBytes []byte
	if appName != "" {
		flags |= headerFlagAppName
		nameBytes = []byte(appName)
	}
	headerSize := 7
	if len(nameBytes) > 0 {
		headerSize += 2 + len(nameBytes)
	}
	out := make([]byte, headerSize)
	putBaseHeader(out, sentinelCRC(TypeHeader), TypeHeader, flags, uint16(headerSize))
	if len(nameBytes) > 0 {
		binary.LittleEndian.PutUint16(out[7:9], uint16(len(nameBytes)))
		copy(out[9:], nameBytes)
	}
	return out
}

// DecodeHeader parses an SrrHeader block's body (everything after the
// 7-byte base header) given its flags.
func DecodeHeader(body []byte, flags uint16) (appName string, err error) {
	if flags&headerFlagAppName == 0 {
		return "", nil
	}
	if len(body) < 2 {
		return "", fmt.Errorf("%w: header AppName length truncated", ErrMalformed)
	}
	n := binary.LittleEndian.Uint16(body[0:2])
	if len(body) < 2+int(n) {
		return "", fmt.Errorf("%w: header AppName truncated", ErrMalformed)
	}
	return string(body[2 : 2+int(n)]), nil
}

// EncodeStoredFile builds an SrrStoredFile block (tag 0x6A) carrying
// name and the file's full contents as its addSize payload.
func EncodeStoredFile(name string, contents []byte) []byte {
	nameBytes := []byte(name)
	headerSize := 7 + 4 + 2 + len(nameBytes)
	out := make([]byte, headerSize+len(contents))
	putBaseHeader(out, sentinelCRC(TypeStoredFile), TypeStoredFile, LongBlock, uint16(headerSize))
	binary.LittleEndian.PutUint32(out[7:11], uint32(len(contents)))
	binary.LittleEndian.PutUint16(out[11:13], uint16(len(nameBytes)))
	copy(out[13:], nameBytes)
	copy(out[headerSize:], contents)
	return out
}

// DecodeStoredFileName parses the name field out of an SrrStoredFile
// block's header body (everything after the base 7 bytes plus addSize).
func DecodeStoredFileName(headerTail []byte) (string, error) {
	if len(headerTail) < 2 {
		return "", fmt.Errorf("%w: StoredFile name length truncated", ErrMalformed)
	}
	n := binary.LittleEndian.Uint16(headerTail[0:2])
	if len(headerTail) < 2+int(n) {
		return "", fmt.Errorf("%w: StoredFile name truncated", ErrMalformed)
	}
	return string(headerTail[2 : 2+int(n)]), nil
}

// EncodeOsoHash builds an SrrOsoHash block (tag 0x6B): fileSize(u64) |
// hash(8 bytes) | nameLen(u16) | name.
func EncodeOsoHash(fileSize uint64, hash [8]byte, name string) []byte {
	nameBytes := []byte(name)
	headerSize := 7 + 8 + 8 + 2 + len(nameBytes)
	out := make([]byte, headerSize)
	putBaseHeader(out, sentinelCRC(TypeOsoHash), TypeOsoHash, 0, uint16(headerSize))
	binary.LittleEndian.PutUint64(out[7:15], fileSize)
	copy(out[15:23], hash[:])
	binary.LittleEndian.PutUint16(out[23:25], uint16(len(nameBytes)))
	copy(out[25:], nameBytes)
	return out
}

// EncodeRarFile builds an SrrRarFile block (tag 0x71): no payload,
// just the volume's basename carried in the header body.
func EncodeRarFile(volumeName string) []byte {
	nameBytes := []byte(volumeName)
	headerSize := 7 + 2 + len(nameBytes)
	out := make([]byte, headerSize)
	putBaseHeader(out, sentinelCRC(TypeRarFile), TypeRarFile, 0, uint16(headerSize))
	binary.LittleEndian.PutUint16(out[7:9], uint16(len(nameBytes)))
	copy(out[9:], nameBytes)
	return out
}

// DecodeRarFileName parses the volume name out of an SrrRarFile
// block's header tail (everything after the base 7 bytes).
func DecodeRarFileName(headerTail []byte) (string, error) {
	if len(headerTail) < 2 {
		return "", fmt.Errorf("%w: RarFile name length truncated", ErrMalformed)
	}
	n := binary.LittleEndian.Uint16(headerTail[0:2])
	if len(headerTail) < 2+int(n) {
		return "", fmt.Errorf("%w: RarFile name truncated", ErrMalformed)
	}
	return string(headerTail[2 : 2+int(n)]), nil
}

// EncodeRarPadding builds an SrrRarPadding block (tag 0x6C): name then
// addSize literal padding bytes to be rewritten verbatim on
// reconstruction.
func EncodeRarPadding(name string, padding []byte) []byte {
	nameBytes := []byte(name)
	headerSize := 7 + 4 + 2 + len(nameBytes)
	out := make([]byte, headerSize+len(padding))
	putBaseHeader(out, sentinelCRC(TypeRarPadding), TypeRarPadding, LongBlock, uint16(headerSize))
	binary.LittleEndian.PutUint32(out[7:11], uint32(len(padding)))
	binary.LittleEndian.PutUint16(out[11:13], uint16(len(nameBytes)))
	copy(out[13:], nameBytes)
	copy(out[headerSize:], padding)
	return out
}
