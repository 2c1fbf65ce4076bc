// Package bytecodec provides the bounded little/big-endian integer
// readers and writers shared by the RAR block scanner, the SRR/SRS
// block encoders, and every per-container SRS profiler.
package bytecodec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

// ErrMalformed is returned instead of panicking whenever a read would
// cross a declared region boundary.
var ErrMalformed = errors.New("bytecodec: read past end of region")

// Region bounds reads against a declared end offset, so a structural
// error ends parsing cleanly instead of panicking on a slice index or
// reading into an unrelated region of the stream.
type Region struct {
	r        io.Reader
	position int64
	end      int64 // end is relative to the region's own start, -1 means unbounded
}

// NewRegion wraps r with a bound of size bytes. size < 0 means unbounded.
func NewRegion(r io.Reader, size int64) *Region {
	if size < 0 {
		size = -1
	}
	return &Region{r: r, end: size}
}

func (reg *Region) Position() int64 { return reg.position }

func (reg *Region) Remaining() int64 {
	if reg.end < 0 {
		return -1
	}
	return reg.end - reg.position
}

func (reg *Region) checkBound(n int64) error {
	if reg.end >= 0 && reg.position+n > reg.end {
		return fmt.Errorf("%w: need %d bytes at %d, region ends at %d", ErrMalformed, n, reg.position, reg.end)
	}
	return nil
}

// ReadFull reads exactly len(p) bytes, bounded by the region's end.
func (reg *Region) ReadFull(p []byte) error {
	if err := reg.checkBound(int64(len(p))); err != nil {
		return err
	}
	if _, err := io.ReadFull(reg.r, p); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	reg.position += int64(len(p))
	return nil
}

// Skip discards n bytes, bounded by the region's end.
func (reg *Region) Skip(n int64) error {
	if err := reg.checkBound(n); err != nil {
		return err
	}
	if _, err := io.CopyN(io.Discard, reg.r, n); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	reg.position += n
	return nil
}

func (reg *Region) ReadU8() (uint8, error) {
	var b [1]byte
	if err := reg.ReadFull(b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (reg *Region) ReadU16LE() (uint16, error) {
	var b [2]byte
	if err := reg.ReadFull(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func (reg *Region) ReadU16BE() (uint16, error) {
	var b [2]byte
	if err := reg.ReadFull(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

func (reg *Region) ReadU32LE() (uint32, error) {
	var b [4]byte
	if err := reg.ReadFull(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func (reg *Region) ReadU32BE() (uint32, error) {
	var b [4]byte
	if err := reg.ReadFull(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func (reg *Region) ReadU64LE() (uint64, error) {
	var b [8]byte
	if err := reg.ReadFull(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func (reg *Region) ReadU64BE() (uint64, error) {
	var b [8]byte
	if err := reg.ReadFull(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

// Fixed-buffer helpers, used by encoders that build a header in memory
// before writing it verbatim (SRR block headers, SRS descriptor
// payloads).

func PutU16LE(b []byte, v uint16) { binary.LittleEndian.PutUint16(b, v) }
func PutU32LE(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }
func PutU64LE(b []byte, v uint64) { binary.LittleEndian.PutUint64(b, v) }
func PutU32BE(b []byte, v uint32) { binary.BigEndian.PutUint32(b, v) }
func PutU64BE(b []byte, v uint64) { binary.BigEndian.PutUint64(b, v) }

func U16LE(v uint16) []byte { b := make([]byte, 2); PutU16LE(b, v); return b }
func U32LE(v uint32) []byte { b := make([]byte, 4); PutU32LE(b, v); return b }
func U64LE(v uint64) []byte { b := make([]byte, 8); PutU64LE(b, v); return b }
func U32BE(v uint32) []byte { b := make([]byte, 4); PutU32BE(b, v); return b }
func U64BE(v uint64) []byte { b := make([]byte, 8); PutU64BE(b, v); return b }

// PadToEven returns n rounded up to the next even number, used by the
// RIFF and FLAC walkers to account for chunk-alignment padding bytes.
func PadToEven(n int64) int64 {
	if n%2 != 0 {
		return n + 1
	}
	return n
}

// CRC32 accumulates an IEEE CRC32 (polynomial 0xEDB88320) over every
// byte written to it, matching hash/crc32's IEEETable exactly. It is a
// thin wrapper rather than a bare hash.Hash32 so that call sites read
// as "accumulate over the file" instead of generic hash plumbing.
type CRC32 struct {
	h uint32
}

func NewCRC32() *CRC32 { return &CRC32{h: 0} }

func (c *CRC32) Write(p []byte) (int, error) {
	c.h = crc32.Update(c.h, crc32.IEEETable, p)
	return len(p), nil
}

// Sum32 returns the accumulated CRC32 in host representation; compare
// it to other Sum32 values directly, never by byte order, per spec.
func (c *CRC32) Sum32() uint32 { return c.h }
