// Package rarblock implements the streaming RAR4/RAR5 block scanner:
// it emits every block in a volume's block stream — header bytes
// verbatim, payload left unconsumed — without ever stopping at the
// first file header the way rarlist's indexSingle does. rarlist only
// needed the offset of the first payload; SrrWriter needs the whole
// stream, so every block type is surfaced, not just FileHeader.
package rarblock

import "errors"

// ErrMalformed ends a scan as a recoverable "end of volume" condition;
// SrrWriter turns it into a warning rather than a fatal error, matching
// spec.md's "Malformed in the middle of a RAR scan is recoverable".
var ErrMalformed = errors.New("rarblock: malformed block header")

// RAR4 block type bytes (spec.md §3/§6).
const (
	Rar4Marker      = 0x72
	Rar4Archive     = 0x73
	Rar4File        = 0x74
	Rar4Comment76   = 0x75 // legacy comment block, superseded by 0x7A service blocks
	Rar4Av          = 0x76
	Rar4Sub         = 0x77
	Rar4Recovery    = 0x78
	Rar4SignOld     = 0x79
	Rar4Service     = 0x7A
	Rar4EndArchive  = 0x7B
)

// RAR4 header flags (spec.md §3).
const (
	Rar4LongBlock = 0x8000
	Rar4Large     = 0x0100
	Rar4Unicode   = 0x0200
	SplitBefore   = 0x0001
	SplitAfter    = 0x0002
)

// RAR5 block type values (spec.md §3).
const (
	Rar5Main        = 1
	Rar5File        = 2
	Rar5Service     = 3
	Rar5Encryption  = 4
	Rar5EndArchive  = 5
)

// RAR5 header flags.
const (
	Rar5FlagExtra = 0x0001
	Rar5FlagData  = 0x0002
)

// Block is one RAR4 or RAR5 block as emitted by the Scanner: the raw
// header bytes (copied verbatim into an SRR) plus the payload size the
// caller has not yet consumed.
type Block struct {
	IsRAR5      bool
	Type        uint64 // RAR4: 0x72-0x7B; RAR5: 1-5 (+unknown>5)
	Flags       uint64 // RAR4: 16-bit header flags; RAR5: block flags vint
	HeaderBytes []byte // verbatim header bytes, including any addSize/headSize prefix
	PayloadSize int64  // bytes following the header the caller may copy or skip
	HeaderPos   int64  // offset of HeaderBytes[0] within the volume

	// DataSizeFieldOffset/DataSizeFieldLen locate the RAR5 dataSize
	// vint within HeaderBytes (0,0 if RAR4, or if the block has no
	// data flag). SrrWriter uses this to zero the field in place, at
	// the same encoded width, when a block's payload is dropped rather
	// than embedded, so a replayed header never promises bytes the SRR
	// does not actually carry.
	DataSizeFieldOffset int
	DataSizeFieldLen    int
}

// Signatures (spec.md §4.2).
var (
	SigRAR5 = []byte{0x52, 0x61, 0x72, 0x21, 0x1A, 0x07, 0x01, 0x00}
	SigRAR4 = []byte{0x52, 0x61, 0x72, 0x21, 0x1A, 0x07, 0x00}
)
