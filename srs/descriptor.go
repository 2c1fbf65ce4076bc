package srs

import (
	"github.com/javi11/rescene/internal/bytecodec"
)

// SRSF/SRST flag bits (spec.md §3).
const (
	srsfFlagBlockSizeFix     = 0x0001
	srsfFlagAttachmentsStrip = 0x0002
	srsfDefaultFlags         = srsfFlagBlockSizeFix | srsfFlagAttachmentsStrip

	srstFlagBigDataLength = 0x0004
	srstFlagBigTrackNum   = 0x0008
)

// EncodeSRSF builds an SrsFileData payload (spec.md §3): little-endian
// flags, appName, fileName, sampleSize, and a CRC32 over the complete
// original sample.
func EncodeSRSF(appName, fileName string, sampleSize uint64, crc uint32) []byte {
	out := make([]byte, 0, 16+len(appName)+len(fileName))
	out = append(out, bytecodec.U16LE(srsfDefaultFlags)...)
	out = append(out, bytecodec.U16LE(uint16(len(appName)))...)
	out = append(out, []byte(appName)...)
	out = append(out, bytecodec.U16LE(uint16(len(fileName)))...)
	out = append(out, []byte(fileName)...)
	out = append(out, bytecodec.U64LE(sampleSize)...)
	out = append(out, bytecodec.U32LE(crc)...)
	return out
}

// EncodeSRST builds an SrsTrackData payload (spec.md §3) for one
// track, widening trackNumber/dataLength to 32/64 bits and setting the
// matching flag bits when the narrow field would overflow.
func EncodeSRST(t Track, matchOffset uint64) []byte {
	var flags uint16
	bigTrack := t.Number >= 1<<16
	bigLen := t.DataLength >= 1<<31
	if bigTrack {
		flags |= srstFlagBigTrackNum
	}
	if bigLen {
		flags |= srstFlagBigDataLength
	}
	sig := t.Signature
	if len(sig) > 256 {
		sig = sig[:256]
	}

	out := make([]byte, 0, 24+len(sig))
	out = append(out, bytecodec.U16LE(flags)...)
	if bigTrack {
		out = append(out, bytecodec.U32LE(t.Number)...)
	} else {
		out = append(out, bytecodec.U16LE(uint16(t.Number))...)
	}
	if bigLen {
		out = append(out, bytecodec.U64LE(t.DataLength)...)
	} else {
		out = append(out, bytecodec.U32LE(uint32(t.DataLength))...)
	}
	out = append(out, bytecodec.U64LE(matchOffset)...)
	out = append(out, bytecodec.U16LE(uint16(len(sig)))...)
	out = append(out, sig...)
	return out
}
