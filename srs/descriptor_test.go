package srs

import (
	"encoding/binary"
	"testing"
)

func TestEncodeSRSFLayout(t *testing.T) {
	out := EncodeSRSF("rescene", "movie.avi", 12345, 0xDEADBEEF)
	flags := binary.LittleEndian.Uint16(out[0:2])
	if flags != srsfDefaultFlags {
		t.Fatalf("flags = %#x, want %#x", flags, srsfDefaultFlags)
	}
	appLen := binary.LittleEndian.Uint16(out[2:4])
	if int(appLen) != len("rescene") {
		t.Fatalf("appLen = %d, want %d", appLen, len("rescene"))
	}
	appName := string(out[4 : 4+appLen])
	if appName != "rescene" {
		t.Fatalf("appName = %q, want rescene", appName)
	}
	cur := 4 + int(appLen)
	fileLen := binary.LittleEndian.Uint16(out[cur : cur+2])
	cur += 2
	fileName := string(out[cur : cur+int(fileLen)])
	if fileName != "movie.avi" {
		t.Fatalf("fileName = %q, want movie.avi", fileName)
	}
	cur += int(fileLen)
	sampleSize := binary.LittleEndian.Uint64(out[cur : cur+8])
	cur += 8
	if sampleSize != 12345 {
		t.Fatalf("sampleSize = %d, want 12345", sampleSize)
	}
	crc := binary.LittleEndian.Uint32(out[cur : cur+4])
	if crc != 0xDEADBEEF {
		t.Fatalf("crc = %#x, want 0xDEADBEEF", crc)
	}
}

func TestEncodeSRSTNarrowFields(t *testing.T) {
	track := Track{Number: 1, DataLength: 1000, Signature: []byte("sig-bytes")}
	out := EncodeSRST(track, 42)
	flags := binary.LittleEndian.Uint16(out[0:2])
	if flags != 0 {
		t.Fatalf("flags = %#x, want 0 for narrow fields", flags)
	}
	num := binary.LittleEndian.Uint16(out[2:4])
	if num != 1 {
		t.Fatalf("trackNumber = %d, want 1", num)
	}
	dataLen := binary.LittleEndian.Uint32(out[4:8])
	if dataLen != 1000 {
		t.Fatalf("dataLength = %d, want 1000", dataLen)
	}
	matchOffset := binary.LittleEndian.Uint64(out[8:16])
	if matchOffset != 42 {
		t.Fatalf("matchOffset = %d, want 42", matchOffset)
	}
	sigLen := binary.LittleEndian.Uint16(out[16:18])
	if int(sigLen) != len("sig-bytes") {
		t.Fatalf("sigLen = %d, want %d", sigLen, len("sig-bytes"))
	}
}

func TestEncodeSRSTWidensBigTrackNumber(t *testing.T) {
	track := Track{Number: 1 << 16, DataLength: 10}
	out := EncodeSRST(track, 0)
	flags := binary.LittleEndian.Uint16(out[0:2])
	if flags&srstFlagBigTrackNum == 0 {
		t.Fatal("expected bigTrackNum flag for trackNumber >= 2^16")
	}
	num := binary.LittleEndian.Uint32(out[2:6])
	if num != 1<<16 {
		t.Fatalf("trackNumber = %d, want %d", num, 1<<16)
	}
}

func TestEncodeSRSTWidensBigDataLength(t *testing.T) {
	track := Track{Number: 1, DataLength: 1 << 31}
	out := EncodeSRST(track, 0)
	flags := binary.LittleEndian.Uint16(out[0:2])
	if flags&srstFlagBigDataLength == 0 {
		t.Fatal("expected bigDataLength flag for dataLength >= 2^31")
	}
	dataLen := binary.LittleEndian.Uint64(out[4:12])
	if dataLen != 1<<31 {
		t.Fatalf("dataLength = %d, want %d", dataLen, uint64(1)<<31)
	}
}

func TestEncodeSRSTTruncatesSignatureTo256(t *testing.T) {
	sig := make([]byte, 300)
	track := Track{Number: 1, DataLength: 5, Signature: sig}
	out := EncodeSRST(track, 0)
	sigLen := binary.LittleEndian.Uint16(out[16:18])
	if sigLen != 256 {
		t.Fatalf("sigLen = %d, want 256", sigLen)
	}
}
