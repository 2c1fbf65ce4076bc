package srr

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/javi11/rescene/internal/rarblock"
)

// buildRAR4VolumeMethod is buildRAR4Volume with a configurable storage
// method byte, so a test can exercise frameVolume's compressed-body
// warning path (method != Store without AllowCompressed).
func buildRAR4VolumeMethod(name string, contents []byte, method byte) []byte {
	nameBytes := []byte(name)
	fileBodySize := 25 + len(nameBytes)
	fileHeaderSize := 7 + fileBodySize
	fileHeader := make([]byte, fileHeaderSize)
	binary.LittleEndian.PutUint16(fileHeader[0:2], 0)
	fileHeader[2] = rarblock.Rar4File
	binary.LittleEndian.PutUint16(fileHeader[3:5], 0)
	binary.LittleEndian.PutUint16(fileHeader[5:7], uint16(fileHeaderSize))
	binary.LittleEndian.PutUint32(fileHeader[7:11], uint32(len(contents)))
	binary.LittleEndian.PutUint32(fileHeader[11:15], uint32(len(contents)))
	fileHeader[15] = 2
	binary.LittleEndian.PutUint32(fileHeader[16:20], 0xAABBCCDD)
	binary.LittleEndian.PutUint32(fileHeader[20:24], 0)
	fileHeader[24] = 29
	fileHeader[25] = method
	binary.LittleEndian.PutUint16(fileHeader[26:28], uint16(len(nameBytes)))
	binary.LittleEndian.PutUint32(fileHeader[28:32], 0)
	copy(fileHeader[32:], nameBytes)

	endHeader := make([]byte, 7)
	endHeader[2] = rarblock.Rar4EndArchive
	binary.LittleEndian.PutUint16(endHeader[5:7], 7)

	var vol bytes.Buffer
	vol.Write(rarblock.SigRAR4)
	vol.Write(fileHeader)
	vol.Write(contents)
	vol.Write(endHeader)
	return vol.Bytes()
}

func TestCreateWarnsOnCompressedMethodByDefault(t *testing.T) {
	fs := afero.NewMemMapFs()
	contents := bytes.Repeat([]byte("y"), 20)
	vol := buildRAR4VolumeMethod("sample.txt", contents, 0x33) // method != Store (0x30)
	if err := afero.WriteFile(fs, "/vol/movie.rar", vol, 0o644); err != nil {
		t.Fatalf("seed volume: %v", err)
	}

	result, err := Create(fs, "/out/movie.srr", []string{"/vol/movie.rar"}, nil, CreateOptions{}, nil, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	found := false
	for _, w := range result.Warnings {
		if strings.Contains(w, "compressed file body") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a compressed-body warning, got %v", result.Warnings)
	}
}

func TestCreateAllowsCompressedWithoutWarningWhenOptedIn(t *testing.T) {
	fs := afero.NewMemMapFs()
	contents := bytes.Repeat([]byte("y"), 20)
	vol := buildRAR4VolumeMethod("sample.txt", contents, 0x33)
	if err := afero.WriteFile(fs, "/vol/movie.rar", vol, 0o644); err != nil {
		t.Fatalf("seed volume: %v", err)
	}

	result, err := Create(fs, "/out/movie.srr", []string{"/vol/movie.rar"}, nil, CreateOptions{AllowCompressed: true}, nil, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, w := range result.Warnings {
		if strings.Contains(w, "compressed file body") {
			t.Fatalf("unexpected compressed-body warning with AllowCompressed: %v", result.Warnings)
		}
	}
}
