package srr

import (
	"bytes"
	"fmt"
	"hash/crc32"
	"testing"

	"github.com/spf13/afero"
)

func TestReconstructReportsHashMismatch(t *testing.T) {
	fs := afero.NewMemMapFs()
	contents := bytes.Repeat([]byte("z"), 16)
	vol := buildRAR4Volume("sample.txt", contents)
	if err := afero.WriteFile(fs, "/vol/movie.rar", vol, 0o644); err != nil {
		t.Fatalf("seed volume: %v", err)
	}
	if _, err := Create(fs, "/out/movie.srr", []string{"/vol/movie.rar"}, nil, CreateOptions{}, nil, nil); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := afero.WriteFile(fs, "/src/sample.txt", contents, 0o644); err != nil {
		t.Fatalf("seed source: %v", err)
	}

	hashes := map[string]struct{}{"deadbeef": {}}
	matched, err := Reconstruct(fs, "/out/movie.srr", "/src", "/recon", nil, hashes, HashCRC32, nil, nil)
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	if matched {
		t.Fatal("expected a hash mismatch against an unrelated expected digest")
	}
}

func TestReconstructMatchesExpectedCRC32(t *testing.T) {
	fs := afero.NewMemMapFs()
	contents := bytes.Repeat([]byte("w"), 16)
	vol := buildRAR4Volume("sample.txt", contents)
	if err := afero.WriteFile(fs, "/vol/movie.rar", vol, 0o644); err != nil {
		t.Fatalf("seed volume: %v", err)
	}
	if _, err := Create(fs, "/out/movie.srr", []string{"/vol/movie.rar"}, nil, CreateOptions{}, nil, nil); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := afero.WriteFile(fs, "/src/sample.txt", contents, 0o644); err != nil {
		t.Fatalf("seed source: %v", err)
	}

	digest := fmt.Sprintf("%08x", crc32.ChecksumIEEE(vol))
	hashes := map[string]struct{}{digest: {}}
	matched, err := Reconstruct(fs, "/out/movie.srr", "/src", "/recon", nil, hashes, HashCRC32, nil, nil)
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	if !matched {
		t.Fatal("expected the reconstructed volume's CRC32 to match")
	}
}

func TestReconstructLocatesFlattenedSourceByBasename(t *testing.T) {
	fs := afero.NewMemMapFs()
	contents := bytes.Repeat([]byte("v"), 16)
	// archived name carries a subdirectory prefix; the source tree is
	// flat, so locateSource must fall back to a basename match.
	vol := buildRAR4Volume(`subdir\sample.txt`, contents)
	if err := afero.WriteFile(fs, "/vol/movie.rar", vol, 0o644); err != nil {
		t.Fatalf("seed volume: %v", err)
	}
	if _, err := Create(fs, "/out/movie.srr", []string{"/vol/movie.rar"}, nil, CreateOptions{}, nil, nil); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := afero.WriteFile(fs, "/src/sample.txt", contents, 0o644); err != nil {
		t.Fatalf("seed source: %v", err)
	}

	matched, err := Reconstruct(fs, "/out/movie.srr", "/src", "/recon", nil, nil, HashCRC32, nil, nil)
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	if !matched {
		t.Fatal("expected success with no expected-hash set (matched defaults true)")
	}
	got, err := afero.ReadFile(fs, "/recon/movie.rar")
	if err != nil {
		t.Fatalf("read reconstructed: %v", err)
	}
	if !bytes.Equal(got, vol) {
		t.Fatal("reconstructed volume differs from the original despite flattened-basename lookup")
	}
}
