package srr

import (
	"bufio"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/javi11/rescene"
	"github.com/javi11/rescene/report"
)

// parseSFV reads an SFV checksum listing (one "filename CRC32HEX" pair
// per line, ';'-prefixed comments and blank lines ignored) and returns
// the listed filenames in file order.
func parseSFV(fs afero.Fs, sfvPath string) ([]string, error) {
	f, err := fs.Open(sfvPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", rescene.ErrNotFound, sfvPath)
	}
	defer func() { _ = f.Close() }()

	var names []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		idx := strings.LastIndexByte(line, ' ')
		if idx < 0 {
			continue
		}
		name := strings.TrimSpace(line[:idx])
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", rescene.ErrIO, err)
	}
	return names, nil
}

// CreateFromSFV resolves the volume set from an SFV listing (spec.md
// §6): every entry is resolved relative to sfvPath's directory,
// ordered with CompareVolumeName, and handed to Create the same way a
// caller-supplied volumes[] would be. The SFV file itself and every
// path in extraFiles are embedded as SrrStoredFile blocks.
func CreateFromSFV(fs afero.Fs, outputPath, sfvPath string, extraFiles []string, opts CreateOptions, rep report.Reporter, cancel <-chan struct{}) (CreateResult, error) {
	names, err := parseSFV(fs, sfvPath)
	if err != nil {
		return CreateResult{}, err
	}
	if len(names) == 0 {
		return CreateResult{}, fmt.Errorf("%w: no entries in %s", rescene.ErrMalformed, sfvPath)
	}

	dir := filepath.Dir(sfvPath)
	volumes := make([]string, len(names))
	for i, n := range names {
		volumes[i] = filepath.Join(dir, n)
	}
	SortVolumeNames(volumes)

	storedFiles := map[string]string{filepath.Base(sfvPath): sfvPath}
	for _, extra := range extraFiles {
		storedFiles[filepath.Base(extra)] = extra
	}

	return Create(fs, outputPath, volumes, storedFiles, opts, rep, cancel)
}
