package rescene

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/afero"
)

var partPatternRe = regexp.MustCompile(`(?i)^(?P<prefix>.*?)(?P<sep>[_.-]?)part(?P<num>\d+)(?P<suffix>\.rar)$`)

// DiscoverVolumes finds the sibling volumes of a RAR set given its
// first volume path, generalizing rarlist's DiscoverVolumesFS from its
// bespoke FileSystem interface to afero.Fs (§1.2 of the expanded
// spec): this is the on-disk discovery step a host runs before
// handing an ordered volume list to srr.Create, complementary to
// srr.SortVolumeNames which only orders names already known.
func DiscoverVolumes(fs afero.Fs, first string) ([]string, error) {
	base := filepath.Base(first)
	dir := filepath.Dir(first)

	if m := partPatternRe.FindStringSubmatch(base); m != nil {
		prefix, sep, num, suffix := m[1], m[2], m[3], m[4]
		width := len(num)
		var vols []string
		for i := 1; i < 10000; i++ {
			name := fmt.Sprintf("%s%spart%0*d%s", prefix, sep, width, i, suffix)
			p := filepath.Join(dir, name)
			if _, err := fs.Stat(p); err != nil {
				if i == 1 {
					return nil, fmt.Errorf("%w: first volume %s", ErrNotFound, p)
				}
				break
			}
			vols = append(vols, p)
		}
		return vols, nil
	}

	if strings.HasSuffix(strings.ToLower(base), ".rar") {
		if _, err := fs.Stat(first); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, first)
		}
		vols := []string{first}
		prefix := strings.TrimSuffix(first, filepath.Ext(first))
		for i := 0; i < 1000; i++ {
			name := fmt.Sprintf("%s.r%02d", prefix, i)
			p := filepath.Join(dir, filepath.Base(name))
			if _, err := fs.Stat(p); err != nil {
				break
			}
			vols = append(vols, p)
		}
		return vols, nil
	}

	return []string{first}, nil
}
