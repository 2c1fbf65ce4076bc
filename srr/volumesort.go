package srr

import (
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var partNumRe = regexp.MustCompile(`(?i)\.part(\d+)\.rar$`)
var numericExtRe = regexp.MustCompile(`\.(\d+)$`)
var classicExtRe = regexp.MustCompile(`(?i)\.(r|s|t)(\d{2})$`)

// volumeSortKey reduces a volume filename to a (bucket, key) pair so
// that CompareVolumeName can implement spec.md §4.3's three naming
// schemes with one comparator: "part(\d+).rar" numbering, classic
// ".rar/.r00.../.s00..." extension stepping, and plain numeric
// ".001/.002" suffixes.
type volumeSortKey struct {
	bucket int // 0=partN, 1=classic, 2=numeric, 3=fallback lexical
	num    int64
	name   string
}

func keyOf(name string) volumeSortKey {
	base := filepath.Base(name)
	if m := partNumRe.FindStringSubmatch(base); m != nil {
		n, _ := strconv.ParseInt(m[1], 10, 64)
		return volumeSortKey{bucket: 0, num: n, name: base}
	}
	ext := strings.ToLower(filepath.Ext(base))
	if ext == ".rar" {
		// sorts strictly before every classic ".r00".."s99" extension,
		// whose (letter-'r')*100+digits key starts at 0 (spec.md §4.3:
		// "'.rar' sorts first; then ... '.rar < .r00 < .r01 < ...'").
		return volumeSortKey{bucket: 1, num: -1, name: base}
	}
	if m := classicExtRe.FindStringSubmatch(base); m != nil {
		letter := strings.ToLower(m[1])[0]
		digits, _ := strconv.ParseInt(m[2], 10, 64)
		num := int64(letter-'r')*100 + digits
		return volumeSortKey{bucket: 1, num: num, name: base}
	}
	if m := numericExtRe.FindStringSubmatch(base); m != nil {
		n, _ := strconv.ParseInt(m[1], 10, 64)
		return volumeSortKey{bucket: 2, num: n, name: base}
	}
	return volumeSortKey{bucket: 3, num: 0, name: base}
}

// CompareVolumeName implements the total order spec.md §4.3/§8
// requires for RAR volume sets: ".rar" sorts first, then classic
// ".r00".."s99" extensions by their (letter,digits) key, OR "partNN"
// numbering by its integer, OR plain numeric ".001".".002" suffixes by
// value; names that match none of these fall back to a lexical
// comparison after the bucketed names, so the function never panics on
// unrecognized input and remains a total order.
func CompareVolumeName(a, b string) int {
	ka, kb := keyOf(a), keyOf(b)
	if ka.bucket != kb.bucket {
		return ka.bucket - kb.bucket
	}
	if ka.num != kb.num {
		if ka.num < kb.num {
			return -1
		}
		return 1
	}
	return strings.Compare(ka.name, kb.name)
}

// SortVolumeNames sorts names in place using CompareVolumeName.
func SortVolumeNames(names []string) {
	sort.Slice(names, func(i, j int) bool {
		return CompareVolumeName(names[i], names[j]) < 0
	})
}
