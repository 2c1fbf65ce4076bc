package rarblock

import "testing"

func TestDecodeRar3UnicodeEmptyPassthrough(t *testing.T) {
	got := DecodeRar3Unicode([]byte("plain.avi"), nil)
	if got != "plain.avi" {
		t.Fatalf("got %q, want %q", got, "plain.avi")
	}
}

func TestDecodeRar3UnicodeAllLiteralASCII(t *testing.T) {
	// A single flag byte with its high bit clear packs four 2-bit
	// selectors; all-zero selectors mean "copy next ASCII byte".
	ascii := []byte("abcd")
	unicodeData := []byte{0x00}
	got := DecodeRar3Unicode(ascii, unicodeData)
	if got != "abcd" {
		t.Fatalf("got %q, want %q", got, "abcd")
	}
}

func TestDecodeRar3UnicodeHighLowPair(t *testing.T) {
	// selector 3 (0b11) loads the high byte, selector 2 (0b10) emits a
	// UTF-16 code unit from (highByte<<8 | nextDataByte).
	flags := byte(0x00) | (3 << 0) | (2 << 2) // selector0=3 (set high), selector1=2 (emit char)
	unicodeData := []byte{flags, 0x20, 0x41}  // highByte=0x20, low=0x41 -> rune 0x2041
	got := DecodeRar3Unicode(nil, unicodeData)
	want := string([]rune{0x2041})
	if got != want {
		t.Fatalf("got %q (%v), want %q (%v)", got, []rune(got), want, []rune(want))
	}
}

func TestDecodeRar4FileHeaderDecodedName(t *testing.T) {
	fh := Rar4FileHeader{Name: []byte("plain.avi"), Unicode: false}
	if string(fh.DecodedName()) != "plain.avi" {
		t.Fatalf("non-unicode DecodedName should pass through unchanged")
	}

	ascii := []byte("abcd")
	withNul := append(append([]byte{}, ascii...), 0x00)
	fh = Rar4FileHeader{Name: append(withNul, 0x00), Unicode: true}
	if got := string(fh.DecodedName()); got != "abcd" {
		t.Fatalf("DecodedName() = %q, want %q", got, "abcd")
	}
}
