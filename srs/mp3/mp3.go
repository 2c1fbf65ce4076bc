// Package mp3 implements the MP3 srs.Profiler and srs.Writer
// (spec.md §4.4.6/§4.5 MP3).
package mp3

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/javi11/rescene/internal/bytecodec"
	"github.com/javi11/rescene/srs"
)

func init() {
	srs.RegisterProfiler(srs.ContainerMP3, Profiler{})
	srs.RegisterWriter(srs.ContainerMP3, Writer{})
}

const id3v1TagSize = 128

// boundaries locates the ID3v2 header (if present) and ID3v1 trailer
// (if present) to determine [audioStart, audioEnd).
func boundaries(r io.ReadSeeker, size int64) (audioStart, audioEnd int64, hasID3v2 bool, id3v2Size int64, hasID3v1 bool, err error) {
	audioStart, audioEnd = 0, size

	var hdr [10]byte
	if size >= 10 {
		if _, err = r.Seek(0, io.SeekStart); err != nil {
			return
		}
		if _, err = io.ReadFull(r, hdr[:]); err != nil {
			return
		}
		if string(hdr[0:3]) == "ID3" {
			sz := syncsafe(hdr[6:10])
			hasID3v2 = true
			id3v2Size = sz
			audioStart = 10 + sz
		}
	}
	if size >= id3v1TagSize {
		var tag [3]byte
		if _, err = r.Seek(size-id3v1TagSize, io.SeekStart); err != nil {
			return
		}
		if _, err = io.ReadFull(r, tag[:]); err != nil {
			return
		}
		if string(tag[:]) == "TAG" {
			hasID3v1 = true
			audioEnd = size - id3v1TagSize
		}
	}
	return
}

func syncsafe(b []byte) int64 {
	return int64(b[0]&0x7F)<<21 | int64(b[1]&0x7F)<<14 | int64(b[2]&0x7F)<<7 | int64(b[3]&0x7F)
}

// Profiler treats the whole audio region (between any ID3v2 header and
// any ID3v1 trailer) as a single track 1.
type Profiler struct{}

func (Profiler) Profile(r io.ReadSeeker, size int64) (srs.Result, error) {
	audioStart, audioEnd, _, _, _, err := boundaries(r, size)
	if err != nil {
		return srs.Result{}, fmt.Errorf("mp3: locating boundaries: %w", err)
	}

	crc := bytecodec.NewCRC32()
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return srs.Result{}, err
	}

	acc := srs.NewTrackAccumulator()
	buf := make([]byte, 64*1024)
	var pos int64
	for pos < size {
		n := int64(len(buf))
		if pos+n > size {
			n = size - pos
		}
		read, err := io.ReadFull(r, buf[:n])
		if read > 0 {
			chunk := buf[:read]
			_, _ = crc.Write(chunk)
			lo, hi := overlap(pos, pos+int64(read), audioStart, audioEnd)
			if hi > lo {
				acc.Add(1, chunk[lo-pos:hi-pos])
			}
		}
		pos += int64(read)
		if err != nil && err != io.EOF {
			return srs.Result{}, fmt.Errorf("mp3: reading file: %w", err)
		}
		if read == 0 {
			break
		}
	}
	return srs.Result{Tracks: acc.Tracks(), CRC32: crc.Sum32(), ParsedSize: size}, nil
}

func overlap(a0, a1, b0, b1 int64) (int64, int64) {
	lo := a0
	if b0 > lo {
		lo = b0
	}
	hi := a1
	if b1 < hi {
		hi = b1
	}
	return lo, hi
}

// Writer copies any ID3v2 header verbatim, injects SRSF/SRST records
// tagged with a 4-byte ASCII marker and LE size, then copies any
// ID3v1 trailer verbatim.
type Writer struct{}

func (Writer) WriteSRS(w io.Writer, r io.ReadSeeker, size int64, result srs.Result, appName string) error {
	_, _, hasID3v2, id3v2Size, hasID3v1, err := boundaries(r, size)
	if err != nil {
		return err
	}

	if hasID3v2 {
		if _, err := r.Seek(0, io.SeekStart); err != nil {
			return err
		}
		if _, err := io.CopyN(w, r, 10+id3v2Size); err != nil {
			return err
		}
	}

	var total uint64
	for _, t := range result.Tracks {
		total += t.DataLength
	}
	if err := writeRecord(w, "SRSF", srs.EncodeSRSF(appName, "", total, result.CRC32)); err != nil {
		return err
	}
	var offset uint64
	for _, t := range result.Tracks {
		if err := writeRecord(w, "SRST", srs.EncodeSRST(t, offset)); err != nil {
			return err
		}
		offset += t.DataLength
	}

	if hasID3v1 {
		if _, err := r.Seek(size-id3v1TagSize, io.SeekStart); err != nil {
			return err
		}
		if _, err := io.CopyN(w, r, id3v1TagSize); err != nil {
			return err
		}
	}
	return nil
}

func writeRecord(w io.Writer, tag string, payload []byte) error {
	if _, err := w.Write([]byte(tag)); err != nil {
		return err
	}
	var sz [4]byte
	binary.LittleEndian.PutUint32(sz[:], uint32(len(payload)))
	if _, err := w.Write(sz[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}
