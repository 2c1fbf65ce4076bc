// Package stream implements the Stream (VOB/M2TS/MPEG-TS/EVO/MPG)
// srs.Profiler and srs.Writer (spec.md §4.4.7/§4.5 Stream): the whole
// file is a single track with no recognized container structure.
package stream

import (
	"io"

	"github.com/javi11/rescene/internal/bytecodec"
	"github.com/javi11/rescene/srs"
)

func init() {
	srs.RegisterProfiler(srs.ContainerStream, Profiler{})
	srs.RegisterWriter(srs.ContainerStream, Writer{})
}

// Profiler treats the entire file as track 1 with zero container bytes.
type Profiler struct{}

func (Profiler) Profile(r io.ReadSeeker, size int64) (srs.Result, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return srs.Result{}, err
	}
	crc := bytecodec.NewCRC32()
	acc := srs.NewTrackAccumulator()
	buf := make([]byte, 64*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			_, _ = crc.Write(buf[:n])
			acc.Add(1, buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return srs.Result{}, err
		}
	}
	return srs.Result{Tracks: acc.Tracks(), CRC32: crc.Sum32(), ParsedSize: size}, nil
}

// Writer discards every original byte: output is a bare STRM wrapper
// around the SRSF/SRST records (spec.md §4.5 Stream).
type Writer struct{}

func (Writer) WriteSRS(w io.Writer, r io.ReadSeeker, size int64, result srs.Result, appName string) error {
	if _, err := w.Write([]byte("STRM")); err != nil {
		return err
	}
	if _, err := w.Write(bytecodec.U32LE(0x00000008)); err != nil {
		return err
	}
	var total uint64
	for _, t := range result.Tracks {
		total += t.DataLength
	}
	if _, err := w.Write(srs.EncodeSRSF(appName, "", total, result.CRC32)); err != nil {
		return err
	}
	var offset uint64
	for _, t := range result.Tracks {
		if _, err := w.Write(srs.EncodeSRST(t, offset)); err != nil {
			return err
		}
		offset += t.DataLength
	}
	return nil
}
