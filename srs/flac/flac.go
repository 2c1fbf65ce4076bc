// Package flac implements the FLAC srs.Profiler and srs.Writer
// (spec.md §4.4.5/§4.5 FLAC).
package flac

import (
	"bytes"
	"fmt"
	"io"

	"github.com/javi11/rescene/internal/bytecodec"
	"github.com/javi11/rescene/srs"
)

func init() {
	srs.RegisterProfiler(srs.ContainerFLAC, Profiler{})
	srs.RegisterWriter(srs.ContainerFLAC, Writer{})
}

var marker = []byte("fLaC")

// Profiler walks the metadata block chain, then classifies everything
// after the last ("isLast") block as track 1 frame data.
type Profiler struct{}

func (Profiler) Profile(r io.ReadSeeker, size int64) (srs.Result, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return srs.Result{}, err
	}
	crc := bytecodec.NewCRC32()
	tee := io.TeeReader(r, crc)

	var m [4]byte
	if _, err := io.ReadFull(tee, m[:]); err != nil || !bytes.Equal(m[:], marker) {
		return srs.Result{}, fmt.Errorf("flac: missing fLaC marker")
	}

	for {
		var bh [4]byte
		if _, err := io.ReadFull(tee, bh[:]); err != nil {
			return srs.Result{}, fmt.Errorf("flac: reading metadata block header: %w", err)
		}
		isLast := bh[0]&0x80 != 0
		blockSize := int64(bh[1])<<16 | int64(bh[2])<<8 | int64(bh[3])
		if _, err := io.CopyN(io.Discard, tee, blockSize); err != nil {
			return srs.Result{}, fmt.Errorf("flac: reading metadata block body: %w", err)
		}
		if isLast {
			break
		}
	}

	acc := srs.NewTrackAccumulator()
	buf := make([]byte, 64*1024)
	for {
		n, err := tee.Read(buf)
		if n > 0 {
			acc.Add(1, buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return srs.Result{}, fmt.Errorf("flac: reading frame data: %w", err)
		}
	}
	return srs.Result{Tracks: acc.Tracks(), CRC32: crc.Sum32(), ParsedSize: size}, nil
}

// Writer copies the fLaC marker, injects SRSF/SRST metadata blocks,
// then copies the original metadata chain verbatim and drops frame data.
type Writer struct{}

func (Writer) WriteSRS(w io.Writer, r io.ReadSeeker, size int64, result srs.Result, appName string) error {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return err
	}
	var m [4]byte
	if _, err := io.ReadFull(r, m[:]); err != nil {
		return err
	}
	if _, err := w.Write(m[:]); err != nil {
		return err
	}

	var total uint64
	for _, t := range result.Tracks {
		total += t.DataLength
	}
	if err := writeBlock(w, 's', false, srs.EncodeSRSF(appName, "", total, result.CRC32)); err != nil {
		return err
	}
	var offset uint64
	for _, t := range result.Tracks {
		if err := writeBlock(w, 't', false, srs.EncodeSRST(t, offset)); err != nil {
			return err
		}
		offset += t.DataLength
	}

	for {
		var bh [4]byte
		if _, err := io.ReadFull(r, bh[:]); err != nil {
			return err
		}
		isLast := bh[0]&0x80 != 0
		blockSize := int64(bh[1])<<16 | int64(bh[2])<<8 | int64(bh[3])
		if _, err := w.Write(bh[:]); err != nil {
			return err
		}
		if _, err := io.CopyN(w, r, blockSize); err != nil {
			return err
		}
		if isLast {
			break
		}
	}
	return nil
}

// writeBlock emits a FLAC metadata block; type codes 's'/'t' (0x73/0x74)
// are the SRSF/SRST markers, per spec.md §4.5.
func writeBlock(w io.Writer, typ byte, isLast bool, payload []byte) error {
	var hdr [4]byte
	hdr[0] = typ
	if isLast {
		hdr[0] |= 0x80
	}
	n := len(payload)
	hdr[1] = byte(n >> 16)
	hdr[2] = byte(n >> 8)
	hdr[3] = byte(n)
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}
