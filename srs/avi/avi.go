// Package avi implements the RIFF/AVI srs.Profiler and srs.Writer
// (spec.md §4.4.1/§4.5 AVI).
package avi

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"regexp"

	"github.com/javi11/rescene/internal/bytecodec"
	"github.com/javi11/rescene/srs"
)

func init() {
	srs.RegisterProfiler(srs.ContainerAVI, Profiler{})
	srs.RegisterWriter(srs.ContainerAVI, Writer{})
}

var trackFourCC = regexp.MustCompile(`^[0-9]{2}[a-zA-Z]{2}$`)

// Profiler walks an AVI's RIFF chunk tree.
type Profiler struct{}

func (Profiler) Profile(r io.ReadSeeker, size int64) (srs.Result, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return srs.Result{}, err
	}
	crc := bytecodec.NewCRC32()
	tee := io.TeeReader(r, crc)
	acc := srs.NewTrackAccumulator()
	if err := walkChunks(tee, size, acc); err != nil {
		return srs.Result{}, err
	}
	return srs.Result{Tracks: acc.Tracks(), CRC32: crc.Sum32(), ParsedSize: size}, nil
}

// walkChunks recurses into RIFF/LIST containers, classifying payload
// chunks as track data (fourcc `DDLL`) or container metadata.
func walkChunks(r io.Reader, regionSize int64, acc *srs.TrackAccumulator) error {
	var consumed int64
	for consumed < regionSize {
		var hdr [8]byte
		n, err := io.ReadFull(r, hdr[:])
		if err == io.EOF || (err == io.ErrUnexpectedEOF && n == 0) {
			break
		}
		if err != nil {
			return fmt.Errorf("avi: reading chunk header: %w", err)
		}
		consumed += 8
		fourcc := hdr[0:4]
		chunkSize := int64(binary.LittleEndian.Uint32(hdr[4:8]))

		if string(fourcc) == "RIFF" || string(fourcc) == "LIST" {
			var sub [4]byte
			if _, err := io.ReadFull(r, sub[:]); err != nil {
				return fmt.Errorf("avi: reading list sub-type: %w", err)
			}
			consumed += 4
			childSize := chunkSize - 4
			if err := walkChunks(io.LimitReader(r, childSize), childSize, acc); err != nil {
				return err
			}
			consumed += childSize
		} else if trackFourCC.Match(fourcc) {
			d0, d1 := fourcc[0]-'0', fourcc[1]-'0'
			trackNum := uint32(d0)*10 + uint32(d1)
			if err := drainAsTrack(r, chunkSize, trackNum, acc); err != nil {
				return err
			}
			consumed += chunkSize
		} else {
			if _, err := io.CopyN(io.Discard, r, chunkSize); err != nil {
				return fmt.Errorf("avi: skipping chunk %q: %w", fourcc, err)
			}
			consumed += chunkSize
		}

		if chunkSize%2 != 0 && consumed < regionSize {
			if _, err := io.CopyN(io.Discard, r, 1); err != nil {
				return fmt.Errorf("avi: reading pad byte: %w", err)
			}
			consumed++
		}
	}
	return nil
}

func drainAsTrack(r io.Reader, size int64, trackNum uint32, acc *srs.TrackAccumulator) error {
	remaining := size
	buf := make([]byte, 64*1024)
	for remaining > 0 {
		n := int64(len(buf))
		if n > remaining {
			n = remaining
		}
		read, err := io.ReadFull(r, buf[:n])
		if read > 0 {
			acc.Add(trackNum, buf[:read])
		}
		remaining -= int64(read)
		if err != nil {
			return fmt.Errorf("avi: reading track %d payload: %w", trackNum, err)
		}
	}
	return nil
}

// Writer re-emits an AVI's RIFF structure with payload dropped and the
// SRSF/SRST pair injected as the first children of LIST movi.
type Writer struct{}

func (Writer) WriteSRS(w io.Writer, r io.ReadSeeker, size int64, result srs.Result, appName string) error {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return err
	}
	descriptor := buildDescriptor(result, appName)
	body, err := copyStructure(r, size, descriptor)
	if err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

func buildDescriptor(result srs.Result, appName string) []byte {
	var out bytes.Buffer
	var total uint64
	for _, t := range result.Tracks {
		total += t.DataLength
	}
	out.Write(chunk("SRSF", srs.EncodeSRSF(appName, "", total, result.CRC32)))
	var offset uint64
	for _, t := range result.Tracks {
		out.Write(chunk("SRST", srs.EncodeSRST(t, offset)))
		offset += t.DataLength
	}
	return out.Bytes()
}

func chunk(fourcc string, payload []byte) []byte {
	var b bytes.Buffer
	b.WriteString(fourcc)
	b.Write(bytecodec.U32LE(uint32(len(payload))))
	b.Write(payload)
	if len(payload)%2 != 0 {
		b.WriteByte(0)
	}
	return b.Bytes()
}

// copyStructure replays the RIFF tree rooted at regionSize source bytes,
// dropping track payload bytes and inserting descriptor as the first
// children of LIST movi, and returns the rewritten bytes for this
// region. A RIFF/LIST chunk's declared size cannot simply be copied
// from the source: every track chunk dropped beneath it shrinks the
// region, and the injected descriptor under movi grows it, so each
// container's size is recomputed here from the actual length of its
// rewritten children and that correction propagates to every enclosing
// LIST/RIFF through the returned byte slice.
func copyStructure(r io.Reader, regionSize int64, descriptor []byte) ([]byte, error) {
	var out bytes.Buffer
	var consumed int64
	for consumed < regionSize {
		var hdr [8]byte
		n, err := io.ReadFull(r, hdr[:])
		if err == io.EOF || (err == io.ErrUnexpectedEOF && n == 0) {
			break
		}
		if err != nil {
			return nil, err
		}
		consumed += 8
		fourcc := string(hdr[0:4])
		chunkSize := int64(binary.LittleEndian.Uint32(hdr[4:8]))

		switch {
		case fourcc == "RIFF" || fourcc == "LIST":
			var sub [4]byte
			if _, err := io.ReadFull(r, sub[:]); err != nil {
				return nil, err
			}
			consumed += 4
			isMovi := string(sub[:]) == "movi"
			childSize := chunkSize - 4
			childBody, err := copyStructure(io.LimitReader(r, childSize), childSize, descriptor)
			if err != nil {
				return nil, err
			}
			consumed += childSize

			var body bytes.Buffer
			body.Write(sub[:])
			if isMovi {
				body.Write(descriptor)
			}
			body.Write(childBody)

			out.WriteString(fourcc)
			out.Write(bytecodec.U32LE(uint32(body.Len())))
			out.Write(body.Bytes())
			if body.Len()%2 != 0 {
				out.WriteByte(0)
			}
		case trackFourCC.MatchString(fourcc):
			if _, err := io.CopyN(io.Discard, r, chunkSize); err != nil {
				return nil, err
			}
			consumed += chunkSize
		default:
			out.WriteString(fourcc)
			out.Write(hdr[4:8])
			if _, err := io.CopyN(&out, r, chunkSize); err != nil {
				return nil, err
			}
			consumed += chunkSize
		}

		if chunkSize%2 != 0 && consumed < regionSize {
			var pad [1]byte
			if _, err := io.ReadFull(r, pad[:]); err != nil {
				return nil, err
			}
			// the dropped-track and recomputed-container branches
			// already decided their own output parity above; only the
			// unmodified leaf-chunk branch replays the source's pad
			// byte verbatim.
			if fourcc != "RIFF" && fourcc != "LIST" && !trackFourCC.MatchString(fourcc) {
				out.Write(pad[:])
			}
			consumed++
		}
	}
	return out.Bytes(), nil
}
