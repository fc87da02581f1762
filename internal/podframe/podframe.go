// Package podframe implements the POD PTY-data-channel framing: a 5-byte
// big-endian {type u8, len u32} header followed by payload bytes, with
// both blocking ReadFrame/WriteFrame helpers and an incremental Reader
// for streams split across arbitrary byte boundaries.
package podframe

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Kind is the pod-frame type byte.
type Kind byte

const (
	Output     Kind = 1
	Input      Kind = 2
	Resize     Kind = 3
	BacklogEnd Kind = 4
	Control    Kind = 5
)

// MaxFrame is the maximum accepted frame payload. Larger frames are
// skipped, never buffered.
const MaxFrame uint32 = 4 << 20

// HeaderSize is the fixed 5-byte pod-frame header.
const HeaderSize = 5

// Frame is one decoded pod frame.
type Frame struct {
	Kind    Kind
	Payload []byte
}

// ReadFrame reads one frame. Oversized frames are skipped (payload bytes
// are discarded from the stream) rather than treated as fatal; ReadFrame
// signals this case by returning (nil, nil) so the caller simply loops
// for the next frame.
func ReadFrame(r io.Reader) (*Frame, error) {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("podframe: reading header: %w", err)
	}
	kind := Kind(hdr[0])
	length := binary.BigEndian.Uint32(hdr[1:5])

	if length > MaxFrame {
		if err := discard(r, int64(length)); err != nil {
			return nil, fmt.Errorf("podframe: skipping oversized frame: %w", err)
		}
		return nil, nil
	}

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, fmt.Errorf("podframe: reading payload: %w", err)
		}
	}
	return &Frame{Kind: kind, Payload: payload}, nil
}

func discard(r io.Reader, n int64) error {
	_, err := io.CopyN(io.Discard, r, n)
	return err
}

// WriteFrame writes one frame.
func WriteFrame(w io.Writer, kind Kind, payload []byte) error {
	var hdr [HeaderSize]byte
	hdr[0] = byte(kind)
	binary.BigEndian.PutUint32(hdr[1:5], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("podframe: writing header: %w", err)
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return fmt.Errorf("podframe: writing payload: %w", err)
		}
	}
	return nil
}

// ResizePayload encodes a resize frame's {cols, rows} payload.
func ResizePayload(cols, rows uint16) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint16(b[0:2], cols)
	binary.BigEndian.PutUint16(b[2:4], rows)
	return b
}

// DecodeResizePayload decodes a resize frame's payload.
func DecodeResizePayload(b []byte) (cols, rows uint16, err error) {
	if len(b) != 4 {
		return 0, 0, fmt.Errorf("podframe: resize payload must be 4 bytes, got %d", len(b))
	}
	return binary.BigEndian.Uint16(b[0:2]), binary.BigEndian.Uint16(b[2:4]), nil
}
