package podframe

import "encoding/binary"

type readerState int

const (
	stateHeader readerState = iota
	statePayload
	stateSkipping
)

// Reader is an incremental frame decoder for streams split across
// arbitrary byte boundaries. Feed may be called any number of times with
// arbitrarily sized chunks; onFrame is invoked once per complete frame,
// synchronously, in arrival order. The payload handed to onFrame aliases
// the Reader's internal buffer and is valid only for the duration of the
// callback — the Reader never allocates per frame, so callers that
// retain a payload must copy it. After a connection reset, call Reset to
// reuse the same Reader for a new stream.
type Reader struct {
	state      readerState
	hdr        [HeaderSize]byte
	hdrFilled  int
	kind       Kind
	want       uint32
	filled     int
	skipWant   uint64
	payload    []byte // reused buffer, resliced per frame
}

// NewReader creates a ready-to-use Reader.
func NewReader() *Reader { return &Reader{} }

// Reset returns the Reader to its initial state, discarding any partial
// frame in flight.
func (r *Reader) Reset() {
	r.state = stateHeader
	r.hdrFilled = 0
	r.want = 0
	r.skipWant = 0
}

// Feed consumes buf, invoking onFrame for each complete frame decoded.
// Oversized frames (len > MaxFrame) are silently skipped; they do not
// desynchronise subsequent frames.
func (r *Reader) Feed(buf []byte, onFrame func(Frame)) {
	for len(buf) > 0 {
		switch r.state {
		case stateHeader:
			n := copy(r.hdr[r.hdrFilled:], buf)
			r.hdrFilled += n
			buf = buf[n:]
			if r.hdrFilled < HeaderSize {
				return
			}
			r.kind = Kind(r.hdr[0])
			r.want = binary.BigEndian.Uint32(r.hdr[1:5])
			r.hdrFilled = 0
			if r.want > MaxFrame {
				r.skipWant = uint64(r.want)
				r.state = stateSkipping
				continue
			}
			if cap(r.payload) < int(r.want) {
				r.payload = make([]byte, r.want)
			} else {
				r.payload = r.payload[:r.want]
			}
			if r.want == 0 {
				onFrame(Frame{Kind: r.kind, Payload: nil})
				r.state = stateHeader
				continue
			}
			r.state = statePayload
			r.filled = 0

		case statePayload:
			n := copy(r.payload[r.filled:r.want], buf)
			r.filled += n
			buf = buf[n:]
			if uint32(r.filled) < r.want {
				return
			}
			onFrame(Frame{Kind: r.kind, Payload: r.payload[:r.want]})
			r.state = stateHeader
			r.filled = 0

		case stateSkipping:
			n := uint64(len(buf))
			if n > r.skipWant {
				n = r.skipWant
			}
			buf = buf[n:]
			r.skipWant -= n
			if r.skipWant == 0 {
				r.state = stateHeader
			}
		}
	}
}
