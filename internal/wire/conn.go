package wire

import (
	"errors"
	"net"
	"sync"
	"time"
)

// Conn wraps a Unix-socket connection carrying control messages after
// the handshake byte. Writes are serialized; reads are not (callers own
// a single reading goroutine per connection).
type Conn struct {
	nc  net.Conn
	wmu sync.Mutex
}

func NewConn(nc net.Conn) *Conn { return &Conn{nc: nc} }

func (c *Conn) Close() error { return c.nc.Close() }

func (c *Conn) RawConn() net.Conn { return c.nc }

// ReadMessage performs a blocking header+payload read.
func (c *Conn) ReadMessage() (*Message, error) {
	return ReadMessage(c.nc)
}

// WriteMessage performs a serialized blocking write.
func (c *Conn) WriteMessage(msgType MsgType, payload []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	err := WriteMessage(c.nc, msgType, payload)
	if err != nil && isEPIPE(err) {
		return ErrIoClosed
	}
	return err
}

// TryReadMessage attempts a non-blocking read: it returns ErrWouldBlock
// only if no byte of the header has arrived yet. Once the first header
// byte is available it switches to blocking reads for the remainder of
// the header and payload.
func (c *Conn) TryReadMessage() (*Message, error) {
	deadliner, ok := c.nc.(interface{ SetReadDeadline(time.Time) error })
	if !ok {
		return c.ReadMessage()
	}
	// Peek for readability with a near-zero deadline; if nothing has
	// arrived yet, report WouldBlock and leave the deadline cleared for
	// the next attempt.
	_ = deadliner.SetReadDeadline(time.Now().Add(time.Millisecond))
	var hdr [1]byte
	n, err := c.nc.Read(hdr[:])
	_ = deadliner.SetReadDeadline(time.Time{})
	if n == 0 {
		if err != nil && isTimeout(err) {
			return nil, ErrWouldBlock
		}
		if err != nil {
			return nil, ErrIoClosed
		}
		return nil, ErrWouldBlock
	}
	// We consumed the first header byte; read the rest blocking.
	return readMessageAfterFirstByte(c.nc, hdr[0])
}

func readMessageAfterFirstByte(nc net.Conn, first byte) (*Message, error) {
	rest := make([]byte, HeaderSize-1)
	if _, err := readFull(nc, rest); err != nil {
		return nil, err
	}
	hdrBytes := append([]byte{first}, rest...)
	h := decodeHeader(hdrBytes)
	if h.PayloadLen > MaxPayload {
		return nil, ErrPayloadTooLarge
	}
	payload := make([]byte, h.PayloadLen)
	if h.PayloadLen > 0 {
		if _, err := readFull(nc, payload); err != nil {
			return nil, err
		}
	}
	return &Message{Type: h.MsgType, Payload: payload}, nil
}

func readFull(nc net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := nc.Read(buf[total:])
		total += n
		if err != nil {
			return total, ErrIoClosed
		}
	}
	return total, nil
}

func isTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}
