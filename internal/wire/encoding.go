package wire

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// Writer builds a control message's fixed struct + trailing
// variable-length fields. Every multi-byte integer is little-endian.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer { return &Writer{buf: make([]byte, 0, 128)} }

func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) PutU8(v uint8) { w.buf = append(w.buf, v) }

func (w *Writer) PutU16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) PutU32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) PutU64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) PutI64(v int64) { w.PutU64(uint64(v)) }

func (w *Writer) PutBool(v bool) {
	if v {
		w.PutU8(1)
	} else {
		w.PutU8(0)
	}
}

// UUIDHex renders id in its canonical 32-lowercase-hex form, the
// encoding used on the wire, in socket/meta file names, and in the state
// file; never the hyphenated form.
func UUIDHex(id uuid.UUID) string {
	return hex.EncodeToString(id[:])
}

// PutUUID writes the 32 lowercase-hex-ASCII-byte canonical form, not 16
// raw bytes.
func (w *Writer) PutUUID(id uuid.UUID) {
	var hexBuf [32]byte
	hex.Encode(hexBuf[:], id[:])
	w.buf = append(w.buf, hexBuf[:]...)
}

// PutString writes a u16-length-prefixed trailing field.
func (w *Writer) PutString(s string) {
	w.PutU16(uint16(len(s)))
	w.buf = append(w.buf, s...)
}

// PutBytes writes a u32-length-prefixed trailing field.
func (w *Writer) PutBytes(b []byte) {
	w.PutU32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

// PutStrings writes a u16 count followed by that many PutString entries,
// for env/label enumerations.
func (w *Writer) PutStrings(ss []string) {
	w.PutU16(uint16(len(ss)))
	for _, s := range ss {
		w.PutString(s)
	}
}

// Reader parses a control message's fixed struct + trailing fields,
// returning ErrMalformed for any short read.
type Reader struct {
	buf []byte
	pos int
}

func NewReader(buf []byte) *Reader { return &Reader{buf: buf} }

func (r *Reader) need(n int) error {
	if len(r.buf)-r.pos < n {
		return fmt.Errorf("%w: need %d bytes, have %d", ErrMalformed, n, len(r.buf)-r.pos)
	}
	return nil
}

func (r *Reader) GetU8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *Reader) GetU16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *Reader) GetU32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *Reader) GetU64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *Reader) GetI64() (int64, error) {
	v, err := r.GetU64()
	return int64(v), err
}

func (r *Reader) GetBool() (bool, error) {
	v, err := r.GetU8()
	return v != 0, err
}

func (r *Reader) GetUUID() (uuid.UUID, error) {
	if err := r.need(32); err != nil {
		return uuid.UUID{}, err
	}
	var raw [16]byte
	if _, err := hex.Decode(raw[:], r.buf[r.pos:r.pos+32]); err != nil {
		return uuid.UUID{}, fmt.Errorf("%w: bad uuid hex: %v", ErrMalformed, err)
	}
	r.pos += 32
	return uuid.UUID(raw), nil
}

func (r *Reader) GetString() (string, error) {
	n, err := r.GetU16()
	if err != nil {
		return "", err
	}
	if err := r.need(int(n)); err != nil {
		return "", err
	}
	s := string(r.buf[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}

func (r *Reader) GetBytes() ([]byte, error) {
	n, err := r.GetU32()
	if err != nil {
		return nil, err
	}
	if n > MaxPayload {
		return nil, ErrPayloadTooLarge
	}
	if err := r.need(int(n)); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	copy(b, r.buf[r.pos:r.pos+int(n)])
	r.pos += int(n)
	return b, nil
}

func (r *Reader) GetStrings() ([]string, error) {
	n, err := r.GetU16()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, n)
	for i := 0; i < int(n); i++ {
		s, err := r.GetString()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Done reports whether the reader has consumed the entire buffer; callers
// use it to reject trailing garbage after a fixed struct.
func (r *Reader) Done() bool { return r.pos == len(r.buf) }

// Remaining returns the unread tail of the buffer.
func (r *Reader) Remaining() []byte { return r.buf[r.pos:] }
