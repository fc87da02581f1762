package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
)

// closedErr reports whether err means the peer (or our own side) closed
// the connection, in any of the shapes the runtime produces for that.
func closedErr(err error) bool {
	return err == io.EOF || err == io.ErrUnexpectedEOF ||
		errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed)
}

// MaxPayload is the maximum control-message payload size; larger
// payloads are rejected outright.
const MaxPayload uint32 = 4 << 20

// HeaderSize is the fixed control-message header size: u16 msg_type +
// u32 payload_len, little-endian everywhere (pod frames are the one
// big-endian surface).
const HeaderSize = 6

// Header is the fixed 6-byte control-message header.
type Header struct {
	MsgType    MsgType
	PayloadLen uint32
}

func (h Header) encode() [HeaderSize]byte {
	var b [HeaderSize]byte
	binary.LittleEndian.PutUint16(b[0:2], uint16(h.MsgType))
	binary.LittleEndian.PutUint32(b[2:6], h.PayloadLen)
	return b
}

func decodeHeader(b []byte) Header {
	return Header{
		MsgType:    MsgType(binary.LittleEndian.Uint16(b[0:2])),
		PayloadLen: binary.LittleEndian.Uint32(b[2:6]),
	}
}

// ReadHeader reads and validates one control-message header.
func ReadHeader(r io.Reader) (Header, error) {
	var b [HeaderSize]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		if closedErr(err) {
			return Header{}, ErrIoClosed
		}
		return Header{}, fmt.Errorf("wire: reading header: %w", err)
	}
	h := decodeHeader(b[:])
	if h.PayloadLen > MaxPayload {
		return Header{}, ErrPayloadTooLarge
	}
	return h, nil
}

// WriteHeader writes one control-message header.
func WriteHeader(w io.Writer, h Header) error {
	b := h.encode()
	_, err := w.Write(b[:])
	return err
}

// Message is a decoded control message: header plus raw payload bytes.
// Wire messages are a closed enum tagged by MsgType; callers switch on
// Type and decode the matching typed payload.
type Message struct {
	Type    MsgType
	Payload []byte
}

// ReadMessage performs one blocking header+payload read.
func ReadMessage(r io.Reader) (*Message, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}
	payload := make([]byte, h.PayloadLen)
	if h.PayloadLen > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			if closedErr(err) {
				return nil, ErrIoClosed
			}
			return nil, fmt.Errorf("wire: reading payload: %w", err)
		}
	}
	return &Message{Type: h.MsgType, Payload: payload}, nil
}

// WriteMessage writes one control message (header + payload) atomically
// from the caller's point of view — callers serialize writes with a mutex
// when multiple goroutines may write the same connection.
func WriteMessage(w io.Writer, msgType MsgType, payload []byte) error {
	if uint32(len(payload)) > MaxPayload {
		return ErrPayloadTooLarge
	}
	if err := WriteHeader(w, Header{MsgType: msgType, PayloadLen: uint32(len(payload))}); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := w.Write(payload)
	return err
}
