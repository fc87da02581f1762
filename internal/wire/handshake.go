package wire

import (
	"fmt"
	"io"

	"github.com/google/uuid"
)

// Handshake identifies the kind of channel a fresh Unix-socket
// connection carries, as the single first byte written by the initiator.
type Handshake byte

const (
	// HandshakeSesCtl is sent by a MUX connecting to SES's control channel.
	HandshakeSesCtl Handshake = 0x01
	// HandshakeSesVT is reserved for MUX<->SES VT multiplexing. Nothing
	// sends it today; defined here so the byte is never repurposed.
	HandshakeSesVT Handshake = 0x02
	// HandshakeSesPodUplink is sent by a POD connecting to SES, followed
	// by 16 raw UUID bytes identifying the pane.
	HandshakeSesPodUplink Handshake = 0x03
	// HandshakeSesCLI is sent by a one-shot CLI tool connecting to SES.
	HandshakeSesCLI Handshake = 0x04

	// HandshakePodVT is sent by SES (or any consumer) connecting to a
	// POD's VT channel.
	HandshakePodVT Handshake = 0x01
	// HandshakePodShellCtl is sent by SHP connecting to a POD's shell
	// control channel.
	HandshakePodShellCtl Handshake = 0x02
	// HandshakePodAuxInput is sent by a CLI tool connecting to a POD's
	// auxiliary input channel.
	HandshakePodAuxInput Handshake = 0x03
)

// WriteHandshake writes the single handshake byte.
func WriteHandshake(w io.Writer, h Handshake) error {
	_, err := w.Write([]byte{byte(h)})
	return err
}

// ReadHandshake reads and validates the single handshake byte against
// the set of handshakes valid for one listener (e.g. the POD's three
// channel kinds). An unrecognised byte is always a closing error.
func ReadHandshake(r io.Reader, valid ...Handshake) (Handshake, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		if err == io.EOF {
			return 0, ErrIoClosed
		}
		return 0, fmt.Errorf("wire: reading handshake: %w", err)
	}
	h := Handshake(b[0])
	for _, v := range valid {
		if h == v {
			return h, nil
		}
	}
	return 0, fmt.Errorf("%w: 0x%02x", ErrUnknownHandshake, b[0])
}

// WriteRawUUID writes the SES-pod-uplink handshake's follow-up: 16 raw
// UUID bytes (not the 32-hex-ASCII form control-message fields use).
func WriteRawUUID(w io.Writer, id uuid.UUID) error {
	_, err := w.Write(id[:])
	return err
}

// ReadRawUUID reads the 16 raw follow-up bytes after HandshakeSesPodUplink.
func ReadRawUUID(r io.Reader) (uuid.UUID, error) {
	var raw [16]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return uuid.UUID{}, fmt.Errorf("wire: reading pod uplink uuid follow-up: %w", err)
	}
	return uuid.UUID(raw), nil
}
