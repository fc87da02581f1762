package wire

import "errors"

// Sentinel error kinds the daemons distinguish. Channel code tests these
// with errors.Is rather than inspecting message strings.
var (
	ErrIoClosed           = errors.New("wire: connection closed")
	ErrWouldBlock         = errors.New("wire: would block")
	ErrMalformed          = errors.New("wire: malformed payload")
	ErrNotFound           = errors.New("wire: not found")
	ErrAlreadyAttached    = errors.New("wire: already attached")
	ErrBusy               = errors.New("wire: socket in use")
	ErrTimeout            = errors.New("wire: timed out")
	ErrSandboxUnavailable = errors.New("wire: sandbox layer unavailable")
	ErrPersistenceCorrupt = errors.New("wire: persisted state partially corrupt")
	ErrPayloadTooLarge    = errors.New("wire: payload exceeds maximum size")
	ErrUnknownHandshake   = errors.New("wire: unknown handshake byte")
)
