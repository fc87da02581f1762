// Package shp implements the shell-prompt-integration wire format: the
// JSON-shaped control frames a shell hook sends over a pod's shell
// control channel (handshake 0x02) describing prompt lifecycle, and
// which the pod forwards on to SES as structured events without
// interpreting them.
package shp

import (
	"encoding/json"
	"fmt"
)

// EventType names a prompt lifecycle moment.
type EventType string

const (
	CommandStart EventType = "command_start"
	CommandEnd   EventType = "command_end"
	Spinner      EventType = "spinner"
)

// Event is one shell control-frame payload.
type Event struct {
	Type       EventType `json:"type"`
	Cmd        string    `json:"cmd,omitempty"`
	Cwd        string    `json:"cwd,omitempty"`
	Running    bool      `json:"running"`
	Status     *int32    `json:"status,omitempty"`
	DurationMs *int64    `json:"duration_ms,omitempty"`
	Jobs       int       `json:"jobs"`
	StartedAt  int64     `json:"started_at"`
}

// Encode serializes an Event as the JSON payload carried inside a
// podframe Control frame.
func Encode(e Event) ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("shp: encoding event: %w", err)
	}
	return b, nil
}

// Decode parses a Control frame payload back into an Event. The pod
// forwards the decoded Event onward; it never interprets Cmd itself.
func Decode(b []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(b, &e); err != nil {
		return Event{}, fmt.Errorf("shp: decoding event: %w", err)
	}
	return e, nil
}

// NewCommandStart builds the event emitted when a shell's prompt hook
// fires just before a command runs.
func NewCommandStart(cmd, cwd string, jobs int, startedAt int64) Event {
	return Event{Type: CommandStart, Cmd: cmd, Cwd: cwd, Running: true, Jobs: jobs, StartedAt: startedAt}
}

// NewCommandEnd builds the event emitted when a shell's prompt hook
// fires just after a command exits.
func NewCommandEnd(cmd, cwd string, status int32, durationMs int64, jobs int) Event {
	return Event{
		Type: CommandEnd, Cmd: cmd, Cwd: cwd, Running: false,
		Status: &status, DurationMs: &durationMs, Jobs: jobs,
	}
}
