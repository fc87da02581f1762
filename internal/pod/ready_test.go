package pod

import (
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"
)

func TestReadyLineFormat(t *testing.T) {
	line := ReadyLine(4242)
	if !strings.HasSuffix(line, "\n") {
		t.Fatalf("ReadyLine must be newline-terminated, got %q", line)
	}
	var parsed struct {
		Type string `json:"type"`
		Pid  int    `json:"pid"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSuffix(line, "\n")), &parsed); err != nil {
		t.Fatalf("ReadyLine did not produce valid JSON: %v", err)
	}
	if parsed.Type != "pod_ready" || parsed.Pid != 4242 {
		t.Errorf("got %+v", parsed)
	}
}

func TestWaitForReadyParsesLine(t *testing.T) {
	r := strings.NewReader(ReadyLine(99))
	pid, err := WaitForReady(r, time.Second)
	if err != nil {
		t.Fatalf("WaitForReady: %v", err)
	}
	if pid != 99 {
		t.Errorf("pid = %d, want 99", pid)
	}
}

func TestWaitForReadyTimesOut(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	_, err := WaitForReady(r, 50*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error")
	}
}
