package shp

import "testing"

func TestCommandEndRoundTrip(t *testing.T) {
	e := NewCommandEnd("make test", "/src", 1, 4200, 2)
	b, err := Encode(e)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Type != CommandEnd || got.Cmd != "make test" || got.Running {
		t.Errorf("got %+v", got)
	}
	if got.Status == nil || *got.Status != 1 {
		t.Errorf("status = %v, want 1", got.Status)
	}
	if got.DurationMs == nil || *got.DurationMs != 4200 {
		t.Errorf("duration = %v, want 4200", got.DurationMs)
	}
}

func TestCommandStartRoundTrip(t *testing.T) {
	e := NewCommandStart("vim", "/home/x", 0, 1700000000)
	b, _ := Encode(e)
	got, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Type != CommandStart || !got.Running || got.StartedAt != 1700000000 {
		t.Errorf("got %+v", got)
	}
	if got.Status != nil {
		t.Errorf("status should be nil for a start event, got %v", *got.Status)
	}
}

func TestDecodeInvalidJSON(t *testing.T) {
	if _, err := Decode([]byte("not json")); err == nil {
		t.Fatal("expected error decoding invalid JSON")
	}
}
