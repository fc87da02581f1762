package podframe

import (
	"bytes"
	"reflect"
	"testing"
)

// TestFrameSplitStream feeds three arbitrarily split buffers and expects
// exactly two decoded frames.
func TestFrameSplitStream(t *testing.T) {
	bufs := [][]byte{
		{0x01, 0x00, 0x00, 0x00, 0x05, 'H', 'e', 'l', 'l'},
		{'o', 0x02, 0x00, 0x00, 0x00, 0x02, 'a'},
		{'b'},
	}

	var got []Frame
	r := NewReader()
	for _, b := range bufs {
		// Payloads alias the Reader's scratch buffer, so retained frames
		// must be copied.
		r.Feed(b, func(f Frame) {
			got = append(got, Frame{Kind: f.Kind, Payload: append([]byte(nil), f.Payload...)})
		})
	}

	want := []Frame{
		{Kind: Output, Payload: []byte("Hello")},
		{Kind: Input, Payload: []byte("ab")},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d frames, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i].Kind != want[i].Kind || !bytes.Equal(got[i].Payload, want[i].Payload) {
			t.Errorf("frame %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

// TestOversizeFrameSkipped reproduces scenario S5: an oversized frame is
// dropped without desynchronising the frame that follows it.
func TestOversizeFrameSkipped(t *testing.T) {
	var buf bytes.Buffer
	hugePayload := bytes.Repeat([]byte{'x'}, 10*1024*1024)
	if err := WriteFrame(&buf, Output, hugePayload); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if err := WriteFrame(&buf, Input, []byte("ok")); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	var got []Frame
	r := NewReader()
	all := buf.Bytes()
	// Feed in small chunks to also exercise partial reads while skipping.
	for len(all) > 0 {
		n := 4096
		if n > len(all) {
			n = len(all)
		}
		r.Feed(all[:n], func(f Frame) { got = append(got, f) })
		all = all[n:]
	}

	if len(got) != 1 {
		t.Fatalf("got %d frames, want 1 (oversized frame must be dropped): %+v", len(got), got)
	}
	if got[0].Kind != Input || string(got[0].Payload) != "ok" {
		t.Errorf("got %+v", got[0])
	}
}

func TestResizePayloadRoundTrip(t *testing.T) {
	cols, rows, err := DecodeResizePayload(ResizePayload(80, 24))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cols != 80 || rows != 24 {
		t.Errorf("got cols=%d rows=%d", cols, rows)
	}
}

func TestReaderResetAllowsReuse(t *testing.T) {
	r := NewReader()
	var got []Frame
	r.Feed([]byte{0x05, 0x00, 0x00, 0x00}, func(f Frame) { got = append(got, f) }) // partial header
	r.Reset()
	var buf bytes.Buffer
	_ = WriteFrame(&buf, Control, []byte("{}"))
	r.Feed(buf.Bytes(), func(f Frame) { got = append(got, f) })
	if len(got) != 1 || got[0].Kind != Control || !reflect.DeepEqual(got[0].Payload, []byte("{}")) {
		t.Errorf("got %+v", got)
	}
}
