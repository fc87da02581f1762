package muxside

import (
	"bytes"
	"testing"
)

func TestDetachFilter(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		detach bool
		fwd    string
	}{
		{"plain chord", "\x02d", true, ""},
		{"chord after text", "abc\x02d", true, "abc"},
		{"prefix cancelled by other byte", "\x02x", false, "\x02x"},
		{"plain bytes pass through", "ab", false, "ab"},
		{"cursor report inside chord", "\x02\x1b[24;80Rd", true, "\x1b[24;80R"},
		{"focus event inside chord", "\x02\x1b[Id", true, "\x1b[I"},
		{"several sequences inside chord", "\x02\x1b[I\x1b[24;80Rd", true, "\x1b[I\x1b[24;80R"},
		{"mouse report inside chord", "\x02\x1b[<0;10;20Md", true, "\x1b[<0;10;20M"},
		{"two-byte escape inside chord", "\x02\x1bNd", true, "\x1bN"},
		{"kitty prefix then raw d", "\x1b[98;5ud", true, ""},
		{"kitty prefix then kitty d", "\x1b[98;5u\x1b[100;1u", true, ""},
		{"kitty d without modifier", "\x1b[98;5u\x1b[100u", true, ""},
		{"raw prefix then kitty d", "\x02\x1b[100;1u", true, ""},
		{"focus event between kitty prefix and d", "\x1b[98;5u\x1b[Id", true, "\x1b[I"},
		{"focus event between kitty prefix and kitty d", "\x1b[98;5u\x1b[I\x1b[100;1u", true, "\x1b[I"},
		{"kitty non-prefix key passes through", "\x1b[97;1u", false, "\x1b[97;1u"},
		{"kitty other key cancels chord", "\x1b[98;5u\x1b[120;1u", false, "\x02\x1b[120;1u"},
		{"ctrl-d is not the chord", "\x1b[98;5u\x1b[100;5u", false, "\x02\x1b[100;5u"},
		{"kitty prefix cancelled by raw byte", "\x1b[98;5ux", false, "\x02x"},
		{"csi outside chord passes through", "\x1b[6n", false, "\x1b[6n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fwd, detached := NewDetachFilter().Scan([]byte(tt.in))
			if detached != tt.detach {
				t.Errorf("detached = %v, want %v", detached, tt.detach)
			}
			if !bytes.Equal(fwd, []byte(tt.fwd)) {
				t.Errorf("fwd = %q, want %q", fwd, tt.fwd)
			}
		})
	}
}

// A chord or escape sequence split across read boundaries must survive
// the seam: the filter holds the partial sequence between Scan calls.
func TestDetachFilterSplitInput(t *testing.T) {
	f := NewDetachFilter()
	fwd, detached := f.Scan([]byte("\x1b[98;5"))
	if detached || len(fwd) != 0 {
		t.Fatalf("mid-sequence: detached=%v fwd=%q", detached, fwd)
	}
	fwd, detached = f.Scan([]byte("ud"))
	if !detached {
		t.Fatal("chord split across reads not recognised")
	}
	if len(fwd) != 0 {
		t.Errorf("fwd = %q, want empty", fwd)
	}
}

// Input following a completed chord is dropped, not forwarded.
func TestDetachFilterDropsTrailingInput(t *testing.T) {
	fwd, detached := NewDetachFilter().Scan([]byte("\x02dls\n"))
	if !detached {
		t.Fatal("expected detach")
	}
	if !bytes.Equal(fwd, nil) {
		t.Errorf("fwd = %q, want empty", fwd)
	}
}
