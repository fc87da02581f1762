package muxside

import (
	"bytes"
	"strconv"
)

const chordPrefix = 0x02 // Ctrl+B

// DetachFilter splices detach-chord recognition into the attach loop's
// stdin pump: Ctrl+B followed by 'd' detaches, everything else flows
// through to the pod untouched. Both keys are accepted in either their
// legacy byte form or as kitty keyboard-protocol sequences ("\x1b[98;5u"
// is Ctrl+B, "\x1b[100u" / "\x1b[100;1u" is 'd'), since a kitty-protocol
// terminal never emits the raw bytes. Terminal-injected sequences that
// arrive while the chord is armed (focus events, cursor position
// reports, mouse reports) are forwarded without disarming it.
type DetachFilter struct {
	armed bool
	esc   []byte // partial escape sequence spanning Scan calls
}

func NewDetachFilter() *DetachFilter { return &DetachFilter{} }

// Scan consumes one read's worth of stdin and returns the bytes to
// forward plus whether the detach chord completed. Input after the chord
// is dropped; an escape sequence cut off by the read boundary is held
// until the next call.
func (f *DetachFilter) Scan(in []byte) (fwd []byte, detached bool) {
	for _, b := range in {
		if len(f.esc) > 0 {
			f.esc = append(f.esc, b)
			done, malformed := escDone(f.esc)
			if !done {
				continue
			}
			seq := f.esc
			f.esc = nil
			out, hit := f.finishEsc(seq, malformed)
			if hit {
				return fwd, true
			}
			fwd = append(fwd, out...)
			continue
		}
		switch {
		case b == 0x1b:
			f.esc = append(f.esc, b)
		case f.armed:
			f.armed = false
			if b == 'd' {
				return fwd, true
			}
			fwd = append(fwd, chordPrefix, b)
		case b == chordPrefix:
			f.armed = true
		default:
			fwd = append(fwd, b)
		}
	}
	return fwd, false
}

// escDone reports whether esc is a complete escape sequence, and whether
// it ended on a byte outside the CSI grammar. Two-byte escapes ("\x1bN",
// "\x1bO", ...) complete immediately; CSI sequences run until a final
// byte in 0x40-0x7e.
func escDone(esc []byte) (done, malformed bool) {
	if len(esc) < 2 {
		return false, false
	}
	if esc[1] != '[' {
		return true, false
	}
	if len(esc) == 2 {
		return false, false
	}
	switch b := esc[len(esc)-1]; {
	case b >= 0x40 && b <= 0x7e:
		return true, false
	case b >= 0x20 && b <= 0x3f:
		return false, false
	default:
		return true, true
	}
}

// finishEsc classifies one complete escape sequence. A kitty key event
// can arm the chord (Ctrl+B), complete it ('d'), or cancel it (any other
// key); non-key sequences pass through without disturbing an armed
// chord. A cancelled chord re-emits the swallowed prefix byte so the
// shell still sees the user's literal Ctrl+B.
func (f *DetachFilter) finishEsc(seq []byte, malformed bool) (fwd []byte, detached bool) {
	if malformed {
		if f.armed {
			f.armed = false
			return append([]byte{chordPrefix}, seq...), false
		}
		return seq, false
	}
	cp, mod, isKey := kittyKey(seq)
	if f.armed {
		if isKey && cp == 'd' && mod == 1 {
			f.armed = false
			return nil, true
		}
		if seq[1] == '[' && seq[len(seq)-1] == 'u' {
			// A key event that isn't 'd' ends the chord.
			f.armed = false
			return append([]byte{chordPrefix}, seq...), false
		}
		return seq, false
	}
	if isKey && cp == 'b' && mod == 5 { // modifier 5 = 1 + Ctrl
		f.armed = true
		return nil, false
	}
	return seq, false
}

// kittyKey parses a kitty keyboard-protocol sequence
// "\x1b[<codepoint>[:alt][;<modifier>[:event]]u" into its codepoint and
// modifier (1 when absent). ok is false for every other sequence.
func kittyKey(seq []byte) (cp, mod int, ok bool) {
	if len(seq) < 4 || seq[1] != '[' || seq[len(seq)-1] != 'u' {
		return 0, 0, false
	}
	cpField, modField, _ := bytes.Cut(seq[2:len(seq)-1], []byte{';'})
	cp, ok = kittyNum(cpField)
	if !ok {
		return 0, 0, false
	}
	mod = 1
	if len(modField) > 0 {
		modField, _, _ = bytes.Cut(modField, []byte{';'}) // drop a trailing text field
		if mod, ok = kittyNum(modField); !ok {
			return 0, 0, false
		}
	}
	return cp, mod, true
}

// kittyNum decodes one field's leading number, ignoring any ":"-separated
// sub-fields (shifted codepoints, event types).
func kittyNum(field []byte) (int, bool) {
	head, _, _ := bytes.Cut(field, []byte{':'})
	n, err := strconv.Atoi(string(head))
	if err != nil {
		return 0, false
	}
	return n, true
}
