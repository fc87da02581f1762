package ptyexec

import (
	"os"
	"strings"
)

// buildEnv assembles the child shell's environment: inherit the parent's
// environment, then override/append BOX=1 and TERM=xterm-256color, then
// the caller's extras, then the MUX-provided pane variables, in that
// order.
func buildEnv(opts Options) []string {
	base := os.Environ()
	overrides := make([]string, 0, 2+len(opts.Extra)+len(opts.PaneEnv))
	overrides = append(overrides, "BOX=1", "TERM=xterm-256color")
	overrides = append(overrides, opts.Extra...)
	overrides = append(overrides, opts.PaneEnv...)
	return applyOverrides(base, overrides)
}

// applyOverrides returns base with each KEY=VALUE in overrides either
// replacing the existing entry for KEY or appended, preserving the order
// overrides were given in for newly-appended keys.
func applyOverrides(base, overrides []string) []string {
	keyIdx := make(map[string]int, len(base))
	result := make([]string, len(base))
	copy(result, base)
	for i, e := range result {
		if eq := strings.IndexByte(e, '='); eq >= 0 {
			keyIdx[e[:eq]] = i
		}
	}
	for _, ov := range overrides {
		eq := strings.IndexByte(ov, '=')
		if eq < 0 {
			continue
		}
		key := ov[:eq]
		if idx, ok := keyIdx[key]; ok {
			result[idx] = ov
		} else {
			keyIdx[key] = len(result)
			result = append(result, ov)
		}
	}
	return result
}
