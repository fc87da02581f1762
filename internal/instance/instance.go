// Package instance resolves the per-user, per-instance filesystem layout
// that namespaces every Hexe socket and state file.
package instance

import (
	"os"
	"path/filepath"
	"regexp"
)

const maxNameLen = 24

var validChar = regexp.MustCompile(`[A-Za-z0-9_.\-]`)

// Sanitize restricts name to [A-Za-z0-9_.-], truncated to 24 bytes. An
// empty result (including an empty input) means "default".
func Sanitize(name string) string {
	if name == "" {
		return ""
	}
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name) && len(out) < maxNameLen; i++ {
		c := name[i : i+1]
		if validChar.MatchString(c) {
			out = append(out, c...)
		}
	}
	return string(out)
}

// Name resolves the instance name from an explicit flag value (highest
// priority), then HEXE_INSTANCE, defaulting to "" ("default").
func Name(flagValue string) string {
	if flagValue != "" {
		return Sanitize(flagValue)
	}
	if env := os.Getenv("HEXE_INSTANCE"); env != "" {
		return Sanitize(env)
	}
	return ""
}

// Layout is the resolved set of directories/paths for one instance.
type Layout struct {
	Name       string // sanitised instance name, "" for default
	RuntimeDir string // socket directory
	StateDir   string // persisted state directory
}

// Resolve builds a Layout for the given instance name (already sanitised
// or empty).
func Resolve(name string) Layout {
	runtimeBase := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeBase == "" {
		runtimeBase = filepath.Join("/tmp", "hexe-"+currentUser())
	}
	stateBase := os.Getenv("XDG_STATE_HOME")
	if stateBase == "" {
		home := os.Getenv("HOME")
		stateBase = filepath.Join(home, ".local", "state")
	}

	runtimeDir := filepath.Join(runtimeBase, "hexe")
	stateDir := filepath.Join(stateBase, "hexe")
	if name != "" {
		runtimeDir = filepath.Join(runtimeDir, name)
		stateDir = filepath.Join(stateDir, name)
	}
	return Layout{Name: name, RuntimeDir: runtimeDir, StateDir: stateDir}
}

func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "default"
}

// EnsureDirs creates the runtime and state directories (mkdir -p semantics).
func (l Layout) EnsureDirs() error {
	if err := os.MkdirAll(l.RuntimeDir, 0o700); err != nil {
		return err
	}
	return os.MkdirAll(l.StateDir, 0o700)
}

// SesSocket is the SES listener path.
func (l Layout) SesSocket() string { return filepath.Join(l.RuntimeDir, "ses.sock") }

// MuxSocket is a MUX control endpoint path for a given client-session uuid.
func (l Layout) MuxSocket(uuidHex string) string {
	return filepath.Join(l.RuntimeDir, "mux-"+uuidHex+".sock")
}

// PodSocket is a POD endpoint path for a given pane uuid.
func (l Layout) PodSocket(uuidHex string) string {
	return filepath.Join(l.RuntimeDir, "pod-"+uuidHex+".sock")
}

// PodMeta is a POD discovery metadata file path for a given pane uuid.
func (l Layout) PodMeta(uuidHex string) string {
	return filepath.Join(l.RuntimeDir, "pod-"+uuidHex+".meta")
}

// PodAlias is the optional POD alias symlink path for a sanitised name.
func (l Layout) PodAlias(name string) string {
	return filepath.Join(l.RuntimeDir, "pod@"+name+".sock")
}

// StateFile is the SES persisted-state JSON path.
func (l Layout) StateFile() string {
	return filepath.Join(l.StateDir, "ses_state.json")
}

// ConfigFile is the optional daemon config file path.
func (l Layout) ConfigFile() string {
	return filepath.Join(l.StateDir, "config.toml")
}

// TestInstanceName generates a name of the form test-<8hex> for -T/--test-only
// when no instance was otherwise provided.
func TestInstanceName() string {
	return "test-" + randomHex(8)
}
