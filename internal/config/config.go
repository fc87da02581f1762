// Package config loads the per-instance daemon configuration shared by
// SES and POD: sandbox defaults, cgroup limits, GC timeouts, and the
// default shell.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// PodConfig controls POD's default isolation behavior.
type PodConfig struct {
	// IsolateDefault, when true, sandboxes every newly-created pane
	// (Landlock + cgroup v2); a per-pane isolate request can turn the
	// sandbox on when this is false, but cannot turn it off.
	IsolateDefault bool `toml:"isolate_default"`
}

// CgroupConfig bounds the cgroup v2 limits applied to isolated panes.
type CgroupConfig struct {
	PidsMax uint64 `toml:"pids_max"`
	MemMax  string `toml:"mem_max"`
	CPUMax  string `toml:"cpu_max"`
}

// SesConfig controls the registry's GC behavior.
type SesConfig struct {
	OrphanTimeoutHours int `toml:"orphan_timeout_hours"`
}

// ShellConfig names the default shell for new panes when a caller doesn't
// specify one.
type ShellConfig struct {
	Default string `toml:"default"`
}

// Config is the top-level config.toml shape.
type Config struct {
	Pod    PodConfig    `toml:"pod"`
	Cgroup CgroupConfig `toml:"cgroup"`
	Ses    SesConfig    `toml:"ses"`
	Shell  ShellConfig  `toml:"shell"`
}

// Default returns the configuration used when no config.toml is present.
func Default() Config {
	return Config{
		Pod:    PodConfig{IsolateDefault: false},
		Cgroup: CgroupConfig{PidsMax: 512, MemMax: "1G", CPUMax: "200%"},
		Ses:    SesConfig{OrphanTimeoutHours: 24},
		Shell:  ShellConfig{Default: defaultShell()},
	}
}

func defaultShell() string {
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	return "/bin/sh"
}

// Load reads path, falling back to Default() entirely when the file is
// absent, and filling any field the file omits from Default().
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); err != nil {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}
