package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := Default()
	if cfg.Cgroup.PidsMax != def.Cgroup.PidsMax || cfg.Ses.OrphanTimeoutHours != def.Ses.OrphanTimeoutHours {
		t.Errorf("got %+v, want defaults %+v", cfg, def)
	}
}

func TestLoadPartialFileKeepsUnsetDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[ses]
orphan_timeout_hours = 48

[pod]
isolate_default = true
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Ses.OrphanTimeoutHours != 48 {
		t.Errorf("orphan_timeout_hours = %d, want 48", cfg.Ses.OrphanTimeoutHours)
	}
	if !cfg.Pod.IsolateDefault {
		t.Error("isolate_default not applied")
	}
	if cfg.Cgroup.PidsMax != Default().Cgroup.PidsMax {
		t.Errorf("pids_max = %d, want default %d", cfg.Cgroup.PidsMax, Default().Cgroup.PidsMax)
	}
}

func TestLoadBadTomlErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[ses\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("malformed toml did not error")
	}
}
