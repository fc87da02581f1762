package ses

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/hexe-sh/hexe/internal/wire"
)

func populatedRegistry(t *testing.T) *Registry {
	t.Helper()
	r := testRegistry()
	a := r.Register(nil, uuid.New(), true, "a")

	sticky := addPane(r, a.ID)
	r.SetSticky(sticky.UUID, '1', "/tmp")
	r.OrphanPane(sticky.UUID)

	orphan := addPane(r, a.ID)
	r.OrphanPane(orphan.UUID)

	detached := addPane(r, a.ID)
	_ = detached
	r.SyncState(a.ID, []byte(`{"tabs":[]}`))
	r.RemoveClient(a.ID, nil)
	return r
}

// TestSaveLoadRoundTrip: save then load restores the observable subset of
// state (panes, detached sessions, sticky metadata), including after a
// daemon restart with a fresh registry.
func TestSaveLoadRoundTrip(t *testing.T) {
	r := populatedRegistry(t)
	path := filepath.Join(t.TempDir(), "ses_state.json")
	if err := r.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	r2 := testRegistry()
	if err := r2.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r2.mu.Lock()
	defer r2.mu.Unlock()

	if len(r2.panes) != len(r.panes) {
		t.Fatalf("restored %d panes, want %d", len(r2.panes), len(r.panes))
	}
	for id, p := range r.panes {
		q, ok := r2.panes[id]
		if !ok {
			t.Errorf("pane %s missing after load", id)
			continue
		}
		if q.State != p.State || q.StickyKey != p.StickyKey || q.StickyPwd != p.StickyPwd ||
			q.SessionID != p.SessionID || q.PodPid != p.PodPid || q.ChildPid != p.ChildPid {
			t.Errorf("pane %s restored as %+v, want %+v", id, q, p)
		}
	}
	if len(r2.detached) != len(r.detached) {
		t.Fatalf("restored %d sessions, want %d", len(r2.detached), len(r.detached))
	}
	for id, ds := range r.detached {
		qs, ok := r2.detached[id]
		if !ok {
			t.Errorf("session %s missing after load", id)
			continue
		}
		if qs.SessionName != ds.SessionName || qs.DetachedAt != ds.DetachedAt ||
			!bytes.Equal(qs.LayoutJSON, ds.LayoutJSON) || len(qs.PaneUUIDs) != len(ds.PaneUUIDs) {
			t.Errorf("session %s restored as %+v, want %+v", id, qs, ds)
		}
	}
}

// TestSaveIdempotentBytes: saving twice with no mutations in between
// writes byte-identical files.
func TestSaveIdempotentBytes(t *testing.T) {
	r := populatedRegistry(t)
	dir := t.TempDir()
	p1 := filepath.Join(dir, "one.json")
	p2 := filepath.Join(dir, "two.json")
	if err := r.Save(p1); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	if err := r.Save(p2); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	b1, _ := os.ReadFile(p1)
	b2, _ := os.ReadFile(p2)
	if !bytes.Equal(b1, b2) {
		t.Errorf("two saves differ:\n%s\n---\n%s", b1, b2)
	}
}

// Attached panes have no meaning without their MUX and are not persisted.
func TestSaveSkipsAttachedPanes(t *testing.T) {
	r := testRegistry()
	a := r.Register(nil, uuid.New(), true, "a")
	attached := addPane(r, a.ID)
	orphan := addPane(r, a.ID)
	r.OrphanPane(orphan.UUID)

	path := filepath.Join(t.TempDir(), "ses_state.json")
	if err := r.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	r2 := testRegistry()
	if err := r2.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := r2.PaneInfo(attached.UUID); ok {
		t.Error("attached pane was persisted")
	}
	if p, ok := r2.PaneInfo(orphan.UUID); !ok || p.State != wire.PaneOrphaned {
		t.Errorf("orphaned pane after load: ok=%v %+v", ok, p)
	}
}

func TestLoadMissingFile(t *testing.T) {
	r := testRegistry()
	if err := r.Load(filepath.Join(t.TempDir(), "nope.json")); err != nil {
		t.Errorf("missing state file must not error: %v", err)
	}
}

// A corrupt state file must not prevent startup; the daemon starts empty.
func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ses_state.json")
	if err := os.WriteFile(path, []byte(`{"panes": [{"uuid": truncat`), 0o600); err != nil {
		t.Fatal(err)
	}
	r := testRegistry()
	if err := r.Load(path); err != nil {
		t.Errorf("corrupt state file must not error: %v", err)
	}
	r.mu.Lock()
	n := len(r.panes)
	r.mu.Unlock()
	if n != 0 {
		t.Errorf("corrupt load produced %d panes", n)
	}
}

// Unknown extra keys and unknown pane states are tolerated; known entries
// still load.
func TestLoadTolerantOfUnknownFields(t *testing.T) {
	id := uuid.New()
	blob := `{
  "panes": [
    {"uuid": "` + wire.UUIDHex(id) + `", "state": "orphaned", "pod_pid": 41, "future_field": 7},
    {"uuid": "` + wire.UUIDHex(uuid.New()) + `", "state": "hibernating"}
  ],
  "detached_sessions": [],
  "schema_version": 9
}`
	path := filepath.Join(t.TempDir(), "ses_state.json")
	if err := os.WriteFile(path, []byte(blob), 0o600); err != nil {
		t.Fatal(err)
	}
	r := testRegistry()
	if err := r.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	p, ok := r.PaneInfo(id)
	if !ok || p.State != wire.PaneOrphaned || p.PodPid != 41 {
		t.Errorf("known pane after tolerant load: ok=%v %+v", ok, p)
	}
	r.mu.Lock()
	n := len(r.panes)
	r.mu.Unlock()
	if n != 1 {
		t.Errorf("unknown-state pane was loaded, total %d", n)
	}
}

// TestSaveAtomicLeavesNoTemp: the write-tmp-then-rename path must not
// leave temp files behind on success.
func TestSaveAtomicLeavesNoTemp(t *testing.T) {
	r := populatedRegistry(t)
	dir := t.TempDir()
	if err := r.Save(filepath.Join(dir, "ses_state.json")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "ses_state.json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("directory contents after save: %v", names)
	}
}

func TestDirtyFlagLifecycle(t *testing.T) {
	r := testRegistry()
	if r.TakeDirty() {
		t.Error("fresh registry is dirty")
	}
	a := r.Register(nil, uuid.New(), true, "a")
	addPane(r, a.ID)
	if !r.TakeDirty() {
		t.Error("mutation did not mark dirty")
	}
	if r.TakeDirty() {
		t.Error("TakeDirty did not clear the flag")
	}
}
