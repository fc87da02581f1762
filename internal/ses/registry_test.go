package ses

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hexe-sh/hexe/internal/wire"
)

func testRegistry() *Registry {
	return NewRegistry(24 * time.Hour)
}

func addPane(r *Registry, clientID uint32) *Pane {
	p := &Pane{UUID: uuid.New()}
	r.CreatePane(clientID, p)
	return p
}

func TestCreatePaneAttaches(t *testing.T) {
	r := testRegistry()
	c := r.Register(nil, uuid.New(), true, "alpha")
	p := addPane(r, c.ID)

	got, ok := r.PaneInfo(p.UUID)
	if !ok {
		t.Fatal("pane not found after CreatePane")
	}
	if got.State != wire.PaneAttached {
		t.Errorf("state = %v, want attached", got.State)
	}
	if got.ClientID != c.ID {
		t.Errorf("clientID = %d, want %d", got.ClientID, c.ID)
	}
	cl, _ := r.ClientByID(c.ID)
	if len(cl.PaneUUIDs) != 1 || cl.PaneUUIDs[0] != p.UUID {
		t.Errorf("client pane list = %v", cl.PaneUUIDs)
	}
}

func TestRegisterAssignsNameWhenEmpty(t *testing.T) {
	r := testRegistry()
	c := r.Register(nil, uuid.New(), true, "")
	if c.Name == "" {
		t.Error("empty register name was not replaced")
	}
}

// TestOrphanTransitions covers the orphan_pane row of the state table: a
// pane with sticky fields becomes Sticky, one without becomes Orphaned,
// and both record orphaned_at.
func TestOrphanTransitions(t *testing.T) {
	r := testRegistry()
	c := r.Register(nil, uuid.New(), true, "a")

	plain := addPane(r, c.ID)
	sticky := addPane(r, c.ID)
	r.SetSticky(sticky.UUID, '1', "/tmp")

	if p, ok := r.OrphanPane(plain.UUID); !ok || p.State != wire.PaneOrphaned {
		t.Errorf("plain pane: ok=%v state=%v, want orphaned", ok, p.State)
	}
	if p, ok := r.OrphanPane(sticky.UUID); !ok || p.State != wire.PaneSticky {
		t.Errorf("sticky pane: ok=%v state=%v, want sticky", ok, p.State)
	}
	got, _ := r.PaneInfo(plain.UUID)
	if got.OrphanedAt == 0 {
		t.Error("orphaned_at not set")
	}
	if got.ClientID != 0 {
		t.Error("orphaned pane still claims a client")
	}
}

// TestAdoptTransitions checks which states adopt_pane accepts: Orphaned,
// Sticky, and Detached move to Attached; an Attached pane is rejected
// without mutating state.
func TestAdoptTransitions(t *testing.T) {
	r := testRegistry()
	a := r.Register(nil, uuid.New(), true, "a")
	b := r.Register(nil, uuid.New(), true, "b")

	orphaned := addPane(r, a.ID)
	r.OrphanPane(orphaned.UUID)
	if p, ok := r.AdoptPane(b.ID, orphaned.UUID); !ok || p.State != wire.PaneAttached || p.ClientID != b.ID {
		t.Errorf("adopt orphaned: ok=%v %+v", ok, p)
	}

	attached := addPane(r, a.ID)
	if _, ok := r.AdoptPane(b.ID, attached.UUID); ok {
		t.Error("adopting an attached pane must fail")
	}
	got, _ := r.PaneInfo(attached.UUID)
	if got.ClientID != a.ID || got.State != wire.PaneAttached {
		t.Errorf("rejected adopt mutated state: %+v", got)
	}

	if _, ok := r.AdoptPane(b.ID, uuid.New()); ok {
		t.Error("adopting an unknown uuid must fail")
	}
}

// TestStickyFindAdopt walks scenario: create a sticky pane, disconnect its
// client ungracefully with keepalive, find it by (pwd, key) and adopt it
// from a second client. The uuid survives and the pane ends Attached.
func TestStickyFindAdopt(t *testing.T) {
	r := testRegistry()
	a := r.Register(nil, uuid.New(), true, "a")
	p := addPane(r, a.ID)
	r.SetSticky(p.UUID, '1', "/tmp")

	r.RemoveClient(a.ID, nil)

	got, ok := r.FindSticky("/tmp", '1')
	if !ok {
		t.Fatal("find_sticky missed after keepalive disconnect")
	}
	if got.UUID != p.UUID {
		t.Fatalf("find_sticky returned %s, want %s", got.UUID, p.UUID)
	}
	// find_sticky must not auto-transition.
	if info, _ := r.PaneInfo(p.UUID); info.State == wire.PaneAttached {
		t.Error("find_sticky mutated state")
	}

	b := r.Register(nil, uuid.New(), true, "b")
	adopted, ok := r.AdoptPane(b.ID, p.UUID)
	if !ok || adopted.State != wire.PaneAttached {
		t.Fatalf("adopt after find_sticky: ok=%v %+v", ok, adopted)
	}
}

func TestFindStickyExactMatchOnly(t *testing.T) {
	r := testRegistry()
	a := r.Register(nil, uuid.New(), true, "a")
	p := addPane(r, a.ID)
	r.SetSticky(p.UUID, '1', "/tmp")
	r.OrphanPane(p.UUID)

	if _, ok := r.FindSticky("/tmp", '2'); ok {
		t.Error("matched wrong key")
	}
	if _, ok := r.FindSticky("/var", '1'); ok {
		t.Error("matched wrong pwd")
	}
}

// TestDetachReattachRoundTrip is the detach/reattach law: n panes plus a
// layout blob survive a detach and come back identical on reattach, with
// each pane Detached until adopted.
func TestDetachReattachRoundTrip(t *testing.T) {
	r := testRegistry()
	a := r.Register(nil, uuid.New(), true, "a")
	layout := []byte(`{"tabs":[1,2,3]}`)
	r.SyncState(a.ID, layout)

	var uuids []uuid.UUID
	for i := 0; i < 3; i++ {
		uuids = append(uuids, addPane(r, a.ID).UUID)
	}

	sessID := uuid.New()
	r.DetachSession(a.ID, sessID, "snap", layout)

	for _, id := range uuids {
		p, _ := r.PaneInfo(id)
		if p.State != wire.PaneDetached || p.SessionID != sessID {
			t.Errorf("pane %s after detach: %+v", id, p)
		}
	}
	if _, ok := r.ClientByID(a.ID); ok {
		t.Error("detached client still registered")
	}

	ds, ok := r.Reattach(wire.UUIDHex(sessID)[:8])
	if !ok {
		t.Fatal("reattach by prefix missed")
	}
	if string(ds.LayoutJSON) != string(layout) {
		t.Errorf("layout = %q, want %q", ds.LayoutJSON, layout)
	}
	if len(ds.PaneUUIDs) != 3 {
		t.Fatalf("reattach returned %d panes, want 3", len(ds.PaneUUIDs))
	}

	b := r.Register(nil, uuid.New(), true, "b")
	for _, id := range ds.PaneUUIDs {
		if _, ok := r.AdoptPane(b.ID, id); !ok {
			t.Errorf("adopting reattached pane %s failed", id)
		}
	}
	for _, id := range uuids {
		if p, _ := r.PaneInfo(id); p.State != wire.PaneAttached || p.ClientID != b.ID {
			t.Errorf("pane %s after adopt: %+v", id, p)
		}
	}
}

func TestReattachUnknownPrefix(t *testing.T) {
	r := testRegistry()
	if _, ok := r.Reattach("deadbeef"); ok {
		t.Error("reattach matched an empty registry")
	}
}

// TestRemoveClientKeepalive: an ungraceful disconnect with keepalive
// leaves a detached session holding every claimed pane.
func TestRemoveClientKeepalive(t *testing.T) {
	r := testRegistry()
	a := r.Register(nil, uuid.New(), true, "a")
	r.SyncState(a.ID, []byte(`{}`))
	p1 := addPane(r, a.ID)
	p2 := addPane(r, a.ID)

	killed := 0
	r.RemoveClient(a.ID, func(*Pane) { killed++ })
	if killed != 0 {
		t.Errorf("keepalive disconnect killed %d panes", killed)
	}

	sessions := r.ListSessions()
	if len(sessions) != 1 {
		t.Fatalf("detached sessions = %d, want 1", len(sessions))
	}
	if len(sessions[0].PaneUUIDs) != 2 {
		t.Errorf("session pane count = %d, want 2", len(sessions[0].PaneUUIDs))
	}
	for _, id := range []uuid.UUID{p1.UUID, p2.UUID} {
		if p, _ := r.PaneInfo(id); p.State != wire.PaneDetached {
			t.Errorf("pane %s state = %v, want detached", id, p.State)
		}
	}
}

func TestRemoveClientNoKeepaliveKills(t *testing.T) {
	r := testRegistry()
	a := r.Register(nil, uuid.New(), false, "a")
	p := addPane(r, a.ID)

	var killed []uuid.UUID
	r.RemoveClient(a.ID, func(p *Pane) { killed = append(killed, p.UUID) })
	if len(killed) != 1 || killed[0] != p.UUID {
		t.Errorf("killed = %v, want [%s]", killed, p.UUID)
	}
	if _, ok := r.PaneInfo(p.UUID); ok {
		t.Error("killed pane still in registry")
	}
	if len(r.ListSessions()) != 0 {
		t.Error("non-keepalive disconnect left a detached session")
	}
}

// TestGCTimeout verifies orphaned and sticky panes past the timeout are
// reaped while fresh ones survive.
func TestGCTimeout(t *testing.T) {
	r := testRegistry()
	a := r.Register(nil, uuid.New(), true, "a")

	old := addPane(r, a.ID)
	fresh := addPane(r, a.ID)
	r.OrphanPane(old.UUID)
	r.OrphanPane(fresh.UUID)

	// Backdate only the first pane past the 24h cutoff.
	r.mu.Lock()
	r.panes[old.UUID].OrphanedAt = time.Now().Add(-25 * time.Hour).Unix()
	r.mu.Unlock()

	var killed []uuid.UUID
	r.GC(func(p *Pane) { killed = append(killed, p.UUID) })
	if len(killed) != 1 || killed[0] != old.UUID {
		t.Errorf("killed = %v, want [%s]", killed, old.UUID)
	}
	if _, ok := r.PaneInfo(fresh.UUID); !ok {
		t.Error("fresh orphan was reaped")
	}
}

func TestGCReapsStaleDetachedSessions(t *testing.T) {
	r := testRegistry()
	a := r.Register(nil, uuid.New(), true, "a")
	p := addPane(r, a.ID)
	sessID := uuid.New()
	r.DetachSession(a.ID, sessID, "stale", nil)

	r.mu.Lock()
	r.detached[sessID].DetachedAt = time.Now().Add(-25 * time.Hour).Unix()
	r.mu.Unlock()

	var killed []uuid.UUID
	r.GC(func(p *Pane) { killed = append(killed, p.UUID) })
	if len(killed) != 1 || killed[0] != p.UUID {
		t.Errorf("killed = %v, want [%s]", killed, p.UUID)
	}
	if len(r.ListSessions()) != 0 {
		t.Error("stale detached session survived GC")
	}
}

func TestKillPaneRemovesAnyState(t *testing.T) {
	r := testRegistry()
	a := r.Register(nil, uuid.New(), true, "a")
	attached := addPane(r, a.ID)
	orphaned := addPane(r, a.ID)
	r.OrphanPane(orphaned.UUID)

	for _, id := range []uuid.UUID{attached.UUID, orphaned.UUID} {
		if _, ok := r.KillPane(id); !ok {
			t.Errorf("kill_pane(%s) missed", id)
		}
		if _, ok := r.PaneInfo(id); ok {
			t.Errorf("pane %s survived kill_pane", id)
		}
	}
	if _, ok := r.KillPane(uuid.New()); ok {
		t.Error("kill_pane on unknown uuid reported success")
	}
}

func TestUpdatePaneShellPartialFields(t *testing.T) {
	r := testRegistry()
	a := r.Register(nil, uuid.New(), true, "a")
	p := addPane(r, a.ID)

	r.UpdatePaneShell(wire.UpdatePaneShellMsg{
		Uuid: p.UUID, Cmd: "make", Cwd: "/src", Jobs: 2,
		HasStatus: true, Status: 1, HasDuration: true, DurationMs: 250,
	})
	// A start-of-command event carries no status/duration; the previous
	// values must stick.
	r.UpdatePaneShell(wire.UpdatePaneShellMsg{Uuid: p.UUID, Cmd: "ls", Cwd: "/src"})

	got, _ := r.PaneInfo(p.UUID)
	if got.LastCmd != "ls" || got.LastStatus != 1 || got.LastDurationMs != 250 {
		t.Errorf("shell fields = cmd=%q status=%d dur=%d", got.LastCmd, got.LastStatus, got.LastDurationMs)
	}
}
