package ses

import (
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"github.com/hexe-sh/hexe/internal/wire"
)

// hex32 is a pane/session UUID in its canonical 32-lowercase-hex wire and
// state-file form (no hyphens).
type hex32 string

func toHex32(id uuid.UUID) hex32 {
	return hex32(hex.EncodeToString(id[:]))
}

func (h hex32) parse() (uuid.UUID, bool) {
	id, err := uuid.Parse(string(h))
	if err != nil {
		return uuid.UUID{}, false
	}
	return id, true
}

// persistedPane is the on-disk shape of one pane record.
type persistedPane struct {
	UUID      hex32  `json:"uuid"`
	PodPid    int    `json:"pod_pid"`
	ChildPid  int    `json:"child_pid"`
	Socket    string `json:"socket"`
	State     string `json:"state"`
	Name      string `json:"name,omitempty"`
	StickyPwd string `json:"sticky_pwd,omitempty"`
	StickyKey byte   `json:"sticky_key,omitempty"`
	SessionID hex32  `json:"session_id,omitempty"`
}

// persistedDetachedSession is the on-disk shape of a detached session.
type persistedDetachedSession struct {
	SessionID   hex32   `json:"session_id"`
	SessionName string  `json:"session_name"`
	DetachedAt  int64   `json:"detached_at"`
	MuxState    string  `json:"mux_state"`
	Panes       []hex32 `json:"panes"`
}

type persistedState struct {
	Panes            []persistedPane            `json:"panes"`
	DetachedSessions []persistedDetachedSession `json:"detached_sessions"`
}

// Save atomically serialises every pane that survives a restart
// (Detached, Sticky, Orphaned; Attached panes have no meaning without
// their MUX) plus all detached sessions, via write-tmp-then-rename.
func (r *Registry) Save(path string) error {
	r.mu.Lock()
	var st persistedState
	for _, p := range r.panes {
		if p.State == wire.PaneAttached {
			continue
		}
		pp := persistedPane{
			UUID: toHex32(p.UUID), PodPid: p.PodPid, ChildPid: p.ChildPid, Socket: p.Socket,
			State: p.State.String(), Name: p.Name, StickyPwd: p.StickyPwd,
			StickyKey: p.StickyKey,
		}
		if p.SessionID != (uuid.UUID{}) {
			pp.SessionID = toHex32(p.SessionID)
		}
		st.Panes = append(st.Panes, pp)
	}
	for _, ds := range r.detached {
		pds := persistedDetachedSession{
			SessionID: toHex32(ds.SessionID), SessionName: ds.SessionName, DetachedAt: ds.DetachedAt,
			MuxState: string(ds.LayoutJSON), Panes: make([]hex32, 0, len(ds.PaneUUIDs)),
		}
		for _, pid := range ds.PaneUUIDs {
			pds.Panes = append(pds.Panes, toHex32(pid))
		}
		st.DetachedSessions = append(st.DetachedSessions, pds)
	}
	r.mu.Unlock()

	// Sort for stable output: saving twice with no mutations must write
	// identical bytes.
	sort.Slice(st.Panes, func(i, j int) bool {
		return st.Panes[i].UUID < st.Panes[j].UUID
	})
	sort.Slice(st.DetachedSessions, func(i, j int) bool {
		return st.DetachedSessions[i].SessionID < st.DetachedSessions[j].SessionID
	})

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".ses_state-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

func parsePaneState(s string) (wire.PaneState, bool) {
	switch s {
	case "attached":
		return wire.PaneAttached, true
	case "detached":
		return wire.PaneDetached, true
	case "sticky":
		return wire.PaneSticky, true
	case "orphaned":
		return wire.PaneOrphaned, true
	}
	return 0, false
}

// Load tolerantly restores state from path: a missing file is not an
// error (fresh instance), and unparseable pane/session entries are
// skipped individually rather than failing the whole load.
func (r *Registry) Load(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	var st persistedState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil // tolerate a corrupt file; start empty rather than fail the daemon
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, pp := range st.Panes {
		id, ok := pp.UUID.parse()
		if !ok {
			continue
		}
		ps, ok := parsePaneState(pp.State)
		if !ok {
			continue
		}
		p := &Pane{
			UUID: id, PodPid: pp.PodPid, ChildPid: pp.ChildPid, Socket: pp.Socket,
			State: ps, Name: pp.Name, StickyPwd: pp.StickyPwd,
			StickyKey: pp.StickyKey, OrphanedAt: r.now().Unix(),
		}
		if sid, ok := pp.SessionID.parse(); ok {
			p.SessionID = sid
		}
		r.panes[id] = p
	}
	for _, ds := range st.DetachedSessions {
		sid, ok := ds.SessionID.parse()
		if !ok {
			continue
		}
		rec := &DetachedSession{
			SessionID: sid, SessionName: ds.SessionName, DetachedAt: ds.DetachedAt,
			LayoutJSON: []byte(ds.MuxState),
		}
		for _, ph := range ds.Panes {
			if pid, ok := ph.parse(); ok {
				rec.PaneUUIDs = append(rec.PaneUUIDs, pid)
			}
		}
		r.detached[sid] = rec
	}
	return nil
}
