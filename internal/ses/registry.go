// Package ses implements the SES registry daemon: the authoritative
// pane/client/session state machine, its persistence, and the
// control-channel operations that mutate it.
package ses

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hexe-sh/hexe/internal/wire"
)

// Pane is SES's in-memory record of one pane, plus the aux fields MUX
// and POD sync in.
type Pane struct {
	UUID     uuid.UUID
	PodPid   int
	ChildPid int
	Socket   string
	State    wire.PaneState

	ClientID  uint32 // owning client, 0 if none
	SessionID uuid.UUID

	StickyKey byte // 0 means "not set"
	StickyPwd string

	Name        string
	Type        wire.PaneType
	IsFocused   bool
	CreatedFrom uuid.UUID
	FocusedFrom uuid.UUID
	Cwd         string
	FgName      string
	FgPid       uint32

	LastCmd        string
	LastStatus     int32
	LastDurationMs int64
	Jobs           uint32

	CreatedAt  int64
	OrphanedAt int64
}

// Client is one connected MUX session bound by register().
type Client struct {
	ID         uint32
	SessionID  uuid.UUID
	Keepalive  bool
	Name       string
	LayoutJSON []byte
	Conn       *wire.Conn
	PaneUUIDs  []uuid.UUID
}

// DetachedSession is a snapshot left behind when a client detaches.
type DetachedSession struct {
	SessionID   uuid.UUID
	SessionName string
	DetachedAt  int64
	LayoutJSON  []byte
	PaneUUIDs   []uuid.UUID
}

// Registry is the authoritative, mutex-protected state machine.
type Registry struct {
	mu sync.Mutex

	panes        map[uuid.UUID]*Pane
	clients      map[uint32]*Client
	detached     map[uuid.UUID]*DetachedSession
	nextClientID uint32

	dirty bool

	orphanTimeout time.Duration
	now           func() time.Time
}

// NewRegistry creates an empty registry with the given orphan/sticky/
// detached-session GC timeout (24h by default at the daemon level).
func NewRegistry(orphanTimeout time.Duration) *Registry {
	return &Registry{
		panes: make(map[uuid.UUID]*Pane), clients: make(map[uint32]*Client),
		detached: make(map[uuid.UUID]*DetachedSession), nextClientID: 1,
		orphanTimeout: orphanTimeout, now: time.Now,
	}
}

func (r *Registry) markDirty() { r.dirty = true }

// TakeDirty reports and clears the dirty flag; used by the 1s persist timer.
func (r *Registry) TakeDirty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.dirty
	r.dirty = false
	return d
}

// Register binds a new client. If name is empty a random name is chosen.
func (r *Registry) Register(conn *wire.Conn, sessionID uuid.UUID, keepalive bool, name string) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	if name == "" {
		name = randomPokemonName()
	}
	c := &Client{ID: r.nextClientID, SessionID: sessionID, Keepalive: keepalive, Name: name, Conn: conn}
	r.nextClientID++
	r.clients[c.ID] = c
	return c
}

// SyncState stores the client's latest MUX layout blob.
func (r *Registry) SyncState(clientID uint32, layoutJSON []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[clientID]; ok {
		c.LayoutJSON = layoutJSON
	}
}

// CreatePane registers a newly-spawned pane as Attached to clientID.
func (r *Registry) CreatePane(clientID uint32, p *Pane) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.State = wire.PaneAttached
	p.ClientID = clientID
	p.CreatedAt = r.now().Unix()
	r.panes[p.UUID] = p
	if c, ok := r.clients[clientID]; ok {
		c.PaneUUIDs = append(c.PaneUUIDs, p.UUID)
	}
	r.markDirty()
}

// FindSticky matches a pane on exact pwd+key. Sticky panes match, and so
// do Detached panes carrying sticky fields (a sticky pane whose client
// dropped ungracefully lands in Detached without losing its key). It does
// not mutate state; callers follow up with AdoptPane.
func (r *Registry) FindSticky(pwd string, key byte) (*Pane, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.panes {
		if p.State != wire.PaneSticky && p.State != wire.PaneDetached {
			continue
		}
		if p.StickyKey == key && p.StickyPwd == pwd {
			return p, true
		}
	}
	return nil, false
}

// AdoptPane moves an Orphaned/Sticky/Detached pane to Attached under clientID.
func (r *Registry) AdoptPane(clientID uint32, id uuid.UUID) (*Pane, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.panes[id]
	if !ok {
		return nil, false
	}
	switch p.State {
	case wire.PaneOrphaned, wire.PaneSticky, wire.PaneDetached:
	default:
		return nil, false
	}
	p.State = wire.PaneAttached
	p.ClientID = clientID
	p.OrphanedAt = 0
	if c, ok := r.clients[clientID]; ok {
		c.PaneUUIDs = append(c.PaneUUIDs, id)
	}
	r.markDirty()
	return p, true
}

// OrphanPane detaches a pane from its client, transitioning to Sticky if
// sticky fields are set, else Orphaned.
func (r *Registry) OrphanPane(id uuid.UUID) (*Pane, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.panes[id]
	if !ok {
		return nil, false
	}
	r.removeFromClientLocked(p.ClientID, id)
	p.ClientID = 0
	if p.StickyKey != 0 && p.StickyPwd != "" {
		p.State = wire.PaneSticky
	} else {
		p.State = wire.PaneOrphaned
	}
	p.OrphanedAt = r.now().Unix()
	r.markDirty()
	return p, true
}

// KillPane removes a pane's record. The caller is responsible for
// signalling the owning POD process; the registry only drops bookkeeping.
func (r *Registry) KillPane(id uuid.UUID) (*Pane, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.panes[id]
	if ok {
		r.removeFromClientLocked(p.ClientID, id)
		delete(r.panes, id)
		r.markDirty()
	}
	return p, ok
}

// removeFromClientLocked drops a pane uuid from its owning client's claim
// list, so disconnect/detach snapshots never reference panes the client no
// longer holds.
func (r *Registry) removeFromClientLocked(clientID uint32, id uuid.UUID) {
	c, ok := r.clients[clientID]
	if !ok {
		return
	}
	for i, pid := range c.PaneUUIDs {
		if pid == id {
			c.PaneUUIDs = append(c.PaneUUIDs[:i], c.PaneUUIDs[i+1:]...)
			return
		}
	}
}

// SetSticky marks a pane's sticky key+pwd.
func (r *Registry) SetSticky(id uuid.UUID, key byte, pwd string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.panes[id]
	if !ok {
		return false
	}
	p.StickyKey = key
	p.StickyPwd = pwd
	r.markDirty()
	return true
}

// UpdatePaneAux applies MUX- or POD-synced auxiliary fields.
func (r *Registry) UpdatePaneAux(m wire.UpdatePaneAuxMsg) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.panes[m.Uuid]
	if !ok {
		return false
	}
	p.Name = m.Name
	p.Type = m.Type
	p.IsFocused = m.IsFocused
	p.CreatedFrom = m.CreatedFrom
	p.FocusedFrom = m.FocusedFrom
	if m.Cwd != "" {
		p.Cwd = m.Cwd
	}
	if m.FgName != "" {
		p.FgName = m.FgName
		p.FgPid = m.FgPid
	}
	r.markDirty()
	return true
}

// UpdatePaneShell applies shell-integration fields.
func (r *Registry) UpdatePaneShell(m wire.UpdatePaneShellMsg) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.panes[m.Uuid]
	if !ok {
		return false
	}
	p.LastCmd = m.Cmd
	p.Cwd = m.Cwd
	p.Jobs = m.Jobs
	if m.HasStatus {
		p.LastStatus = m.Status
	}
	if m.HasDuration {
		p.LastDurationMs = m.DurationMs
	}
	r.markDirty()
	return true
}

// GetPaneCwd returns a pane's last-known cwd.
func (r *Registry) GetPaneCwd(id uuid.UUID) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.panes[id]
	if !ok {
		return "", false
	}
	return p.Cwd, true
}

// PaneInfo returns a copy of the full pane record.
func (r *Registry) PaneInfo(id uuid.UUID) (Pane, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.panes[id]
	if !ok {
		return Pane{}, false
	}
	return *p, true
}

// DetachSession moves a client's panes to Detached under sessionID,
// storing the client's final layout snapshot.
func (r *Registry) DetachSession(clientID uint32, sessionID uuid.UUID, sessionName string, layoutJSON []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[clientID]
	if !ok {
		return
	}
	ds := &DetachedSession{
		SessionID: sessionID, SessionName: sessionName, DetachedAt: r.now().Unix(),
		LayoutJSON: layoutJSON, PaneUUIDs: append([]uuid.UUID(nil), c.PaneUUIDs...),
	}
	for _, pid := range c.PaneUUIDs {
		if p, ok := r.panes[pid]; ok {
			p.State = wire.PaneDetached
			p.SessionID = sessionID
			p.ClientID = 0
		}
	}
	r.detached[sessionID] = ds
	delete(r.clients, clientID)
	r.markDirty()
}

// Reattach finds a detached session by UUID prefix match.
func (r *Registry) Reattach(prefix string) (*DetachedSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, ds := range r.detached {
		if matchesPrefix(wire.UUIDHex(id), prefix) {
			return ds, true
		}
	}
	return nil, false
}

func matchesPrefix(full, prefix string) bool {
	if len(prefix) > len(full) {
		return false
	}
	return full[:len(prefix)] == prefix
}

// ListSessions enumerates all detached sessions.
func (r *Registry) ListSessions() []DetachedSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]DetachedSession, 0, len(r.detached))
	for _, ds := range r.detached {
		out = append(out, *ds)
	}
	return out
}

// ListOrphaned enumerates all Orphaned panes.
func (r *Registry) ListOrphaned() []Pane {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Pane
	for _, p := range r.panes {
		if p.State == wire.PaneOrphaned {
			out = append(out, *p)
		}
	}
	return out
}

// ListSticky enumerates all Sticky panes.
func (r *Registry) ListSticky() []Pane {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Pane
	for _, p := range r.panes {
		if p.State == wire.PaneSticky {
			out = append(out, *p)
		}
	}
	return out
}

// Clients returns a snapshot of all connected clients.
func (r *Registry) Clients() []Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, *c)
	}
	return out
}

// PaneOwner returns the Conn of the client currently attached to a pane,
// used to route send_keys/notify/popups to the right MUX.
func (r *Registry) PaneOwner(id uuid.UUID) (*wire.Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.panes[id]
	if !ok || p.ClientID == 0 {
		return nil, false
	}
	c, ok := r.clients[p.ClientID]
	if !ok {
		return nil, false
	}
	return c.Conn, true
}

// ClientByID looks up a client by its registry-assigned id.
func (r *Registry) ClientByID(id uint32) (*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	return c, ok
}

// AllAttached enumerates every currently-Attached pane, used for
// broadcast send_keys.
func (r *Registry) AllAttached() []Pane {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Pane
	for _, p := range r.panes {
		if p.State == wire.PaneAttached {
			out = append(out, *p)
		}
	}
	return out
}

// ClientBySessionID looks up a client's Conn directly (e.g. session_id ==
// client session match for notify routing).
func (r *Registry) ClientBySessionID(sessionID uuid.UUID) (*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.clients {
		if c.SessionID == sessionID {
			return c, true
		}
	}
	return nil, false
}

// RemoveClient drops a client's bookkeeping: with keepalive its panes
// become a detached session, without it they are killed. killFn is
// invoked for panes that must be killed.
func (r *Registry) RemoveClient(clientID uint32, killFn func(*Pane)) {
	r.mu.Lock()
	c, ok := r.clients[clientID]
	if !ok {
		r.mu.Unlock()
		return
	}
	keepalive := c.Keepalive
	paneUUIDs := append([]uuid.UUID(nil), c.PaneUUIDs...)
	delete(r.clients, clientID)
	var toKill []*Pane
	if keepalive {
		sessionID := uuid.New()
		ds := &DetachedSession{SessionID: sessionID, SessionName: c.Name, DetachedAt: r.now().Unix(),
			LayoutJSON: c.LayoutJSON, PaneUUIDs: paneUUIDs}
		for _, pid := range paneUUIDs {
			if p, ok := r.panes[pid]; ok {
				p.State = wire.PaneDetached
				p.SessionID = sessionID
				p.ClientID = 0
			}
		}
		r.detached[sessionID] = ds
	} else {
		for _, pid := range paneUUIDs {
			if p, ok := r.panes[pid]; ok {
				toKill = append(toKill, p)
				delete(r.panes, pid)
			}
		}
	}
	r.markDirty()
	r.mu.Unlock()

	if killFn != nil {
		for _, p := range toKill {
			killFn(p)
		}
	}
}

// GC sweeps Orphaned/Sticky panes and Detached sessions past
// orphanTimeout, killing their POD processes via killFn.
func (r *Registry) GC(killFn func(*Pane)) {
	r.mu.Lock()
	cutoff := r.now().Add(-r.orphanTimeout).Unix()
	var toKill []*Pane
	for id, p := range r.panes {
		switch p.State {
		case wire.PaneOrphaned, wire.PaneSticky:
			if p.OrphanedAt != 0 && p.OrphanedAt < cutoff {
				toKill = append(toKill, p)
				delete(r.panes, id)
			}
		}
	}
	for sessID, ds := range r.detached {
		if ds.DetachedAt < cutoff {
			for _, pid := range ds.PaneUUIDs {
				if p, ok := r.panes[pid]; ok {
					toKill = append(toKill, p)
					delete(r.panes, pid)
				}
			}
			delete(r.detached, sessID)
		}
	}
	if len(toKill) > 0 {
		r.markDirty()
	}
	r.mu.Unlock()

	if killFn != nil {
		for _, p := range toKill {
			killFn(p)
		}
	}
}
