package wire

import "github.com/google/uuid"

// MsgType is the closed enum tag for every control message; decoding is
// a single switch, not an interface hierarchy.
type MsgType uint16

const (
	_ MsgType = iota

	MsgRegister
	MsgRegistered

	MsgSyncState
	MsgOk

	MsgCreatePane
	MsgPaneCreated

	MsgFindSticky
	MsgPaneFound
	MsgPaneNotFound

	MsgAdoptPane
	MsgOrphanPane
	MsgKillPane
	MsgSetSticky

	MsgUpdatePaneAux
	MsgUpdatePaneShell

	MsgGetPaneCwd
	MsgPaneCwd

	MsgPaneInfoReq
	MsgPaneInfo

	MsgDetachSession
	MsgReattach
	MsgSessionReattached

	MsgListSessions
	MsgSessionsList

	MsgListOrphaned
	MsgOrphanedPanes

	MsgStatus
	MsgStatusTree

	MsgBroadcastNotify
	MsgTargetedNotify
	MsgNotFound

	MsgSendKeys

	MsgPopConfirm
	MsgPopChoose
	MsgPopResponse

	MsgFocusMove
	MsgExitIntent

	MsgFloatRequest
	MsgFloatCreated
	MsgFloatResult

	// Asynchronous server -> MUX events (no matching request on this conn).
	MsgPaneExited
	MsgShellEvent
	MsgNotifyEvent
	MsgPopupRequest
	MsgFocusMoveEvent
	MsgExitIntentEvent

	MsgError
)

// PaneState is a pane's lifecycle state as SES tracks it.
type PaneState uint8

const (
	PaneAttached PaneState = iota
	PaneDetached
	PaneSticky
	PaneOrphaned
)

func (s PaneState) String() string {
	switch s {
	case PaneAttached:
		return "attached"
	case PaneDetached:
		return "detached"
	case PaneSticky:
		return "sticky"
	case PaneOrphaned:
		return "orphaned"
	default:
		return "unknown"
	}
}

// PaneType mirrors the MUX-synced Split/Float discriminator.
type PaneType uint8

const (
	PaneSplit PaneType = iota
	PaneFloat
)

// ---------------------------------------------------------------------
// register / registered
// ---------------------------------------------------------------------

type RegisterMsg struct {
	SessionID uuid.UUID
	Keepalive bool
	Name      string
}

func (m RegisterMsg) Encode() []byte {
	w := NewWriter()
	w.PutUUID(m.SessionID)
	w.PutBool(m.Keepalive)
	w.PutString(m.Name)
	return w.Bytes()
}

func DecodeRegisterMsg(b []byte) (RegisterMsg, error) {
	r := NewReader(b)
	var m RegisterMsg
	var err error
	if m.SessionID, err = r.GetUUID(); err != nil {
		return m, err
	}
	if m.Keepalive, err = r.GetBool(); err != nil {
		return m, err
	}
	if m.Name, err = r.GetString(); err != nil {
		return m, err
	}
	return m, nil
}

type RegisteredMsg struct {
	ClientID  uint32
	SessionID uuid.UUID
	Name      string
}

func (m RegisteredMsg) Encode() []byte {
	w := NewWriter()
	w.PutU32(m.ClientID)
	w.PutUUID(m.SessionID)
	w.PutString(m.Name)
	return w.Bytes()
}

func DecodeRegisteredMsg(b []byte) (RegisteredMsg, error) {
	r := NewReader(b)
	var m RegisteredMsg
	var err error
	if m.ClientID, err = r.GetU32(); err != nil {
		return m, err
	}
	if m.SessionID, err = r.GetUUID(); err != nil {
		return m, err
	}
	if m.Name, err = r.GetString(); err != nil {
		return m, err
	}
	return m, nil
}

// ---------------------------------------------------------------------
// sync_state / ok / error / not_found
// ---------------------------------------------------------------------

type SyncStateMsg struct {
	LayoutJSON []byte
}

func (m SyncStateMsg) Encode() []byte {
	w := NewWriter()
	w.PutBytes(m.LayoutJSON)
	return w.Bytes()
}

func DecodeSyncStateMsg(b []byte) (SyncStateMsg, error) {
	r := NewReader(b)
	layout, err := r.GetBytes()
	return SyncStateMsg{LayoutJSON: layout}, err
}

type ErrorMsg struct {
	Message string
}

func (m ErrorMsg) Encode() []byte {
	w := NewWriter()
	w.PutString(m.Message)
	return w.Bytes()
}

func DecodeErrorMsg(b []byte) (ErrorMsg, error) {
	r := NewReader(b)
	s, err := r.GetString()
	return ErrorMsg{Message: s}, err
}

// ---------------------------------------------------------------------
// create_pane / pane_created
// ---------------------------------------------------------------------

type CreatePaneMsg struct {
	Shell      string
	Cwd        string
	StickyKey  byte // 0 means none
	StickyCwd  string
	Isolated   bool
	Env        []string
}

func (m CreatePaneMsg) Encode() []byte {
	w := NewWriter()
	w.PutString(m.Shell)
	w.PutString(m.Cwd)
	w.PutU8(m.StickyKey)
	w.PutString(m.StickyCwd)
	w.PutBool(m.Isolated)
	w.PutStrings(m.Env)
	return w.Bytes()
}

func DecodeCreatePaneMsg(b []byte) (CreatePaneMsg, error) {
	r := NewReader(b)
	var m CreatePaneMsg
	var err error
	if m.Shell, err = r.GetString(); err != nil {
		return m, err
	}
	if m.Cwd, err = r.GetString(); err != nil {
		return m, err
	}
	if m.StickyKey, err = r.GetU8(); err != nil {
		return m, err
	}
	if m.StickyCwd, err = r.GetString(); err != nil {
		return m, err
	}
	if m.Isolated, err = r.GetBool(); err != nil {
		return m, err
	}
	if m.Env, err = r.GetStrings(); err != nil {
		return m, err
	}
	return m, nil
}

type PaneCreatedMsg struct {
	Uuid       uuid.UUID
	Pid        uint32
	ChildPid   uint32
	SocketPath string
}

func (m PaneCreatedMsg) Encode() []byte {
	w := NewWriter()
	w.PutUUID(m.Uuid)
	w.PutU32(m.Pid)
	w.PutU32(m.ChildPid)
	w.PutString(m.SocketPath)
	return w.Bytes()
}

func DecodePaneCreatedMsg(b []byte) (PaneCreatedMsg, error) {
	r := NewReader(b)
	var m PaneCreatedMsg
	var err error
	if m.Uuid, err = r.GetUUID(); err != nil {
		return m, err
	}
	if m.Pid, err = r.GetU32(); err != nil {
		return m, err
	}
	if m.ChildPid, err = r.GetU32(); err != nil {
		return m, err
	}
	if m.SocketPath, err = r.GetString(); err != nil {
		return m, err
	}
	return m, nil
}

// ---------------------------------------------------------------------
// find_sticky / adopt_pane / orphan_pane / kill_pane / set_sticky
// ---------------------------------------------------------------------

type FindStickyMsg struct {
	Pwd string
	Key byte
}

func (m FindStickyMsg) Encode() []byte {
	w := NewWriter()
	w.PutString(m.Pwd)
	w.PutU8(m.Key)
	return w.Bytes()
}

func DecodeFindStickyMsg(b []byte) (FindStickyMsg, error) {
	r := NewReader(b)
	var m FindStickyMsg
	var err error
	if m.Pwd, err = r.GetString(); err != nil {
		return m, err
	}
	if m.Key, err = r.GetU8(); err != nil {
		return m, err
	}
	return m, nil
}

type UuidMsg struct {
	Uuid uuid.UUID
}

func (m UuidMsg) Encode() []byte {
	w := NewWriter()
	w.PutUUID(m.Uuid)
	return w.Bytes()
}

func DecodeUuidMsg(b []byte) (UuidMsg, error) {
	r := NewReader(b)
	id, err := r.GetUUID()
	return UuidMsg{Uuid: id}, err
}

type SetStickyMsg struct {
	Uuid uuid.UUID
	Key  byte
	Pwd  string
}

func (m SetStickyMsg) Encode() []byte {
	w := NewWriter()
	w.PutUUID(m.Uuid)
	w.PutU8(m.Key)
	w.PutString(m.Pwd)
	return w.Bytes()
}

func DecodeSetStickyMsg(b []byte) (SetStickyMsg, error) {
	r := NewReader(b)
	var m SetStickyMsg
	var err error
	if m.Uuid, err = r.GetUUID(); err != nil {
		return m, err
	}
	if m.Key, err = r.GetU8(); err != nil {
		return m, err
	}
	if m.Pwd, err = r.GetString(); err != nil {
		return m, err
	}
	return m, nil
}

// ---------------------------------------------------------------------
// update_pane_aux / update_pane_shell
// ---------------------------------------------------------------------

// UpdatePaneAuxMsg carries the auxiliary fields MUX (Name/Type/IsFocused/
// CreatedFrom/FocusedFrom) and POD (Cwd/FgName/FgPid, pushed from the
// foreground-detection loop) each sync to SES outside the request/
// response operations — both sides reuse the one message shape rather
// than each needing a bespoke one.
type UpdatePaneAuxMsg struct {
	Uuid        uuid.UUID
	Name        string
	Type        PaneType
	IsFocused   bool
	CreatedFrom uuid.UUID
	FocusedFrom uuid.UUID
	Cwd         string
	FgName      string
	FgPid       uint32
}

func (m UpdatePaneAuxMsg) Encode() []byte {
	w := NewWriter()
	w.PutUUID(m.Uuid)
	w.PutString(m.Name)
	w.PutU8(uint8(m.Type))
	w.PutBool(m.IsFocused)
	w.PutUUID(m.CreatedFrom)
	w.PutUUID(m.FocusedFrom)
	w.PutString(m.Cwd)
	w.PutString(m.FgName)
	w.PutU32(m.FgPid)
	return w.Bytes()
}

func DecodeUpdatePaneAuxMsg(b []byte) (UpdatePaneAuxMsg, error) {
	r := NewReader(b)
	var m UpdatePaneAuxMsg
	var err error
	if m.Uuid, err = r.GetUUID(); err != nil {
		return m, err
	}
	if m.Name, err = r.GetString(); err != nil {
		return m, err
	}
	var t uint8
	if t, err = r.GetU8(); err != nil {
		return m, err
	}
	m.Type = PaneType(t)
	if m.IsFocused, err = r.GetBool(); err != nil {
		return m, err
	}
	if m.CreatedFrom, err = r.GetUUID(); err != nil {
		return m, err
	}
	if m.FocusedFrom, err = r.GetUUID(); err != nil {
		return m, err
	}
	if m.Cwd, err = r.GetString(); err != nil {
		return m, err
	}
	if m.FgName, err = r.GetString(); err != nil {
		return m, err
	}
	if m.FgPid, err = r.GetU32(); err != nil {
		return m, err
	}
	return m, nil
}

type UpdatePaneShellMsg struct {
	Uuid       uuid.UUID
	HasStatus  bool
	Status     int32
	HasDuration bool
	DurationMs int64
	Jobs       uint32
	Cmd        string
	Cwd        string
}

func (m UpdatePaneShellMsg) Encode() []byte {
	w := NewWriter()
	w.PutUUID(m.Uuid)
	w.PutBool(m.HasStatus)
	w.PutU32(uint32(m.Status))
	w.PutBool(m.HasDuration)
	w.PutI64(m.DurationMs)
	w.PutU32(m.Jobs)
	w.PutString(m.Cmd)
	w.PutString(m.Cwd)
	return w.Bytes()
}

func DecodeUpdatePaneShellMsg(b []byte) (UpdatePaneShellMsg, error) {
	r := NewReader(b)
	var m UpdatePaneShellMsg
	var err error
	if m.Uuid, err = r.GetUUID(); err != nil {
		return m, err
	}
	if m.HasStatus, err = r.GetBool(); err != nil {
		return m, err
	}
	var status uint32
	if status, err = r.GetU32(); err != nil {
		return m, err
	}
	m.Status = int32(status)
	if m.HasDuration, err = r.GetBool(); err != nil {
		return m, err
	}
	if m.DurationMs, err = r.GetI64(); err != nil {
		return m, err
	}
	if m.Jobs, err = r.GetU32(); err != nil {
		return m, err
	}
	if m.Cmd, err = r.GetString(); err != nil {
		return m, err
	}
	if m.Cwd, err = r.GetString(); err != nil {
		return m, err
	}
	return m, nil
}

// ---------------------------------------------------------------------
// get_pane_cwd / pane_cwd
// ---------------------------------------------------------------------

type PaneCwdMsg struct {
	Cwd string
}

func (m PaneCwdMsg) Encode() []byte {
	w := NewWriter()
	w.PutString(m.Cwd)
	return w.Bytes()
}

func DecodePaneCwdMsg(b []byte) (PaneCwdMsg, error) {
	r := NewReader(b)
	s, err := r.GetString()
	return PaneCwdMsg{Cwd: s}, err
}

// ---------------------------------------------------------------------
// pane_info (rich snapshot shared by pane_created/pane_found callers that
// want the full record, and by the dedicated pane_info operation)
// ---------------------------------------------------------------------

type PaneInfoMsg struct {
	Uuid        uuid.UUID
	PodPid      uint32
	ChildPid    uint32
	SocketPath  string
	State       PaneState
	Name        string
	Type        PaneType
	IsFocused   bool
	CreatedFrom uuid.UUID
	FocusedFrom uuid.UUID
	Cwd         string
	FgName      string
	FgPid       uint32
	CursorX     uint16
	CursorY     uint16
	CursorStyle uint8
	CursorVisible bool
	AltScreen   bool
	LastCmd     string
	LastStatus  int32
	LastDurationMs int64
	Jobs        uint32
	CreatedAt   int64
	OrphanedAt  int64
}

func (m PaneInfoMsg) Encode() []byte {
	w := NewWriter()
	w.PutUUID(m.Uuid)
	w.PutU32(m.PodPid)
	w.PutU32(m.ChildPid)
	w.PutString(m.SocketPath)
	w.PutU8(uint8(m.State))
	w.PutString(m.Name)
	w.PutU8(uint8(m.Type))
	w.PutBool(m.IsFocused)
	w.PutUUID(m.CreatedFrom)
	w.PutUUID(m.FocusedFrom)
	w.PutString(m.Cwd)
	w.PutString(m.FgName)
	w.PutU32(m.FgPid)
	w.PutU16(m.CursorX)
	w.PutU16(m.CursorY)
	w.PutU8(m.CursorStyle)
	w.PutBool(m.CursorVisible)
	w.PutBool(m.AltScreen)
	w.PutString(m.LastCmd)
	w.PutU32(uint32(m.LastStatus))
	w.PutI64(m.LastDurationMs)
	w.PutU32(m.Jobs)
	w.PutI64(m.CreatedAt)
	w.PutI64(m.OrphanedAt)
	return w.Bytes()
}

func DecodePaneInfoMsg(b []byte) (PaneInfoMsg, error) {
	r := NewReader(b)
	var m PaneInfoMsg
	var err error
	if m.Uuid, err = r.GetUUID(); err != nil {
		return m, err
	}
	if m.PodPid, err = r.GetU32(); err != nil {
		return m, err
	}
	if m.ChildPid, err = r.GetU32(); err != nil {
		return m, err
	}
	if m.SocketPath, err = r.GetString(); err != nil {
		return m, err
	}
	var state uint8
	if state, err = r.GetU8(); err != nil {
		return m, err
	}
	m.State = PaneState(state)
	if m.Name, err = r.GetString(); err != nil {
		return m, err
	}
	var typ uint8
	if typ, err = r.GetU8(); err != nil {
		return m, err
	}
	m.Type = PaneType(typ)
	if m.IsFocused, err = r.GetBool(); err != nil {
		return m, err
	}
	if m.CreatedFrom, err = r.GetUUID(); err != nil {
		return m, err
	}
	if m.FocusedFrom, err = r.GetUUID(); err != nil {
		return m, err
	}
	if m.Cwd, err = r.GetString(); err != nil {
		return m, err
	}
	if m.FgName, err = r.GetString(); err != nil {
		return m, err
	}
	if m.FgPid, err = r.GetU32(); err != nil {
		return m, err
	}
	if m.CursorX, err = r.GetU16(); err != nil {
		return m, err
	}
	if m.CursorY, err = r.GetU16(); err != nil {
		return m, err
	}
	if m.CursorStyle, err = r.GetU8(); err != nil {
		return m, err
	}
	if m.CursorVisible, err = r.GetBool(); err != nil {
		return m, err
	}
	if m.AltScreen, err = r.GetBool(); err != nil {
		return m, err
	}
	if m.LastCmd, err = r.GetString(); err != nil {
		return m, err
	}
	var status uint32
	if status, err = r.GetU32(); err != nil {
		return m, err
	}
	m.LastStatus = int32(status)
	if m.LastDurationMs, err = r.GetI64(); err != nil {
		return m, err
	}
	if m.Jobs, err = r.GetU32(); err != nil {
		return m, err
	}
	if m.CreatedAt, err = r.GetI64(); err != nil {
		return m, err
	}
	if m.OrphanedAt, err = r.GetI64(); err != nil {
		return m, err
	}
	return m, nil
}

// ---------------------------------------------------------------------
// detach_session / reattach / session_reattached
// ---------------------------------------------------------------------

type DetachSessionMsg struct {
	SessionID   uuid.UUID
	SessionName string
	LayoutJSON  []byte
}

func (m DetachSessionMsg) Encode() []byte {
	w := NewWriter()
	w.PutUUID(m.SessionID)
	w.PutString(m.SessionName)
	w.PutBytes(m.LayoutJSON)
	return w.Bytes()
}

func DecodeDetachSessionMsg(b []byte) (DetachSessionMsg, error) {
	r := NewReader(b)
	var m DetachSessionMsg
	var err error
	if m.SessionID, err = r.GetUUID(); err != nil {
		return m, err
	}
	if m.SessionName, err = r.GetString(); err != nil {
		return m, err
	}
	if m.LayoutJSON, err = r.GetBytes(); err != nil {
		return m, err
	}
	return m, nil
}

type ReattachMsg struct {
	SessionIDPrefix string
}

func (m ReattachMsg) Encode() []byte {
	w := NewWriter()
	w.PutString(m.SessionIDPrefix)
	return w.Bytes()
}

func DecodeReattachMsg(b []byte) (ReattachMsg, error) {
	r := NewReader(b)
	s, err := r.GetString()
	return ReattachMsg{SessionIDPrefix: s}, err
}

type SessionReattachedMsg struct {
	LayoutJSON []byte
	PaneUuids  []uuid.UUID
}

func (m SessionReattachedMsg) Encode() []byte {
	w := NewWriter()
	w.PutBytes(m.LayoutJSON)
	w.PutU16(uint16(len(m.PaneUuids)))
	for _, id := range m.PaneUuids {
		w.PutUUID(id)
	}
	return w.Bytes()
}

func DecodeSessionReattachedMsg(b []byte) (SessionReattachedMsg, error) {
	r := NewReader(b)
	var m SessionReattachedMsg
	var err error
	if m.LayoutJSON, err = r.GetBytes(); err != nil {
		return m, err
	}
	n, err := r.GetU16()
	if err != nil {
		return m, err
	}
	m.PaneUuids = make([]uuid.UUID, 0, n)
	for i := 0; i < int(n); i++ {
		id, err := r.GetUUID()
		if err != nil {
			return m, err
		}
		m.PaneUuids = append(m.PaneUuids, id)
	}
	return m, nil
}

// ---------------------------------------------------------------------
// list_sessions / sessions_list
// ---------------------------------------------------------------------

type SessionSummary struct {
	SessionID   uuid.UUID
	SessionName string
	PaneCount   uint32
}

type SessionsListMsg struct {
	Sessions []SessionSummary
}

func (m SessionsListMsg) Encode() []byte {
	w := NewWriter()
	w.PutU16(uint16(len(m.Sessions)))
	for _, s := range m.Sessions {
		w.PutUUID(s.SessionID)
		w.PutString(s.SessionName)
		w.PutU32(s.PaneCount)
	}
	return w.Bytes()
}

func DecodeSessionsListMsg(b []byte) (SessionsListMsg, error) {
	r := NewReader(b)
	n, err := r.GetU16()
	if err != nil {
		return SessionsListMsg{}, err
	}
	out := make([]SessionSummary, 0, n)
	for i := 0; i < int(n); i++ {
		var s SessionSummary
		if s.SessionID, err = r.GetUUID(); err != nil {
			return SessionsListMsg{}, err
		}
		if s.SessionName, err = r.GetString(); err != nil {
			return SessionsListMsg{}, err
		}
		if s.PaneCount, err = r.GetU32(); err != nil {
			return SessionsListMsg{}, err
		}
		out = append(out, s)
	}
	return SessionsListMsg{Sessions: out}, nil
}

// ---------------------------------------------------------------------
// list_orphaned / orphaned_panes
// ---------------------------------------------------------------------

type OrphanedPanesMsg struct {
	Panes []PaneInfoMsg
}

func (m OrphanedPanesMsg) Encode() []byte {
	w := NewWriter()
	w.PutU16(uint16(len(m.Panes)))
	for _, p := range m.Panes {
		enc := p.Encode()
		w.PutBytes(enc)
	}
	return w.Bytes()
}

func DecodeOrphanedPanesMsg(b []byte) (OrphanedPanesMsg, error) {
	r := NewReader(b)
	n, err := r.GetU16()
	if err != nil {
		return OrphanedPanesMsg{}, err
	}
	out := make([]PaneInfoMsg, 0, n)
	for i := 0; i < int(n); i++ {
		enc, err := r.GetBytes()
		if err != nil {
			return OrphanedPanesMsg{}, err
		}
		p, err := DecodePaneInfoMsg(enc)
		if err != nil {
			return OrphanedPanesMsg{}, err
		}
		out = append(out, p)
	}
	return OrphanedPanesMsg{Panes: out}, nil
}

// ---------------------------------------------------------------------
// status / status_tree
// ---------------------------------------------------------------------

type StatusMsg struct {
	Full bool
}

func (m StatusMsg) Encode() []byte {
	w := NewWriter()
	w.PutBool(m.Full)
	return w.Bytes()
}

func DecodeStatusMsg(b []byte) (StatusMsg, error) {
	r := NewReader(b)
	full, err := r.GetBool()
	return StatusMsg{Full: full}, err
}

type ClientSummary struct {
	ClientID    uint32
	SessionID   uuid.UUID
	SessionName string
	LayoutJSON  []byte
}

type StatusTreeMsg struct {
	Clients          []ClientSummary
	DetachedSessions []SessionSummary
	OrphanedPanes    []PaneInfoMsg
	StickyPanes      []PaneInfoMsg
}

func (m StatusTreeMsg) Encode() []byte {
	w := NewWriter()
	w.PutU16(uint16(len(m.Clients)))
	for _, c := range m.Clients {
		w.PutU32(c.ClientID)
		w.PutUUID(c.SessionID)
		w.PutString(c.SessionName)
		w.PutBytes(c.LayoutJSON)
	}
	sessEnc := SessionsListMsg{Sessions: m.DetachedSessions}.Encode()
	w.PutBytes(sessEnc)
	orphEnc := OrphanedPanesMsg{Panes: m.OrphanedPanes}.Encode()
	w.PutBytes(orphEnc)
	stickyEnc := OrphanedPanesMsg{Panes: m.StickyPanes}.Encode()
	w.PutBytes(stickyEnc)
	return w.Bytes()
}

func DecodeStatusTreeMsg(b []byte) (StatusTreeMsg, error) {
	r := NewReader(b)
	var m StatusTreeMsg
	n, err := r.GetU16()
	if err != nil {
		return m, err
	}
	m.Clients = make([]ClientSummary, 0, n)
	for i := 0; i < int(n); i++ {
		var c ClientSummary
		if c.ClientID, err = r.GetU32(); err != nil {
			return m, err
		}
		if c.SessionID, err = r.GetUUID(); err != nil {
			return m, err
		}
		if c.SessionName, err = r.GetString(); err != nil {
			return m, err
		}
		if c.LayoutJSON, err = r.GetBytes(); err != nil {
			return m, err
		}
		m.Clients = append(m.Clients, c)
	}
	sessEnc, err := r.GetBytes()
	if err != nil {
		return m, err
	}
	sessMsg, err := DecodeSessionsListMsg(sessEnc)
	if err != nil {
		return m, err
	}
	m.DetachedSessions = sessMsg.Sessions

	orphEnc, err := r.GetBytes()
	if err != nil {
		return m, err
	}
	orphMsg, err := DecodeOrphanedPanesMsg(orphEnc)
	if err != nil {
		return m, err
	}
	m.OrphanedPanes = orphMsg.Panes

	stickyEnc, err := r.GetBytes()
	if err != nil {
		return m, err
	}
	stickyMsg, err := DecodeOrphanedPanesMsg(stickyEnc)
	if err != nil {
		return m, err
	}
	m.StickyPanes = stickyMsg.Panes
	return m, nil
}

// ---------------------------------------------------------------------
// broadcast_notify / targeted_notify / send_keys
// ---------------------------------------------------------------------

type NotifyMsg struct {
	HasUuid   bool
	Uuid      uuid.UUID
	Message   string
	TimeoutMs uint32 // 0 means "no timeout"
}

func (m NotifyMsg) Encode() []byte {
	w := NewWriter()
	w.PutBool(m.HasUuid)
	w.PutUUID(m.Uuid)
	w.PutString(m.Message)
	w.PutU32(m.TimeoutMs)
	return w.Bytes()
}

func DecodeNotifyMsg(b []byte) (NotifyMsg, error) {
	r := NewReader(b)
	var m NotifyMsg
	var err error
	if m.HasUuid, err = r.GetBool(); err != nil {
		return m, err
	}
	if m.Uuid, err = r.GetUUID(); err != nil {
		return m, err
	}
	if m.Message, err = r.GetString(); err != nil {
		return m, err
	}
	if m.TimeoutMs, err = r.GetU32(); err != nil {
		return m, err
	}
	return m, nil
}

type SendKeysMsg struct {
	Broadcast bool
	Uuid      uuid.UUID
	Data      []byte
}

func (m SendKeysMsg) Encode() []byte {
	w := NewWriter()
	w.PutBool(m.Broadcast)
	w.PutUUID(m.Uuid)
	w.PutBytes(m.Data)
	return w.Bytes()
}

func DecodeSendKeysMsg(b []byte) (SendKeysMsg, error) {
	r := NewReader(b)
	var m SendKeysMsg
	var err error
	if m.Broadcast, err = r.GetBool(); err != nil {
		return m, err
	}
	if m.Uuid, err = r.GetUUID(); err != nil {
		return m, err
	}
	if m.Data, err = r.GetBytes(); err != nil {
		return m, err
	}
	return m, nil
}

// ---------------------------------------------------------------------
// pop_confirm / pop_choose / pop_response
// ---------------------------------------------------------------------

type PopConfirmMsg struct {
	Uuid      uuid.UUID
	TimeoutMs uint32
	Message   string
}

func (m PopConfirmMsg) Encode() []byte {
	w := NewWriter()
	w.PutUUID(m.Uuid)
	w.PutU32(m.TimeoutMs)
	w.PutString(m.Message)
	return w.Bytes()
}

func DecodePopConfirmMsg(b []byte) (PopConfirmMsg, error) {
	r := NewReader(b)
	var m PopConfirmMsg
	var err error
	if m.Uuid, err = r.GetUUID(); err != nil {
		return m, err
	}
	if m.TimeoutMs, err = r.GetU32(); err != nil {
		return m, err
	}
	if m.Message, err = r.GetString(); err != nil {
		return m, err
	}
	return m, nil
}

type PopChooseMsg struct {
	Uuid      uuid.UUID
	TimeoutMs uint32
	Title     string
	Items     []string
}

func (m PopChooseMsg) Encode() []byte {
	w := NewWriter()
	w.PutUUID(m.Uuid)
	w.PutU32(m.TimeoutMs)
	w.PutString(m.Title)
	w.PutStrings(m.Items)
	return w.Bytes()
}

func DecodePopChooseMsg(b []byte) (PopChooseMsg, error) {
	r := NewReader(b)
	var m PopChooseMsg
	var err error
	if m.Uuid, err = r.GetUUID(); err != nil {
		return m, err
	}
	if m.TimeoutMs, err = r.GetU32(); err != nil {
		return m, err
	}
	if m.Title, err = r.GetString(); err != nil {
		return m, err
	}
	if m.Items, err = r.GetStrings(); err != nil {
		return m, err
	}
	return m, nil
}

// PopResponseMsg carries a confirm answer (Value 0/1), a choose answer
// (Value = selected index), or Cancelled.
type PopResponseMsg struct {
	Cancelled bool
	Value     int32
}

func (m PopResponseMsg) Encode() []byte {
	w := NewWriter()
	w.PutBool(m.Cancelled)
	w.PutU32(uint32(m.Value))
	return w.Bytes()
}

func DecodePopResponseMsg(b []byte) (PopResponseMsg, error) {
	r := NewReader(b)
	var m PopResponseMsg
	var err error
	if m.Cancelled, err = r.GetBool(); err != nil {
		return m, err
	}
	var v uint32
	if v, err = r.GetU32(); err != nil {
		return m, err
	}
	m.Value = int32(v)
	return m, nil
}

// ---------------------------------------------------------------------
// focus_move / exit_intent
// ---------------------------------------------------------------------

type FocusMoveMsg struct {
	Uuid uuid.UUID
	Dir  string // "left","right","up","down"
}

func (m FocusMoveMsg) Encode() []byte {
	w := NewWriter()
	w.PutUUID(m.Uuid)
	w.PutString(m.Dir)
	return w.Bytes()
}

func DecodeFocusMoveMsg(b []byte) (FocusMoveMsg, error) {
	r := NewReader(b)
	var m FocusMoveMsg
	var err error
	if m.Uuid, err = r.GetUUID(); err != nil {
		return m, err
	}
	if m.Dir, err = r.GetString(); err != nil {
		return m, err
	}
	return m, nil
}

// ---------------------------------------------------------------------
// float_request / float_created / float_result
// ---------------------------------------------------------------------

const (
	FloatFlagWaitForExit uint32 = 1 << 0
)

type FloatRequestMsg struct {
	Flags      uint32
	Cmd        string
	Title      string
	Cwd        string
	ResultPath string
	Env        []string
}

func (m FloatRequestMsg) WaitForExit() bool { return m.Flags&FloatFlagWaitForExit != 0 }

func (m FloatRequestMsg) Encode() []byte {
	w := NewWriter()
	w.PutU32(m.Flags)
	w.PutString(m.Cmd)
	w.PutString(m.Title)
	w.PutString(m.Cwd)
	w.PutString(m.ResultPath)
	w.PutStrings(m.Env)
	return w.Bytes()
}

func DecodeFloatRequestMsg(b []byte) (FloatRequestMsg, error) {
	r := NewReader(b)
	var m FloatRequestMsg
	var err error
	if m.Flags, err = r.GetU32(); err != nil {
		return m, err
	}
	if m.Cmd, err = r.GetString(); err != nil {
		return m, err
	}
	if m.Title, err = r.GetString(); err != nil {
		return m, err
	}
	if m.Cwd, err = r.GetString(); err != nil {
		return m, err
	}
	if m.ResultPath, err = r.GetString(); err != nil {
		return m, err
	}
	if m.Env, err = r.GetStrings(); err != nil {
		return m, err
	}
	return m, nil
}

type FloatResultMsg struct {
	Uuid     uuid.UUID
	ExitCode int32
	Output   string
}

func (m FloatResultMsg) Encode() []byte {
	w := NewWriter()
	w.PutUUID(m.Uuid)
	w.PutU32(uint32(m.ExitCode))
	w.PutString(m.Output)
	return w.Bytes()
}

func DecodeFloatResultMsg(b []byte) (FloatResultMsg, error) {
	r := NewReader(b)
	var m FloatResultMsg
	var err error
	if m.Uuid, err = r.GetUUID(); err != nil {
		return m, err
	}
	var code uint32
	if code, err = r.GetU32(); err != nil {
		return m, err
	}
	m.ExitCode = int32(code)
	if m.Output, err = r.GetString(); err != nil {
		return m, err
	}
	return m, nil
}

// ---------------------------------------------------------------------
// async events
// ---------------------------------------------------------------------

type PaneExitedMsg struct {
	Uuid   uuid.UUID
	Status int32
}

func (m PaneExitedMsg) Encode() []byte {
	w := NewWriter()
	w.PutUUID(m.Uuid)
	w.PutU32(uint32(m.Status))
	return w.Bytes()
}

func DecodePaneExitedMsg(b []byte) (PaneExitedMsg, error) {
	r := NewReader(b)
	var m PaneExitedMsg
	var err error
	if m.Uuid, err = r.GetUUID(); err != nil {
		return m, err
	}
	var status uint32
	if status, err = r.GetU32(); err != nil {
		return m, err
	}
	m.Status = int32(status)
	return m, nil
}

// NotifyEventMsg is the async push SES sends to the target MUX realm for
// broadcast_notify/targeted_notify.
type NotifyEventMsg struct {
	Message string
}

func (m NotifyEventMsg) Encode() []byte {
	w := NewWriter()
	w.PutString(m.Message)
	return w.Bytes()
}

func DecodeNotifyEventMsg(b []byte) (NotifyEventMsg, error) {
	r := NewReader(b)
	s, err := r.GetString()
	return NotifyEventMsg{Message: s}, err
}

// PopupKind discriminates the two popup_request shapes carried over one
// async message.
type PopupKind uint8

const (
	PopupConfirm PopupKind = iota
	PopupChoose
)

// PopupRequestMsg is the async push SES forwards to the MUX owning the
// targeted pane. At most one popup is pending per MUX connection, so no
// correlation id is carried.
type PopupRequestMsg struct {
	Kind    PopupKind
	Uuid    uuid.UUID
	Message string // populated for PopupConfirm
	Title   string // populated for PopupChoose
	Items   []string
}

func (m PopupRequestMsg) Encode() []byte {
	w := NewWriter()
	w.PutU8(uint8(m.Kind))
	w.PutUUID(m.Uuid)
	w.PutString(m.Message)
	w.PutString(m.Title)
	w.PutStrings(m.Items)
	return w.Bytes()
}

func DecodePopupRequestMsg(b []byte) (PopupRequestMsg, error) {
	r := NewReader(b)
	var m PopupRequestMsg
	var err error
	var kind uint8
	if kind, err = r.GetU8(); err != nil {
		return m, err
	}
	m.Kind = PopupKind(kind)
	if m.Uuid, err = r.GetUUID(); err != nil {
		return m, err
	}
	if m.Message, err = r.GetString(); err != nil {
		return m, err
	}
	if m.Title, err = r.GetString(); err != nil {
		return m, err
	}
	if m.Items, err = r.GetStrings(); err != nil {
		return m, err
	}
	return m, nil
}

// FocusMoveEventMsg/ExitIntentEventMsg are the async pushes SES routes
// to the owning MUX for UI-side handling.
type FocusMoveEventMsg = FocusMoveMsg

func EncodeExitIntentEventMsg(id uuid.UUID) []byte { return UuidMsg{Uuid: id}.Encode() }
func DecodeExitIntentEventMsg(b []byte) (uuid.UUID, error) {
	m, err := DecodeUuidMsg(b)
	return m.Uuid, err
}
