package ses

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/hexe-sh/hexe/internal/instance"
	"github.com/hexe-sh/hexe/internal/podframe"
	"github.com/hexe-sh/hexe/internal/wire"
)

// gcInterval drives both the orphan/sticky/detached-session sweep and
// the persistence debounce off one timer.
const gcInterval = time.Second

// pendingPopup tracks one outstanding pop_confirm/pop_choose: the CLI
// connection awaiting a response, keyed by the target MUX's client id so
// a MUX disconnect resolves its pending popup with a single lookup.
type pendingPopup struct {
	cli     *wire.Conn
	timer   *time.Timer
	resolve sync.Once
}

// pendingFloat tracks a float_request(wait_for_exit) blocked on the
// target pane's eventual exited{status} uplink message.
type pendingFloat struct {
	resultPath string
	done       chan wire.PaneExitedMsg
}

// Server is the SES daemon: the registry plus everything that turns it
// into a listening process.
type Server struct {
	Reg      *Registry
	Layout   instance.Layout
	Launcher PodLauncher

	ln net.Listener

	popMu      sync.Mutex
	popPending map[uint32]*pendingPopup

	floatMu      sync.Mutex
	floatPending map[uuid.UUID]*pendingFloat

	shutdown chan struct{}
}

// NewServer builds a Server over an empty registry; callers call Load
// before Run to restore persisted state.
func NewServer(layout instance.Layout, launcher PodLauncher, orphanTimeout time.Duration) *Server {
	return &Server{
		Reg: NewRegistry(orphanTimeout), Layout: layout, Launcher: launcher,
		popPending: make(map[uint32]*pendingPopup), floatPending: make(map[uuid.UUID]*pendingFloat),
		shutdown: make(chan struct{}),
	}
}

// AlreadyRunning reports whether an SES instance is already listening on
// this layout's socket; a second daemon exits silently rather than
// clobbering the first.
func AlreadyRunning(layout instance.Layout) bool {
	conn, err := net.Dial("unix", layout.SesSocket())
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Run listens on the instance's ses.sock and serves connections until
// stopCh fires. It persists state on every dirty 1s tick and once more on
// graceful shutdown.
func (s *Server) Run(stopCh <-chan struct{}) error {
	if err := s.Layout.EnsureDirs(); err != nil {
		return fmt.Errorf("ses: ensuring runtime dirs: %w", err)
	}
	sockPath := s.Layout.SesSocket()
	os.Remove(sockPath)
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		return fmt.Errorf("ses: listening on %s: %w", sockPath, err)
	}
	s.ln = ln
	slog.Info("ses: listening", "socket", sockPath)

	go func() {
		<-stopCh
		close(s.shutdown)
		ln.Close()
	}()

	go s.tickLoop()

	for {
		nc, err := ln.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				// Per the disconnect transitions, keepalive clients leave
				// detached sessions behind; the rest take their panes down.
				// Attached panes otherwise would not survive the restart.
				for _, c := range s.Reg.Clients() {
					s.Reg.RemoveClient(c.ID, s.killPod)
				}
				_ = s.Reg.Save(s.Layout.StateFile())
				return nil
			default:
				slog.Error("ses: accept error", "err", err)
				continue
			}
		}
		go s.handleConn(nc)
	}
}

// tickLoop debounces dirty-state saves to at most one per second and
// drives the orphan/sticky/detached-session GC sweep off the same tick.
func (s *Server) tickLoop() {
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.shutdown:
			return
		case <-ticker.C:
			if s.Reg.TakeDirty() {
				if err := s.Reg.Save(s.Layout.StateFile()); err != nil {
					slog.Warn("ses: persisting state failed", "err", err)
				}
			}
			s.Reg.GC(s.killPod)
		}
	}
}

func (s *Server) killPod(p *Pane) {
	if p.PodPid > 0 {
		_ = syscall.Kill(p.PodPid, syscall.SIGTERM)
	}
}

func (s *Server) handleConn(nc net.Conn) {
	h, err := wire.ReadHandshake(nc, wire.HandshakeSesCtl, wire.HandshakeSesVT, wire.HandshakeSesPodUplink, wire.HandshakeSesCLI)
	if err != nil {
		nc.Close()
		return
	}
	switch h {
	case wire.HandshakeSesCtl:
		s.serveClientConn(nc)
	case wire.HandshakeSesPodUplink:
		s.servePodUplink(nc)
	case wire.HandshakeSesCLI:
		s.serveCliConn(nc)
	case wire.HandshakeSesVT:
		// Reserved for future MUX-side VT multiplexing; never repurposed.
		nc.Close()
	}
}

// serveClientConn runs one MUX's control connection for its lifetime:
// register, then a request/response + async-push loop until disconnect.
func (s *Server) serveClientConn(nc net.Conn) {
	conn := wire.NewConn(nc)
	defer conn.Close()

	var clientID uint32
	for {
		msg, err := conn.ReadMessage()
		if err != nil {
			if clientID != 0 {
				s.onClientDisconnect(clientID)
			}
			return
		}
		newID, _ := s.dispatch(conn, &clientID, msg)
		if newID != 0 {
			clientID = newID
		}
	}
}

func (s *Server) onClientDisconnect(clientID uint32) {
	s.Reg.RemoveClient(clientID, s.killPod)
	s.popMu.Lock()
	if p, ok := s.popPending[clientID]; ok {
		delete(s.popPending, clientID)
		s.popMu.Unlock()
		p.resolve.Do(func() {
			p.timer.Stop()
			_ = p.cli.WriteMessage(wire.MsgPopResponse, wire.PopResponseMsg{Cancelled: true}.Encode())
			p.cli.Close()
		})
		return
	}
	s.popMu.Unlock()
}

// serveCliConn handles one-shot CLI requests: exactly one request, one
// reply, except pop_confirm/pop_choose which stay open until the target
// MUX answers or times out.
func (s *Server) serveCliConn(nc net.Conn) {
	conn := wire.NewConn(nc)
	msg, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return
	}
	var clientID uint32
	_, awaitingPopup := s.dispatch(conn, &clientID, msg)
	if !awaitingPopup {
		conn.Close()
	}
}

// servePodUplink reads the 16-raw-byte pane uuid follow-up, then forwards
// every pushed message (update_pane_aux, update_pane_shell, pane_exited)
// into the registry and onward to the owning MUX, until the POD
// disconnects.
func (s *Server) servePodUplink(nc net.Conn) {
	defer nc.Close()
	paneID, err := wire.ReadRawUUID(nc)
	if err != nil {
		return
	}
	conn := wire.NewConn(nc)
	for {
		msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.handlePodUplinkMessage(paneID, msg)
	}
}

func (s *Server) handlePodUplinkMessage(paneID uuid.UUID, msg *wire.Message) {
	switch msg.Type {
	case wire.MsgUpdatePaneAux:
		m, err := wire.DecodeUpdatePaneAuxMsg(msg.Payload)
		if err != nil {
			return
		}
		m.Uuid = paneID
		if s.Reg.UpdatePaneAux(m) {
			if owner, ok := s.Reg.PaneOwner(paneID); ok {
				_ = owner.WriteMessage(wire.MsgUpdatePaneAux, m.Encode())
			}
		}
	case wire.MsgUpdatePaneShell:
		m, err := wire.DecodeUpdatePaneShellMsg(msg.Payload)
		if err != nil {
			return
		}
		m.Uuid = paneID
		if s.Reg.UpdatePaneShell(m) {
			if owner, ok := s.Reg.PaneOwner(paneID); ok {
				_ = owner.WriteMessage(wire.MsgShellEvent, m.Encode())
			}
		}
	case wire.MsgPaneExited:
		m, err := wire.DecodePaneExitedMsg(msg.Payload)
		if err != nil {
			return
		}
		m.Uuid = paneID
		s.handlePaneExited(m)
	}
}

func (s *Server) handlePaneExited(m wire.PaneExitedMsg) {
	if owner, ok := s.Reg.PaneOwner(m.Uuid); ok {
		_ = owner.WriteMessage(wire.MsgPaneExited, m.Encode())
	}
	s.Reg.KillPane(m.Uuid)

	s.floatMu.Lock()
	pf, ok := s.floatPending[m.Uuid]
	if ok {
		delete(s.floatPending, m.Uuid)
	}
	s.floatMu.Unlock()
	if ok {
		pf.done <- m
	}
}

// toPaneInfoMsg projects the registry's internal Pane into the wire
// pane_info shape.
func toPaneInfoMsg(p Pane) wire.PaneInfoMsg {
	return wire.PaneInfoMsg{
		Uuid: p.UUID, PodPid: uint32(p.PodPid), ChildPid: uint32(p.ChildPid),
		SocketPath: p.Socket, State: p.State, Name: p.Name, Type: p.Type,
		IsFocused: p.IsFocused, CreatedFrom: p.CreatedFrom, FocusedFrom: p.FocusedFrom,
		Cwd: p.Cwd, FgName: p.FgName, FgPid: p.FgPid,
		LastCmd: p.LastCmd, LastStatus: p.LastStatus, LastDurationMs: p.LastDurationMs,
		Jobs: p.Jobs, CreatedAt: p.CreatedAt, OrphanedAt: p.OrphanedAt,
	}
}

// dispatch handles one control message from either a MUX or CLI
// connection. clientID is read/written in place (Register sets it). The
// return value signals a freshly-assigned client id (0 if unchanged) and
// whether the CLI caller must keep the connection open past this call
// (true only for a pop_confirm/pop_choose now routed to a MUX, awaiting
// its eventual pop_response); MUX connections ignore this value and stay
// open until ReadMessage fails.
func (s *Server) dispatch(conn *wire.Conn, clientID *uint32, msg *wire.Message) (newID uint32, awaitAsync bool) {
	switch msg.Type {
	case wire.MsgRegister:
		m, err := wire.DecodeRegisterMsg(msg.Payload)
		if err != nil {
			return 0, s.replyError(conn, err)
		}
		c := s.Reg.Register(conn, m.SessionID, m.Keepalive, m.Name)
		if c.SessionID == (uuid.UUID{}) {
			c.SessionID = uuid.New()
		}
		_ = conn.WriteMessage(wire.MsgRegistered, wire.RegisteredMsg{ClientID: c.ID, SessionID: c.SessionID, Name: c.Name}.Encode())
		return c.ID, false

	case wire.MsgSyncState:
		m, err := wire.DecodeSyncStateMsg(msg.Payload)
		if err != nil {
			return 0, s.replyError(conn, err)
		}
		s.Reg.SyncState(*clientID, m.LayoutJSON)
		return 0, s.replyOk(conn)

	case wire.MsgCreatePane:
		return 0, s.handleCreatePane(conn, *clientID, msg.Payload, wire.PaneSplit)

	case wire.MsgFindSticky:
		m, err := wire.DecodeFindStickyMsg(msg.Payload)
		if err != nil {
			return 0, s.replyError(conn, err)
		}
		p, ok := s.Reg.FindSticky(m.Pwd, m.Key)
		if !ok {
			return 0, s.reply(conn, wire.MsgPaneNotFound, nil)
		}
		return 0, s.reply(conn, wire.MsgPaneFound, toPaneInfoMsg(*p).Encode())

	case wire.MsgAdoptPane:
		m, err := wire.DecodeUuidMsg(msg.Payload)
		if err != nil {
			return 0, s.replyError(conn, err)
		}
		p, ok := s.Reg.AdoptPane(*clientID, m.Uuid)
		if !ok {
			return 0, s.reply(conn, wire.MsgPaneNotFound, nil)
		}
		return 0, s.reply(conn, wire.MsgPaneFound, toPaneInfoMsg(*p).Encode())

	case wire.MsgOrphanPane:
		m, err := wire.DecodeUuidMsg(msg.Payload)
		if err != nil {
			return 0, s.replyError(conn, err)
		}
		if _, ok := s.Reg.OrphanPane(m.Uuid); !ok {
			return 0, s.replyNotFound(conn)
		}
		return 0, s.replyOk(conn)

	case wire.MsgKillPane:
		m, err := wire.DecodeUuidMsg(msg.Payload)
		if err != nil {
			return 0, s.replyError(conn, err)
		}
		p, ok := s.Reg.KillPane(m.Uuid)
		if !ok {
			return 0, s.replyNotFound(conn)
		}
		s.killPod(p)
		return 0, s.replyOk(conn)

	case wire.MsgSetSticky:
		m, err := wire.DecodeSetStickyMsg(msg.Payload)
		if err != nil {
			return 0, s.replyError(conn, err)
		}
		if !s.Reg.SetSticky(m.Uuid, m.Key, m.Pwd) {
			return 0, s.replyNotFound(conn)
		}
		return 0, s.replyOk(conn)

	case wire.MsgUpdatePaneAux:
		m, err := wire.DecodeUpdatePaneAuxMsg(msg.Payload)
		if err != nil {
			return 0, s.replyError(conn, err)
		}
		if !s.Reg.UpdatePaneAux(m) {
			return 0, s.replyNotFound(conn)
		}
		return 0, s.replyOk(conn)

	case wire.MsgUpdatePaneShell:
		m, err := wire.DecodeUpdatePaneShellMsg(msg.Payload)
		if err != nil {
			return 0, s.replyError(conn, err)
		}
		if !s.Reg.UpdatePaneShell(m) {
			return 0, s.replyNotFound(conn)
		}
		return 0, s.replyOk(conn)

	case wire.MsgGetPaneCwd:
		m, err := wire.DecodeUuidMsg(msg.Payload)
		if err != nil {
			return 0, s.replyError(conn, err)
		}
		cwd, ok := s.Reg.GetPaneCwd(m.Uuid)
		if !ok {
			return 0, s.replyNotFound(conn)
		}
		return 0, s.reply(conn, wire.MsgPaneCwd, wire.PaneCwdMsg{Cwd: cwd}.Encode())

	case wire.MsgPaneInfoReq:
		m, err := wire.DecodeUuidMsg(msg.Payload)
		if err != nil {
			return 0, s.replyError(conn, err)
		}
		p, ok := s.Reg.PaneInfo(m.Uuid)
		if !ok {
			return 0, s.replyNotFound(conn)
		}
		return 0, s.reply(conn, wire.MsgPaneInfo, toPaneInfoMsg(p).Encode())

	case wire.MsgDetachSession:
		m, err := wire.DecodeDetachSessionMsg(msg.Payload)
		if err != nil {
			return 0, s.replyError(conn, err)
		}
		s.Reg.DetachSession(*clientID, m.SessionID, m.SessionName, m.LayoutJSON)
		return 0, s.replyOk(conn)

	case wire.MsgReattach:
		m, err := wire.DecodeReattachMsg(msg.Payload)
		if err != nil {
			return 0, s.replyError(conn, err)
		}
		ds, ok := s.Reg.Reattach(m.SessionIDPrefix)
		if !ok {
			return 0, s.replyNotFound(conn)
		}
		return 0, s.reply(conn, wire.MsgSessionReattached, wire.SessionReattachedMsg{LayoutJSON: ds.LayoutJSON, PaneUuids: ds.PaneUUIDs}.Encode())

	case wire.MsgListSessions:
		sessions := s.Reg.ListSessions()
		out := make([]wire.SessionSummary, 0, len(sessions))
		for _, ds := range sessions {
			out = append(out, wire.SessionSummary{SessionID: ds.SessionID, SessionName: ds.SessionName, PaneCount: uint32(len(ds.PaneUUIDs))})
		}
		return 0, s.reply(conn, wire.MsgSessionsList, wire.SessionsListMsg{Sessions: out}.Encode())

	case wire.MsgListOrphaned:
		panes := s.Reg.ListOrphaned()
		out := make([]wire.PaneInfoMsg, 0, len(panes))
		for _, p := range panes {
			out = append(out, toPaneInfoMsg(p))
		}
		return 0, s.reply(conn, wire.MsgOrphanedPanes, wire.OrphanedPanesMsg{Panes: out}.Encode())

	case wire.MsgStatus:
		return 0, s.handleStatus(conn, msg.Payload)

	case wire.MsgBroadcastNotify, wire.MsgTargetedNotify:
		return 0, s.handleNotify(conn, msg.Payload)

	case wire.MsgSendKeys:
		return 0, s.handleSendKeys(conn, msg.Payload)

	case wire.MsgPopConfirm:
		return 0, s.handlePopConfirm(conn, msg.Payload)

	case wire.MsgPopChoose:
		return 0, s.handlePopChoose(conn, msg.Payload)

	case wire.MsgPopResponse:
		return 0, s.handlePopResponse(*clientID, msg.Payload)

	case wire.MsgFocusMove:
		return 0, s.handleFocusMove(conn, msg.Payload)

	case wire.MsgExitIntent:
		return 0, s.handleExitIntent(conn, msg.Payload)

	case wire.MsgFloatRequest:
		return 0, s.handleFloatRequest(conn, *clientID, msg.Payload)

	default:
		return 0, s.replyError(conn, fmt.Errorf("ses: unsupported message type %d", msg.Type))
	}
}

// reply writes a response and reports awaitAsync=false: every ordinary
// request/response operation is complete once answered, whether or not
// the write itself succeeded (a dead connection surfaces on the next
// ReadMessage instead).
func (s *Server) reply(conn *wire.Conn, t wire.MsgType, payload []byte) bool {
	_ = conn.WriteMessage(t, payload)
	return false
}

func (s *Server) replyOk(conn *wire.Conn) bool { return s.reply(conn, wire.MsgOk, nil) }

func (s *Server) replyNotFound(conn *wire.Conn) bool { return s.reply(conn, wire.MsgNotFound, nil) }

func (s *Server) replyError(conn *wire.Conn, err error) bool {
	return s.reply(conn, wire.MsgError, wire.ErrorMsg{Message: err.Error()}.Encode())
}

func (s *Server) handleCreatePane(conn *wire.Conn, clientID uint32, payload []byte, typ wire.PaneType) bool {
	m, err := wire.DecodeCreatePaneMsg(payload)
	if err != nil {
		return s.replyError(conn, err)
	}
	id := uuid.New()
	podPid, childPid, err := s.Launcher.Spawn(id, m.Shell, nil, m.Cwd, m.Env, m.Isolated)
	if err != nil {
		return s.replyError(conn, fmt.Errorf("ses: spawning pod: %w", err))
	}
	p := &Pane{
		UUID: id, PodPid: podPid, ChildPid: childPid, Socket: s.Layout.PodSocket(wire.UUIDHex(id)),
		Cwd: m.Cwd, Type: typ,
	}
	if m.StickyKey != 0 {
		p.StickyKey = m.StickyKey
		p.StickyPwd = m.StickyCwd
	}
	s.Reg.CreatePane(clientID, p)
	return s.reply(conn, wire.MsgPaneCreated, wire.PaneCreatedMsg{
		Uuid: id, Pid: uint32(p.PodPid), ChildPid: uint32(childPid), SocketPath: p.Socket,
	}.Encode())
}

func (s *Server) handleStatus(conn *wire.Conn, payload []byte) bool {
	if _, err := wire.DecodeStatusMsg(payload); err != nil {
		return s.replyError(conn, err)
	}
	clients := s.Reg.Clients()
	cs := make([]wire.ClientSummary, 0, len(clients))
	for _, c := range clients {
		cs = append(cs, wire.ClientSummary{ClientID: c.ID, SessionID: c.SessionID, SessionName: c.Name, LayoutJSON: c.LayoutJSON})
	}
	sessions := s.Reg.ListSessions()
	ss := make([]wire.SessionSummary, 0, len(sessions))
	for _, ds := range sessions {
		ss = append(ss, wire.SessionSummary{SessionID: ds.SessionID, SessionName: ds.SessionName, PaneCount: uint32(len(ds.PaneUUIDs))})
	}
	orph := s.Reg.ListOrphaned()
	op := make([]wire.PaneInfoMsg, 0, len(orph))
	for _, p := range orph {
		op = append(op, toPaneInfoMsg(p))
	}
	sticky := s.Reg.ListSticky()
	sp := make([]wire.PaneInfoMsg, 0, len(sticky))
	for _, p := range sticky {
		sp = append(sp, toPaneInfoMsg(p))
	}
	tree := wire.StatusTreeMsg{Clients: cs, DetachedSessions: ss, OrphanedPanes: op, StickyPanes: sp}
	return s.reply(conn, wire.MsgStatusTree, tree.Encode())
}

func (s *Server) handleNotify(conn *wire.Conn, payload []byte) bool {
	m, err := wire.DecodeNotifyMsg(payload)
	if err != nil {
		return s.replyError(conn, err)
	}
	evt := wire.NotifyEventMsg{Message: m.Message}.Encode()
	if !m.HasUuid {
		for _, c := range s.Reg.Clients() {
			_ = c.Conn.WriteMessage(wire.MsgNotifyEvent, evt)
		}
		return s.replyOk(conn)
	}
	if c, ok := s.Reg.ClientBySessionID(m.Uuid); ok {
		_ = c.Conn.WriteMessage(wire.MsgNotifyEvent, evt)
		return s.replyOk(conn)
	}
	if owner, ok := s.Reg.PaneOwner(m.Uuid); ok {
		_ = owner.WriteMessage(wire.MsgNotifyEvent, evt)
		return s.replyOk(conn)
	}
	return s.replyNotFound(conn)
}

// handleSendKeys forwards bytes to the owning POD's PTY over its aux
// input channel (handshake 0x03): no backlog replay, no broadcast-back.
func (s *Server) handleSendKeys(conn *wire.Conn, payload []byte) bool {
	m, err := wire.DecodeSendKeysMsg(payload)
	if err != nil {
		return s.replyError(conn, err)
	}
	if m.Broadcast {
		for _, p := range s.Reg.AllAttached() {
			s.forwardInput(p.Socket, m.Data)
		}
		return s.replyOk(conn)
	}
	p, ok := s.Reg.PaneInfo(m.Uuid)
	if !ok {
		return s.replyNotFound(conn)
	}
	s.forwardInput(p.Socket, m.Data)
	return s.replyOk(conn)
}

func (s *Server) forwardInput(sockPath string, data []byte) {
	nc, err := net.Dial("unix", sockPath)
	if err != nil {
		return
	}
	defer nc.Close()
	if err := wire.WriteHandshake(nc, wire.HandshakePodAuxInput); err != nil {
		return
	}
	_ = podframe.WriteFrame(nc, podframe.Input, data)
}

func (s *Server) handlePopConfirm(conn *wire.Conn, payload []byte) bool {
	m, err := wire.DecodePopConfirmMsg(payload)
	if err != nil {
		return s.replyError(conn, err)
	}
	return s.routePopup(conn, m.Uuid, m.TimeoutMs, wire.PopupRequestMsg{Kind: wire.PopupConfirm, Uuid: m.Uuid, Message: m.Message})
}

func (s *Server) handlePopChoose(conn *wire.Conn, payload []byte) bool {
	m, err := wire.DecodePopChooseMsg(payload)
	if err != nil {
		return s.replyError(conn, err)
	}
	return s.routePopup(conn, m.Uuid, m.TimeoutMs, wire.PopupRequestMsg{Kind: wire.PopupChoose, Uuid: m.Uuid, Title: m.Title, Items: m.Items})
}

// routePopup forwards a popup request to the MUX owning the targeted
// pane, remembers the CLI's fd keyed by that MUX's client id, and arms a
// cancellation timer. Returning true keeps the CLI connection open until
// the popup resolves.
func (s *Server) routePopup(cli *wire.Conn, paneID uuid.UUID, timeoutMs uint32, req wire.PopupRequestMsg) bool {
	p, ok := s.Reg.PaneInfo(paneID)
	if !ok || p.ClientID == 0 {
		return s.replyNotFound(cli)
	}
	c, ok := s.Reg.ClientByID(p.ClientID)
	if !ok {
		return s.replyNotFound(cli)
	}

	pp := &pendingPopup{cli: cli}
	s.popMu.Lock()
	s.popPending[c.ID] = pp
	s.popMu.Unlock()

	if timeoutMs == 0 {
		timeoutMs = 30_000
	}
	pp.timer = time.AfterFunc(time.Duration(timeoutMs)*time.Millisecond, func() {
		s.popMu.Lock()
		if s.popPending[c.ID] == pp {
			delete(s.popPending, c.ID)
		}
		s.popMu.Unlock()
		pp.resolve.Do(func() {
			_ = cli.WriteMessage(wire.MsgPopResponse, wire.PopResponseMsg{Cancelled: true}.Encode())
			cli.Close()
		})
	})

	if err := c.Conn.WriteMessage(wire.MsgPopupRequest, req.Encode()); err != nil {
		s.popMu.Lock()
		delete(s.popPending, c.ID)
		s.popMu.Unlock()
		pp.timer.Stop()
		return s.replyNotFound(cli)
	}
	return true // keep the CLI connection open; handlePopResponse replies later
}

func (s *Server) handlePopResponse(muxClientID uint32, payload []byte) bool {
	m, err := wire.DecodePopResponseMsg(payload)
	if err != nil {
		return false
	}
	s.popMu.Lock()
	pp, ok := s.popPending[muxClientID]
	if ok {
		delete(s.popPending, muxClientID)
	}
	s.popMu.Unlock()
	if !ok {
		return false
	}
	pp.resolve.Do(func() {
		pp.timer.Stop()
		_ = pp.cli.WriteMessage(wire.MsgPopResponse, m.Encode())
		pp.cli.Close()
	})
	return false
}

func (s *Server) handleFocusMove(conn *wire.Conn, payload []byte) bool {
	m, err := wire.DecodeFocusMoveMsg(payload)
	if err != nil {
		return s.replyError(conn, err)
	}
	owner, ok := s.Reg.PaneOwner(m.Uuid)
	if !ok {
		return s.replyNotFound(conn)
	}
	_ = owner.WriteMessage(wire.MsgFocusMoveEvent, m.Encode())
	return s.replyOk(conn)
}

func (s *Server) handleExitIntent(conn *wire.Conn, payload []byte) bool {
	m, err := wire.DecodeUuidMsg(payload)
	if err != nil {
		return s.replyError(conn, err)
	}
	owner, ok := s.Reg.PaneOwner(m.Uuid)
	if !ok {
		return s.replyNotFound(conn)
	}
	_ = owner.WriteMessage(wire.MsgExitIntentEvent, wire.EncodeExitIntentEventMsg(m.Uuid))
	return s.replyOk(conn)
}

// handleFloatRequest spawns a transient Float-typed pane attached to the
// requesting MUX client; the target is always the connection issuing the
// request, since the wire message carries no separate destination.
func (s *Server) handleFloatRequest(conn *wire.Conn, clientID uint32, payload []byte) bool {
	m, err := wire.DecodeFloatRequestMsg(payload)
	if err != nil {
		return s.replyError(conn, err)
	}
	if clientID == 0 {
		return s.replyError(conn, errors.New("ses: float_request requires a registered MUX connection"))
	}
	id := uuid.New()
	podPid, childPid, err := s.Launcher.Spawn(id, m.Cmd, nil, m.Cwd, m.Env, false)
	if err != nil {
		return s.replyError(conn, fmt.Errorf("ses: spawning float pod: %w", err))
	}
	p := &Pane{UUID: id, PodPid: podPid, ChildPid: childPid, Socket: s.Layout.PodSocket(wire.UUIDHex(id)), Cwd: m.Cwd, Type: wire.PaneFloat, Name: m.Title}
	s.Reg.CreatePane(clientID, p)

	if !m.WaitForExit() {
		return s.reply(conn, wire.MsgFloatCreated, wire.UuidMsg{Uuid: id}.Encode())
	}

	pf := &pendingFloat{resultPath: m.ResultPath, done: make(chan wire.PaneExitedMsg, 1)}
	s.floatMu.Lock()
	s.floatPending[id] = pf
	s.floatMu.Unlock()

	exited := <-pf.done
	output := ""
	if m.ResultPath != "" {
		if b, err := os.ReadFile(m.ResultPath); err == nil {
			output = string(b)
		}
	}
	return s.reply(conn, wire.MsgFloatResult, wire.FloatResultMsg{Uuid: id, ExitCode: exited.Status, Output: output}.Encode())
}
