// Package sesclient is MUX's cooperative client for the SES control
// channel: one request in flight at a time, with asynchronous pushes
// (pane exits, shell events, notifications, popups, focus moves, exit
// intents) demultiplexed onto caller-supplied handlers by a single
// background reader goroutine.
package sesclient

import (
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/hexe-sh/hexe/internal/wire"
)

// Handlers receives every asynchronous push SES can send a registered MUX
// connection. A nil field is simply ignored.
type Handlers struct {
	OnPaneExited   func(wire.PaneExitedMsg)
	OnShellEvent   func(wire.UpdatePaneShellMsg)
	OnNotify       func(wire.NotifyEventMsg)
	OnFocusMove    func(wire.FocusMoveEventMsg)
	OnExitIntent   func(paneID uuid.UUID)
	// OnPopupRequest must eventually call Client.RespondPopup once (SES
	// keeps at most one popup pending per MUX connection, so the response
	// carries no pane id); it is invoked on the reader goroutine, so callers
	// needing UI interaction should hand off to their own event loop
	// rather than blocking here.
	OnPopupRequest func(wire.PopupRequestMsg)
}

// Client is a single MUX-to-SES control connection.
type Client struct {
	conn *wire.Conn
	h    Handlers

	callMu  sync.Mutex
	replyCh chan *wire.Message

	ClientID  uint32
	SessionID uuid.UUID
}

// Dial connects to sockPath, performs the handshake, and starts the
// background reader. h may be the zero value if the caller doesn't need
// async events (e.g. a CLI one-shot using a different handshake entirely
// talks to the CLI channel instead of this one).
func Dial(sockPath string, h Handlers) (*Client, error) {
	nc, err := net.Dial("unix", sockPath)
	if err != nil {
		return nil, fmt.Errorf("sesclient: dialing %s: %w", sockPath, err)
	}
	if err := wire.WriteHandshake(nc, wire.HandshakeSesCtl); err != nil {
		nc.Close()
		return nil, fmt.Errorf("sesclient: handshake: %w", err)
	}
	c := &Client{conn: wire.NewConn(nc), h: h, replyCh: make(chan *wire.Message, 1)}
	go c.readLoop()
	return c, nil
}

// DialCLI connects to sockPath over the one-shot CLI channel: no
// Register, no async pushes, just a single request/reply round trip.
// pop_confirm/pop_choose calls block longer than usual here, since SES
// holds the connection open until the pane's owning MUX answers.
func DialCLI(sockPath string) (*Client, error) {
	nc, err := net.Dial("unix", sockPath)
	if err != nil {
		return nil, fmt.Errorf("sesclient: dialing %s: %w", sockPath, err)
	}
	if err := wire.WriteHandshake(nc, wire.HandshakeSesCLI); err != nil {
		nc.Close()
		return nil, fmt.Errorf("sesclient: handshake: %w", err)
	}
	c := &Client{conn: wire.NewConn(nc), replyCh: make(chan *wire.Message, 1)}
	go c.readLoop()
	return c, nil
}

func (c *Client) Close() error { return c.conn.Close() }

func isAsyncPush(t wire.MsgType) bool {
	switch t {
	case wire.MsgPaneExited, wire.MsgShellEvent, wire.MsgNotifyEvent,
		wire.MsgPopupRequest, wire.MsgFocusMoveEvent, wire.MsgExitIntentEvent:
		return true
	}
	return false
}

// readLoop demultiplexes every inbound message: async pushes go straight
// to handlers, everything else is assumed to be the reply to whatever
// call() currently has a request in flight (the protocol never pipelines
// more than one outstanding request per connection).
func (c *Client) readLoop() {
	defer close(c.replyCh)
	for {
		msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if isAsyncPush(msg.Type) {
			c.dispatchAsync(msg)
			continue
		}
		c.replyCh <- msg
	}
}

func (c *Client) dispatchAsync(msg *wire.Message) {
	switch msg.Type {
	case wire.MsgPaneExited:
		if c.h.OnPaneExited == nil {
			return
		}
		if m, err := wire.DecodePaneExitedMsg(msg.Payload); err == nil {
			c.h.OnPaneExited(m)
		}
	case wire.MsgShellEvent:
		if c.h.OnShellEvent == nil {
			return
		}
		if m, err := wire.DecodeUpdatePaneShellMsg(msg.Payload); err == nil {
			c.h.OnShellEvent(m)
		}
	case wire.MsgNotifyEvent:
		if c.h.OnNotify == nil {
			return
		}
		if m, err := wire.DecodeNotifyEventMsg(msg.Payload); err == nil {
			c.h.OnNotify(m)
		}
	case wire.MsgFocusMoveEvent:
		if c.h.OnFocusMove == nil {
			return
		}
		if m, err := wire.DecodeFocusMoveMsg(msg.Payload); err == nil {
			c.h.OnFocusMove(m)
		}
	case wire.MsgExitIntentEvent:
		if c.h.OnExitIntent == nil {
			return
		}
		if id, err := wire.DecodeExitIntentEventMsg(msg.Payload); err == nil {
			c.h.OnExitIntent(id)
		}
	case wire.MsgPopupRequest:
		if c.h.OnPopupRequest == nil {
			return
		}
		if m, err := wire.DecodePopupRequestMsg(msg.Payload); err == nil {
			c.h.OnPopupRequest(m)
		}
	}
}

// call serializes one request/reply exchange: write, then wait for the
// next non-async message on the reader goroutine.
func (c *Client) call(t wire.MsgType, payload []byte) (*wire.Message, error) {
	c.callMu.Lock()
	defer c.callMu.Unlock()
	if err := c.conn.WriteMessage(t, payload); err != nil {
		return nil, err
	}
	msg, ok := <-c.replyCh
	if !ok {
		return nil, wire.ErrIoClosed
	}
	if msg.Type == wire.MsgError {
		e, _ := wire.DecodeErrorMsg(msg.Payload)
		return nil, fmt.Errorf("sesclient: %s", e.Message)
	}
	return msg, nil
}

// RespondPopup answers a previously-delivered OnPopupRequest.
func (c *Client) RespondPopup(resp wire.PopResponseMsg) error {
	return c.conn.WriteMessage(wire.MsgPopResponse, resp.Encode())
}

// Register binds this connection to a session id (zero UUID requests a
// fresh one from SES) and stores the assigned ClientID/SessionID.
func (c *Client) Register(sessionID uuid.UUID, keepalive bool, name string) (wire.RegisteredMsg, error) {
	msg, err := c.call(wire.MsgRegister, wire.RegisterMsg{SessionID: sessionID, Keepalive: keepalive, Name: name}.Encode())
	if err != nil {
		return wire.RegisteredMsg{}, err
	}
	r, err := wire.DecodeRegisteredMsg(msg.Payload)
	if err != nil {
		return wire.RegisteredMsg{}, err
	}
	c.ClientID, c.SessionID = r.ClientID, r.SessionID
	return r, nil
}

func (c *Client) SyncState(layoutJSON []byte) error {
	_, err := c.call(wire.MsgSyncState, wire.SyncStateMsg{LayoutJSON: layoutJSON}.Encode())
	return err
}

func (c *Client) CreatePane(req wire.CreatePaneMsg) (wire.PaneCreatedMsg, error) {
	msg, err := c.call(wire.MsgCreatePane, req.Encode())
	if err != nil {
		return wire.PaneCreatedMsg{}, err
	}
	return wire.DecodePaneCreatedMsg(msg.Payload)
}

// FindSticky returns (info, true) on a match, (zero, false) if no sticky
// pane matched the pwd+key.
func (c *Client) FindSticky(pwd string, key byte) (wire.PaneInfoMsg, bool, error) {
	msg, err := c.call(wire.MsgFindSticky, wire.FindStickyMsg{Pwd: pwd, Key: key}.Encode())
	if err != nil {
		return wire.PaneInfoMsg{}, false, err
	}
	if msg.Type == wire.MsgPaneNotFound {
		return wire.PaneInfoMsg{}, false, nil
	}
	p, err := wire.DecodePaneInfoMsg(msg.Payload)
	return p, true, err
}

func (c *Client) AdoptPane(id uuid.UUID) (wire.PaneInfoMsg, bool, error) {
	msg, err := c.call(wire.MsgAdoptPane, wire.UuidMsg{Uuid: id}.Encode())
	if err != nil {
		return wire.PaneInfoMsg{}, false, err
	}
	if msg.Type == wire.MsgPaneNotFound {
		return wire.PaneInfoMsg{}, false, nil
	}
	p, err := wire.DecodePaneInfoMsg(msg.Payload)
	return p, true, err
}

func (c *Client) OrphanPane(id uuid.UUID) error {
	_, err := c.call(wire.MsgOrphanPane, wire.UuidMsg{Uuid: id}.Encode())
	return err
}

func (c *Client) KillPane(id uuid.UUID) error {
	_, err := c.call(wire.MsgKillPane, wire.UuidMsg{Uuid: id}.Encode())
	return err
}

func (c *Client) SetSticky(id uuid.UUID, key byte, pwd string) error {
	_, err := c.call(wire.MsgSetSticky, wire.SetStickyMsg{Uuid: id, Key: key, Pwd: pwd}.Encode())
	return err
}

func (c *Client) UpdatePaneAux(m wire.UpdatePaneAuxMsg) error {
	_, err := c.call(wire.MsgUpdatePaneAux, m.Encode())
	return err
}

func (c *Client) GetPaneCwd(id uuid.UUID) (string, error) {
	msg, err := c.call(wire.MsgGetPaneCwd, wire.UuidMsg{Uuid: id}.Encode())
	if err != nil {
		return "", err
	}
	m, err := wire.DecodePaneCwdMsg(msg.Payload)
	return m.Cwd, err
}

func (c *Client) PaneInfo(id uuid.UUID) (wire.PaneInfoMsg, error) {
	msg, err := c.call(wire.MsgPaneInfoReq, wire.UuidMsg{Uuid: id}.Encode())
	if err != nil {
		return wire.PaneInfoMsg{}, err
	}
	return wire.DecodePaneInfoMsg(msg.Payload)
}

func (c *Client) DetachSession(sessionID uuid.UUID, sessionName string, layoutJSON []byte) error {
	_, err := c.call(wire.MsgDetachSession, wire.DetachSessionMsg{SessionID: sessionID, SessionName: sessionName, LayoutJSON: layoutJSON}.Encode())
	return err
}

func (c *Client) Reattach(sessionIDPrefix string) (wire.SessionReattachedMsg, error) {
	msg, err := c.call(wire.MsgReattach, wire.ReattachMsg{SessionIDPrefix: sessionIDPrefix}.Encode())
	if err != nil {
		return wire.SessionReattachedMsg{}, err
	}
	return wire.DecodeSessionReattachedMsg(msg.Payload)
}

func (c *Client) ListSessions() (wire.SessionsListMsg, error) {
	msg, err := c.call(wire.MsgListSessions, nil)
	if err != nil {
		return wire.SessionsListMsg{}, err
	}
	return wire.DecodeSessionsListMsg(msg.Payload)
}

func (c *Client) ListOrphaned() (wire.OrphanedPanesMsg, error) {
	msg, err := c.call(wire.MsgListOrphaned, nil)
	if err != nil {
		return wire.OrphanedPanesMsg{}, err
	}
	return wire.DecodeOrphanedPanesMsg(msg.Payload)
}

func (c *Client) Status(full bool) (wire.StatusTreeMsg, error) {
	msg, err := c.call(wire.MsgStatus, wire.StatusMsg{Full: full}.Encode())
	if err != nil {
		return wire.StatusTreeMsg{}, err
	}
	return wire.DecodeStatusTreeMsg(msg.Payload)
}

func (c *Client) BroadcastNotify(message string) error {
	_, err := c.call(wire.MsgBroadcastNotify, wire.NotifyMsg{Message: message}.Encode())
	return err
}

func (c *Client) TargetedNotify(target uuid.UUID, message string) error {
	_, err := c.call(wire.MsgTargetedNotify, wire.NotifyMsg{HasUuid: true, Uuid: target, Message: message}.Encode())
	return err
}

func (c *Client) SendKeys(paneID uuid.UUID, data []byte) error {
	_, err := c.call(wire.MsgSendKeys, wire.SendKeysMsg{Uuid: paneID, Data: data}.Encode())
	return err
}

func (c *Client) BroadcastKeys(data []byte) error {
	_, err := c.call(wire.MsgSendKeys, wire.SendKeysMsg{Broadcast: true, Data: data}.Encode())
	return err
}

func (c *Client) FocusMove(paneID uuid.UUID, dir string) error {
	_, err := c.call(wire.MsgFocusMove, wire.FocusMoveMsg{Uuid: paneID, Dir: dir}.Encode())
	return err
}

func (c *Client) ExitIntent(paneID uuid.UUID) error {
	_, err := c.call(wire.MsgExitIntent, wire.UuidMsg{Uuid: paneID}.Encode())
	return err
}

func (c *Client) FloatRequest(req wire.FloatRequestMsg) (*wire.Message, error) {
	return c.call(wire.MsgFloatRequest, req.Encode())
}

// PopConfirm asks the pane's owning MUX a yes/no question over a
// DialCLI connection, blocking until the user answers or the request
// times out.
func (c *Client) PopConfirm(paneID uuid.UUID, timeoutMs uint32, message string) (wire.PopResponseMsg, error) {
	msg, err := c.call(wire.MsgPopConfirm, wire.PopConfirmMsg{Uuid: paneID, TimeoutMs: timeoutMs, Message: message}.Encode())
	if err != nil {
		return wire.PopResponseMsg{}, err
	}
	return wire.DecodePopResponseMsg(msg.Payload)
}

// PopChoose asks the pane's owning MUX to pick among items over a
// DialCLI connection, blocking until the user answers or the request
// times out.
func (c *Client) PopChoose(paneID uuid.UUID, timeoutMs uint32, title string, items []string) (wire.PopResponseMsg, error) {
	msg, err := c.call(wire.MsgPopChoose, wire.PopChooseMsg{Uuid: paneID, TimeoutMs: timeoutMs, Title: title, Items: items}.Encode())
	if err != nil {
		return wire.PopResponseMsg{}, err
	}
	return wire.DecodePopResponseMsg(msg.Payload)
}
