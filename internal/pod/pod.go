// Package pod implements the POD daemon: the sole owner of one pane's
// PTY, fanning its output out to any number of attached VT consumers
// with a replayed backlog, accepting shell-integration events over a
// separate control channel, and forwarding structured events to SES
// without ever handing out the PTY fd itself.
package pod

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	psutil "github.com/mitchellh/go-ps"

	"github.com/hexe-sh/hexe/internal/discovery"
	"github.com/hexe-sh/hexe/internal/podframe"
	"github.com/hexe-sh/hexe/internal/ptyexec"
	"github.com/hexe-sh/hexe/internal/shp"
	"github.com/hexe-sh/hexe/internal/wire"
)

// Config describes one pod's launch parameters.
type Config struct {
	UUID      uuid.UUID
	Name      string
	Shell     string
	ShellArgs []string
	Cwd       string
	Env       []string
	PaneEnv   []string

	Isolated      bool
	IsolateUserns bool
	CgroupPidsMax uint32
	CgroupMemMax  uint64
	CgroupCPUMax  string
	Labels        []string

	SocketDir string // instance runtime dir; pod-<uuid>.sock/.meta live here
	AliasName string // sanitized alias, may be empty
	SesSocket string // path to ses.sock, for the uplink; empty disables it
}

// Pod owns one PTY and every channel attached to it.
type Pod struct {
	cfg Config

	proc      *ptyexec.Process
	childPid  int
	backlog   *backlog
	broadcast *broadcaster

	// streamMu makes (backlog write + broadcast send) atomic against a
	// consumer's (snapshot + subscribe), so the backlog_end boundary is
	// exact: nothing is lost or duplicated across the attach seam.
	streamMu sync.Mutex

	ses *wire.Conn

	listener net.Listener
	exited   atomic.Bool
}

// Run spawns the child, starts serving the pod socket, and blocks until
// the child exits; closing the listener alone does not make it return.
// readyFn, if non-nil, is
// called exactly once the socket is listening and the child has been
// exec'd — the caller uses it to emit the readiness handshake line.
func Run(cfg Config, readyFn func(childPid int)) error {
	p := &Pod{cfg: cfg, backlog: newBacklog(), broadcast: newBroadcaster()}

	sockPath := filepath.Join(cfg.SocketDir, "pod-"+wire.UUIDHex(cfg.UUID)+".sock")

	// HEXE_PANE_UUID/HEXE_POD_SOCKET let the shell-integration hooks
	// (shp) find their own pane's shell-control channel without the
	// shell needing to be told its uuid any other way.
	paneEnv := append([]string{
		"HEXE_PANE_UUID=" + wire.UUIDHex(cfg.UUID),
		"HEXE_POD_SOCKET=" + sockPath,
	}, cfg.PaneEnv...)

	proc, err := ptyexec.Spawn(ptyexec.Options{
		Shell: cfg.Shell, Args: cfg.ShellArgs, Cwd: cfg.Cwd,
		Extra: cfg.Env, PaneEnv: paneEnv,
		Isolate: cfg.Isolated, IsolateUserns: cfg.IsolateUserns,
		CgroupPidsMax: cfg.CgroupPidsMax, CgroupMemMax: cfg.CgroupMemMax, CgroupCPUMax: cfg.CgroupCPUMax,
		CgroupSliceDir: "pod-" + shortUUID(cfg.UUID),
	})
	if err != nil {
		return fmt.Errorf("pod: spawning shell: %w", err)
	}
	p.proc = proc
	p.childPid = proc.Cmd.Process.Pid

	os.Remove(sockPath)
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		proc.Close()
		return fmt.Errorf("pod: listening on %s: %w", sockPath, err)
	}
	p.listener = ln

	if err := p.writeMeta(); err != nil {
		slog.Warn("pod: writing discovery meta failed", "err", err)
	}

	p.connectSesUplink()

	go p.acceptLoop()
	go p.readLoop()
	go p.foregroundLoop()

	if readyFn != nil {
		readyFn(p.childPid)
	}

	return p.waitLoop()
}

func shortUUID(id uuid.UUID) string {
	return wire.UUIDHex(id)[:8]
}

// writeMeta atomically writes this pod's discovery record.
func (p *Pod) writeMeta() error {
	rec := discovery.PodRecord{
		UUID: wire.UUIDHex(p.cfg.UUID), Name: p.cfg.Name, Pid: os.Getpid(), ChildPid: p.childPid,
		Cwd: p.cfg.Cwd, Shell: p.cfg.Shell, Isolated: p.cfg.Isolated, Labels: p.cfg.Labels,
		CreatedAt: time.Now().Unix(),
	}
	return discovery.WriteMeta(p.cfg.SocketDir, rec)
}

func (p *Pod) removeMeta() {
	discovery.RemoveMeta(p.cfg.SocketDir, wire.UUIDHex(p.cfg.UUID), p.cfg.AliasName)
}

// connectSesUplink opens the SES uplink channel (handshake 0x03) used to
// forward shell events and the final exited{status} message. A failed
// connection is non-fatal: standalone pods (`pod new` with no SES) run
// without one.
func (p *Pod) connectSesUplink() {
	if p.cfg.SesSocket == "" {
		return
	}
	nc, err := net.Dial("unix", p.cfg.SesSocket)
	if err != nil {
		slog.Debug("pod: no SES uplink available", "err", err)
		return
	}
	if err := wire.WriteHandshake(nc, wire.HandshakeSesPodUplink); err != nil {
		nc.Close()
		slog.Debug("pod: SES uplink handshake failed", "err", err)
		return
	}
	if err := wire.WriteRawUUID(nc, p.cfg.UUID); err != nil {
		nc.Close()
		slog.Debug("pod: SES uplink uuid follow-up failed", "err", err)
		return
	}
	p.ses = wire.NewConn(nc)
}

func (p *Pod) sendToSes(msgType wire.MsgType, payload []byte) {
	if p.ses == nil {
		return
	}
	if err := p.ses.WriteMessage(msgType, payload); err != nil {
		slog.Debug("pod: SES uplink write failed", "err", err)
	}
}

// acceptLoop dispatches each incoming connection by its handshake byte.
func (p *Pod) acceptLoop() {
	for {
		nc, err := p.listener.Accept()
		if err != nil {
			return // listener closed, pod is shutting down
		}
		go p.handleConn(nc)
	}
}

func (p *Pod) handleConn(nc net.Conn) {
	h, err := wire.ReadHandshake(nc, wire.HandshakePodVT, wire.HandshakePodShellCtl, wire.HandshakePodAuxInput)
	if err != nil {
		nc.Close()
		return
	}
	switch h {
	case wire.HandshakePodVT:
		p.serveVT(nc)
	case wire.HandshakePodShellCtl:
		p.serveShellCtl(nc)
	case wire.HandshakePodAuxInput:
		p.serveAuxInput(nc)
	}
}

// serveVT replays the backlog, emits backlog_end, then streams live
// output frames and accepts input/resize frames from this consumer. The
// backlog is always written before any new output.
func (p *Pod) serveVT(nc net.Conn) {
	defer nc.Close()

	p.streamMu.Lock()
	snap := p.backlog.snapshot()
	id, ch := p.broadcast.subscribe(64)
	p.streamMu.Unlock()
	defer p.broadcast.unsubscribe(id)

	if len(snap) > 0 {
		if err := podframe.WriteFrame(nc, podframe.Output, snap); err != nil {
			return
		}
	}
	if err := podframe.WriteFrame(nc, podframe.BacklogEnd, nil); err != nil {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		r := podframe.NewReader()
		buf := make([]byte, 4096)
		for {
			n, err := nc.Read(buf)
			if n > 0 {
				r.Feed(buf[:n], func(f podframe.Frame) { p.handleVTFrame(f) })
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case data, ok := <-ch:
			if !ok {
				return
			}
			if err := podframe.WriteFrame(nc, podframe.Output, data); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (p *Pod) handleVTFrame(f podframe.Frame) {
	switch f.Kind {
	case podframe.Input:
		p.proc.Master.Write(f.Payload)
	case podframe.Resize:
		cols, rows, err := podframe.DecodeResizePayload(f.Payload)
		if err == nil {
			p.proc.Resize(cols, rows)
		}
	}
}

// serveAuxInput writes input frames straight to the PTY with no backlog
// replay and no broadcast-back; the PTY's own echo covers attached VT
// consumers.
func (p *Pod) serveAuxInput(nc net.Conn) {
	defer nc.Close()
	r := podframe.NewReader()
	buf := make([]byte, 4096)
	for {
		n, err := nc.Read(buf)
		if n > 0 {
			r.Feed(buf[:n], func(f podframe.Frame) {
				if f.Kind == podframe.Input {
					p.proc.Master.Write(f.Payload)
				}
			})
		}
		if err != nil {
			return
		}
	}
}

// serveShellCtl parses SHP control frames and forwards structured events
// to SES; the pod itself never interprets the shell's meaning.
func (p *Pod) serveShellCtl(nc net.Conn) {
	defer nc.Close()
	r := podframe.NewReader()
	buf := make([]byte, 4096)
	for {
		n, err := nc.Read(buf)
		if n > 0 {
			r.Feed(buf[:n], func(f podframe.Frame) {
				if f.Kind != podframe.Control {
					return
				}
				ev, decErr := shp.Decode(f.Payload)
				if decErr != nil {
					return
				}
				p.forwardShellEvent(ev)
			})
		}
		if err != nil {
			return
		}
	}
}

func (p *Pod) forwardShellEvent(ev shp.Event) {
	msg := wire.UpdatePaneShellMsg{Uuid: p.cfg.UUID, Jobs: uint32(ev.Jobs), Cmd: ev.Cmd, Cwd: ev.Cwd}
	if ev.Status != nil {
		msg.HasStatus = true
		msg.Status = *ev.Status
	}
	if ev.DurationMs != nil {
		msg.HasDuration = true
		msg.DurationMs = *ev.DurationMs
	}
	p.sendToSes(wire.MsgUpdatePaneShell, msg.Encode())
}

// readLoop pumps PTY output into the backlog and broadcaster until the
// PTY reports EOF/EIO.
func (p *Pod) readLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := p.proc.Master.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			p.streamMu.Lock()
			p.backlog.write(data)
			p.broadcast.send(data)
			p.streamMu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

// foregroundLoop periodically resolves the PTY's foreground process
// group and looks up its executable name via go-ps, publishing it over
// the SES uplink. Probe failures are non-fatal; this is best-effort
// metadata, not a correctness requirement.
func (p *Pod) foregroundLoop() {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		if p.exited.Load() {
			return
		}
		pgrp, err := foregroundPgrp(p.proc.Master)
		if err != nil {
			continue
		}
		proc, err := psutil.FindProcess(pgrp)
		if err != nil || proc == nil {
			continue
		}
		msg := wire.UpdatePaneAuxMsg{
			Uuid: p.cfg.UUID, Cwd: procCwd(p.childPid),
			FgName: proc.Executable(), FgPid: uint32(pgrp),
		}
		p.sendToSes(wire.MsgUpdatePaneAux, msg.Encode())
	}
}

func procCwd(pid int) string {
	link, err := os.Readlink(fmt.Sprintf("/proc/%d/cwd", pid))
	if err != nil {
		return ""
	}
	return link
}

// waitLoop blocks for the child's exit, then tears everything down and
// notifies SES with the final exited{status} uplink message.
func (p *Pod) waitLoop() error {
	waitErr := p.proc.Cmd.Wait()
	p.exited.Store(true)

	status := int32(0)
	var exitErr *exec.ExitError
	if waitErr != nil {
		if errors.As(waitErr, &exitErr) {
			status = int32(exitErr.ExitCode())
		} else {
			status = -1
		}
	}

	msg := wire.PaneExitedMsg{Uuid: p.cfg.UUID, Status: status}
	p.sendToSes(wire.MsgPaneExited, msg.Encode())
	if p.ses != nil {
		p.ses.Close()
	}

	p.listener.Close()
	p.proc.Close()
	p.removeMeta()

	return nil
}

// ReadyLine renders the stdout readiness handshake: exactly one
// newline-terminated JSON object once the socket is listening and the
// child is exec'd.
func ReadyLine(childPid int) string {
	b, _ := json.Marshal(struct {
		Type string `json:"type"`
		Pid  int    `json:"pid"`
	}{Type: "pod_ready", Pid: childPid})
	return string(b) + "\n"
}

// WaitForReady reads one readiness line from r within the bounded
// deadline, used by SES/CLI launchers of a pod. Callers fail closed if
// the line never arrives.
func WaitForReady(r io.Reader, deadline time.Duration) (pid int, err error) {
	type ready struct {
		Pid int `json:"pid"`
	}
	lineCh := make(chan []byte, 1)
	errCh := make(chan error, 1)
	go func() {
		buf := make([]byte, 0, 256)
		tmp := make([]byte, 64)
		for {
			n, rerr := r.Read(tmp)
			if n > 0 {
				buf = append(buf, tmp[:n]...)
				if i := bytes.IndexByte(buf, '\n'); i >= 0 {
					lineCh <- buf[:i]
					return
				}
			}
			if rerr != nil {
				errCh <- rerr
				return
			}
		}
	}()
	select {
	case line := <-lineCh:
		var rd ready
		if jerr := json.Unmarshal(line, &rd); jerr != nil {
			return 0, fmt.Errorf("pod: malformed readiness line: %w", jerr)
		}
		return rd.Pid, nil
	case err := <-errCh:
		return 0, fmt.Errorf("pod: readiness stream closed: %w", err)
	case <-time.After(deadline):
		return 0, fmt.Errorf("pod: readiness handshake timed out after %s", deadline)
	}
}
