package main

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/hexe-sh/hexe/internal/muxside"
	"github.com/hexe-sh/hexe/internal/podframe"
	"github.com/hexe-sh/hexe/internal/sesclient"
	"github.com/hexe-sh/hexe/internal/wire"
)

func muxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mux",
		Short: "MUX-side client: session creation, attach, floats, and the thin pass-through attach loop",
	}
	cmd.AddCommand(muxNewCmd(), muxAttachCmd(), muxFloatCmd(), muxNotifyCmd(), muxSendCmd(), muxInfoCmd(), muxFocusCmd())
	return cmd
}

func muxNewCmd() *cobra.Command {
	var (
		shell    string
		cwd      string
		isolate  bool
		testOnly bool
	)
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Register a fresh session with SES, create one pane, and attach to it",
		RunE: func(cmd *cobra.Command, args []string) error {
			layout := resolveLayout(testOnly)
			c, err := sesclient.Dial(layout.SesSocket(), sesclient.Handlers{})
			if err != nil {
				fmt.Fprintln(os.Stderr, "ses daemon is not running")
				os.Exit(1)
			}
			defer c.Close()

			reg, err := c.Register(uuid.Nil, true, "")
			if err != nil {
				return err
			}

			pane, err := c.CreatePane(wire.CreatePaneMsg{Shell: shell, Cwd: cwd, Isolated: isolate})
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "session %s pane %s\n", reg.SessionID, pane.Uuid)
			return attachToPodSocket(pane.SocketPath)
		},
	}
	cmd.Flags().StringVar(&shell, "shell", "", "Shell/command to exec in the new pane")
	cmd.Flags().StringVar(&cwd, "cwd", "", "Working directory for the new pane")
	cmd.Flags().BoolVar(&isolate, "isolate", false, "Sandbox the new pane (Landlock + cgroup v2)")
	cmd.Flags().BoolVarP(&testOnly, "test-only", "T", false, "Force a disposable test-<random> instance namespace, ignoring HEXE_INSTANCE")
	return cmd
}

func muxAttachCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "attach <pane-uuid>",
		Short: "Adopt an existing pane through SES and attach the thin pass-through loop to it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			layout := resolveLayout(false)
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("mux attach: invalid pane uuid: %w", err)
			}

			c, err := sesclient.Dial(layout.SesSocket(), sesclient.Handlers{})
			if err != nil {
				fmt.Fprintln(os.Stderr, "ses daemon is not running")
				os.Exit(1)
			}
			if _, err := c.Register(uuid.Nil, true, ""); err != nil {
				c.Close()
				return err
			}
			info, found, err := c.AdoptPane(id)
			c.Close()
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("mux attach: no such pane %s", id)
			}
			return attachToPodSocket(info.SocketPath)
		},
	}
}

// attachToPodSocket is the thin pass-through attach loop: it puts the
// local terminal into raw mode, copies the replayed backlog and live VT
// frames straight to stdout, copies stdin to the pod's input channel
// with a tmux-style Ctrl+B d detach filter spliced in, and forwards
// SIGWINCH as resize frames. No status line is composited.
func attachToPodSocket(sockPath string) error {
	nc, err := net.Dial("unix", sockPath)
	if err != nil {
		return fmt.Errorf("mux: dialing pod socket: %w", err)
	}
	defer nc.Close()
	if err := wire.WriteHandshake(nc, wire.HandshakePodVT); err != nil {
		return err
	}

	// A non-TTY stdin (piped input, a script driving `mux attach`) skips
	// raw mode and resize tracking entirely rather than fighting a
	// pipe's semantics.
	interactive := isatty.IsTerminal(os.Stdin.Fd())

	var guard *muxside.RawModeGuard
	if interactive {
		if guard, err = muxside.EnableRawMode(); err == nil {
			defer guard.Restore()
		}
		if cols, rows, err := muxside.TerminalSize(); err == nil {
			_ = podframe.WriteFrame(nc, podframe.Resize, podframe.ResizePayload(cols, rows))
		}
	}
	resizeCh, stopResize := muxside.ResizeSignal()
	defer stopResize()
	go func() {
		for range resizeCh {
			if !interactive {
				continue
			}
			if cols, rows, err := muxside.TerminalSize(); err == nil {
				_ = podframe.WriteFrame(nc, podframe.Resize, podframe.ResizePayload(cols, rows))
			}
		}
	}()

	filter := muxside.NewDetachFilter()
	detachedCh := make(chan struct{})
	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := os.Stdin.Read(buf)
			if n > 0 {
				fwd, hit := filter.Scan(buf[:n])
				if len(fwd) > 0 {
					if werr := podframe.WriteFrame(nc, podframe.Input, fwd); werr != nil {
						return
					}
				}
				if hit {
					close(detachedCh)
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	outputDone := make(chan struct{})
	go func() {
		defer close(outputDone)
		for {
			f, err := podframe.ReadFrame(nc)
			if err != nil {
				return
			}
			if f == nil {
				continue
			}
			switch f.Kind {
			case podframe.Output:
				os.Stdout.Write(f.Payload)
			case podframe.BacklogEnd:
				// backlog replay complete; nothing further to do.
			}
		}
	}()

	select {
	case <-detachedCh:
	case <-outputDone:
	}
	return nil
}

func muxFloatCmd() *cobra.Command {
	var (
		cmdStr string
		title  string
		cwd    string
	)
	cmd := &cobra.Command{
		Use:   "float",
		Short: "Request SES route a floating-pane request to the owning MUX",
		RunE: func(cmd *cobra.Command, args []string) error {
			layout := resolveLayout(false)
			c, err := sesclient.Dial(layout.SesSocket(), sesclient.Handlers{})
			if err != nil {
				fmt.Fprintln(os.Stderr, "ses daemon is not running")
				os.Exit(1)
			}
			defer c.Close()
			if _, err := c.Register(uuid.Nil, false, ""); err != nil {
				return err
			}
			_, err = c.FloatRequest(wire.FloatRequestMsg{Cmd: cmdStr, Title: title, Cwd: cwd})
			return err
		},
	}
	cmd.Flags().StringVar(&cmdStr, "cmd", "", "Command to run in the floating pane")
	cmd.Flags().StringVar(&title, "title", "", "Floating pane title")
	cmd.Flags().StringVar(&cwd, "cwd", "", "Working directory for the floating pane")
	return cmd
}

func muxNotifyCmd() *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "notify <message>",
		Short: "Send a notification to one pane's MUX, or broadcast if --target is omitted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			layout := resolveLayout(false)
			c, err := dialCLI(layout)
			if err != nil {
				os.Exit(1)
			}
			defer c.Close()
			if target == "" {
				return c.BroadcastNotify(args[0])
			}
			id, err := uuid.Parse(target)
			if err != nil {
				return fmt.Errorf("mux notify: invalid --target: %w", err)
			}
			return c.TargetedNotify(id, args[0])
		},
	}
	cmd.Flags().StringVar(&target, "target", "", "Pane uuid to target (broadcasts to all MUX clients if omitted)")
	return cmd
}

func muxSendCmd() *cobra.Command {
	var broadcast bool
	cmd := &cobra.Command{
		Use:   "send <pane-uuid> <text>",
		Short: "Inject keys into one pane (or all panes with --broadcast) via SES",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			layout := resolveLayout(false)
			c, err := dialCLI(layout)
			if err != nil {
				os.Exit(1)
			}
			defer c.Close()
			if broadcast {
				return c.BroadcastKeys([]byte(args[0]))
			}
			if len(args) < 2 {
				return fmt.Errorf("mux send: text argument required")
			}
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("mux send: invalid pane uuid: %w", err)
			}
			return c.SendKeys(id, []byte(args[1]))
		},
	}
	cmd.Flags().BoolVar(&broadcast, "broadcast", false, "Send to every pane instead of one")
	return cmd
}

func muxInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <pane-uuid>",
		Short: "Print SES's view of one pane",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			layout := resolveLayout(false)
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("mux info: invalid pane uuid: %w", err)
			}
			c, err := dialCLI(layout)
			if err != nil {
				os.Exit(1)
			}
			defer c.Close()
			info, err := c.PaneInfo(id)
			if err != nil {
				return err
			}
			fmt.Printf("uuid=%s pid=%d child_pid=%d socket=%s state=%d name=%s focused=%v\n",
				info.Uuid, info.PodPid, info.ChildPid, info.SocketPath, info.State, info.Name, info.IsFocused)
			return nil
		},
	}
}

func muxFocusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "focus <pane-uuid> <up|down|left|right>",
		Short: "Ask the owning MUX to move focus relative to a pane",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			layout := resolveLayout(false)
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("mux focus: invalid pane uuid: %w", err)
			}
			dir := strings.ToLower(args[1])
			c, err := dialCLI(layout)
			if err != nil {
				os.Exit(1)
			}
			defer c.Close()
			return c.FocusMove(id, dir)
		},
	}
	return cmd
}
