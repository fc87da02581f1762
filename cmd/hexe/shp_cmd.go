package main

import (
	"fmt"
	"net"
	"os"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/hexe-sh/hexe/internal/podframe"
	"github.com/hexe-sh/hexe/internal/sesclient"
	"github.com/hexe-sh/hexe/internal/shp"
	"github.com/hexe-sh/hexe/internal/wire"
)

func shpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "shp",
		Short:  "Shell-integration hooks: prompt lifecycle events forwarded to the owning pane",
		Hidden: true,
	}
	cmd.AddCommand(shpInitCmd(), shpPromptCmd(), shpExitIntentCmd(), shpShellEventCmd(), shpSpinnerCmd())
	return cmd
}

// shpInitCmd prints a shell-specific snippet wiring prompt hooks to the
// other shp subcommands, in the vein of a starship/direnv-style `init`
// verb: a one-shot eval'd script, not a persistent process.
func shpInitCmd() *cobra.Command {
	var shell string
	cmd := &cobra.Command{
		Use:   "init <bash|zsh>",
		Short: "Print the shell snippet that wires prompt hooks to shp events",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				shell = args[0]
			}
			switch shell {
			case "zsh":
				fmt.Print(zshInitSnippet)
			default:
				fmt.Print(bashInitSnippet)
			}
			return nil
		},
	}
	return cmd
}

const bashInitSnippet = `__hexe_preexec() { hexe shp shell-event --start --cmd "$BASH_COMMAND"; }
__hexe_precmd() { hexe shp shell-event --end --status "$?"; hexe shp prompt; }
trap '__hexe_preexec' DEBUG
PROMPT_COMMAND="__hexe_precmd${PROMPT_COMMAND:+;$PROMPT_COMMAND}"
`

const zshInitSnippet = `autoload -Uz add-zsh-hook
__hexe_preexec() { hexe shp shell-event --start --cmd "$1"; }
__hexe_precmd() { hexe shp shell-event --end --status "$?"; hexe shp prompt; }
add-zsh-hook preexec __hexe_preexec
add-zsh-hook precmd __hexe_precmd
`

// dialShellCtl opens the calling pane's own shell-control channel,
// resolved from the HEXE_POD_SOCKET environment variable the pod sets on
// every pane's child process.
func dialShellCtl() (net.Conn, error) {
	sock := os.Getenv("HEXE_POD_SOCKET")
	if sock == "" {
		return nil, fmt.Errorf("shp: HEXE_POD_SOCKET is not set (not running inside a hexe pane?)")
	}
	nc, err := net.Dial("unix", sock)
	if err != nil {
		return nil, fmt.Errorf("shp: dialing %s: %w", sock, err)
	}
	if err := wire.WriteHandshake(nc, wire.HandshakePodShellCtl); err != nil {
		nc.Close()
		return nil, err
	}
	return nc, nil
}

// sendShellEvent is a no-op outside an interactive shell (stdin not a
// TTY): a script sourcing the init snippet in a non-interactive subshell
// would otherwise flood SES with prompt events nobody is watching.
func sendShellEvent(ev shp.Event) error {
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return nil
	}
	nc, err := dialShellCtl()
	if err != nil {
		return err
	}
	defer nc.Close()
	payload, err := shp.Encode(ev)
	if err != nil {
		return err
	}
	return podframe.WriteFrame(nc, podframe.Control, payload)
}

func shpPromptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prompt",
		Short: "Notify the owning pane that a fresh prompt is about to be displayed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, _ := os.Getwd()
			return sendShellEvent(shp.Event{Type: shp.CommandEnd, Cwd: cwd, Running: false})
		},
	}
}

func shpShellEventCmd() *cobra.Command {
	var (
		start  bool
		end    bool
		cmdStr string
		status int
		jobs   int
	)
	cmd := &cobra.Command{
		Use:   "shell-event",
		Short: "Report a command-start or command-end lifecycle event",
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, _ := os.Getwd()
			switch {
			case start:
				return sendShellEvent(shp.NewCommandStart(cmdStr, cwd, jobs, 0))
			case end:
				return sendShellEvent(shp.NewCommandEnd(cmdStr, cwd, int32(status), 0, jobs))
			default:
				return fmt.Errorf("shp shell-event: one of --start or --end is required")
			}
		},
	}
	cmd.Flags().BoolVar(&start, "start", false, "Report a command starting")
	cmd.Flags().BoolVar(&end, "end", false, "Report a command ending")
	cmd.Flags().StringVar(&cmdStr, "cmd", "", "Command line text")
	cmd.Flags().IntVar(&status, "status", 0, "Exit status (with --end)")
	cmd.Flags().IntVar(&jobs, "jobs", 0, "Background job count")
	return cmd
}

func shpSpinnerCmd() *cobra.Command {
	var jobs int
	cmd := &cobra.Command{
		Use:   "spinner",
		Short: "Report the current background-job count for a status-line spinner",
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, _ := os.Getwd()
			return sendShellEvent(shp.Event{Type: shp.Spinner, Cwd: cwd, Running: jobs > 0, Jobs: jobs})
		},
	}
	cmd.Flags().IntVar(&jobs, "jobs", 0, "Background job count")
	return cmd
}

// shpExitIntentCmd asks SES to route an exit-intent query to the MUX
// presently attached to this pane; the result is reported purely via
// exit code (0 allow, 1 deny) with no stdout. The SES dispatch only
// confirms the query reached the owner, so a successfully-routed query
// is treated as allow and an error (no owner, no SES) as deny.
func shpExitIntentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exit-intent",
		Short: "Ask whether the owning MUX permits this pane to exit right now",
		RunE: func(cmd *cobra.Command, args []string) error {
			paneID := os.Getenv("HEXE_PANE_UUID")
			if paneID == "" {
				os.Exit(1)
			}
			layout := resolveLayout(false)
			c, err := sesclient.DialCLI(layout.SesSocket())
			if err != nil {
				os.Exit(1)
			}
			defer c.Close()

			id, err := uuid.Parse(paneID)
			if err != nil {
				os.Exit(1)
			}
			if err := c.ExitIntent(id); err != nil {
				os.Exit(1)
			}
			return nil
		},
	}
}
