package ptyexec

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
)

// StageTwoVerb is the hidden argv[1] cmd/hexe recognizes to dispatch into
// RunStage2 before cobra ever sees the argument list.
const StageTwoVerb = stage2Verb

// RunStage2 is the sandboxed-spawn child entrypoint (see Spawn). By the
// time it runs, the process already has its own session, controlling
// terminal and working directory (applied by the fork/exec machinery
// under pty.Start before this code ever runs); it only needs to apply
// the Landlock ruleset to itself and then become the real shell via
// execve. It never returns.
func RunStage2(args []string) {
	if len(args) < 3 {
		fmt.Fprintln(os.Stderr, "ptyexec: stage2 requires isolateUserns cwd shell [args...]")
		os.Exit(127)
	}
	isolateUserns := args[0] == "true"
	cwd := args[1]
	shellArgv := args[2:]

	if isolateUserns {
		slog.Debug("ptyexec: user namespace isolation requested but not implemented, continuing without it")
	}

	home := os.Getenv("HOME")
	if home == "" {
		home = cwd
	}
	ApplyLandlock(home, cwd)

	shellPath, err := exec.LookPath(shellArgv[0])
	if err != nil {
		shellPath = shellArgv[0]
	}
	if err := syscall.Exec(shellPath, shellArgv, os.Environ()); err != nil {
		fmt.Fprintf(os.Stderr, "ptyexec: exec %s failed: %v\n", shellArgv[0], err)
		os.Exit(126)
	}
}
