package ses

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/google/uuid"

	"github.com/hexe-sh/hexe/internal/pod"
	"github.com/hexe-sh/hexe/internal/wire"
)

// readyTimeout bounds how long create_pane waits for the spawned POD
// process to print its readiness line before giving up.
const readyTimeout = 5 * time.Second

// PodLauncher spawns POD as a genuinely separate OS process rather than
// invoking internal/pod in-process, since a pane must outlive both MUX
// and SES crashes/restarts.
type PodLauncher struct {
	// SelfExe is the hexe binary's own path (os.Executable()).
	SelfExe      string
	InstanceName string
}

// Spawn launches `hexe pod daemon` for the given pane config and blocks
// until the child prints its readiness line on stdout (or times out). It
// returns both the POD daemon's own pid (for signalling the daemon itself
// on kill/GC) and the shell/command pid running under its PTY. The POD
// process is reaped by a background goroutine to avoid a zombie once it
// eventually exits.
func (l PodLauncher) Spawn(id uuid.UUID, shell string, shellArgs []string, cwd string, env []string, isolated bool) (podPid int, childPid int, err error) {
	args := []string{"pod", "daemon",
		"--uuid", wire.UUIDHex(id),
		"--shell", shell,
		"--cwd", cwd,
	}
	if l.InstanceName != "" {
		args = append(args, "--instance", l.InstanceName)
	}
	if isolated {
		args = append(args, "--isolate")
	}
	for _, a := range shellArgs {
		args = append(args, "--shell-arg", a)
	}
	for _, e := range env {
		args = append(args, "--env", e)
	}

	cmd := exec.Command(l.SelfExe, args...)
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, 0, fmt.Errorf("creating pod stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return 0, 0, fmt.Errorf("starting pod process: %w", err)
	}

	pid, err := pod.WaitForReady(stdout, readyTimeout)
	if err != nil {
		_ = cmd.Process.Kill()
		go cmd.Wait()
		return 0, 0, fmt.Errorf("waiting for pod readiness: %w", err)
	}

	go func() {
		_, _ = io.Copy(io.Discard, stdout)
		_ = cmd.Wait()
	}()

	return cmd.Process.Pid, pid, nil
}
