// Package ptyexec creates the shell child process a pod owns: a PTY
// pair, an exec.Cmd wired to its slave end, and the optional
// Landlock/cgroup v2 sandbox layers. The sandboxed path re-execs this
// same binary as a stage-2 init so the Landlock self-restriction (which
// must run in the child, after fork, before the real program replaces
// it) has somewhere to live; os/exec gives no hook for arbitrary Go code
// between fork and exec.
package ptyexec

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/creack/pty"
)

// Options describes the child process a pod should launch.
type Options struct {
	Shell   string   // argv[0], resolved via PATH if not absolute
	Args    []string // remaining argv, may be empty
	Cwd     string
	Extra   []string // extra KEY=VALUE pairs appended after BOX/TERM
	PaneEnv []string // MUX-provided HEXE_PANE_UUID etc, appended last

	Isolate        bool // HEXE_POD_ISOLATE
	IsolateUserns  bool // HEXE_POD_ISOLATE_USERNS (advisory, off by default)
	CgroupPidsMax  uint32
	CgroupMemMax   uint64
	CgroupCPUMax   string
	CgroupSliceDir string // "pod-<uuid8>" leaf name
}

// Process is a spawned shell: its PTY master end plus the underlying
// exec.Cmd for Wait/Pid/Signal.
type Process struct {
	Master  *os.File
	Cmd     *exec.Cmd
	Cgroup  *cgroupManager
}

const stage2Verb = "__pod_exec_stage2"

// Spawn allocates a PTY and starts the shell described by opts. When
// opts.Isolate is set, the immediate child is a re-exec of this binary
// that applies the Landlock ruleset to itself before exec'ing the real
// shell (see stage2.go); otherwise the shell is exec'd directly.
func Spawn(opts Options) (*Process, error) {
	env := buildEnv(opts)

	var cmd *exec.Cmd
	if opts.Isolate {
		self, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("ptyexec: resolving self path for sandboxed spawn: %w", err)
		}
		stage2Args := append([]string{stage2Verb, strconv.FormatBool(opts.IsolateUserns), opts.Cwd, opts.Shell}, opts.Args...)
		cmd = exec.Command(self, stage2Args...)
	} else {
		cmd = exec.Command(opts.Shell, opts.Args...)
	}
	cmd.Dir = opts.Cwd
	cmd.Env = env

	master, err := pty.Start(cmd)
	if err != nil {
		return nil, fmt.Errorf("ptyexec: starting pty: %w", err)
	}

	p := &Process{Master: master, Cmd: cmd}

	if opts.Isolate && cmd.Process != nil {
		cg, err := newCgroupManager(opts.CgroupSliceDir, opts.CgroupPidsMax, opts.CgroupMemMax, opts.CgroupCPUMax)
		if err != nil {
			// best-effort; an unusable cgroup tree never blocks the spawn
		} else if cg != nil {
			if err := cg.AddPID(cmd.Process.Pid); err != nil {
				cg.Destroy()
				cg = nil
			}
		}
		p.Cgroup = cg
	}

	return p, nil
}

// Resize applies a new terminal size to the PTY master.
func (p *Process) Resize(cols, rows uint16) error {
	return pty.Setsize(p.Master, &pty.Winsize{Cols: cols, Rows: rows})
}

// Close releases the PTY master and any cgroup created for this process.
// It does not kill the child; callers signal/wait separately.
func (p *Process) Close() error {
	err := p.Master.Close()
	if p.Cgroup != nil {
		p.Cgroup.Destroy()
	}
	return err
}
