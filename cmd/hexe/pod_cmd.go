package main

import (
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hexe-sh/hexe/internal/config"
	"github.com/hexe-sh/hexe/internal/discovery"
	"github.com/hexe-sh/hexe/internal/instance"
	"github.com/hexe-sh/hexe/internal/pod"
	"github.com/hexe-sh/hexe/internal/podframe"
	"github.com/hexe-sh/hexe/internal/wire"
)

func podCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pod",
		Short: "POD PTY-owning daemon and standalone-pod helpers",
	}
	cmd.AddCommand(podDaemonCmd(), podNewCmd(), podListCmd(), podSendCmd(), podAttachCmd(), podKillCmd(), podGCCmd())
	return cmd
}

func podDaemonCmd() *cobra.Command {
	var (
		uuidStr       string
		name          string
		shell         string
		shellArgs     []string
		cwd           string
		envPairs      []string
		isolate       bool
		isolateUserns bool
		labels        []string
		noUplink      bool
	)
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run a POD daemon owning one PTY in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			layout := resolveLayout(false)
			if err := layout.EnsureDirs(); err != nil {
				return err
			}
			cfg, err := config.Load(layout.ConfigFile())
			if err != nil {
				return err
			}

			id := uuid.New()
			if uuidStr != "" {
				id, err = uuid.Parse(uuidStr)
				if err != nil {
					return fmt.Errorf("pod: invalid --uuid: %w", err)
				}
			}
			if shell == "" {
				shell = cfg.Shell.Default
			}
			if cwd == "" {
				cwd, _ = os.Getwd()
			}

			sesSock := layout.SesSocket()
			if noUplink {
				sesSock = ""
			}

			// HEXE_POD_ISOLATE* request the sandbox; HEXE_CGROUP_* override
			// the config file's limits.
			if os.Getenv("HEXE_POD_ISOLATE") == "1" {
				isolate = true
			}
			if os.Getenv("HEXE_POD_ISOLATE_USERNS") == "1" {
				isolateUserns = true
			}
			pidsMax := uint32(cfg.Cgroup.PidsMax)
			if v := os.Getenv("HEXE_CGROUP_PIDS_MAX"); v != "" {
				if n, err := strconv.ParseUint(v, 10, 32); err == nil {
					pidsMax = uint32(n)
				}
			}
			memMax := parseMemMax(cfg.Cgroup.MemMax)
			if v := os.Getenv("HEXE_CGROUP_MEM_MAX"); v != "" {
				memMax = parseMemMax(v)
			}
			cpuMax := cfg.Cgroup.CPUMax
			if v := os.Getenv("HEXE_CGROUP_CPU_MAX"); v != "" {
				cpuMax = v
			}

			pcfg := pod.Config{
				UUID: id, Name: name, Shell: shell, ShellArgs: shellArgs, Cwd: cwd,
				Env: envPairs, Labels: labels,
				Isolated: isolate || cfg.Pod.IsolateDefault, IsolateUserns: isolateUserns,
				CgroupPidsMax: pidsMax, CgroupMemMax: memMax, CgroupCPUMax: cpuMax,
				SocketDir: layout.RuntimeDir, SesSocket: sesSock,
			}
			alias := ""
			if name != "" {
				alias = instance.Sanitize(name)
				pcfg.AliasName = alias
			}

			return pod.Run(pcfg, func(childPid int) {
				if alias != "" {
					aliasPath := layout.PodAlias(alias)
					os.Remove(aliasPath)
					_ = os.Symlink(layout.PodSocket(wire.UUIDHex(id)), aliasPath)
				}
				fmt.Print(pod.ReadyLine(childPid))
			})
		},
	}
	cmd.Flags().StringVar(&uuidStr, "uuid", "", "Pane UUID (random if omitted)")
	cmd.Flags().StringVar(&name, "name", "", "Human-readable pod name (also used for the alias symlink)")
	cmd.Flags().StringVar(&shell, "shell", "", "Shell/command to exec (defaults to $SHELL)")
	cmd.Flags().StringSliceVar(&shellArgs, "shell-arg", nil, "Extra argv entries for the shell")
	cmd.Flags().StringVar(&cwd, "cwd", "", "Working directory (defaults to the current directory)")
	cmd.Flags().StringSliceVar(&envPairs, "env", nil, "Extra KEY=VALUE environment entries")
	cmd.Flags().BoolVar(&isolate, "isolate", false, "Apply the Landlock+cgroup sandbox to the child")
	cmd.Flags().BoolVar(&isolateUserns, "isolate-userns", false, "Also request user namespace isolation (advisory)")
	cmd.Flags().StringSliceVar(&labels, "label", nil, "Discovery labels")
	cmd.Flags().BoolVar(&noUplink, "no-uplink", false, "Do not connect to SES even if it is running (standalone pod)")
	return cmd
}

func podNewCmd() *cobra.Command {
	var (
		shell string
		cwd   string
		name  string
	)
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Launch a standalone POD (no SES/MUX) in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			layout := resolveLayout(false)
			if err := layout.EnsureDirs(); err != nil {
				return err
			}
			self, err := os.Executable()
			if err != nil {
				return err
			}
			id := uuid.New()
			cliArgs := []string{"pod", "daemon", "--uuid", wire.UUIDHex(id), "--no-uplink"}
			if instanceFlag != "" {
				cliArgs = append(cliArgs, "--instance", instanceFlag)
			}
			if shell != "" {
				cliArgs = append(cliArgs, "--shell", shell)
			}
			if cwd != "" {
				cliArgs = append(cliArgs, "--cwd", cwd)
			}
			if name != "" {
				cliArgs = append(cliArgs, "--name", name)
			}

			spawn := exec.Command(self, cliArgs...)
			spawn.Env = os.Environ()
			stdout, err := spawn.StdoutPipe()
			if err != nil {
				return err
			}
			spawn.Stderr = os.Stderr
			if err := spawn.Start(); err != nil {
				return err
			}
			childPid, err := pod.WaitForReady(stdout, 3*time.Second)
			if err != nil {
				return err
			}
			go func() {
				_, _ = io.Copy(io.Discard, stdout)
				_ = spawn.Wait()
			}()
			fmt.Printf("%s\t%d\t%s\n", wire.UUIDHex(id), childPid, layout.PodSocket(wire.UUIDHex(id)))
			return nil
		},
	}
	cmd.Flags().StringVar(&shell, "shell", "", "Shell/command to exec (defaults to $SHELL)")
	cmd.Flags().StringVar(&cwd, "cwd", "", "Working directory")
	cmd.Flags().StringVar(&name, "name", "", "Human-readable name / alias")
	return cmd
}

func podListCmd() *cobra.Command {
	var (
		jsonOut bool
		live    bool
		watch   bool
		label   string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pods discovered in this instance's runtime directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			layout := resolveLayout(false)

			keep := func(r discovery.PodRecord) bool {
				if label == "" {
					return true
				}
				for _, l := range r.Labels {
					if l == label {
						return true
					}
				}
				return false
			}
			printRecord := func(r discovery.PodRecord) {
				alive := true
				if live {
					alive = discovery.IsLive(discovery.SocketPath(layout.RuntimeDir, r))
				}
				if jsonOut {
					fmt.Printf("{\"uuid\":%q,\"name\":%q,\"pid\":%d,\"child_pid\":%d,\"cwd\":%q,\"shell\":%q,\"isolated\":%v,\"alive\":%v}\n",
						r.UUID, r.Name, r.Pid, r.ChildPid, r.Cwd, r.Shell, r.Isolated, alive)
					return
				}
				status := ""
				if live {
					status = " live=" + strconv.FormatBool(alive)
				}
				fmt.Printf("%s  %-16s pid=%d child=%d cwd=%s%s\n", r.UUID, r.Name, r.Pid, r.ChildPid, r.Cwd, status)
			}

			if watch {
				ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer cancel()
				for d := range discovery.Watch(ctx, layout.RuntimeDir, 2*time.Second) {
					if !keep(d.Record) {
						continue
					}
					verb := "added"
					if d.Kind == discovery.Removed {
						verb = "removed"
					}
					fmt.Printf("%s ", verb)
					printRecord(d.Record)
				}
				return nil
			}

			records, err := discovery.List(layout.RuntimeDir)
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			for _, r := range records {
				if keep(r) {
					printRecord(r)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON lines")
	cmd.Flags().BoolVar(&live, "live", false, "Probe liveness by connecting to each pod's socket")
	cmd.Flags().BoolVar(&watch, "watch", false, "Keep scanning and print added/removed deltas until interrupted")
	cmd.Flags().StringVar(&label, "label", "", "Only show pods carrying this label")
	return cmd
}

func podSendCmd() *cobra.Command {
	var useStdin bool
	cmd := &cobra.Command{
		Use:   "send <uuid> [text]",
		Short: "Write input directly to a pod's PTY over its aux-input channel",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			layout := resolveLayout(false)
			sockPath := layout.PodSocket(args[0])

			var data []byte
			if useStdin {
				b, err := io.ReadAll(os.Stdin)
				if err != nil {
					return err
				}
				data = b
			} else if len(args) > 1 {
				data = []byte(args[1] + "\n")
			} else {
				return fmt.Errorf("pod send: text argument or --stdin required")
			}

			nc, err := net.Dial("unix", sockPath)
			if err != nil {
				return fmt.Errorf("pod send: dialing %s: %w", sockPath, err)
			}
			defer nc.Close()
			if err := wire.WriteHandshake(nc, wire.HandshakePodAuxInput); err != nil {
				return err
			}
			return podframe.WriteFrame(nc, podframe.Input, data)
		},
	}
	cmd.Flags().BoolVar(&useStdin, "stdin", false, "Read input from stdin")
	return cmd
}

func podAttachCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "attach <uuid>",
		Short: "Attach this terminal directly to a pod's VT stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			layout := resolveLayout(false)
			return attachToPodSocket(layout.PodSocket(args[0]))
		},
	}
}

func podKillCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kill <uuid>",
		Short: "Send SIGTERM to the pod daemon owning the given pane",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			layout := resolveLayout(false)
			records, err := discovery.List(layout.RuntimeDir)
			if err != nil {
				return err
			}
			for _, r := range records {
				if r.UUID == args[0] || strings.HasPrefix(r.UUID, args[0]) {
					return syscall.Kill(r.Pid, syscall.SIGTERM)
				}
			}
			return fmt.Errorf("pod kill: no pod matching %q", args[0])
		},
	}
}

func podGCCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gc",
		Short: "Remove stale pod meta files and alias symlinks",
		RunE: func(cmd *cobra.Command, args []string) error {
			layout := resolveLayout(false)
			removed, err := discovery.GC(layout.RuntimeDir)
			if err != nil {
				return err
			}
			for _, name := range removed {
				fmt.Println(name)
			}
			return nil
		},
	}
}

// parseMemMax parses a cgroup.toml-style "1G"/"512M"/"100" memory limit
// into bytes, returning 0 (no limit written) for an empty or unparsable
// value.
func parseMemMax(s string) uint64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	mult := uint64(1)
	switch {
	case strings.HasSuffix(s, "G"):
		mult = 1 << 30
		s = strings.TrimSuffix(s, "G")
	case strings.HasSuffix(s, "M"):
		mult = 1 << 20
		s = strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "K"):
		mult = 1 << 10
		s = strings.TrimSuffix(s, "K")
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return n * mult
}
