//go:build linux

package ptyexec

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// cgroupManager owns one cgroup v2 leaf created for a single pod's child
// process, under hexe/pod-<uuid8> inside the daemon's own cgroup.
type cgroupManager struct {
	path string
}

// newCgroupManager creates /sys/fs/cgroup<rel>/hexe/<sliceDir>/ and
// applies the given limits. Returns (nil, nil) whenever cgroups v2 isn't
// usable or any step fails; the sandbox is best-effort.
func newCgroupManager(sliceDir string, pidsMax uint32, memMax uint64, cpuMax string) (*cgroupManager, error) {
	if sliceDir == "" {
		return nil, nil
	}
	if pidsMax == 0 {
		pidsMax = 512
	}

	if _, err := os.Stat("/sys/fs/cgroup/cgroup.controllers"); err != nil {
		return nil, nil
	}
	ownRel, err := readOwnCgroup()
	if err != nil {
		slog.Debug("ptyexec: cannot read own cgroup, skipping cgroup sandbox", "err", err)
		return nil, nil
	}

	parentPath := filepath.Join("/sys/fs/cgroup", ownRel, "hexe")
	if err := os.MkdirAll(parentPath, 0o755); err != nil {
		slog.Debug("ptyexec: cannot create hexe cgroup parent", "err", err)
		return nil, nil
	}
	cgPath := filepath.Join(parentPath, sliceDir)
	if err := os.MkdirAll(cgPath, 0o755); err != nil {
		slog.Debug("ptyexec: cannot create pod cgroup", "path", cgPath, "err", err)
		return nil, nil
	}

	if err := enableControllers(parentPath, []string{"+pids", "+memory", "+cpu"}); err != nil {
		slog.Debug("ptyexec: cannot enable cgroup controllers", "err", err)
		os.Remove(cgPath)
		return nil, nil
	}

	writes := map[string]string{
		"pids.max": fmt.Sprintf("%d", pidsMax),
	}
	if memMax > 0 {
		writes["memory.max"] = fmt.Sprintf("%d", memMax)
	}
	if cpuMax != "" {
		writes["cpu.max"] = cpuMax
	}
	for name, val := range writes {
		if err := os.WriteFile(filepath.Join(cgPath, name), []byte(val), 0o644); err != nil {
			slog.Debug("ptyexec: cannot set cgroup limit", "file", name, "err", err)
			os.Remove(cgPath)
			return nil, nil
		}
	}

	return &cgroupManager{path: cgPath}, nil
}

// AddPID moves pid into this cgroup.
func (c *cgroupManager) AddPID(pid int) error {
	if c == nil {
		return nil
	}
	return os.WriteFile(filepath.Join(c.path, "cgroup.procs"), []byte(fmt.Sprintf("%d", pid)), 0o644)
}

// Destroy removes the leaf cgroup. Processes must have exited first; a
// failure here is logged, not returned, since the caller is usually
// already tearing down.
func (c *cgroupManager) Destroy() {
	if c == nil {
		return
	}
	if err := os.Remove(c.path); err != nil {
		slog.Debug("ptyexec: cannot remove cgroup", "path", c.path, "err", err)
	}
}

func readOwnCgroup() (string, error) {
	data, err := os.ReadFile("/proc/self/cgroup")
	if err != nil {
		return "", fmt.Errorf("read /proc/self/cgroup: %w", err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "0::") {
			return line[3:], nil
		}
	}
	return "", fmt.Errorf("no cgroup v2 entry in /proc/self/cgroup")
}

// enableControllers writes to cgroup.subtree_control, retrying via a
// leaf "hexe-daemon" cgroup if the parent has direct member processes
// (cgroups v2's "no internal processes" rule).
func enableControllers(parentPath string, controllers []string) error {
	payload := strings.Join(controllers, " ")
	controlPath := filepath.Join(parentPath, "cgroup.subtree_control")

	if err := os.WriteFile(controlPath, []byte(payload), 0o644); err == nil {
		return nil
	} else if !strings.Contains(err.Error(), "device or resource busy") {
		return err
	}

	daemonPath := filepath.Join(parentPath, "hexe-daemon")
	if err := os.MkdirAll(daemonPath, 0o755); err != nil {
		return fmt.Errorf("create hexe-daemon cgroup: %w", err)
	}
	if err := os.WriteFile(filepath.Join(daemonPath, "cgroup.procs"), []byte(fmt.Sprintf("%d", os.Getpid())), 0o644); err != nil {
		return fmt.Errorf("move self to hexe-daemon cgroup: %w", err)
	}
	return os.WriteFile(controlPath, []byte(payload), 0o644)
}
