//go:build !linux

package ptyexec

// cgroupManager is a no-op on non-Linux platforms; cgroup v2 is a Linux
// kernel facility.
type cgroupManager struct{}

func newCgroupManager(sliceDir string, pidsMax uint32, memMax uint64, cpuMax string) (*cgroupManager, error) {
	return nil, nil
}

func (c *cgroupManager) AddPID(pid int) error { return nil }
func (c *cgroupManager) Destroy()             {}
