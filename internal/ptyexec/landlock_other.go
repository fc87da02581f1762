//go:build !linux

package ptyexec

// ApplyLandlock is a no-op on non-Linux platforms; Landlock is a Linux
// kernel facility.
func ApplyLandlock(home, cwd string) {}
