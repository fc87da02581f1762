package pod

import (
	"os"

	"golang.org/x/sys/unix"
)

// foregroundPgrp returns the PTY's current foreground process group,
// used to resolve which process is "in front" for the foreground update
// the pod sends over its SES uplink.
func foregroundPgrp(master *os.File) (int, error) {
	return unix.IoctlGetInt(int(master.Fd()), unix.TIOCGPGRP)
}
