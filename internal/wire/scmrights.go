package wire

import (
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
)

func isEPIPE(err error) bool {
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, os.ErrClosed)
}

// SendFD sends data plus one open file descriptor as an SCM_RIGHTS
// ancillary message over a Unix socket. Used when a daemon needs to hand
// a descriptor to a peer; the core protocol otherwise keeps the PTY
// master fd local to its owning POD and never does this for PTY fds
// themselves.
func SendFD(conn *net.UnixConn, data []byte, fd int) error {
	rights := syscall.UnixRights(fd)
	n, oobn, err := conn.WriteMsgUnix(data, rights, nil)
	if err != nil {
		return fmt.Errorf("wire: sendmsg with SCM_RIGHTS: %w", err)
	}
	if n != len(data) || oobn != len(rights) {
		return fmt.Errorf("wire: short sendmsg with SCM_RIGHTS")
	}
	return nil
}

// RecvFD receives data plus at most one file descriptor. Returns fd == -1
// if no ancillary data was attached.
func RecvFD(conn *net.UnixConn, dataBuf []byte) (n int, fd int, err error) {
	oob := make([]byte, syscall.CmsgSpace(4))
	n, oobn, _, _, err := conn.ReadMsgUnix(dataBuf, oob)
	if err != nil {
		return n, -1, fmt.Errorf("wire: recvmsg with SCM_RIGHTS: %w", err)
	}
	if oobn == 0 {
		return n, -1, nil
	}
	cmsgs, err := syscall.ParseSocketControlMessage(oob[:oobn])
	if err != nil {
		return n, -1, fmt.Errorf("wire: parsing control message: %w", err)
	}
	for _, cmsg := range cmsgs {
		fds, err := syscall.ParseUnixRights(&cmsg)
		if err != nil {
			continue
		}
		if len(fds) > 0 {
			return n, fds[0], nil
		}
	}
	return n, -1, nil
}
