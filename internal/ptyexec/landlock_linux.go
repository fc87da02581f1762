//go:build linux

package ptyexec

import (
	"encoding/binary"
	"log/slog"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Landlock syscall numbers. golang.org/x/sys/unix does not wrap these on
// every pinned architecture, so they're dialed directly via unix.Syscall6;
// the numbers come from the generic syscall table every architecture that
// shipped Landlock support (5.13+) uses, including amd64 and arm64.
const (
	sysLandlockCreateRuleset = 444
	sysLandlockAddRule       = 445
	sysLandlockRestrictSelf  = 446
)

const landlockRulePathBeneath = 1

// Landlock access-fs bits, ABI 1 (kernel 5.13): the handled_access_fs
// set every kernel that supports Landlock at all is guaranteed to have.
const (
	accessExecute    uint64 = 1 << 0
	accessWriteFile  uint64 = 1 << 1
	accessReadFile   uint64 = 1 << 2
	accessReadDir    uint64 = 1 << 3
	accessRemoveDir  uint64 = 1 << 4
	accessRemoveFile uint64 = 1 << 5
	accessMakeChar   uint64 = 1 << 6
	accessMakeDir    uint64 = 1 << 7
	accessMakeReg    uint64 = 1 << 8
	accessMakeSock   uint64 = 1 << 9
	accessMakeFifo   uint64 = 1 << 10
	accessMakeBlock  uint64 = 1 << 11
	accessMakeSym    uint64 = 1 << 12
)

const fullAccessFS = accessExecute | accessWriteFile | accessReadFile | accessReadDir |
	accessRemoveDir | accessRemoveFile | accessMakeChar | accessMakeDir | accessMakeReg |
	accessMakeSock | accessMakeFifo | accessMakeBlock | accessMakeSym

const roTraversal = accessExecute | accessReadFile | accessReadDir

type landlockTier struct {
	paths  []string
	access uint64
}

// landlockTiers builds the four path tiers the sandbox grants: read-only
// system paths, bare directory traversal, full read-write working areas,
// and the usual device nodes. home and cwd are resolved by the caller
// since they vary per pod.
func landlockTiers(home, cwd string) []landlockTier {
	return []landlockTier{
		{paths: []string{"/bin", "/usr", "/lib", "/lib64", "/etc", "/proc", "/run"}, access: roTraversal},
		{paths: []string{"/", "/home", "/var"}, access: accessReadDir},
		{paths: []string{home, cwd, "/tmp", "/var/tmp"}, access: fullAccessFS},
		{paths: []string{"/dev/null", "/dev/zero", "/dev/random", "/dev/urandom", "/dev/tty", "/dev/ptmx", "/dev/pts"},
			access: accessReadFile | accessWriteFile | accessReadDir},
	}
}

// ApplyLandlock builds the path-tier ruleset and restricts the calling
// process to it. Every step is best-effort: an unsupported kernel, a
// missing path, or any syscall failure simply skips that piece rather
// than returning a hard error, since the pod must still be able to run
// without the sandbox.
func ApplyLandlock(home, cwd string) {
	attr := make([]byte, 16)
	binary.LittleEndian.PutUint64(attr[0:8], fullAccessFS)
	binary.LittleEndian.PutUint64(attr[8:16], 0)

	rulesetFD, _, errno := unix.Syscall(sysLandlockCreateRuleset, uintptr(unsafe.Pointer(&attr[0])), 16, 0)
	if errno != 0 {
		slog.Debug("ptyexec: landlock_create_ruleset unavailable, continuing without sandbox", "errno", errno)
		return
	}
	defer unix.Close(int(rulesetFD))

	for _, tier := range landlockTiers(home, cwd) {
		for _, path := range tier.paths {
			if path == "" {
				continue
			}
			addPathRule(int(rulesetFD), path, tier.access)
		}
	}

	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		slog.Debug("ptyexec: PR_SET_NO_NEW_PRIVS failed", "err", err)
		return
	}

	if _, _, errno := unix.Syscall(sysLandlockRestrictSelf, rulesetFD, 0, 0); errno != 0 {
		slog.Debug("ptyexec: landlock_restrict_self failed", "errno", errno)
	}
}

func addPathRule(rulesetFD int, path string, access uint64) {
	fd, err := unix.Open(path, unix.O_PATH|unix.O_CLOEXEC, 0)
	if err != nil {
		return // path doesn't exist on this system; skip, best-effort
	}
	defer unix.Close(fd)

	ruleAttr := make([]byte, 12)
	binary.LittleEndian.PutUint64(ruleAttr[0:8], access)
	binary.LittleEndian.PutUint32(ruleAttr[8:12], uint32(fd))

	_, _, errno := unix.Syscall6(sysLandlockAddRule, uintptr(rulesetFD), landlockRulePathBeneath,
		uintptr(unsafe.Pointer(&ruleAttr[0])), 0, 0, 0)
	if errno != 0 {
		slog.Debug("ptyexec: landlock_add_rule failed", "path", path, "errno", errno)
	}
}
