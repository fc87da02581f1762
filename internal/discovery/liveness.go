package discovery

import (
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// IsLive reports whether path's sibling socket is currently connectable.
// Stale sockets are detected by failed connect; there is no heartbeat or
// pid check, only this.
func IsLive(path string) bool {
	conn, err := net.DialTimeout("unix", path, 200*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// GC deletes meta files whose sibling socket is unconnectable and alias
// symlinks (pod@*.sock) whose target is unconnectable. Returns the names
// removed.
func GC(dir string) ([]string, error) {
	records, err := List(dir)
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, r := range records {
		sock := SocketPath(dir, r)
		if IsLive(sock) {
			continue
		}
		metaName := "pod-" + r.UUID + ".meta"
		if err := os.Remove(filepath.Join(dir, metaName)); err == nil {
			removed = append(removed, metaName)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return removed, nil
	}
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "pod@") || !strings.HasSuffix(name, ".sock") {
			continue
		}
		target := filepath.Join(dir, name)
		if IsLive(target) {
			continue
		}
		if err := os.Remove(target); err == nil {
			removed = append(removed, name)
		}
	}
	return removed, nil
}
