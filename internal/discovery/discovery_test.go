package discovery

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRecordFormatParseRoundTrip(t *testing.T) {
	r := PodRecord{
		UUID: "0123456789abcdef0123456789abcdef", Name: "main build", Pid: 100, ChildPid: 101,
		Cwd: "/home/x/my project", Shell: "/bin/bash", Isolated: true, Labels: []string{"a", "b"}, CreatedAt: 1700000000,
	}
	got, err := ParseRecord(r.Format())
	if err != nil {
		t.Fatalf("ParseRecord: %v", err)
	}
	if got.UUID != r.UUID || got.Name != r.Name || got.Pid != r.Pid || got.Cwd != r.Cwd ||
		!got.Isolated || len(got.Labels) != 2 || got.CreatedAt != r.CreatedAt {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestParseRecordIgnoresUnknownKeys(t *testing.T) {
	_, err := ParseRecord("HEXE_POD uuid=abc future_field=xyz\n")
	if err != nil {
		t.Fatalf("ParseRecord: %v", err)
	}
}

func TestWriteMetaThenList(t *testing.T) {
	dir := t.TempDir()
	r := PodRecord{UUID: "deadbeefdeadbeefdeadbeefdeadbeef", Name: "main", Pid: 1, ChildPid: 2}
	if err := WriteMeta(dir, r); err != nil {
		t.Fatalf("WriteMeta: %v", err)
	}
	records, err := List(dir)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 1 || records[0].UUID != r.UUID {
		t.Fatalf("got %+v", records)
	}
}

func TestRemoveMetaDeletesMetaAndAlias(t *testing.T) {
	dir := t.TempDir()
	r := PodRecord{UUID: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"}
	if err := WriteMeta(dir, r); err != nil {
		t.Fatalf("WriteMeta: %v", err)
	}
	aliasPath := filepath.Join(dir, "pod@main.sock")
	if err := os.WriteFile(aliasPath, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	RemoveMeta(dir, r.UUID, "main")
	if _, err := os.Stat(filepath.Join(dir, "pod-"+r.UUID+".meta")); !os.IsNotExist(err) {
		t.Error("meta file not removed")
	}
	if _, err := os.Stat(aliasPath); !os.IsNotExist(err) {
		t.Error("alias symlink not removed")
	}
}

func TestGCRemovesDeadOnly(t *testing.T) {
	dir := t.TempDir()

	live := PodRecord{UUID: "11111111111111111111111111111111"}
	sockPath := SocketPath(dir, live)
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	if err := WriteMeta(dir, live); err != nil {
		t.Fatal(err)
	}

	dead := PodRecord{UUID: "22222222222222222222222222222222"}
	if err := WriteMeta(dir, dead); err != nil {
		t.Fatal(err)
	}

	removed, err := GC(dir)
	if err != nil {
		t.Fatalf("GC: %v", err)
	}
	if len(removed) != 1 || removed[0] != "pod-"+dead.UUID+".meta" {
		t.Fatalf("got %v", removed)
	}
	if _, err := os.Stat(filepath.Join(dir, "pod-"+live.UUID+".meta")); err != nil {
		t.Error("live pod's meta was incorrectly removed")
	}
}

func TestWatchEmitsAddedAndRemoved(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deltas := Watch(ctx, dir, 10*time.Millisecond)

	r := PodRecord{UUID: "33333333333333333333333333333333"}
	if err := WriteMeta(dir, r); err != nil {
		t.Fatal(err)
	}

	select {
	case d := <-deltas:
		if d.Kind != Added || d.Record.UUID != r.UUID {
			t.Fatalf("got %+v, want Added %s", d, r.UUID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Added delta")
	}

	RemoveMeta(dir, r.UUID, "")

	select {
	case d := <-deltas:
		if d.Kind != Removed || d.Record.UUID != r.UUID {
			t.Fatalf("got %+v, want Removed %s", d, r.UUID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Removed delta")
	}
}
