package instance

import (
	"strings"
	"testing"
)

func TestSanitize(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", ""},
		{"dev", "dev"},
		{"dev box!!", "devbox"},
		{"a/b\\c", "abc"},
		{strings.Repeat("x", 40), strings.Repeat("x", maxNameLen)},
	}
	for _, c := range cases {
		if got := Sanitize(c.in); got != c.want {
			t.Errorf("Sanitize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestResolveNamespacesPaths(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	t.Setenv("XDG_STATE_HOME", "/home/u/.local/state")

	def := Resolve("")
	dev := Resolve("dev")

	if def.SesSocket() == dev.SesSocket() {
		t.Fatalf("default and named instance must not share a socket path")
	}
	if !strings.Contains(dev.SesSocket(), "/dev/") {
		t.Errorf("expected instance name in path, got %q", dev.SesSocket())
	}
	if strings.Contains(def.SesSocket(), "/dev/") {
		t.Errorf("default instance must not be namespaced under a name")
	}
}

func TestTestInstanceNameFormat(t *testing.T) {
	name := TestInstanceName()
	if !strings.HasPrefix(name, "test-") || len(name) != len("test-")+8 {
		t.Errorf("TestInstanceName() = %q, want test-<8hex>", name)
	}
}
