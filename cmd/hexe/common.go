package main

import (
	"fmt"
	"os"

	"github.com/hexe-sh/hexe/internal/instance"
	"github.com/hexe-sh/hexe/internal/sesclient"
)

// resolveLayout builds this invocation's instance.Layout from the
// persistent-flag -I/--instance (falling back to HEXE_INSTANCE); testOnly
// ignores HEXE_INSTANCE, keeps only an explicit -I value, and otherwise
// uses a freshly generated "test-<8hex>" namespace.
func resolveLayout(testOnly bool) instance.Layout {
	if testOnly {
		// HEXE_INSTANCE is deliberately ignored here: a test run must
		// never leak panes into a real session's namespace, so only an
		// explicit -I value survives and anything else gets a generated
		// test-<8hex> name.
		name := instance.Sanitize(instanceFlag)
		if name == "" {
			name = instance.TestInstanceName()
		}
		return instance.Resolve(name)
	}
	return instance.Resolve(instance.Name(instanceFlag))
}

// dialCLI opens a one-shot CLI-channel connection to this instance's
// SES, printing the single-line "ses daemon is not running" failure and
// returning a non-nil error the caller should translate into exit code 1.
func dialCLI(layout instance.Layout) (*sesclient.Client, error) {
	c, err := sesclient.DialCLI(layout.SesSocket())
	if err != nil {
		fmt.Fprintln(os.Stderr, "ses daemon is not running")
		return nil, err
	}
	return c, nil
}
