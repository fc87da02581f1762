// Command hexe is the single binary housing all three of Hexe's
// cooperating processes (MUX, SES, POD) plus the SHP/pop CLI helpers,
// registered as cobra subcommand trees.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hexe-sh/hexe/internal/ptyexec"
)

var instanceFlag string

func main() {
	// The sandboxed-spawn child re-execs this binary with a hidden verb
	// as argv[1] (see internal/ptyexec.Spawn); intercept it before cobra
	// ever parses a flag, since it is not a real subcommand.
	if len(os.Args) > 1 && os.Args[1] == ptyexec.StageTwoVerb {
		ptyexec.RunStage2(os.Args[2:])
		return
	}

	root := &cobra.Command{
		Use:   "hexe",
		Short: "A terminal multiplexer split across cooperating long-lived processes",
	}
	root.PersistentFlags().StringVarP(&instanceFlag, "instance", "I", "", "Instance name (namespaces sockets/state); also read from HEXE_INSTANCE")

	root.AddCommand(
		sesCmd(),
		podCmd(),
		muxCmd(),
		shpCmd(),
		popCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
