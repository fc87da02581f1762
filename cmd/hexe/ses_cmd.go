package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hexe-sh/hexe/internal/config"
	"github.com/hexe-sh/hexe/internal/ses"
	"github.com/hexe-sh/hexe/internal/wire"
)

func sesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ses",
		Short: "SES registry daemon: session/pane metadata, popup routing",
	}
	cmd.AddCommand(sesDaemonCmd(), sesStatusCmd(), sesListCmd())
	return cmd
}

func sesDaemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the SES registry daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			layout := resolveLayout(false)

			// A second SES for the same instance exits silently rather
			// than clobbering the first.
			if ses.AlreadyRunning(layout) {
				return nil
			}

			if err := layout.EnsureDirs(); err != nil {
				return fmt.Errorf("ses: %w", err)
			}
			cfg, err := config.Load(layout.ConfigFile())
			if err != nil {
				return err
			}

			self, err := os.Executable()
			if err != nil {
				return fmt.Errorf("ses: resolving self path: %w", err)
			}
			launcher := ses.PodLauncher{SelfExe: self, InstanceName: layout.Name}
			orphanTimeout := time.Duration(cfg.Ses.OrphanTimeoutHours) * time.Hour

			srv := ses.NewServer(layout, launcher, orphanTimeout)
			if err := srv.Reg.Load(layout.StateFile()); err != nil {
				slog.Warn("ses: loading persisted state failed, starting empty", "err", err)
			}

			stopCh := make(chan struct{})
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
			go func() {
				<-sigCh
				close(stopCh)
			}()

			return srv.Run(stopCh)
		},
	}
}

func sesStatusCmd() *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show connected clients, detached sessions, orphaned and sticky panes",
		RunE: func(cmd *cobra.Command, args []string) error {
			layout := resolveLayout(false)
			c, err := dialCLI(layout)
			if err != nil {
				os.Exit(1)
			}
			defer c.Close()

			tree, err := c.Status(full)
			if err != nil {
				return err
			}
			printStatusTree(tree)
			if full {
				for _, cl := range tree.Clients {
					fmt.Printf("layout #%d: %s\n", cl.ClientID, cl.LayoutJSON)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "Include full layout JSON blobs")
	return cmd
}

func printStatusTree(tree wire.StatusTreeMsg) {
	fmt.Printf("clients (%d):\n", len(tree.Clients))
	for _, c := range tree.Clients {
		fmt.Printf("  #%d session=%s (%s)\n", c.ClientID, c.SessionID, c.SessionName)
	}
	fmt.Printf("detached sessions (%d):\n", len(tree.DetachedSessions))
	for _, s := range tree.DetachedSessions {
		fmt.Printf("  %s (%s) panes=%d\n", s.SessionID, s.SessionName, s.PaneCount)
	}
	fmt.Printf("orphaned panes (%d):\n", len(tree.OrphanedPanes))
	for _, p := range tree.OrphanedPanes {
		fmt.Printf("  %s cwd=%s\n", p.Uuid, p.Cwd)
	}
	fmt.Printf("sticky panes (%d):\n", len(tree.StickyPanes))
	for _, p := range tree.StickyPanes {
		fmt.Printf("  %s cwd=%s\n", p.Uuid, p.Cwd)
	}
}

func sesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List detached sessions known to this instance's SES",
		RunE: func(cmd *cobra.Command, args []string) error {
			layout := resolveLayout(false)
			c, err := dialCLI(layout)
			if err != nil {
				os.Exit(1)
			}
			defer c.Close()

			sessions, err := c.ListSessions()
			if err != nil {
				return err
			}
			if len(sessions.Sessions) == 0 {
				fmt.Println("no detached sessions")
				return nil
			}
			fmt.Printf("%-36s %-16s %s\n", "SESSION", "NAME", "PANES")
			for _, s := range sessions.Sessions {
				fmt.Printf("%-36s %-16s %d\n", s.SessionID, s.SessionName, s.PaneCount)
			}
			return nil
		},
	}
}
