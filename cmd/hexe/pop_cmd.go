package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// popCmd implements the pane-side popup CLI: a shell (or any script
// running inside a pane) asks its owning MUX to notify, confirm, or
// offer a choice, blocking on the answer over the same CLI channel the
// `ses status`/`ses list` one-shots use. A dropped MUX control fd
// cancels the popup and the CLI exits 1.
func popCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pop",
		Short: "Pane-side popup requests: notify, confirm, choose",
	}
	cmd.AddCommand(popNotifyCmd(), popConfirmCmd(), popChooseCmd())
	return cmd
}

func popPaneUUID(explicit string) (uuid.UUID, error) {
	s := explicit
	if s == "" {
		s = os.Getenv("HEXE_PANE_UUID")
	}
	if s == "" {
		return uuid.UUID{}, fmt.Errorf("pop: --uuid or HEXE_PANE_UUID is required")
	}
	return uuid.Parse(s)
}

func popNotifyCmd() *cobra.Command {
	var uuidStr string
	cmd := &cobra.Command{
		Use:   "notify <message>",
		Short: "Send a notification to this pane's owning MUX",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := popPaneUUID(uuidStr)
			if err != nil {
				return err
			}
			layout := resolveLayout(false)
			c, err := dialCLI(layout)
			if err != nil {
				os.Exit(1)
			}
			defer c.Close()
			return c.TargetedNotify(id, args[0])
		},
	}
	cmd.Flags().StringVar(&uuidStr, "uuid", "", "Pane uuid (defaults to $HEXE_PANE_UUID)")
	return cmd
}

func popConfirmCmd() *cobra.Command {
	var (
		uuidStr   string
		timeoutMs uint32
	)
	cmd := &cobra.Command{
		Use:   "confirm <message>",
		Short: "Ask this pane's owning MUX a yes/no question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := popPaneUUID(uuidStr)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			layout := resolveLayout(false)
			c, err := dialCLI(layout)
			if err != nil {
				os.Exit(1)
			}
			defer c.Close()

			resp, err := c.PopConfirm(id, timeoutMs, args[0])
			if err != nil || resp.Cancelled {
				os.Exit(1)
			}
			if resp.Value == 0 {
				os.Exit(1)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&uuidStr, "uuid", "", "Pane uuid (defaults to $HEXE_PANE_UUID)")
	cmd.Flags().Uint32Var(&timeoutMs, "timeout-ms", 0, "Give up and answer no after this many milliseconds (0 = SES default of 30s)")
	return cmd
}

func popChooseCmd() *cobra.Command {
	var (
		uuidStr   string
		timeoutMs uint32
		title     string
	)
	cmd := &cobra.Command{
		Use:   "choose <item> [item...]",
		Short: "Ask this pane's owning MUX to pick among items",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := popPaneUUID(uuidStr)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			layout := resolveLayout(false)
			c, err := dialCLI(layout)
			if err != nil {
				os.Exit(1)
			}
			defer c.Close()

			resp, err := c.PopChoose(id, timeoutMs, title, args)
			if err != nil || resp.Cancelled {
				os.Exit(1)
			}
			fmt.Println(strconv.Itoa(int(resp.Value)))
			return nil
		},
	}
	cmd.Flags().StringVar(&uuidStr, "uuid", "", "Pane uuid (defaults to $HEXE_PANE_UUID)")
	cmd.Flags().Uint32Var(&timeoutMs, "timeout-ms", 0, "Give up after this many milliseconds (0 = SES default of 30s)")
	cmd.Flags().StringVar(&title, "title", "", "Prompt title")
	return cmd
}
