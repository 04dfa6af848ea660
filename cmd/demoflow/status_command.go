package main

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"demoflow/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status [session-id]",
		Short: "Show daemon status or render one session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				var status api.DaemonStatus
				if err := client.do(cmd.Context(), http.MethodGet, "/api/status", &status); err != nil {
					return err
				}
				fmt.Fprintf(out, "Daemon: running (pid %d)\n", status.PID)
				fmt.Fprintf(out, "API: %s\n", status.APIAddress)
				fmt.Fprintf(out, "Lock: %s\n", status.LockFilePath)
				fmt.Fprintf(out, "Sessions: %d\n", status.Sessions)
				return nil
			}
			view, err := client.session(cmd.Context(), strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprint(out, renderSidebar(view, shouldColorize(out)))
			return nil
		},
	}
}
