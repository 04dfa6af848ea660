package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"demoflow/internal/api"
)

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	sessionsCmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session"},
		Short:   "Manage daemon sessions",
	}

	sessionsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List live session ids",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			var resp api.SessionListResponse
			if err := client.do(cmd.Context(), http.MethodGet, "/api/sessions", &resp); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(resp.Sessions) == 0 {
				fmt.Fprintln(out, "No sessions")
				return nil
			}
			for _, id := range resp.Sessions {
				fmt.Fprintln(out, id)
			}
			return nil
		},
	})

	sessionsCmd.AddCommand(&cobra.Command{
		Use:   "create",
		Short: "Create a session and print its id",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			var resp api.SessionResponse
			if err := client.do(cmd.Context(), http.MethodPost, "/api/sessions", &resp); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Session.ID)
			return nil
		},
	})

	sessionsCmd.AddCommand(&cobra.Command{
		Use:   "delete <session-id>",
		Short: "Close a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			if err := client.do(cmd.Context(), http.MethodDelete, "/api/sessions/"+args[0], nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Closed session %s\n", args[0])
			return nil
		},
	})

	return sessionsCmd
}
