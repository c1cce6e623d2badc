package main

import (
	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var skipHealth bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, task, and stage status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := ctx.daemonClient(cmd.Context(), false)
			if err != nil {
				return err
			}
			status, err := cl.Status(cmd.Context(), !skipHealth)
			if err != nil {
				return err
			}
			if ctx.jsonMode() {
				return writeJSON(cmd, status)
			}
			out := cmd.OutOrStdout()
			writeLines(out, renderDaemonStatus(status, shouldColorize(out)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipHealth, "no-health", false, "Skip stage health checks")
	return cmd
}
