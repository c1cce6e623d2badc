package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"livesub/internal/queue"
)

func newTasksCommand(ctx *commandContext) *cobra.Command {
	tasksCmd := &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"task"},
		Short:   "Inspect and manage daemon transcription tasks",
	}
	tasksCmd.AddCommand(newTasksListCommand(ctx))
	tasksCmd.AddCommand(newTasksShowCommand(ctx))
	tasksCmd.AddCommand(newTasksCancelCommand(ctx))
	tasksCmd.AddCommand(newTasksCleanupCommand(ctx))
	return tasksCmd
}

func newTasksListCommand(ctx *commandContext) *cobra.Command {
	var statusFilters []string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatusFilters(statusFilters)
			if err != nil {
				return err
			}
			cl, err := ctx.daemonClient(cmd.Context(), false)
			if err != nil {
				return err
			}
			tasks, err := cl.Tasks(cmd.Context(), statuses...)
			if err != nil {
				return err
			}
			if ctx.jsonMode() {
				return writeJSON(cmd, tasks)
			}
			out := cmd.OutOrStdout()
			if len(tasks) == 0 {
				fmt.Fprintln(out, "No tasks")
				return nil
			}
			fmt.Fprintln(out, renderTaskTable(tasks))
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&statusFilters, "status", "s", nil, "Filter by status (repeatable or comma separated)")
	return cmd
}

func newTasksShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := ctx.daemonClient(cmd.Context(), false)
			if err != nil {
				return err
			}
			task, err := cl.Task(cmd.Context(), strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			if ctx.jsonMode() {
				return writeJSON(cmd, task)
			}
			out := cmd.OutOrStdout()
			writeLines(out, renderTaskDetail(task, shouldColorize(out)))
			return nil
		},
	}
}

func newTasksCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a running task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := ctx.daemonClient(cmd.Context(), false)
			if err != nil {
				return err
			}
			message, err := cl.Cancel(cmd.Context(), strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), message)
			return nil
		},
	}
}

func newTasksCleanupCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup <id>",
		Short: "Remove a task and its work directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := ctx.daemonClient(cmd.Context(), false)
			if err != nil {
				return err
			}
			message, err := cl.Cleanup(cmd.Context(), strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), message)
			return nil
		},
	}
}

func parseStatusFilters(values []string) ([]queue.Status, error) {
	var statuses []queue.Status
	for _, value := range values {
		if strings.TrimSpace(value) == "" {
			continue
		}
		status, ok := queue.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown task status %q", value)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}
