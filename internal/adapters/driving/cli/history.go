package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/redleaf/internal/core/domain"
)

var historyLimit int

// historyTasks are the task IDs that record runs.
var historyTasks = []string{
	domain.TaskIDDiscover,
	domain.TaskIDCache,
	domain.TaskIDPipeline,
	domain.TaskIDPeriodicDiscovery,
}

var historyCmd = &cobra.Command{
	Use:   "history [task]",
	Short: "Show maintenance run history",
	Long: `Without arguments, shows the periodic triggers and the latest run of each
maintenance task. With a task ID, lists its recent runs.

Tasks: discover, cache, pipeline, periodic-discovery`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "maximum number of runs")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	if taskHistory == nil {
		return errors.New("task history not configured")
	}
	ctx := cmd.Context()

	if len(args) == 1 {
		runs, err := taskHistory.Runs(ctx, args[0], historyLimit)
		if err != nil {
			return fmt.Errorf("failed to read history: %w", err)
		}
		if len(runs) == 0 {
			cmd.Printf("No runs recorded for %s.\n", args[0])
			return nil
		}
		for _, r := range runs {
			printRun(cmd, r)
		}
		return nil
	}

	triggers, err := taskHistory.Triggers(ctx)
	if err != nil {
		return fmt.Errorf("failed to read triggers: %w", err)
	}
	cmd.Println("Triggers:")
	if len(triggers) == 0 {
		cmd.Println("  (none)")
	}
	for _, t := range triggers {
		state := "every " + t.Interval.String()
		if !t.Enabled {
			state = "disabled"
		}
		cmd.Printf("  %-20s %-14s next %s\n", t.ID, state, formatTime(t.NextRun))
		if t.LastError != "" {
			cmd.Printf("  %-20s last error: %s\n", "", t.LastError)
		}
	}

	cmd.Println()
	cmd.Println("Latest runs:")
	for _, id := range historyTasks {
		runs, err := taskHistory.Runs(ctx, id, 1)
		if err != nil {
			return fmt.Errorf("failed to read history: %w", err)
		}
		if len(runs) == 0 {
			cmd.Printf("  %-20s never\n", id)
			continue
		}
		cmd.Printf("  %-20s ", id)
		printRun(cmd, runs[0])
	}
	return nil
}

func printRun(cmd *cobra.Command, r domain.TaskResult) {
	outcome := "ok"
	if !r.Success {
		outcome = "failed"
	}
	cmd.Printf("%s  %-6s  %d items  %s\n",
		formatTime(r.StartedAt), outcome, r.ItemsProcessed, r.EndedAt.Sub(r.StartedAt).Round(time.Millisecond))
	if r.Error != "" {
		cmd.Printf("    %s\n", r.Error)
	}
}
