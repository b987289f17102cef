package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hark-assistant/hark/pkg/stores"
)

func newHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect run history",
		Long:  `List past plan runs and their recorded events.`,
	}

	cmd.AddCommand(newHistoryListCommand())
	cmd.AddCommand(newHistoryShowCommand())
	cmd.AddCommand(newHistoryDeleteCommand())

	return cmd
}

func newHistoryListCommand() *cobra.Command {
	var (
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List past runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.shutdown()

			store, err := historyStore(rt)
			if err != nil {
				return err
			}

			runs, err := store.ListRuns(cmd.Context(), limit, offset)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("No runs recorded")
				return nil
			}

			for _, run := range runs {
				fmt.Printf("%s  %-9s  %d steps  %s%s\n",
					run.ID, run.Status, run.StepCount,
					run.StartedAt.Format(time.RFC3339),
					runOutcome(run))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "runs to skip")

	return cmd
}

func newHistoryShowCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a run and its events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.shutdown()

			store, err := historyStore(rt)
			if err != nil {
				return err
			}

			run, err := store.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Run:     %s\n", run.ID)
			fmt.Printf("Status:  %s\n", run.Status)
			fmt.Printf("Steps:   %d\n", run.StepCount)
			fmt.Printf("Started: %s\n", run.StartedAt.Format(time.RFC3339))
			if run.CompletedAt != nil {
				fmt.Printf("Ended:   %s\n", run.CompletedAt.Format(time.RFC3339))
			}
			if run.Summary != nil {
				fmt.Printf("Summary: %s\n", *run.Summary)
			}
			if run.Error != nil {
				fmt.Printf("Error:   %s\n", *run.Error)
			}

			events, err := store.ListEvents(cmd.Context(), run.ID, limit, 0)
			if err != nil {
				return err
			}
			if len(events) > 0 {
				fmt.Println("\nEvents:")
				for _, event := range events {
					step := ""
					if event.StepIndex >= 0 {
						step = fmt.Sprintf(" step=%d", event.StepIndex)
					}
					fmt.Printf("  %s  %-17s%s  %s\n",
						event.Timestamp.Format("15:04:05.000"),
						event.Type, step, event.Message)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 100, "maximum events to show")

	return cmd
}

func newHistoryDeleteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a run and its events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.shutdown()

			store, err := historyStore(rt)
			if err != nil {
				return err
			}

			if err := store.DeleteRun(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted run %s\n", args[0])
			return nil
		},
	}

	return cmd
}

func historyStore(rt *runtime) (stores.Store, error) {
	if rt.store == nil {
		return nil, fmt.Errorf("run history storage is disabled in the configuration")
	}
	return rt.store, nil
}

func runOutcome(run *stores.Run) string {
	switch {
	case run.Error != nil:
		return "  " + *run.Error
	case run.Summary != nil:
		return "  " + *run.Summary
	default:
		return ""
	}
}
