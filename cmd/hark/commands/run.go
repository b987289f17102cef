package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hark-assistant/hark/pkg/engine"
)

func newRunCommand() *cobra.Command {
	var (
		planFile   string
		dryRun     bool
		confirm    []int
		confirmAll bool
		confidence float64
		resources  []string
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a task plan",
		Long: `Execute a task plan from a JSON or YAML file.

Steps execute in listed order; steps that share a parallel group run
concurrently. Confirmation-gated actions are blocked unless confirmed with
--confirm or --confirm-all. A failed plan unwinds already-completed steps in
reverse order before reporting the failure.`,
		Example: `  # Execute a plan
  hark run --plan plan.json

  # Preview without executing anything
  hark run --plan plan.json --dry-run

  # Confirm the gated step at index 2
  hark run --plan plan.json --confirm 2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.shutdown()

			plan, err := loadPlanFile(planFile)
			if err != nil {
				return err
			}

			confirmed := make(map[int]bool, len(confirm))
			for _, idx := range confirm {
				confirmed[idx] = true
			}
			available := make(map[string]bool, len(resources))
			for _, name := range resources {
				available[name] = true
			}
			opts := engine.ExecuteOptions{
				Confidence:     confidence,
				ConfirmedSteps: confirmed,
				ConfirmAll:     confirmAll,
				Resources:      available,
			}

			if dryRun {
				fmt.Println(rt.engine.PreviewPlan(cmd.Context(), plan, opts))
				return nil
			}

			// Interrupts cancel cooperatively at stage boundaries, so the run
			// context must outlive the command context.
			execCtx := context.WithoutCancel(cmd.Context())
			if timeout > 0 {
				var cancel context.CancelFunc
				execCtx, cancel = context.WithTimeout(execCtx, timeout)
				defer cancel()
			}
			stop := context.AfterFunc(cmd.Context(), rt.engine.Cancel)
			defer stop()

			summary, err := rt.engine.ExecutePlan(execCtx, plan, opts)
			if err != nil {
				return err
			}

			fmt.Println(summary)
			return nil
		},
	}

	cmd.Flags().StringVarP(&planFile, "plan", "p", "", "plan file to execute (JSON or YAML)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "describe the plan without executing it")
	cmd.Flags().IntSliceVar(&confirm, "confirm", nil, "step indices confirmed for gated actions")
	cmd.Flags().BoolVar(&confirmAll, "confirm-all", false, "confirm every gated step")
	cmd.Flags().Float64Var(&confidence, "confidence", 0, "planner confidence (0 means full confidence)")
	cmd.Flags().StringSliceVar(&resources, "resource", nil, "resources to mark as available")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "overall run timeout (0 uses the configured plan timeout)")
	_ = cmd.MarkFlagRequired("plan")

	return cmd
}
