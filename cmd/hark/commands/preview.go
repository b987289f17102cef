package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hark-assistant/hark/pkg/engine"
)

func newPreviewCommand() *cobra.Command {
	var (
		planFile   string
		confirm    []int
		confirmAll bool
	)

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Describe what a plan would do",
		Long: `Describe each step of a plan without executing anything.

The output annotates parallel steps, steps that would be blocked for lack of
confirmation, and steps waiting on earlier ones.`,
		Example: `  hark preview --plan plan.json`,
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

			fmt.Println(rt.engine.PreviewPlan(cmd.Context(), plan, engine.ExecuteOptions{
				ConfirmedSteps: confirmed,
				ConfirmAll:     confirmAll,
			}))
			return nil
		},
	}

	cmd.Flags().StringVarP(&planFile, "plan", "p", "", "plan file to preview (JSON or YAML)")
	cmd.Flags().IntSliceVar(&confirm, "confirm", nil, "step indices to treat as confirmed")
	cmd.Flags().BoolVar(&confirmAll, "confirm-all", false, "treat every gated step as confirmed")
	_ = cmd.MarkFlagRequired("plan")

	return cmd
}
