package engine_test

import (
	"context"
	"fmt"

	"github.com/hark-assistant/hark/pkg/engine"
)

// Example_workflow demonstrates how the core types compose together in a
// typical hark execution: build a plan, preview it, then execute it.
func Example_workflow() {
	// 1. The planner produced a three-step plan; steps 1 and 2 may run
	// concurrently.
	plan := &engine.TaskPlan{
		Steps: []engine.ActionStep{
			{
				Index: 0,
				Kind:  engine.ActionLaunchApp,
				Params: map[string]engine.ParamValue{
					"app": engine.StringParam("chrome"),
				},
			},
			{
				Index: 1,
				Kind:  engine.ActionVolumeControl,
				Params: map[string]engine.ParamValue{
					"level": engine.PercentParam(80),
					"mode":  engine.StringParam("set"),
				},
			},
			{
				Index: 2,
				Kind:  engine.ActionGetTime,
			},
		},
		Groups: [][]int{{1, 2}},
	}

	// 2. Wire an engine. Real deployments pass the actions registry as the
	// dispatcher; a function stub keeps this example self-contained.
	dispatcher := engine.DispatcherFunc(func(_ context.Context, step engine.ActionStep) (string, error) {
		switch step.Kind {
		case engine.ActionLaunchApp:
			return "Launched chrome", nil
		case engine.ActionVolumeControl:
			return "Volume set to 80%", nil
		default:
			return "It is 3:04 PM", nil
		}
	})
	eng, err := engine.New(engine.Config{Dispatcher: dispatcher})
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	// 3. Preview is side-effect free.
	fmt.Println(eng.PreviewPlan(context.Background(), plan, engine.ExecuteOptions{}))

	// 4. Execute and print the joined step outcomes.
	summary, err := eng.ExecutePlan(context.Background(), plan, engine.ExecuteOptions{})
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println(summary)

	// Output:
	// [DRY-RUN] would execute LaunchApp{app=chrome}
	// [DRY-RUN] would execute VolumeControl{level=80%, mode=set} (parallel)
	// [DRY-RUN] would execute GetTime{} (parallel)
	// Launched chrome; Volume set to 80%; It is 3:04 PM
}

// Example_confirmation shows a confirmation-gated step being blocked and then
// allowed.
func Example_confirmation() {
	plan := &engine.TaskPlan{
		Steps: []engine.ActionStep{
			{
				Index: 0,
				Kind:  engine.ActionSystemControl,
				Params: map[string]engine.ParamValue{
					"operation": engine.StringParam("lock"),
				},
			},
		},
	}

	dispatcher := engine.DispatcherFunc(func(_ context.Context, _ engine.ActionStep) (string, error) {
		return "System lock initiated", nil
	})
	eng, _ := engine.New(engine.Config{Dispatcher: dispatcher})

	_, err := eng.ExecutePlan(context.Background(), plan, engine.ExecuteOptions{})
	fmt.Println("blocked:", engine.IsPolicyViolation(err))

	summary, _ := eng.ExecutePlan(context.Background(), plan, engine.ExecuteOptions{
		ConfirmedSteps: map[int]bool{0: true},
	})
	fmt.Println(summary)

	// Output:
	// blocked: true
	// System lock initiated
}
