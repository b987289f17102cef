package engine

import (
	"fmt"
	"sort"
)

// stage is one scheduling unit: either a single standalone step or one
// parallel group. Stages execute strictly in order; the steps inside a group
// stage execute concurrently.
type stage struct {
	steps    []int
	parallel bool
}

// Validate checks the plan's structural consistency: non-empty, step indices
// matching positions, valid action kinds, coherent group membership, and
// StepCompleted preconditions that only reference steps guaranteed to have
// executed earlier. Intent-level validation is the planner's job.
func (p *TaskPlan) Validate() error {
	if p == nil || len(p.Steps) == 0 {
		return NewFatalError("plan has no steps", nil)
	}

	for i, step := range p.Steps {
		if step.Index != i {
			return NewFatalError(
				fmt.Sprintf("step at position %d has index %d", i, step.Index), nil)
		}
		if err := step.Kind.Validate(); err != nil {
			return NewFatalError(fmt.Sprintf("step %d: %v", i, err), nil)
		}
	}

	seen := make(map[int]int)
	for g, group := range p.Groups {
		if len(group) == 0 {
			return NewFatalError(fmt.Sprintf("group %d is empty", g), nil)
		}
		for _, idx := range group {
			if idx < 0 || idx >= len(p.Steps) {
				return NewFatalError(
					fmt.Sprintf("group %d references invalid step index %d", g, idx), nil)
			}
			if prev, ok := seen[idx]; ok {
				return NewFatalError(
					fmt.Sprintf("step %d belongs to both group %d and group %d", idx, prev, g), nil)
			}
			seen[idx] = g
		}
	}

	stages := p.stages()
	stageOf := make(map[int]int, len(p.Steps))
	for s, st := range stages {
		for _, idx := range st.steps {
			stageOf[idx] = s
		}
	}

	// A StepCompleted(j) precondition is only answerable if j settles before
	// the depending step starts, i.e. j is in a strictly earlier stage.
	for _, step := range p.Steps {
		for _, pre := range step.Preconditions {
			if pre.Kind != PreconditionStepCompleted {
				continue
			}
			j := pre.StepIndex
			if j < 0 || j >= len(p.Steps) {
				return NewFatalError(
					fmt.Sprintf("step %d precondition references invalid step %d", step.Index, j), nil)
			}
			if stageOf[j] >= stageOf[step.Index] {
				return NewFatalError(
					fmt.Sprintf("step %d depends on step %d, which is not scheduled earlier", step.Index, j), nil)
			}
		}
	}

	return nil
}

// stages computes the plan's execution order: each group forms one parallel
// stage anchored at its smallest member index, every ungrouped step forms a
// sequential stage of one, and stages are ordered by their anchor index.
func (p *TaskPlan) stages() []stage {
	grouped := make(map[int]bool)
	stages := make([]stage, 0, len(p.Steps))

	for _, group := range p.Groups {
		members := append([]int(nil), group...)
		sort.Ints(members)
		for _, idx := range members {
			grouped[idx] = true
		}
		stages = append(stages, stage{steps: members, parallel: true})
	}

	for i := range p.Steps {
		if !grouped[i] {
			stages = append(stages, stage{steps: []int{i}})
		}
	}

	sort.Slice(stages, func(a, b int) bool {
		return stages[a].steps[0] < stages[b].steps[0]
	})

	return stages
}

// GroupCount returns the number of parallel groups in the plan.
func (p *TaskPlan) GroupCount() int {
	return len(p.Groups)
}
