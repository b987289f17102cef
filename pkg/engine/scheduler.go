package engine

import (
	"context"
	"sync"
)

// stepResult is the settled outcome of one group member.
type stepResult struct {
	stepIndex int
	err       error
}

// groupScheduler executes one stage of the plan: a standalone step directly,
// or all members of a parallel group concurrently. A parallel stage lets every
// dispatched member settle before deciding: a failing sibling never cancels
// work that is already in flight, so successful siblings still record their
// outcomes and push their compensation descriptors.
type groupScheduler struct {
	retrier *retrier
}

// runStage executes all steps of one stage and returns the stage's error, if
// any. For a parallel stage with multiple failures, the failure with the
// lowest step index is surfaced so the result is deterministic regardless of
// completion order.
func (s *groupScheduler) runStage(ctx context.Context, ectx *ExecutionContext, steps []ActionStep) error {
	if len(steps) == 1 {
		_, err := s.retrier.run(ctx, ectx, steps[0])
		return err
	}

	results := make([]stepResult, len(steps))
	var wg sync.WaitGroup

	for i, step := range steps {
		wg.Add(1)
		go func(slot int, step ActionStep) {
			defer wg.Done()
			_, err := s.retrier.run(ctx, ectx, step)
			results[slot] = stepResult{stepIndex: step.Index, err: err}
		}(i, step)
	}

	wg.Wait()

	var firstErr error
	firstIdx := -1
	for _, res := range results {
		if res.err == nil {
			continue
		}
		if firstIdx == -1 || res.stepIndex < firstIdx {
			firstIdx = res.stepIndex
			firstErr = res.err
		}
	}

	return firstErr
}
