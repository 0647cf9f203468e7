package usecases

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/recipeflow/recipeflow/internal/core/run"
	"github.com/recipeflow/recipeflow/internal/core/step"
)

// branchResult carries one branch or iteration outcome back to the join.
type branchResult struct {
	index int
	scope *run.Scope
	frame *run.Frame
	err   error
}

// runJoin executes n tasks with at most limit in flight and applies the join
// policy as completions arrive. Once the outcome is decided (first success
// for any, k successes or impossibility for quorum) the remaining tasks are
// cancelled; their late completions do not count as failures. The returned
// slice is indexed by task so callers can merge in deterministic order.
func (ex *execution) runJoin(ctx context.Context, n, limit int, join *step.Join, task func(context.Context, int) branchResult) ([]branchResult, error) {
	policy := step.JoinAll
	quorum := 0
	if join != nil {
		policy = join.Policy
		quorum = join.Quorum
	}
	if policy == step.JoinQuorum && quorum > n {
		return nil, fmt.Errorf("quorum %d exceeds %d branches: %w", quorum, n, run.ErrQuorumImpossible)
	}
	if limit <= 0 || limit > n {
		limit = n
	}

	branchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]branchResult, n)
	done := make(chan int, n)
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-branchCtx.Done():
				// Never started; reports as cancelled, not failed.
				results[i] = branchResult{index: i, err: branchCtx.Err()}
				done <- i
				return
			}
			results[i] = task(branchCtx, i)
			<-sem
			done <- i
		}(i)
	}

	succeeded, failed := 0, 0
	decided := false
	var joinErr error
	for completed := 0; completed < n; completed++ {
		i := <-done
		r := results[i]
		switch {
		case r.err == nil:
			succeeded++
		case decided && errors.Is(r.err, context.Canceled):
			// Late cancellation after the join resolved.
		default:
			failed++
		}
		if decided {
			continue
		}
		switch policy {
		case step.JoinAny:
			if r.err == nil {
				decided = true
				cancel()
			}
		case step.JoinQuorum:
			if succeeded >= quorum {
				decided = true
				cancel()
			} else if succeeded+(n-succeeded-failed) < quorum {
				decided = true
				joinErr = run.ErrQuorumImpossible
				cancel()
			}
		}
	}
	wg.Wait()

	if ctx.Err() != nil && !decided {
		return results, fmt.Errorf("join interrupted: %w", run.ErrCancelled)
	}

	switch policy {
	case step.JoinAll:
		var errs []error
		for _, r := range results {
			if r.err != nil {
				errs = append(errs, fmt.Errorf("branch %d: %w", r.index, r.err))
			}
		}
		if len(errs) > 0 {
			return results, errors.Join(errs...)
		}
	case step.JoinAny:
		if succeeded == 0 {
			var errs []error
			for _, r := range results {
				if r.err != nil {
					errs = append(errs, fmt.Errorf("branch %d: %w", r.index, r.err))
				}
			}
			return results, fmt.Errorf("no branch succeeded: %w", errors.Join(errs...))
		}
	case step.JoinQuorum:
		if joinErr != nil {
			return results, fmt.Errorf("%d succeeded, %d required: %w", succeeded, quorum, joinErr)
		}
	}
	return results, nil
}
