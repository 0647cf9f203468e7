// Package usecases implements the step scheduler: the walker that executes
// a definition tree with sequence, parallel, bounded-iteration, conditional
// and subworkflow semantics, honoring join policies, failure policies,
// cooperative cancellation and checkpoint-based resume.
package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/recipeflow/recipeflow/internal/app/dto"
	"github.com/recipeflow/recipeflow/internal/core/capability"
	"github.com/recipeflow/recipeflow/internal/core/run"
	"github.com/recipeflow/recipeflow/internal/core/step"
	"github.com/recipeflow/recipeflow/internal/infrastructure/metrics"
	"github.com/recipeflow/recipeflow/internal/logging"
)

// Scheduler executes definitions against a capability registry. It is safe
// to share one Scheduler across concurrent runs; all per-run state lives in
// the run.State passed to Execute.
type Scheduler struct {
	registry    *capability.Registry
	library     Library
	checkpoints Checkpointer
	config      dto.RunConfig
	logger      *logging.Logger
}

// NewScheduler creates a scheduler. library and checkpoints may be nil when
// subworkflows or checkpointing are not needed.
func NewScheduler(registry *capability.Registry, library Library, checkpoints Checkpointer, config dto.RunConfig, logger *logging.Logger) *Scheduler {
	config.Normalize()
	if logger == nil {
		logger = logging.Nop()
	}
	return &Scheduler{
		registry:    registry,
		library:     library,
		checkpoints: checkpoints,
		config:      config,
		logger:      logger,
	}
}

// env carries walk-invariant execution context down the step tree.
type env struct {
	// depth counts nested subworkflow calls.
	depth int
	// top is true while the walk has not entered a concurrent construct.
	// Checkpoints and suspension are only observed at top-level boundaries,
	// so a snapshot never captures a half-merged join.
	top bool
}

// execution is the per-run walker state.
type execution struct {
	sched *Scheduler
	state *run.State
}

// Execute drives state through the definition tree to a terminal status.
// The returned error mirrors the terminal status cause; partial evidence is
// always retained on the state.
func (s *Scheduler) Execute(ctx context.Context, def *step.Definition, state *run.State) error {
	metrics.RunStarted()
	defer metrics.RunFinished()

	ex := &execution{sched: s, state: state}
	err := ex.exec(ctx, env{top: true}, def.Root, "", state.Root, run.RootFrame(state))
	switch {
	case err == nil:
		state.Finish(run.StatusCompleted, "")
	case errors.Is(err, run.ErrSuspended):
		state.SetStatus(run.StatusSuspended)
	case errors.Is(err, run.ErrCancelled), errors.Is(err, context.Canceled):
		state.Finish(run.StatusCancelled, err.Error())
	default:
		state.Finish(run.StatusFailed, err.Error())
	}
	return err
}

// exec dispatches one step. path is the parent step path; the step's own
// path extends it, staying unique across iterations and subworkflow calls
// so the applied-output cache never collides.
func (ex *execution) exec(ctx context.Context, ev env, st *step.Step, parent string, scope *run.Scope, frame *run.Frame) error {
	path := parent + "/" + st.ID
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", path, run.ErrCancelled)
	}
	if ev.top && ex.state.CurrentStatus() == run.StatusSuspended {
		if ex.sched.checkpoints != nil {
			if _, err := ex.sched.checkpoints.Snapshot(ctx, ex.state, path); err != nil {
				return fmt.Errorf("suspend at %s: %w", path, err)
			}
			metrics.IncCheckpoints()
		}
		return fmt.Errorf("%s: %w", path, run.ErrSuspended)
	}
	metrics.IncSteps()

	switch st.Type {
	case step.TypeAction:
		return ex.execAction(ctx, st, path, scope, frame)
	case step.TypeSequence:
		return ex.execSequence(ctx, ev, st, path, scope, frame)
	case step.TypeParallel:
		return ex.execParallel(ctx, ev, st, path, scope, frame)
	case step.TypeForEach:
		return ex.execForEach(ctx, ev, st, path, scope, frame)
	case step.TypeConditional:
		return ex.execConditional(ctx, ev, st, path, scope, frame)
	case step.TypeSubWorkflow:
		return ex.execSubWorkflow(ctx, ev, st, path, scope, frame)
	default:
		return fmt.Errorf("%s: step type %q: %w", path, st.Type, run.ErrEngineFault)
	}
}

// execSequence runs children in declaration order inside a child scope;
// published bindings are promoted to the parent when the sequence completes.
func (ex *execution) execSequence(ctx context.Context, ev env, st *step.Step, path string, scope *run.Scope, frame *run.Frame) error {
	child := scope.Child()
	for _, c := range st.Steps {
		if err := ex.exec(ctx, ev, c, path, child, frame); err != nil {
			return err
		}
	}
	child.PromoteTo(scope)
	return nil
}

// execParallel fans branches out into child scopes and buffering frames,
// then merges back in branch order once the join policy is satisfied.
func (ex *execution) execParallel(ctx context.Context, ev env, st *step.Step, path string, scope *run.Scope, frame *run.Frame) error {
	metrics.AddBranches(len(st.Branches))
	childEnv := ev
	childEnv.top = false

	results, joinErr := ex.runJoin(ctx, len(st.Branches), 0, st.Join, func(bctx context.Context, i int) branchResult {
		bscope := scope.Child()
		bframe := frame.Fork()
		err := ex.exec(bctx, childEnv, st.Branches[i], path, bscope, bframe)
		return branchResult{index: i, scope: bscope, frame: bframe, err: err}
	})

	// Evidence and published bindings merge in branch index order no matter
	// which branch finished first; replays stay byte-stable.
	for _, r := range results {
		frame.Absorb(r.frame)
		if r.err == nil && r.scope != nil {
			r.scope.PromoteTo(scope)
		}
	}
	if joinErr != nil {
		if err := ex.stepFailure(st, path, frame, fmt.Errorf("parallel join: %w", joinErr)); err != nil {
			return err
		}
		// Skip-absorbed: the boundary still checkpoints below.
	}
	return ex.maybeCheckpoint(ctx, ev, path)
}

// execForEach iterates a bound list with bounded concurrency. Iterations
// merge back in index order under the step's join policy (default all).
func (ex *execution) execForEach(ctx context.Context, ev env, st *step.Step, path string, scope *run.Scope, frame *run.Frame) error {
	src, ok := scope.Lookup(st.Source)
	if !ok {
		return fmt.Errorf("%s: source %q: %w", path, st.Source, run.ErrUnknownBinding)
	}
	items, err := asList(src)
	if err != nil {
		return fmt.Errorf("%s: source %q: %w", path, st.Source, err)
	}
	if len(items) == 0 {
		return ex.maybeCheckpoint(ctx, ev, path)
	}

	limit := st.MaxConcurrency
	if limit <= 0 {
		limit = ex.sched.config.DefaultConcurrency
	}
	metrics.AddIterations(len(items))
	childEnv := ev
	childEnv.top = false

	results, joinErr := ex.runJoin(ctx, len(items), limit, st.Join, func(ictx context.Context, i int) branchResult {
		iscope := scope.Child()
		iscope.Set(st.Item, items[i])
		iframe := frame.Fork()
		ipath := fmt.Sprintf("%s[%d]", path, i)
		err := ex.exec(ictx, childEnv, st.Body, ipath, iscope, iframe)
		return branchResult{index: i, scope: iscope, frame: iframe, err: err}
	})

	for _, r := range results {
		frame.Absorb(r.frame)
		if r.err == nil && r.scope != nil {
			r.scope.PromoteTo(scope)
		}
	}
	if joinErr != nil {
		if err := ex.stepFailure(st, path, frame, fmt.Errorf("foreach join: %w", joinErr)); err != nil {
			return err
		}
	}
	return ex.maybeCheckpoint(ctx, ev, path)
}

// execConditional evaluates the predicate against current bindings and runs
// the selected branch in the current scope. A false predicate with no else
// branch is a no-op.
func (ex *execution) execConditional(ctx context.Context, ev env, st *step.Step, path string, scope *run.Scope, frame *run.Frame) error {
	match, err := evalPredicate(st.Predicate, scope)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if match {
		return ex.exec(ctx, ev, st.Then, path, scope, frame)
	}
	if st.Else != nil {
		return ex.exec(ctx, ev, st.Else, path, scope, frame)
	}
	return nil
}

// execSubWorkflow resolves the referenced definition and runs it in an
// isolated scope seeded only from the declared params. Declared results are
// copied back into the calling scope and published.
func (ex *execution) execSubWorkflow(ctx context.Context, ev env, st *step.Step, path string, scope *run.Scope, frame *run.Frame) error {
	if ev.depth+1 > ex.sched.config.MaxSubWorkflowDepth {
		return fmt.Errorf("%s: subworkflow depth %d exceeds limit %d", path, ev.depth+1, ex.sched.config.MaxSubWorkflowDepth)
	}
	if ex.sched.library == nil {
		return fmt.Errorf("%s: ref %q: %w", path, st.Ref, dto.ErrDefinitionNotFound)
	}
	def, err := ex.sched.library.Get(st.Ref)
	if err != nil {
		return fmt.Errorf("%s: ref %q: %w", path, st.Ref, err)
	}

	if err := ex.maybeCheckpoint(ctx, ev, path); err != nil {
		return err
	}

	params := make(map[string]interface{}, len(st.Params))
	for child, parentBinding := range st.Params {
		v, ok := scope.Lookup(parentBinding)
		if !ok {
			return fmt.Errorf("%s: param %q from %q: %w", path, child, parentBinding, run.ErrUnknownBinding)
		}
		params[child] = v
	}

	subScope := run.NewScope(params)
	subEnv := env{depth: ev.depth + 1, top: ev.top}
	if err := ex.exec(ctx, subEnv, def.Root, path, subScope, frame); err != nil {
		return ex.stepFailure(st, path, frame, err)
	}

	for parentBinding, child := range st.Results {
		if v, ok := subScope.Lookup(child); ok {
			scope.Set(parentBinding, v)
			scope.Publish(parentBinding)
		}
	}
	return nil
}

// stepFailure applies the step's failure policy to err. Cancellation and
// suspension always propagate; a skip policy converts the failure into
// error evidence and lets the parent continue.
func (ex *execution) stepFailure(st *step.Step, path string, frame *run.Frame, err error) error {
	if errors.Is(err, run.ErrCancelled) || errors.Is(err, run.ErrSuspended) || errors.Is(err, context.Canceled) {
		return err
	}
	if st.OnFailure == step.Skip {
		if ex.state.SkippedAt(path) {
			// Resume re-walk: the restored log already holds this failure.
			return nil
		}
		category := "step_failure"
		if st.Evidence != nil && st.Evidence.Category != "" {
			category = st.Evidence.Category
		}
		frame.Record(run.Evidence{
			SourceStep:  path,
			Category:    category,
			Description: err.Error(),
			Err:         true,
			Timestamp:   time.Now(),
		})
		ex.state.MarkSkipped(path)
		ex.sched.logger.Info("step %s failed, continuing per skip policy: %v", path, err)
		return nil
	}
	return fmt.Errorf("%s: %w", path, err)
}

// maybeCheckpoint snapshots the run at a top-level step boundary.
func (ex *execution) maybeCheckpoint(ctx context.Context, ev env, boundary string) error {
	if !ev.top || !ex.sched.config.Checkpoints || ex.sched.checkpoints == nil {
		return nil
	}
	if _, err := ex.sched.checkpoints.Snapshot(ctx, ex.state, boundary); err != nil {
		return fmt.Errorf("checkpoint at %s: %w", boundary, err)
	}
	metrics.IncCheckpoints()
	ex.sched.logger.Debug("checkpoint saved at %s", boundary)
	return nil
}
