package recipeflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/recipeflow/recipeflow/internal/adapters/repository/library"
	"github.com/recipeflow/recipeflow/internal/adapters/repository/memory"
	"github.com/recipeflow/recipeflow/internal/app/dto"
	"github.com/recipeflow/recipeflow/internal/app/services"
	"github.com/recipeflow/recipeflow/internal/app/usecases"
	"github.com/recipeflow/recipeflow/internal/core/capability"
	"github.com/recipeflow/recipeflow/internal/core/checkpoint"
	"github.com/recipeflow/recipeflow/internal/core/report"
	"github.com/recipeflow/recipeflow/internal/core/run"
	"github.com/recipeflow/recipeflow/internal/core/step"
	"github.com/recipeflow/recipeflow/internal/logging"
	"github.com/recipeflow/recipeflow/pkg/validation"
)

// Options configures an Engine. Zero-value fields get working defaults:
// an empty registry, an in-memory checkpoint saver, an in-memory
// definition library and a stdout logger.
type Options struct {
	Registry *capability.Registry
	Saver    checkpoint.Saver
	Library  *library.InMemory
	Logger   *logging.Logger
	Config   RunConfig
}

// Engine is the public façade: it validates definitions, starts and resumes
// runs, and serves status and final reports. All dependencies are injected;
// the engine holds no process-wide state.
type Engine struct {
	registry    *capability.Registry
	saver       checkpoint.Saver
	library     *library.InMemory
	logger      *logging.Logger
	config      RunConfig
	checkpoints *services.CheckpointService
	scheduler   *usecases.Scheduler

	mu   sync.RWMutex
	runs map[string]*runEntry
}

type runEntry struct {
	state  *run.State
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// New creates an engine with the given options.
func New(opts Options) *Engine {
	if opts.Registry == nil {
		opts.Registry = capability.NewRegistry()
	}
	if opts.Saver == nil {
		opts.Saver = memory.DefaultSaver()
	}
	if opts.Library == nil {
		opts.Library = library.NewInMemory()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewLogger()
	}
	opts.Config.Normalize()

	checkpoints := services.NewCheckpointService(opts.Saver)
	return &Engine{
		registry:    opts.Registry,
		saver:       opts.Saver,
		library:     opts.Library,
		logger:      opts.Logger,
		config:      opts.Config,
		checkpoints: checkpoints,
		scheduler:   usecases.NewScheduler(opts.Registry, opts.Library, checkpoints, opts.Config, opts.Logger),
		runs:        make(map[string]*runEntry),
	}
}

// RegisterCapability binds an invoker under a name.
func (e *Engine) RegisterCapability(name string, inv capability.Invoker) error {
	return e.registry.Register(name, inv)
}

// RegisterCapabilityFunc binds a plain function under a name.
func (e *Engine) RegisterCapabilityFunc(name string, fn capability.Func) error {
	return e.registry.RegisterFunc(name, fn)
}

// RegisterDefinition validates a definition and adds it to the library so
// subworkflow steps can reference it.
func (e *Engine) RegisterDefinition(def *step.Definition) error {
	if err := validation.ValidateDefinition(def); err != nil {
		return err
	}
	return e.library.Save(def)
}

// Validate checks a definition without executing it: structural rules,
// step ID uniqueness, and subworkflow ref resolution plus cycle detection
// against the engine's library.
func (e *Engine) Validate(def *step.Definition) error {
	return validation.ValidateDefinition(def, validation.Options{Library: e.library})
}

// Run validates def and starts an asynchronous run seeded with initial.
// Cancelling ctx cancels the run cooperatively.
func (e *Engine) Run(ctx context.Context, def *step.Definition, initial map[string]interface{}) (*RunHandle, error) {
	if def == nil {
		return nil, dto.ErrMissingDefinition
	}
	if err := e.Validate(def); err != nil {
		return nil, err
	}
	state := run.New(uuid.NewString(), def.ID, initial)
	return e.start(ctx, def, state), nil
}

// Resume loads a checkpoint and continues its run. The walker re-walks the
// definition from the root; actions committed before the checkpoint bind
// their cached outputs and are never re-invoked, so the resumed run is
// observably identical to an uninterrupted one.
func (e *Engine) Resume(ctx context.Context, checkpointID string) (*RunHandle, error) {
	cp, err := e.checkpoints.Load(ctx, checkpointID)
	if err != nil {
		return nil, err
	}
	def, err := e.library.Get(cp.DefinitionID)
	if err != nil {
		return nil, fmt.Errorf("resume %s: %w", checkpointID, err)
	}
	state := e.checkpoints.Restore(cp)
	return e.start(ctx, def, state), nil
}

func (e *Engine) start(ctx context.Context, def *step.Definition, state *run.State) *RunHandle {
	runCtx, cancel := context.WithCancel(ctx)
	entry := &runEntry{state: state, cancel: cancel, done: make(chan struct{})}

	e.mu.Lock()
	e.runs[state.RunID] = entry
	e.mu.Unlock()

	go func() {
		defer cancel()
		defer close(entry.done)
		entry.err = e.scheduler.Execute(runCtx, def, state)
		if entry.err != nil {
			e.logger.Info("run %s finished %s: %v", state.RunID, state.CurrentStatus(), entry.err)
		} else {
			e.logger.Info("run %s completed", state.RunID)
		}
	}()
	return &RunHandle{RunID: state.RunID, entry: entry}
}

func (e *Engine) entry(runID string) (*runEntry, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	entry, ok := e.runs[runID]
	if !ok {
		return nil, run.ErrRunNotFound
	}
	return entry, nil
}

// Cancel requests cooperative cancellation of a run. In-flight capability
// invocations see their context cancelled; the run stops at the next
// boundary, retaining all evidence recorded so far.
func (e *Engine) Cancel(runID string) error {
	entry, err := e.entry(runID)
	if err != nil {
		return err
	}
	if entry.state.CurrentStatus().Terminal() {
		return run.ErrAlreadyTerminal
	}
	entry.cancel()
	return nil
}

// Suspend asks a run to checkpoint and stop at its next top-level step
// boundary, then returns the checkpoint ID to resume from later.
func (e *Engine) Suspend(ctx context.Context, runID string) (string, error) {
	entry, err := e.entry(runID)
	if err != nil {
		return "", err
	}
	if entry.state.CurrentStatus().Terminal() {
		return "", run.ErrAlreadyTerminal
	}
	entry.state.SetStatus(run.StatusSuspended)

	select {
	case <-entry.done:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	if entry.state.CurrentStatus() != run.StatusSuspended {
		// The run reached a terminal status before observing the request.
		return "", run.ErrAlreadyTerminal
	}
	cp, err := e.checkpoints.Latest(ctx, runID)
	if err != nil {
		return "", err
	}
	return cp.ID, nil
}

// Status returns a summary of the run's current state.
func (e *Engine) Status(runID string) (dto.RunSummary, error) {
	entry, err := e.entry(runID)
	if err != nil {
		return dto.RunSummary{}, err
	}
	st := entry.state
	return dto.RunSummary{
		RunID:         st.RunID,
		DefinitionID:  st.DefinitionID,
		Status:        st.CurrentStatus(),
		EvidenceCount: len(st.EvidenceLog()),
		StartedAt:     st.StartedAt,
		FinishedAt:    st.FinishedAt(),
		Cause:         st.Cause(),
	}, nil
}

// Result builds the final report for a terminal run. A failed or cancelled
// run yields a partial report with its cause set; partial evidence is never
// discarded.
func (e *Engine) Result(runID string) (*report.FinalReport, error) {
	entry, err := e.entry(runID)
	if err != nil {
		return nil, err
	}
	if !entry.state.CurrentStatus().Terminal() {
		return nil, run.ErrRunNotTerminal
	}
	return report.Build(entry.state), nil
}

// RunHandle tracks an asynchronous run.
type RunHandle struct {
	RunID string
	entry *runEntry
}

// Done is closed when the run reaches a terminal or suspended state.
func (h *RunHandle) Done() <-chan struct{} {
	return h.entry.done
}

// Wait blocks until the run stops or ctx is cancelled, returning the run's
// terminal error, if any.
func (h *RunHandle) Wait(ctx context.Context) error {
	select {
	case <-h.entry.done:
		return h.entry.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the run's terminal error once Done is closed.
func (h *RunHandle) Err() error {
	select {
	case <-h.entry.done:
		return h.entry.err
	default:
		return nil
	}
}
