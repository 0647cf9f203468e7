package usecases

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/recipeflow/recipeflow/internal/core/capability"
	"github.com/recipeflow/recipeflow/internal/core/run"
	"github.com/recipeflow/recipeflow/internal/core/step"
	"github.com/recipeflow/recipeflow/internal/infrastructure/metrics"
)

// execAction invokes the step's capability. An action already in the
// applied cache (resume path) re-binds its committed outputs without
// re-invoking and without re-emitting evidence; the restored log already
// contains it.
func (ex *execution) execAction(ctx context.Context, st *step.Step, path string, scope *run.Scope, frame *run.Frame) error {
	if ex.state.SkippedAt(path) {
		// A skip policy absorbed this action's failure before the snapshot;
		// its error evidence is already in the restored log.
		return nil
	}
	if outputs, ok := ex.state.AppliedOutputs(path); ok {
		bindOutputs(scope, st, outputs)
		return nil
	}

	input, err := resolveInput(st.Input, scope)
	if err != nil {
		return ex.stepFailure(st, path, frame, err)
	}
	invoker, err := ex.sched.registry.Resolve(st.Capability)
	if err != nil {
		// An unregistered capability is a wiring error, never skippable.
		return fmt.Errorf("%s: %w", path, err)
	}

	outputs, err := ex.invokeWithRetry(ctx, st, invoker, input)
	if err != nil {
		metrics.IncFailures(st.Capability)
		return ex.stepFailure(st, path, frame, err)
	}

	bindOutputs(scope, st, outputs)
	ex.emitEvidence(st, path, outputs, frame)
	ex.emitScore(st, path, outputs, frame)
	ex.state.MarkApplied(path, outputs)
	return nil
}

// invokeWithRetry runs the capability under the step's retry policy.
// Only transient failures retry; backoff doubles per attempt up to the
// configured cap. Every attempt gets its own timeout.
func (ex *execution) invokeWithRetry(ctx context.Context, st *step.Step, invoker capability.Invoker, input map[string]interface{}) (map[string]interface{}, error) {
	attempts := 1
	var backoff, maxBackoff time.Duration
	if st.Retry != nil {
		attempts = st.Retry.Attempts
		backoff = st.Retry.Backoff
		maxBackoff = st.Retry.MaxBackoff
	}
	timeout := st.Timeout
	if timeout <= 0 {
		timeout = ex.sched.config.DefaultTimeout
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			metrics.IncRetries(st.Capability)
			if err := sleepCtx(ctx, backoff); err != nil {
				return nil, err
			}
			backoff *= 2
			if maxBackoff > 0 && backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
		metrics.IncInvocations(st.Capability)

		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		outputs, err := invoker.Invoke(attemptCtx, input)
		cancel()
		if err == nil {
			return outputs, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !capability.IsTransient(err) {
			break
		}
		ex.sched.logger.Debug("capability %s attempt %d/%d failed: %v", st.Capability, attempt, attempts, err)
	}
	return nil, lastErr
}

// bindOutputs writes the action outputs into the scope and marks the
// step's publish list for promotion at the next merge-back.
func bindOutputs(scope *run.Scope, st *step.Step, outputs map[string]interface{}) {
	for k, v := range outputs {
		scope.Set(k, v)
	}
	for _, name := range st.Publish {
		scope.Publish(name)
	}
}

// emitEvidence records the step's evidence per its spec. Confidence comes
// from the fixed value or a named output field, clamped to [0,1].
func (ex *execution) emitEvidence(st *step.Step, path string, outputs map[string]interface{}, frame *run.Frame) {
	spec := st.Evidence
	if spec == nil {
		return
	}
	confidence := spec.Confidence
	if spec.ConfidenceFrom != "" {
		if v, ok := toFloat(outputs[spec.ConfidenceFrom]); ok {
			confidence = v
		}
	}
	confidence = clamp01(confidence)

	var data map[string]interface{}
	if len(spec.DataFields) > 0 {
		data = make(map[string]interface{}, len(spec.DataFields))
		for _, f := range spec.DataFields {
			if v, ok := outputs[f]; ok {
				data[f] = v
			}
		}
	}
	frame.Record(run.Evidence{
		SourceStep:     path,
		Category:       spec.Category,
		Description:    spec.Description,
		Confidence:     confidence,
		SupportingData: data,
		Timestamp:      time.Now(),
	})
}

// emitScore records a composite-score submission per the step's spec.
// Submissions without a resolvable subject or factor map are dropped.
func (ex *execution) emitScore(st *step.Step, path string, outputs map[string]interface{}, frame *run.Frame) {
	spec := st.Score
	if spec == nil {
		return
	}
	subject := spec.Subject
	if spec.SubjectFrom != "" {
		if v, ok := outputs[spec.SubjectFrom].(string); ok {
			subject = v
		}
	}
	factors := toFloatMap(outputs[spec.FactorsFrom])
	if subject == "" || factors == nil {
		ex.sched.logger.Debug("step %s: score spec yielded no submission", path)
		return
	}
	frame.RecordScore(run.ScoreSubmission{
		SourceStep:   path,
		Subject:      subject,
		FactorScores: factors,
		Weights:      spec.Weights,
	})
}

// resolveInput materializes an action input map against current bindings.
// String values beginning with "$" reference a binding; "$$" escapes a
// literal dollar sign. Maps and lists resolve recursively.
func resolveInput(input map[string]interface{}, scope *run.Scope) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(input))
	for k, v := range input {
		rv, err := resolveValue(v, scope)
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", k, err)
		}
		out[k] = rv
	}
	return out, nil
}

func resolveValue(v interface{}, scope *run.Scope) (interface{}, error) {
	switch t := v.(type) {
	case string:
		if strings.HasPrefix(t, "$$") {
			return t[1:], nil
		}
		if strings.HasPrefix(t, "$") {
			name := t[1:]
			bound, ok := scope.Lookup(name)
			if !ok {
				return nil, fmt.Errorf("binding %q: %w", name, run.ErrUnknownBinding)
			}
			return bound, nil
		}
		return t, nil
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, nested := range t {
			rv, err := resolveValue(nested, scope)
			if err != nil {
				return nil, err
			}
			out[k] = rv
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, nested := range t {
			rv, err := resolveValue(nested, scope)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	default:
		return v, nil
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
