// Package run provides the core run-state domain entities: scoped variable
// bindings, the append-only evidence log, and the cached action outputs that
// make resume idempotent.
package run

import (
	"sort"
	"sync"
	"time"
)

// Status represents the lifecycle state of one run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSuspended Status = "suspended"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further execution can happen for the status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// State identifies one execution of a Definition. It is owned by the engine
// for the run's lifetime and mutated only by the scheduler.
type State struct {
	RunID        string
	DefinitionID string
	Status       Status
	// Initial is the caller-supplied context that seeds the root scope.
	// Kept verbatim so a resumed run replays from the same inputs.
	Initial map[string]interface{}
	Root    *Scope

	Evidence []Evidence
	Scores   []ScoreSubmission
	// Applied caches committed Action outputs keyed by step path. On resume
	// the scheduler binds these instead of re-invoking the capability.
	Applied map[string]map[string]interface{}
	// Skipped holds step paths whose failure a skip policy absorbed. Their
	// error evidence is already committed, so a resume re-walk must neither
	// re-invoke nor re-record them.
	Skipped map[string]bool

	StartedAt time.Time

	cause      string
	finishedAt time.Time

	mu sync.Mutex
}

// NewState creates a running State with its root scope seeded from initial.
func New(runID, definitionID string, initial map[string]interface{}) *State {
	if initial == nil {
		initial = map[string]interface{}{}
	}
	return &State{
		RunID:        runID,
		DefinitionID: definitionID,
		Status:       StatusRunning,
		Initial:      initial,
		Root:         NewScope(initial),
		Applied:      make(map[string]map[string]interface{}),
		Skipped:      make(map[string]bool),
		StartedAt:    time.Now(),
	}
}

// Record appends evidence to the global log, assigning its sequence number.
func (s *State) Record(ev Evidence) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev.Seq = len(s.Evidence)
	s.Evidence = append(s.Evidence, ev)
}

// RecordBatch appends a block of evidence preserving the given order.
func (s *State) RecordBatch(evs []Evidence) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range evs {
		ev.Seq = len(s.Evidence)
		s.Evidence = append(s.Evidence, ev)
	}
}

// RecordScore appends a score submission for the final report.
func (s *State) RecordScore(sub ScoreSubmission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Scores = append(s.Scores, sub)
}

// RecordScores appends a block of score submissions preserving order.
func (s *State) RecordScores(subs []ScoreSubmission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Scores = append(s.Scores, subs...)
}

// MarkApplied commits an Action's outputs under its step path.
func (s *State) MarkApplied(path string, outputs map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Applied[path] = outputs
}

// AppliedOutputs returns the cached outputs for a step path, if committed.
func (s *State) AppliedOutputs(path string) (map[string]interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, ok := s.Applied[path]
	return out, ok
}

// MarkSkipped records that a skip policy absorbed a failure at the step
// path and committed its error evidence.
func (s *State) MarkSkipped(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Skipped[path] = true
}

// SkippedAt reports whether a skip-absorbed failure is already committed
// for the step path.
func (s *State) SkippedAt(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Skipped[path]
}

// EvidenceLog returns a copy of the evidence log in sequence order.
func (s *State) EvidenceLog() []Evidence {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Evidence, len(s.Evidence))
	copy(out, s.Evidence)
	return out
}

// ScoreLog returns a copy of the recorded score submissions.
func (s *State) ScoreLog() []ScoreSubmission {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ScoreSubmission, len(s.Scores))
	copy(out, s.Scores)
	return out
}

// AppliedSnapshot returns a copy of the committed action-output cache.
func (s *State) AppliedSnapshot() map[string]map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]map[string]interface{}, len(s.Applied))
	for path, vals := range s.Applied {
		cp := make(map[string]interface{}, len(vals))
		for k, v := range vals {
			cp[k] = v
		}
		out[path] = cp
	}
	return out
}

// SkippedSnapshot returns the skip-absorbed step paths in sorted order.
func (s *State) SkippedSnapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.Skipped))
	for path := range s.Skipped {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

// Finish transitions the run to a terminal status with an optional cause.
func (s *State) Finish(status Status, cause string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = status
	s.cause = cause
	s.finishedAt = time.Now()
}

// SetStatus updates the lifecycle status without finishing the run.
func (s *State) SetStatus(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = status
}

// CurrentStatus returns the lifecycle status under the state lock.
func (s *State) CurrentStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Status
}

// Cause returns the terminal cause under the state lock.
func (s *State) Cause() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cause
}

// FinishedAt returns the terminal timestamp under the state lock; zero while
// the run is still live.
func (s *State) FinishedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finishedAt
}
