// Package services provides application services bridging the run domain
// and the persistence adapters.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/recipeflow/recipeflow/internal/core/checkpoint"
	"github.com/recipeflow/recipeflow/internal/core/run"
)

// snapshotVersion tags checkpoints with the snapshot schema revision.
const snapshotVersion = "1"

// CheckpointService turns live run state into checkpoints and back. The
// snapshot carries everything a resumed run needs: initial context, the
// evidence and score logs, and the committed action-output cache.
type CheckpointService struct {
	saver checkpoint.Saver
}

// NewCheckpointService creates a service over the given saver.
func NewCheckpointService(saver checkpoint.Saver) *CheckpointService {
	return &CheckpointService{saver: saver}
}

// Snapshot captures the run at a step boundary and persists it.
func (s *CheckpointService) Snapshot(ctx context.Context, state *run.State, boundary string) (*checkpoint.Checkpoint, error) {
	if state == nil {
		return nil, checkpoint.ErrInvalidRunID
	}
	cp := &checkpoint.Checkpoint{
		ID:           uuid.NewString(),
		RunID:        state.RunID,
		DefinitionID: state.DefinitionID,
		Boundary:     boundary,
		Status:       string(state.CurrentStatus()),
		Snapshot: checkpoint.Snapshot{
			Initial:  state.Initial,
			Evidence: state.EvidenceLog(),
			Scores:   state.ScoreLog(),
			Applied:  state.AppliedSnapshot(),
			Skipped:  state.SkippedSnapshot(),
		},
		Timestamp: time.Now(),
		Version:   snapshotVersion,
	}
	if err := s.saver.Save(ctx, cp); err != nil {
		return nil, fmt.Errorf("save checkpoint at %s: %w", boundary, err)
	}
	return cp, nil
}

// Load retrieves a checkpoint by ID.
func (s *CheckpointService) Load(ctx context.Context, id string) (*checkpoint.Checkpoint, error) {
	return s.saver.Load(ctx, id)
}

// Latest returns the most recent checkpoint for a run.
func (s *CheckpointService) Latest(ctx context.Context, runID string) (*checkpoint.Checkpoint, error) {
	cps, err := s.saver.List(ctx, checkpoint.Filter{RunID: runID, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(cps) == 0 {
		return nil, checkpoint.ErrCheckpointNotFound
	}
	return cps[0], nil
}

// Restore rebuilds a running State from a checkpoint. Evidence and scores
// come back in their original order, and the applied cache guarantees the
// re-walk binds committed outputs instead of re-invoking capabilities.
func (s *CheckpointService) Restore(cp *checkpoint.Checkpoint) *run.State {
	state := run.New(cp.RunID, cp.DefinitionID, cp.Snapshot.Initial)
	state.RecordBatch(cp.Snapshot.Evidence)
	state.RecordScores(cp.Snapshot.Scores)
	for path, outputs := range cp.Snapshot.Applied {
		state.MarkApplied(path, outputs)
	}
	for _, path := range cp.Snapshot.Skipped {
		state.MarkSkipped(path)
	}
	return state
}
