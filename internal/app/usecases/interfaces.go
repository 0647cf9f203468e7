package usecases

import (
	"context"

	"github.com/recipeflow/recipeflow/internal/core/checkpoint"
	"github.com/recipeflow/recipeflow/internal/core/run"
	"github.com/recipeflow/recipeflow/internal/core/step"
)

// Library resolves definition IDs for subworkflow steps.
type Library interface {
	Get(id string) (*step.Definition, error)
}

// Checkpointer persists run snapshots at step boundaries.
type Checkpointer interface {
	Snapshot(ctx context.Context, state *run.State, boundary string) (*checkpoint.Checkpoint, error)
}
