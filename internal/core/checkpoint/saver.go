package checkpoint

import (
	"context"
	"time"
)

// Saver is the checkpoint persistence interface. Concrete savers live under
// internal/adapters/repository; the engine only depends on this contract.
type Saver interface {
	// Save persists a checkpoint. Saving the same checkpoint twice is a no-op
	// overwrite, keeping checkpointing idempotent.
	Save(ctx context.Context, cp *Checkpoint) error

	// Load retrieves a checkpoint by ID.
	Load(ctx context.Context, id string) (*Checkpoint, error)

	// List returns checkpoints matching the filter, newest first.
	List(ctx context.Context, filter Filter) ([]*Checkpoint, error)

	// Delete removes a checkpoint by ID.
	Delete(ctx context.Context, id string) error
}

// Filter narrows checkpoint queries.
type Filter struct {
	RunID        string     `json:"run_id,omitempty"`
	DefinitionID string     `json:"definition_id,omitempty"`
	Limit        int        `json:"limit,omitempty"`
	Offset       int        `json:"offset,omitempty"`
	Since        *time.Time `json:"since,omitempty"`
	Before       *time.Time `json:"before,omitempty"`
}

// Validate ensures filter parameters are valid.
func (f *Filter) Validate() error {
	if f.Limit < 0 {
		return ErrInvalidLimit
	}
	if f.Offset < 0 {
		return ErrInvalidOffset
	}
	if f.Since != nil && f.Before != nil && f.Since.After(*f.Before) {
		return ErrInvalidTimeRange
	}
	return nil
}
