package checkpoint

import "errors"

// Checkpoint errors
var (
	ErrCheckpointNotFound  = errors.New("checkpoint not found")
	ErrInvalidCheckpointID = errors.New("checkpoint ID cannot be empty")
	ErrInvalidRunID        = errors.New("checkpoint run ID cannot be empty")
	ErrInvalidDefinitionID = errors.New("checkpoint definition ID cannot be empty")
	ErrNilSnapshot         = errors.New("checkpoint snapshot cannot be nil")
	ErrInvalidLimit        = errors.New("filter limit cannot be negative")
	ErrInvalidOffset       = errors.New("filter offset cannot be negative")
	ErrInvalidTimeRange    = errors.New("filter since must precede before")
)
