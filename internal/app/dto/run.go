package dto

import (
	"time"

	"github.com/recipeflow/recipeflow/internal/core/run"
)

// RunConfig contains engine-level execution settings applied to a run.
type RunConfig struct {
	// DefaultTimeout bounds Action steps that declare no timeout.
	DefaultTimeout time.Duration `json:"default_timeout"`
	// DefaultConcurrency bounds ForEach steps that declare no limit.
	DefaultConcurrency int `json:"default_concurrency"`
	// Checkpoints enables snapshotting at step boundaries.
	Checkpoints bool `json:"checkpoints"`
	// MaxSubWorkflowDepth guards against runaway composition at run time.
	MaxSubWorkflowDepth int `json:"max_subworkflow_depth"`
}

// Normalize fills unset config fields with defaults.
func (c *RunConfig) Normalize() {
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = 30 * time.Second
	}
	if c.DefaultConcurrency <= 0 {
		c.DefaultConcurrency = 1
	}
	if c.MaxSubWorkflowDepth <= 0 {
		c.MaxSubWorkflowDepth = 16
	}
}

// RunSummary is the external view of a run's current state.
type RunSummary struct {
	RunID         string     `json:"run_id"`
	DefinitionID  string     `json:"definition_id"`
	Status        run.Status `json:"status"`
	EvidenceCount int        `json:"evidence_count"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    time.Time  `json:"finished_at,omitempty"`
	Cause         string     `json:"cause,omitempty"`
}
