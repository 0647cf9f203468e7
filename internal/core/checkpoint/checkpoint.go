// Package checkpoint provides the core checkpoint domain entities and
// persistence interfaces. A checkpoint is an immutable snapshot of a run at
// a step boundary; resuming from it must be behaviorally indistinguishable
// from an uninterrupted run.
package checkpoint

import (
	"time"

	"github.com/recipeflow/recipeflow/internal/core/run"
)

// Checkpoint represents a saved run state at a step boundary.
type Checkpoint struct {
	ID           string `json:"id" msgpack:"id"`
	RunID        string `json:"run_id" msgpack:"run_id"`
	DefinitionID string `json:"definition_id" msgpack:"definition_id"`
	// Boundary identifies the step whose completion produced this snapshot.
	Boundary  string    `json:"boundary" msgpack:"boundary"`
	Status    string    `json:"status" msgpack:"status"`
	Snapshot  Snapshot  `json:"snapshot" msgpack:"snapshot"`
	Timestamp time.Time `json:"timestamp" msgpack:"timestamp"`
	Version   string    `json:"version" msgpack:"version"`
}

// Snapshot carries everything a resumed run needs to replay
// deterministically: the initial context, the evidence and score logs, and
// the committed action-output cache. Action outputs are replayed from the
// cache on resume, never recomputed.
type Snapshot struct {
	Initial  map[string]interface{}            `json:"initial" msgpack:"initial"`
	Evidence []run.Evidence                    `json:"evidence" msgpack:"evidence"`
	Scores   []run.ScoreSubmission             `json:"scores" msgpack:"scores"`
	Applied  map[string]map[string]interface{} `json:"applied" msgpack:"applied"`
	// Skipped lists step paths whose failure a skip policy absorbed before
	// the snapshot; their error evidence is already in the log.
	Skipped []string `json:"skipped,omitempty" msgpack:"skipped,omitempty"`
}

// Validate ensures checkpoint integrity.
func (c *Checkpoint) Validate() error {
	if c.ID == "" {
		return ErrInvalidCheckpointID
	}
	if c.RunID == "" {
		return ErrInvalidRunID
	}
	if c.DefinitionID == "" {
		return ErrInvalidDefinitionID
	}
	if c.Snapshot.Applied == nil {
		return ErrNilSnapshot
	}
	return nil
}
