package run

import "time"

// Evidence is a single weighted observation recorded during execution.
// The log is append-only and global to the run; Seq fixes the total order
// so resumed runs reproduce the exact same log.
type Evidence struct {
	SourceStep     string                 `json:"source_step" msgpack:"source_step"`
	Category       string                 `json:"category" msgpack:"category"`
	Description    string                 `json:"description,omitempty" msgpack:"description"`
	Confidence     float64                `json:"confidence" msgpack:"confidence"`
	SupportingData map[string]interface{} `json:"supporting_data,omitempty" msgpack:"supporting_data"`
	Err            bool                   `json:"error,omitempty" msgpack:"error"`
	Timestamp      time.Time              `json:"timestamp" msgpack:"timestamp"`
	Seq            int                    `json:"seq" msgpack:"seq"`
}

// ScoreSubmission is a raw weighted-factor submission emitted by a step,
// aggregated into a ScoredItem when the final report is built.
type ScoreSubmission struct {
	SourceStep   string             `json:"source_step" msgpack:"source_step"`
	Subject      string             `json:"subject" msgpack:"subject"`
	FactorScores map[string]float64 `json:"factor_scores" msgpack:"factor_scores"`
	Weights      map[string]float64 `json:"weights" msgpack:"weights"`
}
