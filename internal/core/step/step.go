// Package step provides the core recipe step domain entities
// following Clean Architecture principles with zero external dependencies.
package step

import (
	"time"
)

// Type discriminates the closed set of step variants.
type Type string

const (
	// TypeAction invokes a single named capability.
	TypeAction Type = "action"
	// TypeSequence executes children in declaration order.
	TypeSequence Type = "sequence"
	// TypeParallel fans out branches and joins per policy.
	TypeParallel Type = "parallel"
	// TypeForEach iterates a bound list with bounded concurrency.
	TypeForEach Type = "foreach"
	// TypeConditional selects one branch from a predicate.
	TypeConditional Type = "conditional"
	// TypeSubWorkflow invokes another definition with an isolated scope.
	TypeSubWorkflow Type = "subworkflow"
)

// FailurePolicy controls how a step failure propagates to its parent.
type FailurePolicy string

const (
	// FailFast aborts remaining siblings and propagates upward.
	FailFast FailurePolicy = "fail_fast"
	// Skip records the failure as error evidence and continues.
	Skip FailurePolicy = "skip"
)

// JoinPolicy controls when a Parallel or ForEach join completes.
type JoinPolicy string

const (
	// JoinAll waits for every branch and collects all errors.
	JoinAll JoinPolicy = "all"
	// JoinAny completes on the first success and cancels the rest.
	JoinAny JoinPolicy = "any"
	// JoinQuorum completes after K successes and cancels the rest.
	JoinQuorum JoinPolicy = "quorum"
)

// Join pairs a join policy with its quorum size.
type Join struct {
	Policy JoinPolicy `json:"policy" yaml:"policy"`
	Quorum int        `json:"quorum,omitempty" yaml:"quorum,omitempty"`
}

// RetryPolicy bounds transient-failure retries for an Action step.
type RetryPolicy struct {
	Attempts   int           `json:"attempts" yaml:"attempts"`
	Backoff    time.Duration `json:"backoff" yaml:"backoff"`
	MaxBackoff time.Duration `json:"max_backoff,omitempty" yaml:"max_backoff,omitempty"`
}

// PredicateOp is a comparison operator for Conditional predicates.
type PredicateOp string

const (
	OpEq     PredicateOp = "eq"
	OpNe     PredicateOp = "ne"
	OpGt     PredicateOp = "gt"
	OpLt     PredicateOp = "lt"
	OpGte    PredicateOp = "gte"
	OpLte    PredicateOp = "lte"
	OpExists PredicateOp = "exists"
	OpTruthy PredicateOp = "truthy"
)

// Predicate is a side-effect-free test against current bindings.
type Predicate struct {
	Var   string      `json:"var" yaml:"var"`
	Op    PredicateOp `json:"op" yaml:"op"`
	Value interface{} `json:"value,omitempty" yaml:"value,omitempty"`
}

// EvidenceSpec declares how an Action's output feeds the evidence log.
// Confidence is fixed unless ConfidenceFrom names an output field.
type EvidenceSpec struct {
	Category       string   `json:"category" yaml:"category"`
	Description    string   `json:"description,omitempty" yaml:"description,omitempty"`
	Confidence     float64  `json:"confidence,omitempty" yaml:"confidence,omitempty"`
	ConfidenceFrom string   `json:"confidence_from,omitempty" yaml:"confidence_from,omitempty"`
	DataFields     []string `json:"data_fields,omitempty" yaml:"data_fields,omitempty"`
}

// ScoreSpec declares how an Action's output feeds composite scoring.
// FactorsFrom names an output field holding a factor -> score map.
type ScoreSpec struct {
	Subject     string             `json:"subject,omitempty" yaml:"subject,omitempty"`
	SubjectFrom string             `json:"subject_from,omitempty" yaml:"subject_from,omitempty"`
	Weights     map[string]float64 `json:"weights" yaml:"weights"`
	FactorsFrom string             `json:"factors_from" yaml:"factors_from"`
}

// Step is one node of a recipe tree. Exactly one variant's fields are
// populated, selected by Type; the scheduler dispatches exhaustively on it.
type Step struct {
	ID   string `json:"id" yaml:"id"`
	Type Type   `json:"type" yaml:"type"`

	// Action
	Capability string                 `json:"capability,omitempty" yaml:"capability,omitempty"`
	Input      map[string]interface{} `json:"input,omitempty" yaml:"input,omitempty"`
	Timeout    time.Duration          `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	OnFailure  FailurePolicy          `json:"on_failure,omitempty" yaml:"on_failure,omitempty"`
	Retry      *RetryPolicy           `json:"retry,omitempty" yaml:"retry,omitempty"`
	Publish    []string               `json:"publish,omitempty" yaml:"publish,omitempty"`
	Evidence   *EvidenceSpec          `json:"evidence,omitempty" yaml:"evidence,omitempty"`
	Score      *ScoreSpec             `json:"score,omitempty" yaml:"score,omitempty"`

	// Sequence
	Steps []*Step `json:"steps,omitempty" yaml:"steps,omitempty"`

	// Parallel
	Branches []*Step `json:"branches,omitempty" yaml:"branches,omitempty"`
	Join     *Join   `json:"join,omitempty" yaml:"join,omitempty"`

	// ForEach
	Source         string `json:"source,omitempty" yaml:"source,omitempty"`
	Item           string `json:"item,omitempty" yaml:"item,omitempty"`
	Body           *Step  `json:"body,omitempty" yaml:"body,omitempty"`
	MaxConcurrency int    `json:"max_concurrency,omitempty" yaml:"max_concurrency,omitempty"`

	// Conditional
	Predicate *Predicate `json:"predicate,omitempty" yaml:"predicate,omitempty"`
	Then      *Step      `json:"then,omitempty" yaml:"then,omitempty"`
	Else      *Step      `json:"else,omitempty" yaml:"else,omitempty"`

	// SubWorkflow
	Ref     string            `json:"ref,omitempty" yaml:"ref,omitempty"`
	Params  map[string]string `json:"params,omitempty" yaml:"params,omitempty"`
	Results map[string]string `json:"results,omitempty" yaml:"results,omitempty"`
}

// Definition is a loaded recipe: an immutable, finite, acyclic step tree.
type Definition struct {
	ID      string    `json:"id" yaml:"id"`
	Name    string    `json:"name" yaml:"name"`
	Version string    `json:"version,omitempty" yaml:"version,omitempty"`
	Root    *Step     `json:"root" yaml:"root"`
	Created time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// Validate ensures step integrity for the populated variant.
func (s *Step) Validate() error {
	if s == nil {
		return ErrNilStep
	}
	if s.ID == "" {
		return ErrInvalidStepID
	}
	switch s.Type {
	case TypeAction:
		return s.validateAction()
	case TypeSequence:
		if len(s.Steps) == 0 {
			return ErrEmptySequence
		}
	case TypeParallel:
		return s.validateParallel()
	case TypeForEach:
		return s.validateForEach()
	case TypeConditional:
		if s.Predicate == nil {
			return ErrMissingPredicate
		}
		if s.Then == nil {
			return ErrMissingBranch
		}
	case TypeSubWorkflow:
		if s.Ref == "" {
			return ErrMissingRef
		}
	default:
		return ErrUnknownStepType
	}
	return nil
}

func (s *Step) validateAction() error {
	if s.Capability == "" {
		return ErrMissingCapability
	}
	if s.OnFailure != "" && s.OnFailure != FailFast && s.OnFailure != Skip {
		return ErrInvalidFailurePolicy
	}
	if s.Retry != nil && (s.Retry.Attempts < 1 || s.Retry.Backoff < 0) {
		return ErrInvalidRetry
	}
	if s.Evidence != nil {
		if s.Evidence.Category == "" {
			return ErrInvalidEvidenceSpec
		}
		if s.Evidence.ConfidenceFrom == "" && (s.Evidence.Confidence < 0 || s.Evidence.Confidence > 1) {
			return ErrInvalidEvidenceSpec
		}
	}
	if s.Score != nil {
		if len(s.Score.Weights) == 0 || s.Score.FactorsFrom == "" {
			return ErrInvalidScoreSpec
		}
		if s.Score.Subject == "" && s.Score.SubjectFrom == "" {
			return ErrInvalidScoreSpec
		}
	}
	return nil
}

func (s *Step) validateParallel() error {
	if len(s.Branches) == 0 {
		return ErrNoBranches
	}
	return validateJoin(s.Join, len(s.Branches))
}

func (s *Step) validateForEach() error {
	if s.Source == "" {
		return ErrMissingSource
	}
	if s.Item == "" {
		return ErrMissingItemName
	}
	if s.Body == nil {
		return ErrMissingBody
	}
	if s.MaxConcurrency < 0 {
		return ErrInvalidConcurrency
	}
	// Quorum bound against the source length is checked at run time; only
	// positivity can be verified statically.
	if s.Join != nil && s.Join.Policy == JoinQuorum && s.Join.Quorum < 1 {
		return ErrInvalidQuorum
	}
	return nil
}

func validateJoin(j *Join, branches int) error {
	if j == nil {
		return nil
	}
	switch j.Policy {
	case JoinAll, JoinAny:
		return nil
	case JoinQuorum:
		if j.Quorum < 1 || j.Quorum > branches {
			return ErrInvalidQuorum
		}
		return nil
	default:
		return ErrInvalidJoinPolicy
	}
}

// Children returns the direct child steps of the populated variant.
func (s *Step) Children() []*Step {
	switch s.Type {
	case TypeSequence:
		return s.Steps
	case TypeParallel:
		return s.Branches
	case TypeForEach:
		return []*Step{s.Body}
	case TypeConditional:
		children := []*Step{s.Then}
		if s.Else != nil {
			children = append(children, s.Else)
		}
		return children
	default:
		return nil
	}
}

// Walk visits s and every descendant in depth-first declaration order.
// The walk stops early when fn returns a non-nil error.
func (s *Step) Walk(fn func(*Step) error) error {
	if s == nil {
		return nil
	}
	if err := fn(s); err != nil {
		return err
	}
	for _, child := range s.Children() {
		if err := child.Walk(fn); err != nil {
			return err
		}
	}
	return nil
}

// Validate ensures definition integrity.
func (d *Definition) Validate() error {
	if d == nil {
		return ErrNilDefinition
	}
	if d.ID == "" {
		return ErrInvalidDefinitionID
	}
	if d.Name == "" {
		return ErrInvalidDefinitionName
	}
	if d.Root == nil {
		return ErrMissingRoot
	}
	return nil
}
