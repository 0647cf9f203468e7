package step

import "errors"

// Step errors
var (
	ErrNilStep              = errors.New("step cannot be nil")
	ErrInvalidStepID        = errors.New("step ID cannot be empty")
	ErrUnknownStepType      = errors.New("unknown step type")
	ErrMissingCapability    = errors.New("action step requires a capability name")
	ErrEmptySequence        = errors.New("sequence step requires at least one child")
	ErrNoBranches           = errors.New("parallel step requires at least one branch")
	ErrMissingSource        = errors.New("foreach step requires a source binding")
	ErrMissingItemName      = errors.New("foreach step requires an item binding name")
	ErrMissingBody          = errors.New("foreach step requires a body step")
	ErrMissingPredicate     = errors.New("conditional step requires a predicate")
	ErrMissingBranch        = errors.New("conditional step requires a then branch")
	ErrMissingRef           = errors.New("subworkflow step requires a definition ref")
	ErrInvalidJoinPolicy    = errors.New("join policy must be all, any, or quorum")
	ErrInvalidQuorum        = errors.New("quorum must be between 1 and the branch count")
	ErrInvalidConcurrency   = errors.New("max concurrency cannot be negative")
	ErrInvalidFailurePolicy = errors.New("failure policy must be fail_fast or skip")
	ErrInvalidRetry         = errors.New("retry policy requires positive attempts and non-negative backoff")
	ErrInvalidEvidenceSpec  = errors.New("evidence spec requires a category and confidence in [0,1]")
	ErrInvalidScoreSpec     = errors.New("score spec requires weights, a factors field, and a subject")
)

// Definition errors
var (
	ErrNilDefinition         = errors.New("definition cannot be nil")
	ErrInvalidDefinitionID   = errors.New("definition ID cannot be empty")
	ErrInvalidDefinitionName = errors.New("definition name cannot be empty")
	ErrMissingRoot           = errors.New("definition requires a root step")
	ErrDuplicateStepID       = errors.New("duplicate step ID in definition")
	ErrCyclicReference       = errors.New("subworkflow references form a cycle")
	ErrUnresolvedRef         = errors.New("subworkflow ref does not resolve to a known definition")
)
