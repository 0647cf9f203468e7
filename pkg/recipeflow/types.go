package recipeflow

import (
	"github.com/recipeflow/recipeflow/internal/app/dto"
	"github.com/recipeflow/recipeflow/internal/core/capability"
	"github.com/recipeflow/recipeflow/internal/core/report"
	"github.com/recipeflow/recipeflow/internal/core/run"
	"github.com/recipeflow/recipeflow/internal/core/step"
)

// Re-exported domain types so callers compose recipes and consume reports
// without importing internal packages.
type (
	Definition    = step.Definition
	Step          = step.Step
	Join          = step.Join
	RetryPolicy   = step.RetryPolicy
	Predicate     = step.Predicate
	EvidenceSpec  = step.EvidenceSpec
	ScoreSpec     = step.ScoreSpec
	FailurePolicy = step.FailurePolicy
	JoinPolicy    = step.JoinPolicy
	PredicateOp   = step.PredicateOp

	RunConfig  = dto.RunConfig
	RunSummary = dto.RunSummary
	RunStatus  = run.Status
	Evidence   = run.Evidence

	FinalReport = report.FinalReport
	Hypothesis  = report.Hypothesis
	ScoredItem  = report.ScoredItem

	Invoker        = capability.Invoker
	CapabilityFunc = capability.Func
)

// Step type discriminants.
const (
	TypeAction      = step.TypeAction
	TypeSequence    = step.TypeSequence
	TypeParallel    = step.TypeParallel
	TypeForEach     = step.TypeForEach
	TypeConditional = step.TypeConditional
	TypeSubWorkflow = step.TypeSubWorkflow
)

// Failure and join policies.
const (
	FailFast   = step.FailFast
	Skip       = step.Skip
	JoinAll    = step.JoinAll
	JoinAny    = step.JoinAny
	JoinQuorum = step.JoinQuorum
)

// Run statuses.
const (
	StatusRunning   = run.StatusRunning
	StatusSuspended = run.StatusSuspended
	StatusCompleted = run.StatusCompleted
	StatusFailed    = run.StatusFailed
	StatusCancelled = run.StatusCancelled
)

// Capability error helpers.
var (
	NewTransient = capability.NewTransient
	NewPermanent = capability.NewPermanent
)
