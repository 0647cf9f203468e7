// Package metrics publishes engine counters via expvar.
package metrics

import (
	"expvar"
)

// Capability invocation metrics keyed by capability name.
var (
	invocations        = expvar.NewMap("recipeflow_capability_invocations_total")
	invocationFailures = expvar.NewMap("recipeflow_capability_failures_total")
	invocationRetries  = expvar.NewMap("recipeflow_capability_retries_total")
)

// Scheduler metrics.
var (
	stepsTotal       = new(expvar.Int)
	branchesTotal    = new(expvar.Int)
	iterationsTotal  = new(expvar.Int)
	checkpointsTotal = new(expvar.Int)
	runsActive       = new(expvar.Int)
)

func init() {
	expvar.Publish("recipeflow_steps_total", stepsTotal)
	expvar.Publish("recipeflow_branches_total", branchesTotal)
	expvar.Publish("recipeflow_iterations_total", iterationsTotal)
	expvar.Publish("recipeflow_checkpoints_total", checkpointsTotal)
	expvar.Publish("recipeflow_runs_active", runsActive)
}

// Capability helpers
func IncInvocations(capability string) { invocations.Add(capability, 1) }
func IncFailures(capability string)    { invocationFailures.Add(capability, 1) }
func IncRetries(capability string)     { invocationRetries.Add(capability, 1) }

// Scheduler helpers
func IncSteps()             { stepsTotal.Add(1) }
func AddBranches(n int)     { branchesTotal.Add(int64(n)) }
func AddIterations(n int)   { iterationsTotal.Add(int64(n)) }
func IncCheckpoints()       { checkpointsTotal.Add(1) }
func RunStarted()           { runsActive.Add(1) }
func RunFinished()          { runsActive.Add(-1) }
