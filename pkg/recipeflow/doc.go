// Package recipeflow orchestrates declarative recipes: trees of typed steps
// executed with sequence, parallel, bounded-iteration, conditional and
// subworkflow semantics. Steps invoke named capabilities through a registry,
// share data through scoped bindings with an explicit publish discipline,
// and feed an append-only evidence log that is aggregated into ranked
// hypotheses and composite priority scores when the run finishes.
//
// Runs checkpoint at step boundaries and can be resumed from any checkpoint;
// committed action outputs are replayed from the snapshot, never re-invoked,
// so a resumed run is observably identical to an uninterrupted one.
//
// A minimal run:
//
//	engine := recipeflow.New(recipeflow.Options{})
//	engine.RegisterCapabilityFunc("probe", probe)
//	handle, err := engine.Run(ctx, def, map[string]interface{}{"host": "db-1"})
//	if err != nil {
//		return err
//	}
//	if err := handle.Wait(ctx); err != nil {
//		return err
//	}
//	report, err := engine.Result(handle.RunID)
package recipeflow
