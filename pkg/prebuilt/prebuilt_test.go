package prebuilt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recipeflow/recipeflow/pkg/recipeflow"
)

func TestDiagnosisDefinition(t *testing.T) {
	def := Diagnosis("db-diag", "database diagnosis", []Check{
		{Name: "disk", Capability: "check-disk", Category: "disk_pressure", ConfidenceFrom: "confidence"},
		{Name: "memory", Capability: "check-memory", Category: "memory_pressure", Confidence: 0.4},
	})

	eng := recipeflow.New(recipeflow.Options{Config: recipeflow.RunConfig{DefaultTimeout: time.Second}})
	require.NoError(t, eng.Validate(def))

	root := def.Root
	require.Equal(t, recipeflow.TypeSequence, root.Type)
	par := root.Steps[0]
	require.Equal(t, recipeflow.TypeParallel, par.Type)
	require.Len(t, par.Branches, 2)
	for _, b := range par.Branches {
		assert.Equal(t, recipeflow.Skip, b.OnFailure, "one failing probe never hides the others")
		require.NotNil(t, b.Evidence)
	}
}

func TestDiagnosisEndToEnd(t *testing.T) {
	eng := recipeflow.New(recipeflow.Options{Config: recipeflow.RunConfig{DefaultTimeout: time.Second}})
	require.NoError(t, eng.RegisterCapabilityFunc("check-disk", func(_ context.Context, _ map[string]interface{}) (map[string]interface{}, error) {
		return map[string]interface{}{"confidence": 0.8}, nil
	}))
	require.NoError(t, eng.RegisterCapabilityFunc("check-memory", func(_ context.Context, _ map[string]interface{}) (map[string]interface{}, error) {
		return map[string]interface{}{"confidence": 0.3}, nil
	}))

	def := Diagnosis("db-diag", "database diagnosis", []Check{
		{Name: "disk", Capability: "check-disk", Category: "disk_pressure", ConfidenceFrom: "confidence"},
		{Name: "memory", Capability: "check-memory", Category: "memory_pressure", ConfidenceFrom: "confidence"},
	})

	ctx := context.Background()
	handle, err := eng.Run(ctx, def, nil)
	require.NoError(t, err)
	require.NoError(t, handle.Wait(ctx))

	rep, err := eng.Result(handle.RunID)
	require.NoError(t, err)
	require.Len(t, rep.Hypotheses, 2)
	assert.Equal(t, "disk_pressure", rep.Hypotheses[0].Category)
	assert.InDelta(t, 0.8, rep.Hypotheses[0].Confidence, 1e-9)
}

func TestPrioritizationDefinition(t *testing.T) {
	def := Prioritization("triage", "finding triage", "findings", "score-finding",
		map[string]float64{"impact": 0.5, "exploitability": 0.3, "exposure": 0.2}, 2)

	eng := recipeflow.New(recipeflow.Options{})
	require.NoError(t, eng.Validate(def))

	loop := def.Root.Steps[0]
	require.Equal(t, recipeflow.TypeForEach, loop.Type)
	assert.Equal(t, "findings", loop.Source)
	assert.Equal(t, 2, loop.MaxConcurrency)
	require.NotNil(t, loop.Body.Score)
	assert.Equal(t, "factors", loop.Body.Score.FactorsFrom)
}

func TestPrioritizationEndToEnd(t *testing.T) {
	eng := recipeflow.New(recipeflow.Options{Config: recipeflow.RunConfig{DefaultTimeout: time.Second}})
	require.NoError(t, eng.RegisterCapabilityFunc("score-finding", func(_ context.Context, input map[string]interface{}) (map[string]interface{}, error) {
		item := input["item"].(map[string]interface{})
		return map[string]interface{}{
			"subject": item["id"],
			"factors": item["factors"],
		}, nil
	}))

	def := Prioritization("triage", "finding triage", "findings", "score-finding",
		map[string]float64{"impact": 0.5, "exposure": 0.5}, 2)

	findings := []interface{}{
		map[string]interface{}{"id": "CVE-1", "factors": map[string]interface{}{"impact": 0.9, "exposure": 0.9}},
		map[string]interface{}{"id": "CVE-2", "factors": map[string]interface{}{"impact": 0.4, "exposure": 0.2}},
	}

	ctx := context.Background()
	handle, err := eng.Run(ctx, def, map[string]interface{}{"findings": findings})
	require.NoError(t, err)
	require.NoError(t, handle.Wait(ctx))

	rep, err := eng.Result(handle.RunID)
	require.NoError(t, err)
	require.Len(t, rep.ScoredItems, 2)
	assert.Equal(t, "CVE-1", rep.ScoredItems[0].Subject)
	assert.Equal(t, "critical", rep.ScoredItems[0].Category)
	assert.InDelta(t, 0.9, rep.ScoredItems[0].CompositeScore, 1e-9)
	assert.Equal(t, "CVE-2", rep.ScoredItems[1].Subject)
	assert.Equal(t, "low", rep.ScoredItems[1].Category)
}
