package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recipeflow/recipeflow/internal/adapters/repository/memory"
	"github.com/recipeflow/recipeflow/internal/core/checkpoint"
	"github.com/recipeflow/recipeflow/internal/core/run"
)

func newService(t *testing.T) *CheckpointService {
	t.Helper()
	saver := memory.DefaultSaver()
	t.Cleanup(func() { saver.Close() })
	return NewCheckpointService(saver)
}

func seededState() *run.State {
	state := run.New("run-1", "def-1", map[string]interface{}{"host": "db-1"})
	state.Record(run.Evidence{SourceStep: "/root/a", Category: "disk_pressure", Confidence: 0.7})
	state.Record(run.Evidence{SourceStep: "/root/b", Category: "memory_pressure", Confidence: 0.3})
	state.RecordScore(run.ScoreSubmission{
		SourceStep:   "/root/c",
		Subject:      "db-1",
		FactorScores: map[string]float64{"impact": 0.8},
		Weights:      map[string]float64{"impact": 1.0},
	})
	state.MarkApplied("/root/a", map[string]interface{}{"usage_pct": float64(94)})
	state.MarkSkipped("/root/d")
	return state
}

func TestSnapshotAndRestore(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	state := seededState()

	cp, err := svc.Snapshot(ctx, state, "/root/fanout")
	require.NoError(t, err)
	assert.NotEmpty(t, cp.ID)
	assert.Equal(t, "/root/fanout", cp.Boundary)
	assert.Equal(t, string(run.StatusRunning), cp.Status)

	loaded, err := svc.Load(ctx, cp.ID)
	require.NoError(t, err)

	restored := svc.Restore(loaded)
	assert.Equal(t, "run-1", restored.RunID)
	assert.Equal(t, "def-1", restored.DefinitionID)
	assert.Equal(t, run.StatusRunning, restored.CurrentStatus())

	v, ok := restored.Root.Lookup("host")
	require.True(t, ok)
	assert.Equal(t, "db-1", v)

	assert.Equal(t, state.EvidenceLog(), restored.EvidenceLog())
	assert.Equal(t, state.ScoreLog(), restored.ScoreLog())

	outputs, ok := restored.AppliedOutputs("/root/a")
	require.True(t, ok)
	assert.Equal(t, float64(94), outputs["usage_pct"])

	assert.Equal(t, []string{"/root/d"}, loaded.Snapshot.Skipped)
	assert.True(t, restored.SkippedAt("/root/d"))
}

func TestSnapshotNilState(t *testing.T) {
	svc := newService(t)
	_, err := svc.Snapshot(context.Background(), nil, "/root")
	assert.Error(t, err)
}

func TestLatest(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	state := seededState()

	first, err := svc.Snapshot(ctx, state, "/root/first")
	require.NoError(t, err)
	_ = first

	state.Record(run.Evidence{SourceStep: "/root/c", Category: "late"})
	second, err := svc.Snapshot(ctx, state, "/root/second")
	require.NoError(t, err)

	latest, err := svc.Latest(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
	assert.Len(t, latest.Snapshot.Evidence, 3)
}

func TestLatestMissing(t *testing.T) {
	svc := newService(t)
	_, err := svc.Latest(context.Background(), "ghost")
	assert.ErrorIs(t, err, checkpoint.ErrCheckpointNotFound)
}
