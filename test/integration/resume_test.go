// Package integration exercises the public engine across process-like
// boundaries: a run interrupted on one engine instance resumes on another
// sharing only the checkpoint saver, and the outcome matches an
// uninterrupted run.
package integration

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recipeflow/recipeflow/internal/adapters/repository/memory"
	"github.com/recipeflow/recipeflow/internal/core/checkpoint"
	"github.com/recipeflow/recipeflow/pkg/recipeflow"
)

type capStats struct {
	fetch, disk, mem, summarize int32
}

func registerCapabilities(t *testing.T, eng *recipeflow.Engine, stats *capStats, gate chan struct{}, entered chan struct{}) {
	t.Helper()
	require.NoError(t, eng.RegisterCapabilityFunc("fetch-metrics", func(_ context.Context, _ map[string]interface{}) (map[string]interface{}, error) {
		atomic.AddInt32(&stats.fetch, 1)
		return map[string]interface{}{"usage_pct": 94.0, "confidence": 0.7}, nil
	}))
	require.NoError(t, eng.RegisterCapabilityFunc("check-disk", func(_ context.Context, _ map[string]interface{}) (map[string]interface{}, error) {
		atomic.AddInt32(&stats.disk, 1)
		return map[string]interface{}{"confidence": 0.6}, nil
	}))
	require.NoError(t, eng.RegisterCapabilityFunc("check-memory", func(_ context.Context, _ map[string]interface{}) (map[string]interface{}, error) {
		atomic.AddInt32(&stats.mem, 1)
		return map[string]interface{}{"confidence": 0.3}, nil
	}))
	require.NoError(t, eng.RegisterCapabilityFunc("summarize", func(ctx context.Context, _ map[string]interface{}) (map[string]interface{}, error) {
		atomic.AddInt32(&stats.summarize, 1)
		if gate != nil {
			select {
			case entered <- struct{}{}:
			default:
			}
			select {
			case <-gate:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return nil, nil
	}))
}

func diagnosisDefinition() *recipeflow.Definition {
	return &recipeflow.Definition{
		ID:   "db-diagnosis",
		Name: "database diagnosis",
		Root: &recipeflow.Step{
			ID:   "root",
			Type: recipeflow.TypeSequence,
			Steps: []*recipeflow.Step{
				{ID: "fetch", Type: recipeflow.TypeAction, Capability: "fetch-metrics",
					Publish:  []string{"usage_pct"},
					Evidence: &recipeflow.EvidenceSpec{Category: "baseline", ConfidenceFrom: "confidence"}},
				{ID: "checks", Type: recipeflow.TypeParallel, Branches: []*recipeflow.Step{
					{ID: "disk", Type: recipeflow.TypeAction, Capability: "check-disk", OnFailure: recipeflow.Skip,
						Evidence: &recipeflow.EvidenceSpec{Category: "disk_pressure", ConfidenceFrom: "confidence"}},
					{ID: "mem", Type: recipeflow.TypeAction, Capability: "check-memory", OnFailure: recipeflow.Skip,
						Evidence: &recipeflow.EvidenceSpec{Category: "memory_pressure", ConfidenceFrom: "confidence"}},
				}},
				{ID: "summarize", Type: recipeflow.TypeAction, Capability: "summarize",
					Input: map[string]interface{}{"usage": "$usage_pct"}},
			},
		},
	}
}

type hypothesisView struct {
	Category   string
	Confidence float64
	Count      int
}

type evidenceView struct {
	Source   string
	Category string
	Conf     float64
	Err      bool
}

func projectReport(rep *recipeflow.FinalReport) ([]hypothesisView, []evidenceView) {
	hs := make([]hypothesisView, 0, len(rep.Hypotheses))
	for _, h := range rep.Hypotheses {
		hs = append(hs, hypothesisView{Category: h.Category, Confidence: h.Confidence, Count: h.EvidenceCount})
	}
	evs := make([]evidenceView, 0, len(rep.Evidence))
	for _, ev := range rep.Evidence {
		evs = append(evs, evidenceView{Source: ev.SourceStep, Category: ev.Category, Conf: ev.Confidence, Err: ev.Err})
	}
	return hs, evs
}

func TestInterruptedRunMatchesUninterrupted(t *testing.T) {
	ctx := context.Background()
	cfg := recipeflow.RunConfig{DefaultTimeout: 2 * time.Second, Checkpoints: true}
	def := diagnosisDefinition()

	// Shared saver plays the role of the durable store both engine
	// instances can reach.
	saver := memory.DefaultSaver()
	defer saver.Close()

	var statsA capStats
	gate := make(chan struct{})
	entered := make(chan struct{})
	engA := recipeflow.New(recipeflow.Options{Saver: saver, Config: cfg})
	registerCapabilities(t, engA, &statsA, gate, entered)
	require.NoError(t, engA.RegisterDefinition(def))

	handle, err := engA.Run(ctx, def, map[string]interface{}{"host": "db-1"})
	require.NoError(t, err)
	<-entered

	// The gated summarize step holds the run mid-flight; cancelling here
	// simulates the first instance going away after the parallel join
	// checkpointed.
	require.NoError(t, engA.Cancel(handle.RunID))
	require.Error(t, handle.Wait(ctx))
	assert.Equal(t, int32(1), atomic.LoadInt32(&statsA.fetch))
	assert.Equal(t, int32(1), atomic.LoadInt32(&statsA.summarize))

	// A second instance resumes from the latest durable checkpoint.
	var statsB capStats
	engB := recipeflow.New(recipeflow.Options{Saver: saver, Config: cfg})
	registerCapabilities(t, engB, &statsB, nil, nil)
	require.NoError(t, engB.RegisterDefinition(def))

	status, err := engA.Status(handle.RunID)
	require.NoError(t, err)

	// Find the checkpoint through a probe suspend is not possible on a
	// terminal run; resume from the snapshot the join boundary left behind.
	cpID := latestCheckpointID(t, ctx, saver, status.RunID)
	resumed, err := engB.Resume(ctx, cpID)
	require.NoError(t, err)
	require.NoError(t, resumed.Wait(ctx))

	assert.Zero(t, atomic.LoadInt32(&statsB.fetch), "committed steps never re-invoke")
	assert.Zero(t, atomic.LoadInt32(&statsB.disk))
	assert.Zero(t, atomic.LoadInt32(&statsB.mem))
	assert.Equal(t, int32(1), atomic.LoadInt32(&statsB.summarize), "only the uncommitted tail re-runs")

	resumedReport, err := engB.Result(resumed.RunID)
	require.NoError(t, err)
	assert.Equal(t, recipeflow.StatusCompleted, resumedReport.Status)

	// A fresh, never-interrupted run on a third instance produces the same
	// hypotheses and the same evidence log.
	var statsC capStats
	engC := recipeflow.New(recipeflow.Options{Config: cfg})
	registerCapabilities(t, engC, &statsC, nil, nil)
	clean, err := engC.Run(ctx, def, map[string]interface{}{"host": "db-1"})
	require.NoError(t, err)
	require.NoError(t, clean.Wait(ctx))
	cleanReport, err := engC.Result(clean.RunID)
	require.NoError(t, err)

	resumedHyps, resumedEvs := projectReport(resumedReport)
	cleanHyps, cleanEvs := projectReport(cleanReport)
	assert.Equal(t, cleanHyps, resumedHyps)
	assert.Equal(t, cleanEvs, resumedEvs)
}

func latestCheckpointID(t *testing.T, ctx context.Context, saver *memory.Saver, runID string) string {
	t.Helper()
	cps, err := saver.List(ctx, checkpoint.Filter{RunID: runID, Limit: 1})
	require.NoError(t, err)
	require.NotEmpty(t, cps, "the parallel join boundary checkpointed before the interruption")
	return cps[0].ID
}
