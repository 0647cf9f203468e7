package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recipeflow/recipeflow/internal/core/checkpoint"
	"github.com/recipeflow/recipeflow/internal/core/run"
)

func sampleCheckpoint(id, runID string) *checkpoint.Checkpoint {
	return &checkpoint.Checkpoint{
		ID:           id,
		RunID:        runID,
		DefinitionID: "def-1",
		Boundary:     "/root/fanout",
		Status:       string(run.StatusRunning),
		Snapshot: checkpoint.Snapshot{
			Initial: map[string]interface{}{"host": "db-1"},
			Evidence: []run.Evidence{
				{SourceStep: "/root/a", Category: "disk_pressure", Confidence: 0.7, Seq: 0},
			},
			Applied: map[string]map[string]interface{}{
				"/root/a": {"usage_pct": float64(94)},
			},
		},
		Timestamp: time.Now(),
		Version:   "1",
	}
}

func TestSaveAndLoad(t *testing.T) {
	s := DefaultSaver()
	defer s.Close()
	ctx := context.Background()

	cp := sampleCheckpoint("cp-1", "run-1")
	require.NoError(t, s.Save(ctx, cp))

	got, err := s.Load(ctx, "cp-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, "/root/fanout", got.Boundary)
	require.Len(t, got.Snapshot.Evidence, 1)
	assert.Equal(t, 0.7, got.Snapshot.Evidence[0].Confidence)
	assert.Equal(t, float64(94), got.Snapshot.Applied["/root/a"]["usage_pct"])
}

func TestSaveRejectsInvalid(t *testing.T) {
	s := DefaultSaver()
	defer s.Close()
	ctx := context.Background()

	assert.ErrorIs(t, s.Save(ctx, nil), checkpoint.ErrInvalidCheckpointID)

	bad := sampleCheckpoint("", "run-1")
	assert.ErrorIs(t, s.Save(ctx, bad), checkpoint.ErrInvalidCheckpointID)

	noRun := sampleCheckpoint("cp-1", "")
	assert.ErrorIs(t, s.Save(ctx, noRun), checkpoint.ErrInvalidRunID)
}

func TestLoadMissing(t *testing.T) {
	s := DefaultSaver()
	defer s.Close()
	_, err := s.Load(context.Background(), "ghost")
	assert.ErrorIs(t, err, checkpoint.ErrCheckpointNotFound)
}

func TestListFiltersAndOrders(t *testing.T) {
	s := DefaultSaver()
	defer s.Close()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		cp := sampleCheckpoint(fmt.Sprintf("cp-%d", i), "run-1")
		require.NoError(t, s.Save(ctx, cp))
		time.Sleep(2 * time.Millisecond)
	}
	other := sampleCheckpoint("cp-other", "run-2")
	require.NoError(t, s.Save(ctx, other))

	got, err := s.List(ctx, checkpoint.Filter{RunID: "run-1"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "cp-2", got[0].ID, "newest first")

	limited, err := s.List(ctx, checkpoint.Filter{RunID: "run-1", Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "cp-2", limited[0].ID)

	offset, err := s.List(ctx, checkpoint.Filter{RunID: "run-1", Offset: 2})
	require.NoError(t, err)
	require.Len(t, offset, 1)
	assert.Equal(t, "cp-0", offset[0].ID)

	none, err := s.List(ctx, checkpoint.Filter{RunID: "run-1", Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestListRejectsBadFilter(t *testing.T) {
	s := DefaultSaver()
	defer s.Close()
	_, err := s.List(context.Background(), checkpoint.Filter{Limit: -1})
	assert.Error(t, err)
}

func TestDelete(t *testing.T) {
	s := DefaultSaver()
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, sampleCheckpoint("cp-1", "run-1")))
	require.NoError(t, s.Delete(ctx, "cp-1"))
	assert.ErrorIs(t, s.Delete(ctx, "cp-1"), checkpoint.ErrCheckpointNotFound)
}

func TestTTLExpiry(t *testing.T) {
	s := NewSaver(Config{DefaultTTL: 5 * time.Millisecond, CleanupInterval: time.Hour})
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, sampleCheckpoint("cp-1", "run-1")))
	time.Sleep(10 * time.Millisecond)

	_, err := s.Load(ctx, "cp-1")
	assert.ErrorIs(t, err, checkpoint.ErrCheckpointNotFound)
}

func TestMaxEntriesEvictsOldest(t *testing.T) {
	s := NewSaver(Config{MaxEntries: 2, CleanupInterval: time.Hour})
	defer s.Close()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Save(ctx, sampleCheckpoint(fmt.Sprintf("cp-%d", i), "run-1")))
		time.Sleep(2 * time.Millisecond)
	}

	_, err := s.Load(ctx, "cp-0")
	assert.ErrorIs(t, err, checkpoint.ErrCheckpointNotFound, "oldest entry evicted")
	_, err = s.Load(ctx, "cp-2")
	assert.NoError(t, err)
}

func TestOverwriteSameID(t *testing.T) {
	s := DefaultSaver()
	defer s.Close()
	ctx := context.Background()

	cp := sampleCheckpoint("cp-1", "run-1")
	require.NoError(t, s.Save(ctx, cp))
	cp.Boundary = "/root/later"
	require.NoError(t, s.Save(ctx, cp))

	got, err := s.Load(ctx, "cp-1")
	require.NoError(t, err)
	assert.Equal(t, "/root/later", got.Boundary)
}
