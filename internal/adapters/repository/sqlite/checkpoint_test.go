package sqlite

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

func openTestSaver(t *testing.T) *Saver {
	t.Helper()
	s, err := Open(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleCheckpoint(id, runID string, ts time.Time) *checkpoint.Checkpoint {
	return &checkpoint.Checkpoint{
		ID:           id,
		RunID:        runID,
		DefinitionID: "def-1",
		Boundary:     "/root/fanout",
		Status:       string(run.StatusRunning),
		Snapshot: checkpoint.Snapshot{
			Initial: map[string]interface{}{"host": "db-1"},
			Evidence: []run.Evidence{
				{SourceStep: "/root/a", Category: "disk_pressure", Confidence: 0.7},
			},
			Applied: map[string]map[string]interface{}{
				"/root/a": {"ok": true},
			},
		},
		Timestamp: ts,
		Version:   "1",
	}
}

func TestSQLiteRoundTrip(t *testing.T) {
	s := openTestSaver(t)
	ctx := context.Background()

	cp := sampleCheckpoint("cp-1", "run-1", time.Now())
	require.NoError(t, s.Save(ctx, cp))

	got, err := s.Load(ctx, "cp-1")
	require.NoError(t, err)
	assert.Equal(t, cp.RunID, got.RunID)
	assert.Equal(t, cp.Boundary, got.Boundary)
	require.Len(t, got.Snapshot.Evidence, 1)
	assert.Equal(t, 0.7, got.Snapshot.Evidence[0].Confidence)
	assert.Equal(t, true, got.Snapshot.Applied["/root/a"]["ok"])
}

func TestSQLiteLoadMissing(t *testing.T) {
	s := openTestSaver(t)
	_, err := s.Load(context.Background(), "ghost")
	assert.ErrorIs(t, err, checkpoint.ErrCheckpointNotFound)

	_, err = s.Load(context.Background(), "")
	assert.ErrorIs(t, err, checkpoint.ErrInvalidCheckpointID)
}

func TestSQLiteUpsert(t *testing.T) {
	s := openTestSaver(t)
	ctx := context.Background()

	cp := sampleCheckpoint("cp-1", "run-1", time.Now())
	require.NoError(t, s.Save(ctx, cp))
	cp.Boundary = "/root/later"
	require.NoError(t, s.Save(ctx, cp))

	got, err := s.Load(ctx, "cp-1")
	require.NoError(t, err)
	assert.Equal(t, "/root/later", got.Boundary)
}

func TestSQLiteListFilters(t *testing.T) {
	s := openTestSaver(t)
	ctx := context.Background()
	base := time.Now()

	for i := 0; i < 3; i++ {
		cp := sampleCheckpoint(fmt.Sprintf("cp-%d", i), "run-1", base.Add(time.Duration(i)*time.Second))
		require.NoError(t, s.Save(ctx, cp))
	}
	require.NoError(t, s.Save(ctx, sampleCheckpoint("cp-other", "run-2", base)))

	got, err := s.List(ctx, checkpoint.Filter{RunID: "run-1"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "cp-2", got[0].ID, "newest first")

	since := base.Add(1500 * time.Millisecond)
	newer, err := s.List(ctx, checkpoint.Filter{RunID: "run-1", Since: &since})
	require.NoError(t, err)
	require.Len(t, newer, 1)
	assert.Equal(t, "cp-2", newer[0].ID)

	limited, err := s.List(ctx, checkpoint.Filter{RunID: "run-1", Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "cp-1", limited[0].ID)
}

func TestSQLiteDelete(t *testing.T) {
	s := openTestSaver(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, sampleCheckpoint("cp-1", "run-1", time.Now())))
	require.NoError(t, s.Delete(ctx, "cp-1"))
	assert.ErrorIs(t, s.Delete(ctx, "cp-1"), checkpoint.ErrCheckpointNotFound)
}

func TestWithTableName(t *testing.T) {
	s := openTestSaver(t)
	s.WithTableName("custom_checkpoints")
	require.NoError(t, s.CreateTables(context.Background()))

	cp := sampleCheckpoint("cp-1", "run-1", time.Now())
	require.NoError(t, s.Save(context.Background(), cp))
	_, err := s.Load(context.Background(), "cp-1")
	assert.NoError(t, err)

	// Unsafe identifiers are ignored.
	s.WithTableName("drop table; --")
	assert.Equal(t, "custom_checkpoints", s.tableName)
}
