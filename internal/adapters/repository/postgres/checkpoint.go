// Package postgres provides a durable checkpoint saver backed by
// PostgreSQL via pgx connection pooling.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/recipeflow/recipeflow/internal/core/checkpoint"
	"github.com/recipeflow/recipeflow/pkg/serialization"
)

// Saver implements checkpoint.Saver for PostgreSQL.
type Saver struct {
	pool       *pgxpool.Pool
	serializer *serialization.Serializer
	tableName  string
}

// NewSaver creates a PostgreSQL checkpoint saver.
func NewSaver(pool *pgxpool.Pool, serializer *serialization.Serializer) *Saver {
	if serializer == nil {
		serializer = serialization.Default()
	}
	return &Saver{pool: pool, serializer: serializer, tableName: "checkpoints"}
}

// Connect opens a pool for dsn and returns a saver with its schema applied.
func Connect(ctx context.Context, dsn string, serializer *serialization.Serializer) (*Saver, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := NewSaver(pool, serializer)
	if err := s.CreateTables(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Save stores a checkpoint, replacing any previous row with the same ID.
func (s *Saver) Save(ctx context.Context, cp *checkpoint.Checkpoint) error {
	if cp == nil {
		return checkpoint.ErrInvalidCheckpointID
	}
	if err := cp.Validate(); err != nil {
		return err
	}
	data, err := s.serializer.Marshal(cp)
	if err != nil {
		return fmt.Errorf("serialize checkpoint: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, run_id, definition_id, boundary, status, snapshot, timestamp, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			boundary = EXCLUDED.boundary,
			status = EXCLUDED.status,
			snapshot = EXCLUDED.snapshot,
			timestamp = EXCLUDED.timestamp
	`, s.tableName)

	_, err = s.pool.Exec(ctx, query,
		cp.ID, cp.RunID, cp.DefinitionID, cp.Boundary, cp.Status, data, cp.Timestamp, cp.Version)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Load retrieves a checkpoint by ID.
func (s *Saver) Load(ctx context.Context, id string) (*checkpoint.Checkpoint, error) {
	if id == "" {
		return nil, checkpoint.ErrInvalidCheckpointID
	}

	query := fmt.Sprintf(`SELECT snapshot FROM %s WHERE id = $1`, s.tableName)

	var data []byte
	err := s.pool.QueryRow(ctx, query, id).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, checkpoint.ErrCheckpointNotFound
		}
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	var cp checkpoint.Checkpoint
	if err := s.serializer.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("deserialize checkpoint: %w", err)
	}
	return &cp, nil
}

// List retrieves checkpoints matching the filter, newest first.
func (s *Saver) List(ctx context.Context, filter checkpoint.Filter) ([]*checkpoint.Checkpoint, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	query, args := s.buildListQuery(filter)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var checkpoints []*checkpoint.Checkpoint
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan checkpoint row: %w", err)
		}
		var cp checkpoint.Checkpoint
		if err := s.serializer.Unmarshal(data, &cp); err != nil {
			return nil, fmt.Errorf("deserialize checkpoint: %w", err)
		}
		checkpoints = append(checkpoints, &cp)
	}
	return checkpoints, rows.Err()
}

// Delete removes a checkpoint by ID.
func (s *Saver) Delete(ctx context.Context, id string) error {
	if id == "" {
		return checkpoint.ErrInvalidCheckpointID
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.tableName)
	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return checkpoint.ErrCheckpointNotFound
	}
	return nil
}

// CreateTables creates the checkpoint table and its indexes.
func (s *Saver) CreateTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			definition_id TEXT NOT NULL,
			boundary TEXT,
			status TEXT,
			snapshot BYTEA NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL,
			version TEXT NOT NULL DEFAULT '1'
		);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_run_id ON %[1]s (run_id);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_definition_id ON %[1]s (definition_id);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_timestamp ON %[1]s (timestamp);
	`, s.tableName)

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

func (s *Saver) buildListQuery(filter checkpoint.Filter) (string, []interface{}) {
	query := fmt.Sprintf("SELECT snapshot FROM %s WHERE 1=1", s.tableName)
	args := make([]interface{}, 0)
	n := 0
	next := func() string {
		n++
		return fmt.Sprintf("$%d", n)
	}

	if filter.RunID != "" {
		query += " AND run_id = " + next()
		args = append(args, filter.RunID)
	}
	if filter.DefinitionID != "" {
		query += " AND definition_id = " + next()
		args = append(args, filter.DefinitionID)
	}
	if filter.Since != nil {
		query += " AND timestamp > " + next()
		args = append(args, *filter.Since)
	}
	if filter.Before != nil {
		query += " AND timestamp < " + next()
		args = append(args, *filter.Before)
	}
	query += " ORDER BY timestamp DESC"
	if filter.Limit > 0 {
		query += " LIMIT " + next()
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET " + next()
		args = append(args, filter.Offset)
	}
	return query, args
}

// Close releases the connection pool.
func (s *Saver) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
