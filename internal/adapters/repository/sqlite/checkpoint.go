// Package sqlite provides a durable checkpoint saver backed by SQLite,
// using the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/recipeflow/recipeflow/internal/core/checkpoint"
	"github.com/recipeflow/recipeflow/pkg/serialization"
)

// Saver implements checkpoint.Saver for SQLite. The snapshot travels as one
// opaque envelope blob; queryable fields get their own columns.
type Saver struct {
	db         *sql.DB
	serializer *serialization.Serializer
	tableName  string
}

// NewSaver creates a SQLite checkpoint saver.
func NewSaver(db *sql.DB, serializer *serialization.Serializer) *Saver {
	if serializer == nil {
		serializer = serialization.Default()
	}
	return &Saver{db: db, serializer: serializer, tableName: "checkpoints"}
}

// Open opens (or creates) a SQLite database at path and returns a saver
// with its schema applied. Use ":memory:" for an ephemeral store.
func Open(ctx context.Context, path string, serializer *serialization.Serializer) (*Saver, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	s := NewSaver(db, serializer)
	if err := s.CreateTables(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// WithTableName overrides the default table name. Only alphanumeric and
// underscore identifiers are accepted to keep the interpolated identifier
// injection-safe.
func (s *Saver) WithTableName(name string) *Saver {
	if isSafeIdent(name) {
		s.tableName = name
	}
	return s
}

func isSafeIdent(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			continue
		}
		return false
	}
	return true
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
		INSERT OR REPLACE INTO %s (id, run_id, definition_id, boundary, status, snapshot, timestamp, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, s.tableName)

	_, err = s.db.ExecContext(ctx, query,
		cp.ID, cp.RunID, cp.DefinitionID, cp.Boundary, cp.Status, data, cp.Timestamp.UnixNano(), cp.Version)
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

	query := fmt.Sprintf(`SELECT snapshot FROM %s WHERE id = ?`, s.tableName)

	var data []byte
	err := s.db.QueryRowContext(ctx, query, id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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

	rows, err := s.db.QueryContext(ctx, query, args...)
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
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", s.tableName)
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
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
			snapshot BLOB NOT NULL,
			timestamp INTEGER NOT NULL,
			version TEXT NOT NULL DEFAULT '1'
		);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_run_id ON %[1]s (run_id);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_definition_id ON %[1]s (definition_id);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_timestamp ON %[1]s (timestamp);
	`, s.tableName)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

func (s *Saver) buildListQuery(filter checkpoint.Filter) (string, []interface{}) {
	query := fmt.Sprintf("SELECT snapshot FROM %s WHERE 1=1", s.tableName)
	args := make([]interface{}, 0)

	if filter.RunID != "" {
		query += " AND run_id = ?"
		args = append(args, filter.RunID)
	}
	if filter.DefinitionID != "" {
		query += " AND definition_id = ?"
		args = append(args, filter.DefinitionID)
	}
	if filter.Since != nil {
		query += " AND timestamp > ?"
		args = append(args, filter.Since.UnixNano())
	}
	if filter.Before != nil {
		query += " AND timestamp < ?"
		args = append(args, filter.Before.UnixNano())
	}
	query += " ORDER BY timestamp DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}
	return query, args
}

// Close closes the database connection.
func (s *Saver) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
