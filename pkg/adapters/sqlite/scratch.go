// Package sqlite stores scratch slots in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"

	"github.com/aretw0/inkwell/pkg/core"
)

const schema = `CREATE TABLE IF NOT EXISTS scratch (
	key text not null primary key,
	content text not null,
	updated_at timestamp not null default CURRENT_TIMESTAMP
)`

// Store implements core.ScratchStore on a single table.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the database at path and ensures the table exists.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// One writer keeps SQLITE_BUSY out of the picture.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	logger.Debug("sqlite scratch ready", "path", path)
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Load(ctx context.Context, key string) (string, error) {
	var content string
	err := s.db.QueryRowContext(ctx, `SELECT content FROM scratch WHERE key = ?`, key).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", core.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to query scratch: %w", err)
	}
	return content, nil
}

func (s *Store) Save(ctx context.Context, key, content string) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO scratch (key, content, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET content = excluded.content, updated_at = excluded.updated_at`,
		key, content,
	); err != nil {
		return fmt.Errorf("failed to save scratch: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

var _ core.ScratchStore = (*Store)(nil)
