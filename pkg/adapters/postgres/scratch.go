// Package postgres stores scratch slots in PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aretw0/inkwell/pkg/core"
)

const schema = `CREATE TABLE IF NOT EXISTS inkwell_scratch (
	key text PRIMARY KEY,
	content text NOT NULL,
	updated_at timestamptz NOT NULL DEFAULT now()
)`

// Store implements core.ScratchStore.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Connect opens a pool for dsn, pings it and ensures the table exists.
func Connect(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	logger.Debug("postgres scratch ready")
	return &Store{pool: pool, logger: logger}, nil
}

func (s *Store) Load(ctx context.Context, key string) (string, error) {
	var content string
	err := s.pool.QueryRow(ctx, `SELECT content FROM inkwell_scratch WHERE key = $1`, key).Scan(&content)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", core.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to query scratch: %w", err)
	}
	return content, nil
}

func (s *Store) Save(ctx context.Context, key, content string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO inkwell_scratch (key, content, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET content = EXCLUDED.content, updated_at = now()`,
		key, content,
	)
	if err != nil {
		return fmt.Errorf("failed to save scratch: %w", err)
	}
	return nil
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

var _ core.ScratchStore = (*Store)(nil)
