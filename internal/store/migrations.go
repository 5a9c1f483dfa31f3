package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// migration is one forward-only schema step, applied at most once and
// tracked in schema_version.
type migration struct {
	version     int
	description string
	apply       func(ctx context.Context, pool *pgxpool.Pool, embeddingDim int) error
}

// migrations is the ordered list of schema steps. Version 1 applies the
// base schema from schemaSQL; later additive changes go here as new
// entries without editing schemaSQL's CREATE TABLE bodies.
var migrations = []migration{
	{
		version:     1,
		description: "base schema (documents, document_chunks)",
		apply: func(ctx context.Context, pool *pgxpool.Pool, embeddingDim int) error {
			_, err := pool.Exec(ctx, schemaSQL(embeddingDim))
			return err
		},
	},
}

// migrate creates schema_version if needed and applies any migrations
// whose version is not yet recorded, in order.
func migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDim int) error {
	_, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
		version INT PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`)
	if err != nil {
		return fmt.Errorf("store: creating schema_version: %w", err)
	}

	for _, m := range migrations {
		var exists bool
		err := pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM schema_version WHERE version = $1)`, m.version).Scan(&exists)
		if err != nil {
			return fmt.Errorf("store: checking migration %d: %w", m.version, err)
		}
		if exists {
			continue
		}

		// A failed HNSW index build is already tolerated inside
		// schemaSQL (search_vector then runs as a flat scan); any other
		// failure aborts the migration.
		if err := m.apply(ctx, pool, embeddingDim); err != nil {
			return fmt.Errorf("store: applying migration %d (%s): %w", m.version, m.description, err)
		}

		if _, err := pool.Exec(ctx, `INSERT INTO schema_version (version, description) VALUES ($1, $2)`, m.version, m.description); err != nil {
			return fmt.Errorf("store: recording migration %d: %w", m.version, err)
		}
		slog.Info("store: applied migration", "version", m.version, "description", m.description)
	}
	return nil
}
