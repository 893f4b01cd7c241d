package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pkg/errors"

	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"

	"github.com/intentd/intentd/internal/profile"
	"github.com/intentd/intentd/store"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens a PostgreSQL connection using the profile DSN.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	postgresDB, err := sql.Open("postgres", profile.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}

	return &DB{db: postgresDB, profile: profile}, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Migrate creates the schema. Requires the pgvector extension for the
// exemplar embedding column.
func (d *DB) Migrate(ctx context.Context) error {
	dim := d.profile.EmbeddingDimensions
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS memory_exemplar (
			id TEXT PRIMARY KEY,
			user_text TEXT NOT NULL,
			normalized_text TEXT NOT NULL DEFAULT '',
			intent_id TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
			source TEXT NOT NULL DEFAULT 'feedback',
			golden BOOLEAN NOT NULL DEFAULT FALSE,
			created_ts BIGINT NOT NULL
		)`, dim),
		`CREATE INDEX IF NOT EXISTS idx_memory_exemplar_intent ON memory_exemplar (intent_id)`,
		`CREATE TABLE IF NOT EXISTS review_queue (
			id TEXT PRIMARY KEY,
			user_text TEXT NOT NULL,
			predicted_intent_id TEXT NOT NULL,
			suggested_intent_id TEXT NOT NULL DEFAULT '',
			reason TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			resolved_intent_id TEXT NOT NULL DEFAULT '',
			created_ts BIGINT NOT NULL,
			resolved_ts BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_review_queue_status ON review_queue (status)`,
		`CREATE TABLE IF NOT EXISTS feedback_event (
			id BIGSERIAL PRIMARY KEY,
			user_text TEXT NOT NULL,
			predicted_intent_id TEXT NOT NULL,
			correct_intent_id TEXT NOT NULL,
			correct BOOLEAN NOT NULL,
			created_ts BIGINT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to migrate schema")
		}
	}
	return nil
}

// placeholder returns the n-th positional parameter, e.g. $1.
func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

func joinAnd(where []string) string {
	out := where[0]
	for _, w := range where[1:] {
		out += " AND " + w
	}
	return out
}
