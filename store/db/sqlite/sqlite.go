package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	// Import the SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/intentd/intentd/internal/profile"
	"github.com/intentd/intentd/store"
)

// SQLite is the default backend for demo and single-user deployments.
// Vectors are stored as little-endian float32 BLOBs and similarity is
// computed in the application layer: Fast Memory stays small (hundreds of
// exemplars), so a linear scan is cheaper than carrying a vector extension.

type DB struct {
	db      *sql.DB
	profile *profile.Profile

	// dim is the embedding dimension every stored vector must match.
	dim int
}

// NewDB opens the SQLite database named by the profile DSN.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	// WAL journal mode with a busy timeout avoids locking issues; a single
	// connection is optimal for SQLite under WAL.
	sqliteDB, err := sql.Open("sqlite", profile.DSN+"?_pragma=foreign_keys(0)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}

	sqliteDB.SetMaxOpenConns(1)
	sqliteDB.SetMaxIdleConns(1)
	sqliteDB.SetConnMaxLifetime(0)
	sqliteDB.SetConnMaxIdleTime(0)

	return &DB{db: sqliteDB, profile: profile, dim: profile.EmbeddingDimensions}, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Migrate creates the schema. All statements are idempotent.
func (d *DB) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS memory_exemplar (
			id TEXT PRIMARY KEY,
			user_text TEXT NOT NULL,
			normalized_text TEXT NOT NULL DEFAULT '',
			intent_id TEXT NOT NULL,
			embedding BLOB NOT NULL,
			confidence REAL NOT NULL DEFAULT 0,
			source TEXT NOT NULL DEFAULT 'feedback',
			golden INTEGER NOT NULL DEFAULT 0,
			created_ts BIGINT NOT NULL
		)`,
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
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_text TEXT NOT NULL,
			predicted_intent_id TEXT NOT NULL,
			correct_intent_id TEXT NOT NULL,
			correct INTEGER NOT NULL,
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

// float32ArrayToBLOB converts a []float32 to a little-endian BLOB and
// validates the vector dimension.
func (d *DB) float32ArrayToBLOB(vec []float32) ([]byte, error) {
	if d.dim > 0 && len(vec) != d.dim {
		return nil, errors.Errorf("invalid vector dimension: got %d, want %d", len(vec), d.dim)
	}
	if len(vec) == 0 {
		return nil, errors.New("empty vector")
	}
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], math.Float32bits(v))
	}
	return buf, nil
}

// blobToFloat32Array is the inverse of float32ArrayToBLOB.
func blobToFloat32Array(blob []byte) ([]float32, error) {
	if len(blob) == 0 || len(blob)%4 != 0 {
		return nil, errors.Errorf("invalid BLOB length: %d", len(blob))
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		bits := binary.LittleEndian.Uint32(blob[i*4 : i*4+4])
		vec[i] = math.Float32frombits(bits)
	}
	return vec, nil
}

// cosineSimilarity returns the cosine of the angle between a and b,
// floored at 0 so opposed vectors score the same as unrelated ones —
// matching the postgres driver and the engine-side similarity.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if cos < 0 {
		return 0
	}
	return float32(cos)
}
