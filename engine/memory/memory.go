// Package memory implements Fast Memory: the episodic store of confirmed
// (input, intent) exemplars that the retriever searches alongside the
// static corpus.
package memory

import (
	"context"

	"github.com/pkg/errors"
)

// ErrBackend wraps failures of the persistence backend.
var ErrBackend = errors.New("fast memory backend failure")

// Entry is one exemplar as seen by the engine.
type Entry struct {
	ID             string
	UserText       string
	NormalizedText string
	IntentID       string
	Embedding      []float32
	Confidence     float64
	Source         string
	Golden         bool
}

// QueryResult pairs an entry with its similarity to the query vector.
type QueryResult struct {
	Entry
	Similarity float32
}

// Store is the Fast Memory abstraction. The in-process backend serves tests
// and demo mode; the persistent backend delegates to the storage driver.
type Store interface {
	// Add stores an exemplar and returns its id. An empty Entry.ID is
	// assigned; a caller-provided id is kept.
	Add(ctx context.Context, entry Entry) (string, error)

	// Query returns up to limit exemplars ranked by similarity descending,
	// ties broken by id ascending.
	Query(ctx context.Context, vector []float32, limit int) ([]QueryResult, error)

	// Count returns the number of stored exemplars.
	Count(ctx context.Context) (int64, error)

	// Clear removes all exemplars.
	Clear(ctx context.Context) error
}
