package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/intentd/intentd/engine/vec"
)

// InProcess is a mutex-guarded, in-memory Fast Memory backend. It is the
// default for demo mode and for tests; nothing survives a restart.
type InProcess struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewInProcess creates an empty in-process Fast Memory.
func NewInProcess() *InProcess {
	return &InProcess{}
}

func (m *InProcess) Add(_ context.Context, entry Entry) (string, error) {
	if len(entry.Embedding) == 0 {
		return "", errors.New("exemplar embedding required")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	// Copy the vector so later caller mutations cannot corrupt the store.
	embedding := make([]float32, len(entry.Embedding))
	copy(embedding, entry.Embedding)
	entry.Embedding = embedding

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return entry.ID, nil
}

func (m *InProcess) Query(_ context.Context, vector []float32, limit int) ([]QueryResult, error) {
	if limit <= 0 {
		limit = 10
	}

	m.mu.RLock()
	results := make([]QueryResult, 0, len(m.entries))
	for _, entry := range m.entries {
		results = append(results, QueryResult{
			Entry:      entry,
			Similarity: vec.Similarity(vector, entry.Embedding),
		})
	}
	m.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (m *InProcess) Count(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.entries)), nil
}

func (m *InProcess) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
	return nil
}
