package memory

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/intentd/intentd/store"
)

// Persistent is a Fast Memory backed by the storage driver, so exemplars
// survive restarts and are shared across replicas.
type Persistent struct {
	store *store.Store
}

// NewPersistent creates a Fast Memory on top of the store.
func NewPersistent(s *store.Store) *Persistent {
	return &Persistent{store: s}
}

func (m *Persistent) Add(ctx context.Context, entry Entry) (string, error) {
	if len(entry.Embedding) == 0 {
		return "", errors.New("exemplar embedding required")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	_, err := m.store.CreateMemoryExemplar(ctx, &store.MemoryExemplar{
		ID:             entry.ID,
		UserText:       entry.UserText,
		NormalizedText: entry.NormalizedText,
		IntentID:       entry.IntentID,
		Embedding:      entry.Embedding,
		Confidence:     entry.Confidence,
		Source:         entry.Source,
		Golden:         entry.Golden,
	})
	if err != nil {
		return "", errors.Wrap(ErrBackend, err.Error())
	}
	return entry.ID, nil
}

func (m *Persistent) Query(ctx context.Context, vector []float32, limit int) ([]QueryResult, error) {
	scored, err := m.store.ExemplarVectorSearch(ctx, &store.ExemplarVectorSearchOptions{
		Vector: vector,
		Limit:  limit,
	})
	if err != nil {
		return nil, errors.Wrap(ErrBackend, err.Error())
	}

	results := make([]QueryResult, 0, len(scored))
	for _, s := range scored {
		results = append(results, QueryResult{
			Entry: Entry{
				ID:             s.ID,
				UserText:       s.UserText,
				NormalizedText: s.NormalizedText,
				IntentID:       s.IntentID,
				Embedding:      s.Embedding,
				Confidence:     s.Confidence,
				Source:         s.Source,
				Golden:         s.Golden,
			},
			Similarity: s.Score,
		})
	}
	return results, nil
}

func (m *Persistent) Count(ctx context.Context) (int64, error) {
	count, err := m.store.CountMemoryExemplars(ctx)
	if err != nil {
		return 0, errors.Wrap(ErrBackend, err.Error())
	}
	return count, nil
}

func (m *Persistent) Clear(ctx context.Context) error {
	if err := m.store.DeleteMemoryExemplars(ctx, &store.DeleteMemoryExemplar{All: true}); err != nil {
		return errors.Wrap(ErrBackend, err.Error())
	}
	return nil
}
