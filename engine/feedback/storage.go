package feedback

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/intentd/intentd/store"
)

// InMemoryStorage is a Persistence implementation for demo mode and tests.
type InMemoryStorage struct {
	mu      sync.RWMutex
	events  []*store.FeedbackEvent
	reviews []*store.ReviewQueueItem
	nextID  int64
}

// NewInMemoryStorage creates an empty in-memory persistence.
func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{nextID: 1}
}

func (s *InMemoryStorage) CreateFeedbackEvent(_ context.Context, create *store.FeedbackEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	create.ID = s.nextID
	s.nextID++
	if create.CreatedTs == 0 {
		create.CreatedTs = time.Now().Unix()
	}
	s.events = append(s.events, create)
	return nil
}

func (s *InMemoryStorage) CreateReviewItem(_ context.Context, create *store.ReviewQueueItem) (*store.ReviewQueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if create.CreatedTs == 0 {
		create.CreatedTs = time.Now().Unix()
	}
	if create.Status == "" {
		create.Status = store.ReviewStatusPending
	}
	s.reviews = append(s.reviews, create)
	return create, nil
}

func (s *InMemoryStorage) ListReviewItems(_ context.Context, find *store.FindReviewQueue) ([]*store.ReviewQueueItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*store.ReviewQueueItem{}
	// Newest first, matching the database drivers.
	for i := len(s.reviews) - 1; i >= 0; i-- {
		item := s.reviews[i]
		if find.ID != nil && item.ID != *find.ID {
			continue
		}
		if find.Status != nil && item.Status != *find.Status {
			continue
		}
		copied := *item
		out = append(out, &copied)
		if find.Limit > 0 && len(out) >= find.Limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryStorage) ResolveReviewItem(_ context.Context, id string, resolvedIntentID string) (*store.ReviewQueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.reviews {
		if item.ID != id || item.Status != store.ReviewStatusPending {
			continue
		}
		item.Status = store.ReviewStatusResolved
		item.ResolvedIntentID = resolvedIntentID
		item.ResolvedTs = time.Now().Unix()
		copied := *item
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (s *InMemoryStorage) GetFeedbackStats(_ context.Context) (*store.FeedbackStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := &store.FeedbackStats{
		ByIntent:    map[string]int64{},
		LastUpdated: time.Now().Unix(),
	}
	for _, event := range s.events {
		stats.TotalEvents++
		if event.Correct {
			stats.CorrectCount++
		} else {
			stats.IncorrectCount++
		}
		if event.CorrectIntentID != "" {
			stats.ByIntent[event.CorrectIntentID]++
		}
	}
	if stats.TotalEvents > 0 {
		stats.Accuracy = float64(stats.CorrectCount) / float64(stats.TotalEvents)
	}
	for _, item := range s.reviews {
		if item.Status == store.ReviewStatusPending {
			stats.PendingReviews++
		}
	}
	return stats, nil
}
