package store

import (
	"context"

	"github.com/intentd/intentd/internal/profile"
)

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) Close() error {
	return s.driver.Close()
}

func (s *Store) CreateMemoryExemplar(ctx context.Context, create *MemoryExemplar) (*MemoryExemplar, error) {
	return s.driver.CreateMemoryExemplar(ctx, create)
}

func (s *Store) ListMemoryExemplars(ctx context.Context, find *FindMemoryExemplar) ([]*MemoryExemplar, error) {
	return s.driver.ListMemoryExemplars(ctx, find)
}

func (s *Store) CountMemoryExemplars(ctx context.Context) (int64, error) {
	return s.driver.CountMemoryExemplars(ctx)
}

func (s *Store) DeleteMemoryExemplars(ctx context.Context, delete *DeleteMemoryExemplar) error {
	return s.driver.DeleteMemoryExemplars(ctx, delete)
}

func (s *Store) ExemplarVectorSearch(ctx context.Context, opts *ExemplarVectorSearchOptions) ([]*ExemplarWithScore, error) {
	return s.driver.ExemplarVectorSearch(ctx, opts)
}

func (s *Store) CreateReviewItem(ctx context.Context, create *ReviewQueueItem) (*ReviewQueueItem, error) {
	return s.driver.CreateReviewItem(ctx, create)
}

func (s *Store) ListReviewItems(ctx context.Context, find *FindReviewQueue) ([]*ReviewQueueItem, error) {
	return s.driver.ListReviewItems(ctx, find)
}

func (s *Store) ResolveReviewItem(ctx context.Context, id string, resolvedIntentID string) (*ReviewQueueItem, error) {
	return s.driver.ResolveReviewItem(ctx, id, resolvedIntentID)
}

func (s *Store) CreateFeedbackEvent(ctx context.Context, create *FeedbackEvent) error {
	return s.driver.CreateFeedbackEvent(ctx, create)
}

func (s *Store) GetFeedbackStats(ctx context.Context) (*FeedbackStats, error) {
	return s.driver.GetFeedbackStats(ctx)
}
