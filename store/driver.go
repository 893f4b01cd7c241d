package store

import "context"

// Driver is an interface for the storage backends. Both the SQLite and the
// PostgreSQL drivers implement the full surface; the SQLite driver computes
// vector similarity in the application layer while PostgreSQL delegates to
// pgvector.
type Driver interface {
	Migrate(ctx context.Context) error
	Close() error

	// Fast Memory exemplars.
	CreateMemoryExemplar(ctx context.Context, create *MemoryExemplar) (*MemoryExemplar, error)
	ListMemoryExemplars(ctx context.Context, find *FindMemoryExemplar) ([]*MemoryExemplar, error)
	CountMemoryExemplars(ctx context.Context) (int64, error)
	DeleteMemoryExemplars(ctx context.Context, delete *DeleteMemoryExemplar) error
	ExemplarVectorSearch(ctx context.Context, opts *ExemplarVectorSearchOptions) ([]*ExemplarWithScore, error)

	// Review queue.
	CreateReviewItem(ctx context.Context, create *ReviewQueueItem) (*ReviewQueueItem, error)
	ListReviewItems(ctx context.Context, find *FindReviewQueue) ([]*ReviewQueueItem, error)
	ResolveReviewItem(ctx context.Context, id string, resolvedIntentID string) (*ReviewQueueItem, error)

	// Feedback events.
	CreateFeedbackEvent(ctx context.Context, create *FeedbackEvent) error
	GetFeedbackStats(ctx context.Context) (*FeedbackStats, error)
}
