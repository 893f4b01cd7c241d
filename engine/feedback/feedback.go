// Package feedback closes the resolution loop: user verdicts become Fast
// Memory exemplars, disputed cases land in a review queue, and everything
// is counted toward the accuracy statistics.
package feedback

import (
	"context"
	"log/slog"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"

	"github.com/intentd/intentd/engine/memory"
	"github.com/intentd/intentd/store"
)

// Actions reported back to the caller.
const (
	ActionSavedToMemory   = "saved_to_memory"
	ActionSaveFailed      = "save_failed"
	ActionQueuedForReview = "queued_for_review"
)

// Signal is one user verdict on a finished resolution.
type Signal struct {
	UserText          string
	NormalizedText    string
	PredictedIntentID string

	// Correct confirms the prediction. When false the case is queued for
	// human review; CorrectIntentID, if supplied, is carried on the review
	// item as the user's suggested correction.
	Correct         bool
	CorrectIntentID string

	// Embedding is the vector of the (normalized) input, supplied by the
	// caller so the loop never talks to the embedding provider itself.
	Embedding  []float32
	Confidence float64
}

// Ack tells the caller what the loop did with a signal.
type Ack struct {
	Action   string `json:"action"`
	MemoryID string `json:"memory_id,omitempty"`
	ReviewID string `json:"review_id,omitempty"`
}

// Persistence is the slice of the store the loop needs. *store.Store
// satisfies it; tests use the in-memory implementation.
type Persistence interface {
	CreateFeedbackEvent(ctx context.Context, create *store.FeedbackEvent) error
	CreateReviewItem(ctx context.Context, create *store.ReviewQueueItem) (*store.ReviewQueueItem, error)
	ListReviewItems(ctx context.Context, find *store.FindReviewQueue) ([]*store.ReviewQueueItem, error)
	ResolveReviewItem(ctx context.Context, id string, resolvedIntentID string) (*store.ReviewQueueItem, error)
	GetFeedbackStats(ctx context.Context) (*store.FeedbackStats, error)
}

// Loop wires verdicts into Fast Memory and the review queue.
type Loop struct {
	memory      memory.Store
	persistence Persistence
}

// NewLoop creates a feedback loop.
func NewLoop(mem memory.Store, persistence Persistence) *Loop {
	return &Loop{memory: mem, persistence: persistence}
}

// Submit processes one verdict. A confirmed prediction is written into
// Fast Memory as a golden exemplar; every disputed one goes to the review
// queue, with the user's suggested correction kept on the item — memory
// only grows from disputes after a reviewer resolves them. The feedback
// event itself is always recorded; a failure to record it is logged but
// does not fail the verdict.
func (l *Loop) Submit(ctx context.Context, signal Signal) (*Ack, error) {
	if signal.UserText == "" {
		return nil, errors.New("user text required")
	}
	if signal.PredictedIntentID == "" {
		return nil, errors.New("predicted intent id required")
	}
	if !signal.Correct && signal.CorrectIntentID == signal.PredictedIntentID && signal.CorrectIntentID != "" {
		return nil, errors.New("correction must differ from the prediction")
	}

	event := &store.FeedbackEvent{
		UserText:          signal.UserText,
		PredictedIntentID: signal.PredictedIntentID,
		CorrectIntentID:   signal.CorrectIntentID,
		Correct:           signal.Correct,
	}
	if signal.Correct {
		event.CorrectIntentID = signal.PredictedIntentID
	}
	if err := l.persistence.CreateFeedbackEvent(ctx, event); err != nil {
		slog.Warn("failed to record feedback event", "error", err)
	}

	if !signal.Correct {
		reason := "disputed prediction without correction"
		if signal.CorrectIntentID != "" {
			reason = "disputed prediction with suggested correction"
		}
		return l.queueForReview(ctx, signal, reason)
	}

	memoryID, err := l.memory.Add(ctx, memory.Entry{
		UserText:       signal.UserText,
		NormalizedText: signal.NormalizedText,
		IntentID:       signal.PredictedIntentID,
		Embedding:      signal.Embedding,
		Confidence:     signal.Confidence,
		Source:         store.ExemplarSourceFeedback,
		Golden:         true,
	})
	if err != nil {
		slog.Error("failed to save exemplar, queueing for review", "error", err)
		ack, queueErr := l.queueForReview(ctx, signal, "confirmed prediction could not be saved")
		if queueErr != nil {
			return &Ack{Action: ActionSaveFailed}, nil
		}
		ack.Action = ActionSaveFailed
		return ack, nil
	}
	return &Ack{Action: ActionSavedToMemory, MemoryID: memoryID}, nil
}

// ReviewQueue lists review items filtered by status ("" for all).
func (l *Loop) ReviewQueue(ctx context.Context, status string, limit int) ([]*store.ReviewQueueItem, error) {
	find := &store.FindReviewQueue{Limit: limit}
	if status != "" {
		find.Status = &status
	}
	return l.persistence.ListReviewItems(ctx, find)
}

// MarkReviewed resolves a pending review item with the reviewer's verdict.
// When an embedding is supplied together with a non-empty resolved intent,
// the reviewed case also becomes a golden exemplar.
func (l *Loop) MarkReviewed(ctx context.Context, id, resolvedIntentID string, embedding []float32) (*store.ReviewQueueItem, error) {
	if resolvedIntentID == "" {
		return nil, errors.New("resolved intent id required")
	}
	item, err := l.persistence.ResolveReviewItem(ctx, id, resolvedIntentID)
	if err != nil {
		return nil, err
	}

	if len(embedding) > 0 {
		if _, err := l.memory.Add(ctx, memory.Entry{
			UserText:  item.UserText,
			IntentID:  resolvedIntentID,
			Embedding: embedding,
			Source:    store.ExemplarSourceFeedback,
			Golden:    true,
		}); err != nil {
			slog.Warn("failed to save reviewed exemplar", "review_id", id, "error", err)
		}
	}
	return item, nil
}

// Stats returns the aggregated feedback statistics.
func (l *Loop) Stats(ctx context.Context) (*store.FeedbackStats, error) {
	return l.persistence.GetFeedbackStats(ctx)
}

func (l *Loop) queueForReview(ctx context.Context, signal Signal, reason string) (*Ack, error) {
	item, err := l.persistence.CreateReviewItem(ctx, &store.ReviewQueueItem{
		ID:                shortuuid.New(),
		UserText:          signal.UserText,
		PredictedIntentID: signal.PredictedIntentID,
		SuggestedIntentID: signal.CorrectIntentID,
		Reason:            reason,
		Status:            store.ReviewStatusPending,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to queue for review")
	}
	return &Ack{Action: ActionQueuedForReview, ReviewID: item.ID}, nil
}
