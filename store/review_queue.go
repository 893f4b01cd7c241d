package store

// Review queue item statuses.
const (
	ReviewStatusPending  = "pending"
	ReviewStatusResolved = "resolved"
)

// ReviewQueueItem is one low-confidence or disputed resolution parked for
// human review instead of being written into Fast Memory.
type ReviewQueueItem struct {
	ID                string `json:"id"`
	UserText          string `json:"user_text"`
	PredictedIntentID string `json:"predicted_intent_id"`
	// SuggestedIntentID is the correction the user offered, if any.
	SuggestedIntentID string `json:"suggested_intent_id,omitempty"`
	Reason            string `json:"reason"`
	Status            string `json:"status"`
	ResolvedIntentID  string `json:"resolved_intent_id,omitempty"`
	CreatedTs         int64  `json:"created_ts"`
	ResolvedTs        int64  `json:"resolved_ts,omitempty"`
}

// FindReviewQueue specifies conditions for listing review items.
type FindReviewQueue struct {
	ID     *string
	Status *string
	Limit  int
}
