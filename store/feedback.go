package store

// FeedbackEvent records a single user verdict on a resolution.
type FeedbackEvent struct {
	ID                int64  `json:"id"`
	UserText          string `json:"user_text"`
	PredictedIntentID string `json:"predicted_intent_id"`
	CorrectIntentID   string `json:"correct_intent_id"`
	Correct           bool   `json:"correct"`
	CreatedTs         int64  `json:"created_ts"`
}

// FindFeedbackEvent specifies conditions for listing feedback events.
type FindFeedbackEvent struct {
	StartTs *int64
	EndTs   *int64
	Correct *bool
	Limit   int
}

// FeedbackStats aggregates resolution accuracy as reported by users.
type FeedbackStats struct {
	TotalEvents    int64            `json:"total_events"`
	CorrectCount   int64            `json:"correct_count"`
	IncorrectCount int64            `json:"incorrect_count"`
	Accuracy       float64          `json:"accuracy"`
	ByIntent       map[string]int64 `json:"by_intent"`
	ExemplarCount  int64            `json:"exemplar_count"`
	PendingReviews int64            `json:"pending_reviews"`
	LastUpdated    int64            `json:"last_updated"`
}
