package store

// MemoryExemplar is one confirmed (input, intent) pair in Fast Memory.
// Exemplars are retrieved by vector similarity alongside the static corpus
// and take precedence over catalog entries for the same intent.
type MemoryExemplar struct {
	ID             string    `json:"id"`
	UserText       string    `json:"user_text"`
	NormalizedText string    `json:"normalized_text"`
	IntentID       string    `json:"intent_id"`
	Embedding      []float32 `json:"-"`
	Confidence     float64   `json:"confidence"`
	// Source records how the exemplar entered memory: "feedback" for
	// user-confirmed corrections, "autosave" for high-confidence wins.
	Source    string `json:"source"`
	Golden    bool   `json:"golden"`
	CreatedTs int64  `json:"created_ts"`
}

// Exemplar sources.
const (
	ExemplarSourceFeedback = "feedback"
	ExemplarSourceAutosave = "autosave"
)

// FindMemoryExemplar specifies conditions for listing exemplars.
type FindMemoryExemplar struct {
	ID       *string
	IntentID *string
	Source   *string
	Limit    int
}

// DeleteMemoryExemplar specifies which exemplars to delete. A nil ID with
// All set clears the whole memory.
type DeleteMemoryExemplar struct {
	ID  *string
	All bool
}

// ExemplarWithScore pairs an exemplar with its similarity to a query vector.
type ExemplarWithScore struct {
	*MemoryExemplar
	Score float32 `json:"score"`
}

// ExemplarVectorSearchOptions parameterizes a similarity search over
// Fast Memory.
type ExemplarVectorSearchOptions struct {
	Vector []float32
	Limit  int
}
