package feedback

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intentd/intentd/engine/memory"
	"github.com/intentd/intentd/store"
)

func newLoop(t *testing.T) (*Loop, *memory.InProcess, *InMemoryStorage) {
	t.Helper()
	mem := memory.NewInProcess()
	storage := NewInMemoryStorage()
	return NewLoop(mem, storage), mem, storage
}

func TestSubmitValidation(t *testing.T) {
	loop, _, _ := newLoop(t)
	ctx := context.Background()

	_, err := loop.Submit(ctx, Signal{PredictedIntentID: "set_timer"})
	assert.Error(t, err, "missing user text")

	_, err = loop.Submit(ctx, Signal{UserText: "set a timer"})
	assert.Error(t, err, "missing predicted intent")

	_, err = loop.Submit(ctx, Signal{
		UserText:          "set a timer",
		PredictedIntentID: "set_timer",
		Correct:           false,
		CorrectIntentID:   "set_timer",
	})
	assert.Error(t, err, "correction equal to prediction")
}

func TestSubmitConfirmationSavesGoldenExemplar(t *testing.T) {
	loop, mem, storage := newLoop(t)
	ctx := context.Background()

	ack, err := loop.Submit(ctx, Signal{
		UserText:          "set a timer",
		NormalizedText:    "set a timer",
		PredictedIntentID: "set_timer",
		Correct:           true,
		Embedding:         []float32{1, 0},
		Confidence:        0.9,
	})
	require.NoError(t, err)
	assert.Equal(t, ActionSavedToMemory, ack.Action)
	assert.NotEmpty(t, ack.MemoryID)

	results, err := mem.Query(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "set_timer", results[0].IntentID)
	assert.True(t, results[0].Golden)
	assert.Equal(t, store.ExemplarSourceFeedback, results[0].Source)

	stats, err := storage.GetFeedbackStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.TotalEvents)
	assert.EqualValues(t, 1, stats.CorrectCount)
	assert.EqualValues(t, 1, stats.ByIntent["set_timer"])
}

func TestSubmitCorrectionQueuesForReview(t *testing.T) {
	loop, mem, _ := newLoop(t)
	ctx := context.Background()

	ack, err := loop.Submit(ctx, Signal{
		UserText:          "check my balance at the bank",
		PredictedIntentID: "river_bank",
		Correct:           false,
		CorrectIntentID:   "financial_bank",
		Embedding:         []float32{0, 1},
	})
	require.NoError(t, err)
	assert.Equal(t, ActionQueuedForReview, ack.Action)
	assert.NotEmpty(t, ack.ReviewID)

	// Disputed feedback never grows Fast Memory on its own; the suggested
	// correction rides along on the review item for the reviewer.
	count, err := mem.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 0, count)

	pending, err := loop.ReviewQueue(ctx, store.ReviewStatusPending, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, ack.ReviewID, pending[0].ID)
	assert.Equal(t, "river_bank", pending[0].PredictedIntentID)
	assert.Equal(t, "financial_bank", pending[0].SuggestedIntentID)
}

func TestSubmitDisputeWithoutCorrectionQueuesForReview(t *testing.T) {
	loop, mem, _ := newLoop(t)
	ctx := context.Background()

	ack, err := loop.Submit(ctx, Signal{
		UserText:          "take me to the bank",
		PredictedIntentID: "river_bank",
		Correct:           false,
	})
	require.NoError(t, err)
	assert.Equal(t, ActionQueuedForReview, ack.Action)
	assert.NotEmpty(t, ack.ReviewID)

	count, err := mem.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count, "no exemplar without a correction")

	pending, err := loop.ReviewQueue(ctx, store.ReviewStatusPending, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, ack.ReviewID, pending[0].ID)
	assert.Equal(t, "river_bank", pending[0].PredictedIntentID)
}

func TestSubmitSaveFailureFallsBackToReviewQueue(t *testing.T) {
	// Missing embedding makes the Fast Memory add fail.
	loop, _, storage := newLoop(t)
	ctx := context.Background()

	ack, err := loop.Submit(ctx, Signal{
		UserText:          "set a timer",
		PredictedIntentID: "set_timer",
		Correct:           true,
	})
	require.NoError(t, err)
	assert.Equal(t, ActionSaveFailed, ack.Action)
	assert.NotEmpty(t, ack.ReviewID)

	stats, err := storage.GetFeedbackStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.PendingReviews)
}

func TestMarkReviewedResolvesAndPromotes(t *testing.T) {
	loop, mem, _ := newLoop(t)
	ctx := context.Background()

	ack, err := loop.Submit(ctx, Signal{
		UserText:          "take me to the bank",
		PredictedIntentID: "river_bank",
		Correct:           false,
	})
	require.NoError(t, err)

	item, err := loop.MarkReviewed(ctx, ack.ReviewID, "financial_bank", []float32{0, 1})
	require.NoError(t, err)
	assert.Equal(t, store.ReviewStatusResolved, item.Status)
	assert.Equal(t, "financial_bank", item.ResolvedIntentID)
	assert.NotZero(t, item.ResolvedTs)

	results, err := mem.Query(ctx, []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "financial_bank", results[0].IntentID)
	assert.True(t, results[0].Golden)
}

func TestMarkReviewedValidation(t *testing.T) {
	loop, _, _ := newLoop(t)
	ctx := context.Background()

	_, err := loop.MarkReviewed(ctx, "some-id", "", nil)
	assert.Error(t, err, "resolved intent required")

	_, err = loop.MarkReviewed(ctx, "missing", "set_timer", nil)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestMarkReviewedIsIdempotentOnlyOnce(t *testing.T) {
	loop, _, _ := newLoop(t)
	ctx := context.Background()

	ack, err := loop.Submit(ctx, Signal{
		UserText:          "wrong",
		PredictedIntentID: "a",
		Correct:           false,
	})
	require.NoError(t, err)

	_, err = loop.MarkReviewed(ctx, ack.ReviewID, "b", nil)
	require.NoError(t, err)

	_, err = loop.MarkReviewed(ctx, ack.ReviewID, "c", nil)
	assert.ErrorIs(t, err, sql.ErrNoRows, "already resolved")
}

func TestStatsAggregation(t *testing.T) {
	loop, _, _ := newLoop(t)
	ctx := context.Background()

	verdicts := []Signal{
		{UserText: "a", PredictedIntentID: "set_timer", Correct: true, Embedding: []float32{1}},
		{UserText: "b", PredictedIntentID: "set_timer", Correct: true, Embedding: []float32{1}},
		{UserText: "c", PredictedIntentID: "river_bank", Correct: false, CorrectIntentID: "financial_bank", Embedding: []float32{1}},
		{UserText: "d", PredictedIntentID: "play_music", Correct: false},
	}
	for _, s := range verdicts {
		_, err := loop.Submit(ctx, s)
		require.NoError(t, err)
	}

	stats, err := loop.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, stats.TotalEvents)
	assert.EqualValues(t, 2, stats.CorrectCount)
	assert.EqualValues(t, 2, stats.IncorrectCount)
	assert.InDelta(t, 0.5, stats.Accuracy, 1e-9)
	assert.EqualValues(t, 2, stats.ByIntent["set_timer"])
	assert.EqualValues(t, 1, stats.ByIntent["financial_bank"])
	assert.EqualValues(t, 2, stats.PendingReviews, "both disputes pend review")
}
