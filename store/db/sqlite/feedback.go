package sqlite

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/intentd/intentd/store"
)

// CreateFeedbackEvent records a user verdict.
func (d *DB) CreateFeedbackEvent(ctx context.Context, create *store.FeedbackEvent) error {
	if create.CreatedTs == 0 {
		create.CreatedTs = time.Now().Unix()
	}
	stmt := `INSERT INTO feedback_event (user_text, predicted_intent_id, correct_intent_id, correct, created_ts)
		VALUES (?, ?, ?, ?, ?)`
	_, err := d.db.ExecContext(ctx, stmt,
		create.UserText,
		create.PredictedIntentID,
		create.CorrectIntentID,
		boolToInt(create.Correct),
		create.CreatedTs,
	)
	return errors.Wrap(err, "failed to create feedback event")
}

// GetFeedbackStats aggregates accuracy over all recorded feedback.
func (d *DB) GetFeedbackStats(ctx context.Context) (*store.FeedbackStats, error) {
	stats := &store.FeedbackStats{
		ByIntent:    map[string]int64{},
		LastUpdated: time.Now().Unix(),
	}

	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(correct), 0) FROM feedback_event`).
		Scan(&stats.TotalEvents, &stats.CorrectCount)
	if err != nil {
		return nil, errors.Wrap(err, "failed to aggregate feedback events")
	}
	stats.IncorrectCount = stats.TotalEvents - stats.CorrectCount
	if stats.TotalEvents > 0 {
		stats.Accuracy = float64(stats.CorrectCount) / float64(stats.TotalEvents)
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT correct_intent_id, COUNT(*) FROM feedback_event GROUP BY correct_intent_id`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to aggregate feedback by intent")
	}
	defer rows.Close()
	for rows.Next() {
		var intentID string
		var count int64
		if err := rows.Scan(&intentID, &count); err != nil {
			return nil, errors.Wrap(err, "failed to scan feedback aggregate")
		}
		stats.ByIntent[intentID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if stats.ExemplarCount, err = d.CountMemoryExemplars(ctx); err != nil {
		return nil, err
	}
	err = d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM review_queue WHERE status = ?`, store.ReviewStatusPending).
		Scan(&stats.PendingReviews)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count pending reviews")
	}
	return stats, nil
}
