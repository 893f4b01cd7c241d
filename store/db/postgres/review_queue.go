package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/intentd/intentd/store"
)

// CreateReviewItem parks a resolution in the review queue.
func (d *DB) CreateReviewItem(ctx context.Context, create *store.ReviewQueueItem) (*store.ReviewQueueItem, error) {
	if create.CreatedTs == 0 {
		create.CreatedTs = time.Now().Unix()
	}
	if create.Status == "" {
		create.Status = store.ReviewStatusPending
	}

	stmt := `INSERT INTO review_queue (id, user_text, predicted_intent_id, suggested_intent_id, reason, status, created_ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := d.db.ExecContext(ctx, stmt,
		create.ID,
		create.UserText,
		create.PredictedIntentID,
		create.SuggestedIntentID,
		create.Reason,
		create.Status,
		create.CreatedTs,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create review item")
	}
	return create, nil
}

// ListReviewItems lists review items, newest first.
func (d *DB) ListReviewItems(ctx context.Context, find *store.FindReviewQueue) ([]*store.ReviewQueueItem, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.Status != nil {
		where, args = append(where, "status = "+placeholder(len(args)+1)), append(args, *find.Status)
	}

	query := `SELECT id, user_text, predicted_intent_id, suggested_intent_id, reason, status, resolved_intent_id, created_ts, resolved_ts
		FROM review_queue
		WHERE ` + joinAnd(where) + `
		ORDER BY created_ts DESC`
	if find.Limit > 0 {
		query += " LIMIT " + placeholder(len(args)+1)
		args = append(args, find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list review items")
	}
	defer rows.Close()

	list := []*store.ReviewQueueItem{}
	for rows.Next() {
		var item store.ReviewQueueItem
		err := rows.Scan(
			&item.ID,
			&item.UserText,
			&item.PredictedIntentID,
			&item.SuggestedIntentID,
			&item.Reason,
			&item.Status,
			&item.ResolvedIntentID,
			&item.CreatedTs,
			&item.ResolvedTs,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan review item")
		}
		list = append(list, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

// ResolveReviewItem marks a pending item resolved and returns the updated row.
func (d *DB) ResolveReviewItem(ctx context.Context, id string, resolvedIntentID string) (*store.ReviewQueueItem, error) {
	stmt := `UPDATE review_queue
		SET status = $1, resolved_intent_id = $2, resolved_ts = $3
		WHERE id = $4 AND status = $5
		RETURNING id, user_text, predicted_intent_id, suggested_intent_id, reason, status, resolved_intent_id, created_ts, resolved_ts`

	var item store.ReviewQueueItem
	err := d.db.QueryRowContext(ctx, stmt,
		store.ReviewStatusResolved, resolvedIntentID, time.Now().Unix(),
		id, store.ReviewStatusPending,
	).Scan(
		&item.ID,
		&item.UserText,
		&item.PredictedIntentID,
		&item.SuggestedIntentID,
		&item.Reason,
		&item.Status,
		&item.ResolvedIntentID,
		&item.CreatedTs,
		&item.ResolvedTs,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve review item")
	}
	return &item, nil
}
