package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/intentd/intentd/store"
)

// CreateMemoryExemplar inserts a Fast Memory exemplar with its pgvector
// embedding.
func (d *DB) CreateMemoryExemplar(ctx context.Context, create *store.MemoryExemplar) (*store.MemoryExemplar, error) {
	if create.CreatedTs == 0 {
		create.CreatedTs = time.Now().Unix()
	}

	stmt := `INSERT INTO memory_exemplar (id, user_text, normalized_text, intent_id, embedding, confidence, source, golden, created_ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := d.db.ExecContext(ctx, stmt,
		create.ID,
		create.UserText,
		create.NormalizedText,
		create.IntentID,
		pgvector.NewVector(create.Embedding),
		create.Confidence,
		create.Source,
		create.Golden,
		create.CreatedTs,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create memory exemplar")
	}
	return create, nil
}

// ListMemoryExemplars lists exemplars, newest first.
func (d *DB) ListMemoryExemplars(ctx context.Context, find *store.FindMemoryExemplar) ([]*store.MemoryExemplar, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.IntentID != nil {
		where, args = append(where, "intent_id = "+placeholder(len(args)+1)), append(args, *find.IntentID)
	}
	if find.Source != nil {
		where, args = append(where, "source = "+placeholder(len(args)+1)), append(args, *find.Source)
	}

	query := `SELECT id, user_text, normalized_text, intent_id, embedding, confidence, source, golden, created_ts
		FROM memory_exemplar
		WHERE ` + joinAnd(where) + `
		ORDER BY created_ts DESC`
	if find.Limit > 0 {
		query += " LIMIT " + placeholder(len(args)+1)
		args = append(args, find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list memory exemplars")
	}
	defer rows.Close()

	list := []*store.MemoryExemplar{}
	for rows.Next() {
		var exemplar store.MemoryExemplar
		var vector pgvector.Vector
		err := rows.Scan(
			&exemplar.ID,
			&exemplar.UserText,
			&exemplar.NormalizedText,
			&exemplar.IntentID,
			&vector,
			&exemplar.Confidence,
			&exemplar.Source,
			&exemplar.Golden,
			&exemplar.CreatedTs,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan memory exemplar")
		}
		exemplar.Embedding = vector.Slice()
		list = append(list, &exemplar)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

// CountMemoryExemplars returns the current Fast Memory size.
func (d *DB) CountMemoryExemplars(ctx context.Context) (int64, error) {
	var count int64
	err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memory_exemplar`).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count memory exemplars")
	}
	return count, nil
}

// DeleteMemoryExemplars deletes a single exemplar or clears the whole store.
func (d *DB) DeleteMemoryExemplars(ctx context.Context, delete *store.DeleteMemoryExemplar) error {
	if delete.All {
		_, err := d.db.ExecContext(ctx, `DELETE FROM memory_exemplar`)
		return errors.Wrap(err, "failed to clear memory exemplars")
	}
	if delete.ID == nil {
		return errors.New("exemplar id required")
	}
	result, err := d.db.ExecContext(ctx, `DELETE FROM memory_exemplar WHERE id = $1`, *delete.ID)
	if err != nil {
		return errors.Wrap(err, "failed to delete memory exemplar")
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ExemplarVectorSearch ranks exemplars by cosine similarity using pgvector.
// The <=> operator computes cosine distance (1 - cosine_similarity).
func (d *DB) ExemplarVectorSearch(ctx context.Context, opts *store.ExemplarVectorSearchOptions) ([]*store.ExemplarWithScore, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	query := `SELECT id, user_text, normalized_text, intent_id, embedding, confidence, source, golden, created_ts,
			1 - (embedding <=> $1) AS score
		FROM memory_exemplar
		ORDER BY embedding <=> $1, id
		LIMIT $2`

	rows, err := d.db.QueryContext(ctx, query, pgvector.NewVector(opts.Vector), limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to exemplar vector search")
	}
	defer rows.Close()

	results := []*store.ExemplarWithScore{}
	for rows.Next() {
		var exemplar store.MemoryExemplar
		var vector pgvector.Vector
		var score float64
		err := rows.Scan(
			&exemplar.ID,
			&exemplar.UserText,
			&exemplar.NormalizedText,
			&exemplar.IntentID,
			&vector,
			&exemplar.Confidence,
			&exemplar.Source,
			&exemplar.Golden,
			&exemplar.CreatedTs,
			&score,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan exemplar search result")
		}
		exemplar.Embedding = vector.Slice()
		if score < 0 {
			score = 0
		}
		results = append(results, &store.ExemplarWithScore{
			MemoryExemplar: &exemplar,
			Score:          float32(score),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
