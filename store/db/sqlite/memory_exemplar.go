package sqlite

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/intentd/intentd/store"
)

// CreateMemoryExemplar inserts a Fast Memory exemplar. The vector is stored
// as a little-endian float32 BLOB.
func (d *DB) CreateMemoryExemplar(ctx context.Context, create *store.MemoryExemplar) (*store.MemoryExemplar, error) {
	vectorBLOB, err := d.float32ArrayToBLOB(create.Embedding)
	if err != nil {
		return nil, errors.Wrap(err, "failed to convert exemplar vector to BLOB")
	}
	if create.CreatedTs == 0 {
		create.CreatedTs = time.Now().Unix()
	}

	stmt := `INSERT INTO memory_exemplar (id, user_text, normalized_text, intent_id, embedding, confidence, source, golden, created_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = d.db.ExecContext(ctx, stmt,
		create.ID,
		create.UserText,
		create.NormalizedText,
		create.IntentID,
		vectorBLOB,
		create.Confidence,
		create.Source,
		boolToInt(create.Golden),
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
		where, args = append(where, "id = ?"), append(args, *find.ID)
	}
	if find.IntentID != nil {
		where, args = append(where, "intent_id = ?"), append(args, *find.IntentID)
	}
	if find.Source != nil {
		where, args = append(where, "source = ?"), append(args, *find.Source)
	}

	query := `SELECT id, user_text, normalized_text, intent_id, embedding, confidence, source, golden, created_ts
		FROM memory_exemplar
		WHERE ` + joinAnd(where) + `
		ORDER BY created_ts DESC`
	if find.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list memory exemplars")
	}
	defer rows.Close()

	list := []*store.MemoryExemplar{}
	for rows.Next() {
		exemplar, err := scanExemplar(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, exemplar)
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
	result, err := d.db.ExecContext(ctx, `DELETE FROM memory_exemplar WHERE id = ?`, *delete.ID)
	if err != nil {
		return errors.Wrap(err, "failed to delete memory exemplar")
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ExemplarVectorSearch ranks exemplars by cosine similarity to the query
// vector. Similarity is computed in Go over all stored vectors.
func (d *DB) ExemplarVectorSearch(ctx context.Context, opts *store.ExemplarVectorSearchOptions) ([]*store.ExemplarWithScore, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT id, user_text, normalized_text, intent_id, embedding, confidence, source, golden, created_ts
		FROM memory_exemplar`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan memory exemplars")
	}
	defer rows.Close()

	results := []*store.ExemplarWithScore{}
	for rows.Next() {
		exemplar, err := scanExemplar(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, &store.ExemplarWithScore{
			MemoryExemplar: exemplar,
			Score:          cosineSimilarity(opts.Vector, exemplar.Embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Stable order: score descending, then id for equal scores.
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func scanExemplar(rows *sql.Rows) (*store.MemoryExemplar, error) {
	var exemplar store.MemoryExemplar
	var vectorBLOB []byte
	var golden int
	err := rows.Scan(
		&exemplar.ID,
		&exemplar.UserText,
		&exemplar.NormalizedText,
		&exemplar.IntentID,
		&vectorBLOB,
		&exemplar.Confidence,
		&exemplar.Source,
		&golden,
		&exemplar.CreatedTs,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan memory exemplar")
	}
	exemplar.Golden = golden != 0
	exemplar.Embedding, err = blobToFloat32Array(vectorBLOB)
	if err != nil {
		return nil, errors.Wrap(err, "failed to convert exemplar BLOB to array")
	}
	return &exemplar, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func joinAnd(where []string) string {
	out := where[0]
	for _, w := range where[1:] {
		out += " AND " + w
	}
	return out
}
