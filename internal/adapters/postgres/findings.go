package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/design-smith/AWSDataScanner/internal/domain"
)

// InsertFindings writes one object's findings as a single batch in one
// transaction. The unique natural key absorbs duplicates from redelivered
// tasks (ON CONFLICT DO NOTHING), and the object's findings_count plus the
// job aggregates are recomputed from the live rows before commit.
func (s *Store) InsertFindings(ctx context.Context, rows []domain.Finding) (inserted int, err error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	batch := &pgx.Batch{}
	for _, f := range rows {
		batch.Queue(`
			INSERT INTO findings
				(object_id, job_id, finding_type, value_hash, line_number,
				 column_start, column_end, context, confidence, detected_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (object_id, finding_type, line_number, column_start, value_hash) DO NOTHING
		`, f.ObjectID, f.JobID, f.Type, f.ValueHash, f.LineNumber,
			f.ColumnStart, f.ColumnEnd, f.Context, f.Confidence, f.DetectedAt)
	}
	results := tx.SendBatch(ctx, batch)
	for range rows {
		tag, berr := results.Exec()
		if berr != nil {
			_ = results.Close()
			err = berr
			return 0, err
		}
		inserted += int(tag.RowsAffected())
	}
	if err = results.Close(); err != nil {
		return 0, err
	}

	jobs := make(map[string]struct{})
	objects := make(map[int64]struct{})
	for _, f := range rows {
		jobs[f.JobID] = struct{}{}
		objects[f.ObjectID] = struct{}{}
	}
	for objectID := range objects {
		if _, err = tx.Exec(ctx, `
			UPDATE job_objects
			SET findings_count = (SELECT count(*) FROM findings WHERE object_id = $1),
			    updated_at = now()
			WHERE object_id = $1
		`, objectID); err != nil {
			return 0, err
		}
	}
	for jobID := range jobs {
		if err = recomputeJobAggregates(ctx, tx, jobID); err != nil {
			return 0, err
		}
	}
	return inserted, nil
}

func (s *Store) CountFindingsByJob(ctx context.Context, jobID string) (int, error) {
	var n int
	err := s.Pool.QueryRow(ctx, `SELECT count(*) FROM findings WHERE job_id = $1`, jobID).Scan(&n)
	return n, err
}

func (s *Store) ListFindingsByObject(ctx context.Context, objectID int64) ([]domain.Finding, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT finding_id, object_id, job_id, finding_type, value_hash, line_number,
			column_start, column_end, COALESCE(context, ''), confidence, detected_at
		FROM findings
		WHERE object_id = $1
		ORDER BY line_number, column_start
	`, objectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Finding
	for rows.Next() {
		var f domain.Finding
		if err := rows.Scan(&f.ID, &f.ObjectID, &f.JobID, &f.Type, &f.ValueHash,
			&f.LineNumber, &f.ColumnStart, &f.ColumnEnd, &f.Context, &f.Confidence, &f.DetectedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
