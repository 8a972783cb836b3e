package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/design-smith/AWSDataScanner/internal/domain"
)

const objectColumns = `object_id, job_id, s3_key, COALESCE(file_size_bytes, 0), status,
	findings_count, COALESCE(error_message, ''), attempts, created_at, scanned_at`

func scanObject(row pgx.Row) (domain.JobObject, error) {
	var o domain.JobObject
	err := row.Scan(&o.ID, &o.JobID, &o.Key, &o.SizeBytes, &o.Status,
		&o.FindingsCount, &o.ErrorMessage, &o.Attempts, &o.CreatedAt, &o.ScannedAt)
	return o, err
}

func (s *Store) GetObject(ctx context.Context, objectID int64) (domain.JobObject, bool, error) {
	o, err := scanObject(s.Pool.QueryRow(ctx,
		`SELECT `+objectColumns+` FROM job_objects WHERE object_id = $1`, objectID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.JobObject{}, false, nil
	}
	if err != nil {
		return domain.JobObject{}, false, err
	}
	return o, true, nil
}

// MarkScanning conditionally claims the object. The guard admits a repeat
// scanning->scanning transition so a redelivered task can re-claim an
// object a crashed worker left behind; the attempt counter records each
// claim.
func (s *Store) MarkScanning(ctx context.Context, objectID int64) (bool, error) {
	return s.transition(ctx, objectID, `
		UPDATE job_objects
		SET status = 'scanning', attempts = attempts + 1, updated_at = now()
		WHERE object_id = $1 AND status IN ('pending', 'scanning')
	`)
}

func (s *Store) MarkCompleted(ctx context.Context, objectID int64) (bool, error) {
	return s.transition(ctx, objectID, `
		UPDATE job_objects
		SET status = 'completed', scanned_at = now(), updated_at = now(), error_message = NULL
		WHERE object_id = $1 AND status = 'scanning'
	`)
}

func (s *Store) MarkFailed(ctx context.Context, objectID int64, reason string) (bool, error) {
	return s.transition(ctx, objectID, `
		UPDATE job_objects
		SET status = 'failed', error_message = $2, scanned_at = now(), updated_at = now()
		WHERE object_id = $1 AND status IN ('pending', 'scanning')
	`, reason)
}

func (s *Store) MarkSkipped(ctx context.Context, objectID int64, reason string) (bool, error) {
	return s.transition(ctx, objectID, `
		UPDATE job_objects
		SET status = 'skipped', error_message = $2, scanned_at = now(), updated_at = now()
		WHERE object_id = $1 AND status IN ('pending', 'scanning')
	`, reason)
}

// transition runs a guarded status update and, when it applied, recomputes
// the owning job's aggregates in the same transaction.
func (s *Store) transition(ctx context.Context, objectID int64, query string, extra ...any) (applied bool, err error) {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	args := append([]any{objectID}, extra...)
	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	var jobID string
	if err = tx.QueryRow(ctx, `SELECT job_id FROM job_objects WHERE object_id = $1`, objectID).Scan(&jobID); err != nil {
		return false, err
	}
	if err = recomputeJobAggregates(ctx, tx, jobID); err != nil {
		return false, err
	}
	return true, nil
}

// FailStuckScanning sweeps objects that have sat in scanning beyond
// olderThan, the reconciliation pass for workers that died holding a task.
func (s *Store) FailStuckScanning(ctx context.Context, olderThan time.Duration, reason string) (swept int, err error) {
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

	rows, err := tx.Query(ctx, `
		UPDATE job_objects
		SET status = 'failed', error_message = $2, scanned_at = now(), updated_at = now()
		WHERE status = 'scanning' AND updated_at < now() - make_interval(secs => $1)
		RETURNING job_id
	`, olderThan.Seconds(), reason)
	if err != nil {
		return 0, err
	}
	jobs := make(map[string]struct{})
	for rows.Next() {
		var jobID string
		if err = rows.Scan(&jobID); err != nil {
			rows.Close()
			return 0, err
		}
		jobs[jobID] = struct{}{}
		swept++
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return 0, err
	}

	for jobID := range jobs {
		if err = recomputeJobAggregates(ctx, tx, jobID); err != nil {
			return 0, err
		}
	}
	return swept, nil
}
