package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/design-smith/AWSDataScanner/internal/domain"
	"github.com/design-smith/AWSDataScanner/internal/ports"
)

const jobColumns = `job_id, job_name, s3_bucket, COALESCE(s3_prefix, ''), status,
	total_objects, completed_objects, failed_objects, total_findings,
	created_at, updated_at, completed_at`

func scanJob(row pgx.Row) (domain.Job, error) {
	var j domain.Job
	err := row.Scan(&j.ID, &j.Name, &j.Bucket, &j.Prefix, &j.Status,
		&j.TotalObjects, &j.CompletedObjects, &j.FailedObjects, &j.TotalFindings,
		&j.CreatedAt, &j.UpdatedAt, &j.CompletedAt)
	return j, err
}

// CreateJobWithObjects inserts the job and one row per object atomically.
func (s *Store) CreateJobWithObjects(ctx context.Context, job domain.Job, objects []ports.ObjectSpec) (domain.Job, []domain.JobObject, error) {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Job{}, nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	created, err := scanJob(tx.QueryRow(ctx, `
		INSERT INTO jobs (job_id, job_name, s3_bucket, s3_prefix, status, total_objects)
		VALUES ($1, $2, $3, $4, 'pending', $5)
		RETURNING `+jobColumns,
		job.ID, job.Name, job.Bucket, job.Prefix, len(objects)))
	if err != nil {
		return domain.Job{}, nil, err
	}

	rows := make([]domain.JobObject, 0, len(objects))
	for _, spec := range objects {
		var obj domain.JobObject
		err = tx.QueryRow(ctx, `
			INSERT INTO job_objects (job_id, s3_key, file_size_bytes)
			VALUES ($1, $2, $3)
			RETURNING object_id, job_id, s3_key, COALESCE(file_size_bytes, 0), status,
				findings_count, COALESCE(error_message, ''), attempts, created_at, scanned_at
		`, created.ID, spec.Key, spec.SizeBytes).Scan(
			&obj.ID, &obj.JobID, &obj.Key, &obj.SizeBytes, &obj.Status,
			&obj.FindingsCount, &obj.ErrorMessage, &obj.Attempts, &obj.CreatedAt, &obj.ScannedAt)
		if err != nil {
			return domain.Job{}, nil, err
		}
		rows = append(rows, obj)
	}
	return created, rows, nil
}

func (s *Store) GetJob(ctx context.Context, jobID string) (domain.Job, bool, error) {
	j, err := scanJob(s.Pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE job_id = $1`, jobID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Job{}, false, nil
	}
	if err != nil {
		return domain.Job{}, false, err
	}
	return j, true, nil
}

// CancelJob moves a non-terminal job to cancelled. Child objects are left
// as they are; workers drop tasks for cancelled jobs on receipt.
func (s *Store) CancelJob(ctx context.Context, jobID string) (bool, error) {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE jobs SET status = 'cancelled', updated_at = now()
		WHERE job_id = $1 AND status IN ('pending', 'running')
	`, jobID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// recomputeJobAggregates rebuilds the derived counters from the live child
// rows and advances the job status inside the caller's transaction. The
// counters are never incremented in place: recomputation is what keeps them
// drift-free under task redelivery. Counters refresh on every status,
// cancelled included (an in-flight scan may settle after the cancel); the
// status advances below are guarded to pending/running.
func recomputeJobAggregates(ctx context.Context, tx pgx.Tx, jobID string) error {
	if _, err := tx.Exec(ctx, `
		UPDATE jobs SET
			completed_objects = (SELECT count(*) FROM job_objects WHERE job_id = $1 AND status = 'completed'),
			failed_objects    = (SELECT count(*) FROM job_objects WHERE job_id = $1 AND status = 'failed'),
			total_findings    = (SELECT count(*) FROM findings WHERE job_id = $1),
			updated_at = now()
		WHERE job_id = $1
	`, jobID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE jobs SET status = 'running', updated_at = now()
		WHERE job_id = $1 AND status = 'pending'
		  AND EXISTS (SELECT 1 FROM job_objects WHERE job_id = $1 AND status <> 'pending')
	`, jobID); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `
		UPDATE jobs SET status = 'completed', completed_at = now(), updated_at = now()
		WHERE job_id = $1 AND status IN ('pending', 'running')
		  AND NOT EXISTS (SELECT 1 FROM job_objects WHERE job_id = $1 AND status IN ('pending', 'scanning'))
	`, jobID)
	return err
}
