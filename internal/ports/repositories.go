package ports

import (
	"context"
	"time"

	"github.com/design-smith/AWSDataScanner/internal/domain"
)

// ObjectSpec names one object to include in a job at submission time.
type ObjectSpec struct {
	Key       string
	SizeBytes int64
}

// JobRepository creates and reads jobs. Jobs are mutated only through
// aggregate recomputation triggered by object/finding writes, or by Cancel.
type JobRepository interface {
	CreateJobWithObjects(ctx context.Context, job domain.Job, objects []ObjectSpec) (domain.Job, []domain.JobObject, error)
	GetJob(ctx context.Context, jobID string) (domain.Job, bool, error)
	// CancelJob moves a non-terminal job to cancelled. Returns false when the
	// job was already terminal.
	CancelJob(ctx context.Context, jobID string) (bool, error)
}

// ObjectRepository mutates per-object scan state. The Mark* transitions are
// conditional (compare-and-set on the current status) and return false when
// the guard did not hold, so that a redelivered task racing a slow worker
// cannot clobber a terminal state. Every applied transition recomputes the
// owning job's aggregates in the same transaction.
type ObjectRepository interface {
	GetObject(ctx context.Context, objectID int64) (domain.JobObject, bool, error)
	// MarkScanning transitions pending|scanning -> scanning and increments
	// the attempt counter.
	MarkScanning(ctx context.Context, objectID int64) (bool, error)
	// MarkCompleted transitions scanning -> completed and stamps scanned_at.
	MarkCompleted(ctx context.Context, objectID int64) (bool, error)
	// MarkFailed transitions pending|scanning -> failed with a reason.
	MarkFailed(ctx context.Context, objectID int64, reason string) (bool, error)
	// MarkSkipped transitions pending|scanning -> skipped with a reason.
	MarkSkipped(ctx context.Context, objectID int64, reason string) (bool, error)
	// FailStuckScanning fails every object that has sat in scanning longer
	// than olderThan, returning how many were swept. Used by the reconciler
	// to mop up after workers that died mid-scan.
	FailStuckScanning(ctx context.Context, olderThan time.Duration, reason string) (int, error)
}

// FindingRepository persists findings. Insertion is idempotent: rows whose
// natural key already exists are silently dropped, never an error.
type FindingRepository interface {
	InsertFindings(ctx context.Context, findings []domain.Finding) (inserted int, err error)
	CountFindingsByJob(ctx context.Context, jobID string) (int, error)
	ListFindingsByObject(ctx context.Context, objectID int64) ([]domain.Finding, error)
}
