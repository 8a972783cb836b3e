// Package jobs implements job-level operations: submitting a scan over a
// bucket/prefix, cancelling it, and reading its status.
package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/design-smith/AWSDataScanner/internal/domain"
	"github.com/design-smith/AWSDataScanner/internal/ports"
)

var (
	ErrNoObjects   = errors.New("no objects under prefix")
	ErrJobNotFound = errors.New("job not found")
	ErrJobTerminal = errors.New("job already finished")
)

type Service struct {
	repo    ports.JobRepository
	objects ports.ObjectStore
	queue   ports.TaskQueue
	log     *logrus.Logger
}

func New(repo ports.JobRepository, objects ports.ObjectStore, queue ports.TaskQueue, log *logrus.Logger) *Service {
	return &Service{repo: repo, objects: objects, queue: queue, log: log}
}

// Submit lists bucket/prefix, records the job with one child row per object,
// and enqueues a scan task per object. Submitting a prefix with no objects is
// an error, not an empty completed job.
func (s *Service) Submit(ctx context.Context, name, bucket, prefix string) (domain.Job, error) {
	infos, err := s.objects.List(ctx, bucket, prefix)
	if err != nil {
		return domain.Job{}, fmt.Errorf("list %s/%s: %w", bucket, prefix, err)
	}
	if len(infos) == 0 {
		return domain.Job{}, fmt.Errorf("%w: s3://%s/%s", ErrNoObjects, bucket, prefix)
	}

	specs := make([]ports.ObjectSpec, 0, len(infos))
	for _, info := range infos {
		specs = append(specs, ports.ObjectSpec{Key: info.Key, SizeBytes: info.SizeBytes})
	}
	job, objects, err := s.repo.CreateJobWithObjects(ctx, domain.Job{
		ID:     uuid.NewString(),
		Name:   name,
		Bucket: bucket,
		Prefix: prefix,
	}, specs)
	if err != nil {
		return domain.Job{}, fmt.Errorf("create job: %w", err)
	}

	// Enqueue after the job row is committed so a worker can never receive a
	// task for an object the store has not seen. A failed enqueue leaves the
	// object pending for the reconciler-free path: the operator resubmits or
	// cancels; we surface the error rather than roll back the job.
	for _, obj := range objects {
		task := domain.ScanTask{
			JobID:    job.ID,
			ObjectID: obj.ID,
			Bucket:   bucket,
			Key:      obj.Key,
		}
		if err := s.queue.Enqueue(ctx, task); err != nil {
			return job, fmt.Errorf("enqueue %s: %w", obj.Key, err)
		}
	}

	s.log.WithFields(logrus.Fields{
		"job_id":  job.ID,
		"bucket":  bucket,
		"prefix":  prefix,
		"objects": len(objects),
	}).Info("job submitted")
	return job, nil
}

// Cancel moves a pending or running job to cancelled. Objects already
// scanning run to completion; their tasks settle normally, and tasks for
// not-yet-started objects are dropped on receipt.
func (s *Service) Cancel(ctx context.Context, jobID string) error {
	ok, err := s.repo.CancelJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("cancel job %s: %w", jobID, err)
	}
	if !ok {
		if _, found, gerr := s.repo.GetJob(ctx, jobID); gerr == nil && !found {
			return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
		}
		return fmt.Errorf("%w: %s", ErrJobTerminal, jobID)
	}
	s.log.WithField("job_id", jobID).Info("job cancelled")
	return nil
}

// Status returns the job with its derived aggregates.
func (s *Service) Status(ctx context.Context, jobID string) (domain.Job, error) {
	job, found, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		return domain.Job{}, fmt.Errorf("get job %s: %w", jobID, err)
	}
	if !found {
		return domain.Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return job, nil
}
