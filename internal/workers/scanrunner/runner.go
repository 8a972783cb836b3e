// Package scanrunner drives the worker side of the pipeline: it pulls scan
// tasks off the queue, runs the detector pipeline against the object, and
// settles each task exactly once. The queue is at-least-once, so every step
// here is written to be safe under redelivery.
package scanrunner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/design-smith/AWSDataScanner/internal/domain"
	"github.com/design-smith/AWSDataScanner/internal/findings"
	"github.com/design-smith/AWSDataScanner/internal/ports"
	"github.com/design-smith/AWSDataScanner/internal/scan"
)

const stuckReason = "scan abandoned: no heartbeat within the stuck threshold"

type Config struct {
	// Concurrency is the number of worker goroutines draining the task
	// channel.
	Concurrency int
	// ReceiveBatch is the max tasks fetched per queue receive.
	ReceiveBatch int
	// PollWait is the long-poll duration of each receive.
	PollWait time.Duration
	// VisibilityTimeout is how far each heartbeat pushes the task's
	// visibility deadline.
	VisibilityTimeout time.Duration
	// HeartbeatInterval is how often a worker extends visibility while a
	// scan is in flight. Must be comfortably below VisibilityTimeout.
	HeartbeatInterval time.Duration
	// StuckAfter is how long an object may sit in scanning before the
	// reconciler declares its worker dead and fails it.
	StuckAfter time.Duration
	// SweepInterval is how often the reconciler runs.
	SweepInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.Concurrency < 1 {
		c.Concurrency = 4
	}
	if c.ReceiveBatch < 1 {
		c.ReceiveBatch = 1
	}
	if c.PollWait <= 0 {
		c.PollWait = 20 * time.Second
	}
	if c.VisibilityTimeout <= 0 {
		c.VisibilityTimeout = 5 * time.Minute
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = c.VisibilityTimeout / 3
	}
	if c.StuckAfter <= 0 {
		c.StuckAfter = 30 * time.Minute
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 5 * time.Minute
	}
	return c
}

// Runner owns the receive loop, the worker pool, and the stuck-object
// reconciler.
type Runner struct {
	queue   ports.TaskQueue
	jobs    ports.JobRepository
	objects ports.ObjectRepository
	scanner *scan.FileScanner
	writer  *findings.Writer
	cfg     Config
	log     *logrus.Logger
}

func New(queue ports.TaskQueue, jobs ports.JobRepository, objects ports.ObjectRepository, scanner *scan.FileScanner, writer *findings.Writer, cfg Config, log *logrus.Logger) *Runner {
	return &Runner{
		queue:   queue,
		jobs:    jobs,
		objects: objects,
		scanner: scanner,
		writer:  writer,
		cfg:     cfg.withDefaults(),
		log:     log,
	}
}

// Run blocks until ctx is cancelled, then drains: in-flight scans finish (or
// are released for redelivery), undispatched tasks are released immediately.
func (r *Runner) Run(ctx context.Context) {
	tasks := make(chan ports.ReceivedTask, r.cfg.Concurrency)

	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rt := range tasks {
				r.process(ctx, rt)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		r.reconcile(ctx)
	}()

	// dispatcher loop
	for {
		if ctx.Err() != nil {
			break
		}
		received, err := r.queue.Receive(ctx, r.cfg.ReceiveBatch, r.cfg.PollWait)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			r.log.WithError(err).Error("queue receive failed")
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}
		for _, rt := range received {
			select {
			case tasks <- rt:
			case <-ctx.Done():
				r.release(rt)
			}
		}
	}

	close(tasks)
	wg.Wait()
}

// process settles one delivery. An ack is only issued once the object row is
// terminal (or the task is provably stale); all other outcomes leave the task
// to reappear after its visibility window.
func (r *Runner) process(ctx context.Context, rt ports.ReceivedTask) {
	log := r.log.WithFields(logrus.Fields{
		"job_id":        rt.Task.JobID,
		"object_id":     rt.Task.ObjectID,
		"s3_key":        rt.Task.Key,
		"receive_count": rt.ReceiveCount,
	})

	obj, found, err := r.objects.GetObject(ctx, rt.Task.ObjectID)
	if err != nil {
		log.WithError(err).Error("object lookup failed")
		return // transient, redeliver
	}
	if !found {
		log.Warn("task references unknown object, dropping")
		r.ack(rt, log)
		return
	}
	if obj.Status.Terminal() {
		// Duplicate delivery of finished work.
		r.ack(rt, log)
		return
	}

	job, found, err := r.jobs.GetJob(ctx, rt.Task.JobID)
	if err != nil {
		log.WithError(err).Error("job lookup failed")
		return
	}
	if !found || job.Status == domain.JobCancelled {
		log.Info("job gone or cancelled, dropping task")
		r.ack(rt, log)
		return
	}

	if scan.BinaryExtension(obj.Key) {
		if _, err := r.objects.MarkSkipped(ctx, obj.ID, "binary file extension"); err != nil {
			log.WithError(err).Error("mark skipped failed")
			return
		}
		r.ack(rt, log)
		return
	}

	ok, err := r.objects.MarkScanning(ctx, obj.ID)
	if err != nil {
		log.WithError(err).Error("mark scanning failed")
		return
	}
	if !ok {
		// Lost the race to another delivery that already finished it.
		r.ack(rt, log)
		return
	}

	stopHeartbeat := r.heartbeat(ctx, rt, log)
	matches, scanErr := r.scanObject(ctx, rt.Task.Bucket, obj.Key)
	stopHeartbeat()

	r.settle(ctx, rt, obj, matches, scanErr, log)
}

// scanObject wraps the scan with panic recovery: a detector or reader panic
// on one pathological object must not take down the worker or poison the
// queue forever.
func (r *Runner) scanObject(ctx context.Context, bucket, key string) (matches []scan.LineMatch, err error) {
	defer func() {
		if p := recover(); p != nil {
			matches = nil
			err = fmt.Errorf("scan panic: %v", p)
		}
	}()
	return r.scanner.Scan(ctx, bucket, key)
}

func (r *Runner) settle(ctx context.Context, rt ports.ReceivedTask, obj domain.JobObject, matches []scan.LineMatch, scanErr error, log *logrus.Entry) {
	switch {
	case scanErr == nil:
		inserted, err := r.writer.Write(ctx, obj, matches)
		if err != nil {
			// Leave unacked: the redelivered scan re-derives the same rows
			// and the uniqueness key absorbs whatever did land.
			log.WithError(err).Error("finding write failed")
			return
		}
		if _, err := r.objects.MarkCompleted(ctx, obj.ID); err != nil {
			log.WithError(err).Error("mark completed failed")
			return
		}
		log.WithFields(logrus.Fields{
			"matches":  len(matches),
			"inserted": inserted,
		}).Info("object scanned")
		r.ack(rt, log)

	case errors.Is(scanErr, scan.ErrUnsupportedContent):
		if _, err := r.objects.MarkSkipped(ctx, obj.ID, "unsupported content type"); err != nil {
			log.WithError(err).Error("mark skipped failed")
			return
		}
		log.Info("object skipped: not text")
		r.ack(rt, log)

	case errors.Is(scanErr, context.Canceled):
		// Shutdown drain. Put the task straight back for the next worker.
		r.release(rt)

	case transient(scanErr):
		log.WithError(scanErr).Warn("transient scan error, leaving for redelivery")

	default:
		// Object-fatal, including ErrObjectTooLarge.
		if _, err := r.objects.MarkFailed(ctx, obj.ID, scanErr.Error()); err != nil {
			log.WithError(err).Error("mark failed failed")
			return
		}
		log.WithError(scanErr).Error("object scan failed")
		r.ack(rt, log)
	}
}

// heartbeat keeps extending the task's visibility while the scan runs, so a
// long object does not get redelivered out from under a live worker. The
// returned func stops the loop and must always be called.
func (r *Runner) heartbeat(ctx context.Context, rt ports.ReceivedTask, log *logrus.Entry) func() {
	done := make(chan struct{})
	var once sync.Once
	go func() {
		ticker := time.NewTicker(r.cfg.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := r.queue.Extend(ctx, rt, r.cfg.VisibilityTimeout); err != nil {
					log.WithError(err).Warn("visibility extend failed")
				}
			}
		}
	}()
	return func() { once.Do(func() { close(done) }) }
}

// reconcile periodically fails objects stuck in scanning past the threshold,
// covering workers that died without settling their task.
func (r *Runner) reconcile(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			swept, err := r.objects.FailStuckScanning(ctx, r.cfg.StuckAfter, stuckReason)
			if err != nil {
				r.log.WithError(err).Error("stuck object sweep failed")
				continue
			}
			if swept > 0 {
				r.log.WithField("swept", swept).Warn("failed stuck scanning objects")
			}
		}
	}
}

// ack and release use a detached context: settlement must still go through
// during shutdown after the run context is cancelled.

func (r *Runner) ack(rt ports.ReceivedTask, log *logrus.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.queue.Ack(ctx, rt); err != nil {
		log.WithError(err).Error("task ack failed")
	}
}

func (r *Runner) release(rt ports.ReceivedTask) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.queue.Release(ctx, rt); err != nil {
		r.log.WithError(err).Error("task release failed")
	}
}
