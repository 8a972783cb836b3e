package ports

import (
	"context"
	"time"

	"github.com/design-smith/AWSDataScanner/internal/domain"
)

// ReceivedTask is a dequeued task together with the receipt needed to settle
// it. ReceiveCount is 1 on first delivery.
type ReceivedTask struct {
	Task         domain.ScanTask
	Receipt      string
	ReceiveCount int
}

// TaskQueue abstracts a visibility-timeout work queue with dead-letter
// semantics. Delivery is at-least-once: a received task that is neither
// acked nor released becomes visible again when its visibility window
// expires, and after too many redeliveries it is moved to the dead-letter
// channel instead. Consumers must be idempotent.
type TaskQueue interface {
	Enqueue(ctx context.Context, task domain.ScanTask) error
	// Receive long-polls for up to wait, returning at most max tasks.
	// An empty slice means the wait elapsed with nothing to do.
	Receive(ctx context.Context, max int, wait time.Duration) ([]ReceivedTask, error)
	// Ack permanently removes a received task.
	Ack(ctx context.Context, t ReceivedTask) error
	// Release makes a received task immediately visible for redelivery.
	Release(ctx context.Context, t ReceivedTask) error
	// Extend pushes the task's visibility deadline d into the future,
	// keeping ownership during long scans.
	Extend(ctx context.Context, t ReceivedTask, d time.Duration) error
	// DeadLetters peeks at tasks parked on the dead-letter channel.
	DeadLetters(ctx context.Context, limit int) ([]domain.ScanTask, error)
}
