// Package memory provides in-process implementations of the queue, state
// store and object store ports. They mirror the semantics of the SQS and
// Postgres adapters closely enough to back the pipeline tests and a local
// single-process mode.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/design-smith/AWSDataScanner/internal/domain"
	"github.com/design-smith/AWSDataScanner/internal/ports"
)

const receivePollInterval = 10 * time.Millisecond

type QueueConfig struct {
	// VisibilityTimeout is the exclusive-ownership window per receive.
	VisibilityTimeout time.Duration
	// MaxReceive is how many deliveries a task gets before it is parked on
	// the dead-letter list instead of being made visible again.
	MaxReceive int
}

type queueItem struct {
	task         domain.ScanTask
	receiveCount int
	visibleAt    time.Time
}

// Queue is a visibility-timeout task queue backed by process memory.
// Unacked receives expire back to visible; tasks that exhaust MaxReceive
// deliveries move to the dead-letter list.
type Queue struct {
	mu       sync.Mutex
	cfg      QueueConfig
	items    []*queueItem
	inflight map[string]*queueItem
	dead     []domain.ScanTask
	counter  uint64
}

func NewQueue(cfg QueueConfig) *Queue {
	if cfg.VisibilityTimeout <= 0 {
		cfg.VisibilityTimeout = 30 * time.Second
	}
	if cfg.MaxReceive <= 0 {
		cfg.MaxReceive = 5
	}
	return &Queue{
		cfg:      cfg,
		inflight: make(map[string]*queueItem),
	}
}

func (q *Queue) Enqueue(_ context.Context, task domain.ScanTask) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, &queueItem{task: task})
	return nil
}

func (q *Queue) Receive(ctx context.Context, max int, wait time.Duration) ([]ports.ReceivedTask, error) {
	if max <= 0 {
		max = 1
	}
	deadline := time.Now().Add(wait)
	for {
		if out := q.tryReceive(max); len(out) > 0 {
			return out, nil
		}
		if wait <= 0 || !time.Now().Before(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(receivePollInterval):
		}
	}
}

func (q *Queue) tryReceive(max int) []ports.ReceivedTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.expireLocked(time.Now())

	var out []ports.ReceivedTask
	for len(out) < max && len(q.items) > 0 {
		it := q.items[0]
		q.items = q.items[1:]
		it.receiveCount++
		it.visibleAt = time.Now().Add(q.cfg.VisibilityTimeout)
		q.counter++
		receipt := fmt.Sprintf("mem:%d", q.counter)
		q.inflight[receipt] = it
		out = append(out, ports.ReceivedTask{
			Task:         it.task,
			Receipt:      receipt,
			ReceiveCount: it.receiveCount,
		})
	}
	return out
}

// expireLocked moves timed-out inflight items back to visible, or to the
// dead-letter list once their delivery budget is spent.
func (q *Queue) expireLocked(now time.Time) {
	for receipt, it := range q.inflight {
		if it.visibleAt.After(now) {
			continue
		}
		delete(q.inflight, receipt)
		if it.receiveCount >= q.cfg.MaxReceive {
			q.dead = append(q.dead, it.task)
			continue
		}
		q.items = append(q.items, it)
	}
}

func (q *Queue) Ack(_ context.Context, t ports.ReceivedTask) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inflight, t.Receipt)
	return nil
}

func (q *Queue) Release(_ context.Context, t ports.ReceivedTask) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	it, ok := q.inflight[t.Receipt]
	if !ok {
		return nil
	}
	delete(q.inflight, t.Receipt)
	if it.receiveCount >= q.cfg.MaxReceive {
		q.dead = append(q.dead, it.task)
		return nil
	}
	q.items = append(q.items, it)
	return nil
}

func (q *Queue) Extend(_ context.Context, t ports.ReceivedTask, d time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if it, ok := q.inflight[t.Receipt]; ok {
		it.visibleAt = time.Now().Add(d)
	}
	return nil
}

func (q *Queue) DeadLetters(_ context.Context, limit int) ([]domain.ScanTask, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.expireLocked(time.Now())
	if limit <= 0 || limit > len(q.dead) {
		limit = len(q.dead)
	}
	out := make([]domain.ScanTask, limit)
	copy(out, q.dead[:limit])
	return out, nil
}

// Depth reports visible backlog, for tests and the ops endpoint.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.expireLocked(time.Now())
	return len(q.items)
}
