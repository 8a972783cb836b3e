package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/design-smith/AWSDataScanner/internal/domain"
)

func task(id int64) domain.ScanTask {
	return domain.ScanTask{JobID: "job-1", ObjectID: id, Bucket: "b", Key: "k"}
}

func TestQueue_ReceiveAndAck(t *testing.T) {
	ctx := context.Background()
	q := NewQueue(QueueConfig{VisibilityTimeout: time.Minute})
	require.NoError(t, q.Enqueue(ctx, task(1)))
	require.NoError(t, q.Enqueue(ctx, task(2)))

	got, err := q.Receive(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].ReceiveCount)

	// In flight: nothing visible.
	again, err := q.Receive(ctx, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, again)

	require.NoError(t, q.Ack(ctx, got[0]))
	require.NoError(t, q.Ack(ctx, got[1]))
	assert.Equal(t, 0, q.Depth())
}

func TestQueue_VisibilityExpiryRedelivers(t *testing.T) {
	ctx := context.Background()
	q := NewQueue(QueueConfig{VisibilityTimeout: 20 * time.Millisecond})
	require.NoError(t, q.Enqueue(ctx, task(1)))

	first, err := q.Receive(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Ownership window lapses without an ack; the task must come back.
	time.Sleep(30 * time.Millisecond)
	second, err := q.Receive(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].Task, second[0].Task)
	assert.Equal(t, 2, second[0].ReceiveCount)
}

func TestQueue_ReleaseIsImmediatelyVisible(t *testing.T) {
	ctx := context.Background()
	q := NewQueue(QueueConfig{VisibilityTimeout: time.Minute})
	require.NoError(t, q.Enqueue(ctx, task(1)))

	got, err := q.Receive(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NoError(t, q.Release(ctx, got[0]))

	again, err := q.Receive(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, again, 1)
}

func TestQueue_ExtendKeepsOwnership(t *testing.T) {
	ctx := context.Background()
	q := NewQueue(QueueConfig{VisibilityTimeout: 20 * time.Millisecond})
	require.NoError(t, q.Enqueue(ctx, task(1)))

	got, err := q.Receive(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NoError(t, q.Extend(ctx, got[0], time.Minute))

	time.Sleep(30 * time.Millisecond)
	again, err := q.Receive(ctx, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, again, "extended task must not be redelivered")
}

func TestQueue_DeadLetterAfterMaxReceives(t *testing.T) {
	ctx := context.Background()
	q := NewQueue(QueueConfig{VisibilityTimeout: 5 * time.Millisecond, MaxReceive: 3})
	require.NoError(t, q.Enqueue(ctx, task(7)))

	// Burn the delivery budget without ever acking.
	for i := 1; i <= 3; i++ {
		got, err := q.Receive(ctx, 1, 50*time.Millisecond)
		require.NoError(t, err)
		require.Len(t, got, 1, "delivery %d", i)
		assert.Equal(t, i, got[0].ReceiveCount)
		time.Sleep(10 * time.Millisecond)
	}

	got, err := q.Receive(ctx, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, got, "task past its budget must not be redelivered")

	dead, err := q.DeadLetters(ctx, 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, int64(7), dead[0].ObjectID)
}

func TestQueue_ReceiveHonorsContext(t *testing.T) {
	q := NewQueue(QueueConfig{})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Receive(ctx, 1, time.Minute)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
