package jobs

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/design-smith/AWSDataScanner/internal/adapters/memory"
	"github.com/design-smith/AWSDataScanner/internal/domain"
)

func newService(t *testing.T) (*Service, *memory.Store, *memory.ObjectStore, *memory.Queue) {
	t.Helper()
	store := memory.NewStore()
	objects := memory.NewObjectStore()
	queue := memory.NewQueue(memory.QueueConfig{})
	log := logrus.New()
	log.SetOutput(io.Discard)
	return New(store, objects, queue, log), store, objects, queue
}

func TestSubmitCreatesJobAndEnqueuesTasks(t *testing.T) {
	svc, store, objects, queue := newService(t)
	ctx := context.Background()

	objects.Put("corp-data", "exports/users.csv", []byte("a@b.com\n"))
	objects.Put("corp-data", "exports/events.log", []byte("nothing\n"))
	objects.Put("corp-data", "other/readme.md", []byte("docs\n"))

	job, err := svc.Submit(ctx, "quarterly audit", "corp-data", "exports/")
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, domain.JobPending, job.Status)
	assert.Equal(t, 2, job.TotalObjects)
	assert.Equal(t, 2, queue.Depth())

	received, err := queue.Receive(ctx, 10, 10*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, received, 2)
	for _, rt := range received {
		assert.Equal(t, job.ID, rt.Task.JobID)
		obj, found, err := store.GetObject(ctx, rt.Task.ObjectID)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, rt.Task.Key, obj.Key)
	}
}

func TestSubmitEmptyPrefixFails(t *testing.T) {
	svc, _, _, queue := newService(t)

	_, err := svc.Submit(context.Background(), "empty", "corp-data", "missing/")
	require.ErrorIs(t, err, ErrNoObjects)
	assert.Zero(t, queue.Depth())
}

func TestCancel(t *testing.T) {
	svc, store, objects, _ := newService(t)
	ctx := context.Background()

	objects.Put("corp-data", "a.txt", []byte("x\n"))
	job, err := svc.Submit(ctx, "to cancel", "corp-data", "")
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(ctx, job.ID))
	got, _, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobCancelled, got.Status)

	// Cancelling again hits the terminal guard.
	require.ErrorIs(t, svc.Cancel(ctx, job.ID), ErrJobTerminal)
	require.ErrorIs(t, svc.Cancel(ctx, "not-a-job"), ErrJobNotFound)
}

func TestStatusUnknownJob(t *testing.T) {
	svc, _, _, _ := newService(t)
	_, err := svc.Status(context.Background(), "nope")
	require.ErrorIs(t, err, ErrJobNotFound)
}
