package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorker_RegisterRunsJob(t *testing.T) {
	w := New(Config{})
	calls := 0
	w.Register(TaskProcessSyncQueue, "@every 1m", func(ctx context.Context) error {
		calls++
		return nil
	})

	err := w.Handler().ProcessTask(context.Background(), asynq.NewTask(TaskProcessSyncQueue, nil))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	require.Len(t, w.jobs, 1)
	assert.Equal(t, "@every 1m", w.jobs[0].cronspec)
}

func TestWorker_FailedJobIsNotRetried(t *testing.T) {
	w := New(Config{})
	w.Register(TaskProcessDueReminders, "@every 5m", func(ctx context.Context) error {
		return errors.New("smtp down")
	})

	err := w.Handler().ProcessTask(context.Background(), asynq.NewTask(TaskProcessDueReminders, nil))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestWorker_EmptyCronRegistersHandlerOnly(t *testing.T) {
	w := New(Config{})
	w.Register(TaskCleanupReminders, "", func(ctx context.Context) error { return nil })

	assert.Empty(t, w.jobs)
	require.NoError(t, w.Handler().ProcessTask(context.Background(), asynq.NewTask(TaskCleanupReminders, nil)))
}

func TestWorker_UnknownTask(t *testing.T) {
	w := New(Config{})
	err := w.Handler().ProcessTask(context.Background(), asynq.NewTask("unknown", nil))
	assert.Error(t, err)
}
