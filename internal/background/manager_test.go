package background

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"channel-scout/internal/config"
	"channel-scout/internal/discovery"
	"channel-scout/internal/logging"
	"channel-scout/pkg/models"
)

type runnerFunc func(ctx context.Context, req discovery.Request) (*models.RunResult, error)

func (f runnerFunc) Run(ctx context.Context, req discovery.Request) (*models.RunResult, error) {
	return f(ctx, req)
}

func startManager(t *testing.T, runner Runner) *TaskManagerImpl {
	t.Helper()
	cfg := config.Defaults()
	cfg.BackgroundTasks.MaxConcurrentTasks = 1
	tm := NewTaskManager(cfg, nil, runner, logging.NewNopLogger())
	require.NoError(t, tm.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = tm.Stop(ctx)
	})
	return tm
}

func waitForStatus(t *testing.T, tm *TaskManagerImpl, id string, want TaskStatus) *TaskResult {
	t.Helper()
	var result *TaskResult
	require.Eventually(t, func() bool {
		var err error
		result, err = tm.GetTaskResult(context.Background(), id)
		return err == nil && result.Status == want
	}, 2*time.Second, 10*time.Millisecond)
	return result
}

func TestSubmitSearchTaskSucceeds(t *testing.T) {
	tm := startManager(t, runnerFunc(func(ctx context.Context, req discovery.Request) (*models.RunResult, error) {
		return &models.RunResult{RunID: "run-1", Query: req.Query}, nil
	}))

	require.NoError(t, tm.SubmitSearchTask(context.Background(), "p1", discovery.Request{Query: "cooking"}))

	result := waitForStatus(t, tm, "p1", TaskStatusSuccess)
	require.NotNil(t, result.Data)
	assert.Equal(t, "cooking", result.Data.Query)
	assert.NotNil(t, result.CompletedAt)
	assert.NotNil(t, result.ProcessingTime)

	resp := result.ToResponse()
	assert.True(t, resp.IsCompleted())
	assert.Equal(t, models.AsyncStatusSuccess, resp.Status)
}

func TestSubmitSearchTaskFailure(t *testing.T) {
	tm := startManager(t, runnerFunc(func(ctx context.Context, req discovery.Request) (*models.RunResult, error) {
		return nil, errors.New("query expansion failed")
	}))

	require.NoError(t, tm.SubmitSearchTask(context.Background(), "p2", discovery.Request{Query: "cooking"}))
	result := waitForStatus(t, tm, "p2", TaskStatusFailure)
	assert.Equal(t, "query expansion failed", result.Error)
	assert.Nil(t, result.Data)
}

func TestSubmitSearchTaskRecoversPanic(t *testing.T) {
	tm := startManager(t, runnerFunc(func(ctx context.Context, req discovery.Request) (*models.RunResult, error) {
		panic("boom")
	}))

	require.NoError(t, tm.SubmitSearchTask(context.Background(), "p3", discovery.Request{}))
	result := waitForStatus(t, tm, "p3", TaskStatusFailure)
	assert.Contains(t, result.Error, "panicked")
}

func TestSubmitBeforeStartFails(t *testing.T) {
	tm := NewTaskManager(config.Defaults(), nil, nil, logging.NewNopLogger())
	assert.False(t, tm.IsHealthy())
	assert.Error(t, tm.SubmitSearchTask(context.Background(), "p", discovery.Request{}))
}

func TestGetUnknownTask(t *testing.T) {
	tm := startManager(t, nil)
	_, err := tm.GetTaskStatus(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestInMemoryStoreCleanup(t *testing.T) {
	store := NewInMemoryTaskStore()
	ctx := context.Background()
	require.NoError(t, store.Store(ctx, &TaskResult{ProcessID: "old", CreatedAt: time.Now().Add(-48 * time.Hour)}))
	require.NoError(t, store.Store(ctx, &TaskResult{ProcessID: "new", CreatedAt: time.Now()}))

	require.NoError(t, store.Cleanup(ctx, 24*time.Hour))
	tasks, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "new", tasks[0].ProcessID)

	assert.ErrorIs(t, store.Update(ctx, &TaskResult{ProcessID: "old"}), ErrTaskNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "old"), ErrTaskNotFound)
}
