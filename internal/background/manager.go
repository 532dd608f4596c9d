package background

import (
	"context"
	"fmt"
	"sync"
	"time"

	"channel-scout/internal/config"
	"channel-scout/internal/discovery"
	"channel-scout/internal/logging"
	"channel-scout/internal/logging/types"
	"channel-scout/pkg/models"
)

// Task manager configuration constants
const (
	DefaultMaxWorkers   = 2
	DefaultMaxQueueSize = 100
	DefaultMaxTaskAge   = 24 * time.Hour

	MinWorkers = 1
	MaxWorkers = 64
)

// Runner executes one discovery run
type Runner interface {
	Run(ctx context.Context, req discovery.Request) (*models.RunResult, error)
}

// TaskManager defines the interface for managing background tasks
type TaskManager interface {
	// Start starts the task manager
	Start(ctx context.Context) error

	// Stop stops the task manager gracefully
	Stop(ctx context.Context) error

	// SubmitSearchTask queues a discovery run under processID
	SubmitSearchTask(ctx context.Context, processID string, req discovery.Request) error

	// GetTaskResult retrieves the result of a task by process ID
	GetTaskResult(ctx context.Context, processID string) (*TaskResult, error)

	// GetTaskStatus retrieves the status of a task by process ID
	GetTaskStatus(ctx context.Context, processID string) (TaskStatus, error)

	// ListTasks lists all known tasks (for monitoring)
	ListTasks(ctx context.Context) ([]*TaskResult, error)

	// IsHealthy checks if the task manager is healthy
	IsHealthy() bool
}

// TaskManagerImpl implements the TaskManager interface
type TaskManagerImpl struct {
	store           TaskStore
	runner          Runner
	logger          *TaskCompletionLogger
	appLogger       types.Logger
	ctx             context.Context
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	mu              sync.RWMutex
	running         bool
	taskChan        chan *TaskExecution
	maxWorkers      int
	taskTimeout     time.Duration
	cleanupInterval time.Duration
	maxTaskAge      time.Duration
}

// TaskExecution represents a task execution context
type TaskExecution struct {
	ProcessID   string
	Type        TaskType
	Context     context.Context
	Cancel      context.CancelFunc
	ExecuteFunc func(context.Context) (*models.RunResult, error)
}

// validateWorkers bounds the configured worker count
func validateWorkers(n int) (int, error) {
	switch {
	case n <= 0:
		return DefaultMaxWorkers, nil
	case n > MaxWorkers:
		return 0, fmt.Errorf("max concurrent tasks (%d) exceeds maximum (%d)", n, MaxWorkers)
	}
	return n, nil
}

// NewTaskManager creates a task manager running discovery through runner.
// store may be nil, which selects the in-memory store.
func NewTaskManager(cfg *config.Config, store TaskStore, runner Runner, logger types.Logger) *TaskManagerImpl {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	logger = logger.WithField("component", "task_manager")
	if store == nil {
		store = NewInMemoryTaskStore()
	}

	bt := cfg.BackgroundTasks
	maxWorkers, err := validateWorkers(bt.MaxConcurrentTasks)
	if err != nil {
		logger.Warn("Task manager configuration validation failed, using defaults", map[string]interface{}{
			"error": err.Error(),
		})
		maxWorkers = DefaultMaxWorkers
	}

	maxAge := bt.MaxTaskAge
	if maxAge <= 0 {
		maxAge = DefaultMaxTaskAge
	}
	interval := bt.CleanupInterval
	if interval <= 0 {
		interval = time.Hour
	}

	logger.Info("Task manager configuration initialized", map[string]interface{}{
		"max_workers":    maxWorkers,
		"max_queue_size": DefaultMaxQueueSize,
		"task_timeout":   bt.TaskTimeout.String(),
	})

	return &TaskManagerImpl{
		store:           store,
		runner:          runner,
		logger:          NewTaskCompletionLogger(logger),
		appLogger:       logger,
		maxWorkers:      maxWorkers,
		taskTimeout:     bt.TaskTimeout,
		cleanupInterval: interval,
		maxTaskAge:      maxAge,
		taskChan:        make(chan *TaskExecution, DefaultMaxQueueSize),
	}
}

// Start starts the workers and the cleanup loop
func (tm *TaskManagerImpl) Start(ctx context.Context) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.running {
		return fmt.Errorf("task manager already running")
	}

	tm.ctx, tm.cancel = context.WithCancel(ctx)
	tm.running = true

	for i := 0; i < tm.maxWorkers; i++ {
		tm.wg.Add(1)
		go tm.worker(i)
	}

	tm.wg.Add(1)
	go tm.cleanupRoutine()

	tm.appLogger.Info("Task manager started", map[string]interface{}{
		"max_workers": tm.maxWorkers,
	})
	return nil
}

// Stop cancels running tasks and waits for the workers, bounded by ctx
func (tm *TaskManagerImpl) Stop(ctx context.Context) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if !tm.running {
		return nil
	}

	tm.appLogger.Info("Stopping task manager...")
	tm.cancel()
	close(tm.taskChan)

	done := make(chan struct{})
	go func() {
		tm.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		tm.appLogger.Info("Task manager stopped gracefully")
	case <-ctx.Done():
		tm.appLogger.Warn("Task manager shutdown timed out")
	}

	tm.running = false
	return nil
}

// SubmitSearchTask stores an ACCEPTED task and queues the run
func (tm *TaskManagerImpl) SubmitSearchTask(ctx context.Context, processID string, req discovery.Request) error {
	if !tm.IsHealthy() {
		return fmt.Errorf("task manager is not healthy")
	}

	result := &TaskResult{
		ProcessID: processID,
		Type:      TaskTypeSearch,
		Status:    TaskStatusAccepted,
		CreatedAt: time.Now(),
		Metadata: map[string]interface{}{
			"query":     req.Query,
			"limit":     req.Limit,
			"countries": req.Countries,
		},
	}
	if err := tm.store.Store(ctx, result); err != nil {
		return fmt.Errorf("failed to store task result: %w", err)
	}

	tm.logger.LogTaskAccepted(processID, TaskTypeSearch)

	// the read lock keeps Stop from closing taskChan mid-send
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	if !tm.running {
		_ = tm.store.Delete(context.Background(), processID)
		return fmt.Errorf("task manager is not running")
	}

	var taskCtx context.Context
	var cancelFunc context.CancelFunc
	if tm.taskTimeout > 0 {
		taskCtx, cancelFunc = context.WithTimeout(tm.ctx, tm.taskTimeout)
	} else {
		taskCtx, cancelFunc = context.WithCancel(tm.ctx)
	}

	execution := &TaskExecution{
		ProcessID: processID,
		Type:      TaskTypeSearch,
		Context:   taskCtx,
		Cancel:    cancelFunc,
		ExecuteFunc: func(execCtx context.Context) (*models.RunResult, error) {
			return tm.runner.Run(execCtx, req)
		},
	}

	select {
	case tm.taskChan <- execution:
		return nil
	default:
		cancelFunc()
		_ = tm.store.Delete(context.Background(), processID)
		return ErrQueueFull
	}
}

// GetTaskResult retrieves the result of a task by process ID
func (tm *TaskManagerImpl) GetTaskResult(ctx context.Context, processID string) (*TaskResult, error) {
	return tm.store.Get(ctx, processID)
}

// GetTaskStatus retrieves the status of a task by process ID
func (tm *TaskManagerImpl) GetTaskStatus(ctx context.Context, processID string) (TaskStatus, error) {
	result, err := tm.store.Get(ctx, processID)
	if err != nil {
		return "", err
	}
	return result.Status, nil
}

// ListTasks lists all known tasks
func (tm *TaskManagerImpl) ListTasks(ctx context.Context) ([]*TaskResult, error) {
	return tm.store.List(ctx)
}

// IsHealthy checks if the task manager is healthy
func (tm *TaskManagerImpl) IsHealthy() bool {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.running && tm.ctx.Err() == nil
}

func (tm *TaskManagerImpl) worker(workerID int) {
	defer tm.wg.Done()

	for {
		select {
		case <-tm.ctx.Done():
			tm.drain()
			return
		case task, ok := <-tm.taskChan:
			if !ok {
				return
			}
			tm.processTask(workerID, task)
		}
	}
}

// drain marks queued tasks as failed once the manager is stopping
func (tm *TaskManagerImpl) drain() {
	for task := range tm.taskChan {
		tm.finish(task, nil, fmt.Errorf("task manager stopped before the task ran"), 0)
		task.Cancel()
	}
}

func (tm *TaskManagerImpl) processTask(workerID int, task *TaskExecution) {
	startTime := time.Now()
	defer task.Cancel()

	tm.appLogger.Debug("Processing task", map[string]interface{}{
		"worker_id":  workerID,
		"process_id": task.ProcessID,
		"task_type":  task.Type,
	})

	if err := tm.updateTaskStatus(task.ProcessID, TaskStatusProcessing); err != nil {
		tm.appLogger.WithError(err).Error("Failed to update task status to processing")
	}
	tm.logger.LogTaskStart(task.ProcessID, task.Type)

	run, err := tm.safeExecute(task)
	tm.finish(task, run, err, time.Since(startTime))
}

// safeExecute turns a panicking run into a task failure
func (tm *TaskManagerImpl) safeExecute(task *TaskExecution) (run *models.RunResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return task.ExecuteFunc(task.Context)
}

func (tm *TaskManagerImpl) finish(task *TaskExecution, run *models.RunResult, err error, processingTime time.Duration) {
	ctx := context.Background()

	result, getErr := tm.store.Get(ctx, task.ProcessID)
	if getErr != nil {
		tm.appLogger.WithError(getErr).Error("Failed to retrieve task result for completion")
		result = &TaskResult{ProcessID: task.ProcessID, Type: task.Type, CreatedAt: time.Now()}
	}

	result.ProcessingTime = &processingTime
	completedAt := time.Now()
	result.CompletedAt = &completedAt

	if err != nil {
		result.Status = TaskStatusFailure
		result.Error = err.Error()
		tm.logger.LogTaskError(task.ProcessID, task.Type, err)
	} else {
		result.Status = TaskStatusSuccess
		result.Data = run
		tm.logger.LogTaskSuccess(task.ProcessID, task.Type, processingTime)
	}

	if err := tm.store.Update(ctx, result); err != nil {
		tm.appLogger.WithError(err).Error("Failed to store task result")
	}
	tm.logger.LogTaskCompletion(result)
}

func (tm *TaskManagerImpl) updateTaskStatus(processID string, status TaskStatus) error {
	result, err := tm.store.Get(context.Background(), processID)
	if err != nil {
		return err
	}
	result.Status = status
	return tm.store.Update(context.Background(), result)
}

// cleanupRoutine periodically drops old task results
func (tm *TaskManagerImpl) cleanupRoutine() {
	defer tm.wg.Done()

	ticker := time.NewTicker(tm.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-tm.ctx.Done():
			return
		case <-ticker.C:
			if err := tm.store.Cleanup(context.Background(), tm.maxTaskAge); err != nil {
				tm.appLogger.WithError(err).Error("Failed to cleanup old task results")
			}
		}
	}
}
