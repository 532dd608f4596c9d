package background

import (
	"time"

	"channel-scout/internal/logging/types"
)

// TaskCompletionLogger writes the task lifecycle as structured log entries
type TaskCompletionLogger struct {
	logger types.Logger
}

// NewTaskCompletionLogger creates a new task completion logger
func NewTaskCompletionLogger(logger types.Logger) *TaskCompletionLogger {
	return &TaskCompletionLogger{logger: logger.WithField("component", "task_lifecycle")}
}

// LogTaskCompletion logs the final state of a task, including a short summary
// of the run it produced
func (l *TaskCompletionLogger) LogTaskCompletion(result *TaskResult) {
	fields := map[string]interface{}{
		"process_id": result.ProcessID,
		"status":     result.Status,
		"operation":  result.Type,
	}
	if result.ProcessingTime != nil {
		fields["processing_time"] = result.ProcessingTime.String()
	}
	if result.Data != nil {
		fields["run_id"] = result.Data.RunID
		fields["results"] = len(result.Data.Results)
		fields["timed_out"] = result.Data.TimedOut
	}
	if result.Error != "" {
		fields["error"] = result.Error
	}
	l.logger.Info("Background task completed", fields)
}

// LogTaskStart logs when a task starts processing
func (l *TaskCompletionLogger) LogTaskStart(processID string, taskType TaskType) {
	l.logger.Info("Background task started", map[string]interface{}{
		"process_id": processID,
		"operation":  taskType,
		"status":     TaskStatusProcessing,
	})
}

// LogTaskAccepted logs when a task is accepted for processing
func (l *TaskCompletionLogger) LogTaskAccepted(processID string, taskType TaskType) {
	l.logger.Info("Background task accepted", map[string]interface{}{
		"process_id": processID,
		"operation":  taskType,
		"status":     TaskStatusAccepted,
	})
}

// LogTaskError logs task errors during processing
func (l *TaskCompletionLogger) LogTaskError(processID string, taskType TaskType, err error) {
	l.logger.Error("Background task failed", map[string]interface{}{
		"process_id": processID,
		"operation":  taskType,
		"status":     TaskStatusFailure,
		"error":      err.Error(),
	})
}

// LogTaskSuccess logs successful task completion
func (l *TaskCompletionLogger) LogTaskSuccess(processID string, taskType TaskType, processingTime time.Duration) {
	l.logger.Info("Background task succeeded", map[string]interface{}{
		"process_id":      processID,
		"operation":       taskType,
		"status":          TaskStatusSuccess,
		"processing_time": processingTime.String(),
	})
}
