package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrRunnerStopped is returned by Submit after Stop.
var ErrRunnerStopped = errors.New("task runner is stopped")

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// WorkerCount determines how many runs execute concurrently
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory task queue
	QueueSize int
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		WorkerCount: 2,
		QueueSize:   100,
	}
}

// TaskRunner manages background task processing. Submitted tasks are
// recorded in the store, queued, and executed by a worker pool; the store
// reflects each status transition.
type TaskRunner struct {
	store      TaskStore
	queue      *TaskQueue
	pool       *WorkerPool
	config     TaskRunnerConfig
	logger     *slog.Logger
	errHandler func(task Task, err error)
	startOnce  sync.Once
	stopOnce   sync.Once
}

// NewTaskRunner creates a new TaskRunner
func NewTaskRunner(store TaskStore, config TaskRunnerConfig, logger *slog.Logger) (*TaskRunner, error) {
	if store == nil {
		return nil, errors.New("task store cannot be nil")
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultTaskRunnerConfig().QueueSize
	}

	logger = logger.With("component", "task_runner")
	queue := NewTaskQueue(config.QueueSize, logger)

	r := &TaskRunner{
		store:  store,
		queue:  queue,
		config: config,
		logger: logger,
		errHandler: func(task Task, err error) {
			// Default error handler just logs the error
			logger.Error("task execution failed",
				"task_id", task.ID(),
				"task_type", task.Type(),
				"error", err)
		},
	}
	r.pool = NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: config.WorkerCount}, logger)
	return r, nil
}

// SetErrorHandler allows setting a custom error handler function
func (r *TaskRunner) SetErrorHandler(handler func(task Task, err error)) {
	r.errHandler = handler
}

// Submit records a new task and adds it to the queue
func (r *TaskRunner) Submit(ctx context.Context, task Task) error {
	if err := r.store.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}

	if err := r.queue.Enqueue(&trackedTask{Task: task, runner: r}); err != nil {
		if errors.Is(err, ErrQueueClosed) {
			err = ErrRunnerStopped
		}
		if updateErr := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusFailed, err.Error()); updateErr != nil {
			r.logger.ErrorContext(ctx, "failed to mark rejected task", "task_id", task.ID(), "error", updateErr)
		}
		return fmt.Errorf("failed to queue task: %w", err)
	}
	return nil
}

// Start begins processing tasks. Tasks run with a context derived from ctx;
// cancelling it or calling Stop cancels running tasks.
func (r *TaskRunner) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		r.pool.Start(ctx)
		r.logger.InfoContext(ctx, "task runner started", "worker_count", r.pool.workerCount)
	})
}

// Stop closes the queue, cancels running tasks and waits for workers to exit.
func (r *TaskRunner) Stop() {
	r.stopOnce.Do(func() {
		r.queue.Close()
		r.pool.Stop()
		r.logger.Info("task runner stopped")
	})
}

// trackedTask wraps a submitted task so that its status transitions are
// written to the store around execution.
type trackedTask struct {
	Task
	runner *TaskRunner
}

// Execute implements Task.
func (t *trackedTask) Execute(ctx context.Context) error {
	logger := t.runner.logger.With("task_id", t.ID(), "task_type", t.Type())
	store := t.runner.store

	if err := store.UpdateTaskStatus(ctx, t.ID(), TaskStatusProcessing, ""); err != nil {
		logger.ErrorContext(ctx, "failed to update task status to processing", "error", err)
	}

	logger.InfoContext(ctx, "processing task")
	err := t.Task.Execute(ctx)

	// The run context may already be cancelled; status writes must still land
	statusCtx := context.WithoutCancel(ctx)
	if err != nil {
		if updateErr := store.UpdateTaskStatus(statusCtx, t.ID(), TaskStatusFailed, err.Error()); updateErr != nil {
			logger.ErrorContext(ctx, "failed to update task status to failed", "error", updateErr)
		}
		t.runner.errHandler(t.Task, err)
		return nil
	}

	logger.InfoContext(ctx, "task completed successfully")
	if updateErr := store.UpdateTaskStatus(statusCtx, t.ID(), TaskStatusCompleted, ""); updateErr != nil {
		logger.ErrorContext(ctx, "failed to update task status to completed", "error", updateErr)
	}
	return nil
}
