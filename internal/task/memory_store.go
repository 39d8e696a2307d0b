package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrTaskNotFound is returned when a task ID is unknown to the store.
var ErrTaskNotFound = errors.New("task not found")

type storedTask struct {
	task   Task
	record TaskRecord
}

// MemoryTaskStore implements TaskStore in process memory. Runs do not survive
// a restart, so there is nothing to recover on start.
type MemoryTaskStore struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]*storedTask
	now   func() time.Time
}

// NewMemoryTaskStore creates an empty store.
func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{
		tasks: make(map[uuid.UUID]*storedTask),
		now:   time.Now,
	}
}

// SaveTask implements TaskStore.
func (s *MemoryTaskStore) SaveTask(_ context.Context, task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks[task.ID()] = &storedTask{
		task: task,
		record: TaskRecord{
			ID:        task.ID(),
			Type:      task.Type(),
			Status:    TaskStatusPending,
			UpdatedAt: s.now(),
		},
	}
	return nil
}

// UpdateTaskStatus implements TaskStore.
func (s *MemoryTaskStore) UpdateTaskStatus(_ context.Context, taskID uuid.UUID, status TaskStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.tasks[taskID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	st.record.Status = status
	st.record.Error = errorMsg
	st.record.UpdatedAt = s.now()
	return nil
}

// GetTask implements TaskStore.
func (s *MemoryTaskStore) GetTask(_ context.Context, taskID uuid.UUID) (TaskRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.tasks[taskID]
	if !ok {
		return TaskRecord{}, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	return st.record, nil
}

// GetPendingTasks implements TaskStore.
func (s *MemoryTaskStore) GetPendingTasks(_ context.Context) ([]Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pending []Task
	for _, st := range s.tasks {
		if st.record.Status == TaskStatusPending {
			pending = append(pending, st.task)
		}
	}
	return pending, nil
}
