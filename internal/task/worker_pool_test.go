package task

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorkerPool(t *testing.T) {
	logger := setupTestLogger()
	queue := NewTaskQueue(1, logger)

	pool := NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: 5}, logger)
	assert.Equal(t, 5, pool.workerCount)
	assert.Nil(t, pool.errorHandler)

	// Invalid worker counts default to 1
	pool = NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: 0}, logger)
	assert.Equal(t, 1, pool.workerCount)
	pool = NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: -5}, logger)
	assert.Equal(t, 1, pool.workerCount)
}

func TestWorkerPool_DrainsClosedQueue(t *testing.T) {
	logger := setupTestLogger()
	queue := NewTaskQueue(20, logger)

	var done atomic.Int32
	for i := 0; i < 20; i++ {
		task := newMockTask()
		task.execFn = func(ctx context.Context) error {
			done.Add(1)
			return nil
		}
		require.NoError(t, queue.Enqueue(task))
	}
	queue.Close()

	pool := NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: 4}, logger)
	pool.Start(context.Background())
	pool.Wait()

	assert.Equal(t, int32(20), done.Load())
}

func TestWorkerPool_BoundsConcurrency(t *testing.T) {
	logger := setupTestLogger()
	queue := NewTaskQueue(12, logger)

	var (
		mu      sync.Mutex
		current int
		peak    int
	)
	for i := 0; i < 12; i++ {
		task := newMockTask()
		task.execFn = func(ctx context.Context) error {
			mu.Lock()
			current++
			if current > peak {
				peak = current
			}
			mu.Unlock()

			time.Sleep(5 * time.Millisecond)

			mu.Lock()
			current--
			mu.Unlock()
			return nil
		}
		require.NoError(t, queue.Enqueue(task))
	}
	queue.Close()

	pool := NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: 3}, logger)
	pool.Start(context.Background())
	pool.Wait()

	assert.LessOrEqual(t, peak, 3)
	assert.GreaterOrEqual(t, peak, 1)
}

func TestWorkerPool_ProcessTask_Error(t *testing.T) {
	logger := setupTestLogger()
	queue := NewTaskQueue(1, logger)

	expectedErr := errors.New("test error")
	task := newMockTask()
	task.execFn = func(ctx context.Context) error {
		return expectedErr
	}
	require.NoError(t, queue.Enqueue(task))
	queue.Close()

	var handled []error
	pool := NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: 1}, logger)
	pool.SetErrorHandler(func(task Task, err error) {
		handled = append(handled, err)
	})
	pool.Start(context.Background())
	pool.Wait()

	require.Len(t, handled, 1)
	assert.Equal(t, expectedErr, handled[0])
}

func TestWorkerPool_ProcessTask_Panic(t *testing.T) {
	logger := setupTestLogger()
	queue := NewTaskQueue(1, logger)

	task := newMockTask()
	task.execFn = func(ctx context.Context) error {
		panic("test panic")
	}
	require.NoError(t, queue.Enqueue(task))
	queue.Close()

	var handled []error
	pool := NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: 1}, logger)
	pool.SetErrorHandler(func(task Task, err error) {
		handled = append(handled, err)
	})
	pool.Start(context.Background())
	pool.Wait()

	require.Len(t, handled, 1)
	assert.Contains(t, handled[0].Error(), "test panic")
}

func TestWorkerPool_Stop(t *testing.T) {
	logger := setupTestLogger()
	queue := NewTaskQueue(1, logger)

	started := make(chan struct{})
	task := newMockTask()
	task.execFn = func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}
	require.NoError(t, queue.Enqueue(task))

	pool := NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: 1}, logger)
	pool.Start(context.Background())

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for task to start")
	}

	// Stop cancels the running task and returns once the worker exits
	pool.Stop()
}
