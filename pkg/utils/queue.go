package utils

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrQueueClosed is returned by Submit after Close has been called.
var ErrQueueClosed = errors.New("background queue is closed")

// ErrQueueFull is returned by Submit when the buffer is full.
var ErrQueueFull = errors.New("background queue is full")

// Task is a unit of background work. Its error is logged and discarded.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// BackgroundQueue runs fire-and-forget tasks on a fixed set of workers.
// Submit never blocks; each task runs with its own timeout and panic
// boundary so one failure cannot affect another task or the caller.
type BackgroundQueue struct {
	tasks       chan Task
	logger      *slog.Logger
	taskTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewBackgroundQueue starts workers goroutines reading from a buffer of size
// tasks. Non-positive values default to 256 and 2.
func NewBackgroundQueue(size, workers int, taskTimeout time.Duration, logger *slog.Logger) *BackgroundQueue {
	if size <= 0 {
		size = 256
	}
	if workers <= 0 {
		workers = 2
	}
	if taskTimeout <= 0 {
		taskTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	q := &BackgroundQueue{
		tasks:       make(chan Task, size),
		logger:      logger,
		taskTimeout: taskTimeout,
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.work()
	}
	return q
}

// Submit enqueues task without waiting for it to run.
func (q *BackgroundQueue) Submit(task Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.tasks <- task:
		return nil
	default:
		q.logger.Error("background queue full, dropping task", "task", task.Name)
		return ErrQueueFull
	}
}

func (q *BackgroundQueue) work() {
	defer q.wg.Done()
	for task := range q.tasks {
		q.run(task)
	}
}

func (q *BackgroundQueue) run(task Task) {
	ctx, cancel := context.WithTimeout(context.Background(), q.taskTimeout)
	defer cancel()
	defer OnPanic(func(p *PanicError) {
		q.logger.Error("background task panicked", "task", task.Name, "error", p, "stack", string(p.Stack))
	})

	if err := task.Run(ctx); err != nil {
		q.logger.Error("background task failed", "task", task.Name, "error", err)
	}
}

// Close stops accepting tasks and waits for queued ones to finish, or for
// ctx to expire.
func (q *BackgroundQueue) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
