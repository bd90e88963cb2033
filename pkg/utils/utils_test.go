package utils

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteWithResultsBoundsConcurrency(t *testing.T) {
	var running, peak int32
	functions := make([]func() (int, error), 12)
	for i := range functions {
		i := i
		functions[i] = func() (int, error) {
			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			return i * i, nil
		}
	}

	results, errs := ExecuteWithResults(context.Background(), 4, functions...)
	for i := range functions {
		require.NoError(t, errs[i])
		assert.Equal(t, i*i, results[i])
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(4))
}

func TestExecuteWithResultsUnbounded(t *testing.T) {
	// every function blocks until all have started
	const n = 8
	var started sync.WaitGroup
	started.Add(n)
	functions := make([]func() (bool, error), n)
	for i := range functions {
		functions[i] = func() (bool, error) {
			started.Done()
			started.Wait()
			return true, nil
		}
	}

	done := make(chan struct{})
	go func() {
		ExecuteWithResults(context.Background(), 0, functions...)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("unbounded execution did not run all functions at once")
	}
}

func TestExecuteWithResultsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, errs := ExecuteWithResults(ctx, 1,
		func() (int, error) { return 1, nil },
		func() (int, error) { return 2, nil },
	)
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, context.Canceled)
		}
	}
}

func TestMapConcurrent(t *testing.T) {
	out, errs := MapConcurrent(context.Background(), 2, []string{"a", "bb", "", "dddd"},
		func(_ context.Context, s string) (int, error) {
			if s == "" {
				return 0, errors.New("empty")
			}
			return len(s), nil
		})

	assert.Equal(t, []int{1, 2, 0, 4}, out)
	assert.NoError(t, errs[0])
	assert.Error(t, errs[2])
}

func TestBackgroundQueue(t *testing.T) {
	q := NewBackgroundQueue(16, 2, time.Second, nil)

	var ran int32
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Submit(Task{Name: "count", Run: func(ctx context.Context) error {
			atomic.AddInt32(&ran, 1)
			return nil
		}}))
	}
	require.NoError(t, q.Submit(Task{Name: "fails", Run: func(ctx context.Context) error {
		return errors.New("store unavailable")
	}}))
	require.NoError(t, q.Submit(Task{Name: "panics", Run: func(ctx context.Context) error {
		panic("boom")
	}}))
	require.NoError(t, q.Submit(Task{Name: "after panic", Run: func(ctx context.Context) error {
		atomic.AddInt32(&ran, 1)
		return nil
	}}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, q.Close(ctx))
	assert.Equal(t, int32(6), atomic.LoadInt32(&ran))

	assert.ErrorIs(t, q.Submit(Task{Name: "late", Run: func(context.Context) error { return nil }}), ErrQueueClosed)
	assert.NoError(t, q.Close(ctx))
}

func TestBackgroundQueueFull(t *testing.T) {
	q := NewBackgroundQueue(1, 1, time.Second, nil)
	release := make(chan struct{})
	started := make(chan struct{})

	require.NoError(t, q.Submit(Task{Name: "blocker", Run: func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}}))
	<-started
	require.NoError(t, q.Submit(Task{Name: "buffered", Run: func(ctx context.Context) error { return nil }}))
	assert.ErrorIs(t, q.Submit(Task{Name: "dropped", Run: func(ctx context.Context) error { return nil }}), ErrQueueFull)

	close(release)
	require.NoError(t, q.Close(context.Background()))
}

func TestBackgroundQueueCloseDeadline(t *testing.T) {
	q := NewBackgroundQueue(1, 1, time.Minute, nil)
	release := make(chan struct{})
	defer close(release)
	require.NoError(t, q.Submit(Task{Name: "slow", Run: func(ctx context.Context) error {
		<-release
		return nil
	}}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Close(ctx), context.DeadlineExceeded)
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"scaled", []float32{1, 1}, []float32{3, 3}, 1},
		{"45 degrees", []float32{1, 0}, []float32{1, 1}, 1 / math.Sqrt2},
		{"length mismatch", []float32{1, 2}, []float32{1}, 0},
		{"empty", nil, nil, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-6)
		})
	}
}
