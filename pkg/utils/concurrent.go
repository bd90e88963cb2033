package utils

import (
	"context"
	"sync"
)

// ExecuteWithResults runs functions concurrently and returns their results in
// call order. At most maxConcurrency functions run at once; a non-positive
// value starts them all immediately. Panics are recovered into PanicError.
func ExecuteWithResults[T any](ctx context.Context, maxConcurrency int, functions ...func() (T, error)) ([]T, []error) {
	if len(functions) == 0 {
		return nil, nil
	}
	if maxConcurrency <= 0 || maxConcurrency > len(functions) {
		maxConcurrency = len(functions)
	}

	semaphore := make(chan struct{}, maxConcurrency)
	results := make([]T, len(functions))
	errs := make([]error, len(functions))
	var wg sync.WaitGroup

	for i, fn := range functions {
		wg.Add(1)
		go func(index int, function func() (T, error)) {
			defer wg.Done()
			defer OnPanic(func(p *PanicError) {
				errs[index] = p
			})

			// Acquire semaphore
			select {
			case semaphore <- struct{}{}:
				defer func() { <-semaphore }()
			case <-ctx.Done():
				errs[index] = ctx.Err()
				return
			}

			results[index], errs[index] = function()
		}(i, fn)
	}

	wg.Wait()
	return results, errs
}

// MapConcurrent applies fn to every item with ExecuteWithResults.
func MapConcurrent[T any, R any](ctx context.Context, maxConcurrency int, items []T, fn func(ctx context.Context, item T) (R, error)) ([]R, []error) {
	functions := make([]func() (R, error), len(items))
	for i, item := range items {
		item := item
		functions[i] = func() (R, error) {
			return fn(ctx, item)
		}
	}
	return ExecuteWithResults(ctx, maxConcurrency, functions...)
}
