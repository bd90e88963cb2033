package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapturePanic(t *testing.T) {
	sentinel := errors.New("returned")
	tests := []struct {
		name    string
		body    func() error
		wantErr error
		panics  bool
	}{
		{"no panic, nil result", func() error { return nil }, nil, false},
		{"no panic, error kept", func() error { return sentinel }, sentinel, false},
		{"string panic", func() error { panic("index out of range") }, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call := func() (err error) {
				defer CapturePanic(&err)
				return tt.body()
			}
			err := call()
			if !tt.panics {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			var p *PanicError
			require.ErrorAs(t, err, &p)
			assert.Equal(t, "index out of range", p.Value)
			assert.NotEmpty(t, p.Stack)
			assert.Equal(t, "recovered panic: index out of range", err.Error())
		})
	}
}

func TestPanicErrorUnwrap(t *testing.T) {
	cause := errors.New("assignment to entry in nil map")
	assert.ErrorIs(t, &PanicError{Value: cause}, cause)
	assert.Nil(t, (&PanicError{Value: 7}).Unwrap())
}

func TestOnPanic(t *testing.T) {
	var got *PanicError
	func() {
		defer OnPanic(func(p *PanicError) { got = p })
		panic("reranker exploded")
	}()
	require.NotNil(t, got)
	assert.Equal(t, "reranker exploded", got.Value)

	assert.NotPanics(t, func() {
		defer OnPanic(nil)
		panic("swallowed")
	})
}

func TestGo(t *testing.T) {
	done := make(chan struct{})
	Go(func() { close(done) }, nil)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("goroutine did not run")
	}

	panics := make(chan *PanicError, 1)
	Go(func() { panic("listener failed") }, func(p *PanicError) { panics <- p })
	select {
	case p := <-panics:
		assert.Equal(t, "listener failed", p.Value)
	case <-time.After(time.Second):
		t.Fatal("panic handler was not called")
	}
}

func TestExecuteWithResultsRecoversPanics(t *testing.T) {
	functions := make([]func() (int, error), 6)
	for i := range functions {
		i := i
		functions[i] = func() (int, error) {
			if i%3 == 0 {
				panic("retriever panic")
			}
			return i * 10, nil
		}
	}

	results, errs := ExecuteWithResults(context.Background(), 2, functions...)
	for i := range functions {
		if i%3 == 0 {
			var p *PanicError
			assert.ErrorAs(t, errs[i], &p, "slot %d", i)
			continue
		}
		assert.NoError(t, errs[i])
		assert.Equal(t, i*10, results[i])
	}
}
