package utils

import (
	"fmt"
	"runtime/debug"
)

// PanicError is a recovered panic. Stack is captured at the point of
// recovery.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("recovered panic: %v", e.Value)
}

// Unwrap returns the panic value when it was an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// CapturePanic converts a panic into *errPtr. Defer it first thing in a
// function with a named error result:
//
//	func call() (err error) {
//		defer utils.CapturePanic(&err)
//		...
//	}
func CapturePanic(errPtr *error) {
	if r := recover(); r != nil {
		*errPtr = &PanicError{Value: r, Stack: debug.Stack()}
	}
}

// OnPanic recovers a panic and hands it to handler. A nil handler swallows it.
func OnPanic(handler func(*PanicError)) {
	if r := recover(); r != nil && handler != nil {
		handler(&PanicError{Value: r, Stack: debug.Stack()})
	}
}

// Go starts fn in a goroutine whose panics are passed to onPanic instead of
// crashing the process.
func Go(fn func(), onPanic func(*PanicError)) {
	go func() {
		defer OnPanic(onPanic)
		fn()
	}()
}
