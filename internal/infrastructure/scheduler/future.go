package scheduler

import (
	"context"
	"fmt"
)

// Future is the eventual result of a task submitted with SubmitValue
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func (f *Future[T]) complete(value T, err error) {
	f.value = value
	f.err = err
	close(f.done)
}

// Done is closed once the result is available
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the task finished or ctx is done
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Completed returns a future that already holds value and err
func Completed[T any](value T, err error) *Future[T] {
	f := newFuture[T]()
	f.complete(value, err)
	return f
}

// SubmitValue runs fn on the pool and returns its future.
// If the pool rejects the task the future fails immediately with the pool error.
func SubmitValue[T any](pool *WorkerPool, fn func(ctx context.Context) (T, error)) *Future[T] {
	f := newFuture[T]()
	err := pool.Submit(func(ctx context.Context) {
		var (
			value T
			err   error
		)
		defer func() {
			if r := recover(); r != nil {
				var zero T
				f.complete(zero, fmt.Errorf("%w: %v", ErrTaskPanicked, r))
				return
			}
			f.complete(value, err)
		}()
		value, err = fn(ctx)
	})
	if err != nil {
		var zero T
		f.complete(zero, err)
	}
	return f
}
