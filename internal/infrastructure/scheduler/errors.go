package scheduler

import "errors"

var (
	// ErrPoolNotRunning is returned when submitting to a pool that is not started or already stopped
	ErrPoolNotRunning = errors.New("worker pool is not running")

	// ErrPoolQueueFull is returned when the pool's queue has no free slot
	ErrPoolQueueFull = errors.New("worker pool queue is full")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrTaskPanicked is returned by a Future whose task panicked
	ErrTaskPanicked = errors.New("task panicked")
)
