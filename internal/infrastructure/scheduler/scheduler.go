package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is a unit of work run by a pool worker
type Task func(ctx context.Context)

// PoolConfig holds worker pool configuration
type PoolConfig struct {
	Name        string
	Workers     int
	QueueSize   int
	TaskTimeout time.Duration // zero means no per-task deadline
}

// Validate checks the configuration
func (c PoolConfig) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("%w: pool %q needs at least one worker", ErrInvalidConfig, c.Name)
	}
	if c.QueueSize < 0 {
		return fmt.Errorf("%w: pool %q queue size cannot be negative", ErrInvalidConfig, c.Name)
	}
	return nil
}

// WorkerPool runs submitted tasks on a fixed number of goroutines
type WorkerPool struct {
	config PoolConfig
	logger *zap.Logger

	tasks     chan Task
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewWorkerPool creates a stopped pool
func NewWorkerPool(config PoolConfig, logger *zap.Logger) (*WorkerPool, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkerPool{
		config: config,
		logger: logger.With(zap.String("pool", config.Name)),
	}, nil
}

// Name returns the pool name
func (p *WorkerPool) Name() string {
	return p.config.Name
}

// IsRunning reports whether the pool accepts tasks
func (p *WorkerPool) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isRunning
}

// Start starts the workers. Starting a running pool is a no-op.
func (p *WorkerPool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.isRunning {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.tasks = make(chan Task, p.config.QueueSize)
	p.isRunning = true

	for i := 0; i < p.config.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, p.tasks, i)
	}

	p.logger.Info("Worker pool started",
		zap.Int("workers", p.config.Workers),
		zap.Int("queue_size", p.config.QueueSize),
	)
	return nil
}

// Stop stops accepting tasks and waits for queued ones to finish.
// When ctx expires first, running tasks are cancelled and ctx.Err() is returned.
func (p *WorkerPool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.isRunning {
		p.mu.Unlock()
		return nil
	}
	p.isRunning = false
	close(p.tasks)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		p.logger.Info("Worker pool stopped gracefully")
		return nil
	case <-ctx.Done():
		p.cancel()
		p.logger.Warn("Worker pool stop timed out, cancelling running tasks")
		return ctx.Err()
	}
}

// Submit queues a task without blocking
func (p *WorkerPool) Submit(task Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.isRunning {
		return ErrPoolNotRunning
	}

	select {
	case p.tasks <- task:
		return nil
	default:
		p.logger.Warn("Worker pool queue full, rejecting task")
		return ErrPoolQueueFull
	}
}

func (p *WorkerPool) worker(ctx context.Context, tasks <-chan Task, workerID int) {
	defer p.wg.Done()
	p.logger.Debug("Worker started", zap.Int("worker_id", workerID))

	for task := range tasks {
		p.run(ctx, task, workerID)
	}
	p.logger.Debug("Worker stopping", zap.Int("worker_id", workerID))
}

func (p *WorkerPool) run(ctx context.Context, task Task, workerID int) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Task panicked",
				zap.Int("worker_id", workerID),
				zap.Any("panic", r),
			)
		}
	}()

	if p.config.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.TaskTimeout)
		defer cancel()
	}
	task(ctx)
}
