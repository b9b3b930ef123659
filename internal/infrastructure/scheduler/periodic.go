package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PeriodicTask runs at a fixed rate after an initial delay
type PeriodicTask struct {
	Name         string
	InitialDelay time.Duration
	Interval     time.Duration
	Run          func(ctx context.Context)
}

// PeriodicScheduler dispatches periodic tasks onto a worker pool
type PeriodicScheduler struct {
	pool   *WorkerPool
	logger *zap.Logger

	tasks     []PeriodicTask
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewPeriodicScheduler creates a scheduler that runs its tasks on pool
func NewPeriodicScheduler(pool *WorkerPool, logger *zap.Logger) *PeriodicScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PeriodicScheduler{
		pool:   pool,
		logger: logger,
	}
}

// Schedule registers a task. Tasks must be registered before Start.
func (s *PeriodicScheduler) Schedule(task PeriodicTask) error {
	if task.Interval <= 0 || task.Run == nil {
		return fmt.Errorf("%w: periodic task %q needs an interval and a function", ErrInvalidConfig, task.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return fmt.Errorf("%w: cannot schedule %q on a running scheduler", ErrInvalidConfig, task.Name)
	}
	s.tasks = append(s.tasks, task)
	return nil
}

// Start starts one timer loop per task
func (s *PeriodicScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	s.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	for _, task := range s.tasks {
		s.wg.Add(1)
		go s.runLoop(ctx, task)
	}

	s.logger.Info("Periodic scheduler started", zap.Int("tasks", len(s.tasks)))
	return nil
}

// Stop stops the timer loops; tasks already handed to the pool are left to the pool
func (s *PeriodicScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Periodic scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *PeriodicScheduler) runLoop(ctx context.Context, task PeriodicTask) {
	defer s.wg.Done()

	if task.InitialDelay > 0 {
		timer := time.NewTimer(task.InitialDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
	s.dispatch(task)

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.dispatch(task)
		}
	}
}

func (s *PeriodicScheduler) dispatch(task PeriodicTask) {
	if err := s.pool.Submit(task.Run); err != nil {
		s.logger.Warn("Skipping periodic task run",
			zap.String("task", task.Name),
			zap.Error(err),
		)
	}
}
