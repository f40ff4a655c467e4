package supervisor

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status represents the current state of a supervised task.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// ErrShutdownTimeout is returned by Shutdown when tasks do not unwind
// within the grace period.
var ErrShutdownTimeout = errors.New("supervisor: shutdown grace period exceeded")

// TaskFunc is the body of one supervised task. It must return promptly
// once ctx is cancelled.
type TaskFunc func(ctx context.Context) error

// Logger defines the logging interface for the supervisor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Supervisor runs named tasks as a group with shared cancellation.
//
// The first task failure cancels the group context; every other task is
// expected to observe the cancellation and unwind. Wait reports the
// first failure. An externally cancelled context (shutdown signal) ends
// every task with a cancellation, which Wait treats as a clean stop.
type Supervisor struct {
	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
	logger Logger

	mu    sync.RWMutex
	tasks []*task
}

// task tracks the lifecycle of one supervised goroutine.
type task struct {
	name       string
	status     Status
	err        error
	startedAt  time.Time
	finishedAt time.Time
}

// New creates a supervisor whose tasks share a context derived from ctx.
func New(ctx context.Context) *Supervisor {
	ctx, cancel := context.WithCancel(ctx)
	group, ctx := errgroup.WithContext(ctx)

	return &Supervisor{
		group:  group,
		ctx:    ctx,
		cancel: cancel,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the supervisor.
func (s *Supervisor) SetLogger(logger Logger) {
	s.logger = logger
}

// Go schedules fn as a named task and starts it immediately.
//
// Task names should be unique; they identify tasks in logs and stats.
func (s *Supervisor) Go(name string, fn TaskFunc) {
	t := &task{name: name, status: StatusScheduled}

	s.mu.Lock()
	s.tasks = append(s.tasks, t)
	s.mu.Unlock()

	s.group.Go(func() error {
		s.mu.Lock()
		t.status = StatusRunning
		t.startedAt = time.Now()
		s.mu.Unlock()

		s.logger.Debug("task started", "task", name)

		err := fn(s.ctx)

		s.mu.Lock()
		t.finishedAt = time.Now()
		t.err = err
		switch {
		case err == nil:
			t.status = StatusCompleted
		case errors.Is(err, context.Canceled):
			t.status = StatusCancelled
		default:
			t.status = StatusFailed
		}
		status := t.status
		s.mu.Unlock()

		switch status {
		case StatusCompleted:
			s.logger.Debug("task completed", "task", name)
		case StatusCancelled:
			s.logger.Debug("task cancelled", "task", name)
		default:
			s.logger.Error("task failed", "task", name, "error", err)
		}

		return err
	})
}

// Wait blocks until every task has returned.
//
// Returns:
//   - error: The first task failure, context.Canceled on an external
//     shutdown, or nil when every task completed on its own
func (s *Supervisor) Wait() error {
	return s.group.Wait()
}

// Shutdown cancels the group and waits for tasks to unwind.
//
// Parameters:
//   - grace: Maximum time to wait for tasks after cancellation
//
// Returns:
//   - error: ErrShutdownTimeout if tasks are still running after the
//     grace period, nil otherwise
func (s *Supervisor) Shutdown(grace time.Duration) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.group.Wait() //nolint:errcheck // Task errors were already reported via Wait
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("all tasks stopped")
		return nil
	case <-time.After(grace):
		s.logger.Error("tasks still running after grace period", "grace", grace)
		return ErrShutdownTimeout
	}
}

// TaskStats is a point-in-time snapshot of one task.
type TaskStats struct {
	Name   string        `json:"name"`
	Status Status        `json:"status"`
	Uptime time.Duration `json:"uptime,omitempty"`
	Error  string        `json:"error,omitempty"`
}

// Stats returns a snapshot of every task in registration order.
func (s *Supervisor) Stats() []TaskStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make([]TaskStats, 0, len(s.tasks))
	for _, t := range s.tasks {
		st := TaskStats{Name: t.name, Status: t.status}
		switch t.status {
		case StatusRunning:
			st.Uptime = time.Since(t.startedAt)
		case StatusCompleted, StatusCancelled, StatusFailed:
			st.Uptime = t.finishedAt.Sub(t.startedAt)
		}
		if t.err != nil && !errors.Is(t.err, context.Canceled) {
			st.Error = t.err.Error()
		}
		stats = append(stats, st)
	}
	return stats
}
