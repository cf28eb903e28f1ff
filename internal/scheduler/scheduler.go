package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ecoaire/crac-forecast/internal/events"
	"github.com/ecoaire/crac-forecast/internal/logger"
)

var (
	// ErrTaskNotFound is returned when cancelling a name that was never
	// scheduled or has already been removed.
	ErrTaskNotFound = errors.New("scheduled task not found")

	// ErrTaskTimeout is returned when a cancelled task's goroutine does not
	// stop within the cancel wait.
	ErrTaskTimeout = errors.New("task did not stop in time")
)

// TaskFunc is a periodic task body. It must honor ctx cancellation.
type TaskFunc func(ctx context.Context) error

// TaskStatus is the externally visible state of one scheduled task.
type TaskStatus struct {
	Name            string     `json:"name"`
	IntervalMinutes int        `json:"interval_minutes"`
	Running         bool       `json:"running"`
	LastRun         *time.Time `json:"last_run,omitempty"`
	LastError       string     `json:"last_error,omitempty"`
	NextRun         *time.Time `json:"next_run,omitempty"`
	RunCount        int        `json:"run_count"`
}

type task struct {
	name     string
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}

	mu       sync.Mutex
	lastRun  *time.Time
	lastErr  error
	nextRun  *time.Time
	runCount int
}

// Scheduler runs named periodic tasks. The first execution of each task is
// aligned to the next wall-clock hour boundary; later executions repeat at
// the task's interval. Each task runs on its own goroutine and never
// overlaps with itself.
type Scheduler struct {
	mu         sync.Mutex
	tasks      map[string]*task
	publisher  *events.Publisher
	cancelWait time.Duration
	now        func() time.Time
}

func New(publisher *events.Publisher, cancelWait time.Duration) *Scheduler {
	if cancelWait <= 0 {
		cancelWait = 5 * time.Second
	}
	return &Scheduler{
		tasks:      make(map[string]*task),
		publisher:  publisher,
		cancelWait: cancelWait,
		now:        time.Now,
	}
}

// SetClock overrides the scheduler's notion of "now"; tests only.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.now = now
}

// Schedule registers fn under name. Re-registering an existing name cancels
// the old task before starting the new one. When runImmediately is set the
// task executes once right away, before the hour-aligned wait.
func (s *Scheduler) Schedule(name string, fn TaskFunc, intervalMinutes int, runImmediately bool) error {
	if intervalMinutes <= 0 {
		return fmt.Errorf("interval must be positive, got %d", intervalMinutes)
	}

	s.mu.Lock()
	if old, ok := s.tasks[name]; ok {
		s.mu.Unlock()
		logger.WithTask(name).Warn("Task already scheduled, replacing")
		s.stopTask(old)
		s.mu.Lock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &task{
		name:     name,
		interval: time.Duration(intervalMinutes) * time.Minute,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	s.tasks[name] = t
	s.mu.Unlock()

	go s.run(ctx, t, fn, runImmediately)

	s.publisher.TaskScheduled(name, intervalMinutes)
	logger.WithTask(name).Infof("Task scheduled every %d minutes", intervalMinutes)
	return nil
}

func (s *Scheduler) run(ctx context.Context, t *task, fn TaskFunc, runImmediately bool) {
	defer close(t.done)

	if runImmediately {
		s.execute(ctx, t, fn)
	}

	firstWait := s.untilNextHour()
	t.setNextRun(s.now().Add(firstWait))
	logger.WithTask(t.name).Infof("First run in %.1f minutes", firstWait.Minutes())

	timer := time.NewTimer(firstWait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}
	s.execute(ctx, t, fn)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.setNextRun(s.now().Add(t.interval))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.execute(ctx, t, fn)
			t.setNextRun(s.now().Add(t.interval))
		}
	}
}

// untilNextHour returns the wait until the next wall-clock hour boundary.
// At an exact boundary the full hour is returned, never zero.
func (s *Scheduler) untilNextHour() time.Duration {
	now := s.now()
	next := now.Truncate(time.Hour).Add(time.Hour)
	return next.Sub(now)
}

// execute runs one task iteration. A panic in the task body is recovered and
// recorded as the run's error so the schedule keeps going.
func (s *Scheduler) execute(ctx context.Context, t *task, fn TaskFunc) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("task panicked: %v", r)
			t.finishRun(s.now(), err)
			logger.WithTask(t.name).WithError(err).Error("Task run panicked")
		}
	}()

	started := s.now()
	err := fn(ctx)
	t.finishRun(started, err)

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.WithTask(t.name).WithError(err).Error("Task run failed")
	}
}

// Cancel stops the named task and waits up to the cancel wait for its
// goroutine to exit.
func (s *Scheduler) Cancel(name string) error {
	s.mu.Lock()
	t, ok := s.tasks[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTaskNotFound, name)
	}
	delete(s.tasks, name)
	s.mu.Unlock()

	if err := s.stopTask(t); err != nil {
		return err
	}

	s.publisher.TaskCancelled(name)
	logger.WithTask(name).Info("Task cancelled")
	return nil
}

func (s *Scheduler) stopTask(t *task) error {
	s.mu.Lock()
	if cur, ok := s.tasks[t.name]; ok && cur == t {
		delete(s.tasks, t.name)
	}
	s.mu.Unlock()

	t.cancel()
	select {
	case <-t.done:
		return nil
	case <-time.After(s.cancelWait):
		return fmt.Errorf("%w: %s", ErrTaskTimeout, t.name)
	}
}

// StopAll cancels every task and waits for each to stop.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	tasks := make([]*task, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, t)
	}
	s.tasks = make(map[string]*task)
	s.mu.Unlock()

	for _, t := range tasks {
		if err := s.stopTask(t); err != nil {
			logger.WithTask(t.name).WithError(err).Warn("Task did not stop cleanly")
		}
	}
	logger.Info("All scheduled tasks stopped")
}

// Status reports the state of one task.
func (s *Scheduler) Status(name string) (TaskStatus, error) {
	s.mu.Lock()
	t, ok := s.tasks[name]
	s.mu.Unlock()

	if !ok {
		return TaskStatus{}, fmt.Errorf("%w: %s", ErrTaskNotFound, name)
	}
	return t.status(), nil
}

// StatusAll reports the state of every registered task.
func (s *Scheduler) StatusAll() []TaskStatus {
	s.mu.Lock()
	tasks := make([]*task, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, t)
	}
	s.mu.Unlock()

	statuses := make([]TaskStatus, 0, len(tasks))
	for _, t := range tasks {
		statuses = append(statuses, t.status())
	}
	return statuses
}

func (t *task) setNextRun(at time.Time) {
	t.mu.Lock()
	t.nextRun = &at
	t.mu.Unlock()
}

func (t *task) finishRun(started time.Time, err error) {
	t.mu.Lock()
	t.lastRun = &started
	t.lastErr = err
	t.runCount++
	t.mu.Unlock()
}

func (t *task) status() TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	status := TaskStatus{
		Name:            t.name,
		IntervalMinutes: int(t.interval / time.Minute),
		Running:         true,
		LastRun:         t.lastRun,
		NextRun:         t.nextRun,
		RunCount:        t.runCount,
	}
	if t.lastErr != nil {
		status.LastError = t.lastErr.Error()
	}
	return status
}
