// Package scheduler runs the periodic thumbnail repair sweep on a cron
// schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// SweepFunc is the job the scheduler runs; it returns a short summary
// string for logging.
type SweepFunc func(ctx context.Context) (string, error)

// Scheduler runs one repair job on a cron schedule. Overlapping runs
// are suppressed: a tick that arrives while a sweep is still in flight
// is dropped.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
	sweep  SweepFunc

	mu       sync.Mutex
	running  bool
	stopped  bool
	lastRun  time.Time
	lastErr  error
	schedule string
	entryID  cron.EntryID

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a scheduler for the given sweep function. Schedules use
// standard 5-field cron syntax.
func New(sweep SweepFunc) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(),
		logger: slog.Default(),
		sweep:  sweep,
		ctx:    ctx,
		cancel: cancel,
	}
}

// WithLogger sets the logger for the scheduler.
func (s *Scheduler) WithLogger(logger *slog.Logger) *Scheduler {
	s.logger = logger
	return s
}

// Schedule registers (or replaces) the cron expression for the sweep.
// Returns an error if the expression is invalid.
func (s *Scheduler) Schedule(cronExpr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule != "" {
		s.cron.Remove(s.entryID)
	}

	entryID, err := s.cron.AddFunc(cronExpr, func() {
		s.mu.Lock()
		if s.stopped || s.running {
			s.mu.Unlock()
			return
		}
		s.running = true
		s.wg.Add(1)
		s.mu.Unlock()
		s.runSweep()
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}

	s.entryID = entryID
	s.schedule = cronExpr
	s.logger.Info("scheduled thumbnail repair",
		"schedule", cronExpr,
		"next_run", s.cron.Entry(entryID).Next)
	return nil
}

// Start begins executing the scheduled job.
func (s *Scheduler) Start() {
	s.mu.Lock()
	s.stopped = false
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("scheduler started")
}

// Stop gracefully stops the scheduler, cancels an in-flight sweep, and
// returns a context that is done when all work completes.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("scheduler stopping")

	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	cronCtx := s.cron.Stop()
	s.cancel()

	done := make(chan struct{})
	go func() {
		<-cronCtx.Done()
		s.wg.Wait()
		close(done)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-done
		cancel()
	}()
	return ctx
}

// Status reports the last run outcome and the next scheduled run.
type Status struct {
	Schedule string
	Running  bool
	LastRun  time.Time
	LastErr  error
	NextRun  time.Time
}

// Status returns a snapshot of the scheduler state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Schedule: s.schedule,
		Running:  s.running,
		LastRun:  s.lastRun,
		LastErr:  s.lastErr,
	}
	if s.schedule != "" {
		st.NextRun = s.cron.Entry(s.entryID).Next
	}
	return st
}

// TriggerNow runs the sweep immediately unless one is already in
// flight.
func (s *Scheduler) TriggerNow() bool {
	s.mu.Lock()
	if s.stopped || s.running {
		s.mu.Unlock()
		return false
	}
	s.running = true
	s.wg.Add(1)
	s.mu.Unlock()

	go s.runSweep()
	return true
}

// runSweep executes the sweep. The caller must have set running and
// called wg.Add(1).
func (s *Scheduler) runSweep() {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	start := time.Now()
	summary, err := s.sweep(s.ctx)

	s.mu.Lock()
	s.lastRun = start
	s.lastErr = err
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("thumbnail repair failed", "error", err, "elapsed", time.Since(start))
		return
	}
	s.logger.Info("thumbnail repair completed", "summary", summary, "elapsed", time.Since(start))
}
