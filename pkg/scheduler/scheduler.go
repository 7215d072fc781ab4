// Package scheduler wakes waiting workflows: a timer per workflow fires at
// its wait deadline and a cron job sweeps all workflows as a backstop.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/cleanup/pkg/log"
	"github.com/dukex/cleanup/pkg/services"
	"github.com/robfig/cron/v3"
)

// DefaultSweepSpec runs the sweep once a minute.
const DefaultSweepSpec = "@every 1m"

// ErrNotStarted is returned by Stop on a scheduler that was never started.
var ErrNotStarted = errors.New("scheduler not started")

// Waker is the host side of the scheduler.
type Waker interface {
	Wake(ctx context.Context, id string) (bool, error)
	Sweep(ctx context.Context) (int, error)
}

type timer struct {
	*time.Timer

	generation uint64
}

// Scheduler implements services.Timers on top of in-process timers.
type Scheduler struct {
	waker     Waker
	sweepSpec string
	logger    *slog.Logger

	mu         sync.Mutex
	timers     map[string]timer
	generation uint64
	ctx        context.Context
	cancel     context.CancelFunc
	cron       *cron.Cron
}

var _ services.Timers = (*Scheduler)(nil)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithSweepSpec sets the cron spec of the sweep job.
func WithSweepSpec(spec string) Option {
	return func(s *Scheduler) {
		s.sweepSpec = spec
	}
}

// WithLogger replaces the scheduler logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// New creates a scheduler waking workflows through waker.
func New(waker Waker, opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		waker:     waker,
		sweepSpec: DefaultSweepSpec,
		logger:    log.WithModule("scheduler"),
		timers:    make(map[string]timer),
		ctx:       context.Background(),
	}

	for _, opt := range opts {
		opt(s)
	}

	_, err := cron.ParseStandard(s.sweepSpec)
	if err != nil {
		return nil, fmt.Errorf("invalid sweep spec %q: %w", s.sweepSpec, err)
	}

	return s, nil
}

// Start runs a first sweep and schedules the next ones. Timers fired before
// Start use a background context.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return nil
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	cronLogger := cron.PrintfLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn))
	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cronLogger),
		cron.Recover(cronLogger),
	))

	_, err := s.cron.AddFunc(s.sweepSpec, s.sweep)
	if err != nil {
		s.cancel()
		s.cron = nil

		return fmt.Errorf("failed to add sweep job: %w", err)
	}

	s.cron.Start()
	s.logger.InfoContext(ctx, "Scheduler started", "sweep", s.sweepSpec)

	go s.sweep()

	return nil
}

// Stop halts the sweep job and every pending timer, waiting for a running
// sweep to return.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()

	if s.cron == nil {
		s.mu.Unlock()

		return ErrNotStarted
	}

	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}

	stopped := s.cron.Stop()
	s.cron = nil
	s.cancel()
	s.mu.Unlock()

	select {
	case <-stopped.Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Scheduler stopped")

	return nil
}

// Schedule arms the wake-up of id at at, replacing any earlier one.
func (s *Scheduler) Schedule(id string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.timers[id]; ok {
		existing.Stop()
	}

	s.generation++
	generation := s.generation

	s.timers[id] = timer{
		Timer:      time.AfterFunc(max(time.Until(at), 0), func() { s.fire(id, generation) }),
		generation: generation,
	}

	s.logger.Debug("Wake scheduled", "workflow_id", id, "at", at)
}

// Cancel disarms the wake-up of id.
func (s *Scheduler) Cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.timers[id]; ok {
		existing.Stop()
		delete(s.timers, id)
	}
}

// Pending reports how many wake-ups are armed.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.timers)
}

func (s *Scheduler) fire(id string, generation uint64) {
	s.mu.Lock()

	current, ok := s.timers[id]
	if !ok || current.generation != generation {
		s.mu.Unlock()

		return
	}

	delete(s.timers, id)
	ctx := s.ctx
	s.mu.Unlock()

	woken, err := s.waker.Wake(ctx, id)

	switch {
	case err != nil && (services.IsNotFound(err) || services.IsInvalidState(err)):
		s.logger.DebugContext(ctx, "Wake skipped", "workflow_id", id, "reason", err)
	case err != nil:
		s.logger.ErrorContext(ctx, "Failed to wake workflow", "workflow_id", id, "error", err)
	case woken:
		s.logger.InfoContext(ctx, "Workflow woken", "workflow_id", id)
	}
}

func (s *Scheduler) sweep() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	woken, err := s.waker.Sweep(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Sweep finished with errors", "woken", woken, "error", err)

		return
	}

	if woken > 0 {
		s.logger.InfoContext(ctx, "Sweep woke workflows", "woken", woken)
	}
}
