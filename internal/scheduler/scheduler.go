// Package scheduler runs the periodic automation sweep: every-time-period
// rules, when-date-arrives rules and delayed actions.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/starford/flexiboard/internal/apperr"
	"github.com/starford/flexiboard/internal/metrics"
)

// Automations is the part of the board service the sweep drives.
type Automations interface {
	BoardIDs() ([]string, error)
	FireScheduled(ctx context.Context, boardID string, now time.Time) (int, error)
	FireDateArrivals(ctx context.Context, boardID string, now time.Time) (int, error)
	RunDueDeferred(ctx context.Context, now time.Time) (int, error)
}

// Report summarises one sweep.
type Report struct {
	Boards       int `json:"boards"`
	Scheduled    int `json:"scheduled"`
	DateArrivals int `json:"date_arrivals"`
	Deferred     int `json:"deferred"`
	Errors       int `json:"errors"`
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the scheduler logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithMetrics records sweep durations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// Scheduler sweeps all boards on a fixed interval.
type Scheduler struct {
	svc      Automations
	interval time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// New returns a scheduler sweeping every interval.
func New(svc Automations, interval time.Duration, opts ...Option) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	s := &Scheduler{
		svc:      svc,
		interval: interval,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Sweep runs one pass over every board and the deferred queue. Failures on
// one board are logged and do not stop the others.
func (s *Scheduler) Sweep(ctx context.Context) Report {
	start := time.Now()
	now := s.now()
	var rep Report

	ids, err := s.svc.BoardIDs()
	if err != nil {
		s.logger.Error("scheduler: list boards failed", slog.String("error", err.Error()))
		rep.Errors++
	}
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		rep.Boards++
		n, err := s.svc.FireScheduled(ctx, id, now)
		rep.Scheduled += n
		if s.failed(id, "scheduled", err) {
			rep.Errors++
		}
		n, err = s.svc.FireDateArrivals(ctx, id, now)
		rep.DateArrivals += n
		if s.failed(id, "date arrivals", err) {
			rep.Errors++
		}
	}

	n, err := s.svc.RunDueDeferred(ctx, now)
	rep.Deferred = n
	if s.failed("", "deferred", err) {
		rep.Errors++
	}

	if s.metrics != nil {
		s.metrics.RecordSweep(time.Since(start))
	}
	if rep.Scheduled+rep.DateArrivals+rep.Deferred > 0 || rep.Errors > 0 {
		s.logger.Info("scheduler: sweep done",
			slog.Int("boards", rep.Boards),
			slog.Int("scheduled", rep.Scheduled),
			slog.Int("date_arrivals", rep.DateArrivals),
			slog.Int("deferred", rep.Deferred),
			slog.Int("errors", rep.Errors),
			slog.Duration("took", time.Since(start)))
	}
	return rep
}

// failed logs err and reports whether it counts as a failure. A board
// deleted mid-sweep does not.
func (s *Scheduler) failed(boardID, stage string, err error) bool {
	if err == nil || errors.Is(err, apperr.ErrNotFound) {
		return false
	}
	s.logger.Warn("scheduler: "+stage+" failed",
		slog.String("board_id", boardID),
		slog.String("error", err.Error()))
	return true
}

// Run sweeps on the interval until ctx is cancelled. Overlapping sweeps are
// skipped and a panicking sweep is recovered.
func (s *Scheduler) Run(ctx context.Context) error {
	l := cronLogger{s.logger}
	c := cron.New(
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
	)
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", s.interval), func() { s.Sweep(ctx) }); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	s.logger.Info("scheduler: started", slog.Duration("interval", s.interval))
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info("scheduler: stopped")
	return nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("scheduler: cron "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("scheduler: cron "+msg, append([]any{slog.String("error", err.Error())}, keysAndValues...)...)
}
