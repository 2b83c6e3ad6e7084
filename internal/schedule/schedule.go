// Package schedule opens physical counts on cron schedules.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/roach88/bakehouse/internal/access"
	"github.com/roach88/bakehouse/internal/config"
	"github.com/roach88/bakehouse/internal/ledger"
	"github.com/roach88/bakehouse/internal/reconcile"
)

// Run outcomes passed to the recorder.
const (
	OutcomeOpened  = "opened"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Opener opens a count unless one is already active at the location.
type Opener interface {
	OpenFor(ctx context.Context, actor access.Actor, locationID, note string) (reconcile.Session, bool, error)
}

// LocationResolver turns a configured location name or ID into a location.
type LocationResolver interface {
	ResolveLocation(ctx context.Context, actor access.Actor, ref string) (ledger.Location, error)
}

// Scheduler runs configured count schedules as the system actor.
type Scheduler struct {
	counts    Opener
	locations LocationResolver
	log       *zap.Logger
	record    func(outcome string)
	loc       *time.Location

	mu   sync.Mutex
	jobs []config.Schedule
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithRecorder reports every run outcome, typically to metrics.
func WithRecorder(fn func(outcome string)) Option {
	return func(s *Scheduler) {
		s.record = fn
	}
}

// WithLocation sets the time zone cron expressions are evaluated in. Default UTC.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		s.loc = loc
	}
}

// New creates a scheduler with no jobs.
func New(counts Opener, locations LocationResolver, log *zap.Logger, opts ...Option) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Scheduler{
		counts:    counts,
		locations: locations,
		log:       log.Named("schedule"),
		record:    func(string) {},
		loc:       time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add validates and registers jobs. Jobs added after Run starts are ignored
// until the next Run.
func (s *Scheduler) Add(jobs ...config.Schedule) error {
	for _, j := range jobs {
		if _, err := cron.ParseStandard(j.Cron); err != nil {
			return fmt.Errorf("schedule %s/%s: %w", j.Tenant, j.Location, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, jobs...)
	return nil
}

// Len returns the number of registered jobs.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Run starts the cron loop and blocks until ctx is done, then waits for
// running jobs to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	logger := cronLogger{s.log.Sugar()}
	c := cron.New(
		cron.WithLocation(s.loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	s.mu.Lock()
	for _, j := range s.jobs {
		if _, err := c.AddFunc(j.Cron, func() { s.Trigger(ctx, j) }); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("schedule %s/%s: %w", j.Tenant, j.Location, err)
		}
	}
	n := len(s.jobs)
	s.mu.Unlock()

	s.log.Info("scheduler started", zap.Int("jobs", n))
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	s.log.Info("scheduler stopped")
	return nil
}

// Trigger runs one job now and returns its outcome.
func (s *Scheduler) Trigger(ctx context.Context, j config.Schedule) string {
	actor := access.SystemActor(j.Tenant)
	fields := []zap.Field{zap.String("tenant", j.Tenant), zap.String("location", j.Location)}

	outcome := OutcomeFailed
	defer func() { s.record(outcome) }()

	loc, err := s.locations.ResolveLocation(ctx, actor, j.Location)
	if err != nil {
		s.log.Error("scheduled count: resolve location", append(fields, zap.Error(err))...)
		return outcome
	}

	note := j.Note
	if note == "" {
		note = "scheduled count"
	}
	sess, ok, err := s.counts.OpenFor(ctx, actor, loc.ID, note)
	switch {
	case err != nil:
		s.log.Error("scheduled count failed", append(fields, zap.Error(err))...)
	case !ok:
		outcome = OutcomeSkipped
		s.log.Info("scheduled count skipped: count already in progress", fields...)
	default:
		outcome = OutcomeOpened
		s.log.Info("scheduled count opened", append(fields, zap.String("session", sess.ID))...)
	}
	return outcome
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
