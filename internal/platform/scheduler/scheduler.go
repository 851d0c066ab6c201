// Package scheduler runs named background jobs on cron schedules.
//
// Each job runs at most once at a time: a firing that lands while the
// previous run of the same job is still busy is skipped, not queued.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is the unit of work a schedule triggers.
type Job func(ctx context.Context) error

type entry struct {
	name string
	spec string
	job  Job
	id   cron.EntryID
}

// Scheduler wraps a cron runner with a shared context and zerolog output.
type Scheduler struct {
	cron    *cron.Cron
	log     zerolog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	entries map[string]*entry
}

// New builds a scheduler evaluating cron specs in loc.
func New(loc *time.Location, log zerolog.Logger) *Scheduler {
	cl := cronLogger{log: log.With().Str("component", "scheduler").Logger()}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		log:     cl.log,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]*entry),
	}
}

// ParseSpec checks a standard five-field cron expression.
func ParseSpec(spec string) error {
	_, err := cron.ParseStandard(spec)
	return err
}

// Add registers job under name. Names are unique.
func (s *Scheduler) Add(name, spec string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[name]; ok {
		return fmt.Errorf("job %q already registered", name)
	}
	e := &entry{name: name, spec: spec, job: job}
	id, err := s.cron.AddFunc(spec, func() { s.run(s.ctx, e) })
	if err != nil {
		return fmt.Errorf("schedule %q: %w", name, err)
	}
	e.id = id
	s.entries[name] = e
	return nil
}

func (s *Scheduler) run(ctx context.Context, e *entry) error {
	start := time.Now()
	err := e.job(ctx)
	evt := s.log.Info()
	if err != nil {
		evt = s.log.Error().Err(err)
	}
	evt.Str("job", e.name).Dur("duration", time.Since(start)).Msg("job finished")
	return err
}

// RunNow executes the named job synchronously, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	e, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %q not registered", name)
	}
	return s.run(ctx, e)
}

// Next returns the next planned run of the named job.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	e, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(e.id).Next, true
}

func (s *Scheduler) Start() {
	s.log.Info().Int("jobs", len(s.entries)).Msg("scheduler started")
	s.cron.Start()
}

// Stop halts new firings, cancels running jobs' context and waits for them
// to return or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
		s.log.Info().Msg("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger bridges cron's logr-style interface to zerolog.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
