package generation

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/clinic/slotengine/internal/domain/preference"
	"github.com/clinic/slotengine/internal/domain/slot"
	"github.com/clinic/slotengine/internal/platform/clock"
	"github.com/clinic/slotengine/internal/platform/db"
	"github.com/clinic/slotengine/internal/platform/validation"
)

// ErrTickInProgress is returned when a scheduled tick is triggered while
// another one is still running. The new trigger is dropped, not queued.
var ErrTickInProgress = errors.New("scheduled generation already running")

type Config struct {
	// Horizon is the furthest number of days ahead a request may generate.
	Horizon int
	// Concurrency bounds how many doctors one tick processes at once.
	Concurrency int
}

type Service struct {
	engine  *Engine
	prefs   *preference.Service
	repo    preference.Repository
	runner  db.Runner
	clock   clock.Clock
	loc     *time.Location
	cfg     Config
	log     zerolog.Logger
	ticking atomic.Bool
}

func NewService(engine *Engine, prefs *preference.Service, repo preference.Repository, runner db.Runner,
	c clock.Clock, loc *time.Location, cfg Config, log zerolog.Logger) *Service {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Service{
		engine: engine,
		prefs:  prefs,
		repo:   repo,
		runner: runner,
		clock:  c,
		loc:    loc,
		cfg:    cfg,
		log:    log.With().Str("component", "generation").Logger(),
	}
}

func (s *Service) Today() time.Time { return clock.Today(s.clock, s.loc) }

// GenerateSlots validates req against its mode rules and runs it. The
// preference write (for CUSTOM_CONTINUOUS and a first AUTO) and the slot
// writes share one unit of work.
func (s *Service) GenerateSlots(ctx context.Context, doctorID uuid.UUID, req preference.Request) (*Result, error) {
	if doctorID == uuid.Nil {
		return nil, validation.Fail("doctor_id", "is required")
	}
	today := s.Today()
	v, err := preference.Validate(req, today, s.cfg.Horizon)
	if err != nil {
		return nil, err
	}

	var res *Result
	err = s.runner.WithLock(ctx, slot.DoctorLockKey(doctorID), func(ctx context.Context) error {
		b, err := s.batchFor(ctx, doctorID, v, today)
		if err != nil {
			return err
		}
		res, err = s.engine.generate(ctx, b)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("doctor_id", doctorID.String()).
		Str("mode", string(v.Mode)).
		Int("created", res.Created).
		Int("skipped", res.Skipped).
		Msg("slots generated")
	return res, nil
}

func (s *Service) batchFor(ctx context.Context, doctorID uuid.UUID, v *preference.Validated, today time.Time) (Batch, error) {
	b := Batch{
		DoctorID:       doctorID,
		Mode:           v.Mode,
		SkipHoliday:    v.SkipHoliday,
		FailOnConflict: v.FailOnConflict,
	}
	switch v.Mode {
	case slot.ModeAuto:
		p, isNew, err := s.prefs.Resolve(ctx, doctorID)
		if err != nil {
			return b, err
		}
		if isNew {
			b.Preference = p
		}
		b.From = clock.MaxDate(today, p.StartDate)
		b.To = p.Target(today)
		b.Templates = p.Templates
		b.SkipHoliday = p.SkipHoliday

	case slot.ModeManual:
		b.Slots = v.Slots

	case slot.ModeCustomOneTime:
		b.From, b.To = v.StartDate, v.EndDate
		b.Templates = v.Templates

	case slot.ModeCustomContinuous:
		p := &preference.Preference{
			DoctorID:    doctorID,
			Mode:        slot.ModeCustomContinuous,
			DaysAhead:   v.DaysAhead,
			StartDate:   v.StartDate,
			Templates:   v.Templates,
			SkipHoliday: v.SkipHoliday,
			IsActive:    true,
		}
		b.Preference = p
		b.From, b.To = v.StartDate, v.EndDate
		b.Templates = v.Templates

	default:
		return b, validation.Fail("mode", "%s cannot be requested", v.Mode)
	}
	return b, nil
}

type Outcome string

const (
	OutcomeGenerated Outcome = "generated"
	OutcomeUpToDate  Outcome = "up_to_date"
	OutcomeInactive  Outcome = "inactive"
	OutcomeFailed    Outcome = "failed"
)

// DoctorResult is the outcome of one preference within a tick.
type DoctorResult struct {
	DoctorID   uuid.UUID  `json:"doctor_id"`
	Outcome    Outcome    `json:"outcome"`
	Created    int        `json:"created"`
	WindowFrom *time.Time `json:"window_from,omitempty"`
	WindowTo   *time.Time `json:"window_to,omitempty"`
	Error      string     `json:"error,omitempty"`
}

type TickReport struct {
	Date      time.Time      `json:"date"`
	Results   []DoctorResult `json:"results"`
	Generated int            `json:"generated"`
	UpToDate  int            `json:"up_to_date"`
	Failed    int            `json:"failed"`
}

// Tick runs one scheduled catch-up as of now. Every active AUTO or
// CUSTOM_CONTINUOUS preference is brought up to its target in its own unit
// of work; one doctor's failure is recorded and the batch continues.
func (s *Service) Tick(ctx context.Context, now time.Time) (*TickReport, error) {
	return s.TickDate(ctx, clock.DateOf(now.In(s.loc)))
}

// TickDate runs the catch-up for an explicit civil date of the clinic calendar.
func (s *Service) TickDate(ctx context.Context, today time.Time) (*TickReport, error) {
	if !s.ticking.CompareAndSwap(false, true) {
		return nil, ErrTickInProgress
	}
	defer s.ticking.Store(false)

	today = clock.DateOf(today)
	prefs, err := s.repo.ListActiveRecurring(ctx)
	if err != nil {
		return nil, err
	}

	report := &TickReport{Date: today, Results: make([]DoctorResult, len(prefs))}
	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for i, p := range prefs {
		i, doctorID := i, p.DoctorID
		g.Go(func() error {
			report.Results[i] = s.catchUp(ctx, doctorID, today)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range report.Results {
		switch r.Outcome {
		case OutcomeGenerated:
			report.Generated++
		case OutcomeUpToDate:
			report.UpToDate++
		case OutcomeFailed:
			report.Failed++
		}
	}
	s.log.Info().
		Str("date", today.Format(clock.DateLayout)).
		Int("preferences", len(prefs)).
		Int("generated", report.Generated).
		Int("up_to_date", report.UpToDate).
		Int("failed", report.Failed).
		Msg("scheduled generation finished")
	return report, nil
}

// catchUp re-reads the preference under the doctor's lock so a concurrent
// manual run that already advanced the marker turns this into a no-op.
func (s *Service) catchUp(ctx context.Context, doctorID uuid.UUID, today time.Time) (r DoctorResult) {
	r.DoctorID = doctorID
	defer func() {
		if rec := recover(); rec != nil {
			r.Outcome = OutcomeFailed
			r.Error = fmt.Sprintf("panic: %v", rec)
		}
		s.logResult(r)
	}()

	err := s.runner.WithLock(ctx, slot.DoctorLockKey(doctorID), func(ctx context.Context) error {
		p, err := s.repo.Get(ctx, doctorID)
		if err != nil {
			return err
		}
		if !p.IsActive || !p.Recurring() {
			r.Outcome = OutcomeInactive
			return nil
		}
		from, to, ok := p.CatchUp(today)
		if !ok {
			r.Outcome = OutcomeUpToDate
			return nil
		}
		res, err := s.engine.generate(ctx, Batch{
			DoctorID:    doctorID,
			Mode:        slot.ModeScheduled,
			From:        from,
			To:          to,
			Templates:   p.Templates,
			SkipHoliday: p.SkipHoliday,
		})
		if err != nil {
			return err
		}
		r.Outcome = OutcomeGenerated
		r.Created = res.Created
		r.WindowFrom, r.WindowTo = &from, &to
		return nil
	})
	if err != nil {
		r.Outcome = OutcomeFailed
		r.Error = err.Error()
	}
	return r
}

func (s *Service) logResult(r DoctorResult) {
	evt := s.log.Info()
	if r.Outcome == OutcomeFailed {
		evt = s.log.Error().Str("error", r.Error)
	}
	evt = evt.Str("doctor_id", r.DoctorID.String()).
		Str("outcome", string(r.Outcome)).
		Int("created", r.Created)
	if r.WindowFrom != nil {
		evt = evt.Str("window_from", r.WindowFrom.Format(clock.DateLayout)).
			Str("window_to", r.WindowTo.Format(clock.DateLayout))
	}
	evt.Msg("scheduled catch-up")
}
