// Package generation materializes bookable slots from generation
// preferences and keeps recurring preferences generated ahead.
package generation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/slotengine/internal/domain/calendar"
	"github.com/clinic/slotengine/internal/domain/preference"
	"github.com/clinic/slotengine/internal/domain/slot"
	"github.com/clinic/slotengine/internal/platform/clock"
	"github.com/clinic/slotengine/internal/platform/db"
)

// Batch is one generation invocation for one doctor. Templates are expanded
// for every date in [From, To]; when Slots is set it is used instead.
// Preference, when set, is saved only once planning has succeeded.
type Batch struct {
	DoctorID       uuid.UUID
	Mode           slot.Mode
	From           time.Time
	To             time.Time
	Templates      []slot.Template
	Slots          []preference.DatedInterval
	SkipHoliday    bool
	FailOnConflict bool
	Preference     *preference.Preference
}

// advancesMarker reports whether a successful run moves the preference's
// LastGeneratedOn to the window end.
func advancesMarker(m slot.Mode) bool {
	return m == slot.ModeAuto || m == slot.ModeCustomContinuous || m == slot.ModeScheduled
}

type Result struct {
	Created         int        `json:"created"`
	Skipped         int        `json:"skipped"`
	ExcludedDays    int        `json:"excluded_days"`
	WindowFrom      time.Time  `json:"window_from"`
	WindowTo        time.Time  `json:"window_to"`
	LastGeneratedOn *time.Time `json:"last_generated_on,omitempty"`
}

type Engine struct {
	slots  slot.Repository
	prefs  preference.Repository
	rules  *calendar.Rules
	runner db.Runner
}

func NewEngine(slots slot.Repository, prefs preference.Repository, rules *calendar.Rules, runner db.Runner) *Engine {
	return &Engine{slots: slots, prefs: prefs, rules: rules, runner: runner}
}

// Generate runs b as one unit of work under the doctor's lock: all eligible
// slots of the window are written together with the marker, or nothing is.
func (e *Engine) Generate(ctx context.Context, b Batch) (*Result, error) {
	var res *Result
	err := e.runner.WithLock(ctx, slot.DoctorLockKey(b.DoctorID), func(ctx context.Context) error {
		var err error
		res, err = e.generate(ctx, b)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// planner accumulates new slots for one doctor, checking each candidate
// against what is stored and what was already planned.
type planner struct {
	b        Batch
	byDate   map[time.Time][]*slot.Slot
	planned  []*slot.Slot
	skipped  int
	excluded int
}

func (p *planner) offer(date time.Time, iv slot.Interval) error {
	for _, s := range p.byDate[date] {
		if s.Interval() == iv {
			// Re-running a window is a no-op whatever became of the slot.
			p.skipped++
			return nil
		}
	}
	for _, s := range p.byDate[date] {
		if s.Status.Occupies() && s.Interval().Overlaps(iv) {
			if p.b.FailOnConflict {
				return &slot.ConflictError{DoctorID: p.b.DoctorID, Date: date, Interval: iv, Existing: s.Interval()}
			}
			p.skipped++
			return nil
		}
	}
	s := &slot.Slot{
		ID:             uuid.New(),
		DoctorID:       p.b.DoctorID,
		Date:           date,
		Start:          iv.Start,
		End:            iv.End,
		Status:         slot.StatusAvailable,
		GenerationMode: p.b.Mode,
	}
	p.planned = append(p.planned, s)
	p.byDate[date] = append(p.byDate[date], s)
	return nil
}

// generate must run inside the doctor's unit of work. Nothing is written
// until the whole window has been planned, so a rejected window leaves the
// stores untouched on every Runner.
func (e *Engine) generate(ctx context.Context, b Batch) (*Result, error) {
	p, err := e.plan(ctx, b)
	if err != nil {
		return nil, err
	}
	return e.commit(ctx, p)
}

func (e *Engine) plan(ctx context.Context, b Batch) (*planner, error) {
	if len(b.Slots) > 0 {
		b.From, b.To = b.Slots[0].Date, b.Slots[0].Date
		for _, s := range b.Slots[1:] {
			if s.Date.Before(b.From) {
				b.From = s.Date
			}
			if s.Date.After(b.To) {
				b.To = s.Date
			}
		}
	}

	ex, err := e.rules.Window(ctx, b.DoctorID, b.From, b.To, b.SkipHoliday)
	if err != nil {
		return nil, err
	}
	p := &planner{b: b, byDate: make(map[time.Time][]*slot.Slot)}

	if len(b.Slots) > 0 {
		err = e.planExplicit(ctx, p, ex)
	} else {
		err = e.planTemplates(ctx, p, ex)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (e *Engine) commit(ctx context.Context, p *planner) (*Result, error) {
	b := p.b
	if b.Preference != nil {
		if err := e.prefs.Save(ctx, b.Preference); err != nil {
			return nil, err
		}
	}

	created, err := e.slots.CreateBatch(ctx, p.planned)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Created:      created,
		Skipped:      p.skipped + len(p.planned) - created,
		ExcludedDays: p.excluded,
		WindowFrom:   b.From,
		WindowTo:     b.To,
	}
	if advancesMarker(b.Mode) {
		if err := e.prefs.AdvanceMarker(ctx, b.DoctorID, b.To); err != nil {
			return nil, err
		}
		pref, err := e.prefs.Get(ctx, b.DoctorID)
		if err != nil {
			return nil, err
		}
		res.LastGeneratedOn = pref.LastGeneratedOn
	}
	return res, nil
}

func (e *Engine) planTemplates(ctx context.Context, p *planner, ex *calendar.Exclusions) error {
	intervals, err := slot.Expand(p.b.Templates)
	if err != nil {
		return err
	}
	existing, err := e.slots.FindByRange(ctx, p.b.DoctorID, p.b.From, p.b.To)
	if err != nil {
		return err
	}
	for _, s := range existing {
		p.byDate[s.Date] = append(p.byDate[s.Date], s)
	}

	for d := p.b.From; !d.After(p.b.To); d = clock.AddDays(d, 1) {
		if ex.Excluded(d) {
			p.excluded++
			continue
		}
		for _, iv := range intervals {
			if err := p.offer(d, iv); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) planExplicit(ctx context.Context, p *planner, ex *calendar.Exclusions) error {
	excludedDays := make(map[time.Time]bool)
	for _, s := range p.b.Slots {
		if ex.Excluded(s.Date) {
			if !excludedDays[s.Date] {
				excludedDays[s.Date] = true
				p.excluded++
			}
			p.skipped++
			continue
		}
		found, err := e.slots.FindOverlapping(ctx, p.b.DoctorID, s.Date, s.Interval)
		if err != nil {
			return err
		}
		for _, f := range found {
			if !containsSlot(p.byDate[s.Date], f.ID) {
				p.byDate[s.Date] = append(p.byDate[s.Date], f)
			}
		}
		if err := p.offer(s.Date, s.Interval); err != nil {
			return err
		}
	}
	return nil
}

func containsSlot(ss []*slot.Slot, id uuid.UUID) bool {
	for _, s := range ss {
		if s.ID == id {
			return true
		}
	}
	return false
}
