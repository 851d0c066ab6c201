package calendar

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/slotengine/internal/platform/clock"
)

// Reason tells why a date is closed for generation. The empty Reason means open.
type Reason string

const (
	ReasonPast    Reason = "past"
	ReasonHoliday Reason = "holiday"
	ReasonLeave   Reason = "leave"
	ReasonRestDay Reason = "rest_day"
)

// Rules answers whether a date is excluded from slot generation for a doctor.
type Rules struct {
	holidays HolidayRepository
	leaves   LeaveSource
	clock    clock.Clock
	loc      *time.Location
	rest     RestDay
}

func NewRules(holidays HolidayRepository, leaves LeaveSource, c clock.Clock, loc *time.Location, rest RestDay) *Rules {
	return &Rules{holidays: holidays, leaves: leaves, clock: c, loc: loc, rest: rest}
}

func (r *Rules) RestDay() RestDay { return r.rest }

// Exclusions is a precomputed view of the closed dates in a window.
type Exclusions struct {
	today       time.Time
	skipHoliday bool
	rest        RestDay
	holidays    map[time.Time]bool
	leaves      []DateRange
}

// Reason returns why date is excluded, or "" when slots may be generated.
// Past dates and approved leave always exclude. Holidays and the weekly
// rest day exclude only when the caller asked to skip holidays.
func (e *Exclusions) Reason(date time.Time) Reason {
	if date.Before(e.today) {
		return ReasonPast
	}
	for _, l := range e.leaves {
		if l.Contains(date) {
			return ReasonLeave
		}
	}
	if e.skipHoliday {
		if e.holidays[date] {
			return ReasonHoliday
		}
		if e.rest.Is(date) {
			return ReasonRestDay
		}
	}
	return ""
}

func (e *Exclusions) Excluded(date time.Time) bool { return e.Reason(date) != "" }

// Window loads holidays and approved leave for [from, to] once.
func (r *Rules) Window(ctx context.Context, doctorID uuid.UUID, from, to time.Time, skipHoliday bool) (*Exclusions, error) {
	ex := &Exclusions{
		today:       clock.Today(r.clock, r.loc),
		skipHoliday: skipHoliday,
		rest:        r.rest,
		holidays:    make(map[time.Time]bool),
	}
	if skipHoliday {
		hs, err := r.holidays.ListRange(ctx, from, to)
		if err != nil {
			return nil, err
		}
		for _, h := range hs {
			ex.holidays[clock.DateOf(h.Date)] = true
		}
	}
	leaves, err := r.leaves.ApprovedRanges(ctx, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	ex.leaves = leaves
	return ex, nil
}

// IsExcluded is the single-date form of Window.
func (r *Rules) IsExcluded(ctx context.Context, doctorID uuid.UUID, date time.Time, skipHoliday bool) (bool, error) {
	date = clock.DateOf(date)
	ex, err := r.Window(ctx, doctorID, date, date, skipHoliday)
	if err != nil {
		return false, err
	}
	return ex.Excluded(date), nil
}
