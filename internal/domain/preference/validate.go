package preference

import (
	"fmt"
	"time"

	"github.com/clinic/slotengine/internal/domain/slot"
	"github.com/clinic/slotengine/internal/platform/clock"
	"github.com/clinic/slotengine/internal/platform/validation"
)

// ValidationError is returned for a malformed or mode-inconsistent request.
type ValidationError = validation.Error

// DatedInterval is one explicitly requested slot.
type DatedInterval struct {
	Date     time.Time
	Interval slot.Interval
}

// Validated is a request that passed its mode rules, with dates parsed.
type Validated struct {
	Mode           slot.Mode
	StartDate      time.Time
	EndDate        time.Time
	DaysAhead      int
	Templates      []slot.Template
	Slots          []DatedInterval
	SkipHoliday    bool
	FailOnConflict bool
}

// Validate applies the rules of req's mode against today and the generation
// horizon in days. Rules run in a fixed order and the first failure wins.
func Validate(req Request, today time.Time, horizon int) (*Validated, error) {
	switch r := req.(type) {
	case AutoRequest:
		return &Validated{Mode: slot.ModeAuto, FailOnConflict: r.FailOnConflict}, nil
	case ManualRequest:
		return validateManual(r, today, horizon)
	case OneTimeRequest:
		return validateOneTime(r, today, horizon)
	case ContinuousRequest:
		return validateContinuous(r, today, horizon)
	case nil:
		return nil, validation.Fail("mode", "is required")
	default:
		return nil, validation.Fail("mode", "%s cannot be requested", req.Mode())
	}
}

func validateManual(r ManualRequest, today time.Time, horizon int) (*Validated, error) {
	if err := validation.Struct(r); err != nil {
		return nil, err
	}
	last := clock.AddDays(today, horizon)
	out := &Validated{Mode: slot.ModeManual, SkipHoliday: r.SkipHoliday, FailOnConflict: r.FailOnConflict}
	for i, s := range r.Slots {
		field := fmt.Sprintf("slots[%d]", i)
		date, _ := clock.ParseDate(s.Date)
		if date.Before(today) {
			return nil, validation.Fail(field+".date", "must not be before %s", today.Format(clock.DateLayout))
		}
		if date.After(last) {
			return nil, validation.Fail(field+".date", "must not be after %s", last.Format(clock.DateLayout))
		}
		from, _ := slot.ParseTimeOfDay(s.From)
		to, _ := slot.ParseTimeOfDay(s.To)
		if to <= from {
			return nil, validation.Fail(field+".to", "must be after from")
		}
		out.Slots = append(out.Slots, DatedInterval{Date: date, Interval: slot.Interval{Start: from, End: to}})
	}
	return out, nil
}

func validateOneTime(r OneTimeRequest, today time.Time, horizon int) (*Validated, error) {
	if err := validation.Struct(r); err != nil {
		return nil, err
	}
	start, _ := clock.ParseDate(r.StartDate)
	end, _ := clock.ParseDate(r.EndDate)
	if start.Before(today) {
		return nil, validation.Fail("start_date", "must not be before %s", today.Format(clock.DateLayout))
	}
	if end.Before(today) {
		return nil, validation.Fail("end_date", "must not be before %s", today.Format(clock.DateLayout))
	}
	if end.Before(start) {
		return nil, validation.Fail("end_date", "must not be before start_date")
	}
	if clock.DaysBetween(start, end) > horizon {
		return nil, validation.Fail("end_date", "range exceeds %d days", horizon)
	}
	if err := validateTemplates(r.Templates); err != nil {
		return nil, err
	}
	if r.LastGeneratedOn != nil {
		return nil, validation.Fail("last_generated_on", "must be absent for a one-time request")
	}
	return &Validated{
		Mode:           slot.ModeCustomOneTime,
		StartDate:      start,
		EndDate:        end,
		Templates:      r.Templates,
		SkipHoliday:    r.SkipHoliday,
		FailOnConflict: r.FailOnConflict,
	}, nil
}

func validateContinuous(r ContinuousRequest, today time.Time, horizon int) (*Validated, error) {
	if err := validation.Struct(r); err != nil {
		return nil, err
	}
	start, _ := clock.ParseDate(r.StartDate)
	if start.Before(today) {
		return nil, validation.Fail("start_date", "must not be before %s", today.Format(clock.DateLayout))
	}
	if d := *r.DaysAhead; d < 0 || d > horizon {
		return nil, validation.Fail("days_ahead", "must be between 0 and %d", horizon)
	}
	if err := validateTemplates(r.Templates); err != nil {
		return nil, err
	}
	if r.LastGeneratedOn != nil {
		return nil, validation.Fail("last_generated_on", "must be absent when creating a continuous preference")
	}
	return &Validated{
		Mode:           slot.ModeCustomContinuous,
		StartDate:      start,
		EndDate:        clock.AddDays(start, *r.DaysAhead),
		DaysAhead:      *r.DaysAhead,
		Templates:      r.Templates,
		SkipHoliday:    r.SkipHoliday,
		FailOnConflict: r.FailOnConflict,
	}, nil
}

func validateTemplates(templates []slot.Template) error {
	for i, t := range templates {
		if err := t.Validate(); err != nil {
			return validation.Fail(fmt.Sprintf("templates[%d]", i), "%v", err)
		}
	}
	if i, j, ok := slot.OverlappingTemplates(templates); ok {
		return validation.Fail("templates", "template %d (%s) overlaps template %d (%s)", i, templates[i], j, templates[j])
	}
	return nil
}
