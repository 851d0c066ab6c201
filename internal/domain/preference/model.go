package preference

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinic/slotengine/internal/domain/slot"
	"github.com/clinic/slotengine/internal/platform/clock"
)

// Preference is a doctor's generation configuration. LastGeneratedOn is the
// progress marker of recurring generation and never moves backwards.
type Preference struct {
	DoctorID        uuid.UUID       `json:"doctor_id"`
	Mode            slot.Mode       `json:"mode"`
	DaysAhead       int             `json:"days_ahead"`
	StartDate       time.Time       `json:"start_date"`
	EndDate         *time.Time      `json:"end_date,omitempty"`
	LastGeneratedOn *time.Time      `json:"last_generated_on,omitempty"`
	Templates       []slot.Template `json:"templates"`
	SkipHoliday     bool            `json:"skip_holiday"`
	IsActive        bool            `json:"is_active"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Recurring reports whether the scheduler maintains this preference.
func (p *Preference) Recurring() bool {
	return p.Mode == slot.ModeAuto || p.Mode == slot.ModeCustomContinuous
}

// Target is the last date recurring generation must cover as of today.
func (p *Preference) Target(today time.Time) time.Time {
	return clock.AddDays(clock.MaxDate(today, p.StartDate), p.DaysAhead)
}

// CatchUp returns the window a scheduled run must generate, or ok=false
// when the marker already reaches the target.
func (p *Preference) CatchUp(today time.Time) (from, to time.Time, ok bool) {
	to = p.Target(today)
	if p.LastGeneratedOn != nil && !p.LastGeneratedOn.Before(to) {
		return time.Time{}, time.Time{}, false
	}
	from = clock.MaxDate(today, p.StartDate)
	if p.LastGeneratedOn != nil {
		from = clock.MaxDate(from, *p.LastGeneratedOn)
	}
	return from, to, true
}

// Defaults seed the preference of a doctor who never saved one.
type Defaults struct {
	DaysAhead int
	Templates []slot.Template
}

// NewDefault builds an active AUTO preference starting today.
func NewDefault(doctorID uuid.UUID, d Defaults, today time.Time) *Preference {
	templates := make([]slot.Template, len(d.Templates))
	copy(templates, d.Templates)
	return &Preference{
		DoctorID:    doctorID,
		Mode:        slot.ModeAuto,
		DaysAhead:   d.DaysAhead,
		StartDate:   today,
		Templates:   templates,
		SkipHoliday: true,
		IsActive:    true,
	}
}
