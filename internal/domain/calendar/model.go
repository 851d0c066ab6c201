package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/slotengine/internal/platform/clock"
)

// Holiday is a clinic-wide closed date.
type Holiday struct {
	ID        uuid.UUID `json:"id"`
	Date      time.Time `json:"date"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// DateRange is an inclusive range of civil dates.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func (r DateRange) Contains(d time.Time) bool {
	return !d.Before(r.From) && !d.After(r.To)
}

func (r DateRange) Overlaps(o DateRange) bool {
	return !r.To.Before(o.From) && !o.To.Before(r.From)
}

func (r DateRange) String() string {
	return r.From.Format(clock.DateLayout) + ".." + r.To.Format(clock.DateLayout)
}

// RestDay is the weekly non-working day of the generation calendar.
// The zero value means the clinic has none.
type RestDay struct {
	Day     time.Weekday
	Enabled bool
}

// ParseRestDay accepts an English weekday name (any case) or "none".
func ParseRestDay(s string) (RestDay, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == "none" {
		return RestDay{}, nil
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.ToLower(d.String()) == s {
			return RestDay{Day: d, Enabled: true}, nil
		}
	}
	return RestDay{}, fmt.Errorf("unknown weekday %q", s)
}

func (r RestDay) Is(d time.Time) bool {
	return r.Enabled && d.Weekday() == r.Day
}

func (r RestDay) String() string {
	if !r.Enabled {
		return "none"
	}
	return r.Day.String()
}
