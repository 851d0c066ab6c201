package preference

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/slotengine/internal/domain/slot"
	"github.com/clinic/slotengine/internal/platform/clock"
)

var testToday = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time { return clock.AddDays(testToday, n) }

func datePtr(t time.Time) *time.Time { return &t }

func TestPreference_CatchUp(t *testing.T) {
	cases := []struct {
		name     string
		pref     Preference
		ok       bool
		from, to time.Time
	}{
		{
			name: "never generated",
			pref: Preference{StartDate: day(0), DaysAhead: 3},
			ok:   true, from: day(0), to: day(3),
		},
		{
			name: "marker already at target",
			pref: Preference{StartDate: day(0), DaysAhead: 3, LastGeneratedOn: datePtr(day(3))},
		},
		{
			name: "marker beyond target",
			pref: Preference{StartDate: day(0), DaysAhead: 3, LastGeneratedOn: datePtr(day(9))},
		},
		{
			name: "missed days resume from marker",
			pref: Preference{StartDate: day(-10), DaysAhead: 3, LastGeneratedOn: datePtr(day(1))},
			ok:   true, from: day(1), to: day(3),
		},
		{
			name: "stale marker resumes from today",
			pref: Preference{StartDate: day(-10), DaysAhead: 2, LastGeneratedOn: datePtr(day(-4))},
			ok:   true, from: day(0), to: day(2),
		},
		{
			name: "future start",
			pref: Preference{StartDate: day(5), DaysAhead: 1},
			ok:   true, from: day(5), to: day(6),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			from, to, ok := tc.pref.CatchUp(testToday)
			if ok != tc.ok {
				t.Fatalf("expected ok=%v, got %v", tc.ok, ok)
			}
			if ok && (!from.Equal(tc.from) || !to.Equal(tc.to)) {
				t.Errorf("expected [%s, %s], got [%s, %s]",
					tc.from.Format(clock.DateLayout), tc.to.Format(clock.DateLayout),
					from.Format(clock.DateLayout), to.Format(clock.DateLayout))
			}
		})
	}
}

func TestNewDefault(t *testing.T) {
	tpl := []slot.Template{{Start: slot.MustTimeOfDay("09:00"), End: slot.MustTimeOfDay("17:00"), GapMinutes: 30}}
	p := NewDefault(uuid.New(), Defaults{DaysAhead: 7, Templates: tpl}, testToday)
	if p.Mode != slot.ModeAuto || !p.IsActive || !p.SkipHoliday || p.DaysAhead != 7 {
		t.Errorf("unexpected default: %+v", p)
	}
	if !p.Recurring() {
		t.Error("default preference must be recurring")
	}
	tpl[0].GapMinutes = 10
	if p.Templates[0].GapMinutes != 30 {
		t.Error("default must not alias the configured templates")
	}
}
