package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/slotengine/internal/platform/clock"
)

// 2026-10-19 is a Monday.
var testToday = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

type stubLeaves struct {
	ranges map[uuid.UUID][]DateRange
	err    error
}

func (s *stubLeaves) ApprovedRanges(_ context.Context, doctorID uuid.UUID, from, to time.Time) ([]DateRange, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []DateRange
	for _, r := range s.ranges[doctorID] {
		if r.Overlaps(DateRange{From: from, To: to}) {
			out = append(out, r)
		}
	}
	return out, nil
}

func day(n int) time.Time { return clock.AddDays(testToday, n) }

func newTestRules(leaves *stubLeaves) (*Rules, *MemoryHolidayRepo) {
	holidays := NewMemoryHolidayRepo()
	rest, _ := ParseRestDay("sunday")
	return NewRules(holidays, leaves, clock.NewFake(testToday.Add(9*time.Hour)), time.UTC, rest), holidays
}

func TestRules_Exclusions(t *testing.T) {
	doc := uuid.New()
	leaves := &stubLeaves{ranges: map[uuid.UUID][]DateRange{
		doc: {{From: day(1), To: day(2)}},
	}}
	rules, holidays := newTestRules(leaves)
	holidays.Create(context.Background(), &Holiday{ID: uuid.New(), Date: day(3), Reason: "founders day"})

	ex, err := rules.Window(context.Background(), doc, day(-1), day(7), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cases := []struct {
		date time.Time
		want Reason
	}{
		{day(-1), ReasonPast},
		{day(0), ""},
		{day(1), ReasonLeave},
		{day(2), ReasonLeave},
		{day(3), ReasonHoliday},
		{day(4), ""},
		{day(6), ReasonRestDay},
		{day(7), ""},
	}
	for _, tc := range cases {
		if got := ex.Reason(tc.date); got != tc.want {
			t.Errorf("%s: expected %q, got %q", tc.date.Format(clock.DateLayout), tc.want, got)
		}
	}
}

func TestRules_HolidaysIgnoredWithoutSkip(t *testing.T) {
	doc := uuid.New()
	leaves := &stubLeaves{ranges: map[uuid.UUID][]DateRange{doc: {{From: day(1), To: day(1)}}}}
	rules, holidays := newTestRules(leaves)
	holidays.Create(context.Background(), &Holiday{ID: uuid.New(), Date: day(3), Reason: "x"})

	for _, tc := range []struct {
		date time.Time
		want bool
	}{
		{day(3), false},
		{day(6), false},
		{day(1), true},
		{day(-2), true},
	} {
		got, err := rules.IsExcluded(context.Background(), doc, tc.date, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.date.Format(clock.DateLayout), tc.want, got)
		}
	}
}

func TestRules_LeaveOfOtherDoctorIgnored(t *testing.T) {
	leaves := &stubLeaves{ranges: map[uuid.UUID][]DateRange{uuid.New(): {{From: day(1), To: day(1)}}}}
	rules, _ := newTestRules(leaves)
	excluded, _ := rules.IsExcluded(context.Background(), uuid.New(), day(1), true)
	if excluded {
		t.Error("another doctor's leave must not exclude the date")
	}
}

func TestRules_PropagatesStoreError(t *testing.T) {
	rules, _ := newTestRules(&stubLeaves{err: errors.New("boom")})
	if _, err := rules.IsExcluded(context.Background(), uuid.New(), day(1), true); err == nil {
		t.Error("expected leave store error to propagate")
	}
}

func TestParseRestDay(t *testing.T) {
	r, err := ParseRestDay("Sunday")
	if err != nil || !r.Enabled || r.Day != time.Sunday {
		t.Errorf("unexpected result %+v, %v", r, err)
	}
	r, err = ParseRestDay("none")
	if err != nil || r.Enabled || r.Is(day(6)) {
		t.Errorf("expected disabled rest day, got %+v, %v", r, err)
	}
	if _, err := ParseRestDay("someday"); err == nil {
		t.Error("expected error for unknown weekday")
	}
}
