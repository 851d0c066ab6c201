package generation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/slotengine/internal/domain/calendar"
	"github.com/clinic/slotengine/internal/domain/leave"
	"github.com/clinic/slotengine/internal/domain/preference"
	"github.com/clinic/slotengine/internal/domain/slot"
	"github.com/clinic/slotengine/internal/platform/clock"
	"github.com/clinic/slotengine/internal/platform/db"
)

// 2026-10-19 is a Monday.
var testToday = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time { return clock.AddDays(testToday, n) }

func morning() []slot.Template {
	return []slot.Template{{Start: slot.MustTimeOfDay("09:00"), End: slot.MustTimeOfDay("12:00"), GapMinutes: 30}}
}

func intPtr(n int) *int { return &n }

type fixture struct {
	clock    *clock.Fake
	slots    *slot.MemoryRepo
	prefs    *preference.MemoryRepo
	holidays *calendar.MemoryHolidayRepo
	leaves   *leave.MemoryRepo
	engine   *Engine
	prefSvc  *preference.Service
	svc      *Service
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, nil)
}

// newFixtureWith lets a test wrap the slot repository.
func newFixtureWith(t *testing.T, wrap func(slot.Repository) slot.Repository) *fixture {
	t.Helper()
	f := &fixture{
		clock:    clock.NewFake(testToday.Add(6 * time.Hour)),
		slots:    slot.NewMemoryRepo(),
		prefs:    preference.NewMemoryRepo(),
		holidays: calendar.NewMemoryHolidayRepo(),
		leaves:   leave.NewMemoryRepo(),
	}
	var slots slot.Repository = f.slots
	if wrap != nil {
		slots = wrap(f.slots)
	}
	runner := db.NewLocalRunner()
	rest, _ := calendar.ParseRestDay("sunday")
	rules := calendar.NewRules(f.holidays, f.leaves, f.clock, time.UTC, rest)
	f.engine = NewEngine(slots, f.prefs, rules, runner)
	f.prefSvc = preference.NewService(f.prefs, runner, f.clock, time.UTC, preference.Defaults{DaysAhead: 2, Templates: morning()})
	f.svc = NewService(f.engine, f.prefSvc, f.prefs, runner, f.clock, time.UTC,
		Config{Horizon: 15, Concurrency: 4}, zerolog.Nop())
	return f
}

func (f *fixture) slotsOn(t *testing.T, doctorID uuid.UUID, date time.Time) []*slot.Slot {
	t.Helper()
	out, err := f.slots.FindByRange(context.Background(), doctorID, date, date)
	if err != nil {
		t.Fatalf("find slots: %v", err)
	}
	return out
}

func (f *fixture) seed(t *testing.T, doctorID uuid.UUID, date time.Time, start, end string, st slot.Status) {
	t.Helper()
	_, err := f.slots.CreateBatch(context.Background(), []*slot.Slot{{
		ID: uuid.New(), DoctorID: doctorID, Date: date,
		Start: slot.MustTimeOfDay(start), End: slot.MustTimeOfDay(end),
		Status: st, GenerationMode: slot.ModeManual,
	}})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func (f *fixture) approveLeave(t *testing.T, doctorID uuid.UUID, from, to time.Time) {
	t.Helper()
	err := f.leaves.Create(context.Background(), &leave.Leave{
		ID: uuid.New(), DoctorID: doctorID, From: from, To: to, Status: leave.StatusApproved,
	})
	if err != nil {
		t.Fatalf("leave: %v", err)
	}
}

// assertNoOverlap checks that no two occupying slots of a doctor overlap.
func (f *fixture) assertNoOverlap(t *testing.T, doctorID uuid.UUID, from, to time.Time) {
	t.Helper()
	all, _ := f.slots.FindByRange(context.Background(), doctorID, from, to)
	for i, a := range all {
		for _, b := range all[i+1:] {
			if a.Date.Equal(b.Date) && a.Status.Occupies() && b.Status.Occupies() && a.Interval().Overlaps(b.Interval()) {
				t.Errorf("slots %s and %s overlap on %s", a.Interval(), b.Interval(), a.Date.Format(clock.DateLayout))
			}
		}
	}
}

// failingSlots fails every range lookup for one doctor.
type failingSlots struct {
	slot.Repository
	doctorID uuid.UUID
}

var errBoom = errors.New("boom")

func (f *failingSlots) FindByRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*slot.Slot, error) {
	if doctorID == f.doctorID {
		return nil, &db.StorageError{Op: "find slots", Err: errBoom}
	}
	return f.Repository.FindByRange(ctx, doctorID, from, to)
}
