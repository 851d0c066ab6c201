package slot

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/slotengine/internal/platform/clock"
	"github.com/clinic/slotengine/internal/platform/db"
	"github.com/clinic/slotengine/internal/platform/validation"
)

type Service struct {
	slots  Repository
	runner db.Runner
	clock  clock.Clock
	loc    *time.Location
}

func NewService(slots Repository, runner db.Runner, c clock.Clock, loc *time.Location) *Service {
	return &Service{slots: slots, runner: runner, clock: c, loc: loc}
}

// DoctorLockKey is the unit-of-work key serializing every write to one
// doctor's slot calendar.
func DoctorLockKey(doctorID uuid.UUID) string {
	return "doctor:" + doctorID.String()
}

func (s *Service) GetSlot(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return s.slots.GetByID(ctx, id)
}

func (s *Service) ListSlots(ctx context.Context, f ListFilter, limit, offset int) ([]*Slot, int, error) {
	if f.DoctorID == uuid.Nil {
		return nil, 0, validation.Fail("doctor_id", "is required")
	}
	if f.From.IsZero() {
		f.From = clock.Today(s.clock, s.loc)
	}
	if f.To.IsZero() {
		f.To = f.From
	}
	if f.To.Before(f.From) {
		return nil, 0, validation.Fail("date_to", "must not be before date_from")
	}
	return s.slots.List(ctx, f, limit, offset)
}

// DeleteRange describes a bulk deletion. TimeFrom/TimeTo are optional; a slot
// matches the time filter when it lies entirely inside [TimeFrom, TimeTo].
type DeleteRange struct {
	DateFrom time.Time
	DateTo   time.Time
	TimeFrom *TimeOfDay
	TimeTo   *TimeOfDay
}

func (r DeleteRange) validate() error {
	if r.DateFrom.IsZero() || r.DateTo.IsZero() {
		return validation.Fail("date_from", "date_from and date_to are required")
	}
	if r.DateTo.Before(r.DateFrom) {
		return validation.Fail("date_to", "must not be before date_from")
	}
	if r.TimeFrom != nil && r.TimeTo != nil && *r.TimeTo <= *r.TimeFrom {
		return validation.Fail("time_to", "must be after time_from")
	}
	return nil
}

func (r DeleteRange) matchesTime(iv Interval) bool {
	window := Interval{Start: 0, End: minutesPerDay}
	if r.TimeFrom != nil {
		window.Start = *r.TimeFrom
	}
	if r.TimeTo != nil {
		window.End = *r.TimeTo
	}
	return iv.Within(window)
}

var deletableStatuses = []Status{StatusAvailable, StatusReAvailable}

// DeleteRange cancels every AVAILABLE or RE_AVAILABLE slot of the doctor in
// the range. Booked slots are kept and do not abort the batch. It returns a
// *NothingDeletedError when no slot qualified.
func (s *Service) DeleteRange(ctx context.Context, doctorID uuid.UUID, r DeleteRange) (int, error) {
	if doctorID == uuid.Nil {
		return 0, validation.Fail("doctor_id", "is required")
	}
	if err := r.validate(); err != nil {
		return 0, err
	}

	var deleted int
	err := s.runner.WithLock(ctx, DoctorLockKey(doctorID), func(ctx context.Context) error {
		existing, err := s.slots.FindByRange(ctx, doctorID, r.DateFrom, r.DateTo)
		if err != nil {
			return err
		}

		var ids []uuid.UUID
		booked := 0
		for _, sl := range existing {
			if !r.matchesTime(sl.Interval()) {
				continue
			}
			switch {
			case sl.Status.Bookable():
				ids = append(ids, sl.ID)
			case sl.Status == StatusBooked:
				booked++
			}
		}
		if len(ids) == 0 {
			return &NothingDeletedError{BookedSkipped: booked}
		}

		deleted, err = s.slots.CancelMany(ctx, ids, deletableStatuses)
		if err != nil {
			return err
		}
		if deleted == 0 {
			return &NothingDeletedError{BookedSkipped: booked}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}
