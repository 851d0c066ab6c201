package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/slotengine/internal/domain/slot"
	"github.com/clinic/slotengine/internal/platform/auth"
	"github.com/clinic/slotengine/internal/platform/clock"
	"github.com/clinic/slotengine/internal/platform/db"
	"github.com/clinic/slotengine/internal/platform/fsm"
	"github.com/clinic/slotengine/internal/platform/validation"
)

type Service struct {
	appts  Repository
	slots  slot.Repository
	runner db.Runner
	clock  clock.Clock
	loc    *time.Location
}

func NewService(appts Repository, slots slot.Repository, runner db.Runner, c clock.Clock, loc *time.Location) *Service {
	return &Service{appts: appts, slots: slots, runner: runner, clock: c, loc: loc}
}

func slotKey(id uuid.UUID) string        { return "slot:" + id.String() }
func appointmentKey(id uuid.UUID) string { return "appointment:" + id.String() }

type BookRequest struct {
	SlotID       string  `json:"slot_id" validate:"required,uuid"`
	PatientID    string  `json:"patient_id" validate:"omitempty,uuid"`
	SubProfileID *string `json:"sub_profile_id" validate:"omitempty,uuid"`
	Note         string  `json:"note" validate:"max=1000"`
}

var bookable = []slot.Status{slot.StatusAvailable, slot.StatusReAvailable}

// Book reserves a slot for a patient. Patients book for themselves; admins
// name the patient. The slot moves to BOOKED and the appointment is created
// in one unit keyed by the slot, so a second booking fails with
// slot.ErrSlotNotBookable.
func (s *Service) Book(ctx context.Context, actor auth.Actor, req BookRequest) (*Appointment, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	patientID := actor.ID
	switch {
	case actor.IsAdmin():
		if req.PatientID == "" {
			return nil, validation.Fail("patient_id", "is required")
		}
		patientID = uuid.MustParse(req.PatientID)
	case actor.Role != auth.RolePatient:
		return nil, auth.ErrForbidden
	case req.PatientID != "" && req.PatientID != actor.ID.String():
		return nil, auth.ErrForbidden
	}

	a := &Appointment{
		ID:        uuid.New(),
		SlotID:    uuid.MustParse(req.SlotID),
		PatientID: patientID,
		Status:    StatusBooked,
		Note:      req.Note,
	}
	if req.SubProfileID != nil {
		id := uuid.MustParse(*req.SubProfileID)
		a.SubProfileID = &id
	}

	err := s.runner.WithLock(ctx, slotKey(a.SlotID), func(ctx context.Context) error {
		sl, err := s.slots.GetByID(ctx, a.SlotID)
		if err != nil {
			return err
		}
		if !sl.Status.Bookable() {
			return fmt.Errorf("%w: slot is %s", slot.ErrSlotNotBookable, sl.Status)
		}
		if sl.Date.Before(clock.Today(s.clock, s.loc)) {
			return fmt.Errorf("%w: slot date has passed", slot.ErrSlotNotBookable)
		}
		ok, err := s.slots.UpdateStatus(ctx, sl.ID, bookable, slot.StatusBooked)
		if err != nil {
			return err
		}
		if !ok {
			return slot.ErrSlotNotBookable
		}
		a.DoctorID = sl.DoctorID
		return s.appts.Create(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func owns(actor auth.Actor, a *Appointment) bool {
	switch actor.Role {
	case auth.RoleAdmin:
		return true
	case auth.RoleDoctor:
		return a.DoctorID == actor.ID
	case auth.RolePatient:
		return a.PatientID == actor.ID
	}
	return false
}

func (s *Service) GetAppointment(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Appointment, error) {
	a, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !owns(actor, a) {
		return nil, auth.ErrForbidden
	}
	return a, nil
}

// ListAppointments lists the actor's own appointments. Admins must name a
// patient or a doctor.
func (s *Service) ListAppointments(ctx context.Context, actor auth.Actor, patientID, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	switch actor.Role {
	case auth.RolePatient:
		return s.appts.ListByPatient(ctx, actor.ID, limit, offset)
	case auth.RoleDoctor:
		return s.appts.ListByDoctor(ctx, actor.ID, limit, offset)
	case auth.RoleAdmin:
		if patientID != uuid.Nil {
			return s.appts.ListByPatient(ctx, patientID, limit, offset)
		}
		if doctorID != uuid.Nil {
			return s.appts.ListByDoctor(ctx, doctorID, limit, offset)
		}
		return nil, 0, validation.Fail("patient_id", "patient_id or doctor_id is required")
	}
	return nil, 0, auth.ErrForbidden
}

// ChangeStatus applies the appointment transition table for actor.Role.
// Cancelling releases the slot as RE_AVAILABLE in the same unit of work.
func (s *Service) ChangeStatus(ctx context.Context, actor auth.Actor, id uuid.UUID, target Status) (*Appointment, error) {
	var out *Appointment
	err := s.runner.WithLock(ctx, appointmentKey(id), func(ctx context.Context) error {
		a, err := s.appts.GetByID(ctx, id)
		if err != nil {
			return err
		}

		// A target the role can never request is rejected before ownership,
		// which in turn is checked before the current status is revealed.
		checkErr := Transitions.Check(actor.Role, a.Status, target)
		if errors.Is(checkErr, fsm.ErrInvalidTransitionRequest) {
			return checkErr
		}
		if !owns(actor, a) {
			return auth.ErrForbidden
		}
		if checkErr != nil {
			return checkErr
		}

		ok, err := s.appts.UpdateStatus(ctx, id, a.Status, target)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("appointment %s changed concurrently", id)
		}

		if target.ReleasesSlot() {
			err := s.runner.WithLock(ctx, slotKey(a.SlotID), func(ctx context.Context) error {
				released, err := s.slots.UpdateStatus(ctx, a.SlotID, []slot.Status{slot.StatusBooked}, slot.StatusReAvailable)
				if err != nil {
					return err
				}
				if !released {
					return fmt.Errorf("slot %s of appointment %s is not booked", a.SlotID, id)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}

		a.Status = target
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
