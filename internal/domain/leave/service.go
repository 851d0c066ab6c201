package leave

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/slotengine/internal/domain/calendar"
	"github.com/clinic/slotengine/internal/platform/auth"
	"github.com/clinic/slotengine/internal/platform/clock"
	"github.com/clinic/slotengine/internal/platform/db"
	"github.com/clinic/slotengine/internal/platform/validation"
)

type Service struct {
	leaves Repository
	runner db.Runner
	clock  clock.Clock
	loc    *time.Location
}

func NewService(leaves Repository, runner db.Runner, c clock.Clock, loc *time.Location) *Service {
	return &Service{leaves: leaves, runner: runner, clock: c, loc: loc}
}

func doctorLeaveKey(doctorID uuid.UUID) string { return "doctor-leave:" + doctorID.String() }
func leaveKey(id uuid.UUID) string             { return "leave:" + id.String() }

type RequestLeaveRequest struct {
	From   string `json:"from" validate:"required,datetime=2006-01-02"`
	To     string `json:"to" validate:"required,datetime=2006-01-02"`
	Reason string `json:"reason" validate:"max=500"`
}

// RequestLeave files a leave in status BOOKED. It fails with *OverlapError
// when another non-rejected leave of the doctor intersects the range.
func (s *Service) RequestLeave(ctx context.Context, actor auth.Actor, doctorID uuid.UUID, req RequestLeaveRequest) (*Leave, error) {
	if !actor.IsAdmin() && actor.ID != doctorID {
		return nil, auth.ErrForbidden
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	from, _ := clock.ParseDate(req.From)
	to, _ := clock.ParseDate(req.To)
	if from.Before(clock.Today(s.clock, s.loc)) {
		return nil, validation.Fail("from", "must not be in the past")
	}
	if to.Before(from) {
		return nil, validation.Fail("to", "must not be before from")
	}

	l := &Leave{
		ID:       uuid.New(),
		DoctorID: doctorID,
		From:     from,
		To:       to,
		Status:   StatusBooked,
		Reason:   req.Reason,
	}
	err := s.runner.WithLock(ctx, doctorLeaveKey(doctorID), func(ctx context.Context) error {
		existing, err := s.leaves.FindOverlapping(ctx, doctorID, from, to)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return &OverlapError{
				Requested: calendar.DateRange{From: from, To: to},
				Existing:  existing[0].ID,
				Status:    existing[0].Status,
			}
		}
		return s.leaves.Create(ctx, l)
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (s *Service) GetLeave(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Leave, error) {
	l, err := s.leaves.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && actor.ID != l.DoctorID {
		return nil, auth.ErrForbidden
	}
	return l, nil
}

func (s *Service) ListLeaves(ctx context.Context, actor auth.Actor, doctorID uuid.UUID) ([]*Leave, error) {
	if !actor.IsAdmin() && actor.ID != doctorID {
		return nil, auth.ErrForbidden
	}
	return s.leaves.ListByDoctor(ctx, doctorID)
}

// ChangeStatus applies the leave transition table for actor.Role. The status
// is written by compare-and-swap inside a unit keyed by the leave.
func (s *Service) ChangeStatus(ctx context.Context, actor auth.Actor, id uuid.UUID, target Status) (*Leave, error) {
	var out *Leave
	err := s.runner.WithLock(ctx, leaveKey(id), func(ctx context.Context) error {
		l, err := s.leaves.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := Transitions.Check(actor.Role, l.Status, target); err != nil {
			return err
		}
		ok, err := s.leaves.UpdateStatus(ctx, id, l.Status, target)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("leave %s changed concurrently", id)
		}
		l.Status = target
		out = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
