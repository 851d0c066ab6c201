package preference

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/slotengine/internal/domain/slot"
	"github.com/clinic/slotengine/internal/platform/clock"
	"github.com/clinic/slotengine/internal/platform/db"
)

type Service struct {
	prefs    Repository
	runner   db.Runner
	clock    clock.Clock
	loc      *time.Location
	defaults Defaults
}

func NewService(prefs Repository, runner db.Runner, c clock.Clock, loc *time.Location, defaults Defaults) *Service {
	return &Service{prefs: prefs, runner: runner, clock: c, loc: loc, defaults: defaults}
}

func (s *Service) Get(ctx context.Context, doctorID uuid.UUID) (*Preference, error) {
	return s.prefs.Get(ctx, doctorID)
}

// Resolve returns the stored preference, or an unsaved default AUTO
// preference with isNew set when the doctor has none.
func (s *Service) Resolve(ctx context.Context, doctorID uuid.UUID) (p *Preference, isNew bool, err error) {
	p, err = s.prefs.Get(ctx, doctorID)
	if err == nil {
		return p, false, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, false, err
	}
	return NewDefault(doctorID, s.defaults, clock.Today(s.clock, s.loc)), true, nil
}

// LoadOrDefault is Resolve that also stores a new default. Callers hold the
// doctor lock.
func (s *Service) LoadOrDefault(ctx context.Context, doctorID uuid.UUID) (*Preference, error) {
	p, isNew, err := s.Resolve(ctx, doctorID)
	if err != nil || !isNew {
		return p, err
	}
	if err := s.prefs.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Activate turns recurring generation on, creating the default preference
// for a doctor who never saved one.
func (s *Service) Activate(ctx context.Context, doctorID uuid.UUID) (*Preference, error) {
	var out *Preference
	err := s.runner.WithLock(ctx, slot.DoctorLockKey(doctorID), func(ctx context.Context) error {
		p, err := s.LoadOrDefault(ctx, doctorID)
		if err != nil {
			return err
		}
		if !p.IsActive {
			if err := s.prefs.SetActive(ctx, doctorID, true); err != nil {
				return err
			}
			p.IsActive = true
		}
		out = p
		return nil
	})
	return out, err
}

// Deactivate stops recurring generation. Preferences are never deleted.
func (s *Service) Deactivate(ctx context.Context, doctorID uuid.UUID) (*Preference, error) {
	var out *Preference
	err := s.runner.WithLock(ctx, slot.DoctorLockKey(doctorID), func(ctx context.Context) error {
		if err := s.prefs.SetActive(ctx, doctorID, false); err != nil {
			return err
		}
		p, err := s.prefs.Get(ctx, doctorID)
		out = p
		return err
	})
	return out, err
}
