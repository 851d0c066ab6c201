package preference

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/slotengine/internal/domain/slot"
	"github.com/clinic/slotengine/internal/platform/db"
)

// MemoryRepo is an in-process Repository.
type MemoryRepo struct {
	mu    sync.RWMutex
	prefs map[uuid.UUID]*Preference
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{prefs: make(map[uuid.UUID]*Preference)}
}

func clonePreference(p *Preference) *Preference {
	cp := *p
	cp.Templates = append([]slot.Template(nil), p.Templates...)
	if p.EndDate != nil {
		d := *p.EndDate
		cp.EndDate = &d
	}
	if p.LastGeneratedOn != nil {
		d := *p.LastGeneratedOn
		cp.LastGeneratedOn = &d
	}
	return &cp
}

func (m *MemoryRepo) Get(_ context.Context, doctorID uuid.UUID) (*Preference, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.prefs[doctorID]
	if !ok {
		return nil, db.ErrNotFound
	}
	return clonePreference(p), nil
}

func (m *MemoryRepo) Save(_ context.Context, p *Preference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	if old, ok := m.prefs[p.DoctorID]; ok {
		p.CreatedAt = old.CreatedAt
		if old.LastGeneratedOn != nil && (p.LastGeneratedOn == nil || old.LastGeneratedOn.After(*p.LastGeneratedOn)) {
			d := *old.LastGeneratedOn
			p.LastGeneratedOn = &d
		}
	} else {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	m.prefs[p.DoctorID] = clonePreference(p)
	return nil
}

func (m *MemoryRepo) AdvanceMarker(_ context.Context, doctorID uuid.UUID, to time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prefs[doctorID]
	if !ok {
		return db.ErrNotFound
	}
	if p.LastGeneratedOn == nil || to.After(*p.LastGeneratedOn) {
		p.LastGeneratedOn = &to
		p.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (m *MemoryRepo) SetActive(_ context.Context, doctorID uuid.UUID, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prefs[doctorID]
	if !ok {
		return db.ErrNotFound
	}
	p.IsActive = active
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryRepo) ListActiveRecurring(_ context.Context) ([]*Preference, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Preference
	for _, p := range m.prefs {
		if p.IsActive && p.Recurring() {
			out = append(out, clonePreference(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DoctorID.String() < out[j].DoctorID.String() })
	return out, nil
}
