package leave

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/slotengine/internal/domain/calendar"
	"github.com/clinic/slotengine/internal/platform/db"
)

// MemoryRepo is an in-process Repository.
type MemoryRepo struct {
	mu     sync.RWMutex
	leaves map[uuid.UUID]*Leave
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{leaves: make(map[uuid.UUID]*Leave)}
}

func (m *MemoryRepo) Create(_ context.Context, l *Leave) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	l.CreatedAt, l.UpdatedAt = now, now
	cp := *l
	m.leaves[l.ID] = &cp
	return nil
}

func (m *MemoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Leave, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.leaves[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *MemoryRepo) filter(keep func(*Leave) bool) []*Leave {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Leave
	for _, l := range m.leaves {
		if keep(l) {
			cp := *l
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].From.Before(out[j].From) })
	return out
}

func (m *MemoryRepo) FindOverlapping(_ context.Context, doctorID uuid.UUID, from, to time.Time) ([]*Leave, error) {
	want := calendar.DateRange{From: from, To: to}
	return m.filter(func(l *Leave) bool {
		return l.DoctorID == doctorID && l.Status != StatusRejected && l.Range().Overlaps(want)
	}), nil
}

func (m *MemoryRepo) UpdateStatus(_ context.Context, id uuid.UUID, current, next Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leaves[id]
	if !ok || l.Status != current {
		return false, nil
	}
	l.Status = next
	l.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (m *MemoryRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID) ([]*Leave, error) {
	return m.filter(func(l *Leave) bool { return l.DoctorID == doctorID }), nil
}

func (m *MemoryRepo) ApprovedRanges(_ context.Context, doctorID uuid.UUID, from, to time.Time) ([]calendar.DateRange, error) {
	want := calendar.DateRange{From: from, To: to}
	var out []calendar.DateRange
	for _, l := range m.filter(func(l *Leave) bool {
		return l.DoctorID == doctorID && l.Status == StatusApproved && l.Range().Overlaps(want)
	}) {
		out = append(out, l.Range())
	}
	return out, nil
}
