package slot

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/slotengine/internal/platform/db"
)

// MemoryRepo is an in-process Repository used by `serve --store=memory`
// and by tests.
type MemoryRepo struct {
	mu    sync.RWMutex
	slots map[uuid.UUID]*Slot
	now   func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{slots: make(map[uuid.UUID]*Slot), now: time.Now}
}

func sameInterval(a *Slot, doctorID uuid.UUID, date time.Time, iv Interval) bool {
	return a.DoctorID == doctorID && a.Date.Equal(date) && a.Start == iv.Start && a.End == iv.End
}

func (m *MemoryRepo) CreateBatch(_ context.Context, slots []*Slot) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inserted := 0
	for _, s := range slots {
		dup := false
		for _, existing := range m.slots {
			if sameInterval(existing, s.DoctorID, s.Date, s.Interval()) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		s.CreatedAt = m.now()
		s.UpdatedAt = s.CreatedAt
		cp := *s
		m.slots[s.ID] = &cp
		inserted++
	}
	return inserted, nil
}

func (m *MemoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Slot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.slots[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryRepo) FindOverlapping(_ context.Context, doctorID uuid.UUID, date time.Time, iv Interval) ([]*Slot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Slot
	for _, s := range m.slots {
		if s.DoctorID == doctorID && s.Date.Equal(date) && s.Status.Occupies() && s.Interval().Overlaps(iv) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sortSlots(out)
	return out, nil
}

func (m *MemoryRepo) FindByRange(_ context.Context, doctorID uuid.UUID, from, to time.Time) ([]*Slot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Slot
	for _, s := range m.slots {
		if s.DoctorID == doctorID && !s.Date.Before(from) && !s.Date.After(to) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sortSlots(out)
	return out, nil
}

func containsStatus(ss []Status, s Status) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

func (m *MemoryRepo) UpdateStatus(_ context.Context, id uuid.UUID, from []Status, next Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok || !containsStatus(from, s.Status) {
		return false, nil
	}
	s.Status = next
	s.UpdatedAt = m.now()
	return true, nil
}

func (m *MemoryRepo) CancelMany(_ context.Context, ids []uuid.UUID, from []Status) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, id := range ids {
		if s, ok := m.slots[id]; ok && containsStatus(from, s.Status) {
			s.Status = StatusCancelled
			s.UpdatedAt = m.now()
			n++
		}
	}
	return n, nil
}

func (m *MemoryRepo) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Slot, int, error) {
	all, _ := m.FindByRange(ctx, f.DoctorID, f.From, f.To)
	var matched []*Slot
	for _, s := range all {
		if f.Status == nil || s.Status == *f.Status {
			matched = append(matched, s)
		}
	}
	total := len(matched)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func sortSlots(out []*Slot) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Start < out[j].Start
	})
}
