package calendar

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryHolidayRepo is an in-process HolidayRepository.
type MemoryHolidayRepo struct {
	mu     sync.RWMutex
	byDate map[time.Time]*Holiday
}

func NewMemoryHolidayRepo() *MemoryHolidayRepo {
	return &MemoryHolidayRepo{byDate: make(map[time.Time]*Holiday)}
}

func (m *MemoryHolidayRepo) Create(_ context.Context, h *Holiday) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byDate[h.Date]; ok {
		return ErrDuplicateHoliday
	}
	h.CreatedAt = time.Now().UTC()
	cp := *h
	m.byDate[h.Date] = &cp
	return nil
}

func (m *MemoryHolidayRepo) ListRange(_ context.Context, from, to time.Time) ([]*Holiday, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Holiday
	r := DateRange{From: from, To: to}
	for d, h := range m.byDate {
		if r.Contains(d) {
			cp := *h
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}
