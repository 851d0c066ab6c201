package calendar

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// HolidayRepository persists the holiday calendar.
type HolidayRepository interface {
	// Create returns ErrDuplicateHoliday when the date is already registered.
	Create(ctx context.Context, h *Holiday) error
	ListRange(ctx context.Context, from, to time.Time) ([]*Holiday, error)
}

// LeaveSource answers which dates a doctor is on approved leave.
type LeaveSource interface {
	ApprovedRanges(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]DateRange, error)
}
