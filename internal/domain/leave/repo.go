package leave

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/slotengine/internal/domain/calendar"
)

type Repository interface {
	Create(ctx context.Context, l *Leave) error
	GetByID(ctx context.Context, id uuid.UUID) (*Leave, error)
	// FindOverlapping returns the doctor's non-rejected leaves intersecting [from, to].
	FindOverlapping(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*Leave, error)
	// UpdateStatus moves id from current to next and reports whether the row
	// was still in current.
	UpdateStatus(ctx context.Context, id uuid.UUID, current, next Status) (bool, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Leave, error)
	ApprovedRanges(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]calendar.DateRange, error)
}
