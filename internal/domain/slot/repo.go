package slot

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the slot store. Every method joins the unit of work bound to
// ctx, if there is one.
type Repository interface {
	// CreateBatch inserts slots atomically. Rows colliding with an identical
	// interval are skipped; the number actually inserted is returned.
	CreateBatch(ctx context.Context, slots []*Slot) (int, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Slot, error)
	// FindOverlapping returns non-cancelled slots on date intersecting iv.
	FindOverlapping(ctx context.Context, doctorID uuid.UUID, date time.Time, iv Interval) ([]*Slot, error)
	// FindByRange returns every slot, cancelled included, for the doctor
	// with from <= date <= to, ordered by date and start.
	FindByRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*Slot, error)
	// UpdateStatus moves a slot to next only if its status is one of from.
	// It reports whether the row changed.
	UpdateStatus(ctx context.Context, id uuid.UUID, from []Status, next Status) (bool, error)
	// CancelMany marks the given slots CANCELLED if they are still in one of from.
	CancelMany(ctx context.Context, ids []uuid.UUID, from []Status) (int, error)
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Slot, int, error)
}
