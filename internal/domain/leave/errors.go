package leave

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/clinic/slotengine/internal/domain/calendar"
)

var ErrOverlap = errors.New("leave overlaps an existing request")

// OverlapError reports the non-rejected leave that blocks a new request.
type OverlapError struct {
	Requested calendar.DateRange
	Existing  uuid.UUID
	Status    Status
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("leave %s overlaps %s leave %s", e.Requested, e.Status, e.Existing)
}

func (e *OverlapError) Is(target error) bool { return target == ErrOverlap }
