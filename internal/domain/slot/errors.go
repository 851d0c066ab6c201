package slot

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidTemplate means a template's start/end/gap arithmetic is impossible.
	ErrInvalidTemplate = errors.New("invalid template")
	// ErrSlotNotBookable means the slot is booked, cancelled or in the past.
	ErrSlotNotBookable = errors.New("slot is not available for booking")
	// ErrNothingDeleted is matched by *NothingDeletedError.
	ErrNothingDeleted = errors.New("no slots qualified for deletion")
	// ErrConflict is matched by *ConflictError.
	ErrConflict = errors.New("slot overlaps an existing slot")
)

// ConflictError reports a candidate interval that overlaps an existing
// non-cancelled slot when the caller asked not to skip overlaps.
type ConflictError struct {
	DoctorID uuid.UUID
	Date     time.Time
	Interval Interval
	Existing Interval
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("slot %s on %s overlaps existing slot %s",
		e.Interval, e.Date.Format("2006-01-02"), e.Existing)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// NothingDeletedError is returned by a bulk delete that matched no deletable
// slot. BookedSkipped tells "range only had bookings" apart from "range was
// empty".
type NothingDeletedError struct {
	BookedSkipped int
}

func (e *NothingDeletedError) Error() string {
	if e.BookedSkipped > 0 {
		return fmt.Sprintf("no slots deleted: %d booked slot(s) in range were kept", e.BookedSkipped)
	}
	return "no slots deleted: no available slots in range"
}

func (e *NothingDeletedError) Is(target error) bool { return target == ErrNothingDeleted }
