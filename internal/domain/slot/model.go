package slot

import (
	"time"

	"github.com/google/uuid"
)

// Status is the booking state of a slot.
type Status string

const (
	StatusAvailable   Status = "AVAILABLE"
	StatusReAvailable Status = "RE_AVAILABLE"
	StatusBooked      Status = "BOOKED"
	StatusCancelled   Status = "CANCELLED"
)

var validStatuses = map[Status]bool{
	StatusAvailable: true, StatusReAvailable: true, StatusBooked: true, StatusCancelled: true,
}

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, bool) {
	st := Status(s)
	return st, validStatuses[st]
}

// Bookable reports whether a patient may book a slot in this state.
func (s Status) Bookable() bool {
	return s == StatusAvailable || s == StatusReAvailable
}

// Occupies reports whether a slot in this state takes part in the
// no-overlap invariant. Only cancelled slots give their interval back.
func (s Status) Occupies() bool {
	return s != StatusCancelled
}

// Mode names how a slot or generation run came to be.
type Mode string

const (
	ModeAuto             Mode = "AUTO"
	ModeManual           Mode = "MANUAL"
	ModeCustomOneTime    Mode = "CUSTOM_ONE_TIME"
	ModeCustomContinuous Mode = "CUSTOM_CONTINUOUS"
	// ModeScheduled marks runs started by the recurring scheduler. Callers
	// never submit it.
	ModeScheduled Mode = "SCHEDULED"
)

// Slot is one bookable interval for a doctor on a date.
type Slot struct {
	ID             uuid.UUID `db:"id" json:"id"`
	DoctorID       uuid.UUID `db:"doctor_id" json:"doctor_id"`
	Date           time.Time `db:"slot_date" json:"date"`
	Start          TimeOfDay `db:"start_time" json:"start_time"`
	End            TimeOfDay `db:"end_time" json:"end_time"`
	Status         Status    `db:"status" json:"status"`
	GenerationMode Mode      `db:"generation_mode" json:"generation_mode"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Interval returns the slot's time window.
func (s *Slot) Interval() Interval {
	return Interval{Start: s.Start, End: s.End}
}

// Interval is a half-open [Start, End) window within one day.
type Interval struct {
	Start TimeOfDay `json:"start_time"`
	End   TimeOfDay `json:"end_time"`
}

// Overlaps reports whether two half-open intervals share any minute.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start < o.End && o.Start < i.End
}

// Within reports whether i lies entirely inside o.
func (i Interval) Within(o Interval) bool {
	return i.Start >= o.Start && i.End <= o.End
}

func (i Interval) String() string {
	return i.Start.String() + "-" + i.End.String()
}

// ListFilter narrows slot listings.
type ListFilter struct {
	DoctorID uuid.UUID
	From     time.Time
	To       time.Time
	Status   *Status
}
