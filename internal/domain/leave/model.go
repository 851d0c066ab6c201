package leave

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinic/slotengine/internal/domain/calendar"
	"github.com/clinic/slotengine/internal/platform/auth"
	"github.com/clinic/slotengine/internal/platform/fsm"
)

type Status string

const (
	StatusBooked   Status = "BOOKED"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusBooked, StatusApproved, StatusRejected:
		return st, true
	}
	return "", false
}

// Leave is a doctor's absence over an inclusive date range.
type Leave struct {
	ID        uuid.UUID `json:"id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	Status    Status    `json:"status"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (l *Leave) Range() calendar.DateRange {
	return calendar.DateRange{From: l.From, To: l.To}
}

// Transitions: only an approver decides on a requested leave.
var Transitions = fsm.NewTable("leave",
	fsm.Rule[Status]{Role: auth.RoleAdmin, Target: StatusApproved, From: []Status{StatusBooked}},
	fsm.Rule[Status]{Role: auth.RoleAdmin, Target: StatusRejected, From: []Status{StatusBooked}},
)
