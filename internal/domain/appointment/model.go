package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinic/slotengine/internal/platform/auth"
	"github.com/clinic/slotengine/internal/platform/fsm"
)

type Status string

const (
	StatusBooked     Status = "BOOKED"
	StatusApproved   Status = "APPROVED"
	StatusRejected   Status = "REJECTED"
	StatusCompleted  Status = "COMPLETED"
	StatusPCancelled Status = "P_CANCELLED"
	StatusDCancelled Status = "D_CANCELLED"
)

var allStatuses = []Status{StatusBooked, StatusApproved, StatusRejected, StatusCompleted, StatusPCancelled, StatusDCancelled}

func ParseStatus(s string) (Status, bool) {
	for _, st := range allStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// ReleasesSlot reports whether reaching s makes the slot bookable again.
func (s Status) ReleasesSlot() bool {
	return s == StatusPCancelled || s == StatusDCancelled
}

type Appointment struct {
	ID           uuid.UUID  `json:"id"`
	SlotID       uuid.UUID  `json:"slot_id"`
	DoctorID     uuid.UUID  `json:"doctor_id"`
	PatientID    uuid.UUID  `json:"patient_id"`
	SubProfileID *uuid.UUID `json:"sub_profile_id,omitempty"`
	Status       Status     `json:"status"`
	Note         string     `json:"note,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

var cancellable = []Status{StatusBooked, StatusApproved}

// Transitions is the role-scoped appointment state machine.
var Transitions = fsm.NewTable("appointment",
	fsm.Rule[Status]{Role: auth.RolePatient, Target: StatusPCancelled, From: cancellable},

	fsm.Rule[Status]{Role: auth.RoleDoctor, Target: StatusApproved, From: []Status{StatusBooked}},
	fsm.Rule[Status]{Role: auth.RoleDoctor, Target: StatusDCancelled, From: cancellable},
	fsm.Rule[Status]{Role: auth.RoleDoctor, Target: StatusCompleted, From: []Status{StatusApproved}},

	fsm.Rule[Status]{Role: auth.RoleAdmin, Target: StatusApproved, From: []Status{StatusBooked}},
	fsm.Rule[Status]{Role: auth.RoleAdmin, Target: StatusDCancelled, From: cancellable},
	fsm.Rule[Status]{Role: auth.RoleAdmin, Target: StatusPCancelled, From: cancellable},
	fsm.Rule[Status]{Role: auth.RoleAdmin, Target: StatusCompleted, From: []Status{StatusApproved}},
)
