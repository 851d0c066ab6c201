package preference

import (
	"encoding/json"
	"fmt"

	"github.com/clinic/slotengine/internal/domain/slot"
)

// Request is a caller-facing generation request. The concrete types form a
// closed union keyed by mode; SCHEDULED has no request type.
type Request interface {
	Mode() slot.Mode
	FailsOnConflict() bool
}

type common struct {
	// FailOnConflict turns idempotent overlap skipping into a ConflictError.
	FailOnConflict bool `json:"fail_on_conflict"`
}

func (c common) FailsOnConflict() bool { return c.FailOnConflict }

// AutoRequest defers to the stored (or default) preference.
type AutoRequest struct {
	common
}

func (AutoRequest) Mode() slot.Mode { return slot.ModeAuto }

type ManualSlot struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
	From string `json:"from" validate:"required,datetime=15:04"`
	To   string `json:"to" validate:"required,datetime=15:04"`
}

// ManualRequest lists explicit intervals.
type ManualRequest struct {
	common
	Slots       []ManualSlot `json:"slots" validate:"required,min=1,dive"`
	SkipHoliday bool         `json:"skip_holiday"`
}

func (ManualRequest) Mode() slot.Mode { return slot.ModeManual }

// OneTimeRequest expands templates over a fixed range once.
type OneTimeRequest struct {
	common
	StartDate       string          `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate         string          `json:"end_date" validate:"required,datetime=2006-01-02"`
	Templates       []slot.Template `json:"templates" validate:"required,min=1"`
	SkipHoliday     bool            `json:"skip_holiday"`
	LastGeneratedOn *string         `json:"last_generated_on"`
}

func (OneTimeRequest) Mode() slot.Mode { return slot.ModeCustomOneTime }

// ContinuousRequest stores a recurring preference and generates its first window.
type ContinuousRequest struct {
	common
	StartDate       string          `json:"start_date" validate:"required,datetime=2006-01-02"`
	DaysAhead       *int            `json:"days_ahead" validate:"required"`
	Templates       []slot.Template `json:"templates" validate:"required,min=1"`
	SkipHoliday     bool            `json:"skip_holiday"`
	LastGeneratedOn *string         `json:"last_generated_on"`
}

func (ContinuousRequest) Mode() slot.Mode { return slot.ModeCustomContinuous }

// DecodeRequest reads the mode discriminator and decodes the matching variant.
func DecodeRequest(data []byte) (Request, error) {
	var head struct {
		Mode slot.Mode `json:"mode"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode generation request: %w", err)
	}

	var req Request
	switch head.Mode {
	case slot.ModeAuto:
		r := AutoRequest{}
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("decode generation request: %w", err)
		}
		req = r
	case slot.ModeManual:
		r := ManualRequest{}
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("decode generation request: %w", err)
		}
		req = r
	case slot.ModeCustomOneTime:
		r := OneTimeRequest{}
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("decode generation request: %w", err)
		}
		req = r
	case slot.ModeCustomContinuous:
		r := ContinuousRequest{}
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("decode generation request: %w", err)
		}
		req = r
	case "":
		return nil, fmt.Errorf("mode is required")
	default:
		return nil, fmt.Errorf("mode %s cannot be requested", head.Mode)
	}
	return req, nil
}
