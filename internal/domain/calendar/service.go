package calendar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/clinic/slotengine/internal/platform/clock"
	"github.com/clinic/slotengine/internal/platform/db"
	"github.com/clinic/slotengine/internal/platform/validation"
)

type HolidayService struct {
	repo HolidayRepository
	rest RestDay
}

func NewHolidayService(repo HolidayRepository, rest RestDay) *HolidayService {
	return &HolidayService{repo: repo, rest: rest}
}

type CreateHolidayRequest struct {
	Date   string `json:"date" yaml:"date" validate:"required,datetime=2006-01-02"`
	Reason string `json:"reason" yaml:"reason" validate:"required,max=255"`
}

func (s *HolidayService) CreateHoliday(ctx context.Context, req CreateHolidayRequest) (*Holiday, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	date, err := clock.ParseDate(req.Date)
	if err != nil {
		return nil, validation.Fail("date", "%v", err)
	}
	if s.rest.Is(date) {
		return nil, fmt.Errorf("%w: %s is a %s", ErrHolidayOnRestDay, req.Date, s.rest)
	}
	h := &Holiday{ID: uuid.New(), Date: date, Reason: req.Reason}
	if err := s.repo.Create(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

func (s *HolidayService) ListHolidays(ctx context.Context, from, to time.Time) ([]*Holiday, error) {
	if to.Before(from) {
		return nil, validation.Fail("to", "must not be before from")
	}
	return s.repo.ListRange(ctx, from, to)
}

// holidayFile is the YAML import document:
//
//	holidays:
//	  - date: 2026-12-25
//	    reason: Christmas Day
type holidayFile struct {
	Holidays []CreateHolidayRequest `yaml:"holidays"`
}

type ImportResult struct {
	Created  int      `json:"created"`
	Skipped  int      `json:"skipped"`
	Failures []string `json:"failures,omitempty"`
}

// Import loads holidays from a YAML document. Already registered dates are
// counted as skipped; invalid entries are reported and do not stop the load.
func (s *HolidayService) Import(ctx context.Context, r io.Reader) (*ImportResult, error) {
	var doc holidayFile
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode holiday file: %w", err)
	}

	res := &ImportResult{}
	for i, req := range doc.Holidays {
		_, err := s.CreateHoliday(ctx, req)
		switch {
		case err == nil:
			res.Created++
		case errors.Is(err, ErrDuplicateHoliday):
			res.Skipped++
		default:
			var se *db.StorageError
			if errors.As(err, &se) {
				return res, err
			}
			res.Failures = append(res.Failures, fmt.Sprintf("entry %d (%s): %v", i, req.Date, err))
		}
	}
	return res, nil
}
