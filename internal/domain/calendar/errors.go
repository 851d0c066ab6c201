package calendar

import "errors"

var (
	ErrDuplicateHoliday = errors.New("holiday already registered for this date")
	ErrHolidayOnRestDay = errors.New("holiday falls on the weekly rest day")
)
