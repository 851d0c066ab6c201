package calendar

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clinic/slotengine/internal/platform/auth"
	"github.com/clinic/slotengine/internal/platform/clock"
	"github.com/clinic/slotengine/internal/platform/db"
	"github.com/clinic/slotengine/internal/platform/validation"
)

type Handler struct {
	svc *HolidayService
}

func NewHandler(svc *HolidayService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.POST("/holidays", h.CreateHoliday)

	read := api.Group("", auth.RequireRole(auth.RolePatient, auth.RoleDoctor))
	read.GET("/holidays", h.ListHolidays)
}

func (h *Handler) CreateHoliday(c echo.Context) error {
	var req CreateHolidayRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	hol, err := h.svc.CreateHoliday(c.Request().Context(), req)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, hol)
}

// ListHolidays defaults to the current calendar year.
func (h *Handler) ListHolidays(c echo.Context) error {
	now := time.Now().UTC()
	from := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(now.Year(), time.December, 31, 0, 0, 0, 0, time.UTC)

	var err error
	if v := c.QueryParam("from"); v != "" {
		if from, err = clock.ParseDate(v); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid from, expected YYYY-MM-DD")
		}
	}
	if v := c.QueryParam("to"); v != "" {
		if to, err = clock.ParseDate(v); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid to, expected YYYY-MM-DD")
		}
	}

	items, err := h.svc.ListHolidays(c.Request().Context(), from, to)
	if err != nil {
		return toHTTPError(err)
	}
	if items == nil {
		items = []*Holiday{}
	}
	return c.JSON(http.StatusOK, items)
}

func toHTTPError(err error) error {
	var ve *validation.Error
	var se *db.StorageError
	switch {
	case errors.As(err, &ve):
		return echo.NewHTTPError(http.StatusBadRequest, ve)
	case errors.Is(err, ErrHolidayOnRestDay):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrDuplicateHoliday):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.As(err, &se):
		return echo.NewHTTPError(http.StatusInternalServerError, "storage failure")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
