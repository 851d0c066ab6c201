package generation

import (
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/slotengine/internal/domain/preference"
	"github.com/clinic/slotengine/internal/domain/slot"
	"github.com/clinic/slotengine/internal/platform/auth"
	"github.com/clinic/slotengine/internal/platform/clock"
	"github.com/clinic/slotengine/internal/platform/db"
	"github.com/clinic/slotengine/internal/platform/validation"
)

type Handler struct {
	svc   *Service
	prefs *preference.Service
	clock clock.Clock
}

func NewHandler(svc *Service, prefs *preference.Service, c clock.Clock) *Handler {
	return &Handler{svc: svc, prefs: prefs, clock: c}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	doctor := api.Group("/doctors/:doctor_id", auth.RequireRole(auth.RoleDoctor), auth.RequireSelfOrAdmin("doctor_id"))
	doctor.POST("/slots/generate", h.GenerateSlots)
	doctor.GET("/preference", h.GetPreference)
	doctor.POST("/preference/activate", h.ActivatePreference)
	doctor.POST("/preference/deactivate", h.DeactivatePreference)

	admin := api.Group("/admin", auth.RequireRole(auth.RoleAdmin))
	admin.POST("/generation/tick", h.Tick)
}

func doctorParam(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("doctor_id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
	}
	return id, nil
}

func (h *Handler) GenerateSlots(c echo.Context) error {
	doctorID, err := doctorParam(c)
	if err != nil {
		return err
	}
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<20))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	req, err := preference.DecodeRequest(body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.svc.GenerateSlots(c.Request().Context(), doctorID, req)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *Handler) GetPreference(c echo.Context) error {
	doctorID, err := doctorParam(c)
	if err != nil {
		return err
	}
	p, err := h.prefs.Get(c.Request().Context(), doctorID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ActivatePreference(c echo.Context) error {
	doctorID, err := doctorParam(c)
	if err != nil {
		return err
	}
	p, err := h.prefs.Activate(c.Request().Context(), doctorID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeactivatePreference(c echo.Context) error {
	doctorID, err := doctorParam(c)
	if err != nil {
		return err
	}
	p, err := h.prefs.Deactivate(c.Request().Context(), doctorID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, p)
}

// Tick runs the scheduled catch-up now. ?date=YYYY-MM-DD replays a given day.
func (h *Handler) Tick(c echo.Context) error {
	var (
		report *TickReport
		err    error
	)
	if v := c.QueryParam("date"); v != "" {
		d, perr := clock.ParseDate(v)
		if perr != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		}
		report, err = h.svc.TickDate(c.Request().Context(), d)
	} else {
		report, err = h.svc.Tick(c.Request().Context(), h.clock.Now())
	}
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, report)
}

func toHTTPError(err error) error {
	var ve *validation.Error
	var ce *slot.ConflictError
	var se *db.StorageError
	switch {
	case errors.As(err, &ve):
		return echo.NewHTTPError(http.StatusBadRequest, ve)
	case errors.Is(err, slot.ErrInvalidTemplate):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.As(err, &ce):
		return echo.NewHTTPError(http.StatusConflict, map[string]interface{}{
			"error":    "conflict",
			"message":  ce.Error(),
			"date":     ce.Date.Format(clock.DateLayout),
			"existing": ce.Existing.String(),
		})
	case errors.Is(err, ErrTickInProgress):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, db.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "preference not found")
	case errors.As(err, &se):
		return echo.NewHTTPError(http.StatusInternalServerError, "storage failure")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
