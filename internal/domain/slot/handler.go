package slot

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/slotengine/internal/platform/auth"
	"github.com/clinic/slotengine/internal/platform/clock"
	"github.com/clinic/slotengine/internal/platform/db"
	"github.com/clinic/slotengine/internal/platform/validation"
	"github.com/clinic/slotengine/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RolePatient, auth.RoleDoctor))
	read.GET("/doctors/:doctor_id/slots", h.ListSlots)
	read.GET("/slots/:id", h.GetSlot)

	write := api.Group("", auth.RequireRole(auth.RoleDoctor), auth.RequireSelfOrAdmin("doctor_id"))
	write.DELETE("/doctors/:doctor_id/slots", h.DeleteSlots)
}

func (h *Handler) GetSlot(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	sl, err := h.svc.GetSlot(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, sl)
}

func (h *Handler) ListSlots(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("doctor_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
	}
	f := ListFilter{DoctorID: doctorID}
	if f.From, err = optionalDate(c, "date_from"); err != nil {
		return err
	}
	if f.To, err = optionalDate(c, "date_to"); err != nil {
		return err
	}
	if raw := c.QueryParam("status"); raw != "" {
		st, ok := ParseStatus(raw)
		if !ok {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid status: "+raw)
		}
		f.Status = &st
	}

	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListSlots(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type deleteResponse struct {
	Deleted int `json:"deleted"`
}

func (h *Handler) DeleteSlots(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("doctor_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
	}
	var r DeleteRange
	if r.DateFrom, err = optionalDate(c, "date_from"); err != nil {
		return err
	}
	if r.DateTo, err = optionalDate(c, "date_to"); err != nil {
		return err
	}
	if r.TimeFrom, err = optionalTime(c, "time_from"); err != nil {
		return err
	}
	if r.TimeTo, err = optionalTime(c, "time_to"); err != nil {
		return err
	}

	n, err := h.svc.DeleteRange(c.Request().Context(), doctorID, r)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, deleteResponse{Deleted: n})
}

func optionalDate(c echo.Context, name string) (d time.Time, err error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return d, nil
	}
	d, err = clock.ParseDate(raw)
	if err != nil {
		return d, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name+", expected YYYY-MM-DD")
	}
	return d, nil
}

func optionalTime(c echo.Context, name string) (*TimeOfDay, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	t, err := ParseTimeOfDay(raw)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name+", expected HH:MM")
	}
	return &t, nil
}

func toHTTPError(err error) error {
	var nde *NothingDeletedError
	var ve *validation.Error
	switch {
	case errors.As(err, &ve):
		return echo.NewHTTPError(http.StatusBadRequest, ve)
	case errors.Is(err, ErrInvalidTemplate):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.As(err, &nde):
		return echo.NewHTTPError(http.StatusConflict, map[string]interface{}{
			"error":          "nothing_deleted",
			"message":        nde.Error(),
			"booked_skipped": nde.BookedSkipped,
		})
	case errors.Is(err, db.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "slot not found")
	case errors.Is(err, ErrConflict), errors.Is(err, ErrSlotNotBookable):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	var se *db.StorageError
	if errors.As(err, &se) {
		return echo.NewHTTPError(http.StatusInternalServerError, "storage failure")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
