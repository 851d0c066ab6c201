package generation

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/slotengine/internal/domain/slot"
	"github.com/clinic/slotengine/internal/platform/db"
	"github.com/clinic/slotengine/internal/platform/validation"
)

func newGenerateContext(e *echo.Echo, doctorID uuid.UUID, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("doctor_id")
	c.SetParamValues(doctorID.String())
	return c, rec
}

func TestHandler_GenerateSlots(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc, f.prefSvc, f.clock)
	e := echo.New()
	doc := uuid.New()

	c, rec := newGenerateContext(e, doc, `{"mode":"CUSTOM_ONE_TIME","start_date":"2026-10-19","end_date":"2026-10-20",
		"templates":[{"start_time":"09:00","end_time":"10:00","gap_minutes":20}]}`)
	if err := h.GenerateSlots(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var res Result
	json.Unmarshal(rec.Body.Bytes(), &res)
	if res.Created != 6 {
		t.Errorf("expected 6 created, got %d", res.Created)
	}
}

func TestHandler_GenerateSlots_Errors(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc, f.prefSvc, f.clock)
	e := echo.New()
	doc := uuid.New()
	f.seed(t, doc, day(0), "09:10", "09:20", "AVAILABLE")

	cases := []struct {
		name string
		body string
		code int
	}{
		{"unknown mode", `{"mode":"SCHEDULED"}`, http.StatusBadRequest},
		{"validation", `{"mode":"CUSTOM_CONTINUOUS","start_date":"2026-10-19","days_ahead":40,
			"templates":[{"start_time":"09:00","end_time":"10:00","gap_minutes":20}]}`, http.StatusBadRequest},
		{"conflict", `{"mode":"MANUAL","fail_on_conflict":true,
			"slots":[{"date":"2026-10-19","from":"09:00","to":"09:30"}]}`, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newGenerateContext(e, doc, tc.body)
			err := h.GenerateSlots(c)
			he, ok := err.(*echo.HTTPError)
			if !ok || he.Code != tc.code {
				t.Errorf("expected %d, got %v", tc.code, err)
			}
		})
	}
}

func TestHandler_PreferenceLifecycle(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc, f.prefSvc, f.clock)
	e := echo.New()
	doc := uuid.New()

	c, _ := newGenerateContext(e, doc, "")
	err := h.GetPreference(c)
	if he, ok := err.(*echo.HTTPError); !ok || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before activation, got %v", err)
	}

	c, rec := newGenerateContext(e, doc, "")
	if err := h.ActivatePreference(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"is_active":true`) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}

	c, rec = newGenerateContext(e, doc, "")
	if err := h.DeactivatePreference(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"is_active":false`) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestHandler_Tick(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc, f.prefSvc, f.clock)
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/?date=2026-10-19", nil)
	rec := httptest.NewRecorder()
	if err := h.Tick(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var report TickReport
	json.Unmarshal(rec.Body.Bytes(), &report)
	if !report.Date.Equal(day(0)) {
		t.Errorf("unexpected report date %v", report.Date)
	}

	req = httptest.NewRequest(http.MethodPost, "/?date=tomorrow", nil)
	err := h.Tick(e.NewContext(req, httptest.NewRecorder()))
	if he, ok := err.(*echo.HTTPError); !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestToHTTPError_Status(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"validation", validation.Fail("doctor_id", "is required"), http.StatusBadRequest},
		{"invalid template", slot.ErrInvalidTemplate, http.StatusBadRequest},
		{"conflict", &slot.ConflictError{Date: day(0)}, http.StatusConflict},
		{"tick running", ErrTickInProgress, http.StatusConflict},
		{"no preference", db.ErrNotFound, http.StatusNotFound},
		{"storage", &db.StorageError{Op: "create slots", Err: errors.New("conn reset")}, http.StatusInternalServerError},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			he, ok := toHTTPError(tt.err).(*echo.HTTPError)
			if !ok || he.Code != tt.code {
				t.Errorf("expected %d, got %v", tt.code, he)
			}
		})
	}
}
