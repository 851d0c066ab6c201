package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/slotengine/internal/config"
	"github.com/clinic/slotengine/internal/platform/clock"
)

func testConfig() *config.Config {
	return &config.Config{
		Env: "development", Store: "memory",
		CORSOrigins:  []string{"http://localhost:3000"},
		RateLimitRPS: 1000, RateLimitBurst: 1000,
		MaxGenerationDays: 15, WeeklyOffDay: "sunday", Timezone: "UTC",
		SchedulerEnabled: true, SchedulerCron: "5 0 * * *", SchedulerConcurrency: 2,
		DefaultDaysAhead: 3, DefaultTemplates: "09:00-10:00/30",
	}
}

func newTestApp(t *testing.T) (*app, *clock.Fake) {
	t.Helper()
	fake := clock.NewFake(time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC))
	a, err := newApp(testConfig(), zerolog.Nop(), fake, memoryStores())
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	return a, fake
}

func do(t *testing.T, e *echo.Echo, method, path, body, user, role string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if user != "" {
		req.Header.Set("X-Dev-User", user)
		req.Header.Set("X-Dev-Role", role)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	a, _ := newTestApp(t)
	e := a.echo()

	rec := do(t, e, http.MethodGet, "/health", "", "", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	rec = do(t, e, http.MethodGet, "/health/db", "", "", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 from memory store health, got %d", rec.Code)
	}
	if rec.Header().Get(echo.HeaderXRequestID) == "" {
		t.Error("expected request id header")
	}
}

func TestGenerateBookAndCancel(t *testing.T) {
	a, _ := newTestApp(t)
	e := a.echo()
	doctor, patient := uuid.NewString(), uuid.NewString()

	gen := `{"mode":"CUSTOM_ONE_TIME","start_date":"2026-10-20","end_date":"2026-10-20",
		"templates":[{"start_time":"09:00","end_time":"10:00","gap_minutes":30}]}`
	rec := do(t, e, http.MethodPost, "/api/v1/doctors/"+doctor+"/slots/generate", gen, doctor, "doctor")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"created":2`) {
		t.Errorf("expected two slots created, got %s", rec.Body.String())
	}

	rec = do(t, e, http.MethodPost, "/api/v1/doctors/"+uuid.NewString()+"/slots/generate", gen, doctor, "doctor")
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 generating for another doctor, got %d", rec.Code)
	}

	rec = do(t, e, http.MethodGet, "/api/v1/doctors/"+doctor+"/slots?date_from=2026-10-20&date_to=2026-10-20", "", patient, "patient")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var list struct {
		Data []struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"data"`
		Total int `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if list.Total != 2 {
		t.Fatalf("expected 2 slots, got %d", list.Total)
	}
	slotID := list.Data[0].ID

	rec = do(t, e, http.MethodPost, "/api/v1/appointments", `{"slot_id":"`+slotID+`"}`, patient, "patient")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var appt struct {
		ID string `json:"id"`
	}
	json.Unmarshal(rec.Body.Bytes(), &appt)

	rec = do(t, e, http.MethodPost, "/api/v1/appointments", `{"slot_id":"`+slotID+`"}`, uuid.NewString(), "patient")
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 on double booking, got %d", rec.Code)
	}

	rec = do(t, e, http.MethodPatch, "/api/v1/appointments/"+appt.ID+"/status", `{"status":"P_CANCELLED"}`, patient, "patient")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, e, http.MethodGet, "/api/v1/slots/"+slotID, "", patient, "patient")
	if !strings.Contains(rec.Body.String(), `"status":"RE_AVAILABLE"`) {
		t.Errorf("expected released slot, got %s", rec.Body.String())
	}
}

func TestScheduledTickRunsThroughScheduler(t *testing.T) {
	a, _ := newTestApp(t)
	e := a.echo()
	doctor := uuid.NewString()

	rec := do(t, e, http.MethodPost, "/api/v1/doctors/"+doctor+"/preference/activate", "", doctor, "doctor")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	s, err := a.scheduler()
	if err != nil {
		t.Fatalf("scheduler: %v", err)
	}
	if err := s.RunNow(context.Background(), tickJob); err != nil {
		t.Fatalf("tick: %v", err)
	}

	rec = do(t, e, http.MethodGet, "/api/v1/doctors/"+doctor+"/preference", "", doctor, "doctor")
	if !strings.Contains(rec.Body.String(), `"last_generated_on":"2026-10-22`) {
		t.Errorf("expected marker at today+3, got %s", rec.Body.String())
	}
}

func TestProductionRequiresToken(t *testing.T) {
	cfg := testConfig()
	cfg.Env = "production"
	cfg.AuthIssuer = "https://idp.clinic.test"
	cfg.AuthSigningKey = "secret"
	a, err := newApp(cfg, zerolog.Nop(), clock.System, memoryStores())
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	e := a.echo()

	if rec := do(t, e, http.MethodGet, "/api/v1/holidays", "", "", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}
	if rec := do(t, e, http.MethodGet, "/health", "", "", ""); rec.Code != http.StatusOK {
		t.Errorf("expected public health check, got %d", rec.Code)
	}
}
