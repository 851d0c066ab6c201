//go:build integration

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/slotengine/internal/platform/clock"
	"github.com/clinic/slotengine/internal/platform/db/dbtest"
)

func TestPostgres_GenerateAndBook(t *testing.T) {
	ctx := context.Background()
	pool, cleanup, err := dbtest.Start(ctx)
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}
	defer cleanup()
	if err := dbtest.Truncate(ctx, pool); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	fake := clock.NewFake(time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC))
	a, err := newApp(testConfig(), zerolog.Nop(), fake, pgStores(pool))
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	e := a.withPool(pool).echo()
	doctor := uuid.NewString()

	if rec := do(t, e, http.MethodGet, "/health/db", "", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected healthy database, got %d: %s", rec.Code, rec.Body.String())
	}

	gen := `{"mode":"CUSTOM_CONTINUOUS","start_date":"2026-10-19","days_ahead":2,
		"templates":[{"start_time":"09:00","end_time":"10:00","gap_minutes":30}]}`
	rec := do(t, e, http.MethodPost, "/api/v1/doctors/"+doctor+"/slots/generate", gen, doctor, "doctor")
	if rec.Code != http.StatusCreated || !strings.Contains(rec.Body.String(), `"created":6`) {
		t.Fatalf("expected 6 slots, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, e, http.MethodPost, "/api/v1/doctors/"+doctor+"/slots/generate", gen, doctor, "doctor")
	if rec.Code != http.StatusCreated || !strings.Contains(rec.Body.String(), `"created":0`) {
		t.Fatalf("expected rerun to create nothing, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, e, http.MethodGet, "/api/v1/doctors/"+doctor+"/slots?date_from=2026-10-20&date_to=2026-10-20", "", doctor, "doctor")
	var list struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil || len(list.Data) != 2 {
		t.Fatalf("expected 2 slots on 2026-10-20, got %s", rec.Body.String())
	}
	slotID := list.Data[0].ID

	var wg sync.WaitGroup
	codes := make([]int, 8)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = do(t, e, http.MethodPost, "/api/v1/appointments", `{"slot_id":"`+slotID+`"}`, uuid.NewString(), "patient").Code
		}(i)
	}
	wg.Wait()
	booked := 0
	for _, c := range codes {
		if c == http.StatusCreated {
			booked++
		} else if c != http.StatusConflict {
			t.Errorf("unexpected status %d", c)
		}
	}
	if booked != 1 {
		t.Errorf("expected exactly one booking, got %d", booked)
	}

	fake.Advance(24 * time.Hour)
	report, err := a.generation.Tick(ctx, fake.Now())
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if report.Generated != 1 || report.Results[0].Created != 2 {
		t.Errorf("expected one doctor to gain one day of slots, got %+v", report)
	}
}
