package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func contextAs(user string, roles ...string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithIdentity(req.Context(), user, roles))
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func ok(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name     string
		required []string
		has      []string
		allowed  bool
	}{
		{"exact", []string{RoleDoctor}, []string{RoleDoctor}, true},
		{"one of", []string{RolePatient, RoleDoctor}, []string{RolePatient}, true},
		{"admin passes", []string{RoleDoctor}, []string{RoleAdmin}, true},
		{"patient on doctor route", []string{RoleDoctor}, []string{RolePatient}, false},
		{"no roles", []string{RolePatient}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := contextAs(uuid.NewString(), tt.has...)
			err := RequireRole(tt.required...)(ok)(c)
			if tt.allowed && err != nil {
				t.Errorf("expected access, got %v", err)
			}
			if !tt.allowed {
				httpErr, isHTTP := err.(*echo.HTTPError)
				if !isHTTP || httpErr.Code != http.StatusForbidden {
					t.Errorf("expected 403, got %v", err)
				}
			}
		})
	}
}

func TestRequireSelfOrAdmin(t *testing.T) {
	doctor := uuid.New()

	c, _ := contextAs(doctor.String(), RoleDoctor)
	c.SetParamNames("doctor_id")
	c.SetParamValues(doctor.String())
	if err := RequireSelfOrAdmin("doctor_id")(ok)(c); err != nil {
		t.Errorf("expected own calendar to pass, got %v", err)
	}

	c, _ = contextAs(doctor.String(), RoleDoctor)
	c.SetParamNames("doctor_id")
	c.SetParamValues(uuid.NewString())
	if err := RequireSelfOrAdmin("doctor_id")(ok)(c); err == nil {
		t.Error("expected another doctor's calendar to be refused")
	}

	c, _ = contextAs("ops", RoleAdmin)
	c.SetParamNames("doctor_id")
	c.SetParamValues(doctor.String())
	if err := RequireSelfOrAdmin("doctor_id")(ok)(c); err != nil {
		t.Errorf("expected admin to pass, got %v", err)
	}
}

func TestActorFromContext(t *testing.T) {
	id := uuid.New()

	actor, err := ActorFromContext(WithIdentity(context.Background(), id.String(), []string{RolePatient, RoleDoctor}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if actor.Role != RoleDoctor || actor.ID != id {
		t.Errorf("expected doctor to win precedence, got %+v", actor)
	}

	if _, err := ActorFromContext(WithIdentity(context.Background(), "not-a-uuid", []string{RolePatient})); err == nil {
		t.Error("expected error for non-uuid patient subject")
	}
	admin, err := ActorFromContext(WithIdentity(context.Background(), "ops", []string{RoleAdmin}))
	if err != nil || !admin.IsAdmin() {
		t.Errorf("expected admin actor, got %+v (%v)", admin, err)
	}
	if _, err := ActorFromContext(WithIdentity(context.Background(), id.String(), []string{"nurse"})); err == nil {
		t.Error("expected error for unknown role")
	}
}
