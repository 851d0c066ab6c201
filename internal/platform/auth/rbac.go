package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	RolePatient = "patient"
	RoleDoctor  = "doctor"
	RoleAdmin   = "admin"
)

// ErrForbidden is returned by services when the actor does not own the entity.
var ErrForbidden = errors.New("forbidden")

// rolePrecedence picks the acting role when a token carries several.
var rolePrecedence = []string{RoleAdmin, RoleDoctor, RolePatient}

// RequireRole returns middleware that checks if the user has at least one of the specified roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userRoles := RolesFromContext(c.Request().Context())
			for _, required := range roles {
				for _, has := range userRoles {
					if has == required || has == RoleAdmin {
						return next(c)
					}
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

// Actor is the authenticated caller as the domain sees it.
type Actor struct {
	ID   uuid.UUID
	Role string
}

// IsAdmin reports whether the actor acts with administrative rights.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// ActorFromContext resolves the caller's acting role by precedence. The
// subject must be a UUID for doctor and patient callers; admins may use any
// subject.
func ActorFromContext(ctx context.Context) (Actor, error) {
	roles := RolesFromContext(ctx)
	role := ""
	for _, candidate := range rolePrecedence {
		for _, has := range roles {
			if has == candidate {
				role = candidate
				break
			}
		}
		if role != "" {
			break
		}
	}
	if role == "" {
		return Actor{}, fmt.Errorf("caller has no recognised role")
	}

	id, err := uuid.Parse(UserIDFromContext(ctx))
	if err != nil && role != RoleAdmin {
		return Actor{}, fmt.Errorf("subject is not a valid user id")
	}
	return Actor{ID: id, Role: role}, nil
}

// RequireSelfOrAdmin rejects doctors acting on another doctor's :param.
func RequireSelfOrAdmin(param string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor, err := ActorFromContext(c.Request().Context())
			if err != nil {
				return echo.NewHTTPError(http.StatusForbidden, err.Error())
			}
			if actor.IsAdmin() {
				return next(c)
			}
			target, err := uuid.Parse(c.Param(param))
			if err != nil || target != actor.ID {
				return echo.NewHTTPError(http.StatusForbidden, "cannot act on another user's calendar")
			}
			return next(c)
		}
	}
}
