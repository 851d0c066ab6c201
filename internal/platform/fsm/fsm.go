// Package fsm evaluates role-scoped status transition tables.
//
// A table is data: for every (role, target) pair it lists the current
// statuses the transition may start from. Adding a role or status means
// adding rows, not branches.
package fsm

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrInvalidTransitionRequest is matched by *InvalidTransitionRequestError.
	ErrInvalidTransitionRequest = errors.New("invalid transition request")
	// ErrTransitionNotAllowed is matched by *TransitionNotAllowedError.
	ErrTransitionNotAllowed = errors.New("transition not allowed")
)

// InvalidTransitionRequestError means the role may never request Target.
type InvalidTransitionRequestError struct {
	Entity string
	Role   string
	Target string
}

func (e *InvalidTransitionRequestError) Error() string {
	return fmt.Sprintf("%s may not request %s status %s", e.Role, e.Entity, e.Target)
}

func (e *InvalidTransitionRequestError) Is(target error) bool {
	return target == ErrInvalidTransitionRequest
}

// TransitionNotAllowedError means Target is valid for the role but not from
// the Current status.
type TransitionNotAllowedError struct {
	Entity  string
	Role    string
	Current string
	Target  string
	Allowed []string
}

func (e *TransitionNotAllowedError) Error() string {
	return fmt.Sprintf("cannot move %s to %s: already %s (allowed from %s)",
		e.Entity, e.Target, e.Current, strings.Join(e.Allowed, ", "))
}

func (e *TransitionNotAllowedError) Is(target error) bool {
	return target == ErrTransitionNotAllowed
}

// Rule grants Role the right to move an entity to Target from any of From.
type Rule[S ~string] struct {
	Role   string
	Target S
	From   []S
}

// Table is an immutable transition table for one entity kind.
type Table[S ~string] struct {
	entity string
	rules  map[string]map[S]map[S]bool
}

// NewTable builds a table. Rules for the same (role, target) are merged.
func NewTable[S ~string](entity string, rules ...Rule[S]) *Table[S] {
	t := &Table[S]{entity: entity, rules: make(map[string]map[S]map[S]bool)}
	for _, r := range rules {
		targets, ok := t.rules[r.Role]
		if !ok {
			targets = make(map[S]map[S]bool)
			t.rules[r.Role] = targets
		}
		from, ok := targets[r.Target]
		if !ok {
			from = make(map[S]bool)
			targets[r.Target] = from
		}
		for _, f := range r.From {
			from[f] = true
		}
	}
	return t
}

// Check returns nil when role may move current to target. The target check
// runs first, so a role asking for a status it can never set gets
// *InvalidTransitionRequestError whatever the current status is.
func (t *Table[S]) Check(role string, current, target S) error {
	from, ok := t.rules[role][target]
	if !ok {
		return &InvalidTransitionRequestError{Entity: t.entity, Role: role, Target: string(target)}
	}
	if !from[current] {
		return &TransitionNotAllowedError{
			Entity:  t.entity,
			Role:    role,
			Current: string(current),
			Target:  string(target),
			Allowed: sortedKeys(from),
		}
	}
	return nil
}

// CanTransition is Check as a predicate.
func (t *Table[S]) CanTransition(role string, current, target S) bool {
	return t.Check(role, current, target) == nil
}

// Targets lists the statuses role may ever request, sorted.
func (t *Table[S]) Targets(role string) []S {
	out := make([]S, 0, len(t.rules[role]))
	for target := range t.rules[role] {
		out = append(out, target)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedKeys[S ~string](m map[S]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, string(k))
	}
	sort.Strings(out)
	return out
}
