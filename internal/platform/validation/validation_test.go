package validation

import (
	"errors"
	"testing"
)

type sample struct {
	Date   string `json:"date" validate:"required,datetime=2006-01-02"`
	Reason string `json:"reason" validate:"max=5"`
	Items  []item `json:"items" validate:"dive"`
}

type item struct {
	From string `json:"from" validate:"required,datetime=15:04"`
}

func TestStruct_Valid(t *testing.T) {
	if err := Struct(sample{Date: "2026-10-19", Reason: "ok"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStruct_FirstFieldWins(t *testing.T) {
	err := Struct(sample{Reason: "far too long"})
	var ve *Error
	if !errors.As(err, &ve) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if len(ve.Fields) != 1 || ve.Fields[0].Field != "date" || ve.Fields[0].Message != "is required" {
		t.Errorf("unexpected fields: %+v", ve.Fields)
	}
}

func TestStruct_NestedPath(t *testing.T) {
	err := Struct(sample{Date: "2026-10-19", Items: []item{{From: "09:00"}, {From: "9am"}}})
	var ve *Error
	if !errors.As(err, &ve) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if ve.Fields[0].Field != "items[1].from" {
		t.Errorf("expected items[1].from, got %s", ve.Fields[0].Field)
	}
}

func TestFail(t *testing.T) {
	err := Fail("startDate", "must not be before %s", "2026-10-19")
	if err.Error() != "validation failed: startDate: must not be before 2026-10-19" {
		t.Errorf("unexpected message: %s", err.Error())
	}
}
