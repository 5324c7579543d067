package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestGetCode(t *testing.T) {
	err := New(CodeInsufficientAP, "Insufficient AP")
	if GetCode(err) != CodeInsufficientAP {
		t.Fatalf("expected code %s, got %s", CodeInsufficientAP, GetCode(err))
	}
	if GetCode(stderrors.New("plain")) != CodeUnknown {
		t.Fatal("expected unknown code for plain error")
	}
}

func TestGetCodeUnwrapsChains(t *testing.T) {
	err := fmt.Errorf("handler: %w", New(CodeEntityNotFound, "Entity not found"))
	if GetCode(err) != CodeEntityNotFound {
		t.Fatalf("expected wrapped code, got %s", GetCode(err))
	}
}

func TestWrapExposesCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Wrap(cause, CodeStorage, "write entity")
	if !stderrors.Is(err, cause) {
		t.Fatal("expected errors.Is to find cause")
	}
	if GetCode(err) != CodeStorage {
		t.Fatalf("expected storage code, got %s", GetCode(err))
	}
}

func TestReason(t *testing.T) {
	if got := Reason(New(CodeGMRequired, "GM privileges required")); got != "GM privileges required" {
		t.Fatalf("unexpected reason %q", got)
	}
	if got := Reason(stderrors.New("secret detail")); got != "an unexpected error occurred" {
		t.Fatalf("expected generic reason, got %q", got)
	}
}

func TestWithMetadataDoesNotMutateOriginal(t *testing.T) {
	base := New(CodeCellOccupied, "Target cell is occupied")
	annotated := base.WithMetadata("entityId", "e1")
	if len(base.Metadata) != 0 {
		t.Fatal("expected original metadata untouched")
	}
	if annotated.Metadata["entityId"] != "e1" {
		t.Fatal("expected metadata on copy")
	}
}

func TestRejectable(t *testing.T) {
	cases := []struct {
		code Code
		want bool
	}{
		{CodeGMRequired, true},
		{CodeInsufficientEnergy, true},
		{CodeEntityNotFound, true},
		{CodeMalformedMessage, false},
		{CodeStorage, false},
		{CodeUnknown, false},
	}
	for _, tc := range cases {
		if got := tc.code.Rejectable(); got != tc.want {
			t.Fatalf("code %s: expected rejectable=%v, got %v", tc.code, tc.want, got)
		}
	}
}
