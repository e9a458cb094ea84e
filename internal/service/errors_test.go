package service

import (
	"errors"
	"strings"
	"testing"
)

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Field: "question", Message: "cannot be empty"}
	if !strings.Contains(err.Error(), "question") || !strings.Contains(err.Error(), "cannot be empty") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestWrapError(t *testing.T) {
	base := errors.New("boom")
	wrapped := WrapError(base, "context")
	if !errors.Is(wrapped, base) {
		t.Error("wrapped error should unwrap to the base error")
	}
	if !strings.HasPrefix(wrapped.Error(), "context: ") {
		t.Errorf("unexpected message %q", wrapped.Error())
	}
	if WrapError(nil, "context") != nil {
		t.Error("wrapping nil should return nil")
	}
}
