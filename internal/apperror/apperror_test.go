package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindsSurviveWrapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
	}{
		{"not found", NotFound("question", 7), ErrNotFound},
		{"validation", Validation("email", "email is required"), ErrValidation},
		{"conflict", Conflict("email already registered"), ErrConflict},
		{"forbidden", Forbidden("not the owner"), ErrForbidden},
		{"unauthorized", Unauthorized("invalid credentials"), ErrUnauthorized},
		{"rate limited", New(ErrRateLimited, "slow down"), ErrRateLimited},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("service: %w", tt.err)
			if !errors.Is(wrapped, tt.kind) {
				t.Errorf("errors.Is(%v, %v) = false", wrapped, tt.kind)
			}
			var appErr *AppError
			if !errors.As(wrapped, &appErr) {
				t.Fatalf("errors.As failed for %v", wrapped)
			}
			if appErr.Message == "" {
				t.Error("AppError.Message is empty")
			}
		})
	}
}

func TestNotFoundMessage(t *testing.T) {
	err := NotFound("answer", 12)
	if err.Error() != "answer 12 not found" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestValidationField(t *testing.T) {
	err := Validation("code", "code must be 6 digits")
	if err.Field != "code" {
		t.Errorf("Field = %q, want code", err.Field)
	}
}
