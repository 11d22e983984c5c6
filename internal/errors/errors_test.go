package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "error without cause",
			err:  &AppError{Code: ErrCodeNotFound, Message: "forecast job not found"},
			want: "forecast job not found",
		},
		{
			name: "error with cause",
			err: &AppError{
				Code:    ErrCodeInternal,
				Message: "claim next pending",
				Cause:   errors.New("connection reset"),
			},
			want: "claim next pending: connection reset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("AppError.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := Wrap(cause, ErrCodeInternal, "wrapped")

	if !errors.Is(err, cause) {
		t.Errorf("errors.Is(Wrap(cause), cause) = false, want true")
	}
	if Wrap(nil, ErrCodeInternal, "nothing") != nil {
		t.Errorf("Wrap(nil) should return nil")
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		code ErrorCode
		msg  string
	}{
		{"not found", NotFound("job missing"), ErrCodeNotFound, "job missing"},
		{"not foundf", NotFoundf("job %s missing", "abc"), ErrCodeNotFound, "job abc missing"},
		{"conflict", Conflict("duplicate"), ErrCodeConflict, "duplicate"},
		{"validation", Validation("bad range"), ErrCodeValidation, "bad range"},
		{"validationf", Validationf("range %d days", 400), ErrCodeValidation, "range 400 days"},
		{"internal", Internal("boom"), ErrCodeInternal, "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Code = %v, want %v", tt.err.Code, tt.code)
			}
			if tt.err.Message != tt.msg {
				t.Errorf("Message = %q, want %q", tt.err.Message, tt.msg)
			}
		})
	}
}

func TestValidationField(t *testing.T) {
	err := ValidationField("target_to", "target_from must be on or before target_to")
	if !IsValidation(err) {
		t.Fatalf("IsValidation() = false, want true")
	}
	if got := GetField(err); got != "target_to" {
		t.Errorf("GetField() = %q, want %q", got, "target_to")
	}
}

func TestPredicatesThroughWrapping(t *testing.T) {
	base := NotFound("forecast job not found")
	wrapped := fmt.Errorf("get job: %w", base)

	if !IsNotFound(wrapped) {
		t.Errorf("IsNotFound(wrapped) = false, want true")
	}
	if IsConflict(wrapped) {
		t.Errorf("IsConflict(wrapped) = true, want false")
	}
	if got := GetCode(wrapped); got != ErrCodeNotFound {
		t.Errorf("GetCode() = %v, want %v", got, ErrCodeNotFound)
	}
	if got := GetCode(errors.New("plain")); got != "" {
		t.Errorf("GetCode(plain) = %v, want empty", got)
	}
	if GetField(errors.New("plain")) != "" || GetConstraint(errors.New("plain")) != "" {
		t.Errorf("plain errors should have no field or constraint")
	}
}
