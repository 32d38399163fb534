package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestAppError_New_Retryable(t *testing.T) {
	err := New(ErrCodeTimeout, "timed out", http.StatusGatewayTimeout)
	if !err.Retryable {
		t.Error("TIMEOUT should be retryable")
	}
	err = New(ErrCodeNotFound, "gone", http.StatusNotFound)
	if err.Retryable {
		t.Error("NOT_FOUND should not be retryable")
	}
}

func TestAppError_GenerationFailed(t *testing.T) {
	err := GenerationFailed("abc", 2)
	if err.Code != ErrCodeGenerationFailed {
		t.Errorf("expected GENERATION_FAILED, got %s", err.Code)
	}
	if err.Details["source"] != "abc" {
		t.Errorf("expected source=abc, got %v", err.Details["source"])
	}
	if err.Details["position"] != 2 {
		t.Errorf("expected position=2, got %v", err.Details["position"])
	}
	if err.Message != "Producer failed!" {
		t.Errorf("unexpected message %q", err.Message)
	}
}

func TestAppError_Timeout(t *testing.T) {
	err := Timeout("queue.pop")
	if err.HTTPStatus != http.StatusGatewayTimeout {
		t.Errorf("expected 504, got %d", err.HTTPStatus)
	}
	if !strings.Contains(err.Error(), "queue.pop timed out") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestAppError_WithCause_Chain(t *testing.T) {
	sentinel := stderrors.New("queue idle")
	err := Timeout("queue.pop").WithCause(sentinel)
	if !stderrors.Is(err, sentinel) {
		t.Error("expected errors.Is to find the cause")
	}
	if !strings.Contains(err.Error(), "cause: queue idle") {
		t.Errorf("expected cause in message, got %q", err.Error())
	}
}

func TestAppError_IsByCode(t *testing.T) {
	wrapped := fmt.Errorf("run: %w", GenerationFailed("x", 0))
	if !stderrors.Is(wrapped, &AppError{Code: ErrCodeGenerationFailed}) {
		t.Error("expected code match through wrapping")
	}
	if stderrors.Is(wrapped, &AppError{Code: ErrCodeTimeout}) {
		t.Error("different code must not match")
	}
}

func TestAppError_WithDetails(t *testing.T) {
	err := Validation("bad").WithDetails(map[string]any{"a": 1}).WithDetail("b", 2)
	if err.Details["a"] != 1 || err.Details["b"] != 2 {
		t.Errorf("unexpected details %v", err.Details)
	}
}

func TestAppError_Constructors_Table(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		code   ErrorCode
		status int
	}{
		{"service unavailable", ServiceUnavailable("runner"), ErrCodeServiceUnavailable, http.StatusServiceUnavailable},
		{"cancelled", Cancelled("client went away"), ErrCodeCancelled, 499},
		{"not found", NotFound("run", "1"), ErrCodeNotFound, http.StatusNotFound},
		{"invalid input", InvalidInput("timeout", "must be positive"), ErrCodeInvalidInput, http.StatusBadRequest},
		{"missing field", MissingField("dataset"), ErrCodeMissingField, http.StatusBadRequest},
		{"internal", Internal(stderrors.New("x")), ErrCodeInternal, http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.err.Code != tc.code {
				t.Errorf("expected code %s, got %s", tc.code, tc.err.Code)
			}
			if tc.err.HTTPStatus != tc.status {
				t.Errorf("expected status %d, got %d", tc.status, tc.err.HTTPStatus)
			}
		})
	}
}

func TestAppError_ToResponse(t *testing.T) {
	resp := InvalidInput("multiplier", "must be >= 1").ToResponse()
	if resp.Error.Code != ErrCodeInvalidInput {
		t.Errorf("expected INVALID_INPUT, got %s", resp.Error.Code)
	}
	if resp.Error.Details["field"] != "multiplier" {
		t.Errorf("expected field detail, got %v", resp.Error.Details)
	}
}

func TestAsAppError(t *testing.T) {
	if _, ok := AsAppError(stderrors.New("plain")); ok {
		t.Error("plain error is not an AppError")
	}
	appErr, ok := AsAppError(fmt.Errorf("ctx: %w", NotFound("run", "")))
	if !ok || appErr.Code != ErrCodeNotFound {
		t.Errorf("expected wrapped NOT_FOUND, got %v", appErr)
	}
	if !IsAppError(Internal(nil)) {
		t.Error("expected IsAppError true")
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil) != nil {
		t.Error("Wrap(nil) must be nil")
	}
	orig := Timeout("x")
	if Wrap(orig) != orig {
		t.Error("AppError must pass through")
	}
	w := Wrap(context.Canceled)
	if w.Code != ErrCodeInternal || !stderrors.Is(w, context.Canceled) {
		t.Errorf("expected internal wrapping context.Canceled, got %v", w)
	}
}
