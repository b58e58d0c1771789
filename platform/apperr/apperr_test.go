package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusAndCodePerKind(t *testing.T) {
	cases := []struct {
		err    *Error
		status int
		code   string
	}{
		{NotFound("lead not found"), http.StatusNotFound, "NOT_FOUND"},
		{Validation("sectors required"), http.StatusBadRequest, "VALIDATION"},
		{Conflict("Lead not available"), http.StatusConflict, "CONFLICT"},
		{Forbidden("forbidden"), http.StatusForbidden, "FORBIDDEN"},
		{Unauthorized("invalid token"), http.StatusUnauthorized, "UNAUTHORIZED"},
		{Transient("store unavailable", context.DeadlineExceeded), http.StatusServiceUnavailable, "TRANSIENT"},
		{Internal("boom"), http.StatusInternalServerError, "INTERNAL"},
	}

	for _, tc := range cases {
		if got := tc.err.HTTPStatus(); got != tc.status {
			t.Errorf("%s: HTTPStatus() = %d, want %d", tc.err.Message, got, tc.status)
		}
		if got := tc.err.Code(); got != tc.code {
			t.Errorf("%s: Code() = %q, want %q", tc.err.Message, got, tc.code)
		}
	}
}

func TestGetKindFollowsWrappedChain(t *testing.T) {
	base := Conflict("Lead already sold")
	wrapped := fmt.Errorf("purchase: %w", base)

	if !Is(wrapped, KindConflict) {
		t.Fatalf("expected wrapped error to be a conflict, got %v", GetKind(wrapped))
	}
	if GetKind(errors.New("plain")) != KindUnknown {
		t.Fatal("expected plain errors to have unknown kind")
	}
}

func TestTransientUnwrapsCause(t *testing.T) {
	err := Transient("lead store unavailable", context.DeadlineExceeded)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("expected transient error to unwrap to its cause")
	}
	if got := err.WithOp("reserve").Error(); got != "reserve: lead store unavailable" {
		t.Fatalf("unexpected message %q", got)
	}
}
