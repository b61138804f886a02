package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"go.mongodb.org/mongo-driver/mongo"
)

func TestIs_MatchesKindAndReason(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", Conflict(ReasonAlreadyAssigned, "contact already assigned"))

	if !errors.Is(err, ErrConflict) {
		t.Error("expected kind match")
	}
	if !errors.Is(err, ErrAlreadyAssigned) {
		t.Error("expected reason match")
	}
	if errors.Is(err, ErrNotAssigned) {
		t.Error("reason should not match a different reason")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("kind should not match")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"not found", NotFound("contact", "abc"), KindNotFound},
		{"wrapped forbidden", fmt.Errorf("x: %w", Forbidden(ReasonNoMembership, "no")), KindForbidden},
		{"plain", errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFromStorage(t *testing.T) {
	if FromStorage(nil) != nil {
		t.Error("nil should stay nil")
	}

	transient := mongo.CommandError{Code: 112, Message: "WriteConflict", Labels: []string{"TransientTransactionError"}}
	if KindOf(FromStorage(transient)) != KindTransient {
		t.Error("transient transaction error should map to KindTransient")
	}
	if KindOf(FromStorage(context.DeadlineExceeded)) != KindTransient {
		t.Error("deadline should map to KindTransient")
	}

	nf := NotFound("church", "1")
	if FromStorage(nf) != error(nf) {
		t.Error("classified errors pass through")
	}

	if KindOf(FromStorage(errors.New("disk full"))) != KindInternal {
		t.Error("unknown errors map to KindInternal")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := map[Kind]int{
		KindNotFound:           http.StatusNotFound,
		KindConflict:           http.StatusConflict,
		KindForbidden:          http.StatusForbidden,
		KindUnauthorized:       http.StatusUnauthorized,
		KindValidation:         http.StatusBadRequest,
		KindInvariant:          http.StatusUnprocessableEntity,
		KindTransient:          http.StatusServiceUnavailable,
		KindNotificationFailed: http.StatusBadGateway,
		KindRateLimited:        http.StatusTooManyRequests,
		KindInternal:           http.StatusInternalServerError,
	}
	for k, want := range tests {
		if got := HTTPStatus(k); got != want {
			t.Errorf("HTTPStatus(%q) = %d, want %d", k, got, want)
		}
	}
}

func TestPublicMessage_HidesInternals(t *testing.T) {
	err := FromStorage(errors.New("E11000 duplicate key error collection: shepherd.contacts"))
	if got := PublicMessage(err); got != "internal error" {
		t.Errorf("PublicMessage() = %q", got)
	}
	if got := PublicMessage(NotFound("contact", "1")); got != "contact not found" {
		t.Errorf("PublicMessage() = %q", got)
	}
}
