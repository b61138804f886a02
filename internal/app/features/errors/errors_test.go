package errors_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	errorsfeature "github.com/dalemusser/shepherd/internal/app/features/errors"
	"github.com/dalemusser/shepherd/internal/app/system/apperr"
	"go.uber.org/zap"
)

type envelope struct {
	Error struct {
		Kind    string `json:"kind"`
		Reason  string `json:"reason"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestWriter_Write(t *testing.T) {
	ew := errorsfeature.NewWriter(zap.NewNop())

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
		wantReason string
		wantMsg    string
	}{
		{"not found", apperr.NotFound("contact", "abc"), http.StatusNotFound, "not_found", "", "contact not found"},
		{"conflict", apperr.Conflict(apperr.ReasonDuplicateContact, "contact already exists"), http.StatusConflict, "conflict", apperr.ReasonDuplicateContact, "contact already exists"},
		{"forbidden", apperr.Forbidden(apperr.ReasonInsufficient, "nope"), http.StatusForbidden, "forbidden", apperr.ReasonInsufficient, "nope"},
		{"validation", apperr.Validation("name is required"), http.StatusBadRequest, "validation_failed", "", "name is required"},
		{"wrapped", fmt.Errorf("create: %w", apperr.Validation("bad")), http.StatusBadRequest, "validation_failed", "", "bad"},
		{"internal hides detail", fmt.Errorf("dial tcp 10.0.0.1: refused"), http.StatusInternalServerError, "internal", "", "internal error"},
		{"notification", apperr.NotificationFailed(fmt.Errorf("smtp down")), http.StatusBadGateway, "notification_failed", "", "notification could not be delivered"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			ew.Write(rec, httptest.NewRequest(http.MethodGet, "/x", nil), tt.err)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status: got %d, want %d", rec.Code, tt.wantStatus)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Fatalf("Content-Type: got %q", ct)
			}
			var got envelope
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.Error.Kind != tt.wantKind || got.Error.Reason != tt.wantReason || got.Error.Message != tt.wantMsg {
				t.Fatalf("body: got %+v", got.Error)
			}
		})
	}
}

func TestWriter_Fallbacks(t *testing.T) {
	ew := errorsfeature.NewWriter(zap.NewNop())

	rec := httptest.NewRecorder()
	ew.NotFound(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("NotFound status: got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	ew.MethodNotAllowed(rec, httptest.NewRequest(http.MethodPut, "/health", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("MethodNotAllowed status: got %d", rec.Code)
	}
}
