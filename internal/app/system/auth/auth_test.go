package auth_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/shepherd/internal/app/system/apperr"
	"github.com/dalemusser/shepherd/internal/app/system/auth"
	"github.com/dalemusser/shepherd/internal/app/system/tokens"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fakeVerifier struct {
	claims tokens.Claims
	err    error
}

func (f fakeVerifier) Verify(string) (tokens.Claims, error) { return f.claims, f.err }

func writeErr(w http.ResponseWriter, _ *http.Request, err error) {
	w.Header().Set("X-Reason", reasonOf(err))
	w.WriteHeader(apperr.HTTPStatus(apperr.KindOf(err)))
}

func reasonOf(err error) string {
	var e *apperr.Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

func TestRequireUser(t *testing.T) {
	uid := primitive.NewObjectID()
	tests := []struct {
		name       string
		header     string
		verifier   fakeVerifier
		wantStatus int
		wantReason string
	}{
		{"missing header", "", fakeVerifier{}, http.StatusUnauthorized, apperr.ReasonInvalidToken},
		{"expired", "Bearer x", fakeVerifier{err: tokens.ErrExpiredToken}, http.StatusUnauthorized, apperr.ReasonExpiredToken},
		{"invalid", "Bearer x", fakeVerifier{err: tokens.ErrInvalidToken}, http.StatusUnauthorized, apperr.ReasonInvalidToken},
		{"bad subject", "Bearer x", fakeVerifier{claims: tokens.Claims{UserID: "nope"}}, http.StatusUnauthorized, apperr.ReasonInvalidToken},
		{"ok", "Bearer x", fakeVerifier{claims: tokens.Claims{UserID: uid.Hex(), FirstName: "Ada", LastName: "Obi"}}, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *auth.User
			h := auth.RequireUser(tt.verifier, writeErr, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, _ = auth.CurrentUser(r)
			}))
			req := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if rec.Header().Get("X-Reason") != tt.wantReason {
				t.Errorf("reason = %q, want %q", rec.Header().Get("X-Reason"), tt.wantReason)
			}
			if tt.wantStatus == http.StatusOK {
				if got == nil || got.ID != uid {
					t.Fatalf("expected user %s in context, got %+v", uid.Hex(), got)
				}
				if got.Name != "Ada Obi" {
					t.Errorf("Name = %q", got.Name)
				}
			}
		})
	}
}
