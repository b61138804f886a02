package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/shepherd/internal/app/system/tokens"
	"github.com/dalemusser/shepherd/internal/domain/models"
)

// Tokens returns a token manager with fixed test secrets.
func Tokens() *tokens.Manager {
	return tokens.NewManager(tokens.Config{
		AccessSecret:  "access-secret-for-tests-0123456789",
		RefreshSecret: "refresh-secret-for-tests-0123456789",
	})
}

// Bearer issues an access token for u.
func Bearer(t *testing.T, tm *tokens.Manager, u models.User) string {
	t.Helper()
	pair, err := tm.IssuePair(tokens.Subject{
		UserID:    u.ID.Hex(),
		Email:     u.EmailAddr(),
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      string(u.Role),
	})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return pair.AccessToken
}

// Call sends a request through h. A []byte body is sent as is; any other
// non-nil body is encoded as JSON.
func Call(t *testing.T, h http.Handler, method, target, bearer string, body any) *ResponseRecorder {
	t.Helper()
	var rd io.Reader
	contentType := "application/json"
	switch b := body.(type) {
	case nil:
	case []byte:
		rd = bytes.NewReader(b)
		contentType = ""
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("encode request body: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, rd)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// ErrorKind decodes the kind from an error envelope.
func (r *ResponseRecorder) ErrorKind(t *testing.T) string {
	t.Helper()
	var body struct {
		Error struct {
			Kind string `json:"kind"`
		} `json:"error"`
	}
	r.DecodeJSON(t, &body)
	return body.Error.Kind
}
