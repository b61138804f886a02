// internal/app/features/errors/errors.go
package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/dalemusser/shepherd/internal/app/system/apperr"
	"go.uber.org/zap"
)

// body is the JSON error envelope:
//
//	{ "error": { "kind": "not_found", "message": "contact not found" } }
type body struct {
	Error detail `json:"error"`
}

type detail struct {
	Kind    apperr.Kind `json:"kind"`
	Reason  string      `json:"reason,omitempty"`
	Message string      `json:"message"`
}

// Writer renders service errors as JSON. Storage details never reach the
// client; unclassified errors are logged and reported as "internal error".
type Writer struct {
	Log *zap.Logger
}

// NewWriter constructs a Writer that logs through logger.
func NewWriter(logger *zap.Logger) *Writer {
	return &Writer{Log: logger}
}

// Write maps err to a status code and writes the envelope. Its signature
// matches auth.ErrorWriter.
func (ew *Writer) Write(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)

	switch kind {
	case apperr.KindInternal, apperr.KindTransient:
		ew.Log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	case apperr.KindNotificationFailed:
		ew.Log.Warn("notification failed",
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}

	var reason string
	var e *apperr.Error
	if stderrors.As(err, &e) && kind != apperr.KindInternal {
		reason = e.Reason
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body{Error: detail{
		Kind:    kind,
		Reason:  reason,
		Message: apperr.PublicMessage(err),
	}})
}

// NotFound is the router's fallback for unknown paths.
func (ew *Writer) NotFound(w http.ResponseWriter, r *http.Request) {
	ew.Write(w, r, apperr.NotFound("route", r.URL.Path))
}

// MethodNotAllowed is the router's fallback for known paths with the wrong verb.
func (ew *Writer) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusMethodNotAllowed)
	_ = json.NewEncoder(w).Encode(body{Error: detail{
		Kind:    "method_not_allowed",
		Message: r.Method + " is not allowed on " + r.URL.Path,
	}})
}
