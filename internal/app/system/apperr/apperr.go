// Package apperr is the error taxonomy shared by the services and the HTTP
// layer. Services return *Error values; handlers map Kind to a status code.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"go.mongodb.org/mongo-driver/mongo"
)

// Kind classifies an error independent of transport.
type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindConflict           Kind = "conflict"
	KindForbidden          Kind = "forbidden"
	KindUnauthorized       Kind = "unauthorized"
	KindValidation         Kind = "validation_failed"
	KindInvariant          Kind = "invariant_violation"
	KindTransient          Kind = "transient_storage_error"
	KindNotificationFailed Kind = "notification_failed"
	KindRateLimited        Kind = "rate_limited"
	KindInternal           Kind = "internal"
)

// Error carries a kind plus enough context (entity, id, reason) for the
// boundary to build a response.
type Error struct {
	Kind   Kind
	Entity string
	ID     string
	Reason string
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
		if e.Entity != "" {
			msg = e.Entity + " " + msg
		}
	}
	if e.ID != "" {
		msg = fmt.Sprintf("%s (%s %s)", msg, e.Entity, e.ID)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind and, when set on the target, reason.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

// Reasons used across services. Callers compare with errors.Is against the
// exported sentinels below.
const (
	ReasonDuplicateContact = "duplicate_contact"
	ReasonDuplicateChurch  = "duplicate_church"
	ReasonDuplicateUser    = "duplicate_user"
	ReasonDuplicateLevel   = "duplicate_level"
	ReasonDuplicateRole    = "duplicate_role"
	ReasonAlreadyAssigned  = "already_assigned"
	ReasonNotAssigned      = "not_assigned"
	ReasonRoleNotFound     = "role_not_found"
	ReasonNoMembership     = "no_membership"
	ReasonInsufficient     = "insufficient_permissions"
	ReasonInvalidLevel     = "invalid_level"
	ReasonLevelOrder       = "level_order"
	ReasonHasMainChurch    = "has_main_church"
	ReasonInvalidToken     = "invalid_token"
	ReasonExpiredToken     = "expired_token"
	ReasonBadCredentials   = "bad_credentials"
	ReasonInviteUsed       = "invitation_used"
)

var (
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrConflict        = &Error{Kind: KindConflict}
	ErrForbidden       = &Error{Kind: KindForbidden}
	ErrUnauthorized    = &Error{Kind: KindUnauthorized}
	ErrValidation      = &Error{Kind: KindValidation}
	ErrInvariant       = &Error{Kind: KindInvariant}
	ErrTransient       = &Error{Kind: KindTransient}
	ErrNotification    = &Error{Kind: KindNotificationFailed}
	ErrDuplicate       = &Error{Kind: KindConflict, Reason: ReasonDuplicateContact}
	ErrAlreadyAssigned = &Error{Kind: KindConflict, Reason: ReasonAlreadyAssigned}
	ErrNotAssigned     = &Error{Kind: KindConflict, Reason: ReasonNotAssigned}
	ErrRoleNotFound    = &Error{Kind: KindNotFound, Reason: ReasonRoleNotFound}
)

// NotFound reports a missing entity.
func NotFound(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Entity: entity, ID: id, Msg: entity + " not found"}
}

// Conflict reports a uniqueness or state collision.
func Conflict(reason, msg string) *Error {
	return &Error{Kind: KindConflict, Reason: reason, Msg: msg}
}

// Forbidden reports an authorization denial.
func Forbidden(reason, msg string) *Error {
	return &Error{Kind: KindForbidden, Reason: reason, Msg: msg}
}

// Unauthorized reports a missing or bad credential.
func Unauthorized(reason, msg string) *Error {
	return &Error{Kind: KindUnauthorized, Reason: reason, Msg: msg}
}

// Validation reports bad input detected by the core.
func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Msg: msg}
}

// Invariant reports a write that would break a model invariant.
func Invariant(reason, msg string) *Error {
	return &Error{Kind: KindInvariant, Reason: reason, Msg: msg}
}

// NotificationFailed reports a delivery failure from the notifier.
func NotificationFailed(err error) *Error {
	return &Error{Kind: KindNotificationFailed, Msg: "notification could not be delivered", Err: err}
}

// RateLimited reports a caller that exceeded an attempt limit.
func RateLimited(msg string) *Error {
	return &Error{Kind: KindRateLimited, Msg: msg}
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// FromStorage classifies a raw driver error. Already-classified errors pass
// through. Network, timeout and transient transaction errors become
// KindTransient; anything else becomes KindInternal with the cause attached.
func FromStorage(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if IsTransient(err) {
		return &Error{Kind: KindTransient, Msg: "storage temporarily unavailable", Err: err}
	}
	return &Error{Kind: KindInternal, Msg: "storage error", Err: err}
}

// IsTransient reports whether err is worth retrying by the caller.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return true
	}
	var le interface{ HasErrorLabel(string) bool }
	if errors.As(err, &le) && (le.HasErrorLabel("TransientTransactionError") || le.HasErrorLabel("UnknownTransactionCommitResult")) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// HTTPStatus maps a kind to a response status.
func HTTPStatus(k Kind) int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindValidation:
		return http.StatusBadRequest
	case KindInvariant:
		return http.StatusUnprocessableEntity
	case KindTransient:
		return http.StatusServiceUnavailable
	case KindNotificationFailed:
		return http.StatusBadGateway
	case KindRateLimited:
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the message safe to show a client.
func PublicMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) || e.Kind == KindInternal {
		return "internal error"
	}
	if e.Msg != "" {
		return e.Msg
	}
	return string(e.Kind)
}
