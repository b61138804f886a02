// internal/app/system/auth/auth.go
package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/dalemusser/shepherd/internal/app/system/apperr"
	"github.com/dalemusser/shepherd/internal/app/system/tokens"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// User is the authenticated caller injected into the request context.
type User struct {
	ID    primitive.ObjectID
	Email string
	Name  string
	Role  string
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// Verifier is the part of tokens.Manager the middleware needs.
type Verifier interface {
	Verify(token string) (tokens.Claims, error)
}

// ErrorWriter renders an error response. The HTTP error renderer is passed
// in so this package stays independent of it.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// CurrentUser returns the caller set by RequireUser.
func CurrentUser(r *http.Request) (*User, bool) {
	return FromContext(r.Context())
}

func FromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(currentUserKey).(*User)
	return u, ok
}

// WithUser returns ctx carrying u.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, currentUserKey, u)
}

// RequireUser verifies the bearer access token and injects the caller.
// Missing, malformed and expired tokens are 401.
func RequireUser(v Verifier, writeErr ErrorWriter, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := tokens.ExtractBearer(r)
			if !ok {
				writeErr(w, r, apperr.Unauthorized(apperr.ReasonInvalidToken, "missing bearer token"))
				return
			}
			claims, err := v.Verify(raw)
			if err != nil {
				if errors.Is(err, tokens.ErrExpiredToken) {
					writeErr(w, r, apperr.Unauthorized(apperr.ReasonExpiredToken, "token expired"))
					return
				}
				writeErr(w, r, apperr.Unauthorized(apperr.ReasonInvalidToken, "invalid token"))
				return
			}
			id, err := primitive.ObjectIDFromHex(claims.UserID)
			if err != nil {
				log.Warn("token carries non-ObjectID subject", zap.String("uid", claims.UserID))
				writeErr(w, r, apperr.Unauthorized(apperr.ReasonInvalidToken, "invalid token"))
				return
			}
			u := &User{
				ID:    id,
				Email: claims.Email,
				Name:  claims.FirstName,
				Role:  claims.Role,
			}
			if claims.LastName != "" {
				u.Name += " " + claims.LastName
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}
