// internal/app/system/authz/gate.go
package authz

import (
	"context"
	"errors"
	"net/http"

	"github.com/dalemusser/shepherd/internal/app/system/apperr"
	"github.com/dalemusser/shepherd/internal/app/system/auditlog"
	"github.com/dalemusser/shepherd/internal/app/system/auth"
	"github.com/dalemusser/shepherd/internal/app/system/metrics"
	"github.com/dalemusser/shepherd/internal/domain/models"
	"github.com/dalemusser/shepherd/internal/domain/permissions"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// ContactFinder resolves a user's member record in a church.
type ContactFinder interface {
	GetMemberByUser(ctx context.Context, churchID, userID primitive.ObjectID) (models.Contact, error)
}

// RoleFinder loads a role by id.
type RoleFinder interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Role, error)
}

// Decision is the outcome of a successful gate check. Handlers read it to
// learn which contact is acting.
type Decision struct {
	Caller   models.Contact
	Role     models.Role
	ChurchID primitive.ObjectID
}

// Gate resolves the caller's contact and role in a church and applies
// Authorize. It holds no per-request state.
type Gate struct {
	contacts ContactFinder
	roles    RoleFinder
	audit    *auditlog.Logger
	log      *zap.Logger
}

func NewGate(contacts ContactFinder, roles RoleFinder, audit *auditlog.Logger, log *zap.Logger) *Gate {
	return &Gate{contacts: contacts, roles: roles, audit: audit, log: log}
}

// AuthorizeRequest checks that userID may act in churchID.
func (g *Gate) AuthorizeRequest(ctx context.Context, userID, churchID primitive.ObjectID, required []permissions.Permission, mode Mode) (Decision, error) {
	d, err := g.authorize(ctx, userID, churchID, required, mode)
	switch {
	case err == nil:
		metrics.ObserveAuthz("allow")
	case apperr.KindOf(err) == apperr.KindForbidden || apperr.KindOf(err) == apperr.KindNotFound:
		metrics.ObserveAuthz("deny")
		g.audit.Denied(ctx, churchID, userID, reasonOf(err))
	default:
		metrics.ObserveAuthz("error")
	}
	return d, err
}

func (g *Gate) authorize(ctx context.Context, userID, churchID primitive.ObjectID, required []permissions.Permission, mode Mode) (Decision, error) {
	var callerPtr *models.Contact
	caller, err := g.contacts.GetMemberByUser(ctx, churchID, userID)
	switch {
	case err == nil:
		callerPtr = &caller
	case errors.Is(err, mongo.ErrNoDocuments):
	default:
		return Decision{}, apperr.FromStorage(err)
	}

	var rolePtr *models.Role
	var role models.Role
	if callerPtr != nil && caller.OrgRole != nil {
		role, err = g.roles.GetByID(ctx, *caller.OrgRole)
		switch {
		case err == nil:
			rolePtr = &role
		case errors.Is(err, mongo.ErrNoDocuments):
		default:
			return Decision{}, apperr.FromStorage(err)
		}
	}

	if err := Authorize(callerPtr, rolePtr, required, mode); err != nil {
		return Decision{}, err
	}
	return Decision{Caller: caller, Role: role, ChurchID: churchID}, nil
}

func reasonOf(err error) string {
	var e *apperr.Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

type decisionKey struct{}

// FromContext returns the Decision stored by Require.
func FromContext(ctx context.Context) (Decision, bool) {
	d, ok := ctx.Value(decisionKey{}).(Decision)
	return d, ok
}

// WithDecision returns ctx carrying d.
func WithDecision(ctx context.Context, d Decision) context.Context {
	return context.WithValue(ctx, decisionKey{}, d)
}

// ChurchParam is the chi URL parameter holding the target church id.
const ChurchParam = "churchID"

// Require is chi middleware that authorizes the signed-in user against the
// church named in the URL. It must run after auth.RequireUser.
func (g *Gate) Require(writeErr auth.ErrorWriter, mode Mode, perms ...permissions.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := auth.CurrentUser(r)
			if !ok {
				writeErr(w, r, apperr.Unauthorized(apperr.ReasonInvalidToken, "sign in required"))
				return
			}
			churchID, err := primitive.ObjectIDFromHex(chi.URLParam(r, ChurchParam))
			if err != nil {
				writeErr(w, r, apperr.Validation("invalid church id"))
				return
			}
			d, err := g.AuthorizeRequest(r.Context(), u.ID, churchID, perms, mode)
			if err != nil {
				g.log.Debug("authorization denied",
					zap.String("user_id", u.ID.Hex()),
					zap.String("church_id", churchID.Hex()),
					zap.Error(err))
				writeErr(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithDecision(r.Context(), d)))
		})
	}
}
