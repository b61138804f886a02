// internal/app/features/members/routes.go
package members

import (
	"net/http"

	"github.com/dalemusser/shepherd/internal/app/system/authz"
	"github.com/dalemusser/shepherd/internal/domain/permissions"
	"github.com/go-chi/chi/v5"
)

// Routes returns the router mounted at /churches/{churchID}/members.
func Routes(h *Handler, gate *authz.Gate) chi.Router {
	need := func(p ...permissions.Permission) func(http.Handler) http.Handler {
		return gate.Require(h.WriteErr, authz.All, p...)
	}

	r := chi.NewRouter()
	r.With(need(permissions.MemberView)).Get("/", h.ServeList)
	r.With(need(permissions.MemberView)).Get("/stats", h.ServeStats)
	r.With(need(permissions.MemberCreate)).Post("/", h.ServeCreate)
	r.With(need(permissions.MemberUpdate)).Put("/{memberID}/verification", h.ServeVerification)
	r.With(need(permissions.MemberDelete)).Delete("/{memberID}", h.ServeDelete)
	return r
}

// SelfRoutes returns the router mounted at /churches/{churchID}/me. Staff
// holding member.update or member.delete may manage their own record too.
func SelfRoutes(h *Handler, gate *authz.Gate) chi.Router {
	r := chi.NewRouter()
	r.With(gate.Require(h.WriteErr, authz.All)).Get("/", h.ServeSelf)
	r.With(gate.Require(h.WriteErr, authz.Any, permissions.MeUpdate, permissions.MemberUpdate)).Patch("/", h.ServeUpdateSelf)
	r.With(gate.Require(h.WriteErr, authz.Any, permissions.MeDelete, permissions.MemberDelete)).Delete("/", h.ServeLeave)
	return r
}

// InvitationRoutes returns the router mounted at /churches/{churchID}/invitations.
func InvitationRoutes(h *Handler, gate *authz.Gate) chi.Router {
	r := chi.NewRouter()
	r.With(gate.Require(h.WriteErr, authz.All, permissions.MemberCreate)).Post("/", h.ServeInvite)
	return r
}
