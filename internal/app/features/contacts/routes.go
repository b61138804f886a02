// internal/app/features/contacts/routes.go
package contacts

import (
	"net/http"

	"github.com/dalemusser/shepherd/internal/app/system/authz"
	"github.com/dalemusser/shepherd/internal/domain/permissions"
	"github.com/go-chi/chi/v5"
)

// Routes returns the router mounted at /churches/{churchID}/contacts.
func Routes(h *Handler, gate *authz.Gate) chi.Router {
	need := func(p ...permissions.Permission) func(http.Handler) http.Handler {
		return gate.Require(h.WriteErr, authz.All, p...)
	}
	view := need(permissions.ContactView)
	update := need(permissions.ContactUpdate)

	r := chi.NewRouter()
	r.With(view).Get("/", h.ServeList)
	r.With(need(permissions.ContactCreate)).Post("/", h.ServeCreate)
	r.With(need(permissions.ContactDelete)).Post("/purge", h.ServePurge)

	r.Route("/{contactID}", func(cr chi.Router) {
		cr.With(view).Get("/", h.ServeGet)
		cr.With(update).Patch("/", h.ServeUpdate)
		cr.With(need(permissions.ContactDelete)).Delete("/", h.ServeDelete)
		cr.With(update).Put("/status", h.ServeStatus)
		cr.With(update).Put("/photo", h.ServePhoto)
		cr.With(update).Put("/assignees/{assigneeID}", h.ServeAssign)
		cr.With(update).Delete("/assignees/{assigneeID}", h.ServeAssign)

		cr.With(update).Post("/notes", h.ServeAddNote)
		cr.With(update).Patch("/notes/{noteID}", h.ServeUpdateNote)
		cr.With(update).Delete("/notes/{noteID}", h.ServeDeleteNote)

		cr.With(update).Post("/labels", h.ServeAddLabel)
		cr.With(update).Delete("/labels/{labelID}", h.ServeRemoveLabel)

		cr.With(update).Post("/actions", h.ServeAddAction)
		cr.With(update).Post("/actions/{actionID}/toggle", h.ServeToggleAction)
		cr.With(update).Delete("/actions/{actionID}", h.ServeDeleteAction)
	})

	return r
}
