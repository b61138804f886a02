// internal/app/features/churches/routes.go
package churches

import (
	"net/http"

	"github.com/dalemusser/shepherd/internal/app/system/authz"
	"github.com/dalemusser/shepherd/internal/domain/permissions"
	"github.com/go-chi/chi/v5"
)

// Routes returns the router mounted at /churches. It expects the caller to
// be signed in; church-scoped routes are additionally checked by gate.
func Routes(h *Handler, gate *authz.Gate) chi.Router {
	need := func(p ...permissions.Permission) func(http.Handler) http.Handler {
		return gate.Require(h.WriteErr, authz.All, p...)
	}
	member := need()

	r := chi.NewRouter()
	r.Post("/", h.ServeOnboard)
	r.Get("/hq", h.ServeListHQ)

	r.Route("/{"+authz.ChurchParam+"}", func(cr chi.Router) {
		cr.With(member).Get("/", h.ServeGet)
		cr.With(member).Get("/summary", h.ServeSummary)
		cr.With(member).Get("/roles", h.ServeListRoles)
		cr.With(need(permissions.ChurchUpdate)).Patch("/", h.ServeUpdate)
		cr.With(need(permissions.ChurchUpdate)).Put("/logo", h.ServeLogo)
		cr.With(need(permissions.ChurchDelete)).Delete("/", h.ServeDelete)
		cr.With(need(permissions.ChurchCreate)).Post("/children", h.ServeCreateChild)

		cr.With(member).Get("/levels", h.ServeListLevels)
		cr.With(need(permissions.LevelCreate)).Post("/levels", h.ServeCreateLevel)
		cr.With(need(permissions.LevelUpdate)).Patch("/levels/{levelID}", h.ServeRenameLevel)
		cr.With(member).Get("/levels/{levelID}/path", h.ServeLevelPath)
		cr.With(member).Get("/levels/{levelID}/churches", h.ServeLevelChurches)
	})

	return r
}
