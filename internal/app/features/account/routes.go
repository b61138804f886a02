// internal/app/features/account/routes.go
package account

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns the router mounted at /auth. requireUser guards the
// endpoints that act on the signed-in account.
func Routes(h *Handler, requireUser func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Post("/signup", h.ServeSignup)
	r.Post("/login", h.ServeLogin)
	r.Post("/refresh", h.ServeRefresh)
	r.Post("/logout", h.ServeLogout)
	r.Post("/password/forgot", h.ServeForgotPassword)
	r.Post("/password/reset", h.ServeResetPassword)
	r.Post("/invitations/{invitationID}/accept", h.ServeAcceptInvitation)

	if h.Google != nil {
		r.Get("/google", h.ServeGoogleLogin)
		r.Get("/google/callback", h.ServeGoogleCallback)
	}
	if h.Phone != nil {
		r.Post("/phone", h.ServePhoneLogin)
	}

	r.Group(func(pr chi.Router) {
		pr.Use(requireUser)
		pr.Get("/me", h.ServeMe)
		pr.Post("/email/confirm", h.ServeConfirmEmail)
		pr.Post("/email/resend", h.ServeResendConfirmation)
	})

	return r
}
