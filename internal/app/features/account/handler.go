// internal/app/features/account/handler.go
package account

// Terminology: User Identifiers
//   - UserID / userID / user_id: The MongoDB ObjectID (_id) that uniquely identifies a user record
//   - LoginID / loginID / login_id: The email or phone number a person types to sign in

import (
	"context"
	"net/http"

	"github.com/dalemusser/shepherd/internal/app/features/shared/httpjson"
	"github.com/dalemusser/shepherd/internal/app/services/accounts"
	"github.com/dalemusser/shepherd/internal/app/store/oauthstate"
	"github.com/dalemusser/shepherd/internal/app/system/apperr"
	"github.com/dalemusser/shepherd/internal/app/system/auth"
	"github.com/dalemusser/shepherd/internal/app/system/ratelimit"
	"github.com/dalemusser/shepherd/internal/app/system/timeouts"
	"github.com/dalemusser/shepherd/internal/app/system/websession"
	"go.uber.org/zap"
)

// PhoneVerifier checks a code an SMS provider delivered to phone.
type PhoneVerifier interface {
	Check(ctx context.Context, phone, code string) error
}

// Handler serves the sign-in, token and one-time code endpoints.
type Handler struct {
	Accounts   *accounts.Service
	Sessions   *websession.Store
	StateStore *oauthstate.Store
	Google     GoogleProvider         // nil when Google sign-in is not configured
	Phone      PhoneVerifier          // nil when phone sign-in is not configured
	Limiter    *ratelimit.AuthLimiter // nil disables attempt limits
	WriteErr   auth.ErrorWriter
	Log        *zap.Logger
}

// NewHandler constructs the account handler. Google and Phone are set by
// the caller when those sign-in methods are configured.
func NewHandler(svc *accounts.Service, sessions *websession.Store, states *oauthstate.Store, writeErr auth.ErrorWriter, logger *zap.Logger) *Handler {
	return &Handler{
		Accounts:   svc,
		Sessions:   sessions,
		StateStore: states,
		WriteErr:   writeErr,
		Log:        logger,
	}
}

// throttled writes a RateLimited error and returns true when the attempt
// for loginID is over the limit.
func (h *Handler) throttled(w http.ResponseWriter, r *http.Request, loginID string) bool {
	if h.Limiter == nil {
		return false
	}
	ok, msg := h.Limiter.Allow(r, loginID)
	if ok {
		return false
	}
	h.Log.Warn("auth attempt rate limited", zap.String("path", r.URL.Path), zap.String("ip", ratelimit.ClientIP(r)))
	h.WriteErr(w, r, apperr.RateLimited(msg))
	return true
}

// startSession stores the refresh token in the cookie for browser clients
// and writes the session body.
func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, status int, s accounts.Session) {
	if h.Sessions != nil {
		if err := h.Sessions.SetRefresh(w, r, s.Tokens.RefreshToken); err != nil {
			h.Log.Warn("could not set refresh cookie", zap.Error(err))
		}
	}
	httpjson.Write(w, status, s)
}

// POST /auth/signup
func (h *Handler) ServeSignup(w http.ResponseWriter, r *http.Request) {
	var in accounts.SignupInput
	if err := httpjson.Decode(w, r, &in); err != nil {
		h.WriteErr(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	s, err := h.Accounts.Signup(ctx, in)
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	h.startSession(w, r, http.StatusCreated, s)
}

type loginRequest struct {
	LoginID  string `json:"login_id"`
	Password string `json:"password"`
}

// POST /auth/login
func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := httpjson.Decode(w, r, &in); err != nil {
		h.WriteErr(w, r, err)
		return
	}
	if h.throttled(w, r, in.LoginID) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	s, err := h.Accounts.Login(ctx, in.LoginID, in.Password)
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	if h.Limiter != nil {
		h.Limiter.Succeeded(in.LoginID)
	}
	h.startSession(w, r, http.StatusOK, s)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// POST /auth/refresh
//
// The refresh token comes from the body or, for browser clients, the
// session cookie.
func (h *Handler) ServeRefresh(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if r.ContentLength != 0 {
		if err := httpjson.Decode(w, r, &in); err != nil {
			h.WriteErr(w, r, err)
			return
		}
	}
	if in.RefreshToken == "" && h.Sessions != nil {
		in.RefreshToken = h.Sessions.Refresh(r)
	}
	if in.RefreshToken == "" {
		h.WriteErr(w, r, apperr.Unauthorized(apperr.ReasonInvalidToken, "refresh token is required"))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	s, err := h.Accounts.Refresh(ctx, in.RefreshToken)
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	h.startSession(w, r, http.StatusOK, s)
}

// POST /auth/logout
func (h *Handler) ServeLogout(w http.ResponseWriter, r *http.Request) {
	if h.Sessions != nil {
		if err := h.Sessions.Clear(w, r); err != nil {
			h.Log.Warn("could not clear session cookie", zap.Error(err))
		}
	}
	httpjson.NoContent(w)
}

type forgotRequest struct {
	LoginID string `json:"login_id"`
}

// POST /auth/password/forgot
//
// Unknown accounts also get 202.
func (h *Handler) ServeForgotPassword(w http.ResponseWriter, r *http.Request) {
	var in forgotRequest
	if err := httpjson.Decode(w, r, &in); err != nil {
		h.WriteErr(w, r, err)
		return
	}
	if h.throttled(w, r, in.LoginID) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Accounts.ForgotPassword(ctx, in.LoginID); err != nil {
		h.WriteErr(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

type resetRequest struct {
	LoginID  string `json:"login_id"`
	Code     string `json:"code"`
	Password string `json:"password"`
}

// POST /auth/password/reset
func (h *Handler) ServeResetPassword(w http.ResponseWriter, r *http.Request) {
	var in resetRequest
	if err := httpjson.Decode(w, r, &in); err != nil {
		h.WriteErr(w, r, err)
		return
	}
	if h.throttled(w, r, in.LoginID) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	s, err := h.Accounts.ResetPassword(ctx, in.LoginID, in.Code, in.Password)
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	h.startSession(w, r, http.StatusOK, s)
}

type acceptRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// POST /auth/invitations/{invitationID}/accept
func (h *Handler) ServeAcceptInvitation(w http.ResponseWriter, r *http.Request) {
	id, err := httpjson.ObjectID(r, "invitationID")
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	var in acceptRequest
	if err := httpjson.Decode(w, r, &in); err != nil {
		h.WriteErr(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	s, err := h.Accounts.AcceptInvitation(ctx, accounts.AcceptInput{
		InvitationID: id,
		Token:        in.Token,
		Password:     in.Password,
	})
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	h.startSession(w, r, http.StatusCreated, s)
}

type phoneRequest struct {
	Phone     string `json:"phone"`
	Code      string `json:"code"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// POST /auth/phone
func (h *Handler) ServePhoneLogin(w http.ResponseWriter, r *http.Request) {
	var in phoneRequest
	if err := httpjson.Decode(w, r, &in); err != nil {
		h.WriteErr(w, r, err)
		return
	}
	if h.throttled(w, r, in.Phone) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Phone.Check(ctx, in.Phone, in.Code); err != nil {
		h.Log.Info("phone verification failed", zap.Error(err))
		h.WriteErr(w, r, apperr.Unauthorized(apperr.ReasonBadCredentials, "phone verification failed"))
		return
	}
	s, err := h.Accounts.PhoneLogin(ctx, accounts.ExternalProfile{
		Phone:     in.Phone,
		FirstName: in.FirstName,
		LastName:  in.LastName,
	})
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	h.startSession(w, r, http.StatusOK, s)
}

// GET /auth/me
func (h *Handler) ServeMe(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		h.WriteErr(w, r, apperr.Unauthorized(apperr.ReasonInvalidToken, "sign in required"))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	me, err := h.Accounts.Me(ctx, u.ID)
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	httpjson.OK(w, me)
}

type confirmRequest struct {
	Code string `json:"code"`
}

// POST /auth/email/confirm
func (h *Handler) ServeConfirmEmail(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		h.WriteErr(w, r, apperr.Unauthorized(apperr.ReasonInvalidToken, "sign in required"))
		return
	}
	var in confirmRequest
	if err := httpjson.Decode(w, r, &in); err != nil {
		h.WriteErr(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.Accounts.ConfirmEmail(ctx, u.ID, in.Code); err != nil {
		h.WriteErr(w, r, err)
		return
	}
	httpjson.OK(w, map[string]bool{"email_confirmed": true})
}

// POST /auth/email/resend
func (h *Handler) ServeResendConfirmation(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		h.WriteErr(w, r, apperr.Unauthorized(apperr.ReasonInvalidToken, "sign in required"))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Accounts.SendEmailConfirmation(ctx, u.ID); err != nil {
		h.WriteErr(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusAccepted, map[string]string{"status": "sent"})
}
