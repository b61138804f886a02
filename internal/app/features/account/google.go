// internal/app/features/account/google.go
package account

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/shepherd/internal/app/services/accounts"
	"github.com/dalemusser/shepherd/internal/app/system/apperr"
	"github.com/dalemusser/shepherd/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// stateTTL bounds the time between redirect and callback.
const stateTTL = 10 * time.Minute

// GoogleProvider runs the two network legs of Google sign-in.
type GoogleProvider interface {
	AuthCodeURL(state string) string
	Profile(ctx context.Context, code string) (accounts.ExternalProfile, error)
}

// GoogleOAuth is the GoogleProvider backed by Google's OAuth2 endpoints.
type GoogleOAuth struct {
	cfg *oauth2.Config
}

// NewGoogleOAuth returns nil when clientID or clientSecret is empty.
func NewGoogleOAuth(clientID, clientSecret, baseURL string) *GoogleOAuth {
	if clientID == "" || clientSecret == "" {
		return nil
	}
	return &GoogleOAuth{cfg: &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  strings.TrimRight(baseURL, "/") + "/auth/google/callback",
		Scopes: []string{
			"openid",
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}}
}

func (g *GoogleOAuth) AuthCodeURL(state string) string {
	return g.cfg.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// googleUserInfo represents user info returned from Google.
type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"verified_email"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
}

// Profile exchanges code for a token and fetches the userinfo document.
func (g *GoogleOAuth) Profile(ctx context.Context, code string) (accounts.ExternalProfile, error) {
	token, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		return accounts.ExternalProfile{}, fmt.Errorf("exchange code: %w", err)
	}

	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
	resp, err := client.Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		return accounts.ExternalProfile{}, fmt.Errorf("fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return accounts.ExternalProfile{}, fmt.Errorf("fetch user info: unexpected status %d", resp.StatusCode)
	}
	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return accounts.ExternalProfile{}, fmt.Errorf("decode user info: %w", err)
	}
	return accounts.ExternalProfile{
		ProviderID:    info.ID,
		Email:         info.Email,
		EmailVerified: info.EmailVerified,
		FirstName:     info.GivenName,
		LastName:      info.FamilyName,
	}, nil
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// safeReturn accepts only same-site relative paths.
func safeReturn(u string) string {
	if !strings.HasPrefix(u, "/") || strings.HasPrefix(u, "//") || strings.Contains(u, `\`) {
		return ""
	}
	return u
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/google                                                             |
| Redirects to Google's consent screen with a one-time state token.            |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeGoogleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		h.WriteErr(w, r, fmt.Errorf("generate oauth state: %w", err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	returnURL := safeReturn(query.Get(r, "return"))
	if err := h.StateStore.Save(ctx, state, returnURL, time.Now().Add(stateTTL)); err != nil {
		h.WriteErr(w, r, apperr.FromStorage(err))
		return
	}

	h.Log.Debug("initiating Google OAuth flow", zap.String("return_url", returnURL))
	http.Redirect(w, r, h.Google.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/google/callback                                                    |
| Consumes the state, resolves the Google identity and signs the user in.      |
| With a return path the refresh cookie is set and the browser redirected;     |
| otherwise the session is written as JSON.                                    |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if errParam := query.Get(r, "error"); errParam != "" {
		h.Log.Warn("Google OAuth error",
			zap.String("error", errParam),
			zap.String("description", query.Get(r, "error_description")))
		h.WriteErr(w, r, apperr.Unauthorized(apperr.ReasonBadCredentials, "google sign-in was denied"))
		return
	}
	state, code := query.Get(r, "state"), query.Get(r, "code")
	if state == "" || code == "" {
		h.WriteErr(w, r, apperr.Validation("state and code are required"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	returnURL, valid, err := h.StateStore.Consume(ctx, state)
	if err != nil {
		h.WriteErr(w, r, apperr.FromStorage(err))
		return
	}
	if !valid {
		h.WriteErr(w, r, apperr.Unauthorized(apperr.ReasonInvalidToken, "invalid or expired oauth state"))
		return
	}

	profile, err := h.Google.Profile(ctx, code)
	if err != nil {
		h.Log.Error("google profile lookup failed", zap.Error(err))
		h.WriteErr(w, r, apperr.Unauthorized(apperr.ReasonBadCredentials, "google sign-in failed"))
		return
	}

	s, err := h.Accounts.GoogleLogin(ctx, profile)
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}

	if returnURL != "" && h.Sessions != nil {
		if err := h.Sessions.SetRefresh(w, r, s.Tokens.RefreshToken); err != nil {
			h.WriteErr(w, r, err)
			return
		}
		http.Redirect(w, r, returnURL, http.StatusSeeOther)
		return
	}
	h.startSession(w, r, http.StatusOK, s)
}
