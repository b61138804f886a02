// internal/app/system/websession/websession.go
package websession

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

const refreshKey = "refresh_token"

// Store keeps the refresh token in an encrypted HttpOnly cookie so browser
// clients never expose it to scripts.
type Store struct {
	cookies *sessions.CookieStore
	name    string
	log     *zap.Logger
}

// New builds a cookie store. In production (secure=true) cookies are Secure
// and SameSite=None; over plain http on localhost they are Lax.
func New(sessionKey, name, domain string, secure bool, maxAge int, log *zap.Logger) (*Store, error) {
	if sessionKey == "" {
		return nil, fmt.Errorf("session key is empty; provide 32+ random chars")
	}
	if len(sessionKey) < 32 {
		log.Warn("session key is short; 32+ chars recommended",
			zap.Int("length", len(sessionKey)))
	}
	if name == "" {
		name = "shepherd-session"
	}

	cs := sessions.NewCookieStore([]byte(sessionKey))
	cs.Options = &sessions.Options{
		Domain:   domain,
		Path:     "/auth",
		MaxAge:   maxAge,
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if secure {
		cs.Options.SameSite = http.SameSiteNoneMode
	}

	log.Info("session store initialized",
		zap.Bool("secure", secure),
		zap.String("domain", domain))
	return &Store{cookies: cs, name: name, log: log}, nil
}

// get tolerates cookies signed with a rotated key: they decode as a fresh
// empty session.
func (s *Store) get(r *http.Request) (*sessions.Session, error) {
	sess, err := s.cookies.Get(r, s.name)
	if err != nil {
		var se securecookie.Error
		if errors.As(err, &se) && se.IsDecode() {
			s.log.Debug("discarding undecodable session cookie", zap.Error(err))
			return sess, nil
		}
		return nil, err
	}
	return sess, nil
}

// SetRefresh stores token in the session cookie.
func (s *Store) SetRefresh(w http.ResponseWriter, r *http.Request, token string) error {
	sess, err := s.get(r)
	if err != nil {
		return err
	}
	sess.Values[refreshKey] = token
	return sess.Save(r, w)
}

// Refresh returns the stored refresh token, if any.
func (s *Store) Refresh(r *http.Request) string {
	sess, err := s.get(r)
	if err != nil {
		return ""
	}
	v, _ := sess.Values[refreshKey].(string)
	return v
}

// Clear expires the session cookie.
func (s *Store) Clear(w http.ResponseWriter, r *http.Request) error {
	sess, err := s.get(r)
	if err != nil {
		return err
	}
	sess.Options.MaxAge = -1
	delete(sess.Values, refreshKey)
	return sess.Save(r, w)
}
