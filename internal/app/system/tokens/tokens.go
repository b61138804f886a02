// internal/app/system/tokens/tokens.go
package tokens

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

const issuer = "shepherd"

// Token kinds, carried in the "typ" claim so a refresh token cannot be
// presented as an access token.
const (
	kindAccess  = "access"
	kindRefresh = "refresh"
)

// Claims identify the caller. Church-scoped permissions are never embedded;
// they are resolved per request by the authorization gate.
type Claims struct {
	UserID    string `json:"uid"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Role      string `json:"role"`
	Kind      string `json:"typ"`
	jwt.RegisteredClaims
}

// Config holds signing secrets and lifetimes.
type Config struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Manager issues and verifies HS256 tokens.
type Manager struct {
	cfg Config
	now func() time.Time
}

func NewManager(cfg Config) *Manager {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}
	return &Manager{cfg: cfg, now: time.Now}
}

// Subject is the identity a token is issued for.
type Subject struct {
	UserID    string
	Email     string
	FirstName string
	LastName  string
	Role      string
}

// Pair is an access token plus its refresh token.
type Pair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// IssuePair signs a fresh access and refresh token for s.
func (m *Manager) IssuePair(s Subject) (Pair, error) {
	access, exp, err := m.sign(s, kindAccess, m.cfg.AccessSecret, m.cfg.AccessTTL)
	if err != nil {
		return Pair{}, err
	}
	refresh, _, err := m.sign(s, kindRefresh, m.cfg.RefreshSecret, m.cfg.RefreshTTL)
	if err != nil {
		return Pair{}, err
	}
	return Pair{AccessToken: access, RefreshToken: refresh, ExpiresAt: exp}, nil
}

func (m *Manager) sign(s Subject, kind, secret string, ttl time.Duration) (string, time.Time, error) {
	if s.UserID == "" {
		return "", time.Time{}, fmt.Errorf("sign %s token: user id required", kind)
	}
	now := m.now()
	exp := now.Add(ttl)
	claims := Claims{
		UserID:    s.UserID,
		Email:     s.Email,
		FirstName: s.FirstName,
		LastName:  s.LastName,
		Role:      s.Role,
		Kind:      kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.UserID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, exp, nil
}

// Verify validates an access token.
func (m *Manager) Verify(token string) (Claims, error) {
	return m.parse(token, kindAccess, m.cfg.AccessSecret)
}

// VerifyRefresh validates a refresh token.
func (m *Manager) VerifyRefresh(token string) (Claims, error) {
	return m.parse(token, kindRefresh, m.cfg.RefreshSecret)
}

func (m *Manager) parse(token, kind, secret string) (Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpiredToken
		}
		return Claims{}, ErrInvalidToken
	}
	if claims.Kind != kind || claims.UserID == "" {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

// ExtractBearer returns the token from an "Authorization: Bearer ..." header.
func ExtractBearer(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
