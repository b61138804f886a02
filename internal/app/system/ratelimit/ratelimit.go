// internal/app/system/ratelimit/ratelimit.go
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Limiter counts attempts per key in fixed windows. It is safe for
// concurrent use.
type Limiter struct {
	mu       sync.Mutex
	windows  map[string]*window
	limit    int
	duration time.Duration
	now      func() time.Time
}

type window struct {
	count     int
	expiresAt time.Time
}

// New creates a limiter allowing limit attempts per key per duration. A
// limit of zero or less disables it.
func New(limit int, duration time.Duration) *Limiter {
	return &Limiter{
		windows:  make(map[string]*window),
		limit:    limit,
		duration: duration,
		now:      time.Now,
	}
}

// Allow records an attempt for key and reports whether it is within the limit.
func (l *Limiter) Allow(key string) bool {
	if l.limit <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.After(w.expiresAt) {
		l.sweep(now)
		l.windows[key] = &window{count: 1, expiresAt: now.Add(l.duration)}
		return true
	}
	if w.count >= l.limit {
		return false
	}
	w.count++
	return true
}

// Reset clears the count for key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
}

// sweep drops expired windows. Callers hold mu.
func (l *Limiter) sweep(now time.Time) {
	for k, w := range l.windows {
		if now.After(w.expiresAt) {
			delete(l.windows, k)
		}
	}
}

// ClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the
// host part of RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
			return ip
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// AuthLimiter throttles credential and code attempts by client IP and by
// login id (email or phone), so that neither one address nor one account
// can be hammered.
type AuthLimiter struct {
	byIP    *Limiter
	byLogin *Limiter
}

// NewAuthLimiter allows ipLimit attempts per IP per minute and loginLimit
// attempts per login id per five minutes.
func NewAuthLimiter(ipLimit, loginLimit int) *AuthLimiter {
	return &AuthLimiter{
		byIP:    New(ipLimit, time.Minute),
		byLogin: New(loginLimit, 5*time.Minute),
	}
}

// Allow records an attempt and returns a message when it is refused.
func (a *AuthLimiter) Allow(r *http.Request, loginID string) (bool, string) {
	if !a.byIP.Allow(ClientIP(r)) {
		return false, "too many attempts; wait a minute and try again"
	}
	if key := loginKey(loginID); key != "" && !a.byLogin.Allow(key) {
		return false, "too many attempts for this account; wait a few minutes and try again"
	}
	return true, ""
}

// Succeeded clears the per-account count after a successful sign-in.
func (a *AuthLimiter) Succeeded(loginID string) {
	if key := loginKey(loginID); key != "" {
		a.byLogin.Reset(key)
	}
}

func loginKey(loginID string) string {
	return strings.ToLower(strings.TrimSpace(loginID))
}
