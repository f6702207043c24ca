// Package auth issues and checks the signed session carried by portal users.
//
// A session is an HS256 JWT holding the profile id and role. Browsers get it
// in an HttpOnly cookie; API clients may send it as a bearer token instead.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/diewo77/agency-portal/httpx"
)

type ctxKey string

const (
	CookieName  = "portal_session"
	DefaultTTL  = 14 * 24 * time.Hour
	sessionCtx  = ctxKey("session")
	tokenIssuer = "agency-portal"
)

var ErrInvalidSession = errors.New("invalid session")

// Session is what a request knows about its signed-in user.
type Session struct {
	ProfileID uint   `json:"profile_id"`
	Role      string `json:"role"`
}

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// UserVerifier reports whether a session still refers to an existing profile.
// An error means the answer is unknown; the session is kept.
type UserVerifier func(ctx context.Context, s Session) (bool, error)

// Manager signs sessions and guards routes.
type Manager struct {
	secret   []byte
	ttl      time.Duration
	secure   bool
	verifier UserVerifier
	now      func() time.Time
}

type Option func(*Manager)

func WithTTL(d time.Duration) Option { return func(m *Manager) { m.ttl = d } }

// WithSecureCookie marks the cookie Secure; enable it behind TLS.
func WithSecureCookie(on bool) Option { return func(m *Manager) { m.secure = on } }

func WithVerifier(v UserVerifier) Option { return func(m *Manager) { m.verifier = v } }

func NewManager(secret string, opts ...Option) *Manager {
	m := &Manager{secret: []byte(secret), ttl: DefaultTTL, now: time.Now}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Sign returns a token for the session.
func (m *Manager) Sign(s Session) (string, error) {
	now := m.now()
	c := claims{
		Role: s.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(s.ProfileID), 10),
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.secret)
}

// Verify parses a token and returns its session.
func (m *Manager) Verify(token string) (Session, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !parsed.Valid {
		return Session{}, ErrInvalidSession
	}
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil || id == 0 {
		return Session{}, ErrInvalidSession
	}
	return Session{ProfileID: uint(id), Role: c.Role}, nil
}

// Create signs the session and sets the cookie.
func (m *Manager) Create(w http.ResponseWriter, s Session) error {
	tok, err := m.Sign(s)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    tok,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  m.now().Add(m.ttl),
	})
	return nil
}

func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Parse reads the session from the cookie, falling back to a bearer token.
func (m *Manager) Parse(r *http.Request) (Session, bool) {
	tok := bearerToken(r)
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		tok = c.Value
	}
	if tok == "" {
		return Session{}, false
	}
	s, err := m.Verify(tok)
	return s, err == nil
}

func bearerToken(r *http.Request) string {
	scheme, tok, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(tok)
}

// Middleware attaches the session to the request context when present.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s, ok := m.Parse(r); ok {
			r = r.WithContext(WithSession(r.Context(), s))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth sends anonymous users to /auth/login, or 401 for JSON clients.
// A session whose profile disappeared is cleared and treated as anonymous.
func (m *Manager) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := SessionFromContext(r.Context())
		if ok && m.verifier != nil {
			live, err := m.verifier(r.Context(), s)
			if err != nil {
				if httpx.WantsJSON(r) {
					httpx.JSONError(w, http.StatusInternalServerError, "session_check_failed", nil)
					return
				}
				http.Error(w, "Could not check your session, please retry.", http.StatusInternalServerError)
				return
			}
			if !live {
				m.Clear(w)
				ok = false
			}
		}
		if !ok {
			Unauthorized(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Unauthorized answers an anonymous request in the format it asked for.
func Unauthorized(w http.ResponseWriter, r *http.Request) {
	if httpx.WantsJSON(r) {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionCtx, s)
}

func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionCtx).(Session)
	return s, ok && s.ProfileID != 0
}

// UserIDFromContext returns the signed-in profile id.
func UserIDFromContext(ctx context.Context) (uint, bool) {
	s, ok := SessionFromContext(ctx)
	return s.ProfileID, ok
}
