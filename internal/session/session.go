// Package session builds the per-request authentication state read by route guards.
package session

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/restoku/restoku-server/internal/appstate"
	"github.com/restoku/restoku-server/internal/auth"
	"github.com/restoku/restoku-server/internal/config"
	"github.com/restoku/restoku-server/internal/models"
)

// Session is the authentication state of one request
type Session struct {
	IsAuthenticated bool
	User            *models.User
	Claims          *auth.Claims
	// Loading is set when a token is present but cannot be checked yet
	Loading bool
}

// Anonymous is the session of a visitor without a valid token
var Anonymous = &Session{}

var key = appstate.NewKey[*Session]("auth")

// WithSession returns a context carrying s
func WithSession(ctx context.Context, s *Session) context.Context {
	return key.With(ctx, s)
}

// FromContext returns the session of the request
func FromContext(ctx context.Context) (*Session, bool) {
	return key.From(ctx)
}

// Must returns the session or panics outside the session middleware
func Must(ctx context.Context) *Session {
	return key.Must(ctx)
}

// Authenticator validates access tokens
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.Claims, error)
}

// Resolver turns request credentials into a Session
type Resolver struct {
	auth Authenticator
	cfg  config.SessionConfig
}

// NewResolver creates the session resolver
func NewResolver(a Authenticator, cfg config.SessionConfig) *Resolver {
	return &Resolver{auth: a, cfg: cfg}
}

// Resolve authenticates the request. It never fails: invalid tokens give an
// anonymous session and an unreachable revocation store gives a loading one.
func (r *Resolver) Resolve(req *http.Request) *Session {
	token := TokenFromRequest(req, r.cfg.TokenCookie)
	if token == "" {
		return Anonymous
	}

	claims, err := r.auth.Authenticate(req.Context(), token)
	if errors.Is(err, auth.ErrRevocationUnavailable) {
		zerolog.Ctx(req.Context()).Warn().Err(err).Msg("Session check deferred")
		return &Session{Loading: true}
	}
	if err != nil {
		return Anonymous
	}

	return &Session{
		IsAuthenticated: true,
		User:            claims.User(),
		Claims:          claims,
	}
}

// Middleware places the resolved session into the request context
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		s := r.Resolve(req)
		ctx := req.Context()
		if s.IsAuthenticated {
			logger := zerolog.Ctx(ctx).With().Str("user_id", s.User.ID.String()).Logger()
			ctx = logger.WithContext(ctx)
		}
		next.ServeHTTP(w, req.WithContext(WithSession(ctx, s)))
	})
}

// TokenFromRequest reads the bearer token, falling back to the token cookie
func TokenFromRequest(r *http.Request, cookieName string) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if cookie, err := r.Cookie(cookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// SetToken stores the access token in the session cookie
func (r *Resolver) SetToken(w http.ResponseWriter, pair *auth.TokenPair) {
	http.SetCookie(w, &http.Cookie{
		Name:     r.cfg.TokenCookie,
		Value:    pair.AccessToken,
		Path:     "/",
		Expires:  pair.ExpiresAt,
		HttpOnly: true,
		Secure:   r.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearToken removes the session cookie
func (r *Resolver) ClearToken(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     r.cfg.TokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// VisitorID returns the visitor cookie value, issuing a new id when absent
func (r *Resolver) VisitorID(w http.ResponseWriter, req *http.Request) string {
	if cookie, err := req.Cookie(r.cfg.VisitorCookie); err == nil {
		if _, err := uuid.Parse(cookie.Value); err == nil {
			return cookie.Value
		}
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     r.cfg.VisitorCookie,
		Value:    id,
		Path:     "/",
		Expires:  time.Now().Add(365 * 24 * time.Hour),
		HttpOnly: true,
		Secure:   r.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	req.AddCookie(&http.Cookie{Name: r.cfg.VisitorCookie, Value: id})
	return id
}
