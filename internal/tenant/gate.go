package tenant

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/restoku/restoku-server/internal/config"
)

// URLParam is the chi route parameter carrying the slug in path mode
const URLParam = "tenant"

// ErrorHandler renders a resolution failure
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// Gate resolves the tenant of each request before the wrapped handler runs
type Gate struct {
	resolver   *Resolver
	mode       string
	baseDomain string
	onError    ErrorHandler
}

// NewGate creates the gate middleware factory
func NewGate(resolver *Resolver, cfg config.TenantConfig, onError ErrorHandler) *Gate {
	if onError == nil {
		onError = defaultErrorHandler
	}
	return &Gate{
		resolver:   resolver,
		mode:       cfg.Mode,
		baseDomain: cfg.BaseDomain,
		onError:    onError,
	}
}

// Mode returns the configured tenant mode
func (g *Gate) Mode() string { return g.mode }

// Slug extracts the tenant slug of a request
func (g *Gate) Slug(r *http.Request) (string, bool) {
	if g.mode == config.TenantModeSubdomain {
		return SlugFromHost(r.Host, g.baseDomain)
	}
	slug := chi.URLParam(r, URLParam)
	return slug, slug != ""
}

// Middleware resolves the tenant and places it into the request context
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slug, ok := g.Slug(r)
		if !ok {
			g.onError(w, r, ErrNotFound)
			return
		}

		t, err := g.resolver.Resolve(r.Context(), slug)
		if err != nil {
			g.onError(w, r, err)
			return
		}

		base := ""
		if g.mode != config.TenantModeSubdomain {
			base = "/" + t.Slug
			if slug != t.Slug {
				canonicalRedirect(w, r, "/"+slug, base)
				return
			}
		}

		logger := zerolog.Ctx(r.Context()).With().Str("tenant", t.Slug).Logger()
		ctx := logger.WithContext(r.Context())
		ctx = WithTenant(ctx, t, base)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// canonicalRedirect sends a request made under a non-canonical slug segment to
// the same path under the stored slug
func canonicalRedirect(w http.ResponseWriter, r *http.Request, from, to string) {
	target := to + strings.TrimPrefix(r.URL.Path, from)
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	status := http.StatusMovedPermanently
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		status = http.StatusPermanentRedirect
	}
	http.Redirect(w, r, target, status)
}

// SlugFromHost returns the tenant label of host under baseDomain.
// The bare base domain and the www label belong to the platform.
func SlugFromHost(host, baseDomain string) (string, bool) {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	suffix := "." + baseDomain
	if baseDomain == "" || !strings.HasSuffix(host, suffix) {
		return "", false
	}
	label := strings.TrimSuffix(host, suffix)
	if label == "" || label == "www" || strings.Contains(label, ".") {
		return "", false
	}
	return label, true
}

func defaultErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusNotFound
	body := map[string]interface{}{"error": err.Error()}
	if !errors.Is(err, ErrNotFound) {
		status = http.StatusServiceUnavailable
		body["retryable"] = true
		w.Header().Set("Retry-After", "1")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Failed to encode tenant error")
	}
}
