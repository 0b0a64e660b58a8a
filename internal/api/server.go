package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/restoku/restoku-server/internal/appstate"
	"github.com/restoku/restoku-server/internal/auth"
	"github.com/restoku/restoku-server/internal/cart"
	"github.com/restoku/restoku-server/internal/chat"
	"github.com/restoku/restoku-server/internal/config"
	"github.com/restoku/restoku-server/internal/events"
	"github.com/restoku/restoku-server/internal/favorites"
	"github.com/restoku/restoku-server/internal/loyalty"
	"github.com/restoku/restoku-server/internal/notify"
	"github.com/restoku/restoku-server/internal/routing"
	"github.com/restoku/restoku-server/internal/session"
	"github.com/restoku/restoku-server/internal/storage"
	"github.com/restoku/restoku-server/internal/storefront"
	"github.com/restoku/restoku-server/internal/tenant"
	"github.com/restoku/restoku-server/internal/validation"
)

// Services are the providers the HTTP layer reads from
type Services struct {
	Store     storage.Store
	Auth      *auth.Service
	Sessions  *session.Resolver
	Tenants   *tenant.Resolver
	Scopes    *appstate.Scopes
	Carts     *cart.Provider
	Favorites *favorites.Provider
	Toasts    *notify.ToastProvider
	Layouts   *storefront.LayoutProvider
	Locations *storefront.LocationProvider
	Homepages *storefront.Homepages
	Notifier  *notify.Notifier
	Chat      *chat.Service
	Hub       *chat.Hub
	Loyalty   *loyalty.Service
	Bus       events.Bus
}

// Server is the HTTP front of the platform
type Server struct {
	config    *config.Config
	svc       Services
	validator *validation.Validator
	gate      *tenant.Gate
	table     *routing.Table
	handler   http.Handler
	server    *http.Server
	now       func() time.Time
}

// NewServer builds the route table and the router
func NewServer(cfg *config.Config, svc Services) (*Server, error) {
	s := &Server{
		config:    cfg,
		svc:       svc,
		validator: validation.NewValidator(),
		now:       time.Now,
	}
	s.gate = tenant.NewGate(svc.Tenants, cfg.Tenant, s.renderGateError)

	forests := routing.NewForests()
	table, err := routing.NewTable(forests, s.routes(forests),
		routing.WithLayoutObserver(func(r *http.Request, forest string) {
			zerolog.Ctx(r.Context()).Debug().Str("layout", forest).Msg("Layout mounted")
		}),
		routing.WithDecorator(svc.Layouts.Decorate),
		routing.WithDecorator(svc.Toasts.Decorate),
	)
	if err != nil {
		return nil, fmt.Errorf("build route table: %w", err)
	}
	s.table = table
	s.handler = s.setupRoutes()

	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Table returns the validated route table
func (s *Server) Table() *routing.Table { return s.table }

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler { return s.handler }

// setupRoutes composes middleware, the platform tree and the tenant tree
func (s *Server) setupRoutes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.config.API.RequestTimeout))
	r.Use(middleware.GetHead)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.API.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Use(s.svc.Sessions.Middleware)

	if s.gate.Mode() == config.TenantModeSubdomain {
		platform := chi.NewRouter()
		s.mountPlatform(platform)

		tenants := chi.NewRouter()
		s.mountTenant(tenants)

		r.Mount("/", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if _, ok := s.gate.Slug(req); ok {
				tenants.ServeHTTP(w, req)
				return
			}
			platform.ServeHTTP(w, req)
		}))
		return r
	}

	s.mountPlatform(r)
	r.Route("/{"+tenant.URLParam+"}", s.mountTenant)
	return r
}

func (s *Server) mountPlatform(r chi.Router) {
	r.NotFound(s.table.PlatformNotFound)
	s.mountStatic(r)
	s.table.Mount(r, false)
}

func (s *Server) mountTenant(r chi.Router) {
	r.Use(middleware.StripSlashes)
	r.Use(s.gate.Middleware)
	r.Use(s.visitorScope)
	r.Use(s.svc.Carts.Middleware)
	r.Use(s.svc.Favorites.Middleware)
	r.Use(s.svc.Toasts.Middleware)
	r.Use(s.svc.Layouts.Middleware)
	r.Use(s.svc.Locations.Middleware)

	s.table.Mount(r, true)
	r.NotFound(s.table.TenantFallback)
}

// staticPrefix is where the web bundle is served from when configured
const staticPrefix = "/assets"

func (s *Server) mountStatic(r chi.Router) {
	webDir := s.config.Web.StaticDir
	if webDir == "" {
		return
	}
	if _, err := os.Stat(webDir); os.IsNotExist(err) {
		log.Warn().Str("dir", webDir).Msg("Web directory not found, static assets will not be available")
		return
	}
	log.Info().Str("dir", webDir).Msg("Serving static assets from directory")
	r.Handle(staticPrefix+"/*", http.StripPrefix(staticPrefix, http.FileServer(http.Dir(webDir))))
}

// visitorScope binds the visitor's scope to the resolved tenant
func (s *Server) visitorScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t := tenant.Must(r.Context())
		visitorID := s.svc.Sessions.VisitorID(w, r)
		scope := s.svc.Scopes.Bind(visitorID, t.ID)
		next.ServeHTTP(w, r.WithContext(appstate.ScopeKey.With(r.Context(), scope)))
	})
}

func (s *Server) renderGateError(w http.ResponseWriter, r *http.Request, err error) {
	routing.RenderError(w, r, "tenant.not-found", err)
}

// ListenAndServe starts the server
func (s *Server) ListenAndServe(addr string) error {
	s.server.Addr = addr
	log.Info().Str("addr", addr).Str("tenant_mode", s.gate.Mode()).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// requestLogger attaches a request logger to the context and logs each response
func requestLogger(base zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			logger := base.With().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Logger()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(logger.WithContext(r.Context())))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			event := logger.Info()
			switch {
			case status >= 500:
				event = logger.Error()
			case status >= 400:
				event = logger.Warn()
			}
			event.Int("status", status).
				Dur("latency", time.Since(start)).
				Str("client_ip", r.RemoteAddr).
				Int("bytes", ww.BytesWritten()).
				Msg("HTTP request")
		})
	}
}
