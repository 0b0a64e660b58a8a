package routing

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/restoku/restoku-server/internal/session"
	"github.com/restoku/restoku-server/internal/tenant"
)

// Route maps one method and pattern of a forest to a page, an action or a redirect
type Route struct {
	Method  string
	Pattern string
	Name    string
	Forest  *Forest

	// Redirect is a target relative to the tenant base
	Redirect string
	Page     PageFunc
	Action   http.HandlerFunc
}

// Path returns the pattern including the forest prefix
func (rt *Route) Path() string {
	if rt.Forest == nil {
		return rt.Pattern
	}
	return rt.Forest.Prefix + rt.Pattern
}

// LayoutObserver is told every time a layout shell is mounted
type LayoutObserver func(r *http.Request, forest string)

// Decorator adds request-specific data to a rendered page view
type Decorator func(r *http.Request, view *PageView)

// RouteInfo is the printable form of a route
type RouteInfo struct {
	Method   string   `json:"method"`
	Path     string   `json:"path"`
	Name     string   `json:"name"`
	Forest   string   `json:"forest"`
	Tenant   bool     `json:"tenant"`
	Roles    []string `json:"roles,omitempty"`
	Guarded  bool     `json:"guarded"`
	Redirect string   `json:"redirect,omitempty"`
}

// Table is the validated, immutable route table
type Table struct {
	forests    Forests
	routes     []*Route
	observer   LayoutObserver
	decorators []Decorator
}

// Option configures a Table
type Option func(*Table)

// WithLayoutObserver installs a hook reporting layout mounts
func WithLayoutObserver(o LayoutObserver) Option {
	return func(t *Table) { t.observer = o }
}

// WithDecorator appends a page view decorator
func WithDecorator(d Decorator) Option {
	return func(t *Table) { t.decorators = append(t.decorators, d) }
}

var methods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// NewTable validates routes and builds the table
func NewTable(forests Forests, routes []*Route, opts ...Option) (*Table, error) {
	seen := make(map[string]string, len(routes))
	gets := make(map[string]bool)

	for _, rt := range routes {
		if rt.Forest == nil {
			return nil, fmt.Errorf("route %s: no forest", rt.Name)
		}
		if !methods[rt.Method] {
			return nil, fmt.Errorf("route %s: unsupported method %q", rt.Name, rt.Method)
		}
		path := rt.Path()
		if !strings.HasPrefix(path, "/") {
			return nil, fmt.Errorf("route %s: path %q must start with /", rt.Name, path)
		}

		targets := 0
		if rt.Redirect != "" {
			targets++
		}
		if rt.Page != nil {
			targets++
		}
		if rt.Action != nil {
			targets++
		}
		if targets != 1 {
			return nil, fmt.Errorf("route %s: needs exactly one of page, action or redirect", rt.Name)
		}

		key := fmt.Sprintf("%t %s %s", rt.Forest.Tenant, rt.Method, path)
		if other, ok := seen[key]; ok {
			return nil, fmt.Errorf("route %s: %s %s already registered by %s", rt.Name, rt.Method, path, other)
		}
		seen[key] = rt.Name

		if rt.Method == http.MethodGet {
			gets[fmt.Sprintf("%t %s", rt.Forest.Tenant, path)] = true
		}
	}

	for _, rt := range routes {
		if rt.Redirect == "" {
			continue
		}
		if !gets[fmt.Sprintf("%t %s", rt.Forest.Tenant, rt.Redirect)] {
			return nil, fmt.Errorf("route %s: redirect target %s is not a page", rt.Name, rt.Redirect)
		}
	}

	t := &Table{forests: forests, routes: routes}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Forests returns the forests the table was built with
func (t *Table) Forests() Forests { return t.forests }

// Describe lists every route in registration order
func (t *Table) Describe() []RouteInfo {
	infos := make([]RouteInfo, 0, len(t.routes))
	for _, rt := range t.routes {
		info := RouteInfo{
			Method:   rt.Method,
			Path:     rt.Path(),
			Name:     rt.Name,
			Forest:   rt.Forest.Name,
			Tenant:   rt.Forest.Tenant,
			Guarded:  rt.Forest.Guarded,
			Redirect: rt.Redirect,
		}
		for _, role := range rt.Forest.AllowedRoles {
			info.Roles = append(info.Roles, string(role))
		}
		infos = append(infos, info)
	}
	return infos
}

// PlatformSegments returns the first path segments taken by platform routes.
// A tenant slug equal to one of them could never be reached in path mode.
func (t *Table) PlatformSegments() []string {
	seen := make(map[string]bool)
	var segments []string
	for _, rt := range t.routes {
		if rt.Forest.Tenant {
			continue
		}
		segment := strings.SplitN(strings.TrimPrefix(rt.Path(), "/"), "/", 2)[0]
		if segment == "" || seen[segment] {
			continue
		}
		seen[segment] = true
		segments = append(segments, segment)
	}
	return segments
}

// Mount registers the routes of tenant (or platform) forests on r
func (t *Table) Mount(r chi.Router, tenantScoped bool) {
	for _, rt := range t.routes {
		if rt.Forest.Tenant != tenantScoped {
			continue
		}
		r.Method(rt.Method, rt.Path(), t.handler(rt))
	}
}

func (t *Table) handler(rt *Route) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if rt.Forest.Guarded {
			sess, _ := session.FromContext(ctx)
			tn, _ := tenant.FromContext(ctx)
			switch Evaluate(sess, rt.Forest, tn) {
			case Suspend:
				RenderLoading(w, r, rt.Name)
				return
			case Redirect:
				RedirectToLogin(w, r)
				return
			}
		}

		switch {
		case rt.Redirect != "":
			target := tenant.BasePath(ctx) + rt.Redirect
			if r.URL.RawQuery != "" {
				target += "?" + r.URL.RawQuery
			}
			http.Redirect(w, r, target, http.StatusFound)
		case rt.Page != nil:
			t.renderPage(w, r, rt)
		default:
			rt.Action(w, r)
		}
	})
}

func (t *Table) renderPage(w http.ResponseWriter, r *http.Request, rt *Route) {
	page, err := rt.Page(r)
	if err != nil {
		RenderError(w, r, rt.Name, err)
		return
	}

	view := newView(r, rt.Name)
	view.Title = page.Title
	view.Data = page.Data
	t.mountShell(r, view, rt.Forest)

	status := page.Status
	if status == 0 {
		status = http.StatusOK
	}
	WriteJSON(w, status, view)
}

func (t *Table) mountShell(r *http.Request, view *PageView, f *Forest) {
	view.Layout = shellFor(r, f.Layout)
	if t.observer != nil {
		t.observer(r, f.Name)
	}
	for _, d := range t.decorators {
		d(r, view)
	}
}

// TenantFallback sends unmatched paths inside a tenant to its login page
func (t *Table) TenantFallback(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, tenant.BasePath(r.Context())+"/login", http.StatusFound)
}

// PlatformNotFound renders the platform page for unknown root paths
func (t *Table) PlatformNotFound(w http.ResponseWriter, r *http.Request) {
	view := newView(r, "platform.not-found")
	view.Title = "Halaman tidak ditemukan"
	view.Error = "page not found"
	t.mountShell(r, view, t.forests.Platform)
	WriteJSON(w, http.StatusNotFound, view)
}

// LoginLocation returns the login URL that returns the visitor to the current path
func LoginLocation(r *http.Request) string {
	base := tenant.BasePath(r.Context())
	next := strings.TrimPrefix(r.URL.Path, base)
	if next == "" {
		next = "/"
	}
	if r.URL.RawQuery != "" {
		next += "?" + r.URL.RawQuery
	}
	return base + "/login?next=" + url.QueryEscape(next)
}

// RedirectToLogin answers page requests with 302 and actions with 401
func RedirectToLogin(w http.ResponseWriter, r *http.Request) {
	location := LoginLocation(r)
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		http.Redirect(w, r, location, http.StatusFound)
		return
	}
	WriteJSON(w, http.StatusUnauthorized, map[string]string{
		"error":    "authentication required",
		"redirect": location,
	})
}

// SafeNext validates a post-login return path. Only relative paths are accepted.
func SafeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return "/"
	}
	return next
}
