// Package storefront holds the per-visitor presentation state of a tenant
// storefront and the homepage assembly.
package storefront

import (
	"context"
	"net/http"
	"sync"

	"github.com/restoku/restoku-server/internal/appstate"
	"github.com/restoku/restoku-server/internal/models"
	"github.com/restoku/restoku-server/internal/routing"
	"github.com/restoku/restoku-server/internal/tenant"
)

// Menu layouts
const (
	LayoutGrid = "grid"
	LayoutList = "list"
)

// Preferences are the display choices of a visitor
type Preferences struct {
	DarkMode *bool  `json:"darkMode,omitempty"`
	Layout   string `json:"layout,omitempty" validate:"omitempty,oneof=grid list"`
}

// Theme is the effective look of a storefront for one visitor
type Theme struct {
	PrimaryColor   string `json:"primaryColor"`
	SecondaryColor string `json:"secondaryColor"`
	LogoURL        string `json:"logoUrl,omitempty"`
	BannerURL      string `json:"bannerUrl,omitempty"`
	DarkMode       bool   `json:"darkMode"`
	Layout         string `json:"layout"`
}

// Default brand colours
const (
	DefaultPrimaryColor   = "#c0392b"
	DefaultSecondaryColor = "#f5b041"
)

// ThemeFor merges tenant branding with visitor preferences
func ThemeFor(b models.Branding, prefs Preferences) Theme {
	theme := Theme{
		PrimaryColor:   b.PrimaryColor,
		SecondaryColor: b.SecondaryColor,
		LogoURL:        b.LogoURL,
		BannerURL:      b.BannerURL,
		DarkMode:       b.DarkMode,
		Layout:         LayoutGrid,
	}
	if theme.PrimaryColor == "" {
		theme.PrimaryColor = DefaultPrimaryColor
	}
	if theme.SecondaryColor == "" {
		theme.SecondaryColor = DefaultSecondaryColor
	}
	if prefs.DarkMode != nil {
		theme.DarkMode = *prefs.DarkMode
	}
	if prefs.Layout != "" {
		theme.Layout = prefs.Layout
	}
	return theme
}

// Layout holds a visitor's preferences within a tenant
type Layout struct {
	mu    sync.Mutex
	prefs Preferences
}

// Preferences returns a copy of the current preferences
func (l *Layout) Preferences() Preferences {
	l.mu.Lock()
	defer l.mu.Unlock()
	p := l.prefs
	if p.DarkMode != nil {
		v := *p.DarkMode
		p.DarkMode = &v
	}
	return p
}

// Update merges set fields of p into the preferences
func (l *Layout) Update(p Preferences) Preferences {
	l.mu.Lock()
	if p.DarkMode != nil {
		v := *p.DarkMode
		l.prefs.DarkMode = &v
	}
	if p.Layout != "" {
		l.prefs.Layout = p.Layout
	}
	l.mu.Unlock()
	return l.Preferences()
}

var layoutKey = appstate.NewKey[*Layout]("customer layout")

// LayoutFromContext returns the visitor's layout preferences
func LayoutFromContext(ctx context.Context) (*Layout, bool) {
	return layoutKey.From(ctx)
}

// MustLayout returns the layout or panics outside the customer layout provider
func MustLayout(ctx context.Context) *Layout {
	return layoutKey.Must(ctx)
}

var themeKey = appstate.NewKey[Theme]("theme")

// ThemeFromContext returns the effective theme of the request
func ThemeFromContext(ctx context.Context) (Theme, bool) {
	return themeKey.From(ctx)
}

// MustTheme returns the theme or panics outside the theme provider
func MustTheme(ctx context.Context) Theme {
	return themeKey.Must(ctx)
}

// LayoutProvider attaches preferences to visitor scopes and derives the theme
type LayoutProvider struct{}

// NewLayoutProvider creates the customer layout and theme provider
func NewLayoutProvider() *LayoutProvider { return &LayoutProvider{} }

// Name implements appstate.Provider
func (p *LayoutProvider) Name() string { return "customer layout" }

// Start implements appstate.Provider
func (p *LayoutProvider) Start(ctx context.Context) error { return nil }

// Close implements appstate.Provider
func (p *LayoutProvider) Close() error { return nil }

// For returns the preferences of scope
func (p *LayoutProvider) For(scope *appstate.Scope) *Layout {
	return appstate.ScopeValue(scope, "layout", func() *Layout { return &Layout{} })
}

// Middleware places the visitor's preferences and the tenant theme into the context
func (p *LayoutProvider) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t, ok := tenant.FromContext(r.Context())
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		var prefs Preferences
		if scope, ok := appstate.ScopeKey.From(ctx); ok {
			layout := p.For(scope)
			prefs = layout.Preferences()
			ctx = layoutKey.With(ctx, layout)
		}
		ctx = themeKey.With(ctx, ThemeFor(t.Branding, prefs))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Decorate adds the theme to page views
func (p *LayoutProvider) Decorate(r *http.Request, view *routing.PageView) {
	theme, ok := ThemeFromContext(r.Context())
	if !ok {
		return
	}
	if view.Meta == nil {
		view.Meta = make(map[string]interface{})
	}
	view.Meta["theme"] = theme
}
