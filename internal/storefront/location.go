package storefront

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/restoku/restoku-server/internal/appstate"
	"github.com/restoku/restoku-server/internal/models"
)

// ErrUnknownOutlet is returned when selecting an outlet the tenant does not have
var ErrUnknownOutlet = errors.New("unknown outlet")

// Location is the outlet a visitor orders from
type Location struct {
	mu       sync.Mutex
	outletID uuid.UUID
}

// Select makes outletID the visitor's outlet
func (l *Location) Select(t *models.Tenant, outletID uuid.UUID) (models.Outlet, error) {
	outlet, ok := t.Outlets.Find(outletID)
	if !ok {
		return models.Outlet{}, ErrUnknownOutlet
	}
	l.mu.Lock()
	l.outletID = outletID
	l.mu.Unlock()
	return outlet, nil
}

// Selected returns the chosen outlet. A tenant with a single outlet has it
// selected implicitly. An outlet removed since selection is ignored.
func (l *Location) Selected(t *models.Tenant) (models.Outlet, bool) {
	l.mu.Lock()
	id := l.outletID
	l.mu.Unlock()

	if id != uuid.Nil {
		if outlet, ok := t.Outlets.Find(id); ok {
			return outlet, true
		}
	}
	if len(t.Outlets) == 1 {
		return t.Outlets[0], true
	}
	return models.Outlet{}, false
}

var locationKey = appstate.NewKey[*Location]("location")

// LocationFromContext returns the visitor's location
func LocationFromContext(ctx context.Context) (*Location, bool) {
	return locationKey.From(ctx)
}

// MustLocation returns the location or panics outside the location provider
func MustLocation(ctx context.Context) *Location {
	return locationKey.Must(ctx)
}

// LocationProvider attaches the selected outlet to visitor scopes
type LocationProvider struct{}

// NewLocationProvider creates the location provider
func NewLocationProvider() *LocationProvider { return &LocationProvider{} }

// Name implements appstate.Provider
func (p *LocationProvider) Name() string { return "location" }

// Start implements appstate.Provider
func (p *LocationProvider) Start(ctx context.Context) error { return nil }

// Close implements appstate.Provider
func (p *LocationProvider) Close() error { return nil }

// For returns the location of scope
func (p *LocationProvider) For(scope *appstate.Scope) *Location {
	return appstate.ScopeValue(scope, "location", func() *Location { return &Location{} })
}

// Middleware places the visitor's location into the context
func (p *LocationProvider) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope, ok := appstate.ScopeKey.From(r.Context())
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(locationKey.With(r.Context(), p.For(scope))))
	})
}
