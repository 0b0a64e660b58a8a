// Package favorites keeps the favourite menu items of a visitor within one tenant.
package favorites

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/google/uuid"

	"github.com/restoku/restoku-server/internal/appstate"
	"github.com/restoku/restoku-server/internal/statestore"
)

// Set is the persisted favourites document
type Set struct {
	Items map[uuid.UUID]bool `json:"items"`
}

func empty() Set { return Set{Items: make(map[uuid.UUID]bool)} }

func clone(s Set) Set {
	out := Set{Items: make(map[uuid.UUID]bool, len(s.Items))}
	for id := range s.Items {
		out.Items[id] = true
	}
	return out
}

func (s Set) sorted() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(s.Items))
	for id := range s.Items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// Favorites is the favourites list of one visitor scope
type Favorites struct {
	state *statestore.Versioned[Set]
}

// List returns the favourite item ids
func (f *Favorites) List(ctx context.Context) ([]uuid.UUID, error) {
	set, _, err := f.state.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load favorites: %w", err)
	}
	return set.sorted(), nil
}

// Has reports whether id is a favourite
func (f *Favorites) Has(ctx context.Context, id uuid.UUID) (bool, error) {
	set, _, err := f.state.Get(ctx)
	if err != nil {
		return false, fmt.Errorf("load favorites: %w", err)
	}
	return set.Items[id], nil
}

// Toggle adds or removes id and reports whether it is now a favourite
func (f *Favorites) Toggle(ctx context.Context, id uuid.UUID) (bool, error) {
	var added bool
	_, _, err := f.state.Update(ctx, func(set Set) (Set, error) {
		if set.Items[id] {
			delete(set.Items, id)
			added = false
		} else {
			set.Items[id] = true
			added = true
		}
		return set, nil
	})
	if err != nil {
		return !added, err
	}
	return added, nil
}

// Remove drops id from the favourites
func (f *Favorites) Remove(ctx context.Context, id uuid.UUID) error {
	_, _, err := f.state.Update(ctx, func(set Set) (Set, error) {
		delete(set.Items, id)
		return set, nil
	})
	return err
}

var key = appstate.NewKey[*Favorites]("favorites")

// FromContext returns the favourites of the request's visitor scope
func FromContext(ctx context.Context) (*Favorites, bool) {
	return key.From(ctx)
}

// Must returns the favourites or panics outside the favorites provider
func Must(ctx context.Context) *Favorites {
	return key.Must(ctx)
}

// Provider creates favourites inside visitor scopes
type Provider struct {
	store statestore.Store
}

// NewProvider creates the favorites provider
func NewProvider(store statestore.Store) *Provider {
	return &Provider{store: store}
}

// Name implements appstate.Provider
func (p *Provider) Name() string { return "favorites" }

// Start implements appstate.Provider
func (p *Provider) Start(ctx context.Context) error { return nil }

// Close implements appstate.Provider
func (p *Provider) Close() error { return nil }

// For returns the favourites of scope
func (p *Provider) For(scope *appstate.Scope) *Favorites {
	return appstate.ScopeValue(scope, "favorites", func() *Favorites {
		storageKey := fmt.Sprintf("favorites:%s:%s", scope.TenantID, scope.VisitorID)
		f := &Favorites{state: statestore.NewVersioned(p.store, storageKey, empty, clone)}
		scope.OnDispose(f.state.Discard)
		return f
	})
}

// Middleware places the favourites of the request's visitor scope into the context
func (p *Provider) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope, ok := appstate.ScopeKey.From(r.Context())
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(key.With(r.Context(), p.For(scope))))
	})
}
