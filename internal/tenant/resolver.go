// Package tenant resolves the active restaurant from the request and guards
// every tenant-scoped route behind that resolution.
package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/restoku/restoku-server/internal/models"
	"github.com/restoku/restoku-server/internal/storage"
	"github.com/restoku/restoku-server/internal/validation"
)

// Resolution errors
var (
	ErrNotFound    = errors.New("tenant not found")
	ErrUnavailable = errors.New("tenant temporarily unavailable")
)

const defaultFetchTimeout = 5 * time.Second

// Source loads tenants by slug
type Source interface {
	GetTenantBySlug(ctx context.Context, slug string) (*models.Tenant, error)
}

// Resolver caches tenants per slug and collapses concurrent lookups
type Resolver struct {
	source       Source
	cache        *expirable.LRU[string, *models.Tenant]
	group        singleflight.Group
	fetchTimeout time.Duration
}

// NewResolver creates a resolver holding up to size tenants for ttl
func NewResolver(source Source, size int, ttl time.Duration) *Resolver {
	if size <= 0 {
		size = 512
	}
	return &Resolver{
		source:       source,
		cache:        expirable.NewLRU[string, *models.Tenant](size, nil, ttl),
		fetchTimeout: defaultFetchTimeout,
	}
}

// Name implements appstate.Provider
func (r *Resolver) Name() string { return "tenant" }

// Start implements appstate.Provider
func (r *Resolver) Start(ctx context.Context) error { return nil }

// Close drops every cached tenant
func (r *Resolver) Close() error {
	r.cache.Purge()
	return nil
}

// Normalize lower-cases a slug and reports whether it is well formed
func Normalize(slug string) (string, bool) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	return slug, validation.ValidSlug(slug)
}

// Resolve returns the active tenant for slug. Repeated calls for the same slug
// return the same pointer until it expires or is invalidated.
func (r *Resolver) Resolve(ctx context.Context, slug string) (*models.Tenant, error) {
	slug, ok := Normalize(slug)
	if !ok {
		return nil, ErrNotFound
	}

	if t, ok := r.cache.Get(slug); ok {
		return t, nil
	}

	v, err, _ := r.group.Do(slug, func() (interface{}, error) {
		if t, ok := r.cache.Peek(slug); ok {
			return t, nil
		}

		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.fetchTimeout)
		defer cancel()

		t, err := r.source.GetTenantBySlug(fetchCtx, slug)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		if err != nil {
			log.Warn().Err(err).Str("tenant", slug).Msg("Tenant lookup failed")
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if !t.IsActive {
			return nil, ErrNotFound
		}

		r.cache.Add(slug, t)
		return t, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*models.Tenant), nil
}

// Invalidate forgets the cached tenant so the next Resolve fetches it again
func (r *Resolver) Invalidate(slug string) {
	slug = strings.ToLower(slug)
	r.cache.Remove(slug)
	r.group.Forget(slug)
}
