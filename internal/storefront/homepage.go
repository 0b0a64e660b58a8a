package storefront

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/restoku/restoku-server/internal/models"
	"github.com/restoku/restoku-server/internal/storage"
)

const maxFeatured = 8

// MenuStore is the menu part of the store
type MenuStore interface {
	ListMenuCategories(ctx context.Context, tenantID uuid.UUID) ([]*models.MenuCategory, error)
	ListMenuItems(ctx context.Context, tenantID uuid.UUID, filter storage.MenuFilter) ([]*models.MenuItem, error)
}

// Homepage is the landing page of a storefront
type Homepage struct {
	BusinessName string                 `json:"businessName"`
	Description  string                 `json:"description"`
	OpenNow      bool                   `json:"openNow"`
	Hours        models.OperatingHours  `json:"hours"`
	Outlets      models.Outlets         `json:"outlets"`
	Categories   []*models.MenuCategory `json:"categories"`
	Featured     []*models.MenuItem     `json:"featured"`
}

type homepageContent struct {
	categories []*models.MenuCategory
	featured   []*models.MenuItem
}

// Homepages builds storefront homepages, caching the menu part per tenant
type Homepages struct {
	store MenuStore
	cache *expirable.LRU[uuid.UUID, *homepageContent]
}

// NewHomepages creates the homepage provider
func NewHomepages(store MenuStore, size int, ttl time.Duration) *Homepages {
	return &Homepages{
		store: store,
		cache: expirable.NewLRU[uuid.UUID, *homepageContent](size, nil, ttl),
	}
}

// Name implements appstate.Provider
func (h *Homepages) Name() string { return "homepage" }

// Start implements appstate.Provider
func (h *Homepages) Start(ctx context.Context) error { return nil }

// Close implements appstate.Provider
func (h *Homepages) Close() error {
	h.cache.Purge()
	return nil
}

// Invalidate drops the cached menu of a tenant
func (h *Homepages) Invalidate(tenantID uuid.UUID) {
	h.cache.Remove(tenantID)
}

// Build assembles the homepage of t as seen at the given instant
func (h *Homepages) Build(ctx context.Context, t *models.Tenant, at time.Time) (*Homepage, error) {
	content, err := h.content(ctx, t.ID)
	if err != nil {
		return nil, err
	}

	outlets := t.Outlets
	if outlets == nil {
		outlets = models.Outlets{}
	}
	return &Homepage{
		BusinessName: t.BusinessName,
		Description:  t.Description,
		OpenNow:      t.IsOpenAt(at),
		Hours:        t.OperatingHours,
		Outlets:      outlets,
		Categories:   content.categories,
		Featured:     content.featured,
	}, nil
}

func (h *Homepages) content(ctx context.Context, tenantID uuid.UUID) (*homepageContent, error) {
	if c, ok := h.cache.Get(tenantID); ok {
		return c, nil
	}

	categories, err := h.store.ListMenuCategories(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list menu categories: %w", err)
	}
	featured, err := h.store.ListMenuItems(ctx, tenantID, storage.MenuFilter{AvailableOnly: true, FeaturedOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list featured items: %w", err)
	}
	if len(featured) > maxFeatured {
		featured = featured[:maxFeatured]
	}
	if categories == nil {
		categories = []*models.MenuCategory{}
	}
	if featured == nil {
		featured = []*models.MenuItem{}
	}

	c := &homepageContent{categories: categories, featured: featured}
	h.cache.Add(tenantID, c)
	return c, nil
}
