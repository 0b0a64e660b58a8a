package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/restoku/restoku-server/internal/auth"
	"github.com/restoku/restoku-server/internal/config"
	"github.com/restoku/restoku-server/internal/models"
	"github.com/restoku/restoku-server/internal/routing"
	"github.com/restoku/restoku-server/internal/storage"
	"github.com/restoku/restoku-server/internal/tenant"
)

// Plan is a subscription tier shown on the pricing page
type Plan struct {
	Name     string   `json:"name"`
	Price    int64    `json:"price"`
	Period   string   `json:"period"`
	Features []string `json:"features"`
}

var plans = []Plan{
	{Name: "Starter", Price: 0, Period: "bulan", Features: []string{"Menu online", "Keranjang & pesanan", "1 outlet"}},
	{Name: "Bisnis", Price: 299000, Period: "bulan", Features: []string{"Semua fitur Starter", "Promo & poin loyalitas", "Reservasi", "Live chat"}},
	{Name: "Enterprise", Price: 899000, Period: "bulan", Features: []string{"Semua fitur Bisnis", "Outlet tanpa batas", "Integrasi dapur (webhook & MQTT)"}},
}

var features = []string{
	"Storefront dengan tema restoran sendiri",
	"Pemesanan online dan pelacakan status",
	"Reservasi meja",
	"Kode promo dan poin loyalitas",
	"Live chat dan inbox layanan pelanggan",
	"Analitik penjualan",
	"Integrasi layar dapur",
}

// reservedSlugs cannot be taken by a restaurant regardless of the route table
var reservedSlugs = []string{"www", "assets", "admin", "login"}

func (s *Server) platformHomePage(r *http.Request) (*routing.Page, error) {
	tenants, total, err := s.svc.Store.ListTenants(r.Context(), 12, 0)
	if err != nil {
		return nil, err
	}
	type showcase struct {
		Slug         string `json:"slug"`
		BusinessName string `json:"businessName"`
		Description  string `json:"description"`
		LogoURL      string `json:"logoUrl,omitempty"`
	}
	list := make([]showcase, 0, len(tenants))
	for _, t := range tenants {
		if !t.IsActive {
			continue
		}
		list = append(list, showcase{Slug: t.Slug, BusinessName: t.BusinessName, Description: t.Description, LogoURL: t.Branding.LogoURL})
	}
	return &routing.Page{
		Title: "Restoku",
		Data: map[string]interface{}{
			"restaurants": list,
			"total":       total,
		},
	}, nil
}

func (s *Server) platformFeaturesPage(r *http.Request) (*routing.Page, error) {
	return &routing.Page{Title: "Fitur", Data: map[string]interface{}{"features": features}}, nil
}

func (s *Server) platformPricingPage(r *http.Request) (*routing.Page, error) {
	return &routing.Page{Title: "Harga", Data: map[string]interface{}{"plans": plans}}, nil
}

func (s *Server) platformContactPage(r *http.Request) (*routing.Page, error) {
	return &routing.Page{Title: "Kontak", Data: map[string]interface{}{
		"email": "halo@restoku.id",
	}}, nil
}

// slugReserved reports whether slug collides with a platform path
func (s *Server) slugReserved(slug string) bool {
	for _, reserved := range append(s.table.PlatformSegments(), reservedSlugs...) {
		if slug == reserved {
			return true
		}
	}
	return false
}

// handleRegisterRestaurant creates a tenant and its first tenant admin
func (s *Server) handleRegisterRestaurant(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Slug         string `json:"slug" validate:"required,min=2,max=63,slug"`
		BusinessName string `json:"businessName" validate:"required,max=120"`
		Phone        string `json:"phone" validate:"omitempty,max=32"`
		Timezone     string `json:"timezone" validate:"omitempty,timezone"`
		OwnerName    string `json:"ownerName" validate:"required,max=120"`
		Email        string `json:"email" validate:"required,email"`
		Password     string `json:"password" validate:"required,min=8"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	slug, _ := tenant.Normalize(req.Slug)
	if s.slugReserved(slug) {
		s.respondError(w, http.StatusConflict, "slug is reserved")
		return
	}
	if req.Timezone == "" {
		req.Timezone = "Asia/Jakarta"
	}

	ctx := r.Context()
	tx, err := s.svc.Store.BeginTx(ctx)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer tx.Rollback()

	t := &models.Tenant{
		Slug:         slug,
		BusinessName: strings.TrimSpace(req.BusinessName),
		Phone:        req.Phone,
		Email:        strings.ToLower(req.Email),
		Timezone:     req.Timezone,
		IsActive:     true,
	}
	for day := range t.OperatingHours {
		t.OperatingHours[day] = models.DayHours{Open: "10:00", Close: "22:00"}
	}
	if err := tx.CreateTenant(ctx, t); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			s.respondError(w, http.StatusConflict, "slug already taken")
			return
		}
		s.fail(w, r, err)
		return
	}

	tenantID := t.ID
	owner := &models.User{
		TenantID: &tenantID,
		Name:     strings.TrimSpace(req.OwnerName),
		Email:    strings.ToLower(req.Email),
		Phone:    req.Phone,
		Role:     models.RoleTenantAdmin,
	}
	pair, err := auth.NewService(tx, s.svc.Auth.Tokens(), nil).Register(ctx, owner, req.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := tx.Commit(); err != nil {
		s.fail(w, r, err)
		return
	}

	zerolog.Ctx(ctx).Info().Str("slug", t.Slug).Str("owner", owner.Email).Msg("Restaurant registered")

	s.svc.Sessions.SetToken(w, pair)
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"tenant":   t,
		"user":     owner,
		"token":    pair,
		"redirect": s.tenantURL(t.Slug, "/admin/dasbor"),
	})
}

// tenantURL returns a link to a tenant page: a scheme-relative URL on the
// tenant's host in subdomain mode, a slug-prefixed path otherwise
func (s *Server) tenantURL(slug, path string) string {
	if s.gate.Mode() == config.TenantModeSubdomain {
		return "//" + slug + "." + s.config.Tenant.BaseDomain + path
	}
	return "/" + slug + path
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"service": s.config.Server.Name,
		"version": s.config.Server.Version,
		"time":    s.now().UTC().Format(time.RFC3339),
	})
}
