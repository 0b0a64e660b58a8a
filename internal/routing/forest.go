// Package routing holds the declarative route table, the guard evaluator that
// protects each forest and the page views rendered for matched routes.
package routing

import (
	"github.com/restoku/restoku-server/internal/models"
	"github.com/restoku/restoku-server/internal/session"
)

// Decision is the outcome of a guard evaluation
type Decision int

const (
	// Allow runs the route
	Allow Decision = iota
	// Suspend answers with a loading state until the session is known
	Suspend
	// Redirect sends the visitor to the login page
	Redirect
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Suspend:
		return "suspend"
	case Redirect:
		return "redirect"
	}
	return "unknown"
}

// NavItem is one navigation entry of a layout shell
type NavItem struct {
	Label string `json:"label"`
	Path  string `json:"path"`
}

// Layout describes the shell shared by every page of a forest
type Layout struct {
	Name       string    `json:"name"`
	Navigation []NavItem `json:"navigation"`
}

// Forest is a subtree of routes behind one guard and one layout
type Forest struct {
	Name   string
	Prefix string
	// Tenant forests are mounted behind the tenant gate
	Tenant bool
	// Guarded forests require an authenticated session.
	// An empty AllowedRoles admits every authenticated role.
	Guarded      bool
	AllowedRoles []models.Role
	// BindTenant rejects users whose token belongs to another tenant
	BindTenant bool
	Layout     Layout
}

// Allows reports whether role may enter the forest
func (f *Forest) Allows(role models.Role) bool {
	if len(f.AllowedRoles) == 0 {
		return true
	}
	for _, allowed := range f.AllowedRoles {
		if role == allowed {
			return true
		}
	}
	return false
}

// Evaluate decides whether sess may enter f. t is the resolved tenant, nil
// outside tenant forests.
func Evaluate(sess *session.Session, f *Forest, t *models.Tenant) Decision {
	if !f.Guarded {
		return Allow
	}
	if sess == nil {
		return Redirect
	}
	if sess.Loading {
		return Suspend
	}
	if !sess.IsAuthenticated || sess.User == nil {
		return Redirect
	}
	if !f.Allows(sess.User.Role) {
		return Redirect
	}
	if f.BindTenant && t != nil && !sess.User.BelongsTo(t.ID) {
		return Redirect
	}
	return Allow
}

// Forests is the fixed set of route forests
type Forests struct {
	Platform   *Forest
	Storefront *Forest
	Customer   *Forest
	Admin      *Forest
	CS         *Forest
}

// All returns the forests in mount order
func (fs Forests) All() []*Forest {
	return []*Forest{fs.Platform, fs.Storefront, fs.Customer, fs.Admin, fs.CS}
}

// NewForests returns the platform, storefront, customer, admin and
// customer-service forests.
func NewForests() Forests {
	return Forests{
		Platform: &Forest{
			Name: "platform",
			Layout: Layout{Name: "platform", Navigation: []NavItem{
				{Label: "Beranda", Path: "/"},
				{Label: "Fitur", Path: "/fitur"},
				{Label: "Harga", Path: "/harga"},
				{Label: "Kontak", Path: "/kontak"},
			}},
		},
		Storefront: &Forest{
			Name:   "storefront",
			Tenant: true,
			Layout: Layout{Name: "storefront", Navigation: []NavItem{
				{Label: "Beranda", Path: "/"},
				{Label: "Menu", Path: "/menu"},
				{Label: "Keranjang", Path: "/keranjang"},
				{Label: "Lokasi", Path: "/lokasi"},
				{Label: "FAQ", Path: "/faq"},
			}},
		},
		Customer: &Forest{
			Name:    "customer",
			Prefix:  "/akun",
			Tenant:  true,
			Guarded: true,
			Layout: Layout{Name: "customer", Navigation: []NavItem{
				{Label: "Profil", Path: "/akun/profil"},
				{Label: "Pesanan", Path: "/akun/pesanan/aktif"},
				{Label: "Reservasi", Path: "/akun/reservasi/buat"},
				{Label: "Favorit", Path: "/akun/favorit"},
				{Label: "Poin", Path: "/akun/poin"},
				{Label: "Notifikasi", Path: "/akun/notifikasi"},
			}},
		},
		Admin: &Forest{
			Name:         "admin",
			Prefix:       "/admin",
			Tenant:       true,
			Guarded:      true,
			AllowedRoles: []models.Role{models.RoleAdmin, models.RoleTenantAdmin, models.RolePlatformAdmin},
			BindTenant:   true,
			Layout: Layout{Name: "admin", Navigation: []NavItem{
				{Label: "Dasbor", Path: "/admin/dasbor"},
				{Label: "Menu", Path: "/admin/menu/kelola-menu"},
				{Label: "Pesanan", Path: "/admin/pesanan"},
				{Label: "Reservasi", Path: "/admin/reservasi"},
				{Label: "Promosi", Path: "/admin/promosi"},
				{Label: "Analitik", Path: "/admin/analitik"},
				{Label: "Staf", Path: "/admin/staf"},
				{Label: "Pengaturan", Path: "/admin/pengaturan/restoran"},
				{Label: "Log Aktivitas", Path: "/admin/log-aktivitas"},
			}},
		},
		// cs_agent is not admitted; only the cs role reaches the console.
		CS: &Forest{
			Name:         "cs",
			Prefix:       "/cs",
			Tenant:       true,
			Guarded:      true,
			AllowedRoles: []models.Role{models.RoleCS},
			BindTenant:   true,
			Layout: Layout{Name: "cs", Navigation: []NavItem{
				{Label: "Dasbor", Path: "/cs/dasbor"},
				{Label: "Live Chat", Path: "/cs/live-chat"},
				{Label: "FAQ", Path: "/cs/faq"},
				{Label: "Inbox", Path: "/cs/inbox"},
			}},
		},
	}
}
