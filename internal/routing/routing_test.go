package routing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restoku/restoku-server/internal/auth"
	"github.com/restoku/restoku-server/internal/config"
	"github.com/restoku/restoku-server/internal/models"
	"github.com/restoku/restoku-server/internal/session"
	"github.com/restoku/restoku-server/internal/storage"
	"github.com/restoku/restoku-server/internal/tenant"
)

var (
	warungID  = uuid.New()
	foreignID = uuid.New()
)

type tenantSource struct{}

func (tenantSource) GetTenantBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	if slug != "warung" {
		return nil, storage.ErrNotFound
	}
	return &models.Tenant{ID: warungID, Slug: "warung", BusinessName: "Warung", IsActive: true}, nil
}

// tokenAuth treats the bearer token as "<role>" or "<role>@foreign"
type tokenAuth struct{}

func (tokenAuth) Authenticate(ctx context.Context, token string) (*auth.Claims, error) {
	switch token {
	case "down":
		return nil, auth.ErrRevocationUnavailable
	case "bad":
		return nil, auth.ErrInvalidToken
	}
	tenantID := warungID
	role := token
	if len(token) > 8 && token[len(token)-8:] == "@foreign" {
		tenantID = foreignID
		role = token[:len(token)-8]
	}
	claims := &auth.Claims{UserID: uuid.New(), Role: models.Role(role)}
	if models.Role(role) != models.RolePlatformAdmin {
		claims.TenantID = &tenantID
	}
	return claims, nil
}

type harness struct {
	handler http.Handler
	mounts  map[string]int
	ran     map[string]int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{mounts: make(map[string]int), ran: make(map[string]int)}

	fs := NewForests()
	page := func(name string) PageFunc {
		return func(r *http.Request) (*Page, error) {
			h.ran[name]++
			return &Page{Title: name}, nil
		}
	}
	action := func(name string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			h.ran[name]++
			w.WriteHeader(http.StatusNoContent)
		}
	}

	routes := []*Route{
		{Method: http.MethodGet, Pattern: "/", Name: "platform.home", Forest: fs.Platform, Page: page("platform.home")},
		{Method: http.MethodGet, Pattern: "/", Name: "storefront.home", Forest: fs.Storefront, Page: page("storefront.home")},
		{Method: http.MethodGet, Pattern: "/login", Name: "storefront.login", Forest: fs.Storefront, Page: page("storefront.login")},
		{Method: http.MethodGet, Pattern: "/menu/{itemID}", Name: "storefront.item", Forest: fs.Storefront, Page: page("storefront.item")},
		{Method: http.MethodGet, Pattern: "/menu/unggulan", Name: "storefront.featured", Forest: fs.Storefront, Page: page("storefront.featured")},
		{Method: http.MethodGet, Pattern: "/broken", Name: "storefront.broken", Forest: fs.Storefront, Page: func(r *http.Request) (*Page, error) {
			return nil, errors.New("backend timeout")
		}},

		{Method: http.MethodGet, Pattern: "", Name: "customer.index", Forest: fs.Customer, Redirect: "/akun/profil"},
		{Method: http.MethodGet, Pattern: "/profil", Name: "customer.profile", Forest: fs.Customer, Page: page("customer.profile")},
		{Method: http.MethodGet, Pattern: "/pesanan", Name: "customer.orders", Forest: fs.Customer, Redirect: "/akun/pesanan/aktif"},
		{Method: http.MethodGet, Pattern: "/pesanan/aktif", Name: "customer.orders.active", Forest: fs.Customer, Page: page("customer.orders.active")},
		{Method: http.MethodGet, Pattern: "/reservasi", Name: "customer.reservations", Forest: fs.Customer, Redirect: "/akun/reservasi/buat"},
		{Method: http.MethodGet, Pattern: "/reservasi/buat", Name: "customer.reservations.new", Forest: fs.Customer, Page: page("customer.reservations.new")},
		{Method: http.MethodPost, Pattern: "/reservasi/buat", Name: "customer.reservations.create", Forest: fs.Customer, Action: action("customer.reservations.create")},

		{Method: http.MethodGet, Pattern: "", Name: "admin.index", Forest: fs.Admin, Redirect: "/admin/dasbor"},
		{Method: http.MethodGet, Pattern: "/dasbor", Name: "admin.dashboard", Forest: fs.Admin, Page: page("admin.dashboard")},
		{Method: http.MethodGet, Pattern: "/menu", Name: "admin.menu", Forest: fs.Admin, Redirect: "/admin/menu/kelola-menu"},
		{Method: http.MethodGet, Pattern: "/menu/kelola-menu", Name: "admin.menu.manage", Forest: fs.Admin, Page: page("admin.menu.manage")},

		{Method: http.MethodGet, Pattern: "", Name: "cs.index", Forest: fs.CS, Redirect: "/cs/dasbor"},
		{Method: http.MethodGet, Pattern: "/dasbor", Name: "cs.dashboard", Forest: fs.CS, Page: page("cs.dashboard")},
	}

	table, err := NewTable(fs, routes, WithLayoutObserver(func(r *http.Request, forest string) {
		h.mounts[forest]++
	}))
	require.NoError(t, err)

	sessions := session.NewResolver(tokenAuth{}, config.Default().Session)
	gate := tenant.NewGate(tenant.NewResolver(tenantSource{}, 8, time.Minute), config.TenantConfig{Mode: config.TenantModePath}, nil)

	r := chi.NewRouter()
	r.Use(sessions.Middleware)
	r.NotFound(table.PlatformNotFound)
	table.Mount(r, false)
	r.Route("/{tenant}", func(r chi.Router) {
		r.Use(gate.Middleware)
		table.Mount(r, true)
		r.NotFound(table.TenantFallback)
	})

	h.handler = r
	return h
}

func (h *harness) do(method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func loginNext(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "/warung/login", loc.Path)
	return loc.Query().Get("next")
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) PageView {
	t.Helper()
	var view PageView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	return view
}

func TestEvaluate(t *testing.T) {
	fs := NewForests()
	warung := &models.Tenant{ID: warungID}
	user := func(role models.Role, tenantID uuid.UUID) *session.Session {
		return &session.Session{IsAuthenticated: true, User: &models.User{ID: uuid.New(), Role: role, TenantID: &tenantID}}
	}

	tests := []struct {
		name   string
		sess   *session.Session
		forest *Forest
		want   Decision
	}{
		{"public storefront", session.Anonymous, fs.Storefront, Allow},
		{"anonymous admin", session.Anonymous, fs.Admin, Redirect},
		{"loading admin", &session.Session{Loading: true}, fs.Admin, Suspend},
		{"loading customer", &session.Session{Loading: true}, fs.Customer, Suspend},
		{"admin", user(models.RoleAdmin, warungID), fs.Admin, Allow},
		{"tenant admin", user(models.RoleTenantAdmin, warungID), fs.Admin, Allow},
		{"platform admin", &session.Session{IsAuthenticated: true, User: &models.User{Role: models.RolePlatformAdmin}}, fs.Admin, Allow},
		{"staff in admin", user(models.RoleTenantStaff, warungID), fs.Admin, Redirect},
		{"customer in admin", user(models.RoleCustomer, warungID), fs.Admin, Redirect},
		{"cs in admin", user(models.RoleCS, warungID), fs.Admin, Redirect},
		{"admin of other tenant", user(models.RoleAdmin, foreignID), fs.Admin, Redirect},
		{"customer", user(models.RoleCustomer, warungID), fs.Customer, Allow},
		{"admin in customer", user(models.RoleAdmin, warungID), fs.Customer, Allow},
		{"cs", user(models.RoleCS, warungID), fs.CS, Allow},
		{"cs_agent is not admitted", user(models.RoleCSAgent, warungID), fs.CS, Redirect},
		{"admin in cs", user(models.RoleAdmin, warungID), fs.CS, Redirect},
		{"nil session", nil, fs.Customer, Redirect},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.sess, tt.forest, warung))
		})
	}
}

func TestGuard_UnauthenticatedPreservesPath(t *testing.T) {
	h := newHarness(t)

	for _, path := range []string{"/admin/dasbor", "/admin/menu/kelola-menu", "/akun/profil", "/akun/pesanan/aktif", "/cs/dasbor"} {
		rec := h.do(http.MethodGet, "/warung"+path, "")
		assert.Equal(t, path, loginNext(t, rec), path)
	}
	assert.Empty(t, h.ran)
	assert.Empty(t, h.mounts)
}

func TestGuard_PreservesQuery(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodGet, "/warung/akun/profil?tab=alamat", "")
	assert.Equal(t, "/akun/profil?tab=alamat", loginNext(t, rec))
}

func TestGuard_InvalidTokenRedirects(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodGet, "/warung/akun/profil", "bad")
	assert.Equal(t, "/akun/profil", loginNext(t, rec))
}

func TestGuard_WrongRoleNeverRendersAdmin(t *testing.T) {
	h := newHarness(t)

	for _, role := range []string{"customer", "tenant_staff", "cs", "cs_agent", "admin@foreign"} {
		rec := h.do(http.MethodGet, "/warung/admin/menu/kelola-menu", role)
		assert.Equal(t, "/admin/menu/kelola-menu", loginNext(t, rec), role)
	}
	assert.Zero(t, h.ran["admin.menu.manage"])
	assert.Zero(t, h.mounts["admin"])
}

func TestGuard_CSAgentRedirectedFromConsole(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/warung/cs/dasbor", "cs_agent")
	assert.Equal(t, "/cs/dasbor", loginNext(t, rec))

	rec = h.do(http.MethodGet, "/warung/cs/dasbor", "cs")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGuard_LoadingSuspends(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/warung/admin/dasbor", "down")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	view := decodeView(t, rec)
	assert.True(t, view.Loading)
	assert.Nil(t, view.Layout)
	assert.Zero(t, h.ran["admin.dashboard"])

	rec = h.do(http.MethodGet, "/warung/admin", "down")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "guard runs before the index redirect")
}

func TestGuard_ActionsGetUnauthorized(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/warung/akun/reservasi/buat", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "/warung/login?next=%2Fakun%2Freservasi%2Fbuat", body["redirect"])
	assert.Zero(t, h.ran["customer.reservations.create"])

	rec = h.do(http.MethodPost, "/warung/akun/reservasi/buat", "customer")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestIndexRoutes(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		path, token, want string
	}{
		{"/warung/admin", "admin", "/warung/admin/dasbor"},
		{"/warung/admin/menu", "tenant_admin", "/warung/admin/menu/kelola-menu"},
		{"/warung/akun", "customer", "/warung/akun/profil"},
		{"/warung/akun/pesanan", "customer", "/warung/akun/pesanan/aktif"},
		{"/warung/akun/reservasi", "customer", "/warung/akun/reservasi/buat"},
		{"/warung/cs", "cs", "/warung/cs/dasbor"},
	}
	for _, tt := range tests {
		rec := h.do(http.MethodGet, tt.path, tt.token)
		assert.Equal(t, http.StatusFound, rec.Code, tt.path)
		assert.Equal(t, tt.want, rec.Header().Get("Location"), tt.path)
	}
	assert.Empty(t, h.mounts)
}

func TestAdminIndexMountsLayoutOnce(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/warung/admin", "admin")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Zero(t, h.mounts["admin"])

	rec = h.do(http.MethodGet, rec.Header().Get("Location"), "admin")
	require.Equal(t, http.StatusOK, rec.Code)

	view := decodeView(t, rec)
	assert.Equal(t, "/warung/admin/dasbor", view.Path)
	assert.Equal(t, "admin.dashboard", view.Route)
	require.NotNil(t, view.Layout)
	assert.Equal(t, "admin", view.Layout.Name)
	assert.Equal(t, "/warung/admin/dasbor", view.Layout.Navigation[0].Path)
	require.NotNil(t, view.Tenant)
	assert.Equal(t, "warung", view.Tenant.Slug)
	assert.Equal(t, 1, h.mounts["admin"])
}

func TestStaticBeatsParam(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/warung/menu/unggulan", "")
	assert.Equal(t, "storefront.featured", decodeView(t, rec).Route)

	rec = h.do(http.MethodGet, "/warung/menu/"+uuid.NewString(), "")
	assert.Equal(t, "storefront.item", decodeView(t, rec).Route)
}

func TestFallbacks(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/warung/tidak/ada", "")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/warung/login", rec.Header().Get("Location"))

	rec = h.do(http.MethodGet, "/tidak-ada/menu", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(http.MethodGet, "/", "")
	assert.Equal(t, "platform.home", decodeView(t, rec).Route)
}

func TestPlatformNotFound(t *testing.T) {
	fs := NewForests()
	table, err := NewTable(fs, nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	table.PlatformNotFound(rec, httptest.NewRequest(http.MethodGet, "/tidak-ada", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	view := decodeView(t, rec)
	assert.Equal(t, "platform.not-found", view.Route)
	require.NotNil(t, view.Layout)
	assert.Equal(t, "platform", view.Layout.Name)
	assert.Nil(t, view.Tenant)
}

func TestPageErrorIsRetryable(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/warung/broken", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	view := decodeView(t, rec)
	assert.True(t, view.Retryable)
	assert.Equal(t, "backend timeout", view.Error)
	assert.Zero(t, h.mounts["storefront"])
}

func TestNewTable_Validation(t *testing.T) {
	fs := NewForests()
	page := func(r *http.Request) (*Page, error) { return &Page{}, nil }

	_, err := NewTable(fs, []*Route{
		{Method: http.MethodGet, Pattern: "/dasbor", Name: "a", Forest: fs.Admin, Page: page},
		{Method: http.MethodGet, Pattern: "/dasbor", Name: "b", Forest: fs.Admin, Page: page},
	})
	assert.ErrorContains(t, err, "already registered by a")

	_, err = NewTable(fs, []*Route{
		{Method: http.MethodGet, Pattern: "", Name: "admin.index", Forest: fs.Admin, Redirect: "/admin/dasbor"},
	})
	assert.ErrorContains(t, err, "redirect target")

	_, err = NewTable(fs, []*Route{
		{Method: http.MethodGet, Pattern: "/x", Name: "both", Forest: fs.Admin, Page: page, Redirect: "/admin/x"},
	})
	assert.ErrorContains(t, err, "exactly one")

	_, err = NewTable(fs, []*Route{
		{Method: http.MethodGet, Pattern: "/", Name: "platform", Forest: fs.Platform, Page: page},
		{Method: http.MethodGet, Pattern: "/", Name: "storefront", Forest: fs.Storefront, Page: page},
	})
	assert.NoError(t, err, "platform and tenant routes live in separate trees")
}

func TestDescribe(t *testing.T) {
	fs := NewForests()
	page := func(r *http.Request) (*Page, error) { return &Page{}, nil }
	table, err := NewTable(fs, []*Route{
		{Method: http.MethodGet, Pattern: "/fitur", Name: "platform.features", Forest: fs.Platform, Page: page},
		{Method: http.MethodGet, Pattern: "/api/v1/health", Name: "platform.health", Forest: fs.Platform, Action: func(w http.ResponseWriter, r *http.Request) {}},
		{Method: http.MethodGet, Pattern: "/dasbor", Name: "cs.dashboard", Forest: fs.CS, Page: page},
	})
	require.NoError(t, err)

	infos := table.Describe()
	require.Len(t, infos, 3)
	assert.Equal(t, "/cs/dasbor", infos[2].Path)
	assert.Equal(t, []string{"cs"}, infos[2].Roles)
	assert.True(t, infos[2].Tenant)
	assert.True(t, infos[2].Guarded)
	assert.False(t, infos[0].Guarded)

	assert.Equal(t, []string{"fitur", "api"}, table.PlatformSegments())
}

func TestSafeNext(t *testing.T) {
	assert.Equal(t, "/admin/dasbor", SafeNext("/admin/dasbor"))
	assert.Equal(t, "/", SafeNext("https://evil.example"))
	assert.Equal(t, "/", SafeNext("//evil.example"))
	assert.Equal(t, "/", SafeNext(""))
}
