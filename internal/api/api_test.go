package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restoku/restoku-server/internal/appstate"
	"github.com/restoku/restoku-server/internal/auth"
	"github.com/restoku/restoku-server/internal/cart"
	"github.com/restoku/restoku-server/internal/chat"
	"github.com/restoku/restoku-server/internal/config"
	"github.com/restoku/restoku-server/internal/events"
	"github.com/restoku/restoku-server/internal/favorites"
	"github.com/restoku/restoku-server/internal/loyalty"
	"github.com/restoku/restoku-server/internal/models"
	"github.com/restoku/restoku-server/internal/notify"
	"github.com/restoku/restoku-server/internal/session"
	"github.com/restoku/restoku-server/internal/statestore"
	"github.com/restoku/restoku-server/internal/storage"
	"github.com/restoku/restoku-server/internal/storefront"
	"github.com/restoku/restoku-server/internal/tenant"
)

const testPassword = "rahasia123"

type harness struct {
	t      *testing.T
	store  *storage.MemoryStore
	auth   *auth.Service
	server *Server
	srv    *httptest.Server
	host   string
	tenant *models.Tenant
	dish   *models.MenuItem
}

func newHarness(t *testing.T, tweak func(*config.Config)) *harness {
	t.Helper()

	cfg := config.Default()
	cfg.JWT.Secret = "test-secret-for-the-api-package-only"
	if tweak != nil {
		tweak(cfg)
	}

	store := storage.NewMemoryStore()
	bus := events.NewLocalBus("restoku")
	authSvc := auth.NewService(store, auth.NewJWTManager(&cfg.JWT), auth.NewMemoryRevocations())
	state := statestore.NewMemoryStore(time.Hour)
	chatSvc := chat.NewService(store, bus)

	server, err := NewServer(cfg, Services{
		Store:     store,
		Auth:      authSvc,
		Sessions:  session.NewResolver(authSvc, cfg.Session),
		Tenants:   tenant.NewResolver(store, 16, time.Minute),
		Scopes:    appstate.NewScopes(0),
		Carts:     cart.NewProvider(state),
		Favorites: favorites.NewProvider(state),
		Toasts:    notify.NewToastProvider(),
		Layouts:   storefront.NewLayoutProvider(),
		Locations: storefront.NewLocationProvider(),
		Homepages: storefront.NewHomepages(store, 16, time.Minute),
		Notifier:  notify.NewNotifier(store, bus),
		Chat:      chatSvc,
		Hub:       chat.NewHub(chatSvc),
		Loyalty:   loyalty.NewService(store),
		Bus:       bus,
	})
	require.NoError(t, err)

	h := &harness{t: t, store: store, auth: authSvc, server: server}
	h.tenant = h.seedTenant("demo")
	h.dish = &models.MenuItem{Name: "Nasi Goreng", Price: decimal.NewFromInt(25000), Available: true}
	h.dish.TenantID = h.tenant.ID
	require.NoError(t, store.CreateMenuItem(context.Background(), h.dish))

	h.srv = httptest.NewServer(server.Handler())
	t.Cleanup(h.srv.Close)
	return h
}

func (h *harness) seedTenant(slug string) *models.Tenant {
	t := &models.Tenant{Slug: slug, BusinessName: "Warung " + slug, Timezone: "UTC", IsActive: true}
	for day := range t.OperatingHours {
		t.OperatingHours[day] = models.DayHours{Open: "00:00", Close: "24:00"}
	}
	require.NoError(h.t, h.store.CreateTenant(context.Background(), t))
	return t
}

func (h *harness) seedUser(tenantID uuid.UUID, email string, role models.Role) *models.User {
	id := tenantID
	u := &models.User{TenantID: &id, Name: string(role) + " user", Email: email, Role: role}
	_, err := h.auth.Register(context.Background(), u, testPassword)
	require.NoError(h.t, err)
	return u
}

func (h *harness) client() *http.Client {
	jar, err := cookiejar.New(nil)
	require.NoError(h.t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (h *harness) do(c *http.Client, method, path string, body interface{}) *http.Response {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, h.srv.URL+path, &buf)
	require.NoError(h.t, err)
	req.Header.Set("Content-Type", "application/json")
	if h.host != "" {
		req.Host = h.host
	}
	resp, err := c.Do(req)
	require.NoError(h.t, err)
	h.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (h *harness) login(c *http.Client, slug, email, next string) *http.Response {
	return h.do(c, http.MethodPost, "/"+slug+"/login", map[string]string{
		"email": email, "password": testPassword, "next": next,
	})
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

type pageView struct {
	Route  string `json:"route"`
	Error  string `json:"error"`
	Layout *struct {
		Name string `json:"name"`
	} `json:"layout"`
	Tenant *struct {
		Slug     string `json:"slug"`
		BasePath string `json:"basePath"`
	} `json:"tenant"`
	Data json.RawMessage `json:"data"`
}

func TestGuard_AnonymousRedirectKeepsReturnPath(t *testing.T) {
	h := newHarness(t, nil)
	c := h.client()

	resp := h.do(c, http.MethodGet, "/demo/akun/pesanan/aktif?tab=2", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/demo/login?next="+url.QueryEscape("/akun/pesanan/aktif?tab=2"), resp.Header.Get("Location"))

	resp = h.do(c, http.MethodPost, "/demo/akun/notifikasi/baca-semua", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "/demo/login?next="+url.QueryEscape("/akun/notifikasi/baca-semua"), body["redirect"])
}

func TestGuard_IndexRedirectPreservesQuery(t *testing.T) {
	h := newHarness(t, nil)
	h.seedUser(h.tenant.ID, "pelanggan@example.com", models.RoleCustomer)
	c := h.client()
	require.Equal(t, http.StatusOK, h.login(c, "demo", "pelanggan@example.com", "").StatusCode)

	resp := h.do(c, http.MethodGet, "/demo/akun/pesanan?tab=1", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/demo/akun/pesanan/aktif?tab=1", resp.Header.Get("Location"))

	resp = h.do(c, http.MethodGet, "/demo/akun", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/demo/akun/profil", resp.Header.Get("Location"))
}

func TestGuard_RolesAndTenantBinding(t *testing.T) {
	h := newHarness(t, nil)
	other := h.seedTenant("lain")
	h.seedUser(h.tenant.ID, "pelanggan@example.com", models.RoleCustomer)
	h.seedUser(other.ID, "admin@lain.example.com", models.RoleTenantAdmin)
	h.seedUser(h.tenant.ID, "agen@example.com", models.RoleCSAgent)

	customer := h.client()
	require.Equal(t, http.StatusOK, h.login(customer, "demo", "pelanggan@example.com", "").StatusCode)
	resp := h.do(customer, http.MethodGet, "/demo/admin/dasbor", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)

	foreign := h.client()
	require.Equal(t, http.StatusOK, h.login(foreign, "lain", "admin@lain.example.com", "").StatusCode)
	resp = h.do(foreign, http.MethodGet, "/demo/admin/dasbor", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	resp = h.do(foreign, http.MethodGet, "/lain/admin/dasbor", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	agent := h.client()
	require.Equal(t, http.StatusOK, h.login(agent, "demo", "agen@example.com", "").StatusCode)
	resp = h.do(agent, http.MethodGet, "/demo/cs/dasbor", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
}

func TestLogin_AdminFollowsNext(t *testing.T) {
	h := newHarness(t, nil)
	h.seedUser(h.tenant.ID, "pemilik@example.com", models.RoleTenantAdmin)
	c := h.client()

	resp := h.login(c, "demo", "pemilik@example.com", "/admin/menu/kelola-menu")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Redirect string `json:"redirect"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, "/demo/admin/menu/kelola-menu", body.Redirect)

	resp = h.do(c, http.MethodGet, "/demo/admin/menu/kelola-menu", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view pageView
	decodeBody(t, resp, &view)
	assert.Equal(t, "admin.menu", view.Route)
	require.NotNil(t, view.Layout)
	assert.Equal(t, "admin", view.Layout.Name)
}

func TestGuard_MixedCaseSlugKeepsReturnPath(t *testing.T) {
	h := newHarness(t, nil)
	h.seedUser(h.tenant.ID, "pemilik@example.com", models.RoleTenantAdmin)
	c := h.client()

	resp := h.do(c, http.MethodGet, "/Demo/admin/menu/kelola-menu", nil)
	require.Equal(t, http.StatusMovedPermanently, resp.StatusCode)
	assert.Equal(t, "/demo/admin/menu/kelola-menu", resp.Header.Get("Location"))

	resp = h.do(c, http.MethodGet, resp.Header.Get("Location"), nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	login, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/demo/login", login.Path)
	next := login.Query().Get("next")
	assert.Equal(t, "/admin/menu/kelola-menu", next)

	resp = h.login(c, "demo", "pemilik@example.com", next)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Redirect string `json:"redirect"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, "/demo/admin/menu/kelola-menu", body.Redirect)

	resp = h.do(c, http.MethodGet, body.Redirect, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGuard_TrailingSlashReachesIndexRedirect(t *testing.T) {
	h := newHarness(t, nil)
	h.seedUser(h.tenant.ID, "pemilik@example.com", models.RoleTenantAdmin)
	c := h.client()
	require.Equal(t, http.StatusOK, h.login(c, "demo", "pemilik@example.com", "").StatusCode)

	resp := h.do(c, http.MethodGet, "/demo/admin/", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/demo/admin/dasbor", resp.Header.Get("Location"))

	resp = h.do(c, http.MethodGet, "/demo/admin/pesanan/", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLogin_RejectsOffsiteNextAndBadPassword(t *testing.T) {
	h := newHarness(t, nil)
	h.seedUser(h.tenant.ID, "pelanggan@example.com", models.RoleCustomer)
	c := h.client()

	resp := h.login(c, "demo", "pelanggan@example.com", "//evil.example.com")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Redirect string `json:"redirect"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, "/demo/", body.Redirect)

	resp = h.do(c, http.MethodPost, "/demo/login", map[string]string{"email": "pelanggan@example.com", "password": "salah-sekali"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestTenantResolution(t *testing.T) {
	h := newHarness(t, nil)
	c := h.client()

	resp := h.do(c, http.MethodGet, "/tidak-ada/menu", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var view pageView
	decodeBody(t, resp, &view)
	assert.Equal(t, "tenant.not-found", view.Route)

	resp = h.do(c, http.MethodGet, "/demo/halaman/yang/tidak/ada", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/demo/login", resp.Header.Get("Location"))

	resp = h.do(c, http.MethodGet, "/demo/menu", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &view)
	assert.Equal(t, "storefront.menu", view.Route)
	require.NotNil(t, view.Tenant)
	assert.Equal(t, "/demo", view.Tenant.BasePath)
}

func TestSubdomainMode(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.Tenant.Mode = config.TenantModeSubdomain
		cfg.Tenant.BaseDomain = "restoku.test"
	})
	c := h.client()

	h.host = "demo.restoku.test"
	resp := h.do(c, http.MethodGet, "/menu", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view pageView
	decodeBody(t, resp, &view)
	require.NotNil(t, view.Tenant)
	assert.Equal(t, "demo", view.Tenant.Slug)
	assert.Equal(t, "", view.Tenant.BasePath)

	h.host = "restoku.test"
	resp = h.do(c, http.MethodGet, "/tidak-ada", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	decodeBody(t, resp, &view)
	assert.Equal(t, "platform.not-found", view.Route)

	resp = h.do(c, http.MethodGet, "/harga", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

type orderResponse struct {
	Order struct {
		ID         uuid.UUID          `json:"id"`
		Number     string             `json:"number"`
		Status     models.OrderStatus `json:"status"`
		Subtotal   decimal.Decimal    `json:"subtotal"`
		Discount   decimal.Decimal    `json:"discount"`
		Total      decimal.Decimal    `json:"total"`
		PointsUsed int                `json:"pointsUsed"`
	} `json:"order"`
	PointsEarned int    `json:"pointsEarned"`
	Redirect     string `json:"redirect"`
}

func (h *harness) checkout(c *http.Client, quantity, points int) orderResponse {
	h.t.Helper()
	resp := h.do(c, http.MethodPost, "/demo/keranjang/items", map[string]interface{}{
		"menuItemId": h.dish.ID, "quantity": quantity,
	})
	require.Equal(h.t, http.StatusOK, resp.StatusCode)

	resp = h.do(c, http.MethodPost, "/demo/keranjang/checkout", map[string]interface{}{"points": points})
	require.Equal(h.t, http.StatusCreated, resp.StatusCode)
	var out orderResponse
	decodeBody(h.t, resp, &out)
	return out
}

func TestCheckout_EarnsAndRedeemsPoints(t *testing.T) {
	h := newHarness(t, nil)
	c := h.client()

	resp := h.do(c, http.MethodPost, "/demo/daftar", map[string]string{
		"name": "Sari", "email": "sari@example.com", "password": testPassword,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	first := h.checkout(c, 2, 0)
	assert.True(t, first.Order.Total.Equal(decimal.NewFromInt(50000)))
	assert.Equal(t, 5, first.PointsEarned)
	assert.Equal(t, models.OrderPending, first.Order.Status)
	assert.Equal(t, "/demo/akun/pesanan/"+first.Order.ID.String(), first.Redirect)

	resp = h.do(c, http.MethodGet, "/demo/keranjang", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view pageView
	decodeBody(t, resp, &view)
	var cartData struct {
		Cart struct {
			Items []json.RawMessage `json:"items"`
		} `json:"cart"`
		Points int `json:"points"`
	}
	require.NoError(t, json.Unmarshal(view.Data, &cartData))
	assert.Empty(t, cartData.Cart.Items)
	assert.Equal(t, 5, cartData.Points)

	// asking for more points than held redeems the balance only
	second := h.checkout(c, 1, 50)
	assert.Equal(t, 5, second.Order.PointsUsed)
	assert.True(t, second.Order.Discount.Equal(decimal.NewFromInt(500)))
	assert.True(t, second.Order.Total.Equal(decimal.NewFromInt(24500)))
	assert.Equal(t, 2, second.PointsEarned)
}

func TestCheckout_RequiresLoginAndItems(t *testing.T) {
	h := newHarness(t, nil)
	c := h.client()

	resp := h.do(c, http.MethodPost, "/demo/keranjang/checkout", map[string]interface{}{})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	h.seedUser(h.tenant.ID, "pelanggan@example.com", models.RoleCustomer)
	require.Equal(t, http.StatusOK, h.login(c, "demo", "pelanggan@example.com", "").StatusCode)
	resp = h.do(c, http.MethodPost, "/demo/keranjang/checkout", map[string]interface{}{})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestOrderStatus_TransitionsAndNotifies(t *testing.T) {
	h := newHarness(t, nil)
	h.seedUser(h.tenant.ID, "pelanggan@example.com", models.RoleCustomer)
	h.seedUser(h.tenant.ID, "pemilik@example.com", models.RoleTenantAdmin)

	customer := h.client()
	require.Equal(t, http.StatusOK, h.login(customer, "demo", "pelanggan@example.com", "").StatusCode)
	placed := h.checkout(customer, 1, 0)

	admin := h.client()
	require.Equal(t, http.StatusOK, h.login(admin, "demo", "pemilik@example.com", "").StatusCode)
	statusPath := "/demo/admin/pesanan/" + placed.Order.ID.String() + "/status"

	resp := h.do(admin, http.MethodPost, statusPath, map[string]string{"status": "completed"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = h.do(admin, http.MethodPost, statusPath, map[string]string{"status": "confirmed"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	order, err := h.store.GetOrder(context.Background(), h.tenant.ID, placed.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderConfirmed, order.Status)

	resp = h.do(customer, http.MethodGet, "/demo/akun/notifikasi", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view pageView
	decodeBody(t, resp, &view)
	var inbox notify.Inbox
	require.NoError(t, json.Unmarshal(view.Data, &inbox))
	assert.Equal(t, 1, inbox.Unread)
}

func TestOrderStatus_CancelSettlesPoints(t *testing.T) {
	h := newHarness(t, nil)
	customerUser := h.seedUser(h.tenant.ID, "pelanggan@example.com", models.RoleCustomer)
	h.seedUser(h.tenant.ID, "pemilik@example.com", models.RoleTenantAdmin)

	customer := h.client()
	require.Equal(t, http.StatusOK, h.login(customer, "demo", "pelanggan@example.com", "").StatusCode)
	first := h.checkout(customer, 4, 0)
	require.Equal(t, 10, first.PointsEarned)
	second := h.checkout(customer, 1, 10)
	require.Equal(t, 10, second.Order.PointsUsed)
	require.Equal(t, 2, second.PointsEarned)

	admin := h.client()
	require.Equal(t, http.StatusOK, h.login(admin, "demo", "pemilik@example.com", "").StatusCode)
	for _, placed := range []orderResponse{first, second} {
		statusPath := "/demo/admin/pesanan/" + placed.Order.ID.String() + "/status"
		resp := h.do(admin, http.MethodPost, statusPath, map[string]string{"status": "cancelled"})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		// a repeated cancel must not refund twice
		resp = h.do(admin, http.MethodPost, statusPath, map[string]string{"status": "cancelled"})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	}

	account, err := h.store.GetLoyaltyAccount(context.Background(), h.tenant.ID, customerUser.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, account.Balance)
}

func TestOrderPage_HidesOtherCustomersOrders(t *testing.T) {
	h := newHarness(t, nil)
	h.seedUser(h.tenant.ID, "a@example.com", models.RoleCustomer)
	h.seedUser(h.tenant.ID, "b@example.com", models.RoleCustomer)

	owner := h.client()
	require.Equal(t, http.StatusOK, h.login(owner, "demo", "a@example.com", "").StatusCode)
	placed := h.checkout(owner, 1, 0)

	stranger := h.client()
	require.Equal(t, http.StatusOK, h.login(stranger, "demo", "b@example.com", "").StatusCode)

	path := "/demo/akun/pesanan/" + placed.Order.ID.String()
	assert.Equal(t, http.StatusOK, h.do(owner, http.MethodGet, path, nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, h.do(stranger, http.MethodGet, path, nil).StatusCode)
}

func TestRegisterRestaurant(t *testing.T) {
	h := newHarness(t, nil)
	c := h.client()

	body := map[string]string{
		"slug":         "fitur",
		"businessName": "Kopi Senja",
		"ownerName":    "Rina",
		"email":        "rina@example.com",
		"password":     testPassword,
	}
	resp := h.do(c, http.MethodPost, "/daftar-restoran", body)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	body["slug"] = "demo"
	resp = h.do(c, http.MethodPost, "/daftar-restoran", body)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	body["slug"] = "kopi-senja"
	resp = h.do(c, http.MethodPost, "/daftar-restoran", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var out struct {
		Redirect string `json:"redirect"`
	}
	decodeBody(t, resp, &out)
	assert.Equal(t, "/kopi-senja/admin/dasbor", out.Redirect)

	resp = h.do(c, http.MethodGet, out.Redirect, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSettings_InvalidateCachedTenant(t *testing.T) {
	h := newHarness(t, nil)
	h.seedUser(h.tenant.ID, "pemilik@example.com", models.RoleTenantAdmin)
	c := h.client()
	require.Equal(t, http.StatusOK, h.login(c, "demo", "pemilik@example.com", "").StatusCode)

	resp := h.do(c, http.MethodPut, "/demo/admin/pengaturan/tema", map[string]interface{}{
		"primaryColor": "#112233", "darkMode": true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = h.do(c, http.MethodGet, "/demo/admin/pengaturan/tema", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view pageView
	decodeBody(t, resp, &view)
	var branding models.Branding
	require.NoError(t, json.Unmarshal(view.Data, &branding))
	assert.Equal(t, "#112233", branding.PrimaryColor)
	assert.True(t, branding.DarkMode)
}

func TestStaff_CannotDemoteSelf(t *testing.T) {
	h := newHarness(t, nil)
	owner := h.seedUser(h.tenant.ID, "pemilik@example.com", models.RoleTenantAdmin)
	c := h.client()
	require.Equal(t, http.StatusOK, h.login(c, "demo", "pemilik@example.com", "").StatusCode)

	resp := h.do(c, http.MethodPut, "/demo/admin/staf/"+owner.ID.String(), map[string]interface{}{
		"name": "Pemilik", "role": "cs", "isActive": true,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = h.do(c, http.MethodDelete, "/demo/admin/staf/"+owner.ID.String(), nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = h.do(c, http.MethodPost, "/demo/admin/staf", map[string]string{
		"name": "Budi", "email": "budi@example.com", "role": "cs", "password": testPassword,
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestDescribeListsEveryForest(t *testing.T) {
	h := newHarness(t, nil)

	forests := map[string]bool{}
	for _, info := range h.server.Table().Describe() {
		forests[info.Forest] = true
		if info.Redirect != "" {
			assert.Equal(t, http.MethodGet, info.Method, info.Name)
		}
	}
	assert.Equal(t, map[string]bool{"platform": true, "storefront": true, "customer": true, "admin": true, "cs": true}, forests)
	assert.Contains(t, h.server.Table().PlatformSegments(), "daftar-restoran")
}
