package tenant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restoku/restoku-server/internal/config"
	"github.com/restoku/restoku-server/internal/models"
	"github.com/restoku/restoku-server/internal/storage"
)

type countingSource struct {
	mu      sync.Mutex
	tenants map[string]*models.Tenant
	fetches atomic.Int32
	delay   time.Duration
	err     error
}

func (s *countingSource) GetTenantBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	s.fetches.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	t, ok := s.tenants[slug]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func newSource(slugs ...string) *countingSource {
	src := &countingSource{tenants: make(map[string]*models.Tenant)}
	for _, slug := range slugs {
		src.tenants[slug] = &models.Tenant{ID: uuid.New(), Slug: slug, BusinessName: slug, IsActive: true}
	}
	return src
}

func TestResolve_SameReferenceAndSingleFetch(t *testing.T) {
	src := newSource("warung-sari")
	r := NewResolver(src, 16, time.Minute)

	first, err := r.Resolve(context.Background(), "warung-sari")
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), "Warung-Sari")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), src.fetches.Load())
}

func TestResolve_ConcurrentMissesCollapse(t *testing.T) {
	src := newSource("kopi-kita")
	src.delay = 50 * time.Millisecond
	r := NewResolver(src, 16, time.Minute)

	const n = 20
	results := make([]*models.Tenant, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := r.Resolve(context.Background(), "kopi-kita")
			assert.NoError(t, err)
			results[i] = got
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), src.fetches.Load())
	for _, got := range results {
		assert.Same(t, results[0], got)
	}
}

func TestResolve_NotFoundNeverFallsBack(t *testing.T) {
	src := newSource("warung-sari")
	r := NewResolver(src, 16, time.Minute)

	_, err := r.Resolve(context.Background(), "warung-sari")
	require.NoError(t, err)

	got, err := r.Resolve(context.Background(), "tidak-ada")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, got)
}

func TestResolve_MalformedSlug(t *testing.T) {
	src := newSource()
	r := NewResolver(src, 16, time.Minute)

	for _, slug := range []string{"", "a", "bad slug", "../etc"} {
		_, err := r.Resolve(context.Background(), slug)
		assert.ErrorIs(t, err, ErrNotFound, slug)
	}
	assert.Equal(t, int32(0), src.fetches.Load())
}

func TestResolve_InactiveTenant(t *testing.T) {
	src := newSource("tutup")
	src.tenants["tutup"].IsActive = false
	r := NewResolver(src, 16, time.Minute)

	_, err := r.Resolve(context.Background(), "tutup")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolve_UnavailableIsNotCached(t *testing.T) {
	src := newSource("warung-sari")
	src.err = errors.New("connection refused")
	r := NewResolver(src, 16, time.Minute)

	_, err := r.Resolve(context.Background(), "warung-sari")
	require.ErrorIs(t, err, ErrUnavailable)

	src.mu.Lock()
	src.err = nil
	src.mu.Unlock()

	got, err := r.Resolve(context.Background(), "warung-sari")
	require.NoError(t, err)
	assert.Equal(t, "warung-sari", got.Slug)
	assert.Equal(t, int32(2), src.fetches.Load())
}

func TestResolve_Invalidate(t *testing.T) {
	src := newSource("warung-sari")
	r := NewResolver(src, 16, time.Minute)

	first, err := r.Resolve(context.Background(), "warung-sari")
	require.NoError(t, err)

	r.Invalidate("warung-sari")

	second, err := r.Resolve(context.Background(), "warung-sari")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, int32(2), src.fetches.Load())
}

func TestSlugFromHost(t *testing.T) {
	tests := []struct {
		host string
		slug string
		ok   bool
	}{
		{"warung.restoku.id", "warung", true},
		{"Warung.Restoku.ID:8080", "warung", true},
		{"restoku.id", "", false},
		{"www.restoku.id", "", false},
		{"a.b.restoku.id", "", false},
		{"warung.example.com", "", false},
	}
	for _, tt := range tests {
		slug, ok := SlugFromHost(tt.host, "restoku.id")
		assert.Equal(t, tt.ok, ok, tt.host)
		assert.Equal(t, tt.slug, slug, tt.host)
	}
}

func TestGate_PathMode(t *testing.T) {
	src := newSource("warung-sari")
	gate := NewGate(NewResolver(src, 16, time.Minute), config.TenantConfig{Mode: config.TenantModePath}, nil)

	router := chi.NewRouter()
	router.Route("/{tenant}", func(r chi.Router) {
		r.Use(gate.Middleware)
		r.Get("/menu", func(w http.ResponseWriter, r *http.Request) {
			tn := Must(r.Context())
			w.Write([]byte(tn.Slug + " " + BasePath(r.Context())))
		})
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/warung-sari/menu", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "warung-sari /warung-sari", rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tidak-ada/menu", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGate_PathModeRedirectsToCanonicalSlug(t *testing.T) {
	src := newSource("warung-sari")
	gate := NewGate(NewResolver(src, 16, time.Minute), config.TenantConfig{Mode: config.TenantModePath}, nil)

	called := false
	router := chi.NewRouter()
	router.Route("/{tenant}", func(r chi.Router) {
		r.Use(gate.Middleware)
		r.HandleFunc("/admin/menu", func(w http.ResponseWriter, r *http.Request) { called = true })
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/Warung-Sari/admin/menu?tab=2", nil))
	assert.False(t, called)
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "/warung-sari/admin/menu?tab=2", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/WARUNG-SARI/admin/menu", nil))
	assert.Equal(t, http.StatusPermanentRedirect, rec.Code)
	assert.Equal(t, "/warung-sari/admin/menu", rec.Header().Get("Location"))
	assert.False(t, called)
}

func TestDefaultErrorHandler_WrappedNotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	defaultErrorHandler(rec, httptest.NewRequest(http.MethodGet, "/", nil), fmt.Errorf("resolve: %w", ErrNotFound))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Header().Get("Retry-After"))

	rec = httptest.NewRecorder()
	defaultErrorHandler(rec, httptest.NewRequest(http.MethodGet, "/", nil), fmt.Errorf("resolve: %w", ErrUnavailable))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGate_SubdomainMode(t *testing.T) {
	src := newSource("warung")
	gate := NewGate(NewResolver(src, 16, time.Minute), config.TenantConfig{Mode: config.TenantModeSubdomain, BaseDomain: "restoku.id"}, nil)

	handler := gate.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tn, ok := FromContext(r.Context())
		require.True(t, ok)
		assert.Equal(t, "", BasePath(r.Context()))
		w.Write([]byte(tn.Slug))
	}))

	req := httptest.NewRequest(http.MethodGet, "/menu", nil)
	req.Host = "warung.restoku.id"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "warung", rec.Body.String())
}

func TestGate_UnavailableIsRetryable(t *testing.T) {
	src := newSource("warung-sari")
	src.err = errors.New("timeout")
	gate := NewGate(NewResolver(src, 16, time.Minute), config.TenantConfig{Mode: config.TenantModeSubdomain, BaseDomain: "restoku.id"}, nil)

	called := false
	handler := gate.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "warung-sari.restoku.id"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), `"retryable":true`)
}

func TestMust_PanicsOutsideGate(t *testing.T) {
	assert.PanicsWithValue(t, "tenant: used outside its provider", func() {
		Must(context.Background())
	})
	assert.Equal(t, "", BasePath(context.Background()))
}
