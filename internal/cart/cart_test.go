package cart

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restoku/restoku-server/internal/appstate"
	"github.com/restoku/restoku-server/internal/models"
	"github.com/restoku/restoku-server/internal/statestore"
)

type failingStore struct {
	*statestore.MemoryStore
	fail bool
}

func (f *failingStore) Save(ctx context.Context, key string, rev uint64, data []byte) (bool, error) {
	if f.fail {
		return false, errors.New("connection reset")
	}
	return f.MemoryStore.Save(ctx, key, rev, data)
}

type holdingStore struct {
	*statestore.MemoryStore
	hold    chan struct{}
	waiting chan struct{}
}

func (h *holdingStore) Save(ctx context.Context, key string, rev uint64, data []byte) (bool, error) {
	if hold := h.hold; hold != nil {
		close(h.waiting)
		<-hold
	}
	return h.MemoryStore.Save(ctx, key, rev, data)
}

func menuItem(name string, price int64) *models.MenuItem {
	item := &models.MenuItem{Name: name, Price: decimal.NewFromInt(price), Available: true}
	item.ID = uuid.New()
	return item
}

func TestCart_AddAccumulates(t *testing.T) {
	c := newCart(statestore.NewMemoryStore(0), "cart:test")
	ctx := context.Background()
	nasi := menuItem("Nasi Goreng", 25000)

	_, err := c.Add(ctx, nasi, 1)
	require.NoError(t, err)
	view, err := c.Add(ctx, nasi, 2)
	require.NoError(t, err)

	require.Len(t, view.Items, 1)
	assert.Equal(t, 3, view.Items[0].Quantity)
	assert.Equal(t, 3, view.Count)
	assert.True(t, decimal.NewFromInt(75000).Equal(view.Subtotal))
	assert.Equal(t, uint64(2), view.Revision)
}

func TestCart_QuantityRules(t *testing.T) {
	c := newCart(statestore.NewMemoryStore(0), "cart:test")
	ctx := context.Background()
	teh := menuItem("Es Teh", 5000)

	_, err := c.Add(ctx, teh, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = c.Add(ctx, teh, -1)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = c.Add(ctx, teh, 2)
	require.NoError(t, err)

	_, err = c.SetQuantity(ctx, teh.ID, -3)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	view, err := c.SetQuantity(ctx, teh.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, view.Count)

	view, err = c.SetQuantity(ctx, teh.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, view.Items)

	_, err = c.SetQuantity(ctx, teh.ID, 1)
	assert.ErrorIs(t, err, ErrNotInCart)
}

func TestCart_UnavailableItem(t *testing.T) {
	c := newCart(statestore.NewMemoryStore(0), "cart:test")
	item := menuItem("Sate", 30000)
	item.Available = false

	_, err := c.Add(context.Background(), item, 1)
	assert.ErrorIs(t, err, ErrItemUnavailable)
}

func TestCart_RollbackOnPersistFailure(t *testing.T) {
	store := &failingStore{MemoryStore: statestore.NewMemoryStore(0)}
	c := newCart(store, "cart:test")
	ctx := context.Background()
	nasi := menuItem("Nasi Goreng", 25000)
	teh := menuItem("Es Teh", 5000)

	_, err := c.Add(ctx, nasi, 1)
	require.NoError(t, err)

	store.fail = true
	view, err := c.Add(ctx, teh, 1)
	require.Error(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "Nasi Goreng", view.Items[0].Name)

	current, err := c.View(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, current.Count)
}

func TestCart_ItemsSortedByName(t *testing.T) {
	c := newCart(statestore.NewMemoryStore(0), "cart:test")
	ctx := context.Background()
	for _, name := range []string{"Sate", "Bakso", "Mie Ayam"} {
		_, err := c.Add(ctx, menuItem(name, 10000), 1)
		require.NoError(t, err)
	}

	view, err := c.View(ctx)
	require.NoError(t, err)
	names := []string{view.Items[0].Name, view.Items[1].Name, view.Items[2].Name}
	assert.Equal(t, []string{"Bakso", "Mie Ayam", "Sate"}, names)
}

func TestProvider_TenantSwitchDiscardsCart(t *testing.T) {
	store := statestore.NewMemoryStore(0)
	p := NewProvider(store)
	scopes := appstate.NewScopes(0)
	ctx := context.Background()

	tenantA, tenantB := uuid.New(), uuid.New()

	cartA := p.For(scopes.Bind("visitor-1", tenantA))
	_, err := cartA.Add(ctx, menuItem("Rendang", 40000), 1)
	require.NoError(t, err)
	require.Equal(t, 1, store.Len())

	cartB := p.For(scopes.Bind("visitor-1", tenantB))
	view, err := cartB.View(ctx)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
	assert.Equal(t, 0, store.Len(), "tenant A cart deleted from persistence")

	back := p.For(scopes.Bind("visitor-1", tenantA))
	view, err = back.View(ctx)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
}

func TestProvider_TenantSwitchDuringSave(t *testing.T) {
	store := &holdingStore{
		MemoryStore: statestore.NewMemoryStore(0),
		hold:        make(chan struct{}),
		waiting:     make(chan struct{}),
	}
	p := NewProvider(store)
	scopes := appstate.NewScopes(0)
	ctx := context.Background()
	tenantA, tenantB := uuid.New(), uuid.New()

	cartA := p.For(scopes.Bind("visitor-1", tenantA))
	done := make(chan error, 1)
	go func() {
		_, err := cartA.Add(ctx, menuItem("Rendang", 40000), 1)
		done <- err
	}()
	<-store.waiting

	p.For(scopes.Bind("visitor-1", tenantB))
	hold := store.hold
	store.hold = nil
	close(hold)
	require.ErrorIs(t, <-done, statestore.ErrDiscarded)

	back := p.For(scopes.Bind("visitor-1", tenantA))
	view, err := back.View(ctx)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
	assert.Equal(t, 0, store.Len())
}

func TestProvider_SameScopeSameCart(t *testing.T) {
	p := NewProvider(statestore.NewMemoryStore(0))
	scope := appstate.NewScopes(0).Bind("visitor-1", uuid.New())
	assert.Same(t, p.For(scope), p.For(scope))
}

func TestProvider_Middleware(t *testing.T) {
	p := NewProvider(statestore.NewMemoryStore(0))
	scope := appstate.NewScopes(0).Bind("visitor-1", uuid.New())

	var got *Cart
	handler := p.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = Must(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(appstate.ScopeKey.With(req.Context(), scope))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Same(t, p.For(scope), got)
	assert.PanicsWithValue(t, "cart: used outside its provider", func() {
		Must(context.Background())
	})
}
