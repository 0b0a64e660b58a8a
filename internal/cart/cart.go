// Package cart holds the shopping cart of a visitor within one tenant.
package cart

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/restoku/restoku-server/internal/appstate"
	"github.com/restoku/restoku-server/internal/models"
	"github.com/restoku/restoku-server/internal/statestore"
)

// Cart errors
var (
	ErrInvalidQuantity = errors.New("quantity must not be negative")
	ErrNotInCart       = errors.New("item not in cart")
	ErrItemUnavailable = errors.New("menu item unavailable")
)

// Line is one menu item in the cart
type Line struct {
	MenuItemID uuid.UUID       `json:"menuItemId"`
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	Quantity   int             `json:"quantity"`
}

// Total returns unit price times quantity
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Contents is the persisted cart document
type Contents struct {
	Items map[uuid.UUID]Line `json:"items"`
}

func empty() Contents {
	return Contents{Items: make(map[uuid.UUID]Line)}
}

func clone(c Contents) Contents {
	out := Contents{Items: make(map[uuid.UUID]Line, len(c.Items))}
	for id, line := range c.Items {
		out.Items[id] = line
	}
	return out
}

// View is a read-only rendering of the cart
type View struct {
	Items    []Line          `json:"items"`
	Count    int             `json:"count"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Revision uint64          `json:"revision,omitempty"`
}

func render(c Contents, revision uint64) View {
	view := View{Items: make([]Line, 0, len(c.Items)), Subtotal: decimal.Zero, Revision: revision}
	for _, line := range c.Items {
		view.Items = append(view.Items, line)
		view.Count += line.Quantity
		view.Subtotal = view.Subtotal.Add(line.Total())
	}
	sort.Slice(view.Items, func(i, j int) bool {
		if view.Items[i].Name != view.Items[j].Name {
			return view.Items[i].Name < view.Items[j].Name
		}
		return view.Items[i].MenuItemID.String() < view.Items[j].MenuItemID.String()
	})
	return view
}

// Cart is the cart of one visitor scope
type Cart struct {
	state *statestore.Versioned[Contents]
}

func newCart(store statestore.Store, key string) *Cart {
	return &Cart{state: statestore.NewVersioned(store, key, empty, clone)}
}

// View returns the current contents
func (c *Cart) View(ctx context.Context) (View, error) {
	contents, rev, err := c.state.Get(ctx)
	if err != nil {
		return View{}, fmt.Errorf("load cart: %w", err)
	}
	return render(contents, rev), nil
}

func (c *Cart) update(ctx context.Context, fn func(Contents) (Contents, error)) (View, error) {
	contents, rev, err := c.state.Update(ctx, fn)
	return render(contents, rev), err
}

// Add puts quantity units of item into the cart
func (c *Cart) Add(ctx context.Context, item *models.MenuItem, quantity int) (View, error) {
	if quantity <= 0 {
		return View{}, ErrInvalidQuantity
	}
	if !item.Available {
		return View{}, ErrItemUnavailable
	}

	return c.update(ctx, func(contents Contents) (Contents, error) {
		line, ok := contents.Items[item.ID]
		if !ok {
			line = Line{MenuItemID: item.ID, Name: item.Name, UnitPrice: item.Price}
		}
		line.Quantity += quantity
		contents.Items[item.ID] = line
		return contents, nil
	})
}

// SetQuantity changes the quantity of a line; zero removes it
func (c *Cart) SetQuantity(ctx context.Context, itemID uuid.UUID, quantity int) (View, error) {
	if quantity < 0 {
		return View{}, ErrInvalidQuantity
	}

	return c.update(ctx, func(contents Contents) (Contents, error) {
		line, ok := contents.Items[itemID]
		if !ok {
			return contents, ErrNotInCart
		}
		if quantity == 0 {
			delete(contents.Items, itemID)
			return contents, nil
		}
		line.Quantity = quantity
		contents.Items[itemID] = line
		return contents, nil
	})
}

// Remove deletes a line
func (c *Cart) Remove(ctx context.Context, itemID uuid.UUID) (View, error) {
	return c.SetQuantity(ctx, itemID, 0)
}

// Clear empties the cart
func (c *Cart) Clear(ctx context.Context) (View, error) {
	return c.update(ctx, func(Contents) (Contents, error) {
		return empty(), nil
	})
}

var key = appstate.NewKey[*Cart]("cart")

// FromContext returns the cart of the request's visitor scope
func FromContext(ctx context.Context) (*Cart, bool) {
	return key.From(ctx)
}

// Must returns the cart or panics outside the cart provider
func Must(ctx context.Context) *Cart {
	return key.Must(ctx)
}

// Provider creates carts inside visitor scopes
type Provider struct {
	store statestore.Store
}

// NewProvider creates the cart provider
func NewProvider(store statestore.Store) *Provider {
	return &Provider{store: store}
}

// Name implements appstate.Provider
func (p *Provider) Name() string { return "cart" }

// Start implements appstate.Provider
func (p *Provider) Start(ctx context.Context) error { return nil }

// Close implements appstate.Provider
func (p *Provider) Close() error { return nil }

// For returns the cart of scope. The persisted cart is deleted with the scope.
func (p *Provider) For(scope *appstate.Scope) *Cart {
	return appstate.ScopeValue(scope, "cart", func() *Cart {
		c := newCart(p.store, fmt.Sprintf("cart:%s:%s", scope.TenantID, scope.VisitorID))
		scope.OnDispose(c.state.Discard)
		return c
	})
}

// Middleware places the cart of the request's visitor scope into the context
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
