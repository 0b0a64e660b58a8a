package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/restoku/restoku-server/internal/cart"
	"github.com/restoku/restoku-server/internal/events"
	"github.com/restoku/restoku-server/internal/loyalty"
	"github.com/restoku/restoku-server/internal/models"
	"github.com/restoku/restoku-server/internal/routing"
	"github.com/restoku/restoku-server/internal/storage"
	"github.com/restoku/restoku-server/internal/storefront"
	"github.com/restoku/restoku-server/internal/tenant"
)

// Checkout errors
var (
	ErrEmptyCart     = errors.New("cart is empty")
	ErrNoOutlet      = errors.New("select an outlet first")
	ErrUnknownPromo  = errors.New("unknown promo code")
	ErrItemWithdrawn = errors.New("menu item no longer offered")
)

// orderNumber returns a human readable order reference
func orderNumber(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("RK-%s-%s", at.Format("060102"), suffix)
}

// handleCheckout turns the visitor's cart into an order. Prices are taken
// from the current menu, not from the cart snapshot.
func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if user == nil {
		routing.RedirectToLogin(w, r)
		return
	}

	var req struct {
		PromoCode string `json:"promoCode" validate:"omitempty,max=32"`
		Points    int    `json:"points" validate:"min=0"`
		Notes     string `json:"notes" validate:"max=500"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	t := tenant.Must(ctx)
	c := cart.Must(ctx)
	now := s.now()

	view, err := c.View(ctx)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if len(view.Items) == 0 {
		s.respondError(w, http.StatusUnprocessableEntity, ErrEmptyCart.Error())
		return
	}

	order := &models.Order{
		Number:     orderNumber(now),
		CustomerID: user.ID,
		Status:     models.OrderPending,
		Notes:      strings.TrimSpace(req.Notes),
	}
	order.TenantID = t.ID

	if outlet, ok := storefront.MustLocation(ctx).Selected(t); ok {
		id := outlet.ID
		order.OutletID = &id
	} else if len(t.Outlets) > 1 {
		s.respondError(w, http.StatusUnprocessableEntity, ErrNoOutlet.Error())
		return
	}

	subtotal := decimal.Zero
	for _, line := range view.Items {
		item, err := s.svc.Store.GetMenuItem(ctx, t.ID, line.MenuItemID)
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusConflict, fmt.Sprintf("%s: %s", ErrItemWithdrawn, line.Name))
			return
		}
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if !item.Available {
			s.respondError(w, http.StatusConflict, fmt.Sprintf("%s: %s", cart.ErrItemUnavailable, item.Name))
			return
		}
		oi := models.OrderItem{
			MenuItemID: item.ID,
			Name:       item.Name,
			UnitPrice:  item.Price,
			Quantity:   line.Quantity,
		}
		order.Items = append(order.Items, oi)
		subtotal = subtotal.Add(oi.LineTotal())
	}
	order.Subtotal = subtotal

	var promo *models.PromoCode
	discount := decimal.Zero
	if code := strings.ToUpper(strings.TrimSpace(req.PromoCode)); code != "" {
		promo, err = s.svc.Store.GetPromoByCode(ctx, t.ID, code)
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusUnprocessableEntity, ErrUnknownPromo.Error())
			return
		}
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if discount, err = promo.Discount(subtotal, now); err != nil {
			s.fail(w, r, err)
			return
		}
		order.PromoCode = promo.Code
	}

	if req.Points > 0 {
		account, err := s.svc.Loyalty.Account(ctx, t.ID, user.ID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		order.PointsUsed = loyalty.Redeemable(req.Points, account.Balance, subtotal.Sub(discount))
	}
	order.Discount = discount.Add(loyalty.Value(order.PointsUsed))
	order.Total = subtotal.Sub(order.Discount)

	earned, err := s.placeOrder(r, order, promo)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if _, err := c.Clear(ctx); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("order", order.Number).Msg("Failed to clear cart after checkout")
	}
	s.publish(r, events.TopicOrderCreated, events.NewOrderEvent(order, "", now))
	toast(r, "Pesanan "+order.Number+" berhasil dibuat")

	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"order":        order,
		"pointsEarned": earned,
		"redirect":     location(r, "/akun/pesanan/"+order.ID.String()),
	})
}

// placeOrder stores the order with its promo usage and points ledger entries
// in one transaction and returns the points earned
func (s *Server) placeOrder(r *http.Request, order *models.Order, promo *models.PromoCode) (int, error) {
	ctx := r.Context()
	tx, err := s.svc.Store.BeginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if err := tx.CreateOrder(ctx, order); err != nil {
		return 0, fmt.Errorf("create order: %w", err)
	}
	if promo != nil {
		if err := tx.IncrementPromoUsage(ctx, order.TenantID, promo.ID); err != nil {
			return 0, err
		}
	}

	ledger := loyalty.NewService(tx)
	if order.PointsUsed > 0 {
		if _, err := ledger.Redeem(ctx, order, order.PointsUsed); err != nil {
			return 0, err
		}
	}
	earned, err := ledger.Earn(ctx, order)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit order: %w", err)
	}
	return earned, nil
}
