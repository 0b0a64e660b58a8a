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

	"github.com/restoku/restoku-server/internal/events"
	"github.com/restoku/restoku-server/internal/models"
	"github.com/restoku/restoku-server/internal/routing"
	"github.com/restoku/restoku-server/internal/storage"
	"github.com/restoku/restoku-server/internal/tenant"
)

const dateLayout = "2006-01-02"

// startOfDay truncates at to local midnight in loc
func startOfDay(at time.Time, loc *time.Location) time.Time {
	y, m, d := at.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// dateRange reads ?dari and ?sampai (inclusive days in the tenant zone).
// Without them the last days days up to today are returned.
func dateRange(r *http.Request, loc *time.Location, now time.Time, days int) (from, to time.Time, err error) {
	to = startOfDay(now, loc).AddDate(0, 0, 1)
	from = to.AddDate(0, 0, -days)

	q := r.URL.Query()
	if raw := q.Get("dari"); raw != "" {
		if from, err = time.ParseInLocation(dateLayout, raw, loc); err != nil {
			return from, to, routing.WithStatus(http.StatusBadRequest, fmt.Errorf("invalid dari: %w", err))
		}
	}
	if raw := q.Get("sampai"); raw != "" {
		day, perr := time.ParseInLocation(dateLayout, raw, loc)
		if perr != nil {
			return from, to, routing.WithStatus(http.StatusBadRequest, fmt.Errorf("invalid sampai: %w", perr))
		}
		to = day.AddDate(0, 0, 1)
	}
	if !from.Before(to) {
		return from, to, routing.WithStatus(http.StatusBadRequest, errors.New("dari must not be after sampai"))
	}
	return from, to, nil
}

// ========== Dashboard ==========

func (s *Server) adminDashboardPage(r *http.Request) (*routing.Page, error) {
	ctx := r.Context()
	t := tenant.Must(ctx)
	from := startOfDay(s.now(), t.Location())

	today, err := s.svc.Store.GetOrderStats(ctx, t.ID, from, from.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	pending, pendingTotal, err := s.svc.Store.ListOrders(ctx, t.ID, models.OrderFilter{
		Statuses: []models.OrderStatus{models.OrderPending},
	}, 10, 0)
	if err != nil {
		return nil, err
	}
	reservations, _, err := s.svc.Store.ListReservations(ctx, t.ID, nil, maxPageSize, 0)
	if err != nil {
		return nil, err
	}
	waiting := make([]*models.Reservation, 0)
	for _, res := range reservations {
		if res.Status == models.ReservationPending {
			waiting = append(waiting, res)
		}
	}

	return &routing.Page{Title: "Dasbor", Data: map[string]interface{}{
		"today":               today,
		"pendingOrders":       pending,
		"pendingOrderCount":   pendingTotal,
		"pendingReservations": waiting,
		"openNow":             t.IsOpenAt(s.now()),
	}}, nil
}

// ========== Menu ==========

type menuItemRequest struct {
	CategoryID  *uuid.UUID      `json:"categoryId"`
	Name        string          `json:"name" validate:"required,max=120"`
	Description string          `json:"description" validate:"max=1000"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"imageUrl" validate:"omitempty,url"`
	Available   bool            `json:"available"`
	Featured    bool            `json:"featured"`
}

func (req *menuItemRequest) apply(item *models.MenuItem) {
	item.CategoryID = req.CategoryID
	item.Name = strings.TrimSpace(req.Name)
	item.Description = strings.TrimSpace(req.Description)
	item.Price = req.Price
	item.ImageURL = req.ImageURL
	item.Available = req.Available
	item.Featured = req.Featured
}

// checkMenuItem validates what the struct tags cannot
func (s *Server) checkMenuItem(r *http.Request, req *menuItemRequest) error {
	if !req.Price.IsPositive() {
		return fmt.Errorf("%w: price must be positive", storage.ErrInvalidData)
	}
	if req.CategoryID == nil {
		return nil
	}
	t := tenant.Must(r.Context())
	categories, err := s.svc.Store.ListMenuCategories(r.Context(), t.ID)
	if err != nil {
		return err
	}
	for _, c := range categories {
		if c.ID == *req.CategoryID {
			return nil
		}
	}
	return fmt.Errorf("%w: unknown category", storage.ErrInvalidData)
}

// menuChanged drops cached storefront data and logs the change
func (s *Server) menuChanged(r *http.Request, verb string, item *models.MenuItem) {
	t := tenant.Must(r.Context())
	s.svc.Homepages.Invalidate(t.ID)
	s.recordActivity(r, models.ActivityMenuChanged, fmt.Sprintf("Menu %s %s", item.Name, verb), models.Variables{
		"menuItemId": item.ID.String(),
	})
}

func (s *Server) adminMenuPage(r *http.Request) (*routing.Page, error) {
	ctx := r.Context()
	t := tenant.Must(ctx)
	categories, err := s.svc.Store.ListMenuCategories(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	items, err := s.svc.Store.ListMenuItems(ctx, t.ID, storage.MenuFilter{})
	if err != nil {
		return nil, err
	}
	return &routing.Page{Title: "Kelola menu", Data: map[string]interface{}{
		"categories": categories,
		"items":      items,
	}}, nil
}

func (s *Server) handleMenuItemCreate(w http.ResponseWriter, r *http.Request) {
	var req menuItemRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.checkMenuItem(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	t := tenant.Must(r.Context())
	item := &models.MenuItem{}
	item.TenantID = t.ID
	req.apply(item)
	if err := s.svc.Store.CreateMenuItem(r.Context(), item); err != nil {
		s.fail(w, r, err)
		return
	}
	s.menuChanged(r, "ditambahkan", item)
	s.respondJSON(w, http.StatusCreated, item)
}

func (s *Server) handleMenuItemUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	t := tenant.Must(ctx)
	id, err := uuidParam(r, "itemID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req menuItemRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.checkMenuItem(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	item, err := s.svc.Store.GetMenuItem(ctx, t.ID, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	req.apply(item)
	if err := s.svc.Store.UpdateMenuItem(ctx, item); err != nil {
		s.fail(w, r, err)
		return
	}
	s.menuChanged(r, "diubah", item)
	s.respondJSON(w, http.StatusOK, item)
}

func (s *Server) handleMenuItemDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	t := tenant.Must(ctx)
	id, err := uuidParam(r, "itemID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	item, err := s.svc.Store.GetMenuItem(ctx, t.ID, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.svc.Store.DeleteMenuItem(ctx, t.ID, id); err != nil {
		s.fail(w, r, err)
		return
	}
	s.menuChanged(r, "dihapus", item)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) adminCategoriesPage(r *http.Request) (*routing.Page, error) {
	t := tenant.Must(r.Context())
	categories, err := s.svc.Store.ListMenuCategories(r.Context(), t.ID)
	if err != nil {
		return nil, err
	}
	return &routing.Page{Title: "Kategori", Data: map[string]interface{}{"categories": categories}}, nil
}

func (s *Server) handleCategoryCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string `json:"name" validate:"required,max=80"`
		SortOrder int    `json:"sortOrder" validate:"min=0"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	t := tenant.Must(r.Context())
	category := &models.MenuCategory{Name: strings.TrimSpace(req.Name), SortOrder: req.SortOrder}
	category.TenantID = t.ID
	if err := s.svc.Store.CreateMenuCategory(r.Context(), category); err != nil {
		s.fail(w, r, err)
		return
	}
	s.svc.Homepages.Invalidate(t.ID)
	s.recordActivity(r, models.ActivityMenuChanged, "Kategori "+category.Name+" ditambahkan", models.Variables{
		"categoryId": category.ID.String(),
	})
	s.respondJSON(w, http.StatusCreated, category)
}

// ========== Orders ==========

func (s *Server) adminOrdersPage(r *http.Request) (*routing.Page, error) {
	ctx := r.Context()
	t := tenant.Must(ctx)
	limit, offset := pagination(r)

	filter := models.OrderFilter{}
	q := r.URL.Query()
	if raw := q.Get("status"); raw != "" {
		filter.Statuses = []models.OrderStatus{models.OrderStatus(raw)}
	}
	if q.Get("dari") != "" || q.Get("sampai") != "" {
		from, to, err := dateRange(r, t.Location(), s.now(), 30)
		if err != nil {
			return nil, err
		}
		filter.From, filter.To = &from, &to
	}

	orders, total, err := s.svc.Store.ListOrders(ctx, t.ID, filter, limit, offset)
	if err != nil {
		return nil, err
	}
	return &routing.Page{Title: "Pesanan", Data: map[string]interface{}{
		"orders": orders,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	}}, nil
}

var orderStatusMessages = map[models.OrderStatus]string{
	models.OrderConfirmed: "Pesanan %s telah dikonfirmasi",
	models.OrderPreparing: "Pesanan %s sedang disiapkan",
	models.OrderReady:     "Pesanan %s siap diambil",
	models.OrderCompleted: "Pesanan %s selesai. Terima kasih!",
	models.OrderCancelled: "Pesanan %s dibatalkan",
}

func (s *Server) handleOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	t := tenant.Must(ctx)
	id, err := uuidParam(r, "orderID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req struct {
		Status models.OrderStatus `json:"status" validate:"required,oneof=pending confirmed preparing ready completed cancelled"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	order, err := s.svc.Store.GetOrder(ctx, t.ID, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	prev := order.Status
	if !prev.CanTransition(req.Status) {
		s.respondError(w, http.StatusConflict, fmt.Sprintf("cannot move order from %s to %s", prev, req.Status))
		return
	}

	if err := s.svc.Store.UpdateOrderStatus(ctx, t.ID, id, prev, req.Status); err != nil {
		s.fail(w, r, err)
		return
	}
	order.Status = req.Status
	if req.Status == models.OrderCancelled {
		if _, err := s.svc.Loyalty.Cancel(ctx, order); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("order", order.Number).Msg("Failed to settle loyalty points")
		}
	}

	s.publish(r, events.TopicOrderStatus, events.NewOrderEvent(order, prev, s.now()))
	if msg, ok := orderStatusMessages[req.Status]; ok {
		link := location(r, "/akun/pesanan/"+order.ID.String())
		if _, err := s.svc.Notifier.Notify(ctx, t, order.CustomerID, "Status pesanan", fmt.Sprintf(msg, order.Number), link); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("order", order.Number).Msg("Failed to notify customer")
		}
	}
	s.respondJSON(w, http.StatusOK, order)
}

// ========== Reservations ==========

func (s *Server) adminReservationsPage(r *http.Request) (*routing.Page, error) {
	t := tenant.Must(r.Context())
	limit, offset := pagination(r)
	list, total, err := s.svc.Store.ListReservations(r.Context(), t.ID, nil, limit, offset)
	if err != nil {
		return nil, err
	}
	return &routing.Page{Title: "Reservasi", Data: map[string]interface{}{
		"reservations": list,
		"total":        total,
		"limit":        limit,
		"offset":       offset,
	}}, nil
}

var reservationStatusMessages = map[models.ReservationStatus]string{
	models.ReservationConfirmed: "Reservasi Anda untuk %d orang telah dikonfirmasi",
	models.ReservationRejected:  "Maaf, reservasi Anda untuk %d orang tidak dapat kami terima",
	models.ReservationCancelled: "Reservasi Anda untuk %d orang dibatalkan",
}

func (s *Server) handleReservationStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	t := tenant.Must(ctx)
	id, err := uuidParam(r, "reservationID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req struct {
		Status models.ReservationStatus `json:"status" validate:"required,oneof=confirmed rejected cancelled completed"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.svc.Store.GetReservation(ctx, t.ID, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !res.Status.CanTransition(req.Status) {
		s.respondError(w, http.StatusConflict, fmt.Sprintf("cannot move reservation from %s to %s", res.Status, req.Status))
		return
	}
	if err := s.svc.Store.UpdateReservationStatus(ctx, t.ID, id, req.Status); err != nil {
		s.fail(w, r, err)
		return
	}
	prev := res.Status
	res.Status = req.Status

	if msg, ok := reservationStatusMessages[req.Status]; ok {
		if _, err := s.svc.Notifier.Notify(ctx, t, res.CustomerID, "Reservasi", fmt.Sprintf(msg, res.PartySize), location(r, "/akun/reservasi/daftar")); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("reservation", res.ID.String()).Msg("Failed to notify customer")
		}
	}
	s.recordActivity(r, models.ActivityReservation, fmt.Sprintf("Reservasi %s: %s -> %s", res.Name, prev, res.Status), models.Variables{
		"reservationId": res.ID.String(),
	})
	s.respondJSON(w, http.StatusOK, res)
}

// ========== Promos ==========

type promoRequest struct {
	Code        string              `json:"code" validate:"required,min=3,max=32,alphanum"`
	Description string              `json:"description" validate:"max=200"`
	Type        models.DiscountType `json:"type" validate:"required,oneof=percent fixed"`
	Value       decimal.Decimal     `json:"value"`
	MaxDiscount decimal.Decimal     `json:"maxDiscount"`
	MinOrder    decimal.Decimal     `json:"minOrder"`
	StartsAt    *time.Time          `json:"startsAt"`
	EndsAt      *time.Time          `json:"endsAt"`
	UsageLimit  int                 `json:"usageLimit" validate:"min=0"`
	Active      bool                `json:"active"`
}

func (req *promoRequest) check() error {
	if !req.Value.IsPositive() {
		return fmt.Errorf("%w: value must be positive", storage.ErrInvalidData)
	}
	if req.Type == models.DiscountPercent && req.Value.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("%w: percent discount above 100", storage.ErrInvalidData)
	}
	if req.MaxDiscount.IsNegative() || req.MinOrder.IsNegative() {
		return fmt.Errorf("%w: amounts must not be negative", storage.ErrInvalidData)
	}
	if req.StartsAt != nil && req.EndsAt != nil && !req.EndsAt.After(*req.StartsAt) {
		return fmt.Errorf("%w: endsAt must be after startsAt", storage.ErrInvalidData)
	}
	return nil
}

func (req *promoRequest) apply(p *models.PromoCode) {
	p.Code = strings.ToUpper(req.Code)
	p.Description = strings.TrimSpace(req.Description)
	p.Type = req.Type
	p.Value = req.Value
	p.MaxDiscount = req.MaxDiscount
	p.MinOrder = req.MinOrder
	p.StartsAt = req.StartsAt
	p.EndsAt = req.EndsAt
	p.UsageLimit = req.UsageLimit
	p.Active = req.Active
}

func (s *Server) promoChanged(r *http.Request, verb string, p *models.PromoCode) {
	s.recordActivity(r, models.ActivityPromoChanged, "Promo "+p.Code+" "+verb, models.Variables{
		"promoId": p.ID.String(),
	})
}

func (s *Server) adminPromosPage(r *http.Request) (*routing.Page, error) {
	t := tenant.Must(r.Context())
	promos, err := s.svc.Store.ListPromos(r.Context(), t.ID)
	if err != nil {
		return nil, err
	}
	return &routing.Page{Title: "Promosi", Data: map[string]interface{}{"promos": promos}}, nil
}

func (s *Server) handlePromoCreate(w http.ResponseWriter, r *http.Request) {
	var req promoRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := req.check(); err != nil {
		s.fail(w, r, err)
		return
	}
	t := tenant.Must(r.Context())
	promo := &models.PromoCode{}
	promo.TenantID = t.ID
	req.apply(promo)
	if err := s.svc.Store.CreatePromo(r.Context(), promo); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			s.respondError(w, http.StatusConflict, "promo code already exists")
			return
		}
		s.fail(w, r, err)
		return
	}
	s.promoChanged(r, "dibuat", promo)
	s.respondJSON(w, http.StatusCreated, promo)
}

func (s *Server) handlePromoUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	t := tenant.Must(ctx)
	id, err := uuidParam(r, "promoID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req promoRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := req.check(); err != nil {
		s.fail(w, r, err)
		return
	}
	promo, err := s.svc.Store.GetPromo(ctx, t.ID, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	req.apply(promo)
	if err := s.svc.Store.UpdatePromo(ctx, promo); err != nil {
		s.fail(w, r, err)
		return
	}
	s.promoChanged(r, "diubah", promo)
	s.respondJSON(w, http.StatusOK, promo)
}

func (s *Server) handlePromoDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	t := tenant.Must(ctx)
	id, err := uuidParam(r, "promoID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	promo, err := s.svc.Store.GetPromo(ctx, t.ID, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.svc.Store.DeletePromo(ctx, t.ID, id); err != nil {
		s.fail(w, r, err)
		return
	}
	s.promoChanged(r, "dihapus", promo)
	w.WriteHeader(http.StatusNoContent)
}

// ========== Analytics ==========

func (s *Server) adminAnalyticsPage(r *http.Request) (*routing.Page, error) {
	ctx := r.Context()
	t := tenant.Must(ctx)
	from, to, err := dateRange(r, t.Location(), s.now(), 30)
	if err != nil {
		return nil, err
	}
	stats, err := s.svc.Store.GetOrderStats(ctx, t.ID, from, to)
	if err != nil {
		return nil, err
	}
	return &routing.Page{Title: "Analitik", Data: map[string]interface{}{
		"from":  from.Format(dateLayout),
		"to":    to.AddDate(0, 0, -1).Format(dateLayout),
		"stats": stats,
	}}, nil
}
