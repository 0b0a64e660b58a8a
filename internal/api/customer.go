package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/restoku/restoku-server/internal/auth"
	"github.com/restoku/restoku-server/internal/events"
	"github.com/restoku/restoku-server/internal/favorites"
	"github.com/restoku/restoku-server/internal/models"
	"github.com/restoku/restoku-server/internal/routing"
	"github.com/restoku/restoku-server/internal/storage"
	"github.com/restoku/restoku-server/internal/storefront"
	"github.com/restoku/restoku-server/internal/tenant"
)

// ========== Profile ==========

func (s *Server) profilePage(r *http.Request) (*routing.Page, error) {
	user, err := s.svc.Store.GetUser(r.Context(), mustUser(r).ID)
	if err != nil {
		return nil, err
	}
	return &routing.Page{Title: "Profil", Data: user}, nil
}

func (s *Server) handleProfileUpdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name" validate:"required,max=120"`
		Phone string `json:"phone" validate:"omitempty,max=32"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	user, err := s.svc.Store.GetUser(ctx, mustUser(r).ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	user.Name = strings.TrimSpace(req.Name)
	user.Phone = req.Phone
	if err := s.svc.Store.UpdateUser(ctx, user); err != nil {
		s.fail(w, r, err)
		return
	}
	toast(r, "Profil diperbarui")
	s.respondJSON(w, http.StatusOK, user)
}

func (s *Server) handlePasswordChange(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CurrentPassword string `json:"currentPassword" validate:"required"`
		NewPassword     string `json:"newPassword" validate:"required,min=8,nefield=CurrentPassword"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	err := s.svc.Auth.ChangePassword(r.Context(), mustUser(r).ID, req.CurrentPassword, req.NewPassword)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		s.respondError(w, http.StatusUnprocessableEntity, "current password is incorrect")
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	// every session of the user, this one included, has been revoked
	s.svc.Sessions.ClearToken(w)
	s.respondJSON(w, http.StatusOK, map[string]string{"redirect": location(r, "/login?next=%2Fakun%2Fprofil")})
}

func (s *Server) handleEmailChange(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	token, err := s.svc.Auth.StartEmailChange(ctx, mustUser(r).ID, req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		s.respondError(w, http.StatusUnprocessableEntity, "password is incorrect")
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	t := tenant.Must(ctx)
	newEmail := strings.ToLower(strings.TrimSpace(req.Email))
	s.publish(r, events.TopicMailOutbound, events.MailMessage{
		To:      newEmail,
		Subject: "Konfirmasi perubahan email - " + t.BusinessName,
		Body: "Buka tautan berikut untuk mengonfirmasi alamat email baru Anda:\n\n" +
			location(r, "/akun/keamanan/email/konfirmasi?token="+token) +
			"\n\nTautan berlaku 24 jam.",
	})
	s.respondJSON(w, http.StatusAccepted, map[string]string{"pendingEmail": newEmail})
}

func (s *Server) emailConfirmPage(r *http.Request) (*routing.Page, error) {
	user, err := s.svc.Auth.ConfirmEmailChange(r.Context(), r.URL.Query().Get("token"))
	if errors.Is(err, auth.ErrEmailTokenInvalid) {
		return nil, routing.WithStatus(http.StatusBadRequest, err)
	}
	if errors.Is(err, auth.ErrEmailTaken) {
		return nil, routing.WithStatus(http.StatusConflict, err)
	}
	if err != nil {
		return nil, err
	}
	return &routing.Page{Title: "Email dikonfirmasi", Data: map[string]string{"email": user.Email}}, nil
}

// ========== Orders ==========

var (
	activeStatuses  = []models.OrderStatus{models.OrderPending, models.OrderConfirmed, models.OrderPreparing, models.OrderReady}
	historyStatuses = []models.OrderStatus{models.OrderCompleted, models.OrderCancelled}
)

func (s *Server) customerOrders(r *http.Request, title string, statuses []models.OrderStatus) (*routing.Page, error) {
	t := tenant.Must(r.Context())
	customerID := mustUser(r).ID
	limit, offset := pagination(r)

	orders, total, err := s.svc.Store.ListOrders(r.Context(), t.ID, models.OrderFilter{
		CustomerID: &customerID,
		Statuses:   statuses,
	}, limit, offset)
	if err != nil {
		return nil, err
	}
	return &routing.Page{Title: title, Data: map[string]interface{}{
		"orders": orders,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	}}, nil
}

func (s *Server) activeOrdersPage(r *http.Request) (*routing.Page, error) {
	return s.customerOrders(r, "Pesanan aktif", activeStatuses)
}

func (s *Server) orderHistoryPage(r *http.Request) (*routing.Page, error) {
	return s.customerOrders(r, "Riwayat pesanan", historyStatuses)
}

func (s *Server) orderPage(r *http.Request) (*routing.Page, error) {
	t := tenant.Must(r.Context())
	id, err := uuidParam(r, "orderID")
	if err != nil {
		return nil, err
	}
	order, err := s.svc.Store.GetOrder(r.Context(), t.ID, id)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != mustUser(r).ID {
		return nil, storage.ErrNotFound
	}
	return &routing.Page{Title: "Pesanan " + order.Number, Data: order}, nil
}

// ========== Reservations ==========

const maxPartySize = 50

func (s *Server) reservationFormPage(r *http.Request) (*routing.Page, error) {
	ctx := r.Context()
	t := tenant.Must(ctx)
	user := mustUser(r)
	data := map[string]interface{}{
		"outlets":      t.Outlets,
		"hours":        t.OperatingHours,
		"maxPartySize": maxPartySize,
		"name":         user.Name,
	}
	if outlet, ok := storefront.MustLocation(ctx).Selected(t); ok {
		data["outletId"] = outlet.ID
	}
	return &routing.Page{Title: "Buat reservasi", Data: data}, nil
}

func (s *Server) handleReservationCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string     `json:"name" validate:"required,max=120"`
		Phone      string     `json:"phone" validate:"required,max=32"`
		PartySize  int        `json:"partySize" validate:"required,min=1,max=50"`
		ReservedAt time.Time  `json:"reservedAt" validate:"required"`
		Notes      string     `json:"notes" validate:"max=500"`
		OutletID   *uuid.UUID `json:"outletId"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	t := tenant.Must(ctx)
	if !req.ReservedAt.After(s.now()) {
		s.respondError(w, http.StatusUnprocessableEntity, "reservation time must be in the future")
		return
	}
	if req.OutletID != nil {
		if _, ok := t.Outlets.Find(*req.OutletID); !ok {
			s.fail(w, r, storefront.ErrUnknownOutlet)
			return
		}
	}

	res := &models.Reservation{
		CustomerID: mustUser(r).ID,
		OutletID:   req.OutletID,
		Name:       strings.TrimSpace(req.Name),
		Phone:      req.Phone,
		PartySize:  req.PartySize,
		ReservedAt: req.ReservedAt,
		Notes:      strings.TrimSpace(req.Notes),
		Status:     models.ReservationPending,
	}
	res.TenantID = t.ID
	if err := s.svc.Store.CreateReservation(ctx, res); err != nil {
		s.fail(w, r, err)
		return
	}

	s.publish(r, events.TopicReservationCreated, events.ReservationEvent{
		ReservationID: res.ID,
		Name:          res.Name,
		PartySize:     res.PartySize,
		ReservedAt:    res.ReservedAt,
		Status:        res.Status,
	})
	toast(r, "Reservasi terkirim, menunggu konfirmasi restoran")
	s.respondJSON(w, http.StatusCreated, res)
}

func (s *Server) reservationsPage(r *http.Request) (*routing.Page, error) {
	t := tenant.Must(r.Context())
	customerID := mustUser(r).ID
	limit, offset := pagination(r)

	list, total, err := s.svc.Store.ListReservations(r.Context(), t.ID, &customerID, limit, offset)
	if err != nil {
		return nil, err
	}
	return &routing.Page{Title: "Reservasi saya", Data: map[string]interface{}{
		"reservations": list,
		"total":        total,
	}}, nil
}

func (s *Server) handleReservationCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	t := tenant.Must(ctx)

	id, err := uuidParam(r, "reservationID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.svc.Store.GetReservation(ctx, t.ID, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if res.CustomerID != mustUser(r).ID {
		s.fail(w, r, storage.ErrNotFound)
		return
	}
	if !res.Status.CanTransition(models.ReservationCancelled) {
		s.respondError(w, http.StatusConflict, "reservation can no longer be cancelled")
		return
	}
	if err := s.svc.Store.UpdateReservationStatus(ctx, t.ID, id, models.ReservationCancelled); err != nil {
		s.fail(w, r, err)
		return
	}
	res.Status = models.ReservationCancelled
	s.recordActivity(r, models.ActivityReservation, "Reservasi "+res.Name+" dibatalkan pelanggan", models.Variables{
		"reservationId": res.ID.String(),
	})
	s.respondJSON(w, http.StatusOK, res)
}

// ========== Favorites, points, notifications ==========

func (s *Server) favoritesPage(r *http.Request) (*routing.Page, error) {
	ctx := r.Context()
	t := tenant.Must(ctx)
	favs := favorites.Must(ctx)

	ids, err := favs.List(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]*models.MenuItem, 0, len(ids))
	for _, id := range ids {
		item, err := s.svc.Store.GetMenuItem(ctx, t.ID, id)
		if errors.Is(err, storage.ErrNotFound) {
			if err := favs.Remove(ctx, id); err != nil {
				zerolog.Ctx(ctx).Warn().Err(err).Msg("Failed to drop removed menu item from favorites")
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return &routing.Page{Title: "Favorit", Data: map[string]interface{}{"items": items}}, nil
}

func (s *Server) pointsPage(r *http.Request) (*routing.Page, error) {
	t := tenant.Must(r.Context())
	summary, err := s.svc.Loyalty.Summary(r.Context(), t.ID, mustUser(r).ID, 50)
	if err != nil {
		return nil, err
	}
	return &routing.Page{Title: "Poin", Data: summary}, nil
}

func (s *Server) notificationsPage(r *http.Request) (*routing.Page, error) {
	t := tenant.Must(r.Context())
	inbox, err := s.svc.Notifier.Inbox(r.Context(), t.ID, mustUser(r).ID, 50)
	if err != nil {
		return nil, err
	}
	return &routing.Page{Title: "Notifikasi", Data: inbox}, nil
}

func (s *Server) handleNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "notificationID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	t := tenant.Must(r.Context())
	if err := s.svc.Notifier.MarkRead(r.Context(), t.ID, mustUser(r).ID, id); err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"id": id, "read": true})
}

func (s *Server) handleNotificationsReadAll(w http.ResponseWriter, r *http.Request) {
	t := tenant.Must(r.Context())
	n, err := s.svc.Notifier.MarkAllRead(r.Context(), t.ID, mustUser(r).ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

func (s *Server) handleAppearance(w http.ResponseWriter, r *http.Request) {
	var req storefront.Preferences
	if !s.decode(w, r, &req) {
		return
	}
	t := tenant.Must(r.Context())
	prefs := storefront.MustLayout(r.Context()).Update(req)
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"preferences": prefs,
		"theme":       storefront.ThemeFor(t.Branding, prefs),
	})
}
