package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/restoku/restoku-server/internal/cart"
	"github.com/restoku/restoku-server/internal/chat"
	"github.com/restoku/restoku-server/internal/favorites"
	"github.com/restoku/restoku-server/internal/models"
	"github.com/restoku/restoku-server/internal/routing"
	"github.com/restoku/restoku-server/internal/storage"
	"github.com/restoku/restoku-server/internal/storefront"
	"github.com/restoku/restoku-server/internal/tenant"
)

func (s *Server) homePage(r *http.Request) (*routing.Page, error) {
	t := tenant.Must(r.Context())
	home, err := s.svc.Homepages.Build(r.Context(), t, s.now())
	if err != nil {
		return nil, err
	}
	return &routing.Page{Title: t.BusinessName, Data: home}, nil
}

// menuEntry is a menu item with the visitor's favourite flag
type menuEntry struct {
	*models.MenuItem
	Favorite bool `json:"favorite"`
}

func (s *Server) menuPage(r *http.Request) (*routing.Page, error) {
	ctx := r.Context()
	t := tenant.Must(ctx)

	filter := storage.MenuFilter{AvailableOnly: true}
	if raw := r.URL.Query().Get("kategori"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, routing.WithStatus(http.StatusBadRequest, err)
		}
		filter.CategoryID = &id
	}

	categories, err := s.svc.Store.ListMenuCategories(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	items, err := s.svc.Store.ListMenuItems(ctx, t.ID, filter)
	if err != nil {
		return nil, err
	}
	favs, err := favorites.Must(ctx).List(ctx)
	if err != nil {
		return nil, err
	}
	liked := make(map[uuid.UUID]bool, len(favs))
	for _, id := range favs {
		liked[id] = true
	}

	entries := make([]menuEntry, len(items))
	for i, item := range items {
		entries[i] = menuEntry{MenuItem: item, Favorite: liked[item.ID]}
	}
	return &routing.Page{
		Title: "Menu",
		Data: map[string]interface{}{
			"categories": categories,
			"items":      entries,
		},
	}, nil
}

func (s *Server) menuItemPage(r *http.Request) (*routing.Page, error) {
	ctx := r.Context()
	t := tenant.Must(ctx)

	id, err := uuidParam(r, "itemID")
	if err != nil {
		return nil, err
	}
	item, err := s.svc.Store.GetMenuItem(ctx, t.ID, id)
	if err != nil {
		return nil, err
	}
	fav, err := favorites.Must(ctx).Has(ctx, id)
	if err != nil {
		return nil, err
	}
	return &routing.Page{Title: item.Name, Data: menuEntry{MenuItem: item, Favorite: fav}}, nil
}

func (s *Server) cartPage(r *http.Request) (*routing.Page, error) {
	ctx := r.Context()
	t := tenant.Must(ctx)

	view, err := cart.Must(ctx).View(ctx)
	if err != nil {
		return nil, err
	}
	data := map[string]interface{}{
		"cart":    view,
		"outlets": t.Outlets,
	}
	if outlet, ok := storefront.MustLocation(ctx).Selected(t); ok {
		data["outlet"] = outlet
	}
	if u := currentUser(r); u != nil {
		account, err := s.svc.Loyalty.Account(ctx, t.ID, u.ID)
		if err != nil {
			return nil, err
		}
		data["points"] = account.Balance
	}
	return &routing.Page{Title: "Keranjang", Data: data}, nil
}

func (s *Server) handleCartAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MenuItemID uuid.UUID `json:"menuItemId" validate:"required"`
		Quantity   int       `json:"quantity" validate:"required,min=1,max=99"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	t := tenant.Must(ctx)
	item, err := s.svc.Store.GetMenuItem(ctx, t.ID, req.MenuItemID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	view, err := cart.Must(ctx).Add(ctx, item, req.Quantity)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleCartUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "itemID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req struct {
		Quantity int `json:"quantity" validate:"min=0,max=99"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	view, err := cart.Must(r.Context()).SetQuantity(r.Context(), id, req.Quantity)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleCartRemove(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "itemID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	view, err := cart.Must(r.Context()).Remove(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleFavoriteToggle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	t := tenant.Must(ctx)

	id, err := uuidParam(r, "itemID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := s.svc.Store.GetMenuItem(ctx, t.ID, id); err != nil {
		s.fail(w, r, err)
		return
	}
	added, err := favorites.Must(ctx).Toggle(ctx, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"menuItemId": id, "favorite": added})
}

func (s *Server) faqPage(r *http.Request) (*routing.Page, error) {
	t := tenant.Must(r.Context())
	faqs, err := s.svc.Store.ListFAQs(r.Context(), t.ID, true)
	if err != nil {
		return nil, err
	}
	return &routing.Page{Title: "FAQ", Data: map[string]interface{}{"faqs": faqs}}, nil
}

func (s *Server) locationsPage(r *http.Request) (*routing.Page, error) {
	ctx := r.Context()
	t := tenant.Must(ctx)
	data := map[string]interface{}{
		"outlets": t.Outlets,
		"hours":   t.OperatingHours,
		"openNow": t.IsOpenAt(s.now()),
		"phone":   t.Phone,
		"email":   t.Email,
	}
	if outlet, ok := storefront.MustLocation(ctx).Selected(t); ok {
		data["selected"] = outlet.ID
	}
	return &routing.Page{Title: "Lokasi", Data: data}, nil
}

func (s *Server) handleSelectLocation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OutletID uuid.UUID `json:"outletId" validate:"required"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	t := tenant.Must(r.Context())
	outlet, err := storefront.MustLocation(r.Context()).Select(t, req.OutletID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, outlet)
}

func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string `json:"name" validate:"required,max=120"`
		Email   string `json:"email" validate:"required,email"`
		Subject string `json:"subject" validate:"required,max=200"`
		Body    string `json:"body" validate:"required,max=5000"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	t := tenant.Must(r.Context())
	msg := &models.InboxMessage{
		Name:    strings.TrimSpace(req.Name),
		Email:   strings.ToLower(req.Email),
		Subject: strings.TrimSpace(req.Subject),
		Body:    strings.TrimSpace(req.Body),
	}
	msg.TenantID = t.ID
	if err := s.svc.Store.CreateInboxMessage(r.Context(), msg); err != nil {
		s.fail(w, r, err)
		return
	}
	toast(r, "Pesan Anda sudah kami terima")
	s.respondJSON(w, http.StatusCreated, msg)
}

// customerParticipant identifies the storefront side of a chat
func customerParticipant(r *http.Request) chat.Participant {
	p := chat.Participant{Kind: models.SenderCustomer}
	if scope, ok := scopeFrom(r); ok {
		p.VisitorID = scope.VisitorID
	}
	if u := currentUser(r); u != nil {
		id := u.ID
		p.UserID = &id
	}
	return p
}

func (s *Server) handleChatOpen(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Subject string `json:"subject" validate:"max=200"`
		Body    string `json:"body" validate:"required"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	t := tenant.Must(r.Context())
	conv, msg, err := s.svc.Chat.Open(r.Context(), t, customerParticipant(r), req.Subject, req.Body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{"conversation": conv, "message": msg})
}

func (s *Server) handleChatSend(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "conversationID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req struct {
		Body string `json:"body" validate:"required"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	t := tenant.Must(r.Context())
	msg, err := s.svc.Chat.Send(r.Context(), t, id, customerParticipant(r), req.Body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleChatSocket(w http.ResponseWriter, r *http.Request) {
	s.svc.Hub.Serve(w, r, tenant.Must(r.Context()), customerParticipant(r))
}
