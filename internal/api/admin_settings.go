package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/restoku/restoku-server/internal/events"
	"github.com/restoku/restoku-server/internal/models"
	"github.com/restoku/restoku-server/internal/routing"
	"github.com/restoku/restoku-server/internal/storage"
	"github.com/restoku/restoku-server/internal/tenant"
	"github.com/restoku/restoku-server/pkg/crypto"
)

// staffRoles are the roles a tenant admin may hand out
var staffRoles = []models.Role{
	models.RoleAdmin,
	models.RoleTenantAdmin,
	models.RoleTenantStaff,
	models.RoleCSAgent,
	models.RoleCS,
}

// ========== Staff ==========

func (s *Server) adminStaffPage(r *http.Request) (*routing.Page, error) {
	t := tenant.Must(r.Context())
	limit, offset := pagination(r)
	users, total, err := s.svc.Store.ListUsers(r.Context(), t.ID, staffRoles, limit, offset)
	if err != nil {
		return nil, err
	}
	return &routing.Page{Title: "Staf", Data: map[string]interface{}{
		"staff": users,
		"total": total,
		"roles": staffRoles,
	}}, nil
}

func (s *Server) handleStaffCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string      `json:"name" validate:"required,max=120"`
		Email    string      `json:"email" validate:"required,email"`
		Phone    string      `json:"phone" validate:"omitempty,max=32"`
		Role     models.Role `json:"role" validate:"required,oneof=admin tenant_admin tenant_staff cs_agent cs"`
		Password string      `json:"password" validate:"required,min=8"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	t := tenant.Must(r.Context())
	tenantID := t.ID
	user := &models.User{
		TenantID: &tenantID,
		Name:     strings.TrimSpace(req.Name),
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:    req.Phone,
		Role:     req.Role,
	}
	if _, err := s.svc.Auth.Register(r.Context(), user, req.Password); err != nil {
		s.fail(w, r, err)
		return
	}
	s.recordActivity(r, models.ActivityStaffChanged, fmt.Sprintf("Staf %s (%s) ditambahkan", user.Name, user.Role), models.Variables{
		"userId": user.ID.String(),
	})
	s.respondJSON(w, http.StatusCreated, user)
}

// staffMember loads a staff account of the current tenant
func (s *Server) staffMember(r *http.Request) (*models.User, error) {
	id, err := uuidParam(r, "userID")
	if err != nil {
		return nil, err
	}
	user, err := s.svc.Store.GetUser(r.Context(), id)
	if err != nil {
		return nil, err
	}
	t := tenant.Must(r.Context())
	if user.TenantID == nil || *user.TenantID != t.ID || !user.Role.IsStaff() {
		return nil, storage.ErrNotFound
	}
	return user, nil
}

func (s *Server) handleStaffUpdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string      `json:"name" validate:"required,max=120"`
		Phone    string      `json:"phone" validate:"omitempty,max=32"`
		Role     models.Role `json:"role" validate:"required,oneof=admin tenant_admin tenant_staff cs_agent cs"`
		IsActive bool        `json:"isActive"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	user, err := s.staffMember(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	self := user.ID == mustUser(r).ID
	if self && (req.Role != user.Role || !req.IsActive) {
		s.respondError(w, http.StatusConflict, "cannot change your own role or deactivate yourself")
		return
	}

	revoke := req.Role != user.Role || (user.IsActive && !req.IsActive)
	user.Name = strings.TrimSpace(req.Name)
	user.Phone = req.Phone
	user.Role = req.Role
	user.IsActive = req.IsActive
	if err := s.svc.Store.UpdateUser(ctx, user); err != nil {
		s.fail(w, r, err)
		return
	}
	if revoke {
		// sessions carry the role in their claims
		if err := s.svc.Auth.SignOut(ctx, user.ID); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("user_id", user.ID.String()).Msg("Failed to sign out staff member")
		}
	}

	s.recordActivity(r, models.ActivityStaffChanged, fmt.Sprintf("Staf %s diubah", user.Name), models.Variables{
		"userId":   user.ID.String(),
		"role":     string(user.Role),
		"isActive": user.IsActive,
	})
	s.respondJSON(w, http.StatusOK, user)
}

func (s *Server) handleStaffDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := s.staffMember(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if user.ID == mustUser(r).ID {
		s.respondError(w, http.StatusConflict, "cannot delete your own account")
		return
	}
	t := tenant.Must(ctx)
	if err := s.svc.Store.DeleteUser(ctx, t.ID, user.ID); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.svc.Auth.SignOut(ctx, user.ID); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("user_id", user.ID.String()).Msg("Failed to sign out deleted staff member")
	}
	s.recordActivity(r, models.ActivityStaffChanged, fmt.Sprintf("Staf %s dihapus", user.Name), models.Variables{
		"userId": user.ID.String(),
	})
	w.WriteHeader(http.StatusNoContent)
}

// ========== Settings ==========

// tenantChanged stores an edited copy of the tenant and drops every cached
// view of it. The resolver's pointer is shared and is never edited in place.
func (s *Server) tenantChanged(r *http.Request, updated *models.Tenant, section string) error {
	ctx := r.Context()
	if err := s.svc.Store.UpdateTenant(ctx, updated); err != nil {
		return err
	}
	s.svc.Tenants.Invalidate(updated.Slug)
	s.svc.Homepages.Invalidate(updated.ID)

	s.publish(r, events.TopicTenantUpdated, events.TenantUpdated{Slug: updated.Slug, UpdatedAt: s.now()})
	s.recordActivity(r, models.ActivitySettingsChanged, "Pengaturan "+section+" diubah", models.Variables{
		"section": section,
	})
	return nil
}

func (s *Server) restaurantSettingsPage(r *http.Request) (*routing.Page, error) {
	t := tenant.Must(r.Context())
	return &routing.Page{Title: "Pengaturan restoran", Data: map[string]interface{}{
		"businessName":   t.BusinessName,
		"description":    t.Description,
		"phone":          t.Phone,
		"email":          t.Email,
		"timezone":       t.Timezone,
		"operatingHours": t.OperatingHours,
		"outlets":        t.Outlets,
	}}, nil
}

type outletRequest struct {
	ID        *uuid.UUID `json:"id"`
	Name      string     `json:"name" validate:"required,max=120"`
	Address   string     `json:"address" validate:"required,max=300"`
	Latitude  float64    `json:"latitude" validate:"latitude"`
	Longitude float64    `json:"longitude" validate:"longitude"`
	Phone     string     `json:"phone" validate:"omitempty,max=32"`
}

type dayHoursRequest struct {
	Open   string `json:"open" validate:"required_without=Closed,omitempty,clock"`
	Close  string `json:"close" validate:"required_without=Closed,omitempty,clock"`
	Closed bool   `json:"closed"`
}

func (s *Server) handleRestaurantSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BusinessName   string             `json:"businessName" validate:"required,max=120"`
		Description    string             `json:"description" validate:"max=2000"`
		Phone          string             `json:"phone" validate:"omitempty,max=32"`
		Email          string             `json:"email" validate:"omitempty,email"`
		Timezone       string             `json:"timezone" validate:"required,timezone"`
		OperatingHours [7]dayHoursRequest `json:"operatingHours" validate:"dive"`
		Outlets        []outletRequest    `json:"outlets" validate:"max=50,dive"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	updated := *tenant.Must(r.Context())
	updated.BusinessName = strings.TrimSpace(req.BusinessName)
	updated.Description = strings.TrimSpace(req.Description)
	updated.Phone = req.Phone
	updated.Email = strings.ToLower(req.Email)
	updated.Timezone = req.Timezone
	for day, h := range req.OperatingHours {
		updated.OperatingHours[day] = models.DayHours{Open: h.Open, Close: h.Close, Closed: h.Closed}
	}
	outlets := make(models.Outlets, 0, len(req.Outlets))
	for _, o := range req.Outlets {
		id := uuid.New()
		if o.ID != nil {
			id = *o.ID
		}
		outlets = append(outlets, models.Outlet{
			ID:        id,
			Name:      strings.TrimSpace(o.Name),
			Address:   strings.TrimSpace(o.Address),
			Latitude:  o.Latitude,
			Longitude: o.Longitude,
			Phone:     o.Phone,
		})
	}
	updated.Outlets = outlets

	if err := s.tenantChanged(r, &updated, "restoran"); err != nil {
		s.fail(w, r, err)
		return
	}
	toast(r, "Pengaturan restoran disimpan")
	s.respondJSON(w, http.StatusOK, &updated)
}

func (s *Server) themeSettingsPage(r *http.Request) (*routing.Page, error) {
	t := tenant.Must(r.Context())
	return &routing.Page{Title: "Tema", Data: t.Branding}, nil
}

func (s *Server) handleThemeSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PrimaryColor   string `json:"primaryColor" validate:"hexcolor_or_empty"`
		SecondaryColor string `json:"secondaryColor" validate:"hexcolor_or_empty"`
		LogoURL        string `json:"logoUrl" validate:"omitempty,url"`
		BannerURL      string `json:"bannerUrl" validate:"omitempty,url"`
		DarkMode       bool   `json:"darkMode"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	updated := *tenant.Must(r.Context())
	updated.Branding = models.Branding{
		PrimaryColor:   req.PrimaryColor,
		SecondaryColor: req.SecondaryColor,
		LogoURL:        req.LogoURL,
		BannerURL:      req.BannerURL,
		DarkMode:       req.DarkMode,
	}
	if err := s.tenantChanged(r, &updated, "tema"); err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, updated.Branding)
}

// emailSettingsView is what admins see of the mail settings
type emailSettingsView struct {
	*models.EmailSettings
	PasswordSet bool `json:"passwordSet"`
}

func (s *Server) emailSettingsPage(r *http.Request) (*routing.Page, error) {
	t := tenant.Must(r.Context())
	settings, err := s.svc.Store.GetEmailSettings(r.Context(), t.ID)
	if errors.Is(err, storage.ErrNotFound) {
		settings = &models.EmailSettings{TenantID: t.ID, SMTPPort: 587, SenderName: t.BusinessName}
	} else if err != nil {
		return nil, err
	}
	return &routing.Page{Title: "Email", Data: emailSettingsView{
		EmailSettings: settings,
		PasswordSet:   len(settings.SMTPPassword) > 0,
	}}, nil
}

func (s *Server) handleEmailSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SenderName         string `json:"senderName" validate:"required,max=120"`
		SenderEmail        string `json:"senderEmail" validate:"required,email"`
		SMTPHost           string `json:"smtpHost" validate:"required,hostname|ip"`
		SMTPPort           int    `json:"smtpPort" validate:"required,min=1,max=65535"`
		SMTPUsername       string `json:"smtpUsername" validate:"max=200"`
		SMTPPassword       string `json:"smtpPassword" validate:"max=200"`
		NotifyOrders       bool   `json:"notifyOrders"`
		NotifyReservations bool   `json:"notifyReservations"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	t := tenant.Must(ctx)
	settings, err := s.svc.Store.GetEmailSettings(ctx, t.ID)
	if errors.Is(err, storage.ErrNotFound) {
		settings = &models.EmailSettings{TenantID: t.ID}
	} else if err != nil {
		s.fail(w, r, err)
		return
	}

	settings.SenderName = strings.TrimSpace(req.SenderName)
	settings.SenderEmail = strings.ToLower(req.SenderEmail)
	settings.SMTPHost = req.SMTPHost
	settings.SMTPPort = req.SMTPPort
	settings.SMTPUsername = req.SMTPUsername
	settings.NotifyOrders = req.NotifyOrders
	settings.NotifyBooks = req.NotifyReservations
	// an empty password keeps the stored one
	if req.SMTPPassword != "" {
		if s.config.Secrets.Key == "" {
			s.respondError(w, http.StatusUnprocessableEntity, "secret storage is not configured on this server")
			return
		}
		sealed, err := crypto.Seal([]byte(s.config.Secrets.Key), req.SMTPPassword)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		settings.SMTPPassword = sealed
	}
	settings.UpdatedAt = s.now()

	if err := s.svc.Store.SaveEmailSettings(ctx, settings); err != nil {
		s.fail(w, r, err)
		return
	}
	s.recordActivity(r, models.ActivitySettingsChanged, "Pengaturan email diubah", models.Variables{"section": "email"})
	s.respondJSON(w, http.StatusOK, emailSettingsView{EmailSettings: settings, PasswordSet: len(settings.SMTPPassword) > 0})
}

const maskedSecret = "********"

// maskIntegrations hides credentials before they leave the server
func maskIntegrations(in models.Integrations) models.Integrations {
	out := in
	if out.MQTT.Password != "" {
		out.MQTT.Password = maskedSecret
	}
	return out
}

func (s *Server) integrationSettingsPage(r *http.Request) (*routing.Page, error) {
	t := tenant.Must(r.Context())
	return &routing.Page{Title: "Integrasi", Data: maskIntegrations(t.Integrations)}, nil
}

func (s *Server) handleIntegrationSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Webhook struct {
			Enabled  bool              `json:"enabled"`
			Endpoint string            `json:"endpoint" validate:"required_if=Enabled true,omitempty,url"`
			Headers  map[string]string `json:"headers" validate:"max=20"`
		} `json:"webhook"`
		MQTT struct {
			Enabled      bool   `json:"enabled"`
			BrokerURL    string `json:"brokerUrl" validate:"required_if=Enabled true,omitempty,url"`
			Username     string `json:"username" validate:"max=200"`
			Password     string `json:"password" validate:"max=200"`
			TopicPattern string `json:"topicPattern" validate:"max=200"`
			QoS          byte   `json:"qos" validate:"max=2"`
			TLS          bool   `json:"tls"`
		} `json:"mqtt"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	current := tenant.Must(r.Context())
	updated := *current
	updated.Integrations = models.Integrations{
		Webhook: models.WebhookIntegration{
			Enabled:  req.Webhook.Enabled,
			Endpoint: req.Webhook.Endpoint,
			Headers:  req.Webhook.Headers,
		},
		MQTT: models.MQTTIntegration{
			Enabled:      req.MQTT.Enabled,
			BrokerURL:    req.MQTT.BrokerURL,
			Username:     req.MQTT.Username,
			Password:     req.MQTT.Password,
			TopicPattern: req.MQTT.TopicPattern,
			QoS:          req.MQTT.QoS,
			TLS:          req.MQTT.TLS,
		},
	}
	// the masked value echoes back from the form untouched
	if req.MQTT.Password == maskedSecret || req.MQTT.Password == "" {
		updated.Integrations.MQTT.Password = current.Integrations.MQTT.Password
	}

	if err := s.tenantChanged(r, &updated, "integrasi"); err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, maskIntegrations(updated.Integrations))
}

// ========== Activity log ==========

func (s *Server) activityLogPage(r *http.Request) (*routing.Page, error) {
	t := tenant.Must(r.Context())
	limit, offset := pagination(r)

	var filter models.ActivityFilter
	if raw := r.URL.Query().Get("type"); raw != "" {
		typ := models.ActivityType(strings.ToUpper(raw))
		filter.Type = &typ
	}
	logs, total, err := s.svc.Store.ListActivityLogs(r.Context(), t.ID, filter, limit, offset)
	if err != nil {
		return nil, err
	}
	return &routing.Page{Title: "Log aktivitas", Data: map[string]interface{}{
		"logs":   logs,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	}}, nil
}
