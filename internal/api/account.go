package api

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/restoku/restoku-server/internal/appstate"
	"github.com/restoku/restoku-server/internal/models"
	"github.com/restoku/restoku-server/internal/routing"
	"github.com/restoku/restoku-server/internal/session"
	"github.com/restoku/restoku-server/internal/tenant"
)

func scopeFrom(r *http.Request) (*appstate.Scope, bool) {
	return appstate.ScopeKey.From(r.Context())
}

// landing is where a user goes after signing in without a return path
func landing(role models.Role) string {
	switch role {
	case models.RoleAdmin, models.RoleTenantAdmin, models.RolePlatformAdmin:
		return "/admin/dasbor"
	case models.RoleCS:
		return "/cs/dasbor"
	}
	return "/"
}

func (s *Server) loginPage(r *http.Request) (*routing.Page, error) {
	data := map[string]interface{}{
		"next": routing.SafeNext(r.URL.Query().Get("next")),
	}
	if u := currentUser(r); u != nil {
		data["user"] = u
	}
	return &routing.Page{Title: "Masuk", Data: data}, nil
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
		Next     string `json:"next"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	t := tenant.Must(ctx)
	tenantID := t.ID
	user, pair, err := s.svc.Auth.Login(ctx, &tenantID, req.Email, req.Password)
	if err != nil {
		zerolog.Ctx(ctx).Info().Err(err).Str("email", req.Email).Msg("Login rejected")
		s.fail(w, r, err)
		return
	}

	s.svc.Sessions.SetToken(w, pair)
	if user.Role.IsStaff() {
		s.recordActivity(r, models.ActivityLogin, user.Name+" masuk", models.Variables{"userId": user.ID.String(), "role": string(user.Role)})
	}
	toast(r, "Selamat datang, "+user.Name)

	next := landing(user.Role)
	if req.Next != "" {
		next = routing.SafeNext(req.Next)
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"user":     user,
		"token":    pair,
		"redirect": location(r, next),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if sess, ok := session.FromContext(ctx); ok && sess.IsAuthenticated {
		if err := s.svc.Auth.Logout(ctx, sess.Claims); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("Failed to revoke token on logout")
		}
	}
	s.svc.Sessions.ClearToken(w)
	if scope, ok := scopeFrom(r); ok {
		s.svc.Scopes.Drop(scope.VisitorID)
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"redirect": location(r, "/")})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name" validate:"required,max=120"`
		Email    string `json:"email" validate:"required,email"`
		Phone    string `json:"phone" validate:"omitempty,max=32"`
		Password string `json:"password" validate:"required,min=8"`
		Next     string `json:"next"`
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
		Role:     models.RoleCustomer,
	}
	pair, err := s.svc.Auth.Register(r.Context(), user, req.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.svc.Sessions.SetToken(w, pair)
	toast(r, "Akun berhasil dibuat")
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"user":     user,
		"token":    pair,
		"redirect": location(r, routing.SafeNext(req.Next)),
	})
}
