package routing

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/restoku/restoku-server/internal/models"
	"github.com/restoku/restoku-server/internal/storage"
	"github.com/restoku/restoku-server/internal/tenant"
)

// Page is what a page handler returns
type Page struct {
	Title  string
	Data   interface{}
	Status int
}

// PageFunc loads the data of one page
type PageFunc func(r *http.Request) (*Page, error)

// TenantInfo identifies the tenant a view was rendered for
type TenantInfo struct {
	ID           string `json:"id"`
	Slug         string `json:"slug"`
	BusinessName string `json:"businessName"`
	BasePath     string `json:"basePath"`
}

// Shell is a mounted layout
type Shell struct {
	Name       string           `json:"name"`
	Navigation []NavItem        `json:"navigation"`
	Branding   *models.Branding `json:"branding,omitempty"`
}

// PageView is the JSON document rendered for a page route
type PageView struct {
	Route     string                 `json:"route"`
	Path      string                 `json:"path"`
	Title     string                 `json:"title,omitempty"`
	Tenant    *TenantInfo            `json:"tenant,omitempty"`
	Layout    *Shell                 `json:"layout,omitempty"`
	Loading   bool                   `json:"loading,omitempty"`
	Retryable bool                   `json:"retryable,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Data      interface{}            `json:"data,omitempty"`
	Meta      map[string]interface{} `json:"meta,omitempty"`
}

// StatusError carries an HTTP status for a page failure
type StatusError struct {
	Status int
	Err    error
}

func (e *StatusError) Error() string { return e.Err.Error() }
func (e *StatusError) Unwrap() error { return e.Err }

// WithStatus wraps err with an explicit status
func WithStatus(status int, err error) error {
	return &StatusError{Status: status, Err: err}
}

func newView(r *http.Request, route string) *PageView {
	view := &PageView{Route: route, Path: r.URL.Path}
	if t, ok := tenant.FromContext(r.Context()); ok {
		view.Tenant = &TenantInfo{
			ID:           t.ID.String(),
			Slug:         t.Slug,
			BusinessName: t.BusinessName,
			BasePath:     tenant.BasePath(r.Context()),
		}
	}
	return view
}

func shellFor(r *http.Request, layout Layout) *Shell {
	base := tenant.BasePath(r.Context())
	shell := &Shell{Name: layout.Name, Navigation: make([]NavItem, len(layout.Navigation))}
	for i, item := range layout.Navigation {
		shell.Navigation[i] = NavItem{Label: item.Label, Path: base + item.Path}
	}
	if t, ok := tenant.FromContext(r.Context()); ok {
		branding := t.Branding
		shell.Branding = &branding
	}
	return shell
}

// statusOf maps a page error to the status of its fallback view
func statusOf(err error) (int, bool) {
	var se *StatusError
	switch {
	case errors.As(err, &se):
		return se.Status, se.Status >= 500
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, tenant.ErrNotFound):
		return http.StatusNotFound, false
	}
	return http.StatusServiceUnavailable, true
}

// WriteJSON writes v with the given status
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to encode response")
	}
}

// RenderError writes a fallback view for err without a layout shell
func RenderError(w http.ResponseWriter, r *http.Request, route string, err error) {
	status, retryable := statusOf(err)
	view := newView(r, route)
	view.Error = err.Error()
	if retryable {
		view.Loading = true
		view.Retryable = true
		w.Header().Set("Retry-After", "1")
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("route", route).Msg("Page unavailable")
	}
	WriteJSON(w, status, view)
}

// RenderLoading writes the suspended state of a guarded route
func RenderLoading(w http.ResponseWriter, r *http.Request, route string) {
	view := newView(r, route)
	view.Loading = true
	view.Retryable = true
	w.Header().Set("Retry-After", "1")
	WriteJSON(w, http.StatusServiceUnavailable, view)
}
