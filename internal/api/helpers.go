package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/restoku/restoku-server/internal/auth"
	"github.com/restoku/restoku-server/internal/cart"
	"github.com/restoku/restoku-server/internal/chat"
	"github.com/restoku/restoku-server/internal/events"
	"github.com/restoku/restoku-server/internal/loyalty"
	"github.com/restoku/restoku-server/internal/models"
	"github.com/restoku/restoku-server/internal/notify"
	"github.com/restoku/restoku-server/internal/routing"
	"github.com/restoku/restoku-server/internal/session"
	"github.com/restoku/restoku-server/internal/storage"
	"github.com/restoku/restoku-server/internal/storefront"
	"github.com/restoku/restoku-server/internal/tenant"
	"github.com/restoku/restoku-server/internal/validation"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxBodySize     = 1 << 20
)

// errorBody is the JSON shape of every failed action
type errorBody struct {
	Error  string                 `json:"error"`
	Fields []validation.FieldError `json:"fields,omitempty"`
}

// respondJSON responds with JSON
func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	routing.WriteJSON(w, status, payload)
}

// respondError responds with error
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, errorBody{Error: message})
}

// decode reads a JSON body into v and validates it. On failure the response
// has been written and false is returned.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	if err := dec.Decode(v); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := s.validator.Validate(v); err != nil {
		s.fail(w, r, err)
		return false
	}
	return true
}

// fail maps a domain error to its status
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		s.respondJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "validation failed", Fields: verr.Fields})
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, tenant.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, storage.ErrDuplicateKey),
		errors.Is(err, storage.ErrConflict),
		errors.Is(err, auth.ErrEmailTaken):
		s.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, storage.ErrInvalidData),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, chat.ErrMessageTooLong),
		errors.Is(err, loyalty.ErrInvalidPoints),
		isPromoError(err):
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, cart.ErrNotInCart), errors.Is(err, storefront.ErrUnknownOutlet):
		s.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, cart.ErrItemUnavailable),
		errors.Is(err, chat.ErrConversationClosed),
		errors.Is(err, chat.ErrAlreadyClaimed):
		s.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, chat.ErrForbidden):
		s.respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, auth.ErrEmailTokenInvalid):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		s.respondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrAccountDisabled):
		s.respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, auth.ErrRevocationUnavailable), errors.Is(err, tenant.ErrUnavailable):
		w.Header().Set("Retry-After", "1")
		s.respondError(w, http.StatusServiceUnavailable, "temporarily unavailable")
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Request failed")
		s.respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func isPromoError(err error) bool {
	for _, target := range []error{
		models.ErrPromoInactive,
		models.ErrPromoExpired,
		models.ErrPromoExhausted,
		models.ErrPromoMinimum,
		models.ErrPromoUnknownTyp,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// uuidParam parses a uuid route parameter
func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, routing.WithStatus(http.StatusNotFound, fmt.Errorf("invalid %s: %w", name, storage.ErrNotFound))
	}
	return id, nil
}

// pagination reads limit and offset query parameters
func pagination(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// currentUser returns the authenticated user of the request, nil for visitors
func currentUser(r *http.Request) *models.User {
	sess, ok := session.FromContext(r.Context())
	if !ok || !sess.IsAuthenticated {
		return nil
	}
	return sess.User
}

// mustUser returns the user of a guarded route
func mustUser(r *http.Request) *models.User {
	u := currentUser(r)
	if u == nil {
		panic("api: guarded route reached without a session")
	}
	return u
}

// publish emits a tenant event; delivery failures are logged, never returned
func (s *Server) publish(r *http.Request, topic string, payload interface{}) {
	t := tenant.Must(r.Context())
	if err := s.svc.Bus.Publish(r.Context(), t.Slug, topic, payload); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("topic", topic).Msg("Failed to publish event")
	}
}

// recordActivity publishes an activity log entry for the current actor
func (s *Server) recordActivity(r *http.Request, typ models.ActivityType, description string, details models.Variables) {
	t := tenant.Must(r.Context())
	ev := events.ActivityEvent{
		TenantID:    t.ID,
		Type:        typ,
		Level:       models.ActivityLevelInfo,
		Description: description,
		Details:     details,
	}
	if u := currentUser(r); u != nil {
		id := u.ID
		ev.ActorID = &id
	}
	s.publish(r, events.TopicActivity, ev)
}

// toast queues a flash message for the visitor's next page
func toast(r *http.Request, message string) {
	if toasts, ok := notify.FromContext(r.Context()); ok {
		toasts.Success(message)
	}
}

// location returns a tenant-relative path as an absolute one
func location(r *http.Request, path string) string {
	return tenant.BasePath(r.Context()) + path
}
