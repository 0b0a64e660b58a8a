package notify

import (
	"context"
	"net/http"
	"sync"

	"github.com/restoku/restoku-server/internal/appstate"
	"github.com/restoku/restoku-server/internal/routing"
)

// Toast kinds
const (
	KindSuccess = "success"
	KindError   = "error"
	KindInfo    = "info"
)

const maxToasts = 10

// Toast is a one-shot message
type Toast struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Toasts queues messages for the next page view of a visitor
type Toasts struct {
	mu    sync.Mutex
	queue []Toast
}

// Push queues a message. The oldest message is dropped when the queue is full.
func (t *Toasts) Push(kind, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.queue) >= maxToasts {
		t.queue = t.queue[1:]
	}
	t.queue = append(t.queue, Toast{Kind: kind, Message: message})
}

// Success queues a success message
func (t *Toasts) Success(message string) { t.Push(KindSuccess, message) }

// Error queues an error message
func (t *Toasts) Error(message string) { t.Push(KindError, message) }

// Drain returns and clears the queue
func (t *Toasts) Drain() []Toast {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.queue
	t.queue = nil
	return out
}

var key = appstate.NewKey[*Toasts]("toast")

// FromContext returns the toast queue of the request's visitor
func FromContext(ctx context.Context) (*Toasts, bool) {
	return key.From(ctx)
}

// Must returns the toast queue or panics outside the toast provider
func Must(ctx context.Context) *Toasts {
	return key.Must(ctx)
}

// ToastProvider attaches toast queues to visitor scopes
type ToastProvider struct{}

// NewToastProvider creates the toast provider
func NewToastProvider() *ToastProvider { return &ToastProvider{} }

// Name implements appstate.Provider
func (p *ToastProvider) Name() string { return "toast" }

// Start implements appstate.Provider
func (p *ToastProvider) Start(ctx context.Context) error { return nil }

// Close implements appstate.Provider
func (p *ToastProvider) Close() error { return nil }

// For returns the toast queue of scope
func (p *ToastProvider) For(scope *appstate.Scope) *Toasts {
	return appstate.ScopeValue(scope, "toast", func() *Toasts { return &Toasts{} })
}

// Middleware places the visitor's toast queue into the context
func (p *ToastProvider) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope, ok := appstate.ScopeKey.From(r.Context())
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(key.With(r.Context(), p.For(scope))))
	})
}

// Decorate moves pending toasts into a page view
func (p *ToastProvider) Decorate(r *http.Request, view *routing.PageView) {
	toasts, ok := FromContext(r.Context())
	if !ok {
		return
	}
	if pending := toasts.Drain(); len(pending) > 0 {
		if view.Meta == nil {
			view.Meta = make(map[string]interface{})
		}
		view.Meta["toasts"] = pending
	}
}
