package appstate

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ScopeKey carries the visitor scope bound to the current request
var ScopeKey = NewKey[*Scope]("visitor scope")

// Scope holds the tenant-scoped state of one visitor
type Scope struct {
	VisitorID string
	TenantID  uuid.UUID

	mu       sync.Mutex
	values   map[string]interface{}
	lastSeen time.Time

	// dmu guards disposal; it may be taken while mu is held, never the reverse
	dmu       sync.Mutex
	disposers []func()
	disposed  bool
}

func newScope(visitorID string, tenantID uuid.UUID, now time.Time) *Scope {
	return &Scope{
		VisitorID: visitorID,
		TenantID:  tenantID,
		values:    make(map[string]interface{}),
		lastSeen:  now,
	}
}

// Disposed reports whether the scope has been torn down
func (s *Scope) Disposed() bool {
	s.dmu.Lock()
	defer s.dmu.Unlock()
	return s.disposed
}

// OnDispose registers fn to run when the scope is torn down
func (s *Scope) OnDispose(fn func()) {
	s.dmu.Lock()
	if !s.disposed {
		s.disposers = append(s.disposers, fn)
		s.dmu.Unlock()
		return
	}
	s.dmu.Unlock()
	fn()
}

func (s *Scope) dispose() {
	s.mu.Lock()
	s.dmu.Lock()
	if s.disposed {
		s.dmu.Unlock()
		s.mu.Unlock()
		return
	}
	s.disposed = true
	disposers := s.disposers
	s.disposers = nil
	s.values = make(map[string]interface{})
	s.dmu.Unlock()
	s.mu.Unlock()

	for i := len(disposers) - 1; i >= 0; i-- {
		disposers[i]()
	}
}

// ScopeValue returns the value stored under name, creating it on first use.
// create may call OnDispose.
func ScopeValue[T any](s *Scope, name string, create func() T) T {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.values[name].(T); ok {
		return v
	}
	v := create()
	s.values[name] = v
	return v
}

// Scopes tracks one scope per visitor
type Scopes struct {
	mu        sync.Mutex
	byVisitor map[string]*Scope
	idleTTL   time.Duration
	now       func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScopes creates the scope registry; idle scopes expire after idleTTL
func NewScopes(idleTTL time.Duration) *Scopes {
	return &Scopes{
		byVisitor: make(map[string]*Scope),
		idleTTL:   idleTTL,
		now:       time.Now,
	}
}

// Name implements Provider
func (s *Scopes) Name() string { return "scopes" }

// Start launches the idle janitor
func (s *Scopes) Start(ctx context.Context) error {
	if s.idleTTL <= 0 {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	interval := s.idleTTL / 4
	if interval < time.Second {
		interval = time.Second
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.Sweep(); n > 0 {
					log.Debug().Int("count", n).Msg("Disposed idle visitor scopes")
				}
			}
		}
	}()
	return nil
}

// Close stops the janitor and disposes every scope
func (s *Scopes) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	s.mu.Lock()
	all := s.byVisitor
	s.byVisitor = make(map[string]*Scope)
	s.mu.Unlock()

	for _, scope := range all {
		scope.dispose()
	}
	return nil
}

// Bind returns the visitor's scope for tenantID. A scope bound to another
// tenant is disposed before the new one is created.
func (s *Scopes) Bind(visitorID string, tenantID uuid.UUID) *Scope {
	now := s.now()

	s.mu.Lock()
	current, ok := s.byVisitor[visitorID]
	if ok && current.TenantID == tenantID {
		current.mu.Lock()
		current.lastSeen = now
		current.mu.Unlock()
		s.mu.Unlock()
		return current
	}
	scope := newScope(visitorID, tenantID, now)
	s.byVisitor[visitorID] = scope
	s.mu.Unlock()

	if ok {
		current.dispose()
	}
	return scope
}

// Get returns the visitor's current scope
func (s *Scopes) Get(visitorID string) (*Scope, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	scope, ok := s.byVisitor[visitorID]
	return scope, ok
}

// Drop disposes the visitor's scope
func (s *Scopes) Drop(visitorID string) {
	s.mu.Lock()
	scope, ok := s.byVisitor[visitorID]
	delete(s.byVisitor, visitorID)
	s.mu.Unlock()

	if ok {
		scope.dispose()
	}
}

// Len returns the number of live scopes
func (s *Scopes) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byVisitor)
}

// Sweep disposes scopes idle for longer than the TTL and returns how many
func (s *Scopes) Sweep() int {
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	var idle []*Scope
	for id, scope := range s.byVisitor {
		scope.mu.Lock()
		expired := scope.lastSeen.Before(cutoff)
		scope.mu.Unlock()
		if expired {
			idle = append(idle, scope)
			delete(s.byVisitor, id)
		}
	}
	s.mu.Unlock()

	for _, scope := range idle {
		scope.dispose()
	}
	return len(idle)
}
