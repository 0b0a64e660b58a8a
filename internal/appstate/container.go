// Package appstate composes the application's providers once at startup and
// exposes their state to request handlers through typed context accessors.
package appstate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// Provider owns one slice of application state
type Provider interface {
	Name() string
	Start(ctx context.Context) error
	Close() error
}

type entry struct {
	provider Provider
	deps     []string
}

// Container starts providers in registration order and closes them in reverse
type Container struct {
	mu      sync.Mutex
	entries []entry
	started int
	byName  map[string]Provider
}

// NewContainer creates an empty container
func NewContainer() *Container {
	return &Container{byName: make(map[string]Provider)}
}

// Register appends a provider. deps name providers that must be registered before it.
func (c *Container) Register(p Provider, deps ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entry{provider: p, deps: deps})
}

// Order returns provider names in start order
func (c *Container) Order() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, len(c.entries))
	for i, e := range c.entries {
		names[i] = e.provider.Name()
	}
	return names
}

// Lookup returns a registered provider by name
func (c *Container) Lookup(name string) (Provider, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.byName[name]
	return p, ok
}

// Start checks the dependency order and starts every provider.
// On failure the providers already started are closed again.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[string]bool, len(c.entries))
	for _, e := range c.entries {
		name := e.provider.Name()
		if seen[name] {
			return fmt.Errorf("provider %s registered twice", name)
		}
		for _, dep := range e.deps {
			if !seen[dep] {
				return fmt.Errorf("provider %s depends on %s, which is not registered before it", name, dep)
			}
		}
		seen[name] = true
	}

	for i, e := range c.entries {
		name := e.provider.Name()
		if err := e.provider.Start(ctx); err != nil {
			c.started = i
			closeErr := c.closeLocked()
			return errors.Join(fmt.Errorf("start %s: %w", name, err), closeErr)
		}
		c.byName[name] = e.provider
		log.Debug().Str("provider", name).Msg("Provider started")
	}
	c.started = len(c.entries)

	return nil
}

// Close closes started providers in reverse order, collecting errors
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Container) closeLocked() error {
	var errs []error
	for i := c.started - 1; i >= 0; i-- {
		p := c.entries[i].provider
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", p.Name(), err))
		}
		delete(c.byName, p.Name())
	}
	c.started = 0
	return errors.Join(errs...)
}
