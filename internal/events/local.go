package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// LocalBus delivers events inside the process. It stands in for NATS when no
// server is configured; delivery is synchronous.
type LocalBus struct {
	prefix string

	mu     sync.RWMutex
	nextID int
	subs   map[int]localSub
}

type localSub struct {
	pattern string
	handler Handler
}

type localSubscription struct {
	bus *LocalBus
	id  int
}

func (s localSubscription) Unsubscribe() error {
	s.bus.mu.Lock()
	delete(s.bus.subs, s.id)
	s.bus.mu.Unlock()
	return nil
}

// NewLocalBus creates an in-process bus
func NewLocalBus(prefix string) *LocalBus {
	return &LocalBus{prefix: prefix, subs: make(map[int]localSub)}
}

// Name implements appstate.Provider
func (b *LocalBus) Name() string { return "events" }

// Start implements appstate.Provider
func (b *LocalBus) Start(ctx context.Context) error { return nil }

// Close removes every subscription
func (b *LocalBus) Close() error {
	b.mu.Lock()
	b.subs = make(map[int]localSub)
	b.mu.Unlock()
	return nil
}

// Publish implements Bus
func (b *LocalBus) Publish(ctx context.Context, tenant, topic string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}
	subject := Subject(b.prefix, tenant, topic)
	event := Event{Subject: subject, Tenant: tenant, Topic: topic, Data: data}

	b.mu.RLock()
	var handlers []Handler
	for _, sub := range b.subs {
		if matchSubject(sub.pattern, subject) {
			handlers = append(handlers, sub.handler)
		}
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
	return nil
}

// Subscribe implements Bus
func (b *LocalBus) Subscribe(tenant, topic string, h Handler) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.subs[b.nextID] = localSub{pattern: Subject(b.prefix, tenant, topic), handler: h}
	return localSubscription{bus: b, id: b.nextID}, nil
}

// QueueSubscribe implements Bus. A single process is the only queue member.
func (b *LocalBus) QueueSubscribe(tenant, topic, queue string, h Handler) (Subscription, error) {
	return b.Subscribe(tenant, topic, h)
}

var (
	_ Bus = (*LocalBus)(nil)
	_ Bus = (*NATSBus)(nil)
)
