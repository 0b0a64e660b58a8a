package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/restoku/restoku-server/internal/config"
)

// Connect dials NATS with the configured credentials and reconnect policy
func Connect(cfg config.NATSConfig, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name(name),
		nats.UserInfo(cfg.Username, cfg.Password),
		nats.ReconnectWait(cfg.ReconnectInterval),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn().Err(err).Msg("Disconnected from NATS")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Msg("Reconnected to NATS")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			log.Error().Err(err).Str("subject", subject).Msg("NATS error")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return nc, nil
}

// NATSBus is a Bus on a NATS connection
type NATSBus struct {
	nc     *nats.Conn
	prefix string
	owned  bool

	mu   sync.Mutex
	subs []*nats.Subscription
}

// NewNATSBus wraps nc. When owned, Close also closes the connection.
func NewNATSBus(nc *nats.Conn, prefix string, owned bool) *NATSBus {
	return &NATSBus{nc: nc, prefix: prefix, owned: owned}
}

// Name implements appstate.Provider
func (b *NATSBus) Name() string { return "events" }

// Start implements appstate.Provider
func (b *NATSBus) Start(ctx context.Context) error {
	if !b.nc.IsConnected() && !b.nc.IsReconnecting() {
		return fmt.Errorf("nats connection is %s", b.nc.Status())
	}
	return nil
}

// Publish implements Bus
func (b *NATSBus) Publish(ctx context.Context, tenant, topic string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}
	subject := Subject(b.prefix, tenant, topic)
	if err := b.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe implements Bus
func (b *NATSBus) Subscribe(tenant, topic string, h Handler) (Subscription, error) {
	return b.subscribe(tenant, topic, "", h)
}

// QueueSubscribe implements Bus
func (b *NATSBus) QueueSubscribe(tenant, topic, queue string, h Handler) (Subscription, error) {
	return b.subscribe(tenant, topic, queue, h)
}

func (b *NATSBus) subscribe(tenant, topic, queue string, h Handler) (Subscription, error) {
	pattern := Subject(b.prefix, tenant, topic)
	cb := func(msg *nats.Msg) {
		t, tp, ok := parseSubject(b.prefix, msg.Subject)
		if !ok {
			log.Warn().Str("subject", msg.Subject).Msg("Ignoring event with malformed subject")
			return
		}
		h(Event{Subject: msg.Subject, Tenant: t, Topic: tp, Data: msg.Data})
	}

	var (
		sub *nats.Subscription
		err error
	)
	if queue == "" {
		sub, err = b.nc.Subscribe(pattern, cb)
	} else {
		sub, err = b.nc.QueueSubscribe(pattern, queue, cb)
	}
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", pattern, err)
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()
	return sub, nil
}

// Close drains subscriptions and, when owned, the connection
func (b *NATSBus) Close() error {
	b.mu.Lock()
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil && err != nats.ErrConnectionClosed && err != nats.ErrBadSubscription {
			log.Warn().Err(err).Str("subject", sub.Subject).Msg("Failed to unsubscribe")
		}
	}
	if b.owned {
		return b.nc.Drain()
	}
	return nil
}
