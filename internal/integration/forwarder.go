// Package integration forwards order events to restaurant kitchen displays
// over HTTP webhooks and MQTT.
package integration

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/restoku/restoku-server/internal/config"
	"github.com/restoku/restoku-server/internal/events"
	"github.com/restoku/restoku-server/internal/models"
)

const (
	forwarderQueue = "kitchen-forwarder"

	// DefaultTopicPattern is used when a tenant leaves the MQTT topic empty
	DefaultTopicPattern = "restoku/{tenant}/orders/{order_id}"
)

// TenantLookup resolves a tenant by slug
type TenantLookup interface {
	Resolve(ctx context.Context, slug string) (*models.Tenant, error)
}

// Ticket is the document sent to a kitchen display
type Ticket struct {
	Type         string            `json:"type"`
	Tenant       string            `json:"tenant"`
	BusinessName string            `json:"businessName"`
	Order        events.OrderEvent `json:"order"`
	SentAt       time.Time         `json:"sentAt"`
}

type mqttEntry struct {
	client mqtt.Client
	broker string
	user   string
}

// Forwarder relays order events to each tenant's configured integrations
type Forwarder struct {
	bus     events.Bus
	tenants TenantLookup
	cfg     config.IntegrationConfig

	httpClient *http.Client
	newClient  func(*mqtt.ClientOptions) mqtt.Client

	clientsMu   sync.Mutex
	mqttClients map[uuid.UUID]*mqttEntry

	sub events.Subscription
	wg  sync.WaitGroup
}

// NewForwarder creates the forwarder
func NewForwarder(bus events.Bus, tenants TenantLookup, cfg config.IntegrationConfig) *Forwarder {
	return &Forwarder{
		bus:     bus,
		tenants: tenants,
		cfg:     cfg,
		httpClient: &http.Client{
			Timeout: cfg.WebhookTimeout,
		},
		newClient:   mqtt.NewClient,
		mqttClients: make(map[uuid.UUID]*mqttEntry),
	}
}

// Name implements appstate.Provider
func (f *Forwarder) Name() string { return "kitchen forwarder" }

// Start subscribes to order events of every tenant
func (f *Forwarder) Start(ctx context.Context) error {
	sub, err := f.bus.QueueSubscribe("*", "order.*", forwarderQueue, f.handleOrder)
	if err != nil {
		return fmt.Errorf("subscribe to order events: %w", err)
	}
	f.sub = sub

	log.Info().Msg("Kitchen forwarder started")
	return nil
}

// Close stops consuming, waits for in-flight deliveries and disconnects MQTT
func (f *Forwarder) Close() error {
	if f.sub != nil {
		f.sub.Unsubscribe()
		f.sub = nil
	}
	f.wg.Wait()
	f.closeAllMQTTConnections()
	return nil
}

func (f *Forwarder) handleOrder(e events.Event) {
	var ev events.OrderEvent
	if err := e.Decode(&ev); err != nil {
		log.Error().Err(err).Str("subject", e.Subject).Msg("Failed to parse order event")
		return
	}

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), f.cfg.WebhookTimeout+f.cfg.PublishTimeout)
		defer cancel()

		t, err := f.tenants.Resolve(ctx, e.Tenant)
		if err != nil {
			log.Error().Err(err).Str("tenant", e.Tenant).Msg("Failed to resolve tenant for forwarding")
			return
		}
		if err := f.Forward(ctx, t, e.Topic, ev); err != nil {
			f.reportFailure(ctx, t, ev, err)
		}
	}()
}

// Forward delivers one order event to every enabled integration of t
func (f *Forwarder) Forward(ctx context.Context, t *models.Tenant, topic string, ev events.OrderEvent) error {
	ticket := Ticket{
		Type:         topic,
		Tenant:       t.Slug,
		BusinessName: t.BusinessName,
		Order:        ev,
		SentAt:       time.Now().UTC(),
	}
	data, err := json.Marshal(ticket)
	if err != nil {
		return fmt.Errorf("marshal ticket: %w", err)
	}

	var errs []error
	if hook := t.Integrations.Webhook; hook.Enabled && hook.Endpoint != "" {
		if err := f.forwardToHTTP(ctx, hook, data); err != nil {
			errs = append(errs, err)
		} else {
			log.Debug().
				Str("tenant", t.Slug).
				Str("order", ev.Number).
				Str("endpoint", hook.Endpoint).
				Msg("Order forwarded to webhook")
		}
	}
	if broker := t.Integrations.MQTT; broker.Enabled && broker.BrokerURL != "" {
		if err := f.forwardToMQTT(t, broker, ev, data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *Forwarder) forwardToHTTP(ctx context.Context, hook models.WebhookIntegration, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.Endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "restoku-kitchen-forwarder")
	for k, v := range hook.Headers {
		req.Header.Set(k, v)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook %s: %w", hook.Endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook %s: status %d", hook.Endpoint, resp.StatusCode)
	}
	return nil
}

func (f *Forwarder) forwardToMQTT(t *models.Tenant, broker models.MQTTIntegration, ev events.OrderEvent, data []byte) error {
	client, err := f.mqttClient(t, broker)
	if err != nil {
		return err
	}

	topic := ExpandTopic(broker.TopicPattern, t.Slug, ev)
	token := client.Publish(topic, broker.QoS, false, data)
	if !token.WaitTimeout(f.cfg.PublishTimeout) {
		return fmt.Errorf("mqtt publish to %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish to %s: %w", topic, err)
	}

	log.Debug().
		Str("tenant", t.Slug).
		Str("order", ev.Number).
		Str("topic", topic).
		Msg("Order forwarded to MQTT")
	return nil
}

// ExpandTopic fills the {tenant}, {order_id}, {order_number} and {status}
// placeholders of pattern
func ExpandTopic(pattern, slug string, ev events.OrderEvent) string {
	if pattern == "" {
		pattern = DefaultTopicPattern
	}
	return strings.NewReplacer(
		"{tenant}", slug,
		"{order_id}", ev.OrderID.String(),
		"{order_number}", ev.Number,
		"{status}", string(ev.Status),
	).Replace(pattern)
}

// mqttClient returns a connected client for the tenant, reconnecting when the
// broker settings changed
func (f *Forwarder) mqttClient(t *models.Tenant, broker models.MQTTIntegration) (mqtt.Client, error) {
	f.clientsMu.Lock()
	defer f.clientsMu.Unlock()

	if entry, ok := f.mqttClients[t.ID]; ok {
		if entry.broker == broker.BrokerURL && entry.user == broker.Username && entry.client.IsConnected() {
			return entry.client, nil
		}
		entry.client.Disconnect(250)
		delete(f.mqttClients, t.ID)
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker.BrokerURL)
	opts.SetClientID(fmt.Sprintf("%s-%s", f.cfg.MQTTClientID, t.Slug))
	if broker.Username != "" {
		opts.SetUsername(broker.Username)
		opts.SetPassword(broker.Password)
	}
	if broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetKeepAlive(30 * time.Second)

	slug := t.Slug
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Info().Str("tenant", slug).Msg("MQTT client connected")
	})
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Error().Err(err).Str("tenant", slug).Msg("MQTT connection lost")
	})

	client := f.newClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect %s: timeout", broker.BrokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker.BrokerURL, err)
	}

	f.mqttClients[t.ID] = &mqttEntry{client: client, broker: broker.BrokerURL, user: broker.Username}
	return client, nil
}

func (f *Forwarder) closeAllMQTTConnections() {
	f.clientsMu.Lock()
	defer f.clientsMu.Unlock()

	for tenantID, entry := range f.mqttClients {
		if entry.client.IsConnected() {
			entry.client.Disconnect(250)
		}
		delete(f.mqttClients, tenantID)

		log.Info().
			Str("tenant_id", tenantID.String()).
			Msg("MQTT client disconnected")
	}
}

func (f *Forwarder) reportFailure(ctx context.Context, t *models.Tenant, ev events.OrderEvent, cause error) {
	log.Error().
		Err(cause).
		Str("tenant", t.Slug).
		Str("order", ev.Number).
		Msg("Failed to forward order to kitchen display")

	err := f.bus.Publish(ctx, t.Slug, events.TopicActivity, events.ActivityEvent{
		TenantID:    t.ID,
		Type:        models.ActivityIntegrationFailed,
		Level:       models.ActivityLevelError,
		Description: fmt.Sprintf("Pesanan %s gagal diteruskan ke dapur", ev.Number),
		Details:     models.Variables{"error": cause.Error()},
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to publish integration failure")
	}
}
