package integration

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restoku/restoku-server/internal/config"
	"github.com/restoku/restoku-server/internal/events"
	"github.com/restoku/restoku-server/internal/models"
	"github.com/restoku/restoku-server/internal/storage"
)

type staticTenants map[string]*models.Tenant

func (s staticTenants) Resolve(ctx context.Context, slug string) (*models.Tenant, error) {
	if t, ok := s[slug]; ok {
		return t, nil
	}
	return nil, storage.ErrNotFound
}

type doneToken struct {
	mqtt.Token
	err error
}

func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }

type published struct {
	topic   string
	payload []byte
}

type fakeMQTT struct {
	mqtt.Client

	mu        sync.Mutex
	connected bool
	published []published
}

func (c *fakeMQTT) Connect() mqtt.Token {
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return doneToken{}
}

func (c *fakeMQTT) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeMQTT) Disconnect(uint) {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
}

func (c *fakeMQTT) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	c.published = append(c.published, published{topic: topic, payload: payload.([]byte)})
	c.mu.Unlock()
	return doneToken{}
}

func testConfig() config.IntegrationConfig {
	return config.IntegrationConfig{
		WebhookTimeout: 2 * time.Second,
		PublishTimeout: time.Second,
		MQTTClientID:   "restoku-kitchen",
	}
}

func testOrder() events.OrderEvent {
	return events.OrderEvent{
		OrderID: uuid.New(),
		Number:  "WS-0007",
		Status:  models.OrderConfirmed,
		Total:   decimal.NewFromInt(64000),
	}
}

func TestExpandTopic(t *testing.T) {
	ev := testOrder()
	assert.Equal(t, "restoku/warung-sari/orders/"+ev.OrderID.String(), ExpandTopic("", "warung-sari", ev))
	assert.Equal(t, "kds/warung-sari/WS-0007/confirmed", ExpandTopic("kds/{tenant}/{order_number}/{status}", "warung-sari", ev))
}

func TestForwarder_WebhookAndMQTT(t *testing.T) {
	var (
		mu   sync.Mutex
		body []byte
		auth string
	)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		body, _ = io.ReadAll(r.Body)
		auth = r.Header.Get("X-Kitchen-Key")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer hook.Close()

	tn := &models.Tenant{ID: uuid.New(), Slug: "warung-sari", BusinessName: "Warung Sari"}
	tn.Integrations.Webhook = models.WebhookIntegration{Enabled: true, Endpoint: hook.URL, Headers: map[string]string{"X-Kitchen-Key": "k1"}}
	tn.Integrations.MQTT = models.MQTTIntegration{Enabled: true, BrokerURL: "tcp://kds.local:1883", TopicPattern: "kds/{tenant}/{order_id}"}

	client := &fakeMQTT{}
	f := NewForwarder(events.NewLocalBus("restoku"), staticTenants{tn.Slug: tn}, testConfig())
	f.newClient = func(*mqtt.ClientOptions) mqtt.Client { return client }

	ev := testOrder()
	require.NoError(t, f.Forward(context.Background(), tn, events.TopicOrderCreated, ev))

	mu.Lock()
	var ticket Ticket
	require.NoError(t, json.Unmarshal(body, &ticket))
	assert.Equal(t, "k1", auth)
	mu.Unlock()
	assert.Equal(t, events.TopicOrderCreated, ticket.Type)
	assert.Equal(t, "WS-0007", ticket.Order.Number)

	require.Len(t, client.published, 1)
	assert.Equal(t, "kds/warung-sari/"+ev.OrderID.String(), client.published[0].topic)

	require.NoError(t, f.Forward(context.Background(), tn, events.TopicOrderStatus, ev))
	assert.Len(t, client.published, 2)

	require.NoError(t, f.Close())
	assert.False(t, client.IsConnected())
}

func TestForwarder_FailureIsReportedAsActivity(t *testing.T) {
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer hook.Close()

	tn := &models.Tenant{ID: uuid.New(), Slug: "warung-sari"}
	tn.Integrations.Webhook = models.WebhookIntegration{Enabled: true, Endpoint: hook.URL}

	bus := events.NewLocalBus("restoku")
	var (
		mu       sync.Mutex
		activity []events.ActivityEvent
	)
	_, err := bus.Subscribe("*", events.TopicActivity, func(e events.Event) {
		var a events.ActivityEvent
		require.NoError(t, e.Decode(&a))
		mu.Lock()
		activity = append(activity, a)
		mu.Unlock()
	})
	require.NoError(t, err)

	f := NewForwarder(bus, staticTenants{tn.Slug: tn}, testConfig())
	require.NoError(t, f.Start(context.Background()))

	require.NoError(t, bus.Publish(context.Background(), tn.Slug, events.TopicOrderCreated, testOrder()))
	require.NoError(t, f.Close())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, activity, 1)
	assert.Equal(t, models.ActivityIntegrationFailed, activity[0].Type)
	assert.Equal(t, tn.ID, activity[0].TenantID)
	assert.Contains(t, activity[0].Details["error"], "status 500")
}

func TestForwarder_DisabledIntegrationsDoNothing(t *testing.T) {
	tn := &models.Tenant{ID: uuid.New(), Slug: "warung-sari"}
	f := NewForwarder(events.NewLocalBus("restoku"), staticTenants{}, testConfig())
	f.newClient = func(*mqtt.ClientOptions) mqtt.Client {
		t.Fatal("no MQTT client expected")
		return nil
	}
	assert.NoError(t, f.Forward(context.Background(), tn, events.TopicOrderCreated, testOrder()))
}
