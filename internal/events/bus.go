// Package events publishes and consumes tenant events on NATS subjects of the
// form <prefix>.<tenant>.<topic>.
package events

import (
	"context"
	"encoding/json"
	"strings"
)

// Topics
const (
	TopicOrderCreated       = "order.created"
	TopicOrderStatus        = "order.status"
	TopicReservationCreated = "reservation.created"
	TopicTenantUpdated      = "tenant.updated"
	TopicActivity           = "activity"
	TopicMailOutbound       = "mail.outbound"
)

// NotificationTopic returns the topic carrying notifications for one user
func NotificationTopic(userID string) string { return "notification." + userID }

// ChatTopic returns the topic carrying messages of one conversation
func ChatTopic(conversationID string) string { return "chat." + conversationID }

// Event is a received message
type Event struct {
	Subject string
	Tenant  string
	Topic   string
	Data    []byte
}

// Decode unmarshals the JSON payload
func (e Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Handler consumes events
type Handler func(Event)

// Subscription is an active subscription
type Subscription interface {
	Unsubscribe() error
}

// Bus publishes and subscribes to tenant events
type Bus interface {
	Publish(ctx context.Context, tenant, topic string, payload interface{}) error
	// Subscribe accepts NATS wildcards in tenant and topic ("*" and ">")
	Subscribe(tenant, topic string, h Handler) (Subscription, error)
	// QueueSubscribe delivers each event to one member of the queue group
	QueueSubscribe(tenant, topic, queue string, h Handler) (Subscription, error)
	Name() string
	Start(ctx context.Context) error
	Close() error
}

// Subject builds the subject for a tenant topic
func Subject(prefix, tenant, topic string) string {
	return prefix + "." + tenant + "." + topic
}

// parseSubject splits a subject into tenant and topic
func parseSubject(prefix, subject string) (tenant, topic string, ok bool) {
	rest, found := strings.CutPrefix(subject, prefix+".")
	if !found {
		return "", "", false
	}
	tenant, topic, found = strings.Cut(rest, ".")
	if !found || tenant == "" || topic == "" {
		return "", "", false
	}
	return tenant, topic, true
}

// matchSubject reports whether subject matches a NATS-style pattern
func matchSubject(pattern, subject string) bool {
	pt := strings.Split(pattern, ".")
	st := strings.Split(subject, ".")
	for i, p := range pt {
		if p == ">" {
			return len(st) > i
		}
		if i >= len(st) {
			return false
		}
		if p != "*" && p != st[i] {
			return false
		}
	}
	return len(pt) == len(st)
}
