package models

import (
	"time"

	"github.com/google/uuid"
)

// FAQ is a frequently asked question shown on the storefront
type FAQ struct {
	TenantModel
	Question  string `json:"question" db:"question"`
	Answer    string `json:"answer" db:"answer"`
	SortOrder int    `json:"sortOrder" db:"sort_order"`
	Published bool   `json:"published" db:"published"`
}

// ConversationStatus is the state of a live chat conversation
type ConversationStatus string

const (
	ConversationWaiting ConversationStatus = "waiting"
	ConversationActive  ConversationStatus = "active"
	ConversationClosed  ConversationStatus = "closed"
)

// Conversation is a live chat between a visitor and a CS agent
type Conversation struct {
	TenantModel
	CustomerID *uuid.UUID         `json:"customerId,omitempty" db:"customer_id"`
	VisitorID  string             `json:"visitorId" db:"visitor_id"`
	AgentID    *uuid.UUID         `json:"agentId,omitempty" db:"agent_id"`
	Subject    string             `json:"subject" db:"subject"`
	Status     ConversationStatus `json:"status" db:"status"`
	ClosedAt   *time.Time         `json:"closedAt,omitempty" db:"closed_at"`
}

// SenderKind identifies the author side of a chat message
type SenderKind string

const (
	SenderCustomer SenderKind = "customer"
	SenderAgent    SenderKind = "agent"
	SenderSystem   SenderKind = "system"
)

// ChatMessage is a single message of a conversation
type ChatMessage struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	CreatedAt      time.Time  `json:"createdAt" db:"created_at"`
	TenantID       uuid.UUID  `json:"tenantId" db:"tenant_id"`
	ConversationID uuid.UUID  `json:"conversationId" db:"conversation_id"`
	SenderKind     SenderKind `json:"senderKind" db:"sender_kind"`
	SenderID       *uuid.UUID `json:"senderId,omitempty" db:"sender_id"`
	Body           string     `json:"body" db:"body"`
}

// InboxMessage is a contact form submission handled by CS
type InboxMessage struct {
	TenantModel
	Name    string     `json:"name" db:"name"`
	Email   string     `json:"email" db:"email"`
	Subject string     `json:"subject" db:"subject"`
	Body    string     `json:"body" db:"body"`
	ReadAt  *time.Time `json:"readAt,omitempty" db:"read_at"`
}
