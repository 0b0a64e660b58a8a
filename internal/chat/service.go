// Package chat implements live chat between storefront visitors and CS agents.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/restoku/restoku-server/internal/events"
	"github.com/restoku/restoku-server/internal/models"
)

// Chat errors
var (
	ErrEmptyMessage       = errors.New("message is empty")
	ErrMessageTooLong     = errors.New("message is too long")
	ErrConversationClosed = errors.New("conversation closed")
	ErrAlreadyClaimed     = errors.New("conversation already claimed by another agent")
	ErrForbidden          = errors.New("not a participant of this conversation")
)

const (
	maxMessageLength = 2000
	historyLimit     = 100
)

// Store is the chat part of the store
type Store interface {
	CreateConversation(ctx context.Context, conv *models.Conversation) error
	GetConversation(ctx context.Context, tenantID, id uuid.UUID) (*models.Conversation, error)
	UpdateConversation(ctx context.Context, conv *models.Conversation) error
	ListConversations(ctx context.Context, tenantID uuid.UUID, statuses []models.ConversationStatus) ([]*models.Conversation, error)
	CreateChatMessage(ctx context.Context, msg *models.ChatMessage) error
	ListChatMessages(ctx context.Context, tenantID, conversationID uuid.UUID, limit int) ([]*models.ChatMessage, error)
}

// Participant is the author side of a chat connection
type Participant struct {
	Kind      models.SenderKind
	UserID    *uuid.UUID
	VisitorID string
}

// CanAccess reports whether p may read and write conv. Agents reach every
// conversation of their tenant; customers only their own.
func (p Participant) CanAccess(conv *models.Conversation) bool {
	if p.Kind == models.SenderAgent {
		return true
	}
	if p.VisitorID != "" && conv.VisitorID == p.VisitorID {
		return true
	}
	return p.UserID != nil && conv.CustomerID != nil && *conv.CustomerID == *p.UserID
}

// Service manages conversations and messages
type Service struct {
	store Store
	bus   events.Bus
	now   func() time.Time
}

// NewService creates the chat service
func NewService(store Store, bus events.Bus) *Service {
	return &Service{store: store, bus: bus, now: time.Now}
}

// Name implements appstate.Provider
func (s *Service) Name() string { return "chat" }

// Start implements appstate.Provider
func (s *Service) Start(ctx context.Context) error { return nil }

// Close implements appstate.Provider
func (s *Service) Close() error { return nil }

func cleanBody(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", ErrEmptyMessage
	}
	if len([]rune(body)) > maxMessageLength {
		return "", ErrMessageTooLong
	}
	return body, nil
}

// Open starts a conversation with its first message
func (s *Service) Open(ctx context.Context, t *models.Tenant, p Participant, subject, body string) (*models.Conversation, *models.ChatMessage, error) {
	body, err := cleanBody(body)
	if err != nil {
		return nil, nil, err
	}
	if subject = strings.TrimSpace(subject); subject == "" {
		subject = "Live chat"
	}

	conv := &models.Conversation{
		CustomerID: p.UserID,
		VisitorID:  p.VisitorID,
		Subject:    subject,
		Status:     models.ConversationWaiting,
	}
	conv.TenantID = t.ID
	conv.Touch(s.now())
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, nil, fmt.Errorf("create conversation: %w", err)
	}

	msg, err := s.post(ctx, t, conv, p, body)
	if err != nil {
		return nil, nil, err
	}
	return conv, msg, nil
}

// Conversation loads a conversation the participant may access
func (s *Service) Conversation(ctx context.Context, tenantID, id uuid.UUID, p Participant) (*models.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !p.CanAccess(conv) {
		return nil, ErrForbidden
	}
	return conv, nil
}

// Send appends a message to an open conversation. An agent writing to a
// waiting conversation claims it.
func (s *Service) Send(ctx context.Context, t *models.Tenant, convID uuid.UUID, p Participant, body string) (*models.ChatMessage, error) {
	body, err := cleanBody(body)
	if err != nil {
		return nil, err
	}

	conv, err := s.Conversation(ctx, t.ID, convID, p)
	if err != nil {
		return nil, err
	}
	if conv.Status == models.ConversationClosed {
		return nil, ErrConversationClosed
	}

	if p.Kind == models.SenderAgent && conv.AgentID == nil && p.UserID != nil {
		if _, err := s.claim(ctx, conv, *p.UserID); err != nil {
			return nil, err
		}
	}

	return s.post(ctx, t, conv, p, body)
}

func (s *Service) post(ctx context.Context, t *models.Tenant, conv *models.Conversation, p Participant, body string) (*models.ChatMessage, error) {
	msg := &models.ChatMessage{
		ID:             uuid.New(),
		CreatedAt:      s.now(),
		TenantID:       t.ID,
		ConversationID: conv.ID,
		SenderKind:     p.Kind,
		SenderID:       p.UserID,
		Body:           body,
	}
	if err := s.store.CreateChatMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("create chat message: %w", err)
	}

	if err := s.bus.Publish(ctx, t.Slug, events.ChatTopic(conv.ID.String()), msg); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("conversation_id", conv.ID.String()).Msg("Failed to publish chat message")
	}
	return msg, nil
}

// History returns the latest messages of a conversation, oldest first
func (s *Service) History(ctx context.Context, tenantID, convID uuid.UUID) ([]*models.ChatMessage, error) {
	msgs, err := s.store.ListChatMessages(ctx, tenantID, convID, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	if msgs == nil {
		msgs = []*models.ChatMessage{}
	}
	return msgs, nil
}

// Queue lists conversations that are waiting or in progress
func (s *Service) Queue(ctx context.Context, tenantID uuid.UUID) ([]*models.Conversation, error) {
	convs, err := s.store.ListConversations(ctx, tenantID, []models.ConversationStatus{models.ConversationWaiting, models.ConversationActive})
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return convs, nil
}

// Claim assigns a waiting conversation to an agent
func (s *Service) Claim(ctx context.Context, tenantID, convID, agentID uuid.UUID) (*models.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, tenantID, convID)
	if err != nil {
		return nil, err
	}
	return s.claim(ctx, conv, agentID)
}

func (s *Service) claim(ctx context.Context, conv *models.Conversation, agentID uuid.UUID) (*models.Conversation, error) {
	switch {
	case conv.Status == models.ConversationClosed:
		return nil, ErrConversationClosed
	case conv.AgentID != nil && *conv.AgentID != agentID:
		return nil, ErrAlreadyClaimed
	case conv.AgentID != nil:
		return conv, nil
	}

	conv.AgentID = &agentID
	conv.Status = models.ConversationActive
	conv.Touch(s.now())
	if err := s.store.UpdateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("claim conversation: %w", err)
	}
	return conv, nil
}

// End closes a conversation
func (s *Service) End(ctx context.Context, t *models.Tenant, convID uuid.UUID, p Participant) (*models.Conversation, error) {
	conv, err := s.Conversation(ctx, t.ID, convID, p)
	if err != nil {
		return nil, err
	}
	if conv.Status == models.ConversationClosed {
		return conv, nil
	}

	now := s.now()
	conv.Status = models.ConversationClosed
	conv.ClosedAt = &now
	conv.Touch(now)
	if err := s.store.UpdateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("close conversation: %w", err)
	}

	system := Participant{Kind: models.SenderSystem}
	if _, err := s.post(ctx, t, conv, system, "Percakapan telah ditutup."); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Failed to post closing message")
	}
	return conv, nil
}
