package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/restoku/restoku-server/internal/models"
)

// ========== FAQ Methods ==========

// CreateFAQ creates a new FAQ entry
func (s *PostgresStore) CreateFAQ(ctx context.Context, faq *models.FAQ) error {
	faq.Touch(time.Now())

	_, err := s.getDB().ExecContext(ctx, `
        INSERT INTO faqs (id, created_at, updated_at, tenant_id, question, answer, sort_order, published)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		faq.ID, faq.CreatedAt, faq.UpdatedAt, faq.TenantID, faq.Question,
		faq.Answer, faq.SortOrder, faq.Published,
	)
	return mapError(err)
}

// UpdateFAQ updates a FAQ entry
func (s *PostgresStore) UpdateFAQ(ctx context.Context, faq *models.FAQ) error {
	faq.UpdatedAt = time.Now()

	return expectOne(s.getDB().ExecContext(ctx, `
        UPDATE faqs SET updated_at = $3, question = $4, answer = $5, sort_order = $6, published = $7
        WHERE tenant_id = $1 AND id = $2`,
		faq.TenantID, faq.ID, faq.UpdatedAt, faq.Question, faq.Answer,
		faq.SortOrder, faq.Published,
	))
}

// DeleteFAQ deletes a FAQ entry
func (s *PostgresStore) DeleteFAQ(ctx context.Context, tenantID, id uuid.UUID) error {
	return expectOne(s.getDB().ExecContext(ctx,
		"DELETE FROM faqs WHERE tenant_id = $1 AND id = $2", tenantID, id))
}

// ListFAQs lists FAQ entries in display order
func (s *PostgresStore) ListFAQs(ctx context.Context, tenantID uuid.UUID, publishedOnly bool) ([]*models.FAQ, error) {
	query := `
        SELECT id, created_at, updated_at, tenant_id, question, answer, sort_order, published
        FROM faqs WHERE tenant_id = $1`
	if publishedOnly {
		query += " AND published = true"
	}
	query += " ORDER BY sort_order, created_at"

	rows, err := s.getDB().QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var faqs []*models.FAQ
	for rows.Next() {
		f := &models.FAQ{}
		if err := rows.Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt, &f.TenantID, &f.Question, &f.Answer, &f.SortOrder, &f.Published); err != nil {
			return nil, err
		}
		faqs = append(faqs, f)
	}
	return faqs, rows.Err()
}

// ========== Live Chat Methods ==========

const conversationColumns = `id, created_at, updated_at, tenant_id, customer_id, visitor_id,
               agent_id, subject, status, closed_at`

func scanConversation(row rowScanner) (*models.Conversation, error) {
	c := &models.Conversation{}
	err := row.Scan(
		&c.ID, &c.CreatedAt, &c.UpdatedAt, &c.TenantID, &c.CustomerID, &c.VisitorID,
		&c.AgentID, &c.Subject, &c.Status, &c.ClosedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return c, nil
}

// CreateConversation opens a new conversation
func (s *PostgresStore) CreateConversation(ctx context.Context, c *models.Conversation) error {
	c.Touch(time.Now())
	if c.Status == "" {
		c.Status = models.ConversationWaiting
	}

	_, err := s.getDB().ExecContext(ctx, `
        INSERT INTO conversations (
            id, created_at, updated_at, tenant_id, customer_id, visitor_id,
            agent_id, subject, status
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.CreatedAt, c.UpdatedAt, c.TenantID, c.CustomerID, c.VisitorID,
		c.AgentID, c.Subject, c.Status,
	)
	return mapError(err)
}

// GetConversation gets a conversation of a tenant
func (s *PostgresStore) GetConversation(ctx context.Context, tenantID, id uuid.UUID) (*models.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE tenant_id = $1 AND id = $2`
	return scanConversation(s.getDB().QueryRowContext(ctx, query, tenantID, id))
}

// UpdateConversation updates agent assignment and status
func (s *PostgresStore) UpdateConversation(ctx context.Context, c *models.Conversation) error {
	c.UpdatedAt = time.Now()

	return expectOne(s.getDB().ExecContext(ctx, `
        UPDATE conversations SET updated_at = $3, agent_id = $4, status = $5, closed_at = $6
        WHERE tenant_id = $1 AND id = $2`,
		c.TenantID, c.ID, c.UpdatedAt, c.AgentID, c.Status, c.ClosedAt,
	))
}

// ListConversations lists conversations, oldest first, optionally by status
func (s *PostgresStore) ListConversations(ctx context.Context, tenantID uuid.UUID, statuses []models.ConversationStatus) ([]*models.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	if len(statuses) > 0 {
		names := make([]string, len(statuses))
		for i, st := range statuses {
			names[i] = string(st)
		}
		query += " AND status = ANY($2)"
		args = append(args, pq.Array(names))
	}
	query += " ORDER BY created_at"

	rows, err := s.getDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*models.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// CreateChatMessage appends a message to a conversation
func (s *PostgresStore) CreateChatMessage(ctx context.Context, m *models.ChatMessage) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}

	_, err := s.getDB().ExecContext(ctx, `
        INSERT INTO chat_messages (id, created_at, tenant_id, conversation_id, sender_kind, sender_id, body)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.CreatedAt, m.TenantID, m.ConversationID, m.SenderKind, m.SenderID, m.Body,
	)
	return mapError(err)
}

// ListChatMessages returns the latest messages of a conversation in chronological order
func (s *PostgresStore) ListChatMessages(ctx context.Context, tenantID, conversationID uuid.UUID, limit int) ([]*models.ChatMessage, error) {
	rows, err := s.getDB().QueryContext(ctx, `
        SELECT id, created_at, tenant_id, conversation_id, sender_kind, sender_id, body
        FROM (
            SELECT * FROM chat_messages
            WHERE tenant_id = $1 AND conversation_id = $2
            ORDER BY created_at DESC LIMIT $3
        ) latest
        ORDER BY created_at`, tenantID, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*models.ChatMessage
	for rows.Next() {
		m := &models.ChatMessage{}
		if err := rows.Scan(&m.ID, &m.CreatedAt, &m.TenantID, &m.ConversationID, &m.SenderKind, &m.SenderID, &m.Body); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// ========== Inbox Methods ==========

// CreateInboxMessage stores a contact form submission
func (s *PostgresStore) CreateInboxMessage(ctx context.Context, m *models.InboxMessage) error {
	m.Touch(time.Now())

	_, err := s.getDB().ExecContext(ctx, `
        INSERT INTO inbox_messages (id, created_at, updated_at, tenant_id, name, email, subject, body)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.CreatedAt, m.UpdatedAt, m.TenantID, m.Name, m.Email, m.Subject, m.Body,
	)
	return mapError(err)
}

// ListInboxMessages lists contact form submissions, newest first
func (s *PostgresStore) ListInboxMessages(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.InboxMessage, int64, error) {
	var count int64
	if err := s.getDB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM inbox_messages WHERE tenant_id = $1", tenantID).Scan(&count); err != nil {
		return nil, 0, err
	}

	rows, err := s.getDB().QueryContext(ctx, `
        SELECT id, created_at, updated_at, tenant_id, name, email, subject, body, read_at
        FROM inbox_messages WHERE tenant_id = $1
        ORDER BY created_at DESC LIMIT $2 OFFSET $3`, tenantID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var msgs []*models.InboxMessage
	for rows.Next() {
		m := &models.InboxMessage{}
		if err := rows.Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt, &m.TenantID, &m.Name, &m.Email, &m.Subject, &m.Body, &m.ReadAt); err != nil {
			return nil, 0, err
		}
		msgs = append(msgs, m)
	}
	return msgs, count, rows.Err()
}

// MarkInboxMessageRead marks a submission as read
func (s *PostgresStore) MarkInboxMessageRead(ctx context.Context, tenantID, id uuid.UUID) error {
	now := time.Now()
	return expectOne(s.getDB().ExecContext(ctx, `
        UPDATE inbox_messages SET read_at = COALESCE(read_at, $3), updated_at = $3
        WHERE tenant_id = $1 AND id = $2`, tenantID, id, now))
}
