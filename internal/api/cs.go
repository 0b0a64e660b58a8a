package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/restoku/restoku-server/internal/chat"
	"github.com/restoku/restoku-server/internal/models"
	"github.com/restoku/restoku-server/internal/routing"
	"github.com/restoku/restoku-server/internal/storage"
	"github.com/restoku/restoku-server/internal/tenant"
)

func agentParticipant(r *http.Request) chat.Participant {
	id := mustUser(r).ID
	return chat.Participant{Kind: models.SenderAgent, UserID: &id}
}

func (s *Server) csDashboardPage(r *http.Request) (*routing.Page, error) {
	ctx := r.Context()
	t := tenant.Must(ctx)

	queue, err := s.svc.Chat.Queue(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	inbox, unreadTotal, err := s.svc.Store.ListInboxMessages(ctx, t.ID, 10, 0)
	if err != nil {
		return nil, err
	}

	agentID := mustUser(r).ID
	var waiting, mine int
	for _, conv := range queue {
		switch {
		case conv.Status == models.ConversationWaiting:
			waiting++
		case conv.AgentID != nil && *conv.AgentID == agentID:
			mine++
		}
	}
	return &routing.Page{Title: "Dasbor CS", Data: map[string]interface{}{
		"waiting":    waiting,
		"mine":       mine,
		"queue":      queue,
		"inbox":      inbox,
		"inboxTotal": unreadTotal,
	}}, nil
}

func (s *Server) liveChatQueuePage(r *http.Request) (*routing.Page, error) {
	ctx := r.Context()
	t := tenant.Must(ctx)
	queue, err := s.svc.Chat.Queue(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	data := map[string]interface{}{"queue": queue}

	// ?percakapan opens one conversation next to the queue
	if raw := r.URL.Query().Get("percakapan"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, routing.WithStatus(http.StatusBadRequest, err)
		}
		conv, err := s.svc.Chat.Conversation(ctx, t.ID, id, agentParticipant(r))
		if err != nil {
			return nil, err
		}
		history, err := s.svc.Chat.History(ctx, t.ID, id)
		if err != nil {
			return nil, err
		}
		data["conversation"] = conv
		data["messages"] = history
	}
	return &routing.Page{Title: "Live chat", Data: data}, nil
}

func (s *Server) handleChatClaim(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "conversationID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	t := tenant.Must(r.Context())
	conv, err := s.svc.Chat.Claim(r.Context(), t.ID, id, mustUser(r).ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.recordActivity(r, models.ActivityChat, mustUser(r).Name+" mengambil percakapan", models.Variables{
		"conversationId": conv.ID.String(),
	})
	s.respondJSON(w, http.StatusOK, conv)
}

func (s *Server) handleAgentSend(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "conversationID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req struct {
		Body string `json:"body" validate:"required"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	t := tenant.Must(r.Context())
	msg, err := s.svc.Chat.Send(r.Context(), t, id, agentParticipant(r), req.Body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleChatClose(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "conversationID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	t := tenant.Must(r.Context())
	conv, err := s.svc.Chat.End(r.Context(), t, id, agentParticipant(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.recordActivity(r, models.ActivityChat, mustUser(r).Name+" menutup percakapan", models.Variables{
		"conversationId": conv.ID.String(),
	})
	s.respondJSON(w, http.StatusOK, conv)
}

func (s *Server) handleAgentSocket(w http.ResponseWriter, r *http.Request) {
	s.svc.Hub.Serve(w, r, tenant.Must(r.Context()), agentParticipant(r))
}

// ========== FAQ ==========

type faqRequest struct {
	Question  string `json:"question" validate:"required,max=300"`
	Answer    string `json:"answer" validate:"required,max=5000"`
	SortOrder int    `json:"sortOrder" validate:"min=0"`
	Published bool   `json:"published"`
}

func (req *faqRequest) apply(f *models.FAQ) {
	f.Question = strings.TrimSpace(req.Question)
	f.Answer = strings.TrimSpace(req.Answer)
	f.SortOrder = req.SortOrder
	f.Published = req.Published
}

func (s *Server) csFAQPage(r *http.Request) (*routing.Page, error) {
	t := tenant.Must(r.Context())
	faqs, err := s.svc.Store.ListFAQs(r.Context(), t.ID, false)
	if err != nil {
		return nil, err
	}
	return &routing.Page{Title: "Kelola FAQ", Data: map[string]interface{}{"faqs": faqs}}, nil
}

func (s *Server) handleFAQCreate(w http.ResponseWriter, r *http.Request) {
	var req faqRequest
	if !s.decode(w, r, &req) {
		return
	}
	t := tenant.Must(r.Context())
	faq := &models.FAQ{}
	faq.TenantID = t.ID
	req.apply(faq)
	if err := s.svc.Store.CreateFAQ(r.Context(), faq); err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, faq)
}

// findFAQ looks a FAQ up among the tenant's entries
func (s *Server) findFAQ(r *http.Request) (*models.FAQ, error) {
	id, err := uuidParam(r, "faqID")
	if err != nil {
		return nil, err
	}
	t := tenant.Must(r.Context())
	faqs, err := s.svc.Store.ListFAQs(r.Context(), t.ID, false)
	if err != nil {
		return nil, err
	}
	for _, f := range faqs {
		if f.ID == id {
			return f, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Server) handleFAQUpdate(w http.ResponseWriter, r *http.Request) {
	var req faqRequest
	if !s.decode(w, r, &req) {
		return
	}
	faq, err := s.findFAQ(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	req.apply(faq)
	if err := s.svc.Store.UpdateFAQ(r.Context(), faq); err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, faq)
}

func (s *Server) handleFAQDelete(w http.ResponseWriter, r *http.Request) {
	faq, err := s.findFAQ(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.svc.Store.DeleteFAQ(r.Context(), faq.TenantID, faq.ID); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ========== Inbox ==========

func (s *Server) inboxPage(r *http.Request) (*routing.Page, error) {
	t := tenant.Must(r.Context())
	limit, offset := pagination(r)
	messages, total, err := s.svc.Store.ListInboxMessages(r.Context(), t.ID, limit, offset)
	if err != nil {
		return nil, err
	}
	return &routing.Page{Title: "Inbox", Data: map[string]interface{}{
		"messages": messages,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	}}, nil
}

func (s *Server) handleInboxRead(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "messageID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	t := tenant.Must(r.Context())
	if err := s.svc.Store.MarkInboxMessageRead(r.Context(), t.ID, id); err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"id": id, "read": true})
}
