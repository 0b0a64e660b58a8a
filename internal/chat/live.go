package chat

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/restoku/restoku-server/internal/appstate"
	"github.com/restoku/restoku-server/internal/events"
	"github.com/restoku/restoku-server/internal/models"
)

// Frame types
const (
	FrameJoin    = "join"
	FrameLeave   = "leave"
	FrameMessage = "message"
	FrameHistory = "history"
	FrameError   = "error"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	maxFrameSize = 8192
	sendBuffer   = 64
)

// ErrNoConversation is returned when a message is sent before joining
var ErrNoConversation = errors.New("join a conversation first")

// Frame is a websocket message in either direction
type Frame struct {
	Type           string                `json:"type"`
	ConversationID *uuid.UUID            `json:"conversationId,omitempty"`
	Body           string                `json:"body,omitempty"`
	Message        *models.ChatMessage   `json:"message,omitempty"`
	Messages       []*models.ChatMessage `json:"messages,omitempty"`
	Error          string                `json:"error,omitempty"`
}

// Live is one live chat connection. Joining another conversation supersedes
// every pending history load and message relay of the previous one.
type Live struct {
	svc     *Service
	ctx     context.Context
	tenant  *models.Tenant
	who     Participant
	deliver func(Frame)

	gen appstate.Generation

	mu      sync.Mutex
	current uuid.UUID
	sub     events.Subscription
}

// NewLive creates a connection that hands outgoing frames to deliver
func (s *Service) NewLive(ctx context.Context, t *models.Tenant, who Participant, deliver func(Frame)) *Live {
	return &Live{svc: s, ctx: ctx, tenant: t, who: who, deliver: deliver}
}

// Current returns the joined conversation, uuid.Nil when none
func (l *Live) Current() uuid.UUID {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// Join switches the connection to convID and loads its history in the background
func (l *Live) Join(convID uuid.UUID) error {
	if _, err := l.svc.Conversation(l.ctx, l.tenant.ID, convID, l.who); err != nil {
		return err
	}

	ticket := l.gen.Begin()
	sub, err := l.svc.bus.Subscribe(l.tenant.Slug, events.ChatTopic(convID.String()), func(e events.Event) {
		if !l.gen.Current(ticket) {
			return
		}
		var msg models.ChatMessage
		if err := e.Decode(&msg); err != nil {
			return
		}
		l.deliver(Frame{Type: FrameMessage, ConversationID: &convID, Message: &msg})
	})
	if err != nil {
		return err
	}

	l.mu.Lock()
	old := l.sub
	l.sub = sub
	l.current = convID
	l.mu.Unlock()
	if old != nil {
		old.Unsubscribe()
	}

	go l.loadHistory(ticket, convID)
	return nil
}

func (l *Live) loadHistory(ticket appstate.Ticket, convID uuid.UUID) {
	msgs, err := l.svc.History(l.ctx, l.tenant.ID, convID)
	if !l.gen.Current(ticket) {
		zerolog.Ctx(l.ctx).Debug().Str("conversation_id", convID.String()).Msg("Dropping stale chat history")
		return
	}
	if err != nil {
		l.deliver(Frame{Type: FrameError, ConversationID: &convID, Error: err.Error()})
		return
	}
	l.deliver(Frame{Type: FrameHistory, ConversationID: &convID, Messages: msgs})
}

// Say posts body to the joined conversation
func (l *Live) Say(body string) error {
	convID := l.Current()
	if convID == uuid.Nil {
		return ErrNoConversation
	}
	_, err := l.svc.Send(l.ctx, l.tenant, convID, l.who, body)
	return err
}

// Leave detaches from the current conversation
func (l *Live) Leave() {
	l.gen.Begin()

	l.mu.Lock()
	sub := l.sub
	l.sub = nil
	l.current = uuid.Nil
	l.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}

func (l *Live) handle(f Frame) {
	var err error
	switch f.Type {
	case FrameJoin:
		if f.ConversationID == nil {
			err = errors.New("conversationId is required")
			break
		}
		err = l.Join(*f.ConversationID)
	case FrameMessage:
		err = l.Say(f.Body)
	case FrameLeave:
		l.Leave()
	default:
		err = errors.New("unknown frame type " + f.Type)
	}
	if err != nil {
		l.deliver(Frame{Type: FrameError, ConversationID: f.ConversationID, Error: err.Error()})
	}
}

// Hub upgrades websocket requests and tracks live connections
type Hub struct {
	svc      *Service
	upgrader websocket.Upgrader

	mu     sync.Mutex
	conns  map[*websocket.Conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

// NewHub creates the live chat hub
func NewHub(svc *Service) *Hub {
	return &Hub{
		svc: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// Name implements appstate.Provider
func (h *Hub) Name() string { return "livechat" }

// Start implements appstate.Provider
func (h *Hub) Start(ctx context.Context) error { return nil }

// Close disconnects every client and waits for their pumps to stop
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	for conn := range h.conns {
		conn.Close()
	}
	h.mu.Unlock()

	h.wg.Wait()
	return nil
}

// Len returns the number of live connections
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *Hub) track(conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.conns[conn] = struct{}{}
	h.wg.Add(1)
	return true
}

func (h *Hub) untrack(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
	h.wg.Done()
}

// Serve upgrades the request and runs the connection until either side closes it
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, t *models.Tenant, who Participant) {
	logger := zerolog.Ctx(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Debug().Err(err).Msg("Websocket upgrade failed")
		return
	}
	if !h.track(conn) {
		conn.Close()
		return
	}
	defer h.untrack(conn)

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	send := make(chan Frame, sendBuffer)
	live := h.svc.NewLive(ctx, t, who, func(f Frame) {
		select {
		case send <- f:
		default:
			logger.Warn().Str("type", f.Type).Msg("Chat client too slow, dropping frame")
		}
	})
	defer live.Leave()

	done := make(chan struct{})
	go func() {
		defer close(done)
		writePump(ctx, conn, send)
	}()

	readPump(conn, live)
	cancel()
	<-done
}

func readPump(conn *websocket.Conn, live *Live) {
	conn.SetReadLimit(maxFrameSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zerolog.Ctx(live.ctx).Debug().Err(err).Msg("Chat connection closed")
			}
			return
		}
		live.handle(f)
	}
}

func writePump(ctx context.Context, conn *websocket.Conn, send <-chan Frame) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer conn.Close()

	for {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
			return
		case f := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(f); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
