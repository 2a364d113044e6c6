package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gbellini/scriba/internal/observability"
	"github.com/gbellini/scriba/internal/protocol"
	"github.com/gbellini/scriba/internal/store"
)

const (
	wsWriteTimeout  = 10 * time.Second
	wsReadDeadline  = 120 * time.Second
	wsReadLimit     = 1 << 20
	wsSendQueueSize = 64
)

// subscriber is one open socket on a conversation. Writes go through a
// buffered channel so the broadcast path never blocks on a slow client.
type subscriber struct {
	conn *websocket.Conn
	send chan any
	once sync.Once
}

func (c *subscriber) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub is the per-conversation subscriber registry. Broadcasts fan out to
// every socket on a conversation; a subscriber whose queue is full misses
// that event and the drop is logged.
type Hub struct {
	mu      sync.RWMutex
	convs   map[int64]map[*subscriber]struct{}
	total   int
	logger  *slog.Logger
	metrics *observability.Metrics
}

func NewHub(logger *slog.Logger, metrics *observability.Metrics) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		convs:   make(map[int64]map[*subscriber]struct{}),
		logger:  logger,
		metrics: metrics,
	}
}

func (h *Hub) add(conversationID int64, sub *subscriber) {
	h.mu.Lock()
	set, ok := h.convs[conversationID]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.convs[conversationID] = set
	}
	set[sub] = struct{}{}
	h.total++
	total := h.total
	h.mu.Unlock()
	h.metrics.SetActiveConnections(total)
}

// remove closes the send channel inside the exclusive critical section so a
// close can never interleave with Broadcast's sends.
func (h *Hub) remove(conversationID int64, sub *subscriber) {
	h.mu.Lock()
	if set, ok := h.convs[conversationID]; ok {
		if _, present := set[sub]; present {
			delete(set, sub)
			h.total--
		}
		if len(set) == 0 {
			delete(h.convs, conversationID)
		}
	}
	total := h.total
	sub.close()
	h.mu.Unlock()
	h.metrics.SetActiveConnections(total)
}

// Broadcast queues an event for every subscriber of a conversation. except
// is skipped when non-nil. The registry lock is held across the sends; they
// are non-blocking, and holding it keeps every targeted channel open for the
// duration of the fan-out.
func (h *Hub) Broadcast(conversationID int64, event any, except *subscriber) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.convs[conversationID] {
		if sub == except {
			continue
		}
		select {
		case sub.send <- event:
		default:
			h.logger.Warn("subscriber queue full, event dropped", "conversation", conversationID)
		}
	}
}

func (s *Server) handleConversationWS(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if _, err := s.store.GetConversation(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "conversation_not_found", "conversation not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := &subscriber{conn: conn, send: make(chan any, wsSendQueueSize)}
	s.hub.add(id, sub)
	defer s.hub.remove(id, sub)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-sub.send:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteJSON(event); err != nil {
					s.logger.Warn("websocket write failed", "conversation", id, "error", err)
					cancel()
					return
				}
				if t, ok := eventType(event); ok {
					s.metrics.IncWSMessage("outbound", t)
				}
			}
		}
	}()

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadDeadline))

		msg, err := protocol.ParseClientMessage(data)
		if err != nil {
			s.sendTo(sub, protocol.NewErrorEvent(err.Error()))
			continue
		}
		s.metrics.IncWSMessage("inbound", string(msg.Type))

		switch msg.Type {
		case protocol.TypeTyping:
			s.hub.Broadcast(id, protocol.NewTypingEvent(msg.Status), sub)
		case protocol.TypeMessage:
			// The turn must survive this socket's teardown: other
			// subscribers still expect the answer, and cancel fires on any
			// write failure to this one connection.
			s.handleWSChat(context.WithoutCancel(ctx), id, msg.Content, sub)
		}
	}

	cancel()
	<-writerDone
}

// handleWSChat runs one chat turn originated on a socket and fans the
// lifecycle events out to every subscriber of the conversation.
func (s *Server) handleWSChat(ctx context.Context, conversationID int64, content string, sender *subscriber) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		s.sendTo(sender, protocol.NewErrorEvent("conversation not found"))
		return
	}

	s.hub.Broadcast(conversationID, protocol.NewTypingEvent(true), nil)

	result, err := s.runTurn(ctx, conv, content)
	if err != nil {
		s.metrics.IncChatRequest("websocket", "error")
		s.logger.Error("websocket chat turn failed", "conversation", conversationID, "error", err)
		s.hub.Broadcast(conversationID, protocol.NewErrorEvent("Failed to generate a response"), nil)
		s.hub.Broadcast(conversationID, protocol.NewTypingEvent(false), nil)
		return
	}
	s.metrics.IncChatRequest("websocket", "ok")

	sourcesJSON, merr := json.Marshal(result.Sources)
	if merr != nil {
		sourcesJSON = []byte("[]")
	}
	s.hub.Broadcast(conversationID, protocol.NewMessageEvent(result.Answer, sourcesJSON), nil)
	s.hub.Broadcast(conversationID, protocol.NewTypingEvent(false), nil)
}

func (s *Server) sendTo(sub *subscriber, event any) {
	select {
	case sub.send <- event:
	default:
		s.logger.Warn("subscriber queue full, event dropped")
	}
}

func eventType(v any) (string, bool) {
	switch e := v.(type) {
	case protocol.MessageEvent:
		return string(e.Type), true
	case protocol.TypingEvent:
		return string(e.Type), true
	case protocol.ErrorEvent:
		return string(e.Type), true
	default:
		return "", false
	}
}
