// Package httpapi exposes the REST and websocket surface over the
// orchestration engine and the relational store.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/gbellini/scriba/internal/config"
	"github.com/gbellini/scriba/internal/observability"
	"github.com/gbellini/scriba/internal/rag"
	"github.com/gbellini/scriba/internal/store"
)

type Server struct {
	cfg      config.Config
	store    store.Store
	engine   *rag.Engine
	hub      *Hub
	metrics  *observability.Metrics
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func New(cfg config.Config, st store.Store, engine *rag.Engine, metrics *observability.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:     cfg,
		store:   st,
		engine:  engine,
		hub:     NewHub(logger, metrics),
		metrics: metrics,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only allow browser websocket connections from the same
				// origin unless explicitly opened up.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{
			"service": "scriba",
			"status":  "running",
		})
	})
	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/conversations", s.handleCreateConversation)
		r.Get("/conversations", s.handleListConversations)
		r.Get("/conversations/{id}", s.handleGetConversation)
		r.Get("/conversations/{id}/messages", s.handleListMessages)
		r.Post("/conversations/{id}/chat", s.handleChat)
		r.Delete("/conversations/{id}", s.handleDeleteConversation)

		r.Post("/documents/upload", s.handleUploadDocument)
		r.Get("/documents", s.handleListDocuments)
		r.Delete("/documents/{id}", s.handleDeleteDocument)
	})

	r.Get("/ws/{id}", s.handleConversationWS)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

type createConversationRequest struct {
	Title string `json:"title"`
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	conv, err := s.store.CreateConversation(r.Context(), strings.TrimSpace(req.Title))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, conv)
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListConversations(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	if list == nil {
		list = []store.Conversation{}
	}
	respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	conv, err := s.store.GetConversation(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "conversation_not_found", "conversation not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, conv)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
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
	msgs, err := s.store.ListMessages(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	out := make([]messageView, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, newMessageView(m))
	}
	respondJSON(w, http.StatusOK, out)
}

// messageView exposes the persisted retrieval sources as embedded JSON
// rather than a double-encoded string.
type messageView struct {
	store.Message
	Sources json.RawMessage `json:"sources"`
}

func newMessageView(m store.Message) messageView {
	src := m.RetrievalSources
	if src == "" || !json.Valid([]byte(src)) {
		src = "[]"
	}
	return messageView{Message: m, Sources: json.RawMessage(src)}
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteConversation(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "conversation_not_found", "conversation not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	s.engine.ClearConversation(id)
	respondJSON(w, http.StatusOK, map[string]any{"deleted": true, "id": id})
}

type chatRequest struct {
	Content string `json:"content"`
}

type chatResponse struct {
	ConversationID int64        `json:"conversation_id"`
	Message        string       `json:"message"`
	Answer         string       `json:"answer"`
	SourcesUsed    []rag.Source `json:"sources_used"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	question := strings.TrimSpace(req.Content)
	if question == "" {
		respondError(w, http.StatusBadRequest, "empty_message", "Message content cannot be empty")
		return
	}

	conv, err := s.store.GetConversation(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "conversation_not_found", "conversation not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}

	result, err := s.runTurn(r.Context(), conv, question)
	if err != nil {
		s.metrics.IncChatRequest("http", "error")
		respondError(w, http.StatusBadGateway, "chat_failed", err.Error())
		return
	}
	s.metrics.IncChatRequest("http", "ok")

	respondJSON(w, http.StatusOK, chatResponse{
		ConversationID: id,
		Message:        question,
		Answer:         result.Answer,
		SourcesUsed:    result.Sources,
	})
}

// runTurn is the persistence choreography shared by the REST and websocket
// chat paths: record the user message, run the engine, record the assistant
// message with its sources, title the conversation on its first turn, and
// bump the activity timestamp.
func (s *Server) runTurn(ctx context.Context, conv store.Conversation, question string) (rag.ChatResult, error) {
	if _, err := s.store.AddMessage(ctx, store.Message{
		ConversationID: conv.ID,
		Role:           "user",
		Content:        question,
	}); err != nil {
		return rag.ChatResult{}, err
	}

	result, err := s.engine.Chat(ctx, conv.ID, question)
	if err != nil {
		return rag.ChatResult{}, err
	}

	sourcesJSON, merr := json.Marshal(result.Sources)
	if merr != nil {
		sourcesJSON = []byte("[]")
	}
	if _, err := s.store.AddMessage(ctx, store.Message{
		ConversationID:   conv.ID,
		Role:             "assistant",
		Content:          result.Answer,
		RetrievalSources: string(sourcesJSON),
	}); err != nil {
		s.logger.Error("persist assistant turn", "conversation", conv.ID, "error", err)
	}

	s.maybeTitle(ctx, conv, question)

	if err := s.store.TouchConversation(ctx, conv.ID); err != nil {
		s.logger.Error("touch conversation", "conversation", conv.ID, "error", err)
	}
	return result, nil
}

// maybeTitle names the conversation after its opening question. The LLM
// title is best effort; a plain truncation of the question is the fallback.
func (s *Server) maybeTitle(ctx context.Context, conv store.Conversation, question string) {
	if conv.Title != "New Conversation" {
		return
	}
	n, err := s.store.CountUserMessages(ctx, conv.ID)
	if err != nil || n != 1 {
		return
	}
	title, err := s.engine.Title(ctx, question)
	if err != nil {
		s.logger.Warn("title generation failed, falling back to truncation", "conversation", conv.ID, "error", err)
		title = question
		if utf8.RuneCountInString(title) > 50 {
			title = rag.TruncateRunes(title, 50) + "..."
		}
	}
	if err := s.store.SetConversationTitle(ctx, conv.ID, title); err != nil {
		s.logger.Error("set conversation title", "conversation", conv.ID, "error", err)
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_id", "conversation id must be a positive integer")
		return 0, false
	}
	return id, true
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
