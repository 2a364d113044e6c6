package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemory is the zero-dependency store used when no DATABASE_URL is
// configured. Everything is lost on restart.
type InMemory struct {
	mu sync.Mutex

	nextConvID int64
	nextMsgID  int64
	nextDocID  int64

	conversations map[int64]Conversation
	messages      map[int64][]Message
	documents     map[int64]Document
}

func NewInMemory() *InMemory {
	return &InMemory{
		conversations: make(map[int64]Conversation),
		messages:      make(map[int64][]Message),
		documents:     make(map[int64]Document),
	}
}

func (s *InMemory) CreateConversation(_ context.Context, title string) (Conversation, error) {
	if title == "" {
		title = "New Conversation"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextConvID++
	now := time.Now().UTC()
	c := Conversation{ID: s.nextConvID, Title: title, CreatedAt: now, UpdatedAt: now}
	s.conversations[c.ID] = c
	return c, nil
}

func (s *InMemory) GetConversation(_ context.Context, id int64) (Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return Conversation{}, ErrNotFound
	}
	return c, nil
}

func (s *InMemory) ListConversations(_ context.Context) ([]Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *InMemory) SetConversationTitle(_ context.Context, id int64, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return ErrNotFound
	}
	c.Title = title
	c.UpdatedAt = time.Now().UTC()
	s.conversations[id] = c
	return nil
}

func (s *InMemory) TouchConversation(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return ErrNotFound
	}
	c.UpdatedAt = time.Now().UTC()
	s.conversations[id] = c
	return nil
}

func (s *InMemory) DeleteConversation(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[id]; !ok {
		return ErrNotFound
	}
	delete(s.conversations, id)
	delete(s.messages, id)
	return nil
}

func (s *InMemory) AddMessage(_ context.Context, msg Message) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[msg.ConversationID]; !ok {
		return Message{}, ErrNotFound
	}
	s.nextMsgID++
	msg.ID = s.nextMsgID
	if msg.RetrievalSources == "" {
		msg.RetrievalSources = "[]"
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], msg)
	return msg, nil
}

func (s *InMemory) ListMessages(_ context.Context, conversationID int64) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[conversationID]
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *InMemory) CountUserMessages(_ context.Context, conversationID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.messages[conversationID] {
		if m.Role == "user" {
			n++
		}
	}
	return n, nil
}

func (s *InMemory) CreateDocument(_ context.Context, doc Document) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextDocID++
	doc.ID = s.nextDocID
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
	s.documents[doc.ID] = doc
	return doc, nil
}

func (s *InMemory) GetDocument(_ context.Context, id int64) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.documents[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return d, nil
}

func (s *InMemory) GetDocumentByHash(_ context.Context, hash string) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.documents {
		if d.ContentHash == hash {
			return d, nil
		}
	}
	return Document{}, ErrNotFound
}

func (s *InMemory) ListDocuments(_ context.Context) ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Document, 0, len(s.documents))
	for _, d := range s.documents {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].UploadedAt.After(out[j].UploadedAt)
	})
	return out, nil
}

func (s *InMemory) DeleteDocument(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[id]; !ok {
		return ErrNotFound
	}
	delete(s.documents, id)
	return nil
}

func (s *InMemory) Close() error { return nil }
