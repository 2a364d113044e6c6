package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCreateAndGetConversation(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	c, err := s.CreateConversation(ctx, "")
	if err != nil {
		t.Fatalf("CreateConversation() error = %v", err)
	}
	if c.ID == 0 || c.Title != "New Conversation" {
		t.Fatalf("unexpected conversation: %+v", c)
	}

	got, err := s.GetConversation(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetConversation() error = %v", err)
	}
	if got.ID != c.ID || got.Title != c.Title {
		t.Fatalf("GetConversation() = %+v, want %+v", got, c)
	}

	if _, err := s.GetConversation(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetConversation(999) error = %v, want ErrNotFound", err)
	}
}

func TestListConversationsOrdersByActivity(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	a, _ := s.CreateConversation(ctx, "first")
	time.Sleep(2 * time.Millisecond)
	b, _ := s.CreateConversation(ctx, "second")
	time.Sleep(2 * time.Millisecond)
	if err := s.TouchConversation(ctx, a.ID); err != nil {
		t.Fatalf("TouchConversation() error = %v", err)
	}

	list, err := s.ListConversations(ctx)
	if err != nil {
		t.Fatalf("ListConversations() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len(list) = %d, want 2", len(list))
	}
	if list[0].ID != a.ID || list[1].ID != b.ID {
		t.Fatalf("order = [%d %d], want touched conversation first", list[0].ID, list[1].ID)
	}
}

func TestDeleteConversationCascadesMessages(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	c, _ := s.CreateConversation(ctx, "t")
	if _, err := s.AddMessage(ctx, Message{ConversationID: c.ID, Role: "user", Content: "hi"}); err != nil {
		t.Fatalf("AddMessage() error = %v", err)
	}

	if err := s.DeleteConversation(ctx, c.ID); err != nil {
		t.Fatalf("DeleteConversation() error = %v", err)
	}
	msgs, _ := s.ListMessages(ctx, c.ID)
	if len(msgs) != 0 {
		t.Fatalf("messages survived conversation delete: %+v", msgs)
	}
	if err := s.DeleteConversation(ctx, c.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete error = %v, want ErrNotFound", err)
	}
}

func TestAddMessageRequiresConversation(t *testing.T) {
	s := NewInMemory()
	if _, err := s.AddMessage(context.Background(), Message{ConversationID: 42, Role: "user", Content: "x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("AddMessage() error = %v, want ErrNotFound", err)
	}
}

func TestMessagesKeepInsertionOrderAndDefaults(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	c, _ := s.CreateConversation(ctx, "t")

	u, _ := s.AddMessage(ctx, Message{ConversationID: c.ID, Role: "user", Content: "q"})
	a, _ := s.AddMessage(ctx, Message{ConversationID: c.ID, Role: "assistant", Content: "a", RetrievalSources: `[{"source":"x"}]`})

	msgs, err := s.ListMessages(ctx, c.ID)
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(msgs) != 2 || msgs[0].ID != u.ID || msgs[1].ID != a.ID {
		t.Fatalf("unexpected listing: %+v", msgs)
	}
	if msgs[0].RetrievalSources != "[]" {
		t.Fatalf("user turn sources = %q, want empty JSON array", msgs[0].RetrievalSources)
	}
	if msgs[0].Timestamp.IsZero() {
		t.Fatalf("timestamp not defaulted")
	}

	n, _ := s.CountUserMessages(ctx, c.ID)
	if n != 1 {
		t.Fatalf("CountUserMessages() = %d, want 1", n)
	}
}

func TestDocumentHashLookup(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	d, err := s.CreateDocument(ctx, Document{
		Filename:         "abc-notes.txt",
		OriginalFilename: "notes.txt",
		FileType:         "text/plain",
		ContentHash:      "deadbeef",
		ChunkCount:       3,
		Processed:        true,
	})
	if err != nil {
		t.Fatalf("CreateDocument() error = %v", err)
	}

	byHash, err := s.GetDocumentByHash(ctx, "deadbeef")
	if err != nil {
		t.Fatalf("GetDocumentByHash() error = %v", err)
	}
	if byHash.ID != d.ID {
		t.Fatalf("GetDocumentByHash() = %+v, want id %d", byHash, d.ID)
	}
	if _, err := s.GetDocumentByHash(ctx, "other"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("miss error = %v, want ErrNotFound", err)
	}

	if err := s.DeleteDocument(ctx, d.ID); err != nil {
		t.Fatalf("DeleteDocument() error = %v", err)
	}
	if _, err := s.GetDocument(ctx, d.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetDocument() after delete error = %v, want ErrNotFound", err)
	}
}
