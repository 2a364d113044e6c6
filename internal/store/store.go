// Package store is the durable transcript and document registry. The
// orchestration core never touches it; transport adapters persist turns and
// document records here after calling the engine.
package store

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("record not found")

// Conversation is one chat thread.
type Conversation struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is one persisted turn. RetrievalSources holds a JSON array of the
// passages that informed an assistant answer ("[]" for user turns).
type Message struct {
	ID               int64     `json:"id"`
	ConversationID   int64     `json:"conversation_id"`
	Role             string    `json:"role"`
	Content          string    `json:"content"`
	RetrievalSources string    `json:"-"`
	Timestamp        time.Time `json:"timestamp"`
}

// Document is one uploaded file's record. ContentHash is unique: a second
// upload with the same hash returns the existing record instead of
// reprocessing.
type Document struct {
	ID               int64     `json:"id"`
	Filename         string    `json:"filename"`
	OriginalFilename string    `json:"original_filename"`
	FileType         string    `json:"file_type"`
	ContentHash      string    `json:"content_hash"`
	ChunkCount       int       `json:"chunk_count"`
	TotalTokens      int       `json:"total_tokens"`
	Processed        bool      `json:"processed"`
	UploadedAt       time.Time `json:"uploaded_at"`
}

// Store persists conversations, messages, and document records.
type Store interface {
	CreateConversation(ctx context.Context, title string) (Conversation, error)
	GetConversation(ctx context.Context, id int64) (Conversation, error)
	ListConversations(ctx context.Context) ([]Conversation, error)
	SetConversationTitle(ctx context.Context, id int64, title string) error
	TouchConversation(ctx context.Context, id int64) error
	DeleteConversation(ctx context.Context, id int64) error

	AddMessage(ctx context.Context, msg Message) (Message, error)
	ListMessages(ctx context.Context, conversationID int64) ([]Message, error)
	CountUserMessages(ctx context.Context, conversationID int64) (int, error)

	CreateDocument(ctx context.Context, doc Document) (Document, error)
	GetDocument(ctx context.Context, id int64) (Document, error)
	GetDocumentByHash(ctx context.Context, hash string) (Document, error)
	ListDocuments(ctx context.Context) ([]Document, error)
	DeleteDocument(ctx context.Context, id int64) error

	Close() error
}
