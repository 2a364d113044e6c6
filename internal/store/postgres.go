package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres persists the transcript and document registry in PostgreSQL.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Postgres{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			id BIGSERIAL PRIMARY KEY,
			title TEXT NOT NULL DEFAULT 'New Conversation',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id BIGSERIAL PRIMARY KEY,
			conversation_id BIGINT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			retrieval_sources TEXT NOT NULL DEFAULT '[]',
			timestamp TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS documents (
			id BIGSERIAL PRIMARY KEY,
			filename TEXT NOT NULL,
			original_filename TEXT NOT NULL,
			file_type TEXT NOT NULL,
			content_hash TEXT NOT NULL UNIQUE,
			chunk_count INT NOT NULL DEFAULT 0,
			total_tokens INT NOT NULL DEFAULT 0,
			processed BOOLEAN NOT NULL DEFAULT FALSE,
			uploaded_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_updated ON conversations (updated_at);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages (conversation_id);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_timestamp ON messages (timestamp);`,
		`CREATE INDEX IF NOT EXISTS idx_documents_uploaded ON documents (uploaded_at);`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *Postgres) CreateConversation(ctx context.Context, title string) (Conversation, error) {
	if title == "" {
		title = "New Conversation"
	}
	var c Conversation
	err := s.pool.QueryRow(ctx,
		`INSERT INTO conversations (title) VALUES ($1)
		 RETURNING id, title, created_at, updated_at`, title,
	).Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	return c, nil
}

func (s *Postgres) GetConversation(ctx context.Context, id int64) (Conversation, error) {
	var c Conversation
	err := s.pool.QueryRow(ctx,
		`SELECT id, title, created_at, updated_at FROM conversations WHERE id = $1`, id,
	).Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Conversation{}, ErrNotFound
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("get conversation: %w", err)
	}
	return c, nil
}

func (s *Postgres) ListConversations(ctx context.Context) ([]Conversation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, title, created_at, updated_at FROM conversations ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Postgres) SetConversationTitle(ctx context.Context, id int64, title string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE conversations SET title = $2, updated_at = now() WHERE id = $1`, id, title)
	if err != nil {
		return fmt.Errorf("set title: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) TouchConversation(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE conversations SET updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) DeleteConversation(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) AddMessage(ctx context.Context, msg Message) (Message, error) {
	if msg.RetrievalSources == "" {
		msg.RetrievalSources = "[]"
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO messages (conversation_id, role, content, retrieval_sources, timestamp)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		msg.ConversationID, msg.Role, msg.Content, msg.RetrievalSources, msg.Timestamp,
	).Scan(&msg.ID)
	if err != nil {
		return Message{}, fmt.Errorf("add message: %w", err)
	}
	return msg, nil
}

func (s *Postgres) ListMessages(ctx context.Context, conversationID int64) ([]Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, conversation_id, role, content, retrieval_sources, timestamp
		 FROM messages WHERE conversation_id = $1 ORDER BY timestamp`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.RetrievalSources, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Postgres) CountUserMessages(ctx context.Context, conversationID int64) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM messages WHERE conversation_id = $1 AND role = 'user'`, conversationID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count user messages: %w", err)
	}
	return n, nil
}

func (s *Postgres) CreateDocument(ctx context.Context, doc Document) (Document, error) {
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO documents (filename, original_filename, file_type, content_hash, chunk_count, total_tokens, processed, uploaded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		doc.Filename, doc.OriginalFilename, doc.FileType, doc.ContentHash,
		doc.ChunkCount, doc.TotalTokens, doc.Processed, doc.UploadedAt,
	).Scan(&doc.ID)
	if err != nil {
		return Document{}, fmt.Errorf("create document: %w", err)
	}
	return doc, nil
}

func (s *Postgres) GetDocument(ctx context.Context, id int64) (Document, error) {
	var d Document
	err := s.pool.QueryRow(ctx,
		`SELECT id, filename, original_filename, file_type, content_hash, chunk_count, total_tokens, processed, uploaded_at
		 FROM documents WHERE id = $1`, id,
	).Scan(&d.ID, &d.Filename, &d.OriginalFilename, &d.FileType, &d.ContentHash, &d.ChunkCount, &d.TotalTokens, &d.Processed, &d.UploadedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

func (s *Postgres) GetDocumentByHash(ctx context.Context, hash string) (Document, error) {
	var d Document
	err := s.pool.QueryRow(ctx,
		`SELECT id, filename, original_filename, file_type, content_hash, chunk_count, total_tokens, processed, uploaded_at
		 FROM documents WHERE content_hash = $1`, hash,
	).Scan(&d.ID, &d.Filename, &d.OriginalFilename, &d.FileType, &d.ContentHash, &d.ChunkCount, &d.TotalTokens, &d.Processed, &d.UploadedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("get document by hash: %w", err)
	}
	return d, nil
}

func (s *Postgres) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, filename, original_filename, file_type, content_hash, chunk_count, total_tokens, processed, uploaded_at
		 FROM documents ORDER BY uploaded_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Filename, &d.OriginalFilename, &d.FileType, &d.ContentHash, &d.ChunkCount, &d.TotalTokens, &d.Processed, &d.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Postgres) DeleteDocument(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}
