package vectorindex

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/gbellini/scriba/internal/llm"
)

// Postgres stores chunk embeddings in PostgreSQL via pgvector and ranks
// queries by cosine distance.
type Postgres struct {
	pool      *pgxpool.Pool
	embedder  llm.Embedder
	threshold float64
	dim       int
}

// NewPostgres connects, registers the vector type, and ensures the schema.
// dim must match the embedding model's output dimension.
func NewPostgres(ctx context.Context, databaseURL string, embedder llm.Embedder, threshold float64, dim int) (*Postgres, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	idx := &Postgres{pool: pool, embedder: embedder, threshold: threshold, dim: dim}
	if err := idx.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return idx, nil
}

func (idx *Postgres) initSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector;`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS rag_chunks (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			position INT NOT NULL,
			content TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}',
			embedding vector(%d),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`, idx.dim),
		`CREATE INDEX IF NOT EXISTS idx_rag_chunks_source ON rag_chunks (source);`,
	}
	for _, stmt := range stmts {
		if _, err := idx.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (idx *Postgres) Add(ctx context.Context, chunks []Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := idx.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}

	batch := &pgx.Batch{}
	for i, c := range chunks {
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return 0, fmt.Errorf("marshal chunk metadata: %w", err)
		}
		batch.Queue(
			`INSERT INTO rag_chunks (id, source, position, content, metadata, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.NewString(), c.Source, c.Position, c.Content, meta, pgvector.NewVector(vectors[i]),
		)
	}
	res := idx.pool.SendBatch(ctx, batch)
	defer res.Close()
	for range chunks {
		if _, err := res.Exec(); err != nil {
			return 0, fmt.Errorf("insert chunk: %w", err)
		}
	}
	return len(chunks), nil
}

func (idx *Postgres) Query(ctx context.Context, text string, k int) ([]Result, error) {
	if k <= 0 {
		k = 5
	}
	vec, err := idx.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	rows, err := idx.pool.Query(ctx,
		`SELECT content, source, position, metadata, 1 - (embedding <=> $1) AS similarity
		 FROM rag_chunks
		 ORDER BY embedding <=> $1
		 LIMIT $2`,
		pgvector.NewVector(vec), k,
	)
	if err != nil {
		return nil, fmt.Errorf("similarity query: %w", err)
	}
	defer rows.Close()

	results := make([]Result, 0, k)
	for rows.Next() {
		var (
			r    Result
			meta []byte
		)
		if err := rows.Scan(&r.Content, &r.Source, &r.Position, &meta, &r.Similarity); err != nil {
			return nil, fmt.Errorf("scan result row: %w", err)
		}
		if r.Similarity < idx.threshold {
			continue
		}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &r.Metadata)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate result rows: %w", err)
	}
	return results, nil
}

func (idx *Postgres) DeleteBySource(ctx context.Context, source string) error {
	if _, err := idx.pool.Exec(ctx, `DELETE FROM rag_chunks WHERE source = $1`, source); err != nil {
		return fmt.Errorf("delete by source: %w", err)
	}
	return nil
}

func (idx *Postgres) Count(ctx context.Context) (int, error) {
	var n int
	if err := idx.pool.QueryRow(ctx, `SELECT count(*) FROM rag_chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

func (idx *Postgres) Close() error {
	idx.pool.Close()
	return nil
}
