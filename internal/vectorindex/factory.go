package vectorindex

import (
	"context"
	"strings"

	"github.com/gbellini/scriba/internal/llm"
)

// New creates a pgvector-backed index when a database URL is configured,
// otherwise an in-memory one.
func New(ctx context.Context, databaseURL string, embedder llm.Embedder, threshold float64, dim int) (Index, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NewInMemory(embedder, threshold), nil
	}
	return NewPostgres(ctx, databaseURL, embedder, threshold, dim)
}
