// Package vectorindex wraps an embedding + similarity-search capability
// behind a small adapter interface. Chunks are keyed by source identity so a
// whole document's entries can be removed when the document is deleted.
package vectorindex

import "context"

// Chunk is the unit stored in the index: a bounded span of document text
// with its originating source identity. Chunks are immutable once created.
type Chunk struct {
	Content  string
	Source   string
	Position int
	Metadata map[string]string
}

// Result is one retrieval hit, ranked by similarity descending.
type Result struct {
	Chunk
	Similarity float64
}

// Index is the adapter contract. Implementations must be safe for
// concurrent Add/Query/DeleteBySource.
//
// Query returns at most k results and never errors on an empty index or
// when nothing clears the similarity threshold: the caller handles the
// empty case explicitly. The index does not de-duplicate; re-adding the
// same content produces duplicate entries (dedup is the uploader's
// content-hash check).
type Index interface {
	Add(ctx context.Context, chunks []Chunk) (int, error)
	Query(ctx context.Context, text string, k int) ([]Result, error)
	DeleteBySource(ctx context.Context, source string) error
	Count(ctx context.Context) (int, error)
	Close() error
}
