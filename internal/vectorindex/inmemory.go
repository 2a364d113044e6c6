package vectorindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/gbellini/scriba/internal/llm"
)

// InMemory is a brute-force cosine-similarity index for local/dev use and
// tests. Vectors are stored L2-normalized so similarity reduces to a dot
// product.
type InMemory struct {
	mu        sync.RWMutex
	embedder  llm.Embedder
	threshold float64
	entries   []memEntry
}

type memEntry struct {
	chunk  Chunk
	vector []float32
}

func NewInMemory(embedder llm.Embedder, threshold float64) *InMemory {
	return &InMemory{embedder: embedder, threshold: threshold}
}

func (idx *InMemory) Add(ctx context.Context, chunks []Chunk) (int, error) {
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

	idx.mu.Lock()
	defer idx.mu.Unlock()
	for i, c := range chunks {
		idx.entries = append(idx.entries, memEntry{chunk: c, vector: normalize(vectors[i])})
	}
	return len(chunks), nil
}

func (idx *InMemory) Query(ctx context.Context, text string, k int) ([]Result, error) {
	if k <= 0 {
		k = 5
	}
	vec, err := idx.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	vec = normalize(vec)

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	results := make([]Result, 0, len(idx.entries))
	for _, e := range idx.entries {
		sim := dot(e.vector, vec)
		if sim < idx.threshold {
			continue
		}
		results = append(results, Result{Chunk: e.chunk, Similarity: sim})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (idx *InMemory) DeleteBySource(_ context.Context, source string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	kept := idx.entries[:0]
	for _, e := range idx.entries {
		if e.chunk.Source != source {
			kept = append(kept, e)
		}
	}
	idx.entries = kept
	return nil
}

func (idx *InMemory) Count(_ context.Context) (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries), nil
}

func (idx *InMemory) Close() error { return nil }

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func normalize(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	inv := 1 / float32(math.Sqrt(norm))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x * inv
	}
	return out
}
