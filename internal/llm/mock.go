package llm

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
)

// Mock provides deterministic local replies and embeddings when no real
// backend is configured. Embeddings are stable per input so similarity
// search behaves consistently across a test run.
type Mock struct{}

func NewMock() *Mock { return &Mock{} }

const mockDim = 64

func (m *Mock) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, mockDim)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		vec[h.Sum32()%mockDim]++
	}
	// L2-normalize so cosine similarity is a plain dot product downstream.
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		inv := 1 / float32(math.Sqrt(float64(norm)))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec, nil
}

func (m *Mock) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		emb, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = emb
	}
	return out, nil
}

func (m *Mock) Generate(ctx context.Context, prompt string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	lines := strings.Split(strings.TrimSpace(prompt), "\n")
	last := ""
	for i := len(lines) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(lines[i]); s != "" && s != "Answer:" {
			last = s
			break
		}
	}
	return fmt.Sprintf("[mock] response to: %s", last), nil
}
