package llm

import "context"

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator turns a formatted prompt into natural-language output.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Provider bundles the two capabilities a backend exposes.
type Provider interface {
	Embedder
	Generator
}
