package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gbellini/scriba/internal/reliability"
)

// OllamaConfig controls the Ollama-backed provider.
type OllamaConfig struct {
	BaseURL        string
	Model          string
	EmbeddingModel string
	Temperature    float64
	MaxTokens      int
}

// Ollama implements Provider against a local or remote Ollama daemon.
type Ollama struct {
	cfg    OllamaConfig
	client *http.Client
}

func NewOllama(cfg OllamaConfig) *Ollama {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = "qwen2:0.5b"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "nomic-embed-text"
	}
	return &Ollama{
		cfg: cfg,
		client: &http.Client{
			// Generation dominates latency; embeddings finish well inside this.
			Timeout: 300 * time.Second,
		},
	}
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (o *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	var out ollamaEmbedResponse
	err := o.post(ctx, "/api/embeddings", ollamaEmbedRequest{
		Model:  o.cfg.EmbeddingModel,
		Prompt: text,
	}, &out)
	if err != nil {
		return nil, err
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("ollama returned empty embedding")
	}
	return out.Embedding, nil
}

func (o *Ollama) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := o.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

func (o *Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	req := ollamaGenerateRequest{
		Model:  o.cfg.Model,
		Prompt: prompt,
		Stream: false,
		Options: map[string]any{
			"temperature": o.cfg.Temperature,
		},
	}
	if o.cfg.MaxTokens > 0 {
		req.Options["num_predict"] = o.cfg.MaxTokens
	}

	var out ollamaGenerateResponse
	if err := o.post(ctx, "/api/generate", req, &out); err != nil {
		return "", err
	}
	return out.Response, nil
}

// Ping reports whether the Ollama daemon is reachable. Used by provider
// auto-selection at startup.
func (o *Ollama) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.cfg.BaseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	res, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama unreachable: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama status %d", res.StatusCode)
	}
	return nil
}

const (
	postAttempts    = 3
	retryBackoff    = 500 * time.Millisecond
	retryBackoffCap = 4 * time.Second
)

// post sends one JSON request, retrying transient daemon failures with a
// capped backoff.
func (o *Ollama) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < postAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(reliability.ExponentialBackoff(attempt-1, retryBackoff, retryBackoffCap)):
			}
		}

		retryable, err := o.postOnce(ctx, path, payload, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable {
			return err
		}
	}
	return lastErr
}

func (o *Ollama) postOnce(ctx context.Context, path string, payload []byte, out any) (retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := o.client.Do(req)
	if err != nil {
		return ctx.Err() == nil, fmt.Errorf("calling ollama: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return reliability.IsRetryableHTTPStatus(res.StatusCode),
			fmt.Errorf("ollama %s status %d: %s", path, res.StatusCode, strings.TrimSpace(string(detail)))
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return false, nil
}
