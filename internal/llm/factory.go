package llm

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

// New selects a provider by mode. "auto" probes the Ollama daemon and falls
// back to the mock with a log line so a missing model server never prevents
// the service from starting.
func New(ctx context.Context, mode string, cfg OllamaConfig) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "ollama":
		return NewOllama(cfg), nil
	case "mock":
		log.Printf("llm provider: mock")
		return NewMock(), nil
	case "", "auto":
		o := NewOllama(cfg)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := o.Ping(pingCtx); err != nil {
			log.Printf("llm provider: mock (ollama unavailable: %v)", err)
			return NewMock(), nil
		}
		log.Printf("llm provider: ollama (%s)", cfg.Model)
		return o, nil
	default:
		return nil, fmt.Errorf("invalid LLM_PROVIDER: %q (expected auto|ollama|mock)", mode)
	}
}
