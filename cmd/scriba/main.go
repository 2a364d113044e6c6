package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/gbellini/scriba/internal/config"
	"github.com/gbellini/scriba/internal/httpapi"
	"github.com/gbellini/scriba/internal/ingest"
	"github.com/gbellini/scriba/internal/llm"
	"github.com/gbellini/scriba/internal/memory"
	"github.com/gbellini/scriba/internal/observability"
	"github.com/gbellini/scriba/internal/prompt"
	"github.com/gbellini/scriba/internal/rag"
	"github.com/gbellini/scriba/internal/store"
	"github.com/gbellini/scriba/internal/vectorindex"
)

func main() {
	// A missing .env is fine; the environment itself still applies.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()

	st, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("store init failed: %v", err)
	}
	defer st.Close()
	if cfg.DatabaseURL == "" {
		log.Printf("store: in-memory (DATABASE_URL not set)")
	} else {
		log.Printf("store: postgres")
	}

	provider, err := llm.New(ctx, cfg.LLMProvider, llm.OllamaConfig{
		BaseURL:        cfg.OllamaBaseURL,
		Model:          cfg.LLMModel,
		EmbeddingModel: cfg.EmbeddingModel,
		Temperature:    cfg.LLMTemperature,
		MaxTokens:      cfg.LLMMaxTokens,
	})
	if err != nil {
		log.Fatalf("llm provider init failed: %v", err)
	}

	index, err := vectorindex.New(ctx, cfg.DatabaseURL, provider, cfg.SimilarityThreshold, cfg.EmbeddingDim)
	if err != nil {
		log.Fatalf("vector index init failed: %v", err)
	}
	defer index.Close()

	if err := os.MkdirAll(cfg.TempUploadDir, 0o755); err != nil {
		log.Fatalf("temp upload dir: %v", err)
	}

	windows := memory.NewWindows(cfg.MemoryWindow)
	pipeline := ingest.NewPipeline(cfg.ChunkSize, cfg.ChunkOverlap, nil)
	prompts := prompt.NewChain(prompt.NewHub(cfg.PromptHubURL), prompt.NewLocal())
	engine := rag.NewEngine(windows, index, prompts, provider, pipeline, cfg.RetrievalK, metrics, nil)

	api := httpapi.New(cfg, st, engine, metrics, nil)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
