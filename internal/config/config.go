package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the RAG backend.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	DatabaseURL string

	LLMProvider    string
	OllamaBaseURL  string
	LLMModel       string
	LLMTemperature float64
	LLMMaxTokens   int
	EmbeddingModel string
	EmbeddingDim   int

	PromptHubURL string

	ChunkSize           int
	ChunkOverlap        int
	RetrievalK          int
	SimilarityThreshold float64
	MemoryWindow        int

	MaxUploadBytes int64
	TempUploadDir  string
}

// Load reads environment variables, applies safe defaults, and validates
// combinations that would make the pipeline misbehave at runtime.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "scriba"),
		AllowAnyOrigin:   false,
		DatabaseURL:      stringsTrimSpace("DATABASE_URL"),
		LLMProvider:      envOrDefault("LLM_PROVIDER", "auto"),
		OllamaBaseURL:    envOrDefault("OLLAMA_BASE_URL", "http://localhost:11434"),
		LLMModel:         envOrDefault("LLM_MODEL", "qwen2:0.5b"),
		LLMTemperature:   0.7,
		LLMMaxTokens:     2048,
		EmbeddingModel:   envOrDefault("EMBEDDING_MODEL", "nomic-embed-text"),
		EmbeddingDim:     768,
		PromptHubURL:     stringsTrimSpace("PROMPT_HUB_URL"),
		ChunkSize:        1000,
		ChunkOverlap:     200,
		RetrievalK:       5,
		// Results below this cosine similarity are treated as noise.
		SimilarityThreshold: 0.0,
		MemoryWindow:        5,
		MaxUploadBytes:      50 << 20,
		TempUploadDir:       envOrDefault("TEMP_UPLOAD_DIR", "./temp_uploads"),
		ShutdownTimeout:     15 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.LLMTemperature, err = floatFromEnv("LLM_TEMPERATURE", cfg.LLMTemperature)
	if err != nil {
		return Config{}, err
	}
	cfg.LLMMaxTokens, err = intFromEnv("LLM_MAX_TOKENS", cfg.LLMMaxTokens)
	if err != nil {
		return Config{}, err
	}
	cfg.EmbeddingDim, err = intFromEnv("EMBEDDING_DIM", cfg.EmbeddingDim)
	if err != nil {
		return Config{}, err
	}
	cfg.ChunkSize, err = intFromEnv("CHUNK_SIZE", cfg.ChunkSize)
	if err != nil {
		return Config{}, err
	}
	cfg.ChunkOverlap, err = intFromEnv("CHUNK_OVERLAP", cfg.ChunkOverlap)
	if err != nil {
		return Config{}, err
	}
	cfg.RetrievalK, err = intFromEnv("RETRIEVAL_K", cfg.RetrievalK)
	if err != nil {
		return Config{}, err
	}
	cfg.SimilarityThreshold, err = floatFromEnv("SIMILARITY_THRESHOLD", cfg.SimilarityThreshold)
	if err != nil {
		return Config{}, err
	}
	cfg.MemoryWindow, err = intFromEnv("MEMORY_WINDOW", cfg.MemoryWindow)
	if err != nil {
		return Config{}, err
	}
	maxUpload, err := intFromEnv("MAX_UPLOAD_BYTES", int(cfg.MaxUploadBytes))
	if err != nil {
		return Config{}, err
	}
	cfg.MaxUploadBytes = int64(maxUpload)

	if cfg.ChunkSize < 100 {
		return Config{}, fmt.Errorf("CHUNK_SIZE must be at least 100")
	}
	if cfg.ChunkOverlap < 0 {
		return Config{}, fmt.Errorf("CHUNK_OVERLAP must be >= 0")
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		return Config{}, fmt.Errorf("CHUNK_OVERLAP (%d) must be less than CHUNK_SIZE (%d)", cfg.ChunkOverlap, cfg.ChunkSize)
	}
	if cfg.RetrievalK <= 0 || cfg.RetrievalK > 20 {
		return Config{}, fmt.Errorf("RETRIEVAL_K must be between 1 and 20")
	}
	if cfg.SimilarityThreshold < 0 || cfg.SimilarityThreshold > 1 {
		return Config{}, fmt.Errorf("SIMILARITY_THRESHOLD must be between 0 and 1")
	}
	if cfg.MemoryWindow <= 0 {
		return Config{}, fmt.Errorf("MEMORY_WINDOW must be positive")
	}
	if cfg.LLMTemperature < 0 || cfg.LLMTemperature > 2 {
		return Config{}, fmt.Errorf("LLM_TEMPERATURE must be between 0 and 2")
	}
	if cfg.LLMMaxTokens <= 0 {
		return Config{}, fmt.Errorf("LLM_MAX_TOKENS must be positive")
	}
	if cfg.EmbeddingDim <= 0 {
		return Config{}, fmt.Errorf("EMBEDDING_DIM must be positive")
	}
	if cfg.MaxUploadBytes < 1024 {
		return Config{}, fmt.Errorf("MAX_UPLOAD_BYTES must be at least 1024")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
