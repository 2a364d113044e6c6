// Package rag composes conversation memory, the vector index, and the
// prompt chain into a single chat operation against a generation backend.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gbellini/scriba/internal/ingest"
	"github.com/gbellini/scriba/internal/llm"
	"github.com/gbellini/scriba/internal/memory"
	"github.com/gbellini/scriba/internal/observability"
	"github.com/gbellini/scriba/internal/policy"
	"github.com/gbellini/scriba/internal/prompt"
	"github.com/gbellini/scriba/internal/vectorindex"
)

// Source identifies one retrieved passage that informed an answer.
type Source struct {
	Source     string  `json:"source"`
	Position   int     `json:"position"`
	Similarity float64 `json:"similarity"`
}

// ChatResult is the outcome of one chat turn.
type ChatResult struct {
	ConversationID int64    `json:"conversation_id"`
	Answer         string   `json:"answer"`
	Sources        []Source `json:"sources"`
}

// IngestStats summarizes one document's trip through the pipeline.
type IngestStats struct {
	ChunkCount  int
	TotalTokens int
}

// Engine is the generation orchestrator. It is safe for concurrent use:
// each chat turn runs on its caller's goroutine, memory mutations are
// serialized by the window registry's lock, and the index and generator are
// assumed safe for concurrent calls.
type Engine struct {
	windows    *memory.Windows
	index      vectorindex.Index
	prompts    *prompt.Chain
	generator  llm.Generator
	pipeline   *ingest.Pipeline
	retrievalK int
	metrics    *observability.Metrics
	logger     *slog.Logger
}

func NewEngine(
	windows *memory.Windows,
	index vectorindex.Index,
	prompts *prompt.Chain,
	generator llm.Generator,
	pipeline *ingest.Pipeline,
	retrievalK int,
	metrics *observability.Metrics,
	logger *slog.Logger,
) *Engine {
	if retrievalK <= 0 {
		retrievalK = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		windows:    windows,
		index:      index,
		prompts:    prompts,
		generator:  generator,
		pipeline:   pipeline,
		retrievalK: retrievalK,
		metrics:    metrics,
		logger:     logger,
	}
}

// Chat answers a question for one conversation. The pipeline is fixed:
//
//  1. snapshot the conversation's memory window
//  2. record the question as a user turn (before generation, so concurrent
//     calls on the same conversation observe a consistent turn order)
//  3. similarity-query the index with the raw question
//  4. build the prompt — with-history template iff the snapshot was
//     non-empty — and invoke the generation backend
//  5. record the answer as an assistant turn
//
// A failure in stages 3-4 leaves the user turn dangling in memory. That is
// accepted: memory is a best-effort cache, not the transcript of record,
// and the relational store only sees completed turns.
func (e *Engine) Chat(ctx context.Context, conversationID int64, question string) (ChatResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return ChatResult{}, fmt.Errorf("question must not be empty")
	}

	hist := e.windows.History(conversationID)
	e.windows.Append(conversationID, memory.RoleUser, question)

	retrieveStart := time.Now()
	results, err := e.index.Query(ctx, question, e.retrievalK)
	if err != nil {
		return ChatResult{}, fmt.Errorf("similarity query: %w", err)
	}
	e.metrics.ObserveRetrieval(time.Since(retrieveStart))

	p, err := e.prompts.Build(prompt.Request{
		Question: question,
		Context:  prompt.FormatContext(results),
		History:  hist.Turns,
	})
	if err != nil {
		return ChatResult{}, fmt.Errorf("build prompt: %w", err)
	}

	genStart := time.Now()
	answer, err := e.generator.Generate(ctx, p)
	if err != nil {
		return ChatResult{}, fmt.Errorf("generate answer: %w", err)
	}
	e.metrics.ObserveGeneration(time.Since(genStart))

	e.windows.Append(conversationID, memory.RoleAssistant, answer)

	// Question text may carry PII; never log it raw.
	redacted, _ := policy.RedactPII(question)
	e.logger.Debug("chat turn completed",
		"conversation", conversationID, "question", redacted, "retrieved", len(results))

	sources := make([]Source, 0, len(results))
	for _, r := range results {
		sources = append(sources, Source{Source: r.Source, Position: r.Position, Similarity: r.Similarity})
	}
	return ChatResult{
		ConversationID: conversationID,
		Answer:         answer,
		Sources:        sources,
	}, nil
}

// AddDocument processes one file and indexes its chunks. An ingestion
// failure returns an error and leaves the index untouched.
func (e *Engine) AddDocument(ctx context.Context, path, fileType string, meta map[string]string) (IngestStats, error) {
	res := e.pipeline.Process(ctx, path, fileType, meta)
	if !res.OK() {
		e.metrics.IncDocumentIngested("failed")
		return IngestStats{}, fmt.Errorf("process document: %s", res.Err)
	}
	if len(res.Chunks) == 0 {
		e.metrics.IncDocumentIngested("empty")
		return IngestStats{}, nil
	}

	n, err := e.index.Add(ctx, res.Chunks)
	if err != nil {
		e.metrics.IncDocumentIngested("failed")
		return IngestStats{}, fmt.Errorf("index chunks: %w", err)
	}
	e.metrics.IncDocumentIngested("ok")
	e.metrics.AddChunksIndexed(n)
	e.logger.Info("document indexed", "path", path, "chunks", n, "tokens", res.TotalTokens)
	return IngestStats{ChunkCount: n, TotalTokens: res.TotalTokens}, nil
}

// AddDocuments processes a batch with per-document isolation: a failing
// document is logged and skipped, the rest of the batch continues.
func (e *Engine) AddDocuments(ctx context.Context, paths []string, fileTypes []string, meta map[string]string) IngestStats {
	var stats IngestStats
	for i, path := range paths {
		fileType := ""
		if i < len(fileTypes) {
			fileType = fileTypes[i]
		}
		s, err := e.AddDocument(ctx, path, fileType, meta)
		if err != nil {
			e.logger.Error("document skipped", "path", path, "error", err)
			continue
		}
		stats.ChunkCount += s.ChunkCount
		stats.TotalTokens += s.TotalTokens
	}
	return stats
}

// DeleteSource removes every indexed chunk whose source identity matches.
func (e *Engine) DeleteSource(ctx context.Context, source string) error {
	return e.index.DeleteBySource(ctx, source)
}

// ClearConversation drops a conversation's memory window.
func (e *Engine) ClearConversation(conversationID int64) {
	e.windows.Clear(conversationID)
}

// ClearAll drops every memory window.
func (e *Engine) ClearAll() {
	e.windows.ClearAll()
}

// Title asks the generation backend for a concise conversation title based
// on the opening question. Callers fall back to truncating the question
// when this fails.
func (e *Engine) Title(ctx context.Context, question string) (string, error) {
	question = TruncateRunes(question, 100)
	p := fmt.Sprintf("Generate a concise title (maximum 6 words) for a conversation that starts with this question: '%s'. Only respond with the title, nothing else.", question)
	out, err := e.generator.Generate(ctx, p)
	if err != nil {
		return "", fmt.Errorf("generate title: %w", err)
	}
	title := strings.TrimSpace(out)
	title = strings.Trim(title, `"'`)
	title = strings.TrimSpace(title)
	if title == "" {
		return "", fmt.Errorf("empty title generated")
	}
	if utf8.RuneCountInString(title) > 60 {
		title = TruncateRunes(title, 60) + "..."
	}
	return title, nil
}

// TruncateRunes cuts s to at most n runes. Cutting on a rune boundary keeps
// multibyte text valid UTF-8.
func TruncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
