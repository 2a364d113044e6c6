// Package ingest loads raw document files, splits them into overlapping
// text chunks, and hands the chunks to the vector index.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gbellini/scriba/internal/vectorindex"
)

// Result is the structured outcome of processing one document. A loader
// failure never crashes the pipeline: it yields a Result with an empty
// chunk set and Err describing what went wrong.
type Result struct {
	Chunks      []vectorindex.Chunk
	ChunkCount  int
	TotalTokens int
	Err         string
}

// OK reports whether the document was processed successfully.
func (r Result) OK() bool { return r.Err == "" }

// Pipeline turns files into indexed-ready chunks.
type Pipeline struct {
	splitter *Splitter
	logger   *slog.Logger
}

func NewPipeline(chunkSize, chunkOverlap int, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		splitter: NewSplitter(chunkSize, chunkOverlap),
		logger:   logger,
	}
}

// Process loads the file with a loader picked by declared MIME type, splits
// it, and tags every chunk with its source identity. The source is
// meta["source"] when set, else the path. TotalTokens is a whitespace word
// count, an approximation rather than an exact tokenizer count.
func (p *Pipeline) Process(ctx context.Context, path, fileType string, meta map[string]string) Result {
	if err := ctx.Err(); err != nil {
		return Result{Err: err.Error()}
	}

	text, err := p.loadSafely(path, fileType)
	if err != nil {
		p.logger.Error("document load failed", "path", path, "file_type", fileType, "error", err)
		return Result{Err: err.Error()}
	}

	source := path
	if s, ok := meta["source"]; ok && s != "" {
		source = s
	}

	pieces := p.splitter.Split(text)
	chunks := make([]vectorindex.Chunk, 0, len(pieces))
	totalTokens := 0
	for i, piece := range pieces {
		chunkMeta := make(map[string]string, len(meta))
		for k, v := range meta {
			chunkMeta[k] = v
		}
		chunkMeta["source"] = source
		chunks = append(chunks, vectorindex.Chunk{
			Content:  piece,
			Source:   source,
			Position: i,
			Metadata: chunkMeta,
		})
		totalTokens += len(strings.Fields(piece))
	}

	return Result{
		Chunks:      chunks,
		ChunkCount:  len(chunks),
		TotalTokens: totalTokens,
	}
}

// loadSafely converts loader panics on corrupt input into errors so a bad
// document in a batch cannot take the process down.
func (p *Pipeline) loadSafely(path, fileType string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("loader panic on %s: %v", path, r)
		}
	}()
	return loaderFor(fileType)(path)
}
