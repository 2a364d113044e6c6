package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestProcessPlainText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	content := strings.Repeat("the quick brown fox jumps over the lazy dog ", 60)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	p := NewPipeline(1000, 200, nil)
	res := p.Process(context.Background(), path, "text/plain", map[string]string{"source": "notes.txt"})
	if !res.OK() {
		t.Fatalf("Process() failed: %s", res.Err)
	}
	if res.ChunkCount != len(res.Chunks) || res.ChunkCount == 0 {
		t.Fatalf("ChunkCount = %d, chunks = %d", res.ChunkCount, len(res.Chunks))
	}
	if res.TotalTokens == 0 {
		t.Fatalf("TotalTokens = 0, want > 0")
	}
	for i, c := range res.Chunks {
		if c.Source != "notes.txt" {
			t.Fatalf("chunk %d source = %q, want notes.txt", i, c.Source)
		}
		if c.Position != i {
			t.Fatalf("chunk %d position = %d", i, c.Position)
		}
		if c.Metadata["source"] != "notes.txt" {
			t.Fatalf("chunk %d metadata source = %q", i, c.Metadata["source"])
		}
	}
}

func TestProcessMissingFileIsStructuredFailure(t *testing.T) {
	p := NewPipeline(1000, 200, nil)
	res := p.Process(context.Background(), "/nonexistent/file.txt", "text/plain", nil)
	if res.OK() {
		t.Fatalf("Process() succeeded on missing file")
	}
	if len(res.Chunks) != 0 || res.ChunkCount != 0 || res.TotalTokens != 0 {
		t.Fatalf("failure result should carry an empty chunk set: %+v", res)
	}
}

func TestProcessRejectsBinaryAsPlainText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bin.txt")
	if err := os.WriteFile(path, []byte{0xff, 0xfe, 0x00, 0x80, 0x81}, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	p := NewPipeline(1000, 200, nil)
	res := p.Process(context.Background(), path, "text/plain", nil)
	if res.OK() {
		t.Fatalf("Process() accepted invalid UTF-8 as text/plain")
	}
}

func TestProcessGenericLoaderSalvagesText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mystery.bin")
	data := append([]byte("useful words survive "), 0x00, 0x01, 0x02)
	data = append(data, []byte("more text")...)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	p := NewPipeline(1000, 200, nil)
	res := p.Process(context.Background(), path, "application/octet-stream", nil)
	if !res.OK() {
		t.Fatalf("Process() failed: %s", res.Err)
	}
	joined := ""
	for _, c := range res.Chunks {
		joined += c.Content + " "
	}
	if !strings.Contains(joined, "useful words survive") || !strings.Contains(joined, "more text") {
		t.Fatalf("generic loader lost text: %q", joined)
	}
}

func TestProcessDefaultsSourceToPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plain.txt")
	if err := os.WriteFile(path, []byte("hello world"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	p := NewPipeline(1000, 200, nil)
	res := p.Process(context.Background(), path, "text/plain", nil)
	if !res.OK() {
		t.Fatalf("Process() failed: %s", res.Err)
	}
	if res.Chunks[0].Source != path {
		t.Fatalf("source = %q, want %q", res.Chunks[0].Source, path)
	}
}
