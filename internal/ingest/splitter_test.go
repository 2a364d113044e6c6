package ingest

import (
	"strings"
	"testing"
)

func TestSplitShortTextReturnsSingleChunk(t *testing.T) {
	s := NewSplitter(1000, 200)
	chunks := s.Split("a short document")
	if len(chunks) != 1 || chunks[0] != "a short document" {
		t.Fatalf("Split() = %v, want single unchanged chunk", chunks)
	}
}

func TestSplitRespectsChunkSize(t *testing.T) {
	s := NewSplitter(1000, 200)
	text := strings.Repeat("lorem ipsum dolor sit amet consectetur adipiscing elit ", 100)
	chunks := s.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 1000 {
			t.Fatalf("chunk %d has %d chars, want <= 1000", i, len(c))
		}
		if len(c) == 0 {
			t.Fatalf("chunk %d is empty", i)
		}
	}
}

func TestSplitOverlapBound(t *testing.T) {
	s := NewSplitter(1000, 200)
	text := strings.Repeat("alpha bravo charlie delta echo foxtrot golf hotel india ", 120)
	chunks := s.Split(text)
	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks, got %d", len(chunks))
	}
	for i := 0; i < len(chunks)-1; i++ {
		shared := longestSuffixPrefix(chunks[i], chunks[i+1])
		if shared < 1 {
			t.Fatalf("chunks %d and %d share no overlap", i, i+1)
		}
		if shared > 200 {
			t.Fatalf("chunks %d and %d share %d chars, want <= 200", i, i+1, shared)
		}
	}
}

func TestSplitPrefersParagraphBreaks(t *testing.T) {
	s := NewSplitter(120, 0)
	para := strings.Repeat("word ", 20) // ~100 chars
	text := strings.TrimSpace(para) + "\n\n" + strings.TrimSpace(para) + "\n\n" + strings.TrimSpace(para)

	chunks := s.Split(text)
	if len(chunks) != 3 {
		t.Fatalf("Split() produced %d chunks, want 3 (one per paragraph)", len(chunks))
	}
	for i, c := range chunks {
		if strings.Contains(c, "\n\n") {
			t.Fatalf("chunk %d still contains a paragraph break: %q", i, c)
		}
	}
}

func TestSplitFallsBackToCharacters(t *testing.T) {
	s := NewSplitter(100, 10)
	// No separator at all: one 350-char run.
	text := strings.Repeat("x", 350)
	chunks := s.Split(text)
	if len(chunks) < 4 {
		t.Fatalf("expected character-level fallback to produce >= 4 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 100 {
			t.Fatalf("chunk %d has %d chars, want <= 100", i, len(c))
		}
	}
}

func TestSplitReconstructsAllContent(t *testing.T) {
	s := NewSplitter(200, 0)
	text := "First sentence here. Second sentence follows. Third one closes the paragraph.\n\nA second paragraph with more words in it to split across chunks if needed."
	chunks := s.Split(text)
	joined := strings.Join(chunks, " ")
	for _, word := range strings.Fields(text) {
		w := strings.Trim(word, ".,!?")
		if !strings.Contains(joined, w) {
			t.Fatalf("word %q missing from split output", w)
		}
	}
}

// longestSuffixPrefix returns the length of the longest suffix of a that is
// a prefix of b.
func longestSuffixPrefix(a, b string) int {
	max := len(a)
	if len(b) < max {
		max = len(b)
	}
	for n := max; n > 0; n-- {
		if strings.HasPrefix(b, a[len(a)-n:]) {
			return n
		}
	}
	return 0
}
