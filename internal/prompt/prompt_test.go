package prompt

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gbellini/scriba/internal/memory"
	"github.com/gbellini/scriba/internal/vectorindex"
)

func TestFormatContextJoinsInRankOrder(t *testing.T) {
	got := FormatContext([]vectorindex.Result{
		{Chunk: vectorindex.Chunk{Content: "first"}, Similarity: 0.9},
		{Chunk: vectorindex.Chunk{Content: "second"}, Similarity: 0.5},
	})
	if got != "first\n\nsecond" {
		t.Fatalf("FormatContext() = %q", got)
	}
}

func TestFormatContextEmptyUsesSentinel(t *testing.T) {
	if got := FormatContext(nil); got != EmptyContextSentinel {
		t.Fatalf("FormatContext(nil) = %q, want sentinel", got)
	}
}

func TestLocalNoHistoryTemplate(t *testing.T) {
	p := NewLocal()
	out, err := p.Build(Request{Question: "What is X?", Context: "X is a thing."})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !strings.Contains(out, "Context: X is a thing.") {
		t.Fatalf("prompt missing context slot:\n%s", out)
	}
	if !strings.Contains(out, "Question: What is X?") {
		t.Fatalf("prompt missing question slot:\n%s", out)
	}
	if strings.Contains(out, "conversation history") {
		t.Fatalf("no-history template mentions history:\n%s", out)
	}
	if !strings.Contains(out, "I don't have enough information") {
		t.Fatalf("refusal instruction missing:\n%s", out)
	}
}

func TestLocalWithHistoryTemplate(t *testing.T) {
	p := NewLocal()
	out, err := p.Build(Request{
		Question: "And Y?",
		Context:  "Y is another thing.",
		History: []memory.Turn{
			{Role: memory.RoleUser, Content: "What is X?"},
			{Role: memory.RoleAssistant, Content: "X is a thing."},
		},
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !strings.Contains(out, "conversation history") {
		t.Fatalf("with-history framing missing:\n%s", out)
	}
	if !strings.Contains(out, "User: What is X?") || !strings.Contains(out, "Assistant: X is a thing.") {
		t.Fatalf("history turns missing:\n%s", out)
	}
	if !strings.Contains(out, "User: And Y?") {
		t.Fatalf("question missing:\n%s", out)
	}
	if !strings.Contains(out, "I don't have enough information") {
		t.Fatalf("refusal instruction missing:\n%s", out)
	}
}

func TestChainFallsThroughUnavailableAndFailingProviders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	chain := NewChain(NewHub(""), NewHub(srv.URL), NewLocal())
	out, err := chain.Build(Request{Question: "q", Context: "c"})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !strings.Contains(out, "Question: q") {
		t.Fatalf("expected local fallback prompt, got:\n%s", out)
	}
}

func TestChainUsesHubWhenHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("CTX={context} Q={question}"))
	}))
	defer srv.Close()

	chain := NewChain(NewHub(srv.URL), NewLocal())
	out, err := chain.Build(Request{Question: "why", Context: "because"})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if out != "CTX=because Q=why" {
		t.Fatalf("Build() = %q", out)
	}
}

func TestChainErrorsWhenNothingAvailable(t *testing.T) {
	chain := NewChain(NewHub(""))
	if _, err := chain.Build(Request{}); err == nil {
		t.Fatalf("Build() succeeded with no available provider")
	}
}
