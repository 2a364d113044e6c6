// Package prompt selects and renders the prompt handed to the generation
// backend. Two template variants exist: a plain context+question form used
// when a conversation has no memory yet, and a structured form that frames
// recent turns. The switch is a hard branch on history presence, because it
// changes prompt structure rather than just content.
package prompt

import (
	"errors"
	"strings"

	"github.com/gbellini/scriba/internal/memory"
	"github.com/gbellini/scriba/internal/vectorindex"
)

// EmptyContextSentinel is substituted when retrieval returns nothing so the
// generation backend always receives a well-formed context slot.
const EmptyContextSentinel = "No relevant documents found."

// Request carries everything a provider needs to render a prompt.
type Request struct {
	Question string
	Context  string
	History  []memory.Turn
}

// Provider renders a prompt from a request. Providers report availability
// instead of failing, so the chain can skip unconfigured ones without
// treating that as an error.
type Provider interface {
	Name() string
	Available() bool
	Build(req Request) (string, error)
}

// Chain tries providers in order; the first available provider that renders
// successfully wins. A provider's render failure falls through to the next.
type Chain struct {
	providers []Provider
}

func NewChain(providers ...Provider) *Chain {
	return &Chain{providers: providers}
}

var ErrNoProvider = errors.New("no prompt provider available")

func (c *Chain) Build(req Request) (string, error) {
	var lastErr error
	for _, p := range c.providers {
		if !p.Available() {
			continue
		}
		out, err := p.Build(req)
		if err != nil {
			lastErr = err
			continue
		}
		return out, nil
	}
	if lastErr != nil {
		return "", lastErr
	}
	return "", ErrNoProvider
}

// FormatContext concatenates retrieved chunk texts in rank order, separated
// by blank lines. An empty retrieval yields the fixed sentinel.
func FormatContext(results []vectorindex.Result) string {
	if len(results) == 0 {
		return EmptyContextSentinel
	}
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = r.Content
	}
	return strings.Join(parts, "\n\n")
}
