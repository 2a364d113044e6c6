package prompt

import (
	"fmt"
	"strings"

	"github.com/gbellini/scriba/internal/memory"
)

// Both templates carry the same standing refusal instruction: the backend
// is told to decline rather than hallucinate when the context is thin. This
// is a prompt-level contract, not something the orchestrator can verify.
const (
	noHistoryTemplate = `You are a helpful assistant that answers questions based on the provided context.
Use the following context to answer the question. If the answer is not in the context,
say "I don't have enough information in the provided context to answer that question."

Context: %s

Question: %s

Answer:`

	withHistorySystem = `You are a helpful assistant that answers questions based on the provided context and conversation history.
Use the following context to answer the question. If the answer is not in the context,
say "I don't have enough information in the provided context to answer that question."

Consider the conversation history when formulating your response to maintain continuity.

Context: %s`
)

// Local renders prompts from built-in templates and is always available.
type Local struct{}

func NewLocal() *Local { return &Local{} }

func (*Local) Name() string    { return "local" }
func (*Local) Available() bool { return true }

func (*Local) Build(req Request) (string, error) {
	if len(req.History) == 0 {
		return fmt.Sprintf(noHistoryTemplate, req.Context, req.Question), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, withHistorySystem, req.Context)
	sb.WriteString("\n\n")
	for _, turn := range req.History {
		switch turn.Role {
		case memory.RoleAssistant:
			fmt.Fprintf(&sb, "Assistant: %s\n", turn.Content)
		default:
			fmt.Fprintf(&sb, "User: %s\n", turn.Content)
		}
	}
	fmt.Fprintf(&sb, "\nUser: %s\n\nAnswer:", req.Question)
	return sb.String(), nil
}
