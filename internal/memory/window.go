package memory

import "sync"

// Role identifies who produced a conversational turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single entry in a conversation window.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// History is a snapshot of a conversation's recent turns. An empty history
// selects the no-history prompt template downstream, so callers branch on
// Empty() rather than probing the underlying window.
type History struct {
	Turns []Turn
}

func (h History) Empty() bool { return len(h.Turns) == 0 }

// Windows holds per-conversation sliding windows of recent turns. It is a
// working cache, not the transcript of record: the relational store owns
// durable history, and everything here is lost on restart.
//
// A single mutex guards the whole mapping. Mutations are cheap relative to
// generation latency, so finer-grained locking buys nothing here.
type Windows struct {
	mu    sync.Mutex
	k     int
	convs map[int64][]Turn
}

// NewWindows creates a registry of conversation windows bounded to k turns.
func NewWindows(k int) *Windows {
	if k <= 0 {
		k = 5
	}
	return &Windows{
		k:     k,
		convs: make(map[int64][]Turn),
	}
}

// History returns a snapshot of the window for the given conversation,
// creating an empty window lazily on first access.
func (w *Windows) History(conversationID int64) History {
	w.mu.Lock()
	defer w.mu.Unlock()
	turns, ok := w.convs[conversationID]
	if !ok {
		w.convs[conversationID] = nil
		return History{}
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return History{Turns: out}
}

// Append records a turn, evicting the oldest entries beyond the window size.
func (w *Windows) Append(conversationID int64, role Role, content string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	turns := append(w.convs[conversationID], Turn{Role: role, Content: content})
	if len(turns) > w.k {
		turns = turns[len(turns)-w.k:]
	}
	w.convs[conversationID] = turns
}

// Len reports the current window length for a conversation.
func (w *Windows) Len(conversationID int64) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.convs[conversationID])
}

// Clear drops a conversation's window. Clearing an absent conversation is a
// no-op.
func (w *Windows) Clear(conversationID int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.convs, conversationID)
}

// ClearAll drops every window.
func (w *Windows) ClearAll() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.convs = make(map[int64][]Turn)
}
