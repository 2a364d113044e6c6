package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/gbellini/scriba/internal/config"
	"github.com/gbellini/scriba/internal/ingest"
	"github.com/gbellini/scriba/internal/llm"
	"github.com/gbellini/scriba/internal/memory"
	"github.com/gbellini/scriba/internal/prompt"
	"github.com/gbellini/scriba/internal/rag"
	"github.com/gbellini/scriba/internal/store"
	"github.com/gbellini/scriba/internal/vectorindex"
)

func newTestServer(t *testing.T) (*httptest.Server, store.Store) {
	t.Helper()
	return newTestServerWithGenerator(t, llm.NewMock())
}

func newTestServerWithGenerator(t *testing.T, gen llm.Generator) (*httptest.Server, store.Store) {
	t.Helper()

	cfg := config.Config{
		AllowAnyOrigin: true,
		MaxUploadBytes: 1 << 20,
		TempUploadDir:  t.TempDir(),
	}
	st := store.NewInMemory()
	windows := memory.NewWindows(5)
	mock := llm.NewMock()
	index := vectorindex.NewInMemory(mock, 0)
	chain := prompt.NewChain(prompt.NewLocal())
	pipeline := ingest.NewPipeline(1000, 200, nil)
	engine := rag.NewEngine(windows, index, chain, gen, pipeline, 5, nil, nil)

	srv := New(cfg, st, engine, nil, nil)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, st
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealthEndpoints(t *testing.T) {
	ts, _ := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz", "/"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET %s status = %d, want 200", path, resp.StatusCode)
		}
	}
}

func TestConversationLifecycle(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/conversations", map[string]string{})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}
	var conv store.Conversation
	decodeBody(t, resp, &conv)
	if conv.ID == 0 || conv.Title != "New Conversation" {
		t.Fatalf("unexpected conversation: %+v", conv)
	}

	resp, err := http.Get(ts.URL + fmt.Sprintf("/api/conversations/%d", conv.ID))
	if err != nil {
		t.Fatalf("GET conversation: %v", err)
	}
	var got store.Conversation
	decodeBody(t, resp, &got)
	if got.ID != conv.ID {
		t.Fatalf("got conversation %d, want %d", got.ID, conv.ID)
	}

	resp, _ = http.Get(ts.URL + "/api/conversations")
	var list []store.Conversation
	decodeBody(t, resp, &list)
	if len(list) != 1 {
		t.Fatalf("len(list) = %d, want 1", len(list))
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+fmt.Sprintf("/api/conversations/%d", conv.ID), nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE conversation: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d, want 200", resp.StatusCode)
	}

	resp, _ = http.Get(ts.URL + fmt.Sprintf("/api/conversations/%d", conv.ID))
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", resp.StatusCode)
	}
}

func TestGetConversationNotFound(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, _ := http.Get(ts.URL + "/api/conversations/999")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}

	resp, _ = http.Get(ts.URL + "/api/conversations/not-a-number")
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestChatPersistsTurnsAndTitles(t *testing.T) {
	ts, st := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/conversations", map[string]string{})
	var conv store.Conversation
	decodeBody(t, resp, &conv)

	resp = postJSON(t, ts.URL+fmt.Sprintf("/api/conversations/%d/chat", conv.ID),
		map[string]string{"content": "what is scriba?"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("chat status = %d, want 200", resp.StatusCode)
	}
	var chat chatResponse
	decodeBody(t, resp, &chat)
	if chat.ConversationID != conv.ID || chat.Answer == "" {
		t.Fatalf("unexpected chat response: %+v", chat)
	}
	if chat.SourcesUsed == nil {
		t.Fatalf("sources_used must be a JSON array, got null")
	}

	resp, err := http.Get(ts.URL + fmt.Sprintf("/api/conversations/%d/messages", conv.ID))
	if err != nil {
		t.Fatalf("GET messages: %v", err)
	}
	var msgs []map[string]any
	decodeBody(t, resp, &msgs)
	if len(msgs) != 2 {
		t.Fatalf("persisted %d messages, want 2", len(msgs))
	}
	if msgs[0]["role"] != "user" || msgs[1]["role"] != "assistant" {
		t.Fatalf("unexpected roles: %v %v", msgs[0]["role"], msgs[1]["role"])
	}
	if _, ok := msgs[1]["sources"].([]any); !ok {
		t.Fatalf("assistant message sources not embedded as array: %v", msgs[1]["sources"])
	}

	got, err := st.GetConversation(context.Background(), conv.ID)
	if err != nil {
		t.Fatalf("GetConversation() error = %v", err)
	}
	if got.Title == "New Conversation" {
		t.Fatalf("first turn should have titled the conversation")
	}
}

// failAfterFirstGenerator answers the first call and errors on every later
// one, so the chat turn succeeds while title generation fails.
type failAfterFirstGenerator struct {
	mu    sync.Mutex
	calls int
}

func (g *failAfterFirstGenerator) Generate(context.Context, string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.calls > 1 {
		return "", errors.New("model unavailable")
	}
	return "an answer", nil
}

func TestTitleFallbackTruncatesMultibyteQuestion(t *testing.T) {
	ts, st := newTestServerWithGenerator(t, &failAfterFirstGenerator{})

	resp := postJSON(t, ts.URL+"/api/conversations", map[string]string{})
	var conv store.Conversation
	decodeBody(t, resp, &conv)

	question := strings.Repeat("ü", 60)
	resp = postJSON(t, ts.URL+fmt.Sprintf("/api/conversations/%d/chat", conv.ID),
		map[string]string{"content": question})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("chat status = %d, want 200", resp.StatusCode)
	}
	resp.Body.Close()

	got, err := st.GetConversation(context.Background(), conv.ID)
	if err != nil {
		t.Fatalf("GetConversation() error = %v", err)
	}
	if !utf8.ValidString(got.Title) {
		t.Fatalf("fallback title is not valid UTF-8: %q", got.Title)
	}
	if want := strings.Repeat("ü", 50) + "..."; got.Title != want {
		t.Fatalf("fallback title = %q, want %q", got.Title, want)
	}
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/conversations", map[string]string{})
	var conv store.Conversation
	decodeBody(t, resp, &conv)

	resp = postJSON(t, ts.URL+fmt.Sprintf("/api/conversations/%d/chat", conv.ID),
		map[string]string{"content": "   "})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	var body errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if !strings.Contains(body.Error, "cannot be empty") {
		t.Fatalf("error = %q, want empty-content validation text", body.Error)
	}
}

func TestChatUnknownConversation(t *testing.T) {
	ts, _ := newTestServer(t)
	resp := postJSON(t, ts.URL+"/api/conversations/404/chat", map[string]string{"content": "hi"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}
