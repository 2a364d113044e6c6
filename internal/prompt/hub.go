package prompt

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Hub fetches a prompt template from a remote endpoint. It is available
// only when a URL is configured; any fetch failure makes the chain fall
// through to the next provider instead of surfacing an error to the caller.
//
// The fetched template must contain {context} and {question} placeholders.
type Hub struct {
	url    string
	client *http.Client
}

func NewHub(url string) *Hub {
	return &Hub{
		url: strings.TrimSpace(url),
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (h *Hub) Name() string    { return "hub" }
func (h *Hub) Available() bool { return h.url != "" }

func (h *Hub) Build(req Request) (string, error) {
	res, err := h.client.Get(h.url)
	if err != nil {
		return "", fmt.Errorf("fetch hub template: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("hub template status %d", res.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("read hub template: %w", err)
	}

	tmpl := string(body)
	if !strings.Contains(tmpl, "{context}") || !strings.Contains(tmpl, "{question}") {
		return "", fmt.Errorf("hub template missing {context} or {question} placeholder")
	}
	out := strings.ReplaceAll(tmpl, "{context}", req.Context)
	out = strings.ReplaceAll(out, "{question}", req.Question)
	return out, nil
}
