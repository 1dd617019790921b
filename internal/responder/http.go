package responder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/calmlinehq/calmline/internal/reliability"
)

// HTTPAdapter speaks the Ollama-style chat contract: POST <url>/api/chat
// with a message list, non-streaming.
type HTTPAdapter struct {
	name   string
	url    string
	model  string
	client *http.Client
}

func NewHTTPAdapter(name, url, model string) *HTTPAdapter {
	return &HTTPAdapter{
		name:  name,
		url:   strings.TrimRight(strings.TrimSpace(url), "/"),
		model: model,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (a *HTTPAdapter) Name() string { return a.name }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
}

func (a *HTTPAdapter) Reply(ctx context.Context, req Request) (Response, error) {
	payload, err := json.Marshal(chatRequest{
		Model: a.model,
		Messages: []chatMessage{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: req.Text},
		},
	})
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return Response{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := a.client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		if reliability.IsRetryableHTTPStatus(res.StatusCode) {
			return Response{}, fmt.Errorf("%s backend status %d (retryable): %s", a.name, res.StatusCode, string(body))
		}
		return Response{}, fmt.Errorf("%s backend status %d: %s", a.name, res.StatusCode, string(body))
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	text := strings.TrimSpace(parsed.Message.Content)
	if text == "" {
		return Response{}, fmt.Errorf("%s backend returned empty reply", a.name)
	}
	return Response{Text: text}, nil
}
