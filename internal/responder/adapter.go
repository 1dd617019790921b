// Package responder generates the AI reply for a patient message. The
// backend is pluggable; reply quality is out of scope here. Callers run
// outbound text through the guardrail filter before showing it to anyone.
package responder

import (
	"context"
	"strings"
)

// SystemPrompt fixes the assistant's register for every backend.
const SystemPrompt = "You are a compassionate AI therapist. Respond with empathy and support. Keep responses to 2-3 sentences."

// Request is one reply request.
type Request struct {
	SessionID string
	UserID    string
	Text      string
}

// Response is the generated reply.
type Response struct {
	Text string
}

// Adapter produces a reply for a patient message.
type Adapter interface {
	Reply(ctx context.Context, req Request) (Response, error)
	Name() string
}

// Config selects and configures the backend chain.
type Config struct {
	PrimaryURL  string
	FallbackURL string
	Model       string
}

// New builds the adapter chain: primary HTTP backend with optional HTTP
// fallback, or the mock when nothing is configured.
func New(cfg Config, onFailover func()) Adapter {
	primaryURL := strings.TrimSpace(cfg.PrimaryURL)
	fallbackURL := strings.TrimSpace(cfg.FallbackURL)

	if primaryURL == "" && fallbackURL == "" {
		return NewMockAdapter()
	}
	if primaryURL == "" {
		return NewHTTPAdapter("fallback", fallbackURL, cfg.Model)
	}
	primary := NewHTTPAdapter("primary", primaryURL, cfg.Model)
	if fallbackURL == "" {
		return primary
	}
	return NewFallbackAdapter(primary, NewHTTPAdapter("fallback", fallbackURL, cfg.Model), onFailover)
}
