// Package llm provides the chat-completion capability used by all agents.
// Two backends are supported: the OpenRouter HTTP API (default) and the
// Anthropic Messages API.
package llm

import (
	"context"
	"fmt"
)

// Message is one turn in a chat-completion conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatClient sends a message sequence to a hosted model and returns the
// assistant text. Temperature is fixed at 0 by every implementation.
type ChatClient interface {
	Chat(ctx context.Context, model string, messages []Message) (string, error)
}

// TransportError reports an outbound HTTP failure: network error, timeout,
// or a non-2xx response from the provider.
type TransportError struct {
	Provider string
	Status   int
	Err      error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s status code: %d", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
