// Package chat turns natural-language messages into structured form data
// using a chat-completions endpoint with structured output. The Collaborator
// composes the prompt from the schema descriptor and current values, runs one
// request/response round trip per turn, and hands the extracted field patch
// back to the caller; it never writes into a session itself.
package chat

import (
	"context"
)

// Wire-level roles of the chat-completions protocol.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat-completions message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ResponseFormat asks the model for structured output conforming to a JSON
// schema.
type ResponseFormat struct {
	Name   string
	Schema map[string]any
	Strict bool
}

// CompletionRequest is one call to the model.
type CompletionRequest struct {
	Messages    []Message
	Format      *ResponseFormat
	Temperature float64
	MaxTokens   int
}

// Client abstracts the chat-completions endpoint so the Collaborator can be
// exercised with a scripted stand-in. Complete returns the raw content of the
// first choice.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
