package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultModel is the structured-output model used unless overridden.
	DefaultModel = "gpt-4o-2024-10-21"

	defaultBaseURL = "https://api.openai.com/v1"
	defaultTimeout = 2 * time.Minute
)

// OpenAIClient talks to an OpenAI-compatible chat-completions endpoint.
type OpenAIClient struct {
	apiKey     string
	model      string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

var _ Client = (*OpenAIClient)(nil)

// OpenAIOption configures the client.
type OpenAIOption func(*OpenAIClient)

// WithModel selects the model identifier sent with every completion.
func WithModel(model string) OpenAIOption {
	return func(c *OpenAIClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithBaseURL points the client at a different OpenAI-compatible endpoint,
// e.g. a local proxy or an alternative provider.
func WithBaseURL(baseURL string) OpenAIOption {
	return func(c *OpenAIClient) {
		if trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/"); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithHTTPClient replaces the underlying transport. The client is cloned per
// call so the configured timeout never mutates the caller's instance.
func WithHTTPClient(client *http.Client) OpenAIOption {
	return func(c *OpenAIClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithCompletionTimeout bounds a single completion round trip.
func WithCompletionTimeout(d time.Duration) OpenAIOption {
	return func(c *OpenAIClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewOpenAIClient builds a client for the given API key.
func NewOpenAIClient(apiKey string, opts ...OpenAIOption) (*OpenAIClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("chat: api key is required")
	}

	c := &OpenAIClient{
		apiKey:     apiKey,
		model:      DefaultModel,
		baseURL:    defaultBaseURL,
		timeout:    defaultTimeout,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

type wireRequest struct {
	Model          string      `json:"model"`
	Messages       []Message   `json:"messages"`
	ResponseFormat *wireFormat `json:"response_format,omitempty"`
	Temperature    float64     `json:"temperature"`
	MaxTokens      int         `json:"max_tokens,omitempty"`
}

type wireFormat struct {
	Type       string         `json:"type"`
	JSONSchema wireJSONSchema `json:"json_schema"`
}

type wireJSONSchema struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
	Strict bool           `json:"strict"`
}

type wireResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

type wireError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete performs one chat-completions call and returns the first choice's
// content.
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	payload := wireRequest{
		Model:       c.model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.Format != nil {
		payload.ResponseFormat = &wireFormat{
			Type: "json_schema",
			JSONSchema: wireJSONSchema{
				Name:   req.Format.Name,
				Schema: req.Format.Schema,
				Strict: req.Format.Strict,
			},
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("chat: encoding completion request: %w", err)
	}

	endpoint := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("chat: building completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	clone := *c.httpClient
	clone.Timeout = c.timeout

	resp, err := clone.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, context.Canceled) {
			return "", ctxErr
		}
		return "", &TransportError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransportError{Endpoint: endpoint, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &ServiceError{
			StatusCode: resp.StatusCode,
			Message:    serviceMessage(raw),
		}
	}

	var decoded wireResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", &ServiceError{Message: "completion response is not valid JSON", Err: err}
	}
	if len(decoded.Choices) == 0 {
		return "", &ServiceError{Message: "no choices returned"}
	}
	return decoded.Choices[0].Message.Content, nil
}

// serviceMessage digs the human-readable error out of an OpenAI-style error
// body, falling back to the raw payload.
func serviceMessage(raw []byte) string {
	var decoded wireError
	if err := json.Unmarshal(raw, &decoded); err == nil && decoded.Error.Message != "" {
		return decoded.Error.Message
	}
	text := strings.TrimSpace(string(raw))
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}
