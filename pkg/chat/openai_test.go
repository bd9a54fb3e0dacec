package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIClientComplete(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decoding request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"message\":\"hi\"}"}}]}`))
	}))
	defer ts.Close()

	client, err := NewOpenAIClient("test-key",
		WithBaseURL(ts.URL),
		WithModel("test-model"),
	)
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}

	content, err := client.Complete(context.Background(), CompletionRequest{
		Messages:    []Message{{Role: RoleUser, Content: "hello"}},
		Format:      ExtractionFormat(),
		Temperature: 0.1,
		MaxTokens:   2000,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if content != `{"message":"hi"}` {
		t.Errorf("content = %q", content)
	}
	if gotPath != "/chat/completions" {
		t.Errorf("path = %q, want /chat/completions", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q, want bearer key", gotAuth)
	}
	if gotBody["model"] != "test-model" {
		t.Errorf("model = %v, want test-model", gotBody["model"])
	}
	if gotBody["temperature"] != 0.1 {
		t.Errorf("temperature = %v, want 0.1", gotBody["temperature"])
	}
	if gotBody["max_tokens"] != float64(2000) {
		t.Errorf("max_tokens = %v, want 2000", gotBody["max_tokens"])
	}

	format, ok := gotBody["response_format"].(map[string]any)
	if !ok {
		t.Fatalf("response_format = %v, want object", gotBody["response_format"])
	}
	if format["type"] != "json_schema" {
		t.Errorf("response_format.type = %v, want json_schema", format["type"])
	}
	jsonSchema, _ := format["json_schema"].(map[string]any)
	if jsonSchema["name"] != "chat_response" || jsonSchema["strict"] != true {
		t.Errorf("json_schema = %v, want chat_response strict", jsonSchema)
	}
}

func TestOpenAIClientServiceError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit_error"}}`))
	}))
	defer ts.Close()

	client, err := NewOpenAIClient("test-key", WithBaseURL(ts.URL))
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}

	_, err = client.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	})

	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("error = %v, want ServiceError", err)
	}
	if serviceErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want 429", serviceErr.StatusCode)
	}
	if serviceErr.Message != "rate limited" {
		t.Errorf("Message = %q, want rate limited", serviceErr.Message)
	}
}

func TestOpenAIClientTransportError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	refused := ts.URL
	ts.Close()

	client, err := NewOpenAIClient("test-key", WithBaseURL(refused))
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}

	_, err = client.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	})

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("error = %v, want TransportError", err)
	}
}

func TestOpenAIClientNoChoices(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer ts.Close()

	client, err := NewOpenAIClient("test-key", WithBaseURL(ts.URL))
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}

	_, err = client.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	})

	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("error = %v, want ServiceError for empty choices", err)
	}
}

func TestNewOpenAIClientRequiresKey(t *testing.T) {
	if _, err := NewOpenAIClient(""); err == nil {
		t.Fatal("NewOpenAIClient(\"\") error = nil, want error")
	}
	if _, err := NewOpenAIClient("   "); err == nil {
		t.Fatal("NewOpenAIClient(blank) error = nil, want error")
	}
}
