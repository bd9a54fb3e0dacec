package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/gofiber/fiber/v2"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/goliatone/go-formflow/pkg/chat"
	"github.com/goliatone/go-formflow/pkg/config"
	"github.com/goliatone/go-formflow/pkg/gateway"
	"github.com/goliatone/go-formflow/pkg/render/template/gotemplate"
	"github.com/goliatone/go-formflow/pkg/session"
	"github.com/goliatone/go-formflow/pkg/voice"
)

const signupDefinition = `
title: Signup
type: object
required: [name, age]
properties:
  name:
    type: string
  age:
    type: integer
  role:
    type: string
    enum: [admin, user, guest]
    default: user
`

type scriptedChatClient struct {
	replies []string
	calls   int
}

func (c *scriptedChatClient) Complete(_ context.Context, _ chat.CompletionRequest) (string, error) {
	if c.calls >= len(c.replies) {
		return "", &chat.ServiceError{Message: "script exhausted"}
	}
	reply := c.replies[c.calls]
	c.calls++
	return reply, nil
}

type stubTranscriber struct {
	text string
	err  error
}

func (s *stubTranscriber) Transcribe(_ context.Context, _ *voice.Clip) (string, error) {
	return s.text, s.err
}

func newTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.App.Name = "formflow-test"
	cfg.App.Version = "0.0.1"
	return cfg
}

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	srv := New(newTestConfig(), zap.NewNop(), opts...)
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func newScriptedCollaborator(t *testing.T, replies ...string) *chat.Collaborator {
	t.Helper()
	engine, err := gotemplate.New(gotemplate.WithFS(fstest.MapFS{}))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	prompts, err := chat.NewPromptBuilder(engine)
	if err != nil {
		t.Fatalf("new prompt builder: %v", err)
	}
	collab, err := chat.NewCollaborator(&scriptedChatClient{replies: replies}, prompts)
	if err != nil {
		t.Fatalf("new collaborator: %v", err)
	}
	return collab
}

func performJSON(t *testing.T, app *fiber.App, method, path string, payload any) *http.Response {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decodeInto(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func signupView() *SchemaView {
	return &SchemaView{
		ModelName: "SignupRequest",
		Fields: []FieldView{
			{Name: "name", Type: "text", Required: true},
			{Name: "age", Type: "integer", Required: true},
			{Name: "role", Type: "enumerated", Options: []string{"admin", "user", "guest"}, Default: "user"},
		},
	}
}

func TestRootAndHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	resp := performJSON(t, srv.App(), http.MethodGet, "/", nil)
	var root map[string]any
	decodeInto(t, resp, &root)
	if root["status"] != "healthy" || root["message"] != "formflow-test API" {
		t.Errorf("root payload = %v", root)
	}

	resp = performJSON(t, srv.App(), http.MethodGet, "/health", nil)
	var health map[string]string
	decodeInto(t, resp, &health)
	if health["status"] != "healthy" {
		t.Errorf("health payload = %v", health)
	}

	resp = performJSON(t, srv.App(), http.MethodGet, "/api/v1/health", nil)
	var detailed map[string]any
	decodeInto(t, resp, &detailed)
	if detailed["chat"] != false {
		t.Errorf("chat capability = %v, want false without a collaborator", detailed["chat"])
	}
	endpoints, ok := detailed["endpoints"].(map[string]any)
	if !ok || endpoints["parse_schema"] != "/api/v1/parse-schema" {
		t.Errorf("endpoints payload = %v", detailed["endpoints"])
	}
}

func TestParseSchemaEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp := performJSON(t, srv.App(), http.MethodPost, "/api/v1/parse-schema", SchemaParseRequest{
		ModelName:       "SignupRequest",
		ModelDefinition: signupDefinition,
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var out SchemaParseResponse
	decodeInto(t, resp, &out)
	if !out.Success || out.ModelName != "SignupRequest" {
		t.Fatalf("response = %+v", out)
	}

	want := &SchemaView{
		ModelName: "SignupRequest",
		Title:     "Signup",
		Fields: []FieldView{
			{Name: "name", Type: "text", Required: true},
			{Name: "age", Type: "integer", Required: true},
			{Name: "role", Type: "enumerated", Options: []string{"admin", "user", "guest"}, Default: "user"},
		},
	}
	if diff := cmp.Diff(want, out.Schema); diff != "" {
		t.Fatalf("schema view mismatch (-want +got):\n%s", diff)
	}
}

func TestParseSchemaUnsupportedKind(t *testing.T) {
	srv := newTestServer(t)

	resp := performJSON(t, srv.App(), http.MethodPost, "/api/v1/parse-schema", SchemaParseRequest{
		ModelName:       "Bad",
		ModelDefinition: "type: object\nproperties:\n  tags:\n    type: array\n",
	})
	if resp.StatusCode != fiber.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}

	var out errorBody
	decodeInto(t, resp, &out)
	if !out.Error || out.Details["field"] != "tags" || out.Details["detected_type"] != "array" {
		t.Fatalf("error body = %+v", out)
	}
}

func TestParseSchemaValidatesRequest(t *testing.T) {
	srv := newTestServer(t)

	for name, req := range map[string]SchemaParseRequest{
		"missing name":       {ModelDefinition: signupDefinition},
		"missing definition": {ModelName: "Signup"},
	} {
		resp := performJSON(t, srv.App(), http.MethodPost, "/api/v1/parse-schema", req)
		if resp.StatusCode != fiber.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", name, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestChatTurnCompletesForm(t *testing.T) {
	collab := newScriptedCollaborator(t,
		`{"message":"Nice to meet you, Ann","extracted_data":{"name":"Ann","age":30},"is_complete":true,"follow_up_questions":[]}`)
	srv := newTestServer(t, WithCollaborator(collab))

	resp := performJSON(t, srv.App(), http.MethodPost, "/api/v1/chat", ChatRequest{
		Message:      "I'm Ann, 30 years old",
		TargetModel:  "SignupRequest",
		TargetSchema: signupView(),
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var out ChatResponse
	decodeInto(t, resp, &out)
	if out.Message != "Nice to meet you, Ann" {
		t.Errorf("message = %q", out.Message)
	}
	if out.ConversationID == "" {
		t.Error("conversation_id should be minted when absent")
	}
	if !out.IsComplete || len(out.MissingFields) != 0 {
		t.Errorf("is_complete = %v, missing = %v; want complete with nothing missing", out.IsComplete, out.MissingFields)
	}

	want := map[string]any{"name": "Ann", "age": float64(30), "role": "user"}
	if diff := cmp.Diff(want, out.StructuredData); diff != "" {
		t.Fatalf("structured data mismatch (-want +got):\n%s", diff)
	}
}

func TestChatTurnReportsMissingFields(t *testing.T) {
	collab := newScriptedCollaborator(t,
		`{"message":"And your age?","extracted_data":{"name":"Ann"},"is_complete":false,"follow_up_questions":["How old are you?"]}`)
	srv := newTestServer(t, WithCollaborator(collab))

	resp := performJSON(t, srv.App(), http.MethodPost, "/api/v1/chat", ChatRequest{
		Message:      "I'm Ann",
		TargetModel:  "SignupRequest",
		TargetSchema: signupView(),
	})

	var out ChatResponse
	decodeInto(t, resp, &out)
	if out.IsComplete {
		t.Error("is_complete should be false while age is missing")
	}
	if diff := cmp.Diff([]string{"age"}, out.MissingFields); diff != "" {
		t.Errorf("missing fields mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"How old are you?"}, out.FollowUpQuestions); diff != "" {
		t.Errorf("follow-ups mismatch (-want +got):\n%s", diff)
	}
}

func TestChatResumesStoredConversation(t *testing.T) {
	store := session.NewMemoryStore(0)
	seed := session.Record{
		ConversationID: "conv-1",
		Model:          "SignupRequest",
		Values:         map[string]any{"name": "Ann", "role": "user"},
		Turns: []session.ConversationTurn{
			{Role: session.RoleUser, Content: "I'm Ann"},
			{Role: session.RoleAssistant, Content: "And your age?"},
		},
	}
	if err := store.Save(context.Background(), seed); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	collab := newScriptedCollaborator(t,
		`{"message":"All set","extracted_data":{"age":30},"is_complete":true,"follow_up_questions":[]}`)
	srv := newTestServer(t, WithCollaborator(collab), WithStore(store))

	resp := performJSON(t, srv.App(), http.MethodPost, "/api/v1/chat", ChatRequest{
		Message:        "I'm 30",
		ConversationID: "conv-1",
		TargetModel:    "SignupRequest",
		TargetSchema:   signupView(),
	})

	var out ChatResponse
	decodeInto(t, resp, &out)
	if out.ConversationID != "conv-1" {
		t.Errorf("conversation_id = %q, want conv-1", out.ConversationID)
	}
	if out.StructuredData["name"] != "Ann" || out.StructuredData["age"] != float64(30) {
		t.Errorf("structured data = %v, want stored name merged with new age", out.StructuredData)
	}
	if !out.IsComplete {
		t.Error("is_complete should be true once age arrives")
	}

	record, err := store.Load(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("reload record: %v", err)
	}
	if len(record.Turns) != 4 {
		t.Errorf("stored turns = %d, want seeded 2 plus this exchange", len(record.Turns))
	}
	if !record.CompleteHint {
		t.Error("stored record should carry the completion hint")
	}
}

func TestChatCollaboratorFailure(t *testing.T) {
	srv := newTestServer(t, WithCollaborator(newScriptedCollaborator(t)))

	resp := performJSON(t, srv.App(), http.MethodPost, "/api/v1/chat", ChatRequest{
		Message:      "hello",
		TargetSchema: signupView(),
	})
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}

	var out errorBody
	decodeInto(t, resp, &out)
	if !out.Error || !strings.Contains(out.Message, "chat:") {
		t.Errorf("error body = %+v", out)
	}
}

func TestChatRequestValidation(t *testing.T) {
	srv := newTestServer(t, WithCollaborator(newScriptedCollaborator(t)))

	resp := performJSON(t, srv.App(), http.MethodPost, "/api/v1/chat", ChatRequest{
		TargetSchema: signupView(),
	})
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("empty message: status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()

	resp = performJSON(t, srv.App(), http.MethodPost, "/api/v1/chat", ChatRequest{Message: "hi"})
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("missing schema: status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestChatUnconfigured(t *testing.T) {
	srv := newTestServer(t)

	resp := performJSON(t, srv.App(), http.MethodPost, "/api/v1/chat", ChatRequest{
		Message:      "hi",
		TargetSchema: signupView(),
	})
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 without a collaborator", resp.StatusCode)
	}
}

func TestForwardEndpoint(t *testing.T) {
	var got map[string]any
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("upstream decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"abc"}`))
	}))
	defer upstream.Close()

	srv := newTestServer(t)
	resp := performJSON(t, srv.App(), http.MethodPost, "/api/v1/forward", ForwardRequest{
		APIURL: upstream.URL,
		Method: "POST",
		Data:   map[string]any{"name": "Ann", "age": 30},
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var envelope gateway.Envelope
	decodeInto(t, resp, &envelope)
	if !envelope.Success || envelope.StatusCode != http.StatusCreated {
		t.Errorf("envelope = %+v", envelope)
	}
	body, ok := envelope.Body.(map[string]any)
	if !ok || body["id"] != "abc" {
		t.Errorf("envelope body = %v", envelope.Body)
	}
	if got["name"] != "Ann" || got["age"] != float64(30) {
		t.Errorf("upstream received %v", got)
	}
}

func TestForwardTransportFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	target := upstream.URL
	upstream.Close()

	srv := newTestServer(t)
	resp := performJSON(t, srv.App(), http.MethodPost, "/api/v1/forward", ForwardRequest{
		APIURL: target,
		Data:   map[string]any{"name": "Ann"},
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200 with the failure folded into the envelope", resp.StatusCode)
	}

	var envelope gateway.Envelope
	decodeInto(t, resp, &envelope)
	if envelope.Success || envelope.StatusCode != gateway.StatusTransportFailure {
		t.Errorf("envelope = %+v, want success=false with sentinel status", envelope)
	}
	if envelope.ErrMessage == "" {
		t.Error("envelope should carry the transport diagnostic")
	}
}

func TestForwardRejectsInvalidRequest(t *testing.T) {
	srv := newTestServer(t)

	for name, req := range map[string]ForwardRequest{
		"bad scheme": {APIURL: "ftp://example.com", Data: map[string]any{}},
		"bad method": {APIURL: "https://example.com", Method: "TRACE"},
	} {
		resp := performJSON(t, srv.App(), http.MethodPost, "/api/v1/forward", req)
		if resp.StatusCode != fiber.StatusUnprocessableEntity {
			t.Errorf("%s: status = %d, want 422", name, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestSchemaCatalogEndpoints(t *testing.T) {
	srv := newTestServer(t)

	resp := performJSON(t, srv.App(), http.MethodGet, "/api/v1/schemas", nil)
	var names []string
	decodeInto(t, resp, &names)
	want := []string{"contact_form", "employee_record", "product_order", "survey_response", "user_profile"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Fatalf("catalog names mismatch (-want +got):\n%s", diff)
	}

	resp = performJSON(t, srv.App(), http.MethodGet, "/api/v1/schemas/user_profile", nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var view SchemaView
	decodeInto(t, resp, &view)
	if view.ModelName != "user_profile" || len(view.Fields) == 0 || view.Fields[0].Name != "name" {
		t.Errorf("schema view = %+v", view)
	}

	resp = performJSON(t, srv.App(), http.MethodGet, "/api/v1/schemas/unknown", nil)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestTranscribeEndpoint(t *testing.T) {
	svc := voice.NewService(&stubTranscriber{text: "I am Ann"}, nil, voice.WithTempDir(t.TempDir()))
	srv := newTestServer(t, WithVoice(svc))

	resp := performJSON(t, srv.App(), http.MethodPost, "/api/v1/voice/transcribe", TranscribeRequest{
		Audio:    base64.StdEncoding.EncodeToString([]byte("fake audio clip")),
		Format:   "wav",
		Duration: 2.5,
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out TranscribeResponse
	decodeInto(t, resp, &out)
	if out.Text != "I am Ann" {
		t.Errorf("text = %q", out.Text)
	}

	resp = performJSON(t, srv.App(), http.MethodPost, "/api/v1/voice/transcribe", TranscribeRequest{Audio: "!!not base64!!"})
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("bad base64: status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestTranscribeUnconfigured(t *testing.T) {
	srv := newTestServer(t)

	resp := performJSON(t, srv.App(), http.MethodPost, "/api/v1/voice/transcribe", TranscribeRequest{Audio: "aGk="})
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 without a voice service", resp.StatusCode)
	}
}

func TestTranscribeUpstreamFailure(t *testing.T) {
	svc := voice.NewService(&stubTranscriber{err: &voice.TranscriptionError{Detail: "upstream down"}}, nil,
		voice.WithTempDir(t.TempDir()))
	srv := newTestServer(t, WithVoice(svc))

	resp := performJSON(t, srv.App(), http.MethodPost, "/api/v1/voice/transcribe", TranscribeRequest{
		Audio: base64.StdEncoding.EncodeToString([]byte("clip")),
	})
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
}

func TestRateLimiter(t *testing.T) {
	cfg := newTestConfig()
	cfg.HTTP.RateLimit = 1
	srv := New(cfg, zap.NewNop())
	t.Cleanup(func() { _ = srv.Close() })

	resp := performJSON(t, srv.App(), http.MethodGet, "/health", nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("first request: status = %d, want 200", resp.StatusCode)
	}
	resp.Body.Close()

	resp = performJSON(t, srv.App(), http.MethodGet, "/health", nil)
	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("second request: status = %d, want 429", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestCORSReflectsConfiguredOrigin(t *testing.T) {
	cfg := newTestConfig()
	cfg.HTTP.AllowedOrigins = []string{"http://localhost:3000"}
	srv := New(cfg, zap.NewNop())
	t.Cleanup(func() { _ = srv.Close() })

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/chat", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := srv.App().Test(req, -1)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	defer resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp := performJSON(t, srv.App(), http.MethodGet, "/health", nil)
	resp.Body.Close()

	resp = performJSON(t, srv.App(), http.MethodGet, "/metrics", nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(raw), "formflow_http_requests_total") {
		t.Error("metrics exposition missing request counter")
	}
}
