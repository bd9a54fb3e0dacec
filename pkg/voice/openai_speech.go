package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultSpeechBaseURL   = "https://api.openai.com/v1"
	defaultTranscribeModel = "whisper-1"
	defaultSynthesisModel  = "tts-1"
	defaultSynthesisVoice  = "alloy"
	defaultSpeechTimeout   = 2 * time.Minute
	defaultSynthesisFormat = "mp3"
)

// SpeechClient talks to an OpenAI-compatible audio API, serving both
// directions: transcription of recorded clips and synthesis of reply text.
type SpeechClient struct {
	apiKey          string
	baseURL         string
	transcribeModel string
	synthesisModel  string
	voice           string
	timeout         time.Duration
	httpClient      *http.Client
}

var (
	_ Transcriber = (*SpeechClient)(nil)
	_ Synthesizer = (*SpeechClient)(nil)
)

// SpeechOption configures a SpeechClient.
type SpeechOption func(*SpeechClient)

// WithSpeechBaseURL points at a different OpenAI-compatible endpoint.
func WithSpeechBaseURL(baseURL string) SpeechOption {
	return func(c *SpeechClient) {
		if trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/"); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithTranscribeModel selects the speech-to-text model.
func WithTranscribeModel(model string) SpeechOption {
	return func(c *SpeechClient) {
		if model != "" {
			c.transcribeModel = model
		}
	}
}

// WithSynthesisModel selects the text-to-speech model.
func WithSynthesisModel(model string) SpeechOption {
	return func(c *SpeechClient) {
		if model != "" {
			c.synthesisModel = model
		}
	}
}

// WithVoice selects the default synthesis voice.
func WithVoice(voice string) SpeechOption {
	return func(c *SpeechClient) {
		if voice != "" {
			c.voice = voice
		}
	}
}

// WithSpeechHTTPClient replaces the underlying transport.
func WithSpeechHTTPClient(client *http.Client) SpeechOption {
	return func(c *SpeechClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithSpeechTimeout bounds a single round trip.
func WithSpeechTimeout(d time.Duration) SpeechOption {
	return func(c *SpeechClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewSpeechClient builds a client for the given API key.
func NewSpeechClient(apiKey string, opts ...SpeechOption) (*SpeechClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("voice: api key is required")
	}

	c := &SpeechClient{
		apiKey:          apiKey,
		baseURL:         defaultSpeechBaseURL,
		transcribeModel: defaultTranscribeModel,
		synthesisModel:  defaultSynthesisModel,
		voice:           defaultSynthesisVoice,
		timeout:         defaultSpeechTimeout,
		httpClient:      &http.Client{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Transcribe sends the clip as multipart form data to the transcription
// endpoint and returns the recognized text.
func (c *SpeechClient) Transcribe(ctx context.Context, clip *Clip) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if clip == nil {
		return "", &TranscriptionError{Detail: "nil clip"}
	}

	audio, err := clip.Open()
	if err != nil {
		return "", &TranscriptionError{Detail: "reading clip", Err: err}
	}
	defer audio.Close()

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", filepath.Base(clip.Path()))
	if err != nil {
		return "", &TranscriptionError{Detail: "building form", Err: err}
	}
	if _, err := io.Copy(part, audio); err != nil {
		return "", &TranscriptionError{Detail: "copying clip into form", Err: err}
	}
	if err := form.WriteField("model", c.transcribeModel); err != nil {
		return "", &TranscriptionError{Detail: "building form", Err: err}
	}
	if err := form.Close(); err != nil {
		return "", &TranscriptionError{Detail: "building form", Err: err}
	}

	endpoint := c.baseURL + "/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return "", &TranscriptionError{Detail: "building request", Err: err}
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	raw, status, err := c.do(req)
	if err != nil {
		return "", &TranscriptionError{Detail: "reaching transcription service", Err: err}
	}
	if status != http.StatusOK {
		return "", &TranscriptionError{Detail: fmt.Sprintf("service returned status %d: %s", status, truncate(raw))}
	}

	var decoded struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", &TranscriptionError{Detail: "decoding response", Err: err}
	}
	return decoded.Text, nil
}

// Synthesize posts the text to the speech endpoint and returns the rendered
// audio bytes.
func (c *SpeechClient) Synthesize(ctx context.Context, req SynthesisRequest) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, &SynthesisError{Detail: "empty text"}
	}

	voiceName := req.Voice
	if voiceName == "" {
		voiceName = c.voice
	}
	format := req.Format
	if format == "" {
		format = defaultSynthesisFormat
	}

	payload := map[string]any{
		"model":           c.synthesisModel,
		"input":           req.Text,
		"voice":           voiceName,
		"response_format": format,
	}
	if req.Speed > 0 {
		payload["speed"] = req.Speed
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &SynthesisError{Detail: "encoding request", Err: err}
	}

	endpoint := c.baseURL + "/audio/speech"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &SynthesisError{Detail: "building request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	raw, status, err := c.do(httpReq)
	if err != nil {
		return nil, &SynthesisError{Detail: "reaching synthesis service", Err: err}
	}
	if status != http.StatusOK {
		return nil, &SynthesisError{Detail: fmt.Sprintf("service returned status %d: %s", status, truncate(raw))}
	}
	return raw, nil
}

func (c *SpeechClient) do(req *http.Request) ([]byte, int, error) {
	clone := *c.httpClient
	clone.Timeout = c.timeout

	resp, err := clone.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return raw, resp.StatusCode, nil
}

func truncate(raw []byte) string {
	text := strings.TrimSpace(string(raw))
	if len(text) > 200 {
		return text[:200] + "... (" + strconv.Itoa(len(text)) + " bytes)"
	}
	return text
}
