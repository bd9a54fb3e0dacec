package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zapcore"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return dir
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(WithSearchPath(t.TempDir()))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := &Config{
		App: AppConfig{Name: "go-formflow", Version: "1.0.0"},
		HTTP: HTTPConfig{
			Host:           "0.0.0.0",
			Port:           8000,
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:19006"},
			RateLimit:      100,
		},
		OpenAI:  OpenAIConfig{Model: "gpt-4o-2024-10-21"},
		Gateway: GatewayConfig{Timeout: 30 * time.Second},
		Voice: VoiceConfig{
			MaxClipSeconds:     60,
			TranscriptionModel: "whisper-1",
			SpeechModel:        "tts-1",
			Voice:              "alloy",
		},
		Logging: LoggingConfig{Level: "info"},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := writeConfigFile(t, `
app:
  name: formflow-dev
  debug: true
http:
  port: 9000
  allowed_origins:
    - https://app.example.com
  rate_limit: 10
openai:
  api_key: sk-file
  model: gpt-4o-mini
gateway:
  timeout: 5s
  user_agent: formflow-ci/1.0
redis:
  url: redis://localhost:6379/2
voice:
  max_clip_seconds: 30
logging:
  level: debug
`)

	cfg, err := Load(WithSearchPath(dir))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := &Config{
		App: AppConfig{Name: "formflow-dev", Version: "1.0.0", Debug: true},
		HTTP: HTTPConfig{
			Host:           "0.0.0.0",
			Port:           9000,
			AllowedOrigins: []string{"https://app.example.com"},
			RateLimit:      10,
		},
		OpenAI:  OpenAIConfig{APIKey: "sk-file", Model: "gpt-4o-mini"},
		Gateway: GatewayConfig{Timeout: 5 * time.Second, UserAgent: "formflow-ci/1.0"},
		Redis:   RedisConfig{URL: "redis://localhost:6379/2"},
		Voice: VoiceConfig{
			MaxClipSeconds:     30,
			TranscriptionModel: "whisper-1",
			SpeechModel:        "tts-1",
			Voice:              "alloy",
		},
		Logging: LoggingConfig{Level: "debug"},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("file config mismatch (-want +got):\n%s", diff)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	dir := writeConfigFile(t, `
http:
  port: 9000
  rate_limit: 10
openai:
  api_key: sk-file
`)
	t.Setenv("FORMFLOW_HTTP_PORT", "9100")
	t.Setenv("FORMFLOW_OPENAI_API_KEY", "sk-env")
	t.Setenv("FORMFLOW_VOICE_MAX_CLIP_SECONDS", "45")

	cfg, err := Load(WithSearchPath(dir))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.HTTP.Port != 9100 {
		t.Errorf("HTTP.Port = %d, want 9100 (env over file)", cfg.HTTP.Port)
	}
	if cfg.HTTP.RateLimit != 10 {
		t.Errorf("HTTP.RateLimit = %d, want 10 (file value untouched)", cfg.HTTP.RateLimit)
	}
	if cfg.OpenAI.APIKey != "sk-env" {
		t.Errorf("OpenAI.APIKey = %q, want sk-env", cfg.OpenAI.APIKey)
	}
	if cfg.Voice.MaxClipSeconds != 45 {
		t.Errorf("Voice.MaxClipSeconds = %d, want 45", cfg.Voice.MaxClipSeconds)
	}
}

func TestLoadExplicitFile(t *testing.T) {
	dir := writeConfigFile(t, "http:\n  port: 9200\n")

	cfg, err := Load(WithFile(filepath.Join(dir, "config.yaml")))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTP.Port != 9200 {
		t.Fatalf("HTTP.Port = %d, want 9200", cfg.HTTP.Port)
	}

	if _, err := Load(WithFile(filepath.Join(dir, "missing.yaml"))); err == nil {
		t.Fatal("Load() with missing explicit file should error")
	}
}

func TestAddress(t *testing.T) {
	cfg := HTTPConfig{Host: "0.0.0.0", Port: 8000}
	if got := cfg.Address(); got != "0.0.0.0:8000" {
		t.Fatalf("Address() = %q, want 0.0.0.0:8000", got)
	}
}

func TestZapLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
		" Debug ": zapcore.DebugLevel,
	}
	for input, want := range cases {
		if got := (LoggingConfig{Level: input}).ZapLevel(); got != want {
			t.Errorf("ZapLevel(%q) = %v, want %v", input, got, want)
		}
	}
}
