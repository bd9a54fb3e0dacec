// Package config loads service configuration from YAML files and
// FORMFLOW_-prefixed environment variables, with defaults for every key so
// the service boots with no file present.
package config

import (
	"net"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	App     AppConfig     `mapstructure:"app"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	OpenAI  OpenAIConfig  `mapstructure:"openai"`
	Gateway GatewayConfig `mapstructure:"gateway"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Voice   VoiceConfig   `mapstructure:"voice"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type AppConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
	Debug   bool   `mapstructure:"debug"`
}

type HTTPConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// RateLimit caps requests per client per minute; zero disables limiting.
	RateLimit int `mapstructure:"rate_limit"`
}

// Address joins host and port for listeners.
func (c HTTPConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type GatewayConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

type RedisConfig struct {
	// URL selects the Redis conversation store when set; empty keeps the
	// in-memory store.
	URL string `mapstructure:"url"`
}

type VoiceConfig struct {
	MaxClipSeconds     int    `mapstructure:"max_clip_seconds"`
	TranscriptionModel string `mapstructure:"transcription_model"`
	SpeechModel        string `mapstructure:"speech_model"`
	Voice              string `mapstructure:"voice"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// ZapLevel parses the configured level, defaulting to info.
func (c LoggingConfig) ZapLevel() zapcore.Level {
	level, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(c.Level)))
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}
