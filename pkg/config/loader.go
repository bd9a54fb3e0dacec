package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Option adjusts where Load looks for configuration.
type Option func(*loadOptions)

type loadOptions struct {
	paths []string
	file  string
}

// WithSearchPath replaces the config search paths, mainly for tests and
// containerized deploys with a single mount point.
func WithSearchPath(paths ...string) Option {
	return func(opts *loadOptions) {
		opts.paths = paths
	}
}

// WithFile points Load at one explicit config file instead of searching.
func WithFile(path string) Option {
	return func(opts *loadOptions) {
		opts.file = strings.TrimSpace(path)
	}
}

// Load reads config.yaml from the search paths, layers FORMFLOW_ environment
// variables over it, and fills the gaps with defaults. A missing file is not
// an error.
func Load(options ...Option) (*Config, error) {
	opts := loadOptions{paths: []string{"./config", "./configs", "."}}
	for _, opt := range options {
		if opt != nil {
			opt(&opts)
		}
	}

	v := viper.New()
	if opts.file != "" {
		v.SetConfigFile(opts.file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, path := range opts.paths {
			v.AddConfigPath(path)
		}
	}

	v.SetEnvPrefix("FORMFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers every key so environment overrides apply even when no
// file mentions them.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "go-formflow")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.debug", false)

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8000)
	v.SetDefault("http.allowed_origins", []string{"http://localhost:3000", "http://localhost:19006"})
	v.SetDefault("http.rate_limit", 100)

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model", "gpt-4o-2024-10-21")
	v.SetDefault("openai.base_url", "")

	v.SetDefault("gateway.timeout", 30*time.Second)
	v.SetDefault("gateway.user_agent", "")

	v.SetDefault("redis.url", "")

	v.SetDefault("voice.max_clip_seconds", 60)
	v.SetDefault("voice.transcription_model", "whisper-1")
	v.SetDefault("voice.speech_model", "tts-1")
	v.SetDefault("voice.voice", "alloy")

	v.SetDefault("logging.level", "info")
}
