package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-formflow/pkg/chat"
	"github.com/goliatone/go-formflow/pkg/config"
	"github.com/goliatone/go-formflow/pkg/gateway"
	"github.com/goliatone/go-formflow/pkg/render/template/gotemplate"
	"github.com/goliatone/go-formflow/pkg/server"
	"github.com/goliatone/go-formflow/pkg/session"
	"github.com/goliatone/go-formflow/pkg/voice"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configFile := flag.String("config", "", "explicit config file (default: search ./config.yaml)")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("failed to initialize logger:", err)
	}

	var loadOptions []config.Option
	if *configFile != "" {
		loadOptions = append(loadOptions, config.WithFile(*configFile))
	}
	cfg, err := config.Load(loadOptions...)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	logger = newLogger(cfg)
	defer logger.Sync()

	logger.Info("starting formflow",
		zap.String("service", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("address", cfg.HTTP.Address()),
	)

	options := []server.Option{
		server.WithForwarder(gateway.NewForwarder(
			gateway.WithTimeout(cfg.Gateway.Timeout),
			gateway.WithUserAgent(cfg.Gateway.UserAgent),
		)),
		server.WithStore(newStore(cfg, logger)),
	}

	if cfg.OpenAI.APIKey != "" {
		collaborator, err := newCollaborator(cfg)
		if err != nil {
			logger.Fatal("failed to configure chat", zap.Error(err))
		}
		voiceService, err := newVoice(cfg)
		if err != nil {
			logger.Fatal("failed to configure voice", zap.Error(err))
		}
		options = append(options,
			server.WithCollaborator(collaborator),
			server.WithVoice(voiceService),
		)
	} else {
		logger.Warn("no OpenAI API key configured; chat and voice endpoints will return 503")
	}

	srv := server.New(cfg, logger, options...)

	go func() {
		if err := srv.Listen(cfg.HTTP.Address()); err != nil {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
	if err := srv.Close(); err != nil {
		logger.Error("failed to release resources", zap.Error(err))
	}

	logger.Info("server stopped")
}

// newLogger rebuilds the logger once configuration is known. Debug mode
// switches to the development encoder for readable local output.
func newLogger(cfg *config.Config) *zap.Logger {
	zcfg := zap.NewProductionConfig()
	if cfg.App.Debug {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(cfg.Logging.ZapLevel())

	logger, err := zcfg.Build()
	if err != nil {
		log.Fatal("failed to build logger:", err)
	}
	return logger
}

// newStore prefers Redis when a URL is configured so conversations survive
// restarts, falling back to the in-memory store otherwise.
func newStore(cfg *config.Config, logger *zap.Logger) session.Store {
	const ttl = 24 * time.Hour

	if cfg.Redis.URL == "" {
		return session.NewMemoryStore(ttl)
	}

	store, err := session.NewRedisStore(cfg.Redis.URL, ttl)
	if err != nil {
		logger.Warn("redis unavailable, using in-memory conversation store", zap.Error(err))
		return session.NewMemoryStore(ttl)
	}

	logger.Info("using redis conversation store")
	return store
}

func newCollaborator(cfg *config.Config) (*chat.Collaborator, error) {
	engine, err := gotemplate.New(gotemplate.WithBaseDir("."))
	if err != nil {
		return nil, err
	}

	prompts, err := chat.NewPromptBuilder(engine)
	if err != nil {
		return nil, err
	}

	client, err := chat.NewOpenAIClient(cfg.OpenAI.APIKey,
		chat.WithModel(cfg.OpenAI.Model),
		chat.WithBaseURL(cfg.OpenAI.BaseURL),
	)
	if err != nil {
		return nil, err
	}

	return chat.NewCollaborator(client, prompts)
}

func newVoice(cfg *config.Config) (*voice.Service, error) {
	speech, err := voice.NewSpeechClient(cfg.OpenAI.APIKey,
		voice.WithSpeechBaseURL(cfg.OpenAI.BaseURL),
		voice.WithTranscribeModel(cfg.Voice.TranscriptionModel),
		voice.WithSynthesisModel(cfg.Voice.SpeechModel),
		voice.WithVoice(cfg.Voice.Voice),
	)
	if err != nil {
		return nil, err
	}

	return voice.NewService(speech, speech,
		voice.WithMaxClipDuration(time.Duration(cfg.Voice.MaxClipSeconds)*time.Second)), nil
}
