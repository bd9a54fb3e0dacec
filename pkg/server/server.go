// Package server exposes the form flow over HTTP: schema intake, the
// conversational fill loop, the bundled schema catalog, gateway forwarding,
// and voice transcription, behind a fiber app with recover, request-id,
// CORS, rate-limit, and zap request logging middleware.
package server

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"

	"github.com/goliatone/go-formflow/pkg/chat"
	"github.com/goliatone/go-formflow/pkg/config"
	"github.com/goliatone/go-formflow/pkg/gateway"
	"github.com/goliatone/go-formflow/pkg/session"
	"github.com/goliatone/go-formflow/pkg/voice"
)

// Server wires the form flow services behind the HTTP API. Collaborator and
// voice service are optional; their endpoints answer 503 until configured.
type Server struct {
	app          *fiber.App
	log          *zap.Logger
	cfg          *config.Config
	collaborator *chat.Collaborator
	forwarder    *gateway.Forwarder
	store        session.Store
	voice        *voice.Service
}

// Option adjusts server construction.
type Option func(*Server)

// WithCollaborator installs the conversational collaborator serving /chat.
func WithCollaborator(collab *chat.Collaborator) Option {
	return func(s *Server) {
		s.collaborator = collab
	}
}

// WithForwarder replaces the default gateway forwarder.
func WithForwarder(f *gateway.Forwarder) Option {
	return func(s *Server) {
		if f != nil {
			s.forwarder = f
		}
	}
}

// WithStore replaces the default in-memory conversation store. The server
// takes ownership and closes it on Close.
func WithStore(store session.Store) Option {
	return func(s *Server) {
		if store != nil {
			s.store = store
		}
	}
}

// WithVoice installs the speech service serving /voice/transcribe.
func WithVoice(svc *voice.Service) Option {
	return func(s *Server) {
		s.voice = svc
	}
}

// New builds the HTTP server. A nil logger is replaced with a no-op one.
func New(cfg *config.Config, log *zap.Logger, options ...Option) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{log: log, cfg: cfg}
	for _, opt := range options {
		if opt != nil {
			opt(s)
		}
	}
	if s.forwarder == nil {
		s.forwarder = gateway.NewForwarder(
			gateway.WithTimeout(cfg.Gateway.Timeout),
			gateway.WithUserAgent(cfg.Gateway.UserAgent),
		)
	}
	if s.store == nil {
		s.store = session.NewMemoryStore(24 * time.Hour)
	}
	s.app = s.buildApp()
	return s
}

func (s *Server) buildApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               s.cfg.App.Name,
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler(),
	})

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(s.cfg.HTTP.AllowedOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, PATCH, DELETE, OPTIONS",
	}))
	if s.cfg.HTTP.RateLimit > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        s.cfg.HTTP.RateLimit,
			Expiration: time.Minute,
		}))
	}
	app.Use(s.observe)

	app.Get("/", s.handleRoot)
	app.Get("/health", s.handleHealth)
	app.Get("/metrics", s.handleMetrics)

	v1 := app.Group("/api/v1")
	v1.Post("/parse-schema", s.handleParseSchema)
	v1.Post("/chat", s.handleChat)
	v1.Post("/forward", s.handleForward)
	v1.Get("/schemas", s.handleListSchemas)
	v1.Get("/schemas/:name", s.handleGetSchema)
	v1.Post("/voice/transcribe", s.handleTranscribe)
	v1.Get("/health", s.handleAPIHealth)

	return app
}

// observe records metrics and one zap line per request. Errors have not yet
// passed through the error handler here, so the status they will map to is
// resolved via the same classifier.
func (s *Server) observe(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	if err != nil {
		status, _, _ = classify(err)
	}

	requestsTotal.WithLabelValues(c.Route().Path, c.Method(), strconv.Itoa(status)).Inc()
	requestDuration.Observe(time.Since(start).Seconds())

	fields := []zap.Field{
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", status),
		zap.Duration("duration", time.Since(start)),
		zap.String("request_id", requestID(c)),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	if status >= fiber.StatusInternalServerError {
		s.log.Error("request", fields...)
	} else {
		s.log.Info("request", fields...)
	}
	return err
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok {
		return id
	}
	return ""
}

func (s *Server) handleMetrics(c *fiber.Ctx) error {
	handler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	handler(c.Context())
	return nil
}

// App exposes the underlying fiber app, primarily for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves HTTP on the given address until Shutdown.
func (s *Server) Listen(address string) error {
	s.log.Info("http server listening", zap.String("address", address))
	return s.app.Listen(address)
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// Close releases server-owned resources, currently the conversation store.
func (s *Server) Close() error {
	return s.store.Close()
}
