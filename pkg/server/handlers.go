package server

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	formflow "github.com/goliatone/go-formflow"
	"github.com/goliatone/go-formflow/pkg/catalog"
	"github.com/goliatone/go-formflow/pkg/chat"
	"github.com/goliatone/go-formflow/pkg/gateway"
	"github.com/goliatone/go-formflow/pkg/schema"
	"github.com/goliatone/go-formflow/pkg/session"
)

func (s *Server) handleParseSchema(c *fiber.Ctx) error {
	var req SchemaParseRequest
	if err := c.BodyParser(&req); err != nil {
		return apiError(c, fiber.StatusBadRequest, "invalid request body", nil)
	}
	name := strings.TrimSpace(req.ModelName)
	definition := strings.TrimSpace(req.ModelDefinition)
	if name == "" {
		return apiError(c, fiber.StatusBadRequest, "model_name is required", nil)
	}
	if definition == "" {
		return apiError(c, fiber.StatusBadRequest, "model_definition is required", nil)
	}

	descriptor, err := formflow.Parse(c.Context(), name, []byte(definition),
		formflow.WithOperation(req.OperationID))
	if err != nil {
		return err
	}

	s.log.Info("schema parsed",
		zap.String("model", name),
		zap.Int("fields", len(descriptor.Fields)))
	return c.JSON(SchemaParseResponse{
		ModelName: name,
		Schema:    NewSchemaView(descriptor),
		Success:   true,
	})
}

func (s *Server) handleChat(c *fiber.Ctx) error {
	if s.collaborator == nil {
		return apiError(c, fiber.StatusServiceUnavailable, "chat is not configured: missing OpenAI API key", nil)
	}

	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return apiError(c, fiber.StatusBadRequest, "invalid request body", nil)
	}
	if strings.TrimSpace(req.Message) == "" {
		return apiError(c, fiber.StatusBadRequest, "message is required", nil)
	}
	if req.TargetSchema == nil || len(req.TargetSchema.Fields) == 0 {
		return apiError(c, fiber.StatusBadRequest, "target_schema is required", nil)
	}

	descriptor := req.TargetSchema.Descriptor()
	if req.TargetModel != "" {
		descriptor.Name = req.TargetModel
	}

	sess := s.restoreSession(c, descriptor, req)

	result, err := s.collaborator.Converse(c.Context(), chat.TurnRequest{
		ConversationID: req.ConversationID,
		Message:        req.Message,
		Descriptor:     descriptor,
		History:        sess.Turns(),
		Values:         sess.Values(),
	})
	if err != nil {
		chatTurnsTotal.WithLabelValues("error").Inc()
		return err
	}
	chatTurnsTotal.WithLabelValues("ok").Inc()

	sess.AppendTurn(session.RoleUser, req.Message)
	sess.AppendTurn(session.RoleAssistant, result.Message)
	sess.Merge(result.Extracted)
	sess.SetCompleteHint(result.IsComplete)

	record := session.Snapshot(sess, result.ConversationID, descriptor.Name)
	if err := s.store.Save(c.Context(), record); err != nil {
		s.log.Warn("conversation save failed",
			zap.Error(err),
			zap.String("conversation_id", result.ConversationID))
	}

	return c.JSON(ChatResponse{
		Message:           result.Message,
		StructuredData:    sess.Values(),
		IsComplete:        sess.Complete(),
		MissingFields:     sess.Validate(),
		FollowUpQuestions: result.FollowUpQuestions,
		ConversationID:    result.ConversationID,
	})
}

// restoreSession prefers the server-held conversation record; the wire
// history and current data only seed a session the store has never seen.
func (s *Server) restoreSession(c *fiber.Ctx, descriptor schema.SchemaDescriptor, req ChatRequest) *session.Session {
	if req.ConversationID != "" {
		record, err := s.store.Load(c.Context(), req.ConversationID)
		if err == nil {
			return session.RestoreSession(descriptor, record)
		}
		if !errors.Is(err, session.ErrNotFound) {
			s.log.Warn("conversation load failed",
				zap.Error(err),
				zap.String("conversation_id", req.ConversationID))
		}
	}
	return session.New(descriptor,
		session.WithValues(req.CurrentData),
		session.WithHistory(historyTurns(req.ConversationHistory)))
}

func (s *Server) handleForward(c *fiber.Ctx) error {
	var req ForwardRequest
	if err := c.BodyParser(&req); err != nil {
		return apiError(c, fiber.StatusBadRequest, "invalid request body", nil)
	}

	greq := gateway.Request{
		URL:            req.APIURL,
		Method:         req.Method,
		Body:           session.ValueMap(req.Data),
		Headers:        req.Headers,
		TimeoutSeconds: req.Timeout,
	}
	if err := greq.Validate(); err != nil {
		return apiError(c, fiber.StatusUnprocessableEntity, err.Error(), map[string]any{
			"api_url": req.APIURL,
		})
	}

	start := time.Now()
	envelope, err := s.forwarder.Forward(c.Context(), greq)
	forwardDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return err
	}

	s.log.Info("forward completed",
		zap.String("url", req.APIURL),
		zap.Int("status", envelope.StatusCode),
		zap.Bool("success", envelope.Success),
		zap.Float64("elapsed", envelope.Elapsed))
	return c.JSON(envelope)
}

func (s *Server) handleListSchemas(c *fiber.Ctx) error {
	return c.JSON(catalog.Names())
}

func (s *Server) handleGetSchema(c *fiber.Ctx) error {
	name := c.Params("name")
	descriptor, err := catalog.Descriptor(c.Context(), name)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return apiError(c, fiber.StatusNotFound, fmt.Sprintf("unknown schema %q", name), nil)
		}
		return err
	}
	return c.JSON(NewSchemaView(descriptor))
}

func (s *Server) handleTranscribe(c *fiber.Ctx) error {
	if s.voice == nil {
		return apiError(c, fiber.StatusServiceUnavailable, "voice is not configured: missing OpenAI API key", nil)
	}

	var req TranscribeRequest
	if err := c.BodyParser(&req); err != nil {
		return apiError(c, fiber.StatusBadRequest, "invalid request body", nil)
	}
	if req.Audio == "" {
		return apiError(c, fiber.StatusBadRequest, "audio is required", nil)
	}
	audio, err := base64.StdEncoding.DecodeString(req.Audio)
	if err != nil {
		return apiError(c, fiber.StatusBadRequest, "audio must be base64 encoded", nil)
	}

	duration := time.Duration(req.Duration * float64(time.Second))
	text, err := s.voice.TranscribeAudio(c.Context(), audio, duration)
	if err != nil {
		return err
	}
	return c.JSON(TranscribeResponse{Text: text})
}

func (s *Server) handleRoot(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": s.cfg.App.Name + " API",
		"version": s.cfg.App.Version,
		"status":  "healthy",
	})
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "healthy"})
}

func (s *Server) handleAPIHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"service": s.cfg.App.Name + " API",
		"version": s.cfg.App.Version,
		"chat":    s.collaborator != nil,
		"voice":   s.voice != nil,
		"endpoints": fiber.Map{
			"parse_schema": "/api/v1/parse-schema",
			"chat":         "/api/v1/chat",
			"forward":      "/api/v1/forward",
			"schemas":      "/api/v1/schemas",
			"transcribe":   "/api/v1/voice/transcribe",
		},
	})
}
