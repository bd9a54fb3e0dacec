package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/goliatone/go-formflow/pkg/chat"
	"github.com/goliatone/go-formflow/pkg/schema"
	"github.com/goliatone/go-formflow/pkg/session"
	"github.com/goliatone/go-formflow/pkg/voice"
)

// errorBody is the uniform error envelope every failing endpoint returns.
type errorBody struct {
	Error   bool           `json:"error"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func apiError(c *fiber.Ctx, status int, message string, details map[string]any) error {
	return c.Status(status).JSON(errorBody{Error: true, Message: message, Details: details})
}

// classify maps domain errors onto HTTP statuses: schema intake failures are
// unprocessable input, missing required fields are a bad request, chat and
// speech failures are upstream unavailability, and anything unrecognized is
// an internal error.
func classify(err error) (int, string, map[string]any) {
	var (
		fiberErr      *fiber.Error
		parseErr      *schema.ParseError
		kindErr       *schema.UnsupportedKindError
		validationErr *session.ValidationError
		transportErr  *chat.TransportError
		serviceErr    *chat.ServiceError
		transcribeErr *voice.TranscriptionError
		synthesisErr  *voice.SynthesisError
		permissionErr *voice.PermissionError
	)

	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code, fiberErr.Message, nil
	case errors.As(err, &parseErr):
		details := map[string]any{"location": parseErr.Location}
		if parseErr.Pointer != "" {
			details["pointer"] = parseErr.Pointer
		}
		return fiber.StatusUnprocessableEntity, err.Error(), details
	case errors.As(err, &kindErr):
		return fiber.StatusUnprocessableEntity, err.Error(), map[string]any{
			"field":         kindErr.Field,
			"detected_type": kindErr.Detected,
		}
	case errors.As(err, &validationErr):
		return fiber.StatusBadRequest, err.Error(), map[string]any{
			"missing_fields": validationErr.Missing,
		}
	case errors.As(err, &transportErr), errors.As(err, &serviceErr),
		errors.As(err, &transcribeErr), errors.As(err, &synthesisErr):
		return fiber.StatusServiceUnavailable, err.Error(), nil
	case errors.As(err, &permissionErr):
		return fiber.StatusForbidden, err.Error(), nil
	default:
		return fiber.StatusInternalServerError, err.Error(), nil
	}
}

func (s *Server) errorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status, message, details := classify(err)
		if status >= fiber.StatusInternalServerError {
			s.log.Error("request failed", zap.Error(err), zap.String("path", c.Path()))
		}
		return apiError(c, status, message, details)
	}
}
