package render

import (
	theme "github.com/goliatone/go-theme"
)

// RenderOptions describe per-request data that renderers can use to customise
// their output without touching the descriptor pipeline.
type RenderOptions struct {
	// Action is the submission target the rendered form posts to, typically
	// the gateway forward endpoint.
	Action string
	// Method overrides the submission verb. Renderers translate verbs a
	// browser cannot submit natively (PUT/PATCH/DELETE) into POST plus a
	// hidden _method input.
	Method string
	// Values pre-populates rendered controls. The map mirrors the session
	// value shape: scalars and booleans at field names, nested maps for
	// nested fields.
	Values map[string]any
	// Errors surfaces server-side validation feedback keyed by dotted field
	// path ("shipping.city"). Unknown paths belong at form level; see
	// MapErrorPayload.
	Errors map[string][]string
	// FormErrors lists messages that apply to the form as a whole rather
	// than a single field.
	FormErrors []string
	// Hidden lists extra hidden inputs emitted alongside the visible fields.
	Hidden map[string]string
	// Theme carries the resolved theme configuration (partials, tokens, CSS
	// vars). Nil means render with the built-in defaults.
	Theme *theme.RendererConfig
}
