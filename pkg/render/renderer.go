// Package render defines the renderer contract shared by the interactive
// terminal fill path and the HTML form preview, plus the plumbing both need:
// a named registry, theme resolution, and error-payload mapping onto field
// paths.
package render

import (
	"context"

	"github.com/goliatone/go-formflow/pkg/schema"
)

// Renderer turns a schema descriptor into a byte representation (HTML, JSON,
// plain text). Renderers never mutate the descriptor; per-request state
// travels in RenderOptions.
type Renderer interface {
	Name() string
	ContentType() string
	Render(ctx context.Context, descriptor schema.SchemaDescriptor, options RenderOptions) ([]byte, error)
}
