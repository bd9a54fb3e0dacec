// Package formflow turns schema documents into conversational, fillable
// forms. A definition document (JSON Schema in JSON or YAML, or an OpenAPI 3
// document) normalizes into a SchemaDescriptor; a Session collects values for
// it from manual edits and chat turns; the gateway forwards the finished
// ValueMap to an external endpoint.
//
// The root package is a thin composition layer over the pkg/ packages. It
// exposes the constructors most callers need and a Parse entry point that
// detects the document flavor, so the HTTP service and the CLI share one
// intake path.
package formflow

import (
	"context"
	"sync"

	internalloader "github.com/goliatone/go-formflow/internal/schema/loader"
	internalnormalizer "github.com/goliatone/go-formflow/internal/schema/normalizer"
	"github.com/goliatone/go-formflow/pkg/gateway"
	"github.com/goliatone/go-formflow/pkg/openapi"
	"github.com/goliatone/go-formflow/pkg/render"
	"github.com/goliatone/go-formflow/pkg/renderers/htmlform"
	"github.com/goliatone/go-formflow/pkg/renderers/tui"
	"github.com/goliatone/go-formflow/pkg/schema"
	"github.com/goliatone/go-formflow/pkg/session"
)

// SchemaDescriptor is the normalized form of one model definition.
type SchemaDescriptor = schema.SchemaDescriptor

// FieldDescriptor describes one field of a normalized schema.
type FieldDescriptor = schema.FieldDescriptor

// ValueMap is the mutable value state of one form-filling session.
type ValueMap = session.ValueMap

// Envelope is the normalized outcome of one gateway forward.
type Envelope = gateway.Envelope

// RenderOptions carries per-request renderer overrides: prefilled values,
// validation errors, hidden fields, theme selection.
type RenderOptions = render.RenderOptions

// NewLoader constructs a document loader using the internal implementation
// while keeping the concrete type hidden from consumers.
func NewLoader(options ...schema.LoaderOption) schema.Loader {
	return internalloader.New(schema.NewLoaderOptions(options...))
}

// NewNormalizer constructs a JSON Schema normalizer backed by the internal
// implementation.
func NewNormalizer(options ...schema.NormalizerOption) schema.Normalizer {
	return internalnormalizer.New(schema.NewNormalizerOptions(options...))
}

// NewSession creates a form-filling session for a normalized schema, with
// descriptor defaults seeded into the value map.
func NewSession(descriptor SchemaDescriptor, options ...session.Option) *session.Session {
	return session.New(descriptor, options...)
}

// ParseOptions configures Parse.
type ParseOptions struct {
	// Operation selects the OpenAPI operation whose request body to
	// normalize. Ignored for plain JSON Schema documents.
	Operation string

	// Normalizer options apply to both intake paths.
	Normalizer []schema.NormalizerOption
}

// ParseOption adjusts ParseOptions.
type ParseOption func(*ParseOptions)

// WithOperation names the OpenAPI operation to normalize. When the document
// is OpenAPI and no operation is named, Parse accepts a document with exactly
// one body-carrying operation and fails otherwise.
func WithOperation(operationID string) ParseOption {
	return func(o *ParseOptions) {
		o.Operation = operationID
	}
}

// WithNormalizer forwards normalizer options, e.g. schema.WithLenientKinds.
func WithNormalizer(options ...schema.NormalizerOption) ParseOption {
	return func(o *ParseOptions) {
		o.Normalizer = append(o.Normalizer, options...)
	}
}

// Parse normalizes a definition document into a SchemaDescriptor. OpenAPI
// documents are routed through the operation adapter, everything else through
// the JSON Schema normalizer; both preserve field declaration order.
func Parse(ctx context.Context, name string, definition []byte, options ...ParseOption) (SchemaDescriptor, error) {
	var cfg ParseOptions
	for _, opt := range options {
		if opt != nil {
			opt(&cfg)
		}
	}

	doc, err := schema.InlineDocument(name, definition)
	if err != nil {
		return SchemaDescriptor{}, err
	}

	if openapi.Detect(definition) {
		adapter := openapi.New(openapi.WithNormalizerOptions(cfg.Normalizer...))
		operationID := cfg.Operation
		if operationID == "" {
			operationID, err = soleBodyOperation(ctx, adapter, doc)
			if err != nil {
				return SchemaDescriptor{}, err
			}
		}
		return adapter.Descriptor(ctx, doc, operationID)
	}

	normalizer := internalnormalizer.New(schema.NewNormalizerOptions(cfg.Normalizer...))
	return normalizer.Normalize(ctx, doc)
}

// soleBodyOperation resolves the implicit operation choice: valid only when
// the document defines exactly one operation with a request body.
func soleBodyOperation(ctx context.Context, adapter *openapi.Adapter, doc schema.Document) (string, error) {
	operations, err := adapter.Operations(ctx, doc)
	if err != nil {
		return "", err
	}

	var withBody []openapi.Operation
	for _, op := range operations {
		if op.HasBody {
			withBody = append(withBody, op)
		}
	}
	if len(withBody) == 1 {
		return withBody[0].ID, nil
	}
	return "", schema.NewParseError(doc.Location(), "/paths",
		"operation id is required: document defines %d operations with request bodies", len(withBody))
}

// defaultRegistry holds the built-in renderers, constructed once on first
// use so the embedded template parse cost is paid only when rendering.
var defaultRegistry = sync.OnceValues(func() (*render.Registry, error) {
	htmlRenderer, err := htmlform.New()
	if err != nil {
		return nil, err
	}
	return render.NewRegistry(htmlRenderer, tui.New()), nil
})

// Render resolves a renderer by name and renders the descriptor with it.
// The built-in renderers are "html" and "tui".
func Render(ctx context.Context, renderer string, descriptor SchemaDescriptor, opts RenderOptions) ([]byte, error) {
	registry, err := defaultRegistry()
	if err != nil {
		return nil, err
	}
	target, err := registry.Get(renderer)
	if err != nil {
		return nil, err
	}
	return target.Render(ctx, descriptor, opts)
}

// RenderHTML renders a standalone HTML form for the descriptor using the
// built-in renderer. It is the simplest entry point for callers that just
// want markup.
func RenderHTML(ctx context.Context, descriptor SchemaDescriptor, opts RenderOptions) ([]byte, error) {
	return Render(ctx, "html", descriptor, opts)
}
