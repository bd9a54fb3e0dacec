// Package htmlform renders schema descriptors as self-contained HTML form
// markup for the gateway preview surface.
//
// Each field kind renders through its own template partial, resolved through
// the theme partial map when one is configured and falling back to the
// embedded bundle. Nested fields render bottom-up: children are rendered to
// markup first and injected into the parent fieldset, which keeps arbitrary
// nesting depth out of the template language.
package htmlform

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	theme "github.com/goliatone/go-theme"

	"github.com/goliatone/go-formflow/pkg/render"
	"github.com/goliatone/go-formflow/pkg/render/template"
	"github.com/goliatone/go-formflow/pkg/render/template/gotemplate"
	"github.com/goliatone/go-formflow/pkg/schema"
	"github.com/goliatone/go-formflow/pkg/session"
)

const (
	partialForm       = "forms.form"
	partialText       = "forms.text"
	partialNumber     = "forms.number"
	partialBoolean    = "forms.boolean"
	partialEnumerated = "forms.enumerated"
	partialNested     = "forms.nested"
)

// Option configures the renderer before construction.
type Option func(*config)

type config struct {
	templates  template.TemplateRenderer
	templateFS fs.FS
}

// WithTemplateFS overrides the embedded template bundle.
func WithTemplateFS(files fs.FS) Option {
	return func(cfg *config) {
		cfg.templateFS = files
	}
}

// WithTemplateRenderer supplies a pre-built template engine, bypassing the
// bundled loader entirely.
func WithTemplateRenderer(renderer template.TemplateRenderer) Option {
	return func(cfg *config) {
		cfg.templates = renderer
	}
}

// Renderer produces HTML form markup from a schema descriptor.
type Renderer struct {
	templates template.TemplateRenderer
}

var _ render.Renderer = (*Renderer)(nil)

// New builds a Renderer backed by the embedded templates unless options say
// otherwise.
func New(options ...Option) (*Renderer, error) {
	cfg := config{templateFS: TemplatesFS()}
	for _, opt := range options {
		if opt != nil {
			opt(&cfg)
		}
	}

	templates := cfg.templates
	if templates == nil {
		engine, err := gotemplate.New(
			gotemplate.WithFS(cfg.templateFS),
			gotemplate.WithExtension(".tpl"),
		)
		if err != nil {
			return nil, fmt.Errorf("htmlform: load templates: %w", err)
		}
		templates = engine
	}
	return &Renderer{templates: templates}, nil
}

func (r *Renderer) Name() string { return "html" }

func (r *Renderer) ContentType() string { return "text/html; charset=utf-8" }

// Render produces the full form markup for descriptor. Values and errors are
// keyed the same way session state is, so a failed submit can re-render with
// the user's input and per-field messages in place.
func (r *Renderer) Render(ctx context.Context, descriptor schema.SchemaDescriptor, opts render.RenderOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	partials := partialSet(opts.Theme)
	values := session.ValueMap(opts.Values)

	fieldsHTML, err := r.renderFields(descriptor.Fields, nil, values, opts.Errors, partials)
	if err != nil {
		return nil, err
	}

	method, overrides := render.BrowserMethod(opts.Method)
	hidden := render.SortedHiddenFields(render.MergeHiddenFields(opts.Hidden, overrides...))

	out, err := r.templates.RenderTemplate(partials[partialForm], formContext(descriptor, opts, method, hidden, fieldsHTML))
	if err != nil {
		return nil, fmt.Errorf("htmlform: render form %q: %w", descriptor.Name, err)
	}
	return []byte(out), nil
}

func (r *Renderer) renderFields(fields []schema.FieldDescriptor, prefix []string, values session.ValueMap, fieldErrors map[string][]string, partials map[string]string) (string, error) {
	var b strings.Builder
	for _, field := range fields {
		markup, err := r.renderField(field, childPath(prefix, field.Name), values, fieldErrors, partials)
		if err != nil {
			return "", err
		}
		b.WriteString(markup)
	}
	return b.String(), nil
}

func (r *Renderer) renderField(field schema.FieldDescriptor, path []string, values session.ValueMap, fieldErrors map[string][]string, partials map[string]string) (string, error) {
	ctx := map[string]any{"field": fieldContext(field, path, values, fieldErrors)}

	if field.Kind == schema.KindNested {
		children, err := r.renderFields(field.Children, path, values, fieldErrors, partials)
		if err != nil {
			return "", err
		}
		ctx["children"] = children
	}

	out, err := r.templates.RenderTemplate(partials[partialFor(field.Kind)], ctx)
	if err != nil {
		return "", fmt.Errorf("htmlform: render field %q: %w", strings.Join(path, "."), err)
	}
	return out, nil
}

// partialSet layers the theme's partial overrides on top of the embedded
// defaults so a manifest can swap individual partials.
func partialSet(cfg *theme.RendererConfig) map[string]string {
	partials := render.DefaultThemeFallbacks()
	if cfg == nil {
		return partials
	}
	for key, path := range cfg.Partials {
		if strings.TrimSpace(path) != "" {
			partials[key] = path
		}
	}
	return partials
}

func partialFor(kind schema.FieldKind) string {
	switch kind {
	case schema.KindInteger, schema.KindNumber:
		return partialNumber
	case schema.KindBoolean:
		return partialBoolean
	case schema.KindEnumerated:
		return partialEnumerated
	case schema.KindNested:
		return partialNested
	default:
		return partialText
	}
}

// childPath copies before appending so sibling fields never alias the same
// backing array.
func childPath(prefix []string, name string) []string {
	path := make([]string, len(prefix), len(prefix)+1)
	copy(path, prefix)
	return append(path, name)
}
