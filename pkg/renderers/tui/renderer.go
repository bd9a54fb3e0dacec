// Package tui drives an interactive terminal fill session over a schema
// descriptor: one prompt per field, validation with reprompt, nested fields
// as indented sections. The survey-backed driver talks to a real terminal;
// tests script a stub driver instead.
package tui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-formflow/pkg/render"
	"github.com/goliatone/go-formflow/pkg/render/template/gotemplate"
	"github.com/goliatone/go-formflow/pkg/schema"
	"github.com/goliatone/go-formflow/pkg/session"
)

// valueStore is the slice of session state the prompt walk reads and writes.
// session.ValueMap satisfies it directly; Fill adapts a live session.
type valueStore interface {
	Get(path []string) (any, bool)
	Set(path []string, value any) error
}

type sessionValues struct {
	sess *session.Session
}

func (s sessionValues) Get(path []string) (any, bool)      { return s.sess.Field(path) }
func (s sessionValues) Set(path []string, value any) error { return s.sess.SetField(path, value) }

// Renderer prompts for every descriptor field in declaration order and
// serializes the collected values.
type Renderer struct {
	driver       PromptDriver
	outputFormat OutputFormat
}

var _ render.Renderer = (*Renderer)(nil)

// New constructs a TUI renderer with defaults (survey driver, JSON output).
func New(options ...Option) *Renderer {
	r := &Renderer{
		driver:       newSurveyDriver(),
		outputFormat: OutputFormatJSON,
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(r)
	}
	return r
}

// Name reports the renderer identifier.
func (r *Renderer) Name() string {
	return "tui"
}

// ContentType reports the serialization format used by Render.
func (r *Renderer) ContentType() string {
	if r.outputFormat == OutputFormatPrettyText {
		return "text/plain"
	}
	return "application/json"
}

// Fill prompts for every field of the session's descriptor and writes the
// answers into the session as they arrive. Values already present (including
// seeded defaults) become prompt defaults.
func (r *Renderer) Fill(ctx context.Context, sess *session.Session) error {
	if sess == nil {
		return errors.New("tui: session is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	descriptor := sess.Descriptor()
	return r.promptFields(ctx, descriptor.Fields, nil, sessionValues{sess: sess})
}

// Render runs the prompt walk against a detached value map seeded from
// options.Values and returns the serialized result.
func (r *Renderer) Render(ctx context.Context, descriptor schema.SchemaDescriptor, opts render.RenderOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.driver == nil {
		return nil, errors.New("tui: prompt driver is nil")
	}

	values := session.ValueMap{}
	if len(opts.Values) > 0 {
		values = session.ValueMap(opts.Values).Clone()
	}

	if err := r.promptFields(ctx, descriptor.Fields, nil, values); err != nil {
		return nil, err
	}
	return r.serialize(descriptor, values)
}

func (r *Renderer) promptFields(ctx context.Context, fields []schema.FieldDescriptor, prefix []string, values valueStore) error {
	for _, field := range fields {
		path := childPath(prefix, field.Name)
		if err := r.promptField(ctx, field, path, values); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) promptField(ctx context.Context, field schema.FieldDescriptor, path []string, values valueStore) error {
	switch field.Kind {
	case schema.KindBoolean:
		return r.promptBoolean(ctx, field, path, values)
	case schema.KindInteger, schema.KindNumber:
		return r.promptNumber(ctx, field, path, values)
	case schema.KindEnumerated:
		return r.promptEnum(ctx, field, path, values)
	case schema.KindNested:
		return r.promptNested(ctx, field, path, values)
	default:
		return r.promptText(ctx, field, path, values)
	}
}

func (r *Renderer) promptText(ctx context.Context, field schema.FieldDescriptor, path []string, values valueStore) error {
	cfg := InputConfig{
		Message: promptLabel(field),
		Default: stringDefault(values, path, field.Default),
		Help:    field.Description,
	}

	for {
		response, err := r.driver.Input(ctx, cfg)
		if err != nil {
			return err
		}

		if strings.TrimSpace(response) == "" {
			// Optional fields stay unset rather than holding an empty string.
			if !field.Required {
				return nil
			}
			_ = r.driver.Info(ctx, fmt.Sprintf("%s is required", dotted(path)))
			continue
		}

		return values.Set(path, response)
	}
}

func (r *Renderer) promptNumber(ctx context.Context, field schema.FieldDescriptor, path []string, values valueStore) error {
	cfg := InputConfig{
		Message: promptLabel(field),
		Default: numberDefault(values, path, field.Default),
		Help:    field.Description,
	}

	for {
		response, err := r.driver.Input(ctx, cfg)
		if err != nil {
			return err
		}

		trimmed := strings.TrimSpace(response)
		if trimmed == "" {
			if !field.Required {
				return nil
			}
			_ = r.driver.Info(ctx, fmt.Sprintf("%s is required", dotted(path)))
			continue
		}

		var parsed any
		if field.Kind == schema.KindInteger {
			value, err := strconv.ParseInt(trimmed, 10, 64)
			if err != nil {
				_ = r.driver.Info(ctx, fmt.Sprintf("%s must be a whole number", dotted(path)))
				continue
			}
			parsed = value
		} else {
			value, err := strconv.ParseFloat(trimmed, 64)
			if err != nil {
				_ = r.driver.Info(ctx, fmt.Sprintf("%s must be a number", dotted(path)))
				continue
			}
			parsed = value
		}

		return values.Set(path, parsed)
	}
}

func (r *Renderer) promptBoolean(ctx context.Context, field schema.FieldDescriptor, path []string, values valueStore) error {
	response, err := r.driver.Confirm(ctx, ConfirmConfig{
		Message: promptLabel(field),
		Default: boolDefault(values, path, field.Default),
		Help:    field.Description,
	})
	if err != nil {
		return err
	}
	return values.Set(path, response)
}

func (r *Renderer) promptEnum(ctx context.Context, field schema.FieldDescriptor, path []string, values valueStore) error {
	defaultIdx := -1
	if current, ok := values.Get(path); ok {
		if s, ok := current.(string); ok {
			defaultIdx = indexOf(field.Options, s)
		}
	}
	if defaultIdx < 0 {
		if s, ok := field.Default.(string); ok {
			defaultIdx = indexOf(field.Options, s)
		}
	}

	for {
		idx, err := r.driver.Select(ctx, SelectConfig{
			Message:      promptLabel(field),
			Options:      field.Options,
			DefaultIndex: defaultIdx,
			Help:         field.Description,
		})
		if err != nil {
			return err
		}
		if idx < 0 || idx >= len(field.Options) {
			_ = r.driver.Info(ctx, fmt.Sprintf("%s: pick one of the listed options", dotted(path)))
			continue
		}
		return values.Set(path, field.Options[idx])
	}
}

func (r *Renderer) promptNested(ctx context.Context, field schema.FieldDescriptor, path []string, values valueStore) error {
	_ = r.driver.Info(ctx, promptLabel(field))
	return r.promptFields(ctx, field.Children, path, values)
}

func (r *Renderer) serialize(descriptor schema.SchemaDescriptor, values session.ValueMap) ([]byte, error) {
	if r.outputFormat == OutputFormatPrettyText {
		return []byte(prettyPrint(descriptor.Fields, values, nil, 0)), nil
	}
	return json.Marshal(values)
}

// prettyPrint walks the descriptor so output follows declaration order
// instead of map iteration order.
func prettyPrint(fields []schema.FieldDescriptor, values session.ValueMap, prefix []string, depth int) string {
	var b strings.Builder
	indent := strings.Repeat("  ", depth)
	for _, field := range fields {
		path := childPath(prefix, field.Name)
		if field.Kind == schema.KindNested {
			fmt.Fprintf(&b, "%s%s:\n", indent, field.Name)
			b.WriteString(prettyPrint(field.Children, values, path, depth+1))
			continue
		}
		if value, ok := values.Get(path); ok {
			fmt.Fprintf(&b, "%s%s: %v\n", indent, field.Name, value)
		}
	}
	return b.String()
}

func promptLabel(field schema.FieldDescriptor) string {
	label := gotemplate.Labelize(field.Name)
	if field.Required {
		return label + " *"
	}
	return label
}

func childPath(prefix []string, name string) []string {
	path := make([]string, 0, len(prefix)+1)
	path = append(path, prefix...)
	return append(path, name)
}

func dotted(path []string) string {
	return strings.Join(path, ".")
}

func stringDefault(values valueStore, path []string, fallback any) string {
	if current, ok := values.Get(path); ok {
		if s, ok := current.(string); ok {
			return s
		}
	}
	if s, ok := fallback.(string); ok {
		return s
	}
	return ""
}

func boolDefault(values valueStore, path []string, fallback any) bool {
	if current, ok := values.Get(path); ok {
		if b, ok := current.(bool); ok {
			return b
		}
	}
	if b, ok := fallback.(bool); ok {
		return b
	}
	return false
}

func numberDefault(values valueStore, path []string, fallback any) string {
	if current, ok := values.Get(path); ok {
		if s := numberString(current); s != "" {
			return s
		}
	}
	return numberString(fallback)
}

func numberString(value any) string {
	switch v := value.(type) {
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
