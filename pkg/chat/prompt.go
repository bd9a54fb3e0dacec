package chat

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/goliatone/go-formflow/pkg/render/template"
	"github.com/goliatone/go-formflow/pkg/schema"
	"github.com/goliatone/go-formflow/pkg/session"
)

// systemPromptTemplate is the conversational contract sent as the system
// message. The schema block and current data are preformatted text, hence
// the safe filters.
const systemPromptTemplate = `You are a helpful assistant that extracts structured data from user conversations.

Your task is to help the user fill out a form with the following structure:

Model: {{ model|safe }}
Description: {{ description|safe }}

Fields:
{{ fields|safe }}

Current form data:
{{ current_data|safe }}

Instructions:
1. Extract any relevant information from the user's message
2. Ask follow-up questions for missing required fields
3. Be conversational and helpful
4. Only ask for one or two pieces of information at a time
5. Validate data types before extracting them
6. For enumerated fields, present the available options clearly
7. Return the updated structured data in your response

If the user provides information that doesn't match the expected format, politely explain what format is needed.`

// PromptBuilder renders the system prompt from a schema descriptor and the
// current value map.
type PromptBuilder struct {
	renderer template.TemplateRenderer
	prompt   string
}

// PromptOption adjusts prompt construction.
type PromptOption func(*PromptBuilder)

// WithSystemTemplate replaces the built-in system prompt template. The
// template receives model, description, fields, and current_data.
func WithSystemTemplate(tpl string) PromptOption {
	return func(b *PromptBuilder) {
		if strings.TrimSpace(tpl) != "" {
			b.prompt = tpl
		}
	}
}

// NewPromptBuilder wires a template renderer to the system prompt. The
// renderer is required; prompt text must stay editable without recompiling.
func NewPromptBuilder(renderer template.TemplateRenderer, opts ...PromptOption) (*PromptBuilder, error) {
	if renderer == nil {
		return nil, fmt.Errorf("chat: prompt builder requires a template renderer")
	}
	b := &PromptBuilder{
		renderer: renderer,
		prompt:   systemPromptTemplate,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b, nil
}

// System renders the system prompt for one turn.
func (b *PromptBuilder) System(descriptor schema.SchemaDescriptor, values session.ValueMap) (string, error) {
	data := map[string]any{
		"model":        modelName(descriptor),
		"description":  modelDescription(descriptor),
		"fields":       FormatFields(descriptor.Fields),
		"current_data": formatValues(values),
	}
	out, err := b.renderer.RenderString(b.prompt, data)
	if err != nil {
		return "", fmt.Errorf("chat: rendering system prompt: %w", err)
	}
	return out, nil
}

func modelName(descriptor schema.SchemaDescriptor) string {
	if descriptor.Title != "" {
		return descriptor.Title
	}
	if descriptor.Name != "" {
		return descriptor.Name
	}
	return "Unknown"
}

func modelDescription(descriptor schema.SchemaDescriptor) string {
	if descriptor.Description != "" {
		return descriptor.Description
	}
	return "No description available"
}

// FormatFields renders the field tree as indented prompt lines, one per
// field, nested children two spaces deeper than their parent.
func FormatFields(fields []schema.FieldDescriptor) string {
	var sb strings.Builder
	writeFieldLines(&sb, fields, 0)
	return strings.TrimRight(sb.String(), "\n")
}

func writeFieldLines(sb *strings.Builder, fields []schema.FieldDescriptor, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, field := range fields {
		sb.WriteString(indent)
		sb.WriteString("- ")
		sb.WriteString(field.Name)
		sb.WriteString(" (")
		sb.WriteString(string(field.Kind))
		sb.WriteString(")")
		if field.Required {
			sb.WriteString(" *required*")
		}
		if field.Description != "" {
			sb.WriteString(": ")
			sb.WriteString(field.Description)
		}
		if len(field.Options) > 0 {
			sb.WriteString(" Options: ")
			sb.WriteString(strings.Join(field.Options, ", "))
		}
		sb.WriteString("\n")
		if field.Kind == schema.KindNested {
			writeFieldLines(sb, field.Children, depth+1)
		}
	}
}

func formatValues(values session.ValueMap) string {
	if len(values) == 0 {
		return "No data filled yet"
	}
	encoded, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return "No data filled yet"
	}
	return string(encoded)
}
