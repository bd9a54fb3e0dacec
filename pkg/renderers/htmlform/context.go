package htmlform

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	theme "github.com/goliatone/go-theme"

	"github.com/goliatone/go-formflow/pkg/render"
	"github.com/goliatone/go-formflow/pkg/render/template/gotemplate"
	"github.com/goliatone/go-formflow/pkg/schema"
	"github.com/goliatone/go-formflow/pkg/session"
)

// fieldContext assembles the template context for a single field partial.
// Nested children are rendered separately and injected by the renderer.
func fieldContext(field schema.FieldDescriptor, path []string, values session.ValueMap, fieldErrors map[string][]string) map[string]any {
	dottedPath := strings.Join(path, ".")
	ctx := map[string]any{
		"name":        field.Name,
		"path":        dottedPath,
		"control_id":  controlID(dottedPath),
		"label":       gotemplate.Labelize(field.Name),
		"kind":        string(field.Kind),
		"required":    field.Required,
		"description": sanitizeDescription(field.Description),
		"errors":      fieldErrors[dottedPath],
	}

	switch field.Kind {
	case schema.KindBoolean:
		ctx["checked"] = booleanValue(field, path, values)
	case schema.KindEnumerated:
		ctx["options"] = optionViews(field, path, values)
	case schema.KindInteger:
		ctx["step"] = "1"
		ctx["value"] = scalarValue(field, path, values)
	case schema.KindNumber:
		ctx["step"] = "any"
		ctx["value"] = scalarValue(field, path, values)
	case schema.KindNested:
	default:
		ctx["value"] = scalarValue(field, path, values)
	}
	return ctx
}

func formContext(descriptor schema.SchemaDescriptor, opts render.RenderOptions, method string, hidden []render.HiddenField, fieldsHTML string) map[string]any {
	return map[string]any{
		"form": map[string]any{
			"name":        descriptor.Name,
			"title":       formTitle(descriptor),
			"description": sanitizeDescription(descriptor.Description),
			"action":      opts.Action,
			"method":      method,
		},
		"fields_html":   fieldsHTML,
		"hidden_fields": hiddenViews(hidden),
		"form_errors":   opts.FormErrors,
		"theme":         themeContext(opts.Theme),
	}
}

func formTitle(descriptor schema.SchemaDescriptor) string {
	if title := strings.TrimSpace(descriptor.Title); title != "" {
		return title
	}
	return gotemplate.Labelize(descriptor.Name)
}

func hiddenViews(fields []render.HiddenField) []map[string]any {
	views := make([]map[string]any, 0, len(fields))
	for _, field := range fields {
		views = append(views, map[string]any{"name": field.Name, "value": field.Value})
	}
	return views
}

func themeContext(cfg *theme.RendererConfig) map[string]any {
	if cfg == nil {
		return map[string]any{}
	}
	return map[string]any{
		"name":           cfg.Theme,
		"variant":        cfg.Variant,
		"css_vars_style": cssVarsStyle(cfg.CSSVars),
		"stylesheet":     stylesheetURL(cfg),
	}
}

func stylesheetURL(cfg *theme.RendererConfig) string {
	if cfg == nil || cfg.AssetURL == nil {
		return ""
	}
	return cfg.AssetURL("stylesheet")
}

// cssVarsStyle renders theme CSS variables as a :root declaration block so
// the markup stays self-contained when served without the theme's stylesheet.
func cssVarsStyle(vars map[string]string) string {
	if len(vars) == 0 {
		return ""
	}
	keys := make([]string, 0, len(vars))
	for key := range vars {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(":root {\n")
	for _, key := range keys {
		fmt.Fprintf(&b, "  %s: %s;\n", key, vars[key])
	}
	b.WriteString("}")
	return b.String()
}

// controlID derives a DOM id from the dotted field path.
func controlID(path string) string {
	return "ff-" + strings.ReplaceAll(path, ".", "-")
}

func scalarValue(field schema.FieldDescriptor, path []string, values session.ValueMap) string {
	if value, ok := values.Get(path); ok {
		return scalarString(value)
	}
	if field.Default != nil {
		return scalarString(field.Default)
	}
	return ""
}

func scalarString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	default:
		return fmt.Sprint(v)
	}
}

func booleanValue(field schema.FieldDescriptor, path []string, values session.ValueMap) bool {
	if value, ok := values.Get(path); ok {
		if checked, isBool := value.(bool); isBool {
			return checked
		}
	}
	checked, _ := field.Default.(bool)
	return checked
}

func optionViews(field schema.FieldDescriptor, path []string, values session.ValueMap) []map[string]any {
	selected := scalarValue(field, path, values)
	views := make([]map[string]any, 0, len(field.Options))
	for _, option := range field.Options {
		views = append(views, map[string]any{
			"value":    option,
			"label":    gotemplate.Labelize(option),
			"selected": option == selected,
		})
	}
	return views
}
