package render

import (
	"fmt"
	"strings"

	theme "github.com/goliatone/go-theme"
)

// DefaultThemeFallbacks maps partial keys to the embedded template paths used
// when neither the theme manifest nor its variant overrides them. The keys
// follow the forms.<kind> convention so manifests can swap individual field
// partials without replacing the whole bundle.
func DefaultThemeFallbacks() map[string]string {
	return map[string]string{
		"forms.form":       "templates/form.tpl",
		"forms.text":       "templates/fields/text.tpl",
		"forms.number":     "templates/fields/number.tpl",
		"forms.boolean":    "templates/fields/boolean.tpl",
		"forms.enumerated": "templates/fields/enumerated.tpl",
		"forms.nested":     "templates/fields/nested.tpl",
	}
}

// ResolveThemeConfig selects a theme by name/variant and derives the renderer
// configuration from it: partials merged over the fallbacks, tokens merged
// with variant overrides, CSS custom properties derived from tokens, and an
// asset URL resolver bound to the manifest's asset prefix.
//
// A nil selector or empty theme name resolves to nil without error so callers
// can leave theming unconfigured.
func ResolveThemeConfig(selector theme.ThemeSelector, name, variant string, fallbacks map[string]string) (*theme.RendererConfig, error) {
	if selector == nil || strings.TrimSpace(name) == "" {
		return nil, nil
	}

	selection, err := selector.Select(name, variant)
	if err != nil {
		return nil, fmt.Errorf("render: select theme %q: %w", name, err)
	}
	if selection == nil {
		return nil, nil
	}
	return ConfigFromSelection(selection, fallbacks), nil
}

// ConfigFromSelection derives a renderer configuration from a resolved theme
// selection. Fallback partials fill the gaps the manifest leaves; variant
// tokens, templates, and asset files win over the base manifest.
func ConfigFromSelection(selection *theme.Selection, fallbacks map[string]string) *theme.RendererConfig {
	if selection == nil {
		return nil
	}
	if fallbacks == nil {
		fallbacks = DefaultThemeFallbacks()
	}

	cfg := &theme.RendererConfig{
		Theme:    selection.Theme,
		Variant:  selection.Variant,
		Partials: cloneStringMap(fallbacks),
	}

	manifest := selection.Manifest
	if manifest == nil {
		cfg.CSSVars = map[string]string{}
		cfg.Tokens = map[string]string{}
		cfg.AssetURL = func(string) string { return "" }
		return cfg
	}

	cfg.Tokens = cloneStringMap(manifest.Tokens)
	mergeStringMap(cfg.Partials, manifest.Templates)

	assetPrefix := manifest.Assets.Prefix
	assetFiles := cloneStringMap(manifest.Assets.Files)

	if variant, ok := manifest.Variants[selection.Variant]; ok {
		mergeStringMap(cfg.Tokens, variant.Tokens)
		mergeStringMap(cfg.Partials, variant.Templates)
		if variant.Assets.Prefix != "" {
			assetPrefix = variant.Assets.Prefix
		}
		mergeStringMap(assetFiles, variant.Assets.Files)
	}

	cfg.CSSVars = cssVarsFromTokens(cfg.Tokens)
	cfg.AssetURL = assetResolver(assetPrefix, assetFiles)
	return cfg
}

func cssVarsFromTokens(tokens map[string]string) map[string]string {
	vars := make(map[string]string, len(tokens))
	for key, value := range tokens {
		name := key
		if !strings.HasPrefix(name, "--") {
			name = "--" + name
		}
		vars[name] = value
	}
	return vars
}

func assetResolver(prefix string, files map[string]string) func(string) string {
	return func(key string) string {
		file, ok := files[key]
		if !ok || file == "" {
			return ""
		}
		if prefix == "" {
			return file
		}
		return strings.TrimSuffix(prefix, "/") + "/" + strings.TrimPrefix(file, "/")
	}
}

func cloneStringMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func mergeStringMap(dst, src map[string]string) {
	for key, value := range src {
		dst[key] = value
	}
}
