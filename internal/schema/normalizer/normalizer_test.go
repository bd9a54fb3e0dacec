package normalizer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formflow/pkg/schema"
)

func normalize(t *testing.T, definition string, options ...schema.NormalizerOption) (schema.SchemaDescriptor, error) {
	t.Helper()
	doc, err := schema.InlineDocument("test_model", []byte(definition))
	if err != nil {
		t.Fatalf("inline document: %v", err)
	}
	n := New(schema.NewNormalizerOptions(options...))
	return n.Normalize(context.Background(), doc)
}

func TestNormalizeKindMapping(t *testing.T) {
	definition := `{
		"title": "User Profile",
		"description": "A user profile",
		"type": "object",
		"properties": {
			"name": {"type": "string", "description": "Full name"},
			"age": {"type": "integer"},
			"score": {"type": "number"},
			"active": {"type": "boolean", "default": true},
			"role": {"type": "string", "enum": ["admin", "user", "guest"], "default": "user"},
			"address": {
				"type": "object",
				"properties": {
					"city": {"type": "string"},
					"zip": {"type": "string"}
				},
				"required": ["city"]
			}
		},
		"required": ["name", "age"]
	}`

	got, err := normalize(t, definition)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	want := schema.SchemaDescriptor{
		Name:        "test_model",
		Title:       "User Profile",
		Description: "A user profile",
		Fields: []schema.FieldDescriptor{
			{Name: "name", Kind: schema.KindText, Required: true, Description: "Full name"},
			{Name: "age", Kind: schema.KindInteger, Required: true},
			{Name: "score", Kind: schema.KindNumber},
			{Name: "active", Kind: schema.KindBoolean, Default: true},
			{Name: "role", Kind: schema.KindEnumerated, Options: []string{"admin", "user", "guest"}, Default: "user"},
			{Name: "address", Kind: schema.KindNested, Children: []schema.FieldDescriptor{
				{Name: "city", Kind: schema.KindText, Required: true},
				{Name: "zip", Kind: schema.KindText},
			}},
		},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("descriptor mismatch (-want +got):\n%s", diff)
	}
	if err := got.Validate(); err != nil {
		t.Fatalf("structural invariants: %v", err)
	}
}

func TestNormalizePreservesDeclarationOrder(t *testing.T) {
	cases := []struct {
		name       string
		definition string
	}{
		{
			name: "json",
			definition: `{
				"type": "object",
				"properties": {
					"zeta": {"type": "string"},
					"alpha": {"type": "string"},
					"mid": {"type": "object", "properties": {
						"ypsilon": {"type": "integer"},
						"beta": {"type": "integer"}
					}}
				}
			}`,
		},
		{
			name: "yaml",
			definition: `
type: object
properties:
  zeta:
    type: string
  alpha:
    type: string
  mid:
    type: object
    properties:
      ypsilon:
        type: integer
      beta:
        type: integer
`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := normalize(t, tc.definition)
			if err != nil {
				t.Fatalf("normalize: %v", err)
			}

			order := make([]string, len(got.Fields))
			for i, field := range got.Fields {
				order[i] = field.Name
			}
			if diff := cmp.Diff([]string{"zeta", "alpha", "mid"}, order); diff != "" {
				t.Fatalf("top-level order mismatch (-want +got):\n%s", diff)
			}

			nested, ok := got.Field("mid")
			if !ok {
				t.Fatalf("missing nested field")
			}
			childOrder := make([]string, len(nested.Children))
			for i, child := range nested.Children {
				childOrder[i] = child.Name
			}
			if diff := cmp.Diff([]string{"ypsilon", "beta"}, childOrder); diff != "" {
				t.Fatalf("nested order mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNormalizeUnsupportedKinds(t *testing.T) {
	cases := []struct {
		name         string
		definition   string
		wantField    string
		wantDetected string
	}{
		{
			name:         "array",
			definition:   `{"type":"object","properties":{"tags":{"type":"array","items":{"type":"string"}}}}`,
			wantField:    "tags",
			wantDetected: "array",
		},
		{
			name:         "union",
			definition:   `{"type":"object","properties":{"maybe":{"type":["string","null"]}}}`,
			wantField:    "maybe",
			wantDetected: "union(string|null)",
		},
		{
			name:         "untyped",
			definition:   `{"type":"object","properties":{"blob":{"description":"anything"}}}`,
			wantField:    "blob",
			wantDetected: "untyped",
		},
		{
			name:         "nested offender named by path",
			definition:   `{"type":"object","properties":{"outer":{"type":"object","properties":{"tags":{"type":"array"}}}}}`,
			wantField:    "outer.tags",
			wantDetected: "array",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := normalize(t, tc.definition)
			var unsupported *schema.UnsupportedKindError
			if !errors.As(err, &unsupported) {
				t.Fatalf("expected UnsupportedKindError, got %v", err)
			}
			if unsupported.Field != tc.wantField {
				t.Fatalf("field: want %q, got %q", tc.wantField, unsupported.Field)
			}
			if unsupported.Detected != tc.wantDetected {
				t.Fatalf("detected: want %q, got %q", tc.wantDetected, unsupported.Detected)
			}
		})
	}
}

func TestNormalizeLenientKindsDegradeToText(t *testing.T) {
	definition := `{"type":"object","properties":{"tags":{"type":"array"},"name":{"type":"string"}}}`

	got, err := normalize(t, definition, schema.WithLenientKinds())
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	field, ok := got.Field("tags")
	if !ok {
		t.Fatalf("missing degraded field")
	}
	if field.Kind != schema.KindText {
		t.Fatalf("expected text fallback, got %s", field.Kind)
	}
}

func TestNormalizeRequiredDoesNotCascade(t *testing.T) {
	definition := `{
		"type": "object",
		"properties": {
			"shipping": {
				"type": "object",
				"properties": {
					"street": {"type": "string"},
					"city": {"type": "string"}
				},
				"required": ["city"]
			}
		},
		"required": ["shipping"]
	}`

	got, err := normalize(t, definition)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	shipping, _ := got.Field("shipping")
	if !shipping.Required {
		t.Fatalf("outer field should be required")
	}
	street, _ := shipping.Child("street")
	if street.Required {
		t.Fatalf("outer required must not cascade into children")
	}
	city, _ := shipping.Child("city")
	if !city.Required {
		t.Fatalf("child requiredness comes from its own level")
	}
}

func TestNormalizeResolvesLocalRefs(t *testing.T) {
	definition := `{
		"type": "object",
		"properties": {
			"home": {"$ref": "#/$defs/Address"},
			"office": {"$ref": "#/$defs/Address"}
		},
		"$defs": {
			"Address": {
				"type": "object",
				"properties": {
					"street": {"type": "string"},
					"city": {"type": "string"}
				},
				"required": ["street"]
			}
		}
	}`

	got, err := normalize(t, definition)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	for _, name := range []string{"home", "office"} {
		field, ok := got.Field(name)
		if !ok {
			t.Fatalf("missing field %s", name)
		}
		if field.Kind != schema.KindNested {
			t.Fatalf("%s: expected nested, got %s", name, field.Kind)
		}
		street, _ := field.Child("street")
		if !street.Required {
			t.Fatalf("%s: referenced schema required list lost", name)
		}
	}
}

func TestNormalizeRefErrors(t *testing.T) {
	cases := []struct {
		name       string
		definition string
		wantErr    string
	}{
		{
			name:       "unknown pointer",
			definition: `{"type":"object","properties":{"x":{"$ref":"#/$defs/Missing"}}}`,
			wantErr:    "unresolvable reference",
		},
		{
			name: "cycle",
			definition: `{
				"type": "object",
				"properties": {"x": {"$ref": "#/$defs/A"}},
				"$defs": {"A": {"$ref": "#/$defs/B"}, "B": {"$ref": "#/$defs/A"}}
			}`,
			wantErr: "cycle",
		},
		{
			name:       "remote ref",
			definition: `{"type":"object","properties":{"x":{"$ref":"https://example.com/schema.json"}}}`,
			wantErr:    "unresolvable reference",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := normalize(t, tc.definition)
			var parseErr *schema.ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("expected ParseError, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %q", tc.wantErr, err.Error())
			}
		})
	}
}

func TestNormalizeIntegerEnumStaysInteger(t *testing.T) {
	definition := `{"type":"object","properties":{"level":{"type":"integer","enum":[1,2,3]}}}`

	got, err := normalize(t, definition)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	field, _ := got.Field("level")
	if field.Kind != schema.KindInteger {
		t.Fatalf("integer enum should stay integer, got %s", field.Kind)
	}
	if len(field.Options) != 0 {
		t.Fatalf("integer enum must not produce options")
	}
}

func TestNormalizeRootErrors(t *testing.T) {
	cases := []struct {
		name       string
		definition string
		wantErr    string
	}{
		{name: "not a schema", definition: `"just a string"`, wantErr: "root must be an object schema"},
		{name: "scalar root type", definition: `{"type":"string"}`, wantErr: "type object"},
		{name: "no properties", definition: `{"type":"object"}`, wantErr: "declares no properties"},
		{name: "invalid syntax", definition: `{"type": `, wantErr: "not valid YAML or JSON"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := normalize(t, tc.definition)
			var parseErr *schema.ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("expected ParseError, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %q", tc.wantErr, err.Error())
			}
		})
	}
}

func TestNormalizeHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	doc := schema.MustNewDocument(schema.SourceFromInline("m"), []byte(`{"type":"object","properties":{"a":{"type":"string"}}}`))
	if _, err := New(schema.NewNormalizerOptions()).Normalize(ctx, doc); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}
