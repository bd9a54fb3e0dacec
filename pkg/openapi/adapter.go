// Package openapi adapts OpenAPI 3 documents into schema descriptors.
//
// kin-openapi handles document loading, validation, and operation discovery.
// Request body schemas are then located in the raw yaml node tree rather than
// kin's decoded structs, because decoded property maps lose the declaration
// order descriptors must preserve.
package openapi

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formflow/internal/schema/normalizer"
	"github.com/goliatone/go-formflow/pkg/schema"
)

// Option configures the adapter.
type Option func(*Adapter)

// WithNormalizerOptions overrides the guardrails applied when normalizing
// request schemas.
func WithNormalizerOptions(options ...schema.NormalizerOption) Option {
	return func(a *Adapter) {
		a.normalizer = normalizer.New(schema.NewNormalizerOptions(options...))
	}
}

// WithoutValidation skips full-document validation, keeping only what
// document loading itself enforces. Useful for vendor documents that fail
// strict checks.
func WithoutValidation() Option {
	return func(a *Adapter) {
		a.validate = false
	}
}

// Adapter extracts operations and request body descriptors from OpenAPI 3
// documents.
type Adapter struct {
	normalizer *normalizer.Normalizer
	validate   bool
}

// New constructs an Adapter with strict kind mapping by default.
func New(options ...Option) *Adapter {
	a := &Adapter{validate: true}
	for _, opt := range options {
		if opt != nil {
			opt(a)
		}
	}
	if a.normalizer == nil {
		a.normalizer = normalizer.New(schema.NewNormalizerOptions())
	}
	return a
}

// Operations parses and validates the document, returning its operations
// sorted by path then method.
func (a *Adapter) Operations(ctx context.Context, doc schema.Document) ([]Operation, error) {
	spec, err := a.load(ctx, doc)
	if err != nil {
		return nil, err
	}

	var out []Operation
	if spec.Paths != nil {
		for path, item := range spec.Paths.Map() {
			if item == nil {
				continue
			}
			for _, entry := range pathOperations(item) {
				if entry.op == nil {
					continue
				}
				id := entry.op.OperationID
				if id == "" {
					id = SyntheticID(entry.method, path)
				}
				out = append(out, Operation{
					ID:          id,
					Method:      entry.method,
					Path:        path,
					Summary:     entry.op.Summary,
					Description: entry.op.Description,
					HasBody:     entry.op.RequestBody != nil,
				})
			}
		}
	}
	if len(out) == 0 {
		return nil, schema.NewParseError(doc.Location(), "/paths", "document declares no operations")
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Method < out[j].Method
	})
	return out, nil
}

// Descriptor locates the request body schema for one operation and normalizes
// it into a SchemaDescriptor named after the operation.
func (a *Adapter) Descriptor(ctx context.Context, doc schema.Document, operationID string) (schema.SchemaDescriptor, error) {
	operations, err := a.Operations(ctx, doc)
	if err != nil {
		return schema.SchemaDescriptor{}, err
	}

	var found *Operation
	for i := range operations {
		if operations[i].ID == operationID {
			found = &operations[i]
			break
		}
	}
	if found == nil {
		return schema.SchemaDescriptor{}, schema.NewParseError(doc.Location(), "", "operation %q not found", operationID)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(doc.Raw(), &root); err != nil {
		return schema.SchemaDescriptor{}, &schema.ParseError{
			Location: doc.Location(),
			Message:  "document is not valid YAML or JSON",
			Err:      err,
		}
	}

	schemaNode, err := requestSchemaNode(doc.Location(), &root, found.Path, found.Method)
	if err != nil {
		return schema.SchemaDescriptor{}, err
	}

	return a.normalizer.NormalizeNode(doc.Location(), &root, schemaNode, operationID)
}

func (a *Adapter) load(ctx context.Context, doc schema.Document) (*openapi3.T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw := doc.Raw()
	if len(raw) == 0 {
		return nil, schema.NewParseError(doc.Location(), "", "document payload is empty")
	}

	loader := &openapi3.Loader{Context: ctx}
	spec, err := loader.LoadFromData(raw)
	if err != nil {
		return nil, &schema.ParseError{
			Location: doc.Location(),
			Message:  "document is not valid OpenAPI",
			Err:      err,
		}
	}
	if a.validate {
		if err := spec.Validate(ctx, openapi3.DisableExamplesValidation()); err != nil {
			return nil, &schema.ParseError{
				Location: doc.Location(),
				Message:  "document failed validation",
				Err:      err,
			}
		}
	}
	return spec, nil
}

type methodOperation struct {
	method string
	op     *openapi3.Operation
}

func pathOperations(item *openapi3.PathItem) []methodOperation {
	return []methodOperation{
		{"GET", item.Get},
		{"PUT", item.Put},
		{"POST", item.Post},
		{"DELETE", item.Delete},
		{"PATCH", item.Patch},
		{"HEAD", item.Head},
		{"OPTIONS", item.Options},
		{"TRACE", item.Trace},
	}
}

// Detect reports whether the raw payload appears to be OpenAPI, used to route
// intake between the JSON Schema and OpenAPI paths.
func Detect(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return false
	}
	if trimmed[0] == '{' {
		var payload map[string]any
		if err := json.Unmarshal(trimmed, &payload); err == nil {
			if _, ok := payload["openapi"]; ok {
				return true
			}
			if _, ok := payload["swagger"]; ok {
				return true
			}
			return false
		}
	}
	lower := strings.ToLower(string(trimmed))
	return strings.Contains(lower, "openapi:") || strings.Contains(lower, "swagger:")
}
