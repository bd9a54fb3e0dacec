package normalizer

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formflow/pkg/schema"
)

const defaultMaxDepth = 32

// Normalizer walks model definition documents (JSON Schema in JSON or YAML
// form) and produces SchemaDescriptors. It operates on yaml.Node trees rather
// than decoded maps so property declaration order survives normalization.
type Normalizer struct {
	opts schema.NormalizerOptions
}

// Ensure the implementation satisfies the public interface.
var _ schema.Normalizer = (*Normalizer)(nil)

// New constructs a Normalizer from pre-resolved options.
func New(opts schema.NormalizerOptions) *Normalizer {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = defaultMaxDepth
	}
	return &Normalizer{opts: opts}
}

// Normalize parses the document and converts it into a SchemaDescriptor.
func (n *Normalizer) Normalize(ctx context.Context, doc schema.Document) (schema.SchemaDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return schema.SchemaDescriptor{}, err
	}

	var root yaml.Node
	if err := yaml.Unmarshal(doc.Raw(), &root); err != nil {
		return schema.SchemaDescriptor{}, &schema.ParseError{
			Location: doc.Location(),
			Message:  "definition is not valid YAML or JSON",
			Err:      err,
		}
	}

	body := documentBody(&root)
	if body == nil {
		return schema.SchemaDescriptor{}, schema.NewParseError(doc.Location(), "", "definition is empty")
	}

	return n.NormalizeNode(doc.Location(), body, body, doc.Location())
}

// NormalizeNode walks a schema node inside an already-parsed document. docRoot
// anchors local "#/..." reference resolution; start is the object schema to
// normalize; name labels the resulting descriptor. Callers outside this module
// go through schema.Normalizer instead.
func (n *Normalizer) NormalizeNode(location string, docRoot, start *yaml.Node, name string) (schema.SchemaDescriptor, error) {
	w := &walker{
		location: location,
		root:     docRoot,
		maxDepth: n.opts.MaxDepth,
		strict:   n.opts.StrictKinds,
		inFlight: make(map[string]struct{}),
	}
	return w.schema(start, name)
}

type walker struct {
	location string
	root     *yaml.Node
	maxDepth int
	strict   bool
	inFlight map[string]struct{}
}

func (w *walker) schema(node *yaml.Node, name string) (schema.SchemaDescriptor, error) {
	node, err := w.deref(node, "", 0)
	if err != nil {
		return schema.SchemaDescriptor{}, err
	}
	if node.Kind != yaml.MappingNode {
		return schema.SchemaDescriptor{}, w.parseErr("", "definition root must be an object schema")
	}

	declared := scalarValue(mappingEntry(node, "type"))
	props := mappingEntry(node, "properties")
	if declared != "" && declared != "object" {
		return schema.SchemaDescriptor{}, w.parseErr("/type", "definition root must have type object, got %q", declared)
	}
	if props == nil {
		return schema.SchemaDescriptor{}, w.parseErr("", "definition root declares no properties")
	}

	descriptor := schema.SchemaDescriptor{
		Name:        name,
		Title:       scalarValue(mappingEntry(node, "title")),
		Description: scalarValue(mappingEntry(node, "description")),
	}
	if descriptor.Name == "" {
		descriptor.Name = descriptor.Title
	}
	if descriptor.Title == "" {
		descriptor.Title = descriptor.Name
	}

	fields, err := w.fields(props, requiredSet(mappingEntry(node, "required")), "", "/properties", 0)
	if err != nil {
		return schema.SchemaDescriptor{}, err
	}
	descriptor.Fields = fields
	return descriptor, nil
}

// fields walks a properties mapping in declaration order, accumulating one
// descriptor per property.
func (w *walker) fields(props *yaml.Node, required map[string]bool, fieldPath, ptr string, depth int) ([]schema.FieldDescriptor, error) {
	props, err := w.deref(props, ptr, depth)
	if err != nil {
		return nil, err
	}
	if props.Kind != yaml.MappingNode {
		return nil, w.parseErr(ptr, "properties must be an object")
	}

	out := make([]schema.FieldDescriptor, 0, len(props.Content)/2)
	for i := 0; i+1 < len(props.Content); i += 2 {
		name := props.Content[i].Value
		if strings.TrimSpace(name) == "" {
			return nil, w.parseErr(ptr, "property name is empty")
		}
		field, err := w.field(name, props.Content[i+1], required[name], joinField(fieldPath, name), ptr+"/"+name, depth)
		if err != nil {
			return nil, err
		}
		out = append(out, field)
	}
	return out, nil
}

func (w *walker) field(name string, node *yaml.Node, required bool, fieldPath, ptr string, depth int) (schema.FieldDescriptor, error) {
	if depth > w.maxDepth {
		return schema.FieldDescriptor{}, w.parseErr(ptr, "maximum nesting depth %d exceeded", w.maxDepth)
	}

	node, err := w.deref(node, ptr, depth)
	if err != nil {
		return schema.FieldDescriptor{}, err
	}
	if node.Kind != yaml.MappingNode {
		return schema.FieldDescriptor{}, w.parseErr(ptr, "field schema must be an object")
	}

	field := schema.FieldDescriptor{
		Name:        name,
		Required:    required,
		Description: scalarValue(mappingEntry(node, "description")),
	}
	if defNode := mappingEntry(node, "default"); defNode != nil {
		var value any
		if err := defNode.Decode(&value); err != nil {
			return schema.FieldDescriptor{}, w.parseErr(ptr+"/default", "default is not decodable")
		}
		field.Default = value
	}

	typeNode := mappingEntry(node, "type")
	if typeNode != nil && typeNode.Kind == yaml.SequenceNode {
		return w.unsupported(field, fieldPath, unionLabel(typeNode))
	}
	declared := scalarValue(typeNode)

	// A fixed set of string options wins over the declared type.
	if enum := mappingEntry(node, "enum"); enum != nil {
		options, ok := stringOptions(enum)
		if ok && (declared == "" || declared == "string") {
			field.Kind = schema.KindEnumerated
			field.Options = options
			return field, nil
		}
	}

	switch declared {
	case "string":
		field.Kind = schema.KindText
	case "integer":
		field.Kind = schema.KindInteger
	case "number":
		field.Kind = schema.KindNumber
	case "boolean":
		field.Kind = schema.KindBoolean
	case "object":
		props := mappingEntry(node, "properties")
		if props == nil {
			return schema.FieldDescriptor{}, w.parseErr(ptr, "object field %q declares no properties", name)
		}
		children, err := w.fields(props, requiredSet(mappingEntry(node, "required")), fieldPath, ptr+"/properties", depth+1)
		if err != nil {
			return schema.FieldDescriptor{}, err
		}
		if len(children) == 0 {
			return schema.FieldDescriptor{}, w.parseErr(ptr, "object field %q declares no properties", name)
		}
		field.Kind = schema.KindNested
		field.Children = children
	case "":
		// No declared type and no recognizable shape.
		if mappingEntry(node, "properties") != nil {
			return w.field(name, withType(node, "object"), required, fieldPath, ptr, depth)
		}
		return w.unsupported(field, fieldPath, "untyped")
	default:
		return w.unsupported(field, fieldPath, declared)
	}

	return field, nil
}

func (w *walker) unsupported(field schema.FieldDescriptor, fieldPath, detected string) (schema.FieldDescriptor, error) {
	if w.strict {
		return schema.FieldDescriptor{}, &schema.UnsupportedKindError{Field: fieldPath, Detected: detected}
	}
	field.Kind = schema.KindText
	return field, nil
}

// deref resolves alias nodes and local "#/..." references, guarding against
// cycles and runaway chains.
func (w *walker) deref(node *yaml.Node, ptr string, depth int) (*yaml.Node, error) {
	for hops := 0; ; hops++ {
		if node == nil {
			return nil, w.parseErr(ptr, "schema node is missing")
		}
		if hops > w.maxDepth {
			return nil, w.parseErr(ptr, "reference chain exceeds %d hops", w.maxDepth)
		}
		if node.Kind == yaml.AliasNode {
			node = node.Alias
			continue
		}
		if node.Kind != yaml.MappingNode {
			return node, nil
		}
		refNode := mappingEntry(node, "$ref")
		if refNode == nil {
			return node, nil
		}
		ref := refNode.Value
		if _, busy := w.inFlight[ref]; busy {
			return nil, w.parseErr(ptr, "reference cycle through %q", ref)
		}
		target, err := resolvePointer(w.root, ref)
		if err != nil {
			return nil, w.parseErr(ptr, "unresolvable reference %q", ref)
		}
		w.inFlight[ref] = struct{}{}
		resolved, derefErr := w.deref(target, ptr, depth+1)
		delete(w.inFlight, ref)
		if derefErr != nil {
			return nil, derefErr
		}
		return resolved, nil
	}
}

func (w *walker) parseErr(ptr, format string, args ...any) error {
	return schema.NewParseError(w.location, ptr, format, args...)
}

// withType shallow-copies a mapping node and injects a type entry, used when a
// property shape implies its type.
func withType(node *yaml.Node, typ string) *yaml.Node {
	clone := *node
	clone.Content = append([]*yaml.Node{
		{Kind: yaml.ScalarNode, Tag: "!!str", Value: "type"},
		{Kind: yaml.ScalarNode, Tag: "!!str", Value: typ},
	}, node.Content...)
	return &clone
}

func unionLabel(node *yaml.Node) string {
	parts := make([]string, 0, len(node.Content))
	for _, entry := range node.Content {
		if value := scalarValue(entry); value != "" {
			parts = append(parts, value)
		}
	}
	return "union(" + strings.Join(parts, "|") + ")"
}

func joinField(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func documentBody(root *yaml.Node) *yaml.Node {
	if root == nil {
		return nil
	}
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return nil
		}
		return root.Content[0]
	}
	if root.Kind == 0 {
		return nil
	}
	return root
}

// mappingEntry returns the value node for a key, scanning pairs in order.
func mappingEntry(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func scalarValue(node *yaml.Node) string {
	if node == nil {
		return ""
	}
	if node.Kind == yaml.AliasNode {
		return scalarValue(node.Alias)
	}
	if node.Kind != yaml.ScalarNode {
		return ""
	}
	return node.Value
}

// stringOptions decodes an enum sequence, succeeding only when every entry is
// a string scalar.
func stringOptions(node *yaml.Node) ([]string, bool) {
	if node.Kind == yaml.AliasNode {
		return stringOptions(node.Alias)
	}
	if node.Kind != yaml.SequenceNode || len(node.Content) == 0 {
		return nil, false
	}
	options := make([]string, 0, len(node.Content))
	for _, entry := range node.Content {
		if entry.Kind == yaml.AliasNode {
			entry = entry.Alias
		}
		if entry.Kind != yaml.ScalarNode || entry.Tag != "!!str" {
			return nil, false
		}
		options = append(options, entry.Value)
	}
	return options, true
}

func requiredSet(node *yaml.Node) map[string]bool {
	if node == nil {
		return nil
	}
	if node.Kind == yaml.AliasNode {
		node = node.Alias
	}
	if node.Kind != yaml.SequenceNode {
		return nil
	}
	set := make(map[string]bool, len(node.Content))
	for _, entry := range node.Content {
		if value := scalarValue(entry); value != "" {
			set[value] = true
		}
	}
	return set
}

// resolvePointer walks a local JSON pointer ("#/a/b/c") against the document
// root, unescaping ~1 and ~0 per RFC 6901.
func resolvePointer(root *yaml.Node, ref string) (*yaml.Node, error) {
	if root == nil {
		return nil, fmt.Errorf("normalizer: document root is nil")
	}
	if !strings.HasPrefix(ref, "#/") {
		return nil, fmt.Errorf("normalizer: only local references are supported, got %q", ref)
	}
	current := documentBody(root)
	for _, segment := range strings.Split(strings.TrimPrefix(ref, "#/"), "/") {
		segment = strings.ReplaceAll(strings.ReplaceAll(segment, "~1", "/"), "~0", "~")
		if current != nil && current.Kind == yaml.AliasNode {
			current = current.Alias
		}
		next := mappingEntry(current, segment)
		if next == nil {
			return nil, fmt.Errorf("normalizer: pointer segment %q not found in %q", segment, ref)
		}
		current = next
	}
	return current, nil
}
