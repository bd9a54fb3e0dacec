package schema

import (
	"fmt"
	"strings"
)

// FieldKind enumerates the value shapes a normalized field can take.
type FieldKind string

const (
	KindText       FieldKind = "text"
	KindInteger    FieldKind = "integer"
	KindNumber     FieldKind = "number"
	KindBoolean    FieldKind = "boolean"
	KindEnumerated FieldKind = "enumerated"
	KindNested     FieldKind = "nested"
)

// Valid reports whether the kind is one of the supported values.
func (k FieldKind) Valid() bool {
	switch k {
	case KindText, KindInteger, KindNumber, KindBoolean, KindEnumerated, KindNested:
		return true
	}
	return false
}

// FieldDescriptor is the normalized description of one data field. Options is
// populated exactly when Kind is enumerated; Children exactly when Kind is
// nested. Field names are unique within their parent scope.
type FieldDescriptor struct {
	Name        string
	Kind        FieldKind
	Required    bool
	Description string
	Default     any
	Options     []string
	Children    []FieldDescriptor
}

// Clone returns a deep copy of the descriptor tree.
func (f FieldDescriptor) Clone() FieldDescriptor {
	cloned := f
	if len(f.Options) > 0 {
		cloned.Options = append([]string(nil), f.Options...)
	}
	if len(f.Children) > 0 {
		cloned.Children = make([]FieldDescriptor, len(f.Children))
		for i, child := range f.Children {
			cloned.Children[i] = child.Clone()
		}
	}
	return cloned
}

// Child returns the named child descriptor of a nested field.
func (f FieldDescriptor) Child(name string) (FieldDescriptor, bool) {
	for _, child := range f.Children {
		if child.Name == name {
			return child, true
		}
	}
	return FieldDescriptor{}, false
}

func (f FieldDescriptor) validate(path string) error {
	at := f.Name
	if path != "" {
		at = path + "." + f.Name
	}
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("schema: field name is empty at %s", pathOrRoot(path))
	}
	if !f.Kind.Valid() {
		return fmt.Errorf("schema: unknown kind %q at %s", f.Kind, at)
	}
	if (f.Kind == KindEnumerated) != (len(f.Options) > 0) {
		return fmt.Errorf("schema: options must be non-empty exactly when kind is enumerated at %s", at)
	}
	if (f.Kind == KindNested) != (len(f.Children) > 0) {
		return fmt.Errorf("schema: children must be non-empty exactly when kind is nested at %s", at)
	}
	if err := validateFields(f.Children, at); err != nil {
		return err
	}
	return nil
}

// SchemaDescriptor is the normalized form of one loaded model: an ordered
// field list plus presentation metadata. Instances are created once per model
// load and replaced wholesale when another model is loaded, never mutated.
type SchemaDescriptor struct {
	Name        string
	Title       string
	Description string
	Fields      []FieldDescriptor
}

// Clone returns a deep copy of the schema descriptor.
func (s SchemaDescriptor) Clone() SchemaDescriptor {
	cloned := s
	if len(s.Fields) > 0 {
		cloned.Fields = make([]FieldDescriptor, len(s.Fields))
		for i, field := range s.Fields {
			cloned.Fields[i] = field.Clone()
		}
	}
	return cloned
}

// Field returns the named top-level field descriptor.
func (s SchemaDescriptor) Field(name string) (FieldDescriptor, bool) {
	for _, field := range s.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return FieldDescriptor{}, false
}

// FieldAt walks a path of field names through nested descriptors and returns
// the descriptor it lands on.
func (s SchemaDescriptor) FieldAt(path []string) (FieldDescriptor, bool) {
	if len(path) == 0 {
		return FieldDescriptor{}, false
	}
	current, ok := s.Field(path[0])
	if !ok {
		return FieldDescriptor{}, false
	}
	for _, name := range path[1:] {
		current, ok = current.Child(name)
		if !ok {
			return FieldDescriptor{}, false
		}
	}
	return current, true
}

// Validate checks the structural invariants of the descriptor tree: known
// kinds, options/children presence matching the kind in both directions, and
// name uniqueness per scope.
func (s SchemaDescriptor) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("schema: descriptor name is required")
	}
	return validateFields(s.Fields, "")
}

func validateFields(fields []FieldDescriptor, path string) error {
	seen := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		if _, dup := seen[field.Name]; dup {
			return fmt.Errorf("schema: duplicate field %q at %s", field.Name, pathOrRoot(path))
		}
		seen[field.Name] = struct{}{}
		if err := field.validate(path); err != nil {
			return err
		}
	}
	return nil
}

func pathOrRoot(path string) string {
	if path == "" {
		return "root"
	}
	return path
}
