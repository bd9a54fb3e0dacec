package session

import (
	"fmt"
	"strings"
)

// ValueMap holds the values collected so far for the active schema: scalars,
// booleans, or nested ValueMaps keyed by field name. Both the manual form
// path and the conversational path write into the same instance through the
// owning Session.
type ValueMap map[string]any

// Clone returns a deep copy of the value map.
func (v ValueMap) Clone() ValueMap {
	if v == nil {
		return nil
	}
	out := make(ValueMap, len(v))
	for key, value := range v {
		out[key] = deepCopy(value)
	}
	return out
}

// Set writes a value at a path of field names, creating intermediate nested
// maps as needed. Existing values at the path are overwritten unconditionally;
// intermediates holding non-map values are replaced by fresh maps. No type
// check against the schema happens at write time.
func (v ValueMap) Set(path []string, value any) error {
	if v == nil {
		return fmt.Errorf("session: value map is nil")
	}
	if len(path) == 0 {
		return fmt.Errorf("session: field path is empty")
	}
	current := v
	for i, segment := range path {
		if strings.TrimSpace(segment) == "" {
			return fmt.Errorf("session: empty segment in field path %q", JoinPath(path))
		}
		if i == len(path)-1 {
			current[segment] = deepCopy(value)
			return nil
		}
		next, ok := current[segment].(map[string]any)
		if !ok || next == nil {
			next = make(map[string]any)
			current[segment] = next
		}
		current = next
	}
	return nil
}

// Get resolves a path of field names and reports whether a value exists there.
func (v ValueMap) Get(path []string) (any, bool) {
	if v == nil || len(path) == 0 {
		return nil, false
	}
	current := any(map[string]any(v))
	for _, segment := range path {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = node[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Merge folds a partial update into the map key by key. Map-valued keys merge
// recursively so sibling entries survive; anything else overwrites. The patch
// is never mutated.
func (v ValueMap) Merge(patch map[string]any) {
	if v == nil {
		return
	}
	mergeMaps(v, patch)
}

func mergeMaps(dst map[string]any, patch map[string]any) {
	for key, incoming := range patch {
		incomingMap, incomingIsMap := incoming.(map[string]any)
		existingMap, existingIsMap := dst[key].(map[string]any)
		if incomingIsMap && existingIsMap {
			mergeMaps(existingMap, incomingMap)
			continue
		}
		dst[key] = deepCopy(incoming)
	}
}

func deepCopy(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		clone := make(map[string]any, len(typed))
		for k, v := range typed {
			clone[k] = deepCopy(v)
		}
		return clone
	case ValueMap:
		return deepCopy(map[string]any(typed))
	case []any:
		clone := make([]any, len(typed))
		for i, v := range typed {
			clone[i] = deepCopy(v)
		}
		return clone
	default:
		return typed
	}
}

// SplitPath converts a dotted path into its field name segments.
func SplitPath(dotted string) []string {
	if dotted == "" {
		return nil
	}
	return strings.Split(dotted, ".")
}

// JoinPath renders field name segments as a dotted path.
func JoinPath(path []string) string {
	return strings.Join(path, ".")
}
