package openapi

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formflow/pkg/schema"
)

const maxRefHops = 16

// requestSchemaNode walks the raw node tree to the operation's request body
// schema: paths → path item → method → requestBody → content → media type →
// schema. Path item and request body references are resolved locally along
// the way; references inside the schema itself are the normalizer's job.
func requestSchemaNode(location string, root *yaml.Node, path, method string) (*yaml.Node, error) {
	paths := mappingValue(docBody(root), "paths")
	if paths == nil {
		return nil, schema.NewParseError(location, "/paths", "document declares no paths")
	}

	ptr := "/paths/" + pointerEscape(path)
	item, err := resolveLocalRef(location, root, mappingValue(paths, path), ptr)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, schema.NewParseError(location, ptr, "path item is missing")
	}

	ptr += "/" + strings.ToLower(method)
	op := mappingValue(item, strings.ToLower(method))
	if op == nil {
		return nil, schema.NewParseError(location, ptr, "operation is missing")
	}

	ptr += "/requestBody"
	request, err := resolveLocalRef(location, root, mappingValue(op, "requestBody"), ptr)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, schema.NewParseError(location, ptr, "operation has no request body")
	}

	content := mappingValue(request, "content")
	if content == nil || content.Kind != yaml.MappingNode {
		return nil, schema.NewParseError(location, ptr+"/content", "request body has no content")
	}

	media := mappingValue(content, "application/json")
	mediaKey := "application/json"
	if media == nil {
		// Fall back to the first media type carrying a schema; form-encoded
		// bodies describe the same object shape.
		for i := 0; i+1 < len(content.Content); i += 2 {
			if mappingValue(content.Content[i+1], "schema") != nil {
				media = content.Content[i+1]
				mediaKey = content.Content[i].Value
				break
			}
		}
	}
	if media == nil {
		return nil, schema.NewParseError(location, ptr+"/content", "no media type carries a schema")
	}

	schemaNode := mappingValue(media, "schema")
	if schemaNode == nil {
		return nil, schema.NewParseError(location, ptr+"/content/"+pointerEscape(mediaKey), "media type has no schema")
	}
	return schemaNode, nil
}

// resolveLocalRef follows "$ref" entries until it reaches a concrete node. A
// nil input resolves to nil so callers can report the missing piece with
// their own pointer context.
func resolveLocalRef(location string, root, node *yaml.Node, ptr string) (*yaml.Node, error) {
	for hops := 0; node != nil; hops++ {
		if hops > maxRefHops {
			return nil, schema.NewParseError(location, ptr, "reference chain exceeds %d hops", maxRefHops)
		}
		if node.Kind == yaml.AliasNode {
			node = node.Alias
			continue
		}
		refNode := mappingValue(node, "$ref")
		if refNode == nil {
			return node, nil
		}
		ref := refNode.Value
		if !strings.HasPrefix(ref, "#/") {
			return nil, schema.NewParseError(location, ptr, "only local references are supported, got %q", ref)
		}
		target := docBody(root)
		for _, segment := range strings.Split(strings.TrimPrefix(ref, "#/"), "/") {
			target = mappingValue(target, pointerUnescape(segment))
		}
		if target == nil {
			return nil, schema.NewParseError(location, ptr, "unresolvable reference %q", ref)
		}
		node = target
	}
	return nil, nil
}

func docBody(root *yaml.Node) *yaml.Node {
	if root == nil {
		return nil
	}
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return nil
		}
		return root.Content[0]
	}
	return root
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil {
		return nil
	}
	if node.Kind == yaml.AliasNode {
		return mappingValue(node.Alias, key)
	}
	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

// pointerEscape applies RFC 6901 escaping so slashes inside path templates
// stay one pointer segment.
func pointerEscape(segment string) string {
	return strings.ReplaceAll(strings.ReplaceAll(segment, "~", "~0"), "/", "~1")
}

func pointerUnescape(segment string) string {
	return strings.ReplaceAll(strings.ReplaceAll(segment, "~1", "/"), "~0", "~")
}
