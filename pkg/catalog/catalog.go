// Package catalog bundles ready-to-use model definitions so the service can
// offer working schemas before any external source is configured.
package catalog

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/goliatone/go-formflow/internal/schema/normalizer"
	"github.com/goliatone/go-formflow/pkg/schema"
)

//go:embed definitions/*.yaml
var definitions embed.FS

// ErrNotFound reports a catalog name with no bundled definition.
var ErrNotFound = errors.New("catalog: schema not found")

// Names lists the bundled schema names in sorted order.
func Names() []string {
	entries, err := fs.ReadDir(definitions, "definitions")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

// Has reports whether a definition is bundled under name.
func Has(name string) bool {
	p, ok := definitionPath(name)
	if !ok {
		return false
	}
	_, err := fs.Stat(definitions, p)
	return err == nil
}

// Definition returns the raw YAML definition for name.
func Definition(name string) ([]byte, error) {
	p, ok := definitionPath(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	raw, err := fs.ReadFile(definitions, p)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return raw, nil
}

// Descriptor normalizes the bundled definition for name.
func Descriptor(ctx context.Context, name string) (schema.SchemaDescriptor, error) {
	raw, err := Definition(name)
	if err != nil {
		return schema.SchemaDescriptor{}, err
	}
	doc, err := schema.InlineDocument(name, raw)
	if err != nil {
		return schema.SchemaDescriptor{}, err
	}
	return normalizer.New(schema.NewNormalizerOptions()).Normalize(ctx, doc)
}

// definitionPath rejects names that could escape the definitions directory.
func definitionPath(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, `/\.`) {
		return "", false
	}
	return "definitions/" + name + ".yaml", true
}
