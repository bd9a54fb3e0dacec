package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	formflow "github.com/goliatone/go-formflow"
	"github.com/goliatone/go-formflow/pkg/catalog"
	"github.com/goliatone/go-formflow/pkg/chat"
	"github.com/goliatone/go-formflow/pkg/gateway"
	"github.com/goliatone/go-formflow/pkg/renderers/tui"
	"github.com/goliatone/go-formflow/pkg/schema"
	"github.com/goliatone/go-formflow/pkg/session"
)

func main() {
	source := flag.String("schema", "", "catalog name, file path, or URL of a schema definition")
	operation := flag.String("operation", "", "operation ID when the document is an OpenAPI definition")
	format := flag.String("format", "text", "output format: text, json, or html")
	fill := flag.Bool("fill", false, "prompt interactively for every field")
	forward := flag.String("forward", "", "forward the collected values to this URL")
	method := flag.String("method", "POST", "HTTP method used with -forward")
	output := flag.String("output", "", "output file (stdout if empty)")
	flag.Parse()

	if *source == "" {
		fmt.Fprintln(os.Stderr, "usage: formflow-cli -schema <name|path|url> [-operation id] [-fill] [-forward url] [-format text|json|html]")
		fmt.Fprintf(os.Stderr, "catalog schemas: %s\n", strings.Join(catalog.Names(), ", "))
		os.Exit(2)
	}

	ctx := context.Background()

	descriptor, err := loadDescriptor(ctx, *source, *operation)
	if err != nil {
		log.Fatalf("failed to load schema: %v", err)
	}

	sess := formflow.NewSession(descriptor)

	if *fill {
		if err := tui.New().Fill(ctx, sess); err != nil {
			if errors.Is(err, tui.ErrAborted) {
				log.Fatalf("aborted")
			}
			log.Fatalf("fill failed: %v", err)
		}
		if missing := sess.Validate(); len(missing) > 0 {
			log.Fatalf("missing required fields: %s", strings.Join(missing, ", "))
		}
	}

	if *forward != "" {
		envelope, err := forwardValues(ctx, *forward, *method, sess.Values())
		if err != nil {
			log.Fatalf("forward failed: %v", err)
		}
		encoded, err := json.MarshalIndent(envelope, "", "  ")
		if err != nil {
			log.Fatalf("failed to encode result: %v", err)
		}
		writeOutput(*output, encoded)
		if !envelope.Success {
			os.Exit(1)
		}
		return
	}

	rendered, err := renderOutput(ctx, sess, *fill, *format)
	if err != nil {
		log.Fatalf("failed to render: %v", err)
	}
	writeOutput(*output, rendered)
}

// loadDescriptor resolves the -schema argument: a bundled catalog name wins,
// anything else loads as a file or URL and parses by document flavor.
func loadDescriptor(ctx context.Context, source, operation string) (formflow.SchemaDescriptor, error) {
	if catalog.Has(source) {
		return catalog.Descriptor(ctx, source)
	}

	loader := formflow.NewLoader(schema.WithHTTPFallback(30 * time.Second))
	doc, err := loader.Load(ctx, parseSource(source))
	if err != nil {
		return formflow.SchemaDescriptor{}, err
	}

	var options []formflow.ParseOption
	if operation != "" {
		options = append(options, formflow.WithOperation(operation))
	}
	return formflow.Parse(ctx, modelName(source), doc.Raw(), options...)
}

func parseSource(raw string) schema.Source {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return schema.SourceFromURL(raw)
	}
	return schema.SourceFromFile(raw)
}

func modelName(source string) string {
	base := filepath.Base(source)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func forwardValues(ctx context.Context, url, method string, values session.ValueMap) (gateway.Envelope, error) {
	forwarder := gateway.NewForwarder()
	return forwarder.Forward(ctx, gateway.Request{
		URL:    url,
		Method: method,
		Body:   values,
	})
}

// renderOutput serializes either the schema or, after a fill, the collected
// values. HTML always renders the full form with current values prefilled.
func renderOutput(ctx context.Context, sess *session.Session, filled bool, format string) ([]byte, error) {
	descriptor := sess.Descriptor()

	switch format {
	case "html":
		return formflow.RenderHTML(ctx, descriptor, formflow.RenderOptions{Values: sess.Values()})
	case "json":
		if filled {
			return json.MarshalIndent(sess.Values(), "", "  ")
		}
		return json.MarshalIndent(descriptorSummary(descriptor), "", "  ")
	case "text":
		header := descriptor.Name
		if descriptor.Title != "" {
			header = descriptor.Title
		}
		return []byte(header + "\n" + chat.FormatFields(descriptor.Fields) + "\n"), nil
	default:
		return nil, fmt.Errorf("unknown format %q (want text, json, or html)", format)
	}
}

// descriptorSummary mirrors the parse endpoint's field listing so CLI and
// HTTP consumers see the same shape.
func descriptorSummary(descriptor formflow.SchemaDescriptor) map[string]any {
	return map[string]any{
		"model_name":  descriptor.Name,
		"title":       descriptor.Title,
		"description": descriptor.Description,
		"fields":      fieldSummaries(descriptor.Fields),
	}
}

func fieldSummaries(fields []formflow.FieldDescriptor) []map[string]any {
	out := make([]map[string]any, 0, len(fields))
	for _, field := range fields {
		entry := map[string]any{
			"name":     field.Name,
			"type":     string(field.Kind),
			"required": field.Required,
		}
		if field.Default != nil {
			entry["default"] = field.Default
		}
		if field.Description != "" {
			entry["description"] = field.Description
		}
		if len(field.Options) > 0 {
			entry["options"] = field.Options
		}
		if len(field.Children) > 0 {
			entry["fields"] = fieldSummaries(field.Children)
		}
		out = append(out, entry)
	}
	return out
}

func writeOutput(path string, data []byte) {
	if path != "" {
		if err := os.WriteFile(path, data, 0o644); err != nil {
			log.Fatalf("failed to write output: %v", err)
		}
		fmt.Printf("written to %s\n", path)
		return
	}
	fmt.Println(string(data))
}
