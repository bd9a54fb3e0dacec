// Package template defines the renderer-agnostic template engine contract
// shared by the HTML form renderer and the conversational prompt builder.
// Adapters live in subpackages so callers depend on the interface only.
package template
