package openapi

import "strings"

// Operation summarizes one OpenAPI operation for listings and lookups. The
// request body itself is extracted separately so property order can be read
// from the raw document.
type Operation struct {
	ID          string
	Method      string
	Path        string
	Summary     string
	Description string
	HasBody     bool
}

// SyntheticID derives a stable operation identifier when the document does
// not declare an operationId.
func SyntheticID(method, path string) string {
	return strings.ToLower(method) + ":" + path
}
