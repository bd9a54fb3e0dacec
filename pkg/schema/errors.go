package schema

import "fmt"

// ParseError reports a model definition that could not be normalized into
// recognized field kinds. Location identifies the source document, Pointer the
// offending position inside it when known.
type ParseError struct {
	Location string
	Pointer  string
	Message  string
	Err      error
}

func (e *ParseError) Error() string {
	msg := "schema: " + e.Message
	if e.Pointer != "" {
		msg += " at " + e.Pointer
	}
	if e.Location != "" {
		msg += " (" + e.Location + ")"
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError builds a ParseError with a formatted message.
func NewParseError(location, pointer, format string, args ...any) *ParseError {
	return &ParseError{
		Location: location,
		Pointer:  pointer,
		Message:  fmt.Sprintf(format, args...),
	}
}

// UnsupportedKindError reports a field whose declared type has no descriptor
// mapping. It always names the field and the detected type so callers can
// surface actionable feedback.
type UnsupportedKindError struct {
	Field    string
	Detected string
}

func (e *UnsupportedKindError) Error() string {
	return fmt.Sprintf("schema: field %q has unsupported type %q", e.Field, e.Detected)
}
