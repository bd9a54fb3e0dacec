package session

import (
	"fmt"
	"strings"
)

// ValidationError reports required field paths still missing at submit time.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("session: required fields missing: %s", strings.Join(e.Missing, ", "))
}

// CheckComplete returns a ValidationError when the session's required-field
// rule is not satisfied, nil otherwise. Callers gate submission on this, not
// on the collaborator's completion claim.
func CheckComplete(s *Session) error {
	if missing := s.Validate(); len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}
