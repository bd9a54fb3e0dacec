package chat

import "fmt"

// TransportError reports that the chat endpoint could not be reached at all:
// connection refused, DNS failure, or a timeout before a response arrived.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("chat: transport failure reaching %s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ServiceError reports that the chat service answered but the exchange
// failed: a non-2xx status, an empty completion, or a response that does not
// decode into the requested structure.
type ServiceError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *ServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("chat: service returned status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("chat: %s", e.Message)
}

func (e *ServiceError) Unwrap() error { return e.Err }
