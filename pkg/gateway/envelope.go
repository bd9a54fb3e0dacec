package gateway

// StatusTransportFailure is the sentinel status code recorded in an
// Envelope when no HTTP status was received at all (connection refused,
// DNS failure, timeout before the first response byte).
const StatusTransportFailure = 0

// Envelope is the normalized outcome of a single forwarding call. It is
// produced for every invocation, success or failure, so callers render
// one uniform object instead of branching on thrown errors.
//
// Body preserves the upstream payload without loss: structured content
// types decode to their full shape, text bodies keep their exact bytes
// as a string, and anything else is carried as a base64 string.
type Envelope struct {
	Success    bool              `json:"success"`
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"response_headers,omitempty"`
	Body       any               `json:"response_data,omitempty"`
	Elapsed    float64           `json:"execution_time"`
	ErrMessage string            `json:"error_message,omitempty"`
}

// Failed reports whether the envelope records a pure transport failure,
// as opposed to a response that arrived with a non-2xx status.
func (e Envelope) Failed() bool {
	return !e.Success && e.StatusCode == StatusTransportFailure
}

func transportFailure(msg string, elapsed float64) Envelope {
	return Envelope{
		Success:    false,
		StatusCode: StatusTransportFailure,
		Body:       msg,
		Elapsed:    elapsed,
		ErrMessage: msg,
	}
}
