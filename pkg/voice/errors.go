package voice

import "fmt"

// TranscriptionError reports a failed speech-to-text attempt, whether the
// clip was rejected before the call or the service failed during it.
type TranscriptionError struct {
	Detail string
	Err    error
}

func (e *TranscriptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("voice: transcription failed: %s: %v", e.Detail, e.Err)
	}
	return fmt.Sprintf("voice: transcription failed: %s", e.Detail)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }

// SynthesisError reports a failed text-to-speech attempt.
type SynthesisError struct {
	Detail string
	Err    error
}

func (e *SynthesisError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("voice: synthesis failed: %s: %v", e.Detail, e.Err)
	}
	return fmt.Sprintf("voice: synthesis failed: %s", e.Detail)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// PermissionError reports that an audio device denied access, typically the
// microphone on the capturing client.
type PermissionError struct {
	Resource string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("voice: %s access denied", e.Resource)
}
