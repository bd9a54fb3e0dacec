// Package voice wraps the speech collaborators of the form flow: a
// transcription endpoint turning recorded clips into text and a synthesis
// endpoint turning reply text into audio. Platform capture and playback stay
// outside; this package owns the contracts, the temporary clip lifecycle,
// and the one-playback-at-a-time rule.
package voice

import (
	"context"
	"time"
)

// DefaultMaxClipDuration bounds transcription input. The bound is enforced
// here, by the caller of the transcription service, never by the service
// itself.
const DefaultMaxClipDuration = 60 * time.Second

// Transcriber converts a recorded clip into plain text.
type Transcriber interface {
	Transcribe(ctx context.Context, clip *Clip) (string, error)
}

// SynthesisRequest describes one utterance to synthesize.
type SynthesisRequest struct {
	Text   string
	Voice  string
	Speed  float64
	Format string
}

// Synthesizer renders text into audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthesisRequest) ([]byte, error)
}

// Player is the platform playback sink. Implementations must return promptly
// once ctx is canceled; that is how an in-progress playback gets interrupted.
type Player interface {
	Play(ctx context.Context, audio []byte) error
}
