package voice

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Service ties the voice collaborators together for the form flow: clip
// intake with the duration bound, transcription, and interruptible spoken
// replies.
type Service struct {
	transcriber Transcriber
	synthesizer Synthesizer
	playback    *Playback

	maxClip time.Duration
	tempDir string
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithMaxClipDuration overrides the transcription input bound.
func WithMaxClipDuration(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.maxClip = d
		}
	}
}

// WithTempDir parks clip files under dir instead of the system temp
// directory.
func WithTempDir(dir string) ServiceOption {
	return func(s *Service) {
		s.tempDir = dir
	}
}

// WithPlayer enables spoken replies through the given platform sink.
func WithPlayer(sink Player) ServiceOption {
	return func(s *Service) {
		if sink != nil {
			s.playback = NewPlayback(sink)
		}
	}
}

// NewService wires the transcriber and synthesizer. Either may be nil when
// only one direction is used; calls into the missing one fail cleanly.
func NewService(transcriber Transcriber, synthesizer Synthesizer, opts ...ServiceOption) *Service {
	s := &Service{
		transcriber: transcriber,
		synthesizer: synthesizer,
		maxClip:     DefaultMaxClipDuration,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// TranscribeAudio parks the uploaded audio in a temporary clip, enforces the
// duration bound, and runs transcription. The clip is released on every exit
// path: bound rejection, transcription failure, or success.
func (s *Service) TranscribeAudio(ctx context.Context, audio []byte, duration time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.transcriber == nil {
		return "", &TranscriptionError{Detail: "no transcriber configured"}
	}
	if len(audio) == 0 {
		return "", &TranscriptionError{Detail: "empty audio payload"}
	}

	var text string
	err := WithClip(s.tempDir, audio, duration, func(clip *Clip) error {
		if clip.Duration() > s.maxClip {
			return &TranscriptionError{
				Detail: fmt.Sprintf("clip of %s exceeds the %s bound", clip.Duration(), s.maxClip),
			}
		}
		out, err := s.transcriber.Transcribe(ctx, clip)
		if err != nil {
			return err
		}
		text = out
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

// Speak synthesizes the reply and plays it, interrupting any reply still
// playing. Without a configured player the synthesized audio is returned for
// the caller to deliver.
func (s *Service) Speak(ctx context.Context, req SynthesisRequest) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.synthesizer == nil {
		return nil, &SynthesisError{Detail: "no synthesizer configured"}
	}
	if req.Text == "" {
		return nil, &SynthesisError{Detail: "empty text"}
	}

	audio, err := s.synthesizer.Synthesize(ctx, req)
	if err != nil {
		return nil, err
	}

	if s.playback != nil {
		err := s.playback.Play(ctx, audio)
		// An interrupt from a newer playback is expected, not an error.
		if err != nil && ctx.Err() == nil && !errors.Is(err, context.Canceled) {
			return audio, &SynthesisError{Detail: "playback failed", Err: err}
		}
	}
	return audio, nil
}

// StopSpeaking interrupts the current spoken reply, if any.
func (s *Service) StopSpeaking() {
	if s.playback != nil {
		s.playback.Stop()
	}
}
