package voice

import (
	"context"
	"sync"
)

// Playback serializes audio output: at most one synthesis plays at a time
// and starting a new one interrupts whatever is in progress by canceling its
// context.
type Playback struct {
	sink Player

	mu     sync.Mutex
	cancel context.CancelFunc
	gen    uint64
}

// NewPlayback wraps a platform sink.
func NewPlayback(sink Player) *Playback {
	return &Playback{sink: sink}
}

// Play starts the given audio, first interrupting any playback still
// running. It blocks until this playback finishes or is itself interrupted;
// an interruption surfaces as the sink's context error.
func (p *Playback) Play(ctx context.Context, audio []byte) error {
	playCtx, cancel := context.WithCancel(ctx)

	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.cancel = cancel
	p.gen++
	mine := p.gen
	p.mu.Unlock()

	err := p.sink.Play(playCtx, audio)

	p.mu.Lock()
	// Clear the slot only if a newer playback has not already taken it.
	if p.gen == mine {
		p.cancel = nil
	}
	p.mu.Unlock()
	cancel()

	return err
}

// Stop interrupts the current playback, if any.
func (p *Playback) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}
