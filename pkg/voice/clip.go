package voice

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Clip is a recorded audio snippet parked in a temporary file between upload
// and transcription. Every acquired clip must be released exactly once;
// Release is idempotent so deferring it is always safe.
type Clip struct {
	path     string
	duration time.Duration

	once    sync.Once
	release error
}

// NewClip writes audio data into a fresh temporary file under dir (or the
// system temp directory when dir is empty) and returns the handle.
func NewClip(dir string, data []byte, duration time.Duration) (*Clip, error) {
	f, err := os.CreateTemp(dir, "formflow-clip-*.audio")
	if err != nil {
		return nil, fmt.Errorf("voice: creating clip file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("voice: writing clip file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("voice: closing clip file: %w", err)
	}

	return &Clip{path: f.Name(), duration: duration}, nil
}

// Path returns the clip's location on disk.
func (c *Clip) Path() string { return c.path }

// Duration reports the recorded length as measured by the capturing client.
func (c *Clip) Duration() time.Duration { return c.duration }

// Open returns a reader over the clip audio.
func (c *Clip) Open() (io.ReadCloser, error) {
	f, err := os.Open(c.path)
	if err != nil {
		return nil, fmt.Errorf("voice: opening clip: %w", err)
	}
	return f, nil
}

// Release removes the temporary file. Safe to call more than once.
func (c *Clip) Release() error {
	c.once.Do(func() {
		if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
			c.release = fmt.Errorf("voice: releasing clip: %w", err)
		}
	})
	return c.release
}

// WithClip acquires a clip, runs fn, and guarantees release on every exit
// path, including a panic inside fn.
func WithClip(dir string, data []byte, duration time.Duration, fn func(*Clip) error) error {
	clip, err := NewClip(dir, data, duration)
	if err != nil {
		return err
	}
	defer clip.Release()
	return fn(clip)
}
