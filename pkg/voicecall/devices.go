package voicecall

import (
	"context"
	"io"

	"github.com/haivivi/callkit/pkg/audio/pcm"
)

// Microphone opens live audio input.
type Microphone interface {
	// Open acquires the input device. A refused permission returns an error
	// wrapping ErrPermissionDenied.
	Open(ctx context.Context) (Capture, error)
}

// Capture is an open input stream.
type Capture interface {
	// Read blocks for the next chunk of mono samples at the device's native
	// rate. It returns io.EOF once the capture is closed.
	Read() (pcm.FloatChunk, error)
	// Close stops the capture and unblocks Read. It may be called more than
	// once.
	Close() error
}

// Speaker opens the output device. The device pulls PCM16 audio in format
// from src at its own pace until the returned Closer is closed.
type Speaker interface {
	Open(ctx context.Context, format pcm.Format, src io.Reader) (io.Closer, error)
}

// MicrophoneFunc adapts a function to Microphone.
type MicrophoneFunc func(ctx context.Context) (Capture, error)

// Open implements Microphone.
func (f MicrophoneFunc) Open(ctx context.Context) (Capture, error) {
	return f(ctx)
}

// Devices are the collaborators a call acquires and releases on every
// connection attempt.
type Devices struct {
	Microphone Microphone
	Speaker    Speaker

	// Dialer defaults to a WebSocketDialer.
	Dialer Dialer
	// SchemaLoader defaults to FileSchemaLoader.
	SchemaLoader SchemaLoader
	// Locator is optional; without it the device descriptor has no location.
	Locator Locator
}
