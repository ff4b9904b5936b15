package portaudio

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/haivivi/callkit/pkg/audio/pcm"
)

// Capture records mono audio from the default input device at its native
// sample rate.
type Capture struct {
	stream *stream
	closed atomic.Bool
}

// OpenCapture starts recording in buffers of the given duration.
func OpenCapture(bufferDuration time.Duration) (*Capture, error) {
	s, err := openStream(true, formatFloat32, 0, func(rate float64) int {
		return max(1, int(rate*bufferDuration.Seconds()))
	})
	if err != nil {
		return nil, err
	}
	return &Capture{stream: s}, nil
}

// SampleRate returns the native rate of the device.
func (c *Capture) SampleRate() int {
	return int(c.stream.rate)
}

// Read blocks for the next buffer. It returns io.EOF after Close.
func (c *Capture) Read() (pcm.FloatChunk, error) {
	if c.closed.Load() {
		return pcm.FloatChunk{}, io.EOF
	}
	samples, err := c.stream.readFloat()
	if err != nil {
		if c.closed.Load() || errors.Is(err, errClosed) {
			return pcm.FloatChunk{}, io.EOF
		}
		return pcm.FloatChunk{}, err
	}
	return pcm.FloatChunk{Samples: samples, SampleRate: int(c.stream.rate)}, nil
}

// Close stops the recording. It may be called more than once.
func (c *Capture) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.stream.close()
}

// Player feeds the default output device from a reader.
type Player struct {
	stream *stream
	src    io.Reader
	done   chan struct{}
	once   sync.Once
	err    error
}

// Play opens the default output device at format's rate and pulls
// buffers of the given duration from src until src fails or the Player is
// closed. src must produce mono little-endian PCM16.
func Play(format pcm.Format, src io.Reader, bufferDuration time.Duration) (*Player, error) {
	frames := int(format.SamplesInDuration(bufferDuration))
	s, err := openStream(false, formatInt16, float64(format.SampleRate()), func(float64) int {
		return max(1, frames)
	})
	if err != nil {
		return nil, err
	}
	p := &Player{stream: s, src: src, done: make(chan struct{})}
	go p.loop()
	return p, nil
}

func (p *Player) loop() {
	defer close(p.done)
	buf := make([]byte, p.stream.frames*2)
	for {
		if _, err := io.ReadFull(p.src, buf); err != nil {
			return
		}
		if err := p.stream.writePCM16(buf); err != nil {
			return
		}
	}
}

// Close stops playback and waits for the pull loop to exit.
func (p *Player) Close() error {
	p.once.Do(func() {
		p.err = p.stream.close()
		<-p.done
	})
	return p.err
}
