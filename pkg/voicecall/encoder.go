package voicecall

import (
	"fmt"
	"time"

	"github.com/haivivi/callkit/pkg/audio/pcm"
	"github.com/haivivi/callkit/pkg/audio/resampler"
)

// Encoder turns capture chunks at any native rate into fixed-duration PCM16
// frames at the target format. It is not safe for concurrent use.
type Encoder struct {
	format       pcm.Format
	kind         resampler.Kind
	frameSamples int

	srcRate int
	stream  resampler.Stream
	pending []float32
	seq     uint64
	now     func() time.Time
}

// NewEncoder creates an Encoder producing frames of the given duration. A zero
// frame duration emits one frame per capture chunk.
func NewEncoder(format pcm.Format, frame time.Duration, kind resampler.Kind) *Encoder {
	return &Encoder{
		format:       format,
		kind:         kind,
		frameSamples: int(format.SamplesInDuration(frame)),
		now:          time.Now,
	}
}

// Format returns the output format.
func (e *Encoder) Format() pcm.Format {
	return e.format
}

// Encode resamples c to the target rate and returns every complete frame.
// Samples that do not fill a frame are kept for the next call. A change of
// the native rate restarts the resampler.
func (e *Encoder) Encode(c pcm.FloatChunk) ([]EncodedFrame, error) {
	if c.SampleRate <= 0 {
		return nil, fmt.Errorf("voicecall: encode: invalid sample rate %d", c.SampleRate)
	}
	if e.stream == nil || c.SampleRate != e.srcRate {
		s, err := resampler.New(e.kind, c.SampleRate, e.format.SampleRate())
		if err != nil {
			return nil, fmt.Errorf("voicecall: encode: %w", err)
		}
		e.stream, e.srcRate = s, c.SampleRate
	}
	out, err := e.stream.Process(c.Samples)
	if err != nil {
		return nil, fmt.Errorf("voicecall: encode: %w", err)
	}
	captured := e.now()
	if e.frameSamples <= 0 {
		if len(out) == 0 {
			return nil, nil
		}
		return []EncodedFrame{e.frame(out, captured)}, nil
	}

	e.pending = append(e.pending, out...)
	var frames []EncodedFrame
	for len(e.pending) >= e.frameSamples {
		frames = append(frames, e.frame(e.pending[:e.frameSamples], captured))
		e.pending = e.pending[e.frameSamples:]
	}
	if len(e.pending) == 0 {
		e.pending = nil
	}
	return frames, nil
}

func (e *Encoder) frame(samples []float32, captured time.Time) EncodedFrame {
	e.seq++
	return EncodedFrame{
		Data:     pcm.Encode(samples),
		Format:   e.format,
		Seq:      e.seq,
		Captured: captured,
	}
}

// Reset drops buffered samples and resampler history.
func (e *Encoder) Reset() {
	if e.stream != nil {
		e.stream.Reset()
	}
	e.pending = nil
}
