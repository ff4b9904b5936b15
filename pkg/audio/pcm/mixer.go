package pcm

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"time"
)

// MixerOption is an option for configuring a Mixer.
type MixerOption interface {
	apply(*Mixer)
}

type masterGainOption struct {
	gain float32
}

func (o masterGainOption) apply(mx *Mixer) {
	mx.gain.Store(o.gain)
}

// WithMasterGain sets the gain applied to the mixed output. Defaults to 1.
func WithMasterGain(gain float32) MixerOption {
	return masterGainOption{gain: gain}
}

// Mixer renders scheduled voices into a single PCM16 stream.
//
// The mixer's clock is the number of samples rendered so far: it advances only
// when the output device pulls audio through Read, so Now is always expressed
// in the device's clock domain. Read never blocks; it renders silence when no
// voice is due.
//
// It is safe to call methods on Mixer from multiple goroutines. Voice
// completion callbacks run on the goroutine calling Read, Stop or Close,
// outside the mixer's lock.
type Mixer struct {
	output Format
	gain   AtomicFloat32

	mu     sync.Mutex
	pos    int64
	voices []*Voice
	closed bool

	buf []float32
}

// NewMixer creates a new Mixer with the specified output format and options.
func NewMixer(output Format, opts ...MixerOption) *Mixer {
	mx := &Mixer{
		output: output,
		gain:   NewAtomicFloat32(1),
	}
	for _, opt := range opts {
		opt.apply(mx)
	}
	return mx
}

// Output returns the output format of the mixer.
func (mx *Mixer) Output() Format {
	return mx.output
}

// SetGain changes the master gain.
func (mx *Mixer) SetGain(gain float32) {
	mx.gain.Store(gain)
}

// Now returns the current position of the output clock.
func (mx *Mixer) Now() time.Duration {
	mx.mu.Lock()
	defer mx.mu.Unlock()
	return mx.output.SamplesDuration(mx.pos)
}

// Active returns the number of voices that have not finished yet.
func (mx *Mixer) Active() int {
	mx.mu.Lock()
	defer mx.mu.Unlock()
	return len(mx.voices)
}

// Schedule adds a voice that starts playing samples at the given output clock
// time. A start time in the past starts the voice at the next rendered
// sample. Schedule copies samples and returns immediately.
func (mx *Mixer) Schedule(at time.Duration, samples []float32, opts ...VoiceOption) (*Voice, error) {
	v := &Voice{
		mixer:   mx,
		samples: append([]float32(nil), samples...),
		gain:    1,
	}
	for _, opt := range opts {
		opt.apply(v)
	}
	v.prepare(mx.output)

	mx.mu.Lock()
	defer mx.mu.Unlock()
	if mx.closed {
		return nil, fmt.Errorf("pcm/mixer: schedule: %w", io.ErrClosedPipe)
	}
	v.start = max(mx.output.SamplesInDuration(at), mx.pos)
	mx.voices = append(mx.voices, v)
	return v, nil
}

// Read renders len(p)/2 samples of mixed audio as little-endian PCM16 and
// advances the clock by the same amount. It returns io.EOF after Close.
func (mx *Mixer) Read(p []byte) (int, error) {
	n := len(p) / 2
	if n == 0 {
		return 0, nil
	}

	mx.mu.Lock()
	if mx.closed {
		mx.mu.Unlock()
		return 0, io.EOF
	}
	if len(mx.buf) < n {
		mx.buf = make([]float32, n)
	}
	buf := mx.buf[:n]
	clear(buf)

	var done []*Voice
	kept := mx.voices[:0]
	for _, v := range mx.voices {
		if v.render(buf, mx.pos) {
			done = append(done, v)
			continue
		}
		kept = append(kept, v)
	}
	clear(mx.voices[len(kept):])
	mx.voices = kept
	mx.pos += int64(n)
	mx.mu.Unlock()

	gain := mx.gain.Load()
	for i, s := range buf {
		binary.LittleEndian.PutUint16(p[i*2:], uint16(Quantize(s*gain)))
	}
	for _, v := range done {
		v.finish(false)
	}
	return n * 2, nil
}

// StopAll stops every scheduled voice. Their completion callbacks report an
// interruption.
func (mx *Mixer) StopAll() {
	mx.mu.Lock()
	voices := mx.voices
	mx.voices = nil
	mx.mu.Unlock()
	for _, v := range voices {
		v.finish(true)
	}
}

// Close stops all voices and makes Read return io.EOF.
func (mx *Mixer) Close() error {
	mx.mu.Lock()
	if mx.closed {
		mx.mu.Unlock()
		return nil
	}
	mx.closed = true
	mx.mu.Unlock()
	mx.StopAll()
	return nil
}

func (mx *Mixer) remove(v *Voice) bool {
	mx.mu.Lock()
	defer mx.mu.Unlock()
	for i, it := range mx.voices {
		if it == v {
			mx.voices = append(mx.voices[:i], mx.voices[i+1:]...)
			return true
		}
	}
	return false
}

// VoiceOption is an option for configuring a Voice.
type VoiceOption interface {
	apply(*Voice)
}

type voiceGainOption float32

func (o voiceGainOption) apply(v *Voice) { v.gain = float32(o) }

// WithGain sets the peak gain of a voice. Defaults to 1.
func WithGain(gain float32) VoiceOption {
	return voiceGainOption(gain)
}

type voiceFadeOption time.Duration

func (o voiceFadeOption) apply(v *Voice) { v.fade = time.Duration(o) }

// WithFade ramps the voice in from silence and out to silence. The ramp is
// shortened to a tenth of the voice's duration for short voices.
func WithFade(d time.Duration) VoiceOption {
	return voiceFadeOption(d)
}

type voiceHighPassOption float64

func (o voiceHighPassOption) apply(v *Voice) { v.cutoff = float64(o) }

// WithHighPass filters the voice with a one-pole high-pass at the given
// cutoff frequency in Hz.
func WithHighPass(hz float64) VoiceOption {
	return voiceHighPassOption(hz)
}

type voiceDoneOption func(*Voice, bool)

func (o voiceDoneOption) apply(v *Voice) { v.onDone = o }

// OnDone sets a callback invoked exactly once when the voice finishes or is
// stopped. interrupted reports whether the voice was cut short.
func OnDone(fn func(v *Voice, interrupted bool)) VoiceOption {
	return voiceDoneOption(fn)
}

// Voice is a single scheduled buffer with its own gain envelope and filter
// state. Voices share nothing with each other.
type Voice struct {
	mixer   *Mixer
	samples []float32
	start   int64

	gain   float32
	fade   time.Duration
	cutoff float64
	onDone func(*Voice, bool)

	rampIn, rampOut int
	alpha           float32
	prevIn, prevOut float32

	finishOnce sync.Once
	format     Format
}

func (v *Voice) prepare(f Format) {
	v.format = f
	if v.fade > 0 {
		ramp := int(f.SamplesInDuration(v.fade))
		if limit := len(v.samples) / 10; ramp > limit {
			ramp = limit
		}
		v.rampIn, v.rampOut = ramp, ramp
	}
	if v.cutoff > 0 {
		rc := 1 / (2 * math.Pi * v.cutoff)
		dt := 1 / float64(f.SampleRate())
		v.alpha = float32(rc / (rc + dt))
	}
}

// Start returns the output clock time the voice starts at.
func (v *Voice) Start() time.Duration {
	return v.format.SamplesDuration(v.start)
}

// Duration returns the playing time of the voice.
func (v *Voice) Duration() time.Duration {
	return v.format.SamplesDuration(int64(len(v.samples)))
}

// End returns the output clock time the voice ends at.
func (v *Voice) End() time.Duration {
	return v.format.SamplesDuration(v.start + int64(len(v.samples)))
}

// Stop removes the voice from the mixer immediately. It is a no-op once the
// voice has finished.
func (v *Voice) Stop() {
	if v.mixer.remove(v) {
		v.finish(true)
	}
}

func (v *Voice) finish(interrupted bool) {
	v.finishOnce.Do(func() {
		if v.onDone != nil {
			v.onDone(v, interrupted)
		}
	})
}

// render mixes the part of the voice overlapping [pos, pos+len(buf)) into buf
// and reports whether the voice has finished.
func (v *Voice) render(buf []float32, pos int64) bool {
	end := v.start + int64(len(v.samples))
	from := max(v.start, pos)
	to := min(end, pos+int64(len(buf)))
	for s := from; s < to; s++ {
		i := int(s - v.start)
		x := v.samples[i]
		if v.alpha > 0 {
			y := v.alpha * (v.prevOut + x - v.prevIn)
			v.prevIn, v.prevOut = x, y
			x = y
		}
		buf[s-pos] += x * v.gain * v.envelope(i)
	}
	return end <= pos+int64(len(buf))
}

func (v *Voice) envelope(i int) float32 {
	e := float32(1)
	if v.rampIn > 0 && i < v.rampIn {
		e = float32(i) / float32(v.rampIn)
	}
	if n := len(v.samples); v.rampOut > 0 && i >= n-v.rampOut {
		if out := float32(n-i) / float32(v.rampOut); out < e {
			e = out
		}
	}
	return e
}
