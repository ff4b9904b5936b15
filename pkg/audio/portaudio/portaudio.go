// Package portaudio binds the PortAudio library for live capture and
// playback.
//
// Capture reads mono float32 samples at the input device's native rate.
// Playback pulls PCM16 from an io.Reader at the output device's pace.
//
// For go build: requires portaudio installed via pkg-config (brew install portaudio)
package portaudio

/*
#cgo pkg-config: portaudio-2.0

#include <portaudio.h>
#include <stdlib.h>
#include <string.h>

// Wrapper functions using void* to avoid CGO type issues with PaStream
static PaError pa_open_stream(void **stream,
                              const PaStreamParameters *inputParams,
                              const PaStreamParameters *outputParams,
                              double sampleRate,
                              unsigned long framesPerBuffer,
                              PaStreamFlags streamFlags) {
    return Pa_OpenStream((PaStream**)stream, inputParams, outputParams, sampleRate,
                         framesPerBuffer, streamFlags, NULL, NULL);
}

static PaError pa_start_stream(void *stream) {
    return Pa_StartStream((PaStream*)stream);
}

static PaError pa_abort_stream(void *stream) {
    return Pa_AbortStream((PaStream*)stream);
}

static PaError pa_close_stream(void *stream) {
    return Pa_CloseStream((PaStream*)stream);
}

static PaError pa_read_stream(void *stream, void *buffer, unsigned long frames) {
    return Pa_ReadStream((PaStream*)stream, buffer, frames);
}

static PaError pa_write_stream(void *stream, const void *buffer, unsigned long frames) {
    return Pa_WriteStream((PaStream*)stream, buffer, frames);
}
*/
import "C"

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"
)

// ErrDeviceUnavailable is returned when there is no usable device, or the
// host refused access to it.
var ErrDeviceUnavailable = errors.New("portaudio: device unavailable")

var (
	initOnce sync.Once
	initErr  error
)

// paError converts a PortAudio error code to a Go error.
func paError(code C.PaError) error {
	switch code {
	case C.paNoError:
		return nil
	case C.paDeviceUnavailable, C.paInvalidDevice:
		return fmt.Errorf("%w: %s", ErrDeviceUnavailable, C.GoString(C.Pa_GetErrorText(code)))
	}
	return errors.New(C.GoString(C.Pa_GetErrorText(code)))
}

// Initialize initializes the PortAudio library.
// It is safe to call multiple times.
func Initialize() error {
	initOnce.Do(func() {
		initErr = paError(C.Pa_Initialize())
	})
	return initErr
}

// Terminate terminates the PortAudio library.
func Terminate() error {
	return paError(C.Pa_Terminate())
}

// DeviceInfo contains information about an audio device.
type DeviceInfo struct {
	Index             int     `json:"index"`
	Name              string  `json:"name"`
	MaxInputChannels  int     `json:"max_input_channels"`
	MaxOutputChannels int     `json:"max_output_channels"`
	DefaultSampleRate float64 `json:"default_sample_rate"`
	IsDefaultInput    bool    `json:"is_default_input,omitempty"`
	IsDefaultOutput   bool    `json:"is_default_output,omitempty"`
}

// Devices returns a list of available audio devices.
func Devices() ([]DeviceInfo, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}

	count := int(C.Pa_GetDeviceCount())
	if count < 0 {
		return nil, paError(C.PaError(count))
	}

	defaultInput := int(C.Pa_GetDefaultInputDevice())
	defaultOutput := int(C.Pa_GetDefaultOutputDevice())

	devices := make([]DeviceInfo, 0, count)
	for i := range count {
		info := C.Pa_GetDeviceInfo(C.PaDeviceIndex(i))
		if info == nil {
			continue
		}
		devices = append(devices, DeviceInfo{
			Index:             i,
			Name:              C.GoString(info.name),
			MaxInputChannels:  int(info.maxInputChannels),
			MaxOutputChannels: int(info.maxOutputChannels),
			DefaultSampleRate: float64(info.defaultSampleRate),
			IsDefaultInput:    i == defaultInput,
			IsDefaultOutput:   i == defaultOutput,
		})
	}
	return devices, nil
}

// sampleFormat selects the sample type of a stream direction.
type sampleFormat int

const (
	formatFloat32 sampleFormat = iota
	formatInt16
)

func (f sampleFormat) size() int {
	if f == formatFloat32 {
		return 4
	}
	return 2
}

func (f sampleFormat) pa() C.PaSampleFormat {
	if f == formatFloat32 {
		return C.paFloat32
	}
	return C.paInt16
}

// stream is a blocking mono PortAudio stream in one direction.
type stream struct {
	stream unsafe.Pointer
	buffer unsafe.Pointer
	frames int
	format sampleFormat
	rate   float64
	closed bool
	mu     sync.Mutex
}

// openStream opens a mono stream on the default device. A zero rate selects
// the device's default sample rate.
func openStream(input bool, format sampleFormat, rate float64, frames func(rate float64) int) (*stream, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}

	var device C.PaDeviceIndex
	if input {
		device = C.Pa_GetDefaultInputDevice()
	} else {
		device = C.Pa_GetDefaultOutputDevice()
	}
	if device == C.paNoDevice {
		return nil, fmt.Errorf("%w: no default device", ErrDeviceUnavailable)
	}
	info := C.Pa_GetDeviceInfo(device)
	if info == nil {
		return nil, fmt.Errorf("%w: failed to get device info", ErrDeviceUnavailable)
	}
	if rate <= 0 {
		rate = float64(info.defaultSampleRate)
	}

	params := &C.PaStreamParameters{
		device:                    device,
		channelCount:              1,
		sampleFormat:              format.pa(),
		hostApiSpecificStreamInfo: nil,
	}
	var inputParams, outputParams *C.PaStreamParameters
	if input {
		params.suggestedLatency = info.defaultLowInputLatency
		inputParams = params
	} else {
		params.suggestedLatency = info.defaultLowOutputLatency
		outputParams = params
	}

	n := frames(rate)
	var paStream unsafe.Pointer
	err := paError(C.pa_open_stream(
		&paStream,
		inputParams,
		outputParams,
		C.double(rate),
		C.ulong(n),
		C.paClipOff,
	))
	if err != nil {
		return nil, err
	}
	s := &stream{
		stream: paStream,
		buffer: C.malloc(C.size_t(n * format.size())),
		frames: n,
		format: format,
		rate:   rate,
	}
	if err := paError(C.pa_start_stream(paStream)); err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

// close aborts and closes the stream. Pending reads and writes return first.
func (s *stream) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	C.pa_abort_stream(s.stream)
	err := paError(C.pa_close_stream(s.stream))
	C.free(s.buffer)
	return err
}

// readFloat reads one buffer of float32 samples.
func (s *stream) readFloat() ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errClosed
	}
	// Input overflow drops samples but the stream keeps running.
	if code := C.pa_read_stream(s.stream, s.buffer, C.ulong(s.frames)); code != C.paInputOverflowed {
		if err := paError(code); err != nil {
			return nil, err
		}
	}
	samples := make([]float32, s.frames)
	C.memcpy(unsafe.Pointer(&samples[0]), s.buffer, C.size_t(s.frames*4))
	return samples, nil
}

// writePCM16 writes one buffer of little-endian PCM16 bytes.
func (s *stream) writePCM16(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errClosed
	}
	C.memcpy(s.buffer, unsafe.Pointer(&data[0]), C.size_t(len(data)))
	return paError(C.pa_write_stream(s.stream, s.buffer, C.ulong(len(data)/2)))
}

var errClosed = errors.New("portaudio: stream closed")
