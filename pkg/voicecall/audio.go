package voicecall

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/youpy/go-wav"
	"github.com/zaf/g711"

	"github.com/haivivi/callkit/pkg/audio/pcm"
	"github.com/haivivi/callkit/pkg/audio/resampler"
)

// WAV format tags.
const (
	wavPCM   = 1
	wavFloat = 3
	wavAlaw  = 6
	wavMulaw = 7
)

// DecodeAudio decodes an inbound audio payload into mono float samples.
//
// Payloads starting with a RIFF/WAVE header are parsed as WAV and carry their
// own rate. Anything else is raw audio in the given encoding (pcm16, mulaw or
// alaw) at rate Hz with the given number of interleaved channels.
func DecodeAudio(data []byte, encoding string, rate, channels int) (pcm.FloatChunk, error) {
	if len(data) == 0 {
		return pcm.FloatChunk{}, decodeErr("audio", errors.New("empty payload"))
	}
	if isWAV(data) {
		return decodeWAV(data)
	}
	if rate <= 0 {
		return pcm.FloatChunk{}, decodeErr("audio", fmt.Errorf("invalid sample rate %d", rate))
	}
	samples, err := decodeRaw(data, encoding)
	if err != nil {
		return pcm.FloatChunk{}, err
	}
	if channels > 1 {
		samples = resampler.Downmix(samples, channels)
	}
	return pcm.FloatChunk{Samples: samples, SampleRate: rate}, nil
}

func isWAV(data []byte) bool {
	return len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

func decodeRaw(data []byte, encoding string) ([]float32, error) {
	switch encoding {
	case EncodingMulaw:
		data = g711.DecodeUlaw(data)
	case EncodingAlaw:
		data = g711.DecodeAlaw(data)
	case EncodingPCM16, "":
	default:
		return nil, decodeErr("audio", fmt.Errorf("unknown encoding %q", encoding))
	}
	samples, err := pcm.Decode(data)
	if err != nil {
		return nil, decodeErr("pcm16", err)
	}
	return samples, nil
}

func decodeWAV(data []byte) (pcm.FloatChunk, error) {
	r := wav.NewReader(bytes.NewReader(data))
	format, err := r.Format()
	if err != nil {
		return pcm.FloatChunk{}, decodeErr("wav header", err)
	}
	if format.SampleRate == 0 || format.NumChannels == 0 {
		return pcm.FloatChunk{}, decodeErr("wav header", errors.New("invalid format"))
	}

	var raw []byte
	buf := make([]byte, 8192)
	for {
		n, err := r.Read(buf)
		raw = append(raw, buf[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			return pcm.FloatChunk{}, decodeErr("wav data", err)
		}
		if n == 0 {
			break
		}
	}

	var samples []float32
	switch {
	case format.AudioFormat == wavPCM && format.BitsPerSample == 16:
		samples, err = pcm.Decode(raw[:len(raw)&^1])
	case format.AudioFormat == wavPCM && format.BitsPerSample == 8:
		samples = make([]float32, len(raw))
		for i, b := range raw {
			samples[i] = (float32(b) - 128) / 128
		}
	case format.AudioFormat == wavFloat && format.BitsPerSample == 32:
		samples = make([]float32, len(raw)/4)
		for i := range samples {
			samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
	case format.AudioFormat == wavMulaw:
		samples, err = pcm.Decode(g711.DecodeUlaw(raw))
	case format.AudioFormat == wavAlaw:
		samples, err = pcm.Decode(g711.DecodeAlaw(raw))
	default:
		return pcm.FloatChunk{}, decodeErr("wav", fmt.Errorf("unsupported format %d/%d bits", format.AudioFormat, format.BitsPerSample))
	}
	if err != nil {
		return pcm.FloatChunk{}, decodeErr("wav data", err)
	}
	if ch := int(format.NumChannels); ch > 1 {
		samples = resampler.Downmix(samples, ch)
	}
	return pcm.FloatChunk{Samples: samples, SampleRate: int(format.SampleRate)}, nil
}
