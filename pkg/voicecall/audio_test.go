package voicecall

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/zaf/g711"

	"github.com/haivivi/callkit/pkg/audio/pcm"
)

// wavFile builds a canonical 44-byte header WAV around data.
func wavFile(format, channels uint16, rate uint32, bits uint16, data []byte) []byte {
	var b bytes.Buffer
	le := func(v any) { binary.Write(&b, binary.LittleEndian, v) }
	b.WriteString("RIFF")
	le(uint32(36 + len(data)))
	b.WriteString("WAVE")
	b.WriteString("fmt ")
	le(uint32(16))
	le(format)
	le(channels)
	le(rate)
	le(rate * uint32(channels) * uint32(bits/8))
	le(channels * bits / 8)
	le(bits)
	b.WriteString("data")
	le(uint32(len(data)))
	b.Write(data)
	return b.Bytes()
}

func near(a, b float32) bool {
	return math.Abs(float64(a-b)) < 0.01
}

func TestDecodeAudioPCM16(t *testing.T) {
	c, err := DecodeAudio(pcm.Encode([]float32{0.5, -0.5, 0.25}), EncodingPCM16, 24000, 1)
	if err != nil {
		t.Fatal(err)
	}
	if c.SampleRate != 24000 || len(c.Samples) != 3 || !near(c.Samples[1], -0.5) {
		t.Errorf("chunk = %+v", c)
	}
}

func TestDecodeAudioStereoDownmix(t *testing.T) {
	c, err := DecodeAudio(pcm.Encode([]float32{0.5, 0.1, -0.2, -0.4}), EncodingPCM16, 16000, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Samples) != 2 || !near(c.Samples[0], 0.3) || !near(c.Samples[1], -0.3) {
		t.Errorf("samples = %v", c.Samples)
	}
}

func TestDecodeAudioG711(t *testing.T) {
	lin := pcm.Encode([]float32{0.5, -0.5})
	for _, tt := range []struct {
		encoding string
		data     []byte
	}{
		{EncodingMulaw, g711.EncodeUlaw(lin)},
		{EncodingAlaw, g711.EncodeAlaw(lin)},
	} {
		c, err := DecodeAudio(tt.data, tt.encoding, 8000, 1)
		if err != nil {
			t.Fatalf("%s: %v", tt.encoding, err)
		}
		if len(c.Samples) != 2 || !near(c.Samples[0], 0.5) || !near(c.Samples[1], -0.5) {
			t.Errorf("%s: samples = %v", tt.encoding, c.Samples)
		}
	}
}

func TestDecodeAudioWAV(t *testing.T) {
	data := pcm.Encode([]float32{0.5, 0.1, -0.2, -0.4})
	c, err := DecodeAudio(wavFile(wavPCM, 2, 22050, 16, data), EncodingMulaw, 8000, 1)
	if err != nil {
		t.Fatal(err)
	}
	if c.SampleRate != 22050 || len(c.Samples) != 2 || !near(c.Samples[0], 0.3) {
		t.Errorf("chunk = %+v", c)
	}

	f := make([]byte, 8)
	binary.LittleEndian.PutUint32(f, math.Float32bits(0.75))
	binary.LittleEndian.PutUint32(f[4:], math.Float32bits(-0.75))
	c, err = DecodeAudio(wavFile(wavFloat, 1, 16000, 32, f), EncodingPCM16, 8000, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Samples) != 2 || c.Samples[0] != 0.75 || c.Samples[1] != -0.75 {
		t.Errorf("float samples = %v", c.Samples)
	}
}

func TestDecodeAudioMalformed(t *testing.T) {
	for name, tt := range map[string]struct {
		data     []byte
		encoding string
		rate     int
	}{
		"empty":    {nil, EncodingPCM16, 16000},
		"odd":      {[]byte{1, 2, 3}, EncodingPCM16, 16000},
		"rate":     {[]byte{1, 2}, EncodingPCM16, 0},
		"encoding": {[]byte{1, 2}, "opus", 16000},
		"wav":      {wavFile(wavPCM, 1, 16000, 24, []byte{1, 2, 3}), EncodingPCM16, 16000},
	} {
		_, err := DecodeAudio(tt.data, tt.encoding, tt.rate, 1)
		if !errors.Is(err, ErrDecode) {
			t.Errorf("%s: err = %v, want ErrDecode", name, err)
		}
	}
}
