package pcm

import (
	"encoding/binary"
	"fmt"
)

// Quantize converts a float sample to signed 16-bit. The input is clamped to
// [-1, 1]; negative values scale by 32768 and positive values by 32767, so
// -1 maps to -32768 and 1 maps to 32767.
func Quantize(s float32) int16 {
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	if s < 0 {
		return int16(s * 32768)
	}
	return int16(s * 32767)
}

// Dequantize converts a signed 16-bit sample to a float in [-1, 1).
func Dequantize(s int16) float32 {
	return float32(s) / 32768
}

// QuantizeTo writes src as little-endian PCM16 into dst and returns the
// number of bytes written. dst must hold 2*len(src) bytes.
func QuantizeTo(dst []byte, src []float32) int {
	for i, s := range src {
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(Quantize(s)))
	}
	return len(src) * 2
}

// Encode returns src as little-endian PCM16 bytes.
func Encode(src []float32) []byte {
	dst := make([]byte, len(src)*2)
	QuantizeTo(dst, src)
	return dst
}

// Decode converts little-endian PCM16 bytes to float samples.
func Decode(data []byte) ([]float32, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("pcm: odd byte length %d for 16-bit samples", len(data))
	}
	out := make([]float32, len(data)/2)
	for i := range out {
		out[i] = Dequantize(int16(binary.LittleEndian.Uint16(data[i*2:])))
	}
	return out, nil
}
