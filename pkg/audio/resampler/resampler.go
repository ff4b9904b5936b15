package resampler

import (
	"fmt"
	"strings"
)

// Stream converts a continuous sequence of sample chunks from one rate to
// another. Implementations keep whatever history they need between calls and
// are not safe for concurrent use.
type Stream interface {
	// Process converts the next chunk of input samples.
	Process(in []float32) ([]float32, error)
	// Reset drops all history so the next chunk starts a new stream.
	Reset()
}

// Kind selects a resampling strategy.
type Kind string

const (
	KindLinear Kind = "linear"
	KindHQ     Kind = "hq"
)

// ParseKind parses a strategy name. An empty name selects KindLinear.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(s)) {
	case "", KindLinear:
		return KindLinear, nil
	case KindHQ, "soxr":
		return KindHQ, nil
	}
	return "", fmt.Errorf("resampler: unknown kind %q", s)
}

// New creates a Stream of the given kind converting srcRate to dstRate.
func New(kind Kind, srcRate, dstRate int) (Stream, error) {
	if srcRate <= 0 || dstRate <= 0 {
		return nil, fmt.Errorf("resampler: invalid rates %d -> %d", srcRate, dstRate)
	}
	switch kind {
	case "", KindLinear:
		return NewLinear(srcRate, dstRate), nil
	case KindHQ:
		return NewHQ(srcRate, dstRate)
	}
	return nil, fmt.Errorf("resampler: unknown kind %q", kind)
}

// Downmix averages interleaved multi-channel samples into mono.
func Downmix(interleaved []float32, channels int) []float32 {
	if channels <= 1 {
		return interleaved
	}
	frames := len(interleaved) / channels
	out := make([]float32, frames)
	for i := range frames {
		var sum float32
		for c := range channels {
			sum += interleaved[i*channels+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}
