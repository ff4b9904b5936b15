package resampler

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// HQ is a high quality resampler backed by go-audio-resampling (pure Go, no
// CGO).
type HQ struct {
	srcRate, dstRate int

	rs resampling.Resampler
	in []float64
}

// NewHQ creates a high quality resampler from srcRate to dstRate.
func NewHQ(srcRate, dstRate int) (*HQ, error) {
	h := &HQ{srcRate: srcRate, dstRate: dstRate}
	if err := h.init(); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *HQ) init() error {
	if h.srcRate == h.dstRate {
		return nil
	}
	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(h.srcRate),
		OutputRate: float64(h.dstRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return fmt.Errorf("resampler: failed to create resampler: %w", err)
	}
	h.rs = rs
	return nil
}

// Process implements Stream.
func (h *HQ) Process(in []float32) ([]float32, error) {
	if h.rs == nil {
		return append([]float32(nil), in...), nil
	}
	h.in = h.in[:0]
	for _, s := range in {
		h.in = append(h.in, float64(s))
	}
	output, err := h.rs.Process(h.in)
	if err != nil {
		return nil, fmt.Errorf("resampler: resample error: %w", err)
	}
	out := make([]float32, len(output))
	for i, s := range output {
		out[i] = float32(s)
	}
	return out, nil
}

// Reset implements Stream. The underlying resampler is recreated.
func (h *HQ) Reset() {
	h.rs = nil
	_ = h.init()
}
