package resampler

// Linear resamples by linear interpolation between the two most recent input
// samples.
//
// For each input sample the fractional counter advances by dst/src. Every time
// it reaches 1 an output sample is due; the amount the counter overshot, scaled
// back to input samples, says how far behind the newest input the output
// sample lies. That distance is always below one input sample, so the trailing
// window only needs the previous sample, and it is carried across chunks.
type Linear struct {
	ratio   float64
	counter float64

	prev, cur float32
	primed    bool
}

// NewLinear creates a linear resampler from srcRate to dstRate.
func NewLinear(srcRate, dstRate int) *Linear {
	return &Linear{ratio: float64(srcRate) / float64(dstRate)}
}

// Ratio returns srcRate/dstRate.
func (l *Linear) Ratio() float64 {
	return l.ratio
}

// Process implements Stream.
func (l *Linear) Process(in []float32) ([]float32, error) {
	if l.ratio == 1 {
		return append([]float32(nil), in...), nil
	}
	step := 1 / l.ratio
	out := make([]float32, 0, int(float64(len(in))*step)+2)
	for _, s := range in {
		l.prev, l.cur = l.cur, s
		l.counter += step
		for l.counter >= 1 {
			back := float32((l.counter - 1) * l.ratio)
			if back > 0 && l.primed {
				out = append(out, l.cur*(1-back)+l.prev*back)
			} else {
				out = append(out, l.cur)
			}
			l.counter--
		}
		l.primed = true
	}
	return out, nil
}

// Reset implements Stream.
func (l *Linear) Reset() {
	l.counter = 0
	l.prev, l.cur = 0, 0
	l.primed = false
}
