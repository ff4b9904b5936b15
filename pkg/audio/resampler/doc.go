// Package resampler converts streams of floating-point mono samples between
// sample rates.
//
// Two strategies implement Stream:
//   - Linear: fractional-counter linear interpolation with a trailing window
//     kept across chunk boundaries, so splitting the input into chunks never
//     changes the output
//   - HQ: a windowed-sinc resampler backed by go-audio-resampling
//
// Example usage:
//
//	rs, err := resampler.New(resampler.KindLinear, 48000, 16000)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	out, err := rs.Process(chunk)
package resampler
