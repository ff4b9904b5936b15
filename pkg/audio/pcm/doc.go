// Package pcm provides types and utilities for working with PCM (Pulse Code Modulation) audio data.
//
// Key types:
//   - Format: 16-bit mono formats at 8/16/24/48 kHz
//   - FloatChunk: floating-point samples tagged with their sample rate
//   - Mixer: renders scheduled voices against a sample clock that advances
//     only as the output device pulls audio
//
// Samples are converted between float32 and signed 16-bit with Quantize
// (negative range scaled by 32768, positive range by 32767).
//
// Example usage:
//
//	mx := pcm.NewMixer(pcm.L16Mono16K)
//	v, _ := mx.Schedule(mx.Now()+50*time.Millisecond, samples,
//		pcm.WithGain(0.8), pcm.WithFade(10*time.Millisecond))
//	_ = v.Start()
//
//	// The output device reads rendered PCM16 from the mixer.
//	buf := make([]byte, pcm.L16Mono16K.BytesInDuration(20*time.Millisecond))
//	mx.Read(buf)
package pcm
