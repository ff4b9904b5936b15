package voicecall

import (
	"testing"
	"time"

	"github.com/haivivi/callkit/pkg/audio/pcm"
	"github.com/haivivi/callkit/pkg/audio/resampler"
)

func TestEncoderDownsamples(t *testing.T) {
	e := NewEncoder(pcm.L16Mono16K, 20*time.Millisecond, resampler.KindLinear)
	frames, err := e.Encode(pcm.FloatChunk{Samples: samples(960, 0.5), SampleRate: 48000})
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	f := frames[0]
	if len(f.Data) != 640 || f.Seq != 1 || f.Duration() != 20*time.Millisecond {
		t.Errorf("frame: %d bytes, seq %d, %s", len(f.Data), f.Seq, f.Duration())
	}
	got, _ := pcm.Decode(f.Data)
	if !near(got[100], 0.5) {
		t.Errorf("sample = %v, want 0.5", got[100])
	}
}

func TestEncoderCarriesPartialFrames(t *testing.T) {
	e := NewEncoder(pcm.L16Mono16K, 20*time.Millisecond, resampler.KindLinear)
	chunk := pcm.FloatChunk{Samples: samples(200, 0.1), SampleRate: 16000}

	var seqs []uint64
	for range 5 {
		frames, err := e.Encode(chunk)
		if err != nil {
			t.Fatal(err)
		}
		for _, f := range frames {
			if len(f.Data) != 640 {
				t.Fatalf("frame of %d bytes", len(f.Data))
			}
			seqs = append(seqs, f.Seq)
		}
	}
	// 1000 samples: three 320 sample frames and 40 pending.
	if len(seqs) != 3 || seqs[0] != 1 || seqs[2] != 3 {
		t.Errorf("seqs = %v", seqs)
	}

	e.Reset()
	frames, _ := e.Encode(pcm.FloatChunk{Samples: samples(300, 0.1), SampleRate: 16000})
	if len(frames) != 0 {
		t.Errorf("reset kept pending samples: %d frames", len(frames))
	}
}

func TestEncoderRateChange(t *testing.T) {
	e := NewEncoder(pcm.L16Mono16K, 10*time.Millisecond, resampler.KindLinear)
	if _, err := e.Encode(pcm.FloatChunk{Samples: samples(480, 0.2), SampleRate: 48000}); err != nil {
		t.Fatal(err)
	}
	frames, err := e.Encode(pcm.FloatChunk{Samples: samples(160, 0.2), SampleRate: 16000})
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 1 || frames[0].Seq != 2 {
		t.Errorf("frames after rate change = %d", len(frames))
	}
	if _, err := e.Encode(pcm.FloatChunk{Samples: samples(10, 0), SampleRate: 0}); err == nil {
		t.Error("zero sample rate accepted")
	}
}

func TestEncoderWithoutFraming(t *testing.T) {
	e := NewEncoder(pcm.L16Mono16K, 0, resampler.KindLinear)
	frames, _ := e.Encode(pcm.FloatChunk{Samples: samples(123, 0), SampleRate: 16000})
	if len(frames) != 1 || len(frames[0].Data) != 246 {
		t.Errorf("frames = %d", len(frames))
	}
}
