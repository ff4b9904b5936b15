package resampler

import (
	"math"
	"testing"
)

func ramp(n int) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = float32(i) / float32(n)
	}
	return s
}

func TestLinearOutputLength(t *testing.T) {
	tests := []struct {
		src, dst int
		n        int
	}{
		{48000, 16000, 4800},
		{44100, 16000, 4410},
		{16000, 16000, 1600},
		{8000, 16000, 800},
		{22050, 16000, 2205},
		{16000, 24000, 1600},
	}
	for _, tt := range tests {
		l := NewLinear(tt.src, tt.dst)
		out, err := l.Process(ramp(tt.n))
		if err != nil {
			t.Fatal(err)
		}
		want := int(math.Floor(float64(tt.n) * float64(tt.dst) / float64(tt.src)))
		if d := len(out) - want; d < -2 || d > 2 {
			t.Errorf("%d->%d: len = %d, want about %d", tt.src, tt.dst, len(out), want)
		}
	}
}

func TestLinearPreservesOrder(t *testing.T) {
	for _, rates := range [][2]int{{48000, 16000}, {44100, 16000}, {8000, 16000}, {16000, 22050}} {
		l := NewLinear(rates[0], rates[1])
		out, _ := l.Process(ramp(3000))
		for i := 1; i < len(out); i++ {
			if out[i] < out[i-1] {
				t.Fatalf("%v: out[%d]=%v < out[%d]=%v", rates, i, out[i], i-1, out[i-1])
			}
		}
	}
}

func TestLinearChunkingDoesNotChangeOutput(t *testing.T) {
	for _, rates := range [][2]int{{48000, 16000}, {44100, 16000}, {8000, 16000}, {11025, 16000}} {
		in := ramp(5000)
		whole, _ := NewLinear(rates[0], rates[1]).Process(in)

		l := NewLinear(rates[0], rates[1])
		var chunked []float32
		for off, size := 0, 1; off < len(in); size = size%127 + 1 {
			end := min(off+size, len(in))
			out, _ := l.Process(in[off:end])
			chunked = append(chunked, out...)
			off = end
		}

		if len(chunked) != len(whole) {
			t.Fatalf("%v: chunked len %d, whole len %d", rates, len(chunked), len(whole))
		}
		for i := range whole {
			if chunked[i] != whole[i] {
				t.Fatalf("%v: sample %d differs: %v != %v", rates, i, chunked[i], whole[i])
			}
		}
	}
}

func TestLinearDownsampleByThreePicksEveryThird(t *testing.T) {
	l := NewLinear(48000, 16000)
	in := []float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}
	out, _ := l.Process(in)
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	if math.Abs(float64(out[0]-0.3)) > 1e-6 || math.Abs(float64(out[1]-0.6)) > 1e-6 {
		t.Fatalf("out = %v, want [0.3 0.6]", out)
	}
}

func TestLinearReset(t *testing.T) {
	l := NewLinear(48000, 16000)
	l.Process(ramp(100))
	l.Reset()
	a, _ := l.Process(ramp(300))
	b, _ := NewLinear(48000, 16000).Process(ramp(300))
	if len(a) != len(b) {
		t.Fatalf("after Reset len = %d, fresh len = %d", len(a), len(b))
	}
}

func TestNewAndParseKind(t *testing.T) {
	k, err := ParseKind("")
	if err != nil || k != KindLinear {
		t.Fatalf("ParseKind(\"\") = %q, %v", k, err)
	}
	if _, err := ParseKind("cubic"); err == nil {
		t.Fatal("ParseKind(cubic) succeeded")
	}
	if _, err := New(KindLinear, 0, 16000); err == nil {
		t.Fatal("New with zero rate succeeded")
	}
	rs, err := New(KindLinear, 16000, 16000)
	if err != nil {
		t.Fatal(err)
	}
	out, _ := rs.Process([]float32{1, 2, 3})
	if len(out) != 3 {
		t.Fatalf("passthrough len = %d", len(out))
	}
}

func TestDownmix(t *testing.T) {
	out := Downmix([]float32{1, 0, 0.5, 0.5, -1, -1}, 2)
	want := []float32{0.5, 0.5, -1}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("Downmix = %v, want %v", out, want)
		}
	}
}
