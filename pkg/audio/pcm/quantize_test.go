package pcm

import "testing"

func TestQuantizeBoundaries(t *testing.T) {
	tests := []struct {
		in   float32
		want int16
	}{
		{1.0, 32767},
		{-1.0, -32768},
		{0, 0},
		{2.5, 32767},
		{-7, -32768},
		{0.5, 16383},
		{-0.5, -16384},
	}
	for _, tt := range tests {
		if got := Quantize(tt.in); got != tt.want {
			t.Errorf("Quantize(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestEncodeLittleEndian(t *testing.T) {
	b := Encode([]float32{1, -1, 0})
	want := []byte{0xff, 0x7f, 0x00, 0x80, 0x00, 0x00}
	if string(b) != string(want) {
		t.Fatalf("Encode = %x, want %x", b, want)
	}
}

func TestDecodeRejectsOddLength(t *testing.T) {
	if _, err := Decode([]byte{1, 2, 3}); err == nil {
		t.Fatal("Decode accepted odd length input")
	}
	s, err := Decode([]byte{0x00, 0x80})
	if err != nil {
		t.Fatal(err)
	}
	if s[0] != -1 {
		t.Fatalf("Decode = %v, want -1", s[0])
	}
}

func TestFormatForRate(t *testing.T) {
	f, err := FormatForRate(24000)
	if err != nil || f != L16Mono24K {
		t.Fatalf("FormatForRate(24000) = %v, %v", f, err)
	}
	if _, err := FormatForRate(44100); err == nil {
		t.Fatal("FormatForRate(44100) succeeded")
	}
	if got := L16Mono16K.BytesInDuration(20e6); got != 640 {
		t.Fatalf("BytesInDuration(20ms) = %d, want 640", got)
	}
}
