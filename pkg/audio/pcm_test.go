package audio

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
)

func TestInt16RoundTrip(t *testing.T) {
	t.Parallel()

	samples := []int16{0, 1, -1, 12345, -12345, math.MaxInt16, math.MinInt16}
	got := BytesToInt16(Int16ToBytes(samples))

	if len(got) != len(samples) {
		t.Fatalf("length: want %d, got %d", len(samples), len(got))
	}
	for i := range samples {
		if got[i] != samples[i] {
			t.Errorf("sample %d: want %d, got %d", i, samples[i], got[i])
		}
	}
}

func TestBytesToInt16IgnoresOddTrailingByte(t *testing.T) {
	t.Parallel()

	b := append(Int16ToBytes([]int16{100, 200}), 0xff)
	got := BytesToInt16(b)
	if len(got) != 2 {
		t.Fatalf("want 2 samples, got %d", len(got))
	}
}

func TestBytesToFloat64Normalises(t *testing.T) {
	t.Parallel()

	in := Int16ToBytes([]int16{math.MinInt16, 0, 16384})
	got := BytesToFloat64(in)

	want := []float64{-1.0, 0, 0.5}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("sample %d: want %v, got %v", i, want[i], got[i])
		}
	}
}

func TestFloat64ToBytesClips(t *testing.T) {
	t.Parallel()

	got := BytesToInt16(Float64ToBytes([]float64{2.0, -2.0, 0}))
	if got[0] != math.MaxInt16 {
		t.Errorf("positive overflow: want %d, got %d", math.MaxInt16, got[0])
	}
	if got[1] != math.MinInt16 {
		t.Errorf("negative overflow: want %d, got %d", math.MinInt16, got[1])
	}
	if got[2] != 0 {
		t.Errorf("zero: want 0, got %d", got[2])
	}
}

func TestWrapPCMAsWAV(t *testing.T) {
	t.Parallel()

	pcm := Int16ToBytes([]int16{1, 2, 3, 4})
	wav := WrapPCMAsWAV(pcm, 16000, 1, 16)

	if len(wav) != 44+len(pcm) {
		t.Fatalf("length: want %d, got %d", 44+len(pcm), len(wav))
	}
	if !bytes.Equal(wav[0:4], []byte("RIFF")) || !bytes.Equal(wav[8:12], []byte("WAVE")) {
		t.Errorf("missing RIFF/WAVE markers: %q %q", wav[0:4], wav[8:12])
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != 16000 {
		t.Errorf("sample rate: want 16000, got %d", got)
	}
	if got := binary.LittleEndian.Uint32(wav[28:32]); got != 16000*2 {
		t.Errorf("byte rate: want %d, got %d", 16000*2, got)
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != uint32(len(pcm)) {
		t.Errorf("data size: want %d, got %d", len(pcm), got)
	}
	if !bytes.Equal(wav[44:], pcm) {
		t.Error("payload does not match input PCM")
	}
}
