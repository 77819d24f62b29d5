package audio

import (
	"bytes"
	"math"
	"testing"
)

// tone generates n samples of a sine at freq Hz with the given normalised
// amplitude, encoded as 16-bit PCM.
func tone(n, sampleRate int, freq, amplitude float64) []byte {
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return Float64ToBytes(samples)
}

func rms(pcm []byte) float64 {
	samples := BytesToInt16(pcm)
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

func TestProcessShortChunkPassesThrough(t *testing.T) {
	t.Parallel()

	p := NewPreprocessor(16000)
	chunk := Int16ToBytes([]int16{1, 2, 3})
	if got := p.Process(chunk); !bytes.Equal(got, chunk) {
		t.Errorf("short chunk modified: %v", got)
	}
}

func TestProcessPreservesLength(t *testing.T) {
	t.Parallel()

	p := NewPreprocessor(16000)
	chunk := tone(512, 16000, 1000, 0.5)
	if got := p.Process(chunk); len(got) != len(chunk) {
		t.Errorf("length: want %d, got %d", len(chunk), len(got))
	}
}

func TestProcessRemovesDCOffset(t *testing.T) {
	t.Parallel()

	p := NewPreprocessor(16000)

	// A constant signal is pure DC and sits entirely below the cutoff.
	samples := make([]int16, 512)
	for i := range samples {
		samples[i] = 4000
	}
	out := p.Process(Int16ToBytes(samples))

	if got := rms(out); got > 50 {
		t.Errorf("DC offset survived the high-pass: rms %v", got)
	}
}

func TestProcessPreservesSpeechBandTone(t *testing.T) {
	t.Parallel()

	p := NewPreprocessor(16000)

	// 1 kHz is well above the cutoff and lands on an exact FFT bin for a
	// 512-sample chunk at 16 kHz.
	in := tone(512, 16000, 1000, 0.5)
	out := p.Process(in)

	// A 0.5-amplitude sine has rms ≈ 0.354 full scale.
	if got := rms(out); got < 10000 {
		t.Errorf("in-band tone attenuated: rms %v", got)
	}
}

func TestProcessGatesLowLevelNoise(t *testing.T) {
	t.Parallel()

	p := NewPreprocessor(16000)

	// Below the gate threshold (0.008 ≈ 262 as int16) the signal is
	// attenuated, not silenced.
	in := tone(512, 16000, 1000, 0.005)
	inRMS := rms(in)
	outRMS := rms(p.Process(in))

	if outRMS > inRMS*0.5 {
		t.Errorf("quiet noise not attenuated: in rms %v, out rms %v", inRMS, outRMS)
	}
	if outRMS == 0 {
		t.Error("soft gate silenced the signal entirely")
	}
}

func TestProcessCustomCutoff(t *testing.T) {
	t.Parallel()

	// With the cutoff raised above the tone's frequency the tone is removed.
	p := NewPreprocessor(16000, WithHighPassCutoff(2000))
	out := p.Process(tone(512, 16000, 1000, 0.5))

	if got := rms(out); got > 500 {
		t.Errorf("tone below custom cutoff survived: rms %v", got)
	}
}
