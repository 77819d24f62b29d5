package audio

import (
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Default preprocessing parameters. The high-pass cutoff removes rumble and
// DC offset below the speech band; the soft gate attenuates (rather than
// silences) low-level background noise so sibilants survive.
const (
	DefaultHighPassHz    = 200.0
	DefaultGateThreshold = 0.008
	DefaultGateGain      = 0.2
)

// Preprocessor applies a frequency-domain high-pass filter followed by a soft
// noise gate to 16-bit PCM chunks. It is safe for concurrent use.
type Preprocessor struct {
	sampleRate    int
	cutoffHz      float64
	gateThreshold float64
	gateGain      float64

	mu   sync.Mutex
	ffts map[int]*fourier.FFT
}

// PreprocessorOption configures a Preprocessor.
type PreprocessorOption func(*Preprocessor)

// WithHighPassCutoff sets the high-pass cutoff frequency in Hz.
func WithHighPassCutoff(hz float64) PreprocessorOption {
	return func(p *Preprocessor) {
		p.cutoffHz = hz
	}
}

// WithNoiseGate sets the soft gate threshold (normalised amplitude) and the
// gain applied to samples below it.
func WithNoiseGate(threshold, gain float64) PreprocessorOption {
	return func(p *Preprocessor) {
		p.gateThreshold = threshold
		p.gateGain = gain
	}
}

// NewPreprocessor creates a Preprocessor for audio at the given sample rate.
func NewPreprocessor(sampleRate int, opts ...PreprocessorOption) *Preprocessor {
	p := &Preprocessor{
		sampleRate:    sampleRate,
		cutoffHz:      DefaultHighPassHz,
		gateThreshold: DefaultGateThreshold,
		gateGain:      DefaultGateGain,
		ffts:          make(map[int]*fourier.FFT),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Process filters one PCM chunk and returns the processed PCM bytes. The
// output has the same length as the input (minus any trailing odd byte).
// Chunks too short to filter meaningfully are returned unmodified.
func (p *Preprocessor) Process(chunk []byte) []byte {
	samples := BytesToFloat64(chunk)
	if len(samples) < 8 {
		return chunk
	}

	filtered := p.highPass(samples)

	for i, s := range filtered {
		if s < p.gateThreshold && s > -p.gateThreshold {
			filtered[i] = s * p.gateGain
		}
	}

	return Float64ToBytes(filtered)
}

// highPass zeroes all frequency bins below the cutoff and transforms back.
func (p *Preprocessor) highPass(samples []float64) []float64 {
	n := len(samples)
	fft := p.fftFor(n)

	coeffs := fft.Coefficients(nil, samples)

	// Bin i corresponds to frequency i * sampleRate / n.
	binHz := float64(p.sampleRate) / float64(n)
	for i := range coeffs {
		if float64(i)*binHz < p.cutoffHz {
			coeffs[i] = 0
		} else {
			break
		}
	}

	out := fft.Sequence(nil, coeffs)
	// The inverse transform is unnormalised.
	scale := 1.0 / float64(n)
	for i := range out {
		out[i] *= scale
	}
	return out
}

// fftFor returns a cached FFT plan for the given length. Chunk sizes are
// stable per connection, so the cache stays tiny.
func (p *Preprocessor) fftFor(n int) *fourier.FFT {
	p.mu.Lock()
	defer p.mu.Unlock()
	fft, ok := p.ffts[n]
	if !ok {
		fft = fourier.NewFFT(n)
		p.ffts[n] = fft
	}
	return fft
}
