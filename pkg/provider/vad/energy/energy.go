// Package energy implements an energy-based speech gate satisfying
// vad.Detector.
//
// The detector computes the mean squared sample amplitude over the whole chunk
// and compares it to a threshold. It is deliberately simple: no model, no
// state, and a bias toward letting audio through.
package energy

import (
	"fmt"

	"github.com/voxgate-ai/voxgate/pkg/audio"
	"github.com/voxgate-ai/voxgate/pkg/provider/vad"
)

// DefaultThreshold is the mean squared int16 amplitude above which a chunk
// counts as speech. Tuned low to stay sensitive with quiet microphones.
const DefaultThreshold = 30.0

// Option configures a Detector.
type Option func(*Detector)

// WithThreshold overrides the speech energy threshold.
func WithThreshold(t float64) Option {
	return func(d *Detector) {
		d.threshold = t
	}
}

// Detector implements vad.Detector with a mean squared energy threshold. It is
// stateless and safe for concurrent use.
type Detector struct {
	sampleRate int
	threshold  float64
}

var _ vad.Detector = (*Detector)(nil)

// New creates a Detector for audio at the given sample rate.
func New(sampleRate int, opts ...Option) (*Detector, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("energy: invalid sample rate %d", sampleRate)
	}
	d := &Detector{
		sampleRate: sampleRate,
		threshold:  DefaultThreshold,
	}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

// Detect implements vad.Detector. An empty chunk is silence; a chunk whose
// mean squared amplitude exceeds the threshold is speech.
func (d *Detector) Detect(pcm []byte) (bool, error) {
	samples := audio.BytesToInt16(pcm)
	if len(samples) == 0 {
		return false, nil
	}

	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	energy := sum / float64(len(samples))
	return energy > d.threshold, nil
}
