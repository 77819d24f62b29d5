// Package mock provides a test double for the vad.Detector interface.
package mock

import (
	"sync"

	"github.com/voxgate-ai/voxgate/pkg/provider/vad"
)

// Detector is a mock vad.Detector. Results is consumed one entry per Detect
// call; once exhausted, Default is returned. Set Err to inject a detector
// fault.
type Detector struct {
	mu      sync.Mutex
	Results []bool
	Default bool
	Err     error
	calls   int
}

var _ vad.Detector = (*Detector)(nil)

// Detect implements vad.Detector.
func (d *Detector) Detect(pcm []byte) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	idx := d.calls
	d.calls++
	if d.Err != nil {
		return false, d.Err
	}
	if idx < len(d.Results) {
		return d.Results[idx], nil
	}
	return d.Default, nil
}

// Calls returns the number of Detect invocations.
func (d *Detector) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}
