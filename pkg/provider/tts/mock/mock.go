// Package mock provides a test double for the tts.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/voxgate-ai/voxgate/pkg/provider/tts"
)

// Provider is a mock tts.Provider. For every text fragment received it emits
// Synthesize(fragment) if set, otherwise the fragment's bytes, on the audio
// channel. Received fragments are recorded for inspection.
type Provider struct {
	mu sync.Mutex

	// Synthesize maps a text fragment to PCM bytes. Nil means echo the
	// fragment's raw bytes, which keeps assertions simple.
	Synthesize func(text string) []byte

	// StartErr, if non-nil, is returned from SynthesizeStream.
	StartErr error

	fragments []string
	voices    []tts.Voice
}

var _ tts.Provider = (*Provider)(nil)

// SynthesizeStream implements tts.Provider.
func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string, voice tts.Voice) (<-chan []byte, error) {
	p.mu.Lock()
	err := p.StartErr
	p.voices = append(p.voices, voice)
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}

	audioCh := make(chan []byte, 64)
	go func() {
		defer close(audioCh)
		for {
			select {
			case fragment, ok := <-text:
				if !ok {
					return
				}
				p.mu.Lock()
				p.fragments = append(p.fragments, fragment)
				fn := p.Synthesize
				p.mu.Unlock()

				var pcm []byte
				if fn != nil {
					pcm = fn(fragment)
				} else {
					pcm = []byte(fragment)
				}
				if len(pcm) == 0 {
					continue
				}
				select {
				case audioCh <- pcm:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return audioCh, nil
}

// Fragments returns all text fragments received so far.
func (p *Provider) Fragments() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.fragments))
	copy(out, p.fragments)
	return out
}

// Voices returns the voice passed to each SynthesizeStream call.
func (p *Provider) Voices() []tts.Voice {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]tts.Voice, len(p.voices))
	copy(out, p.voices)
	return out
}
