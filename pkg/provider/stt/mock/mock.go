// Package mock provides test doubles for the stt provider interfaces.
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/voxgate-ai/voxgate/pkg/provider/stt"
)

// Session is a mock stt.SessionHandle. Tests push transcripts with Emit and
// inspect received audio via Audio.
type Session struct {
	mu      sync.Mutex
	audio   [][]byte
	results chan stt.Transcript
	closed  bool
}

var _ stt.SessionHandle = (*Session)(nil)

// NewSession creates a mock session ready for use.
func NewSession() *Session {
	return &Session{results: make(chan stt.Transcript, 64)}
}

// SendAudio records the chunk.
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("mock: session is closed")
	}
	c := make([]byte, len(chunk))
	copy(c, chunk)
	s.audio = append(s.audio, c)
	return nil
}

// Results implements stt.SessionHandle.
func (s *Session) Results() <-chan stt.Transcript { return s.results }

// Close implements stt.SessionHandle. It closes the results channel.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.results)
	}
	return nil
}

// Emit delivers a transcript to the session's consumer.
func (s *Session) Emit(t stt.Transcript) {
	s.results <- t
}

// Audio returns copies of all chunks received so far.
func (s *Session) Audio() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.audio))
	copy(out, s.audio)
	return out
}

// Provider is a mock stt.Provider. StartErrs is consumed one error per
// StartStream call; once exhausted (or for nil entries) a new Session is
// returned.
type Provider struct {
	mu        sync.Mutex
	StartErrs []error
	calls     int
	sessions  []*Session
}

var _ stt.Provider = (*Provider)(nil)

// StartStream implements stt.Provider.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := p.calls
	p.calls++
	if idx < len(p.StartErrs) && p.StartErrs[idx] != nil {
		return nil, p.StartErrs[idx]
	}
	sess := NewSession()
	p.sessions = append(p.sessions, sess)
	return sess, nil
}

// Calls returns the number of StartStream invocations.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// LastSession returns the most recently opened session, or nil.
func (p *Provider) LastSession() *Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.sessions) == 0 {
		return nil
	}
	return p.sessions[len(p.sessions)-1]
}

// Batch is a mock stt.BatchRecognizer that records submitted buffers and
// returns a fixed result.
type Batch struct {
	mu      sync.Mutex
	Text    string
	Err     error
	buffers [][]byte
}

var _ stt.BatchRecognizer = (*Batch)(nil)

// Transcribe implements stt.BatchRecognizer.
func (b *Batch) Transcribe(ctx context.Context, pcm []byte, cfg stt.StreamConfig) (string, error) {
	b.mu.Lock()
	c := make([]byte, len(pcm))
	copy(c, pcm)
	b.buffers = append(b.buffers, c)
	b.mu.Unlock()
	return b.Text, b.Err
}

// Buffers returns copies of all submitted PCM buffers.
func (b *Batch) Buffers() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([][]byte, len(b.buffers))
	copy(out, b.buffers)
	return out
}
