// Package stt defines the provider interfaces for Speech-to-Text backends and
// the Adapter that the conversation gateway consumes.
//
// An STT provider wraps a real-time transcription service (e.g., Deepgram) and
// exposes a uniform streaming interface: once opened, a session accepts raw PCM
// audio frames and emits a stream of Transcript values — low-latency interims
// for responsiveness and authoritative finals that drive the turn state machine.
//
// Implementations must be safe for concurrent use. Audio input and transcript
// output channels are goroutine-safe by construction.
package stt

import "context"

// Transcript is a single recognition result from a streaming session.
type Transcript struct {
	// Text is the recognised text. Interim results may be revised by later
	// transcripts; final results are committed.
	Text string

	// IsFinal reports whether the provider has committed to this result.
	IsFinal bool

	// Confidence is the provider's confidence in the range [0.0, 1.0], when
	// available.
	Confidence float64
}

// StreamConfig describes the audio format and recognition hints for a new STT
// session.
type StreamConfig struct {
	// SampleRate is the audio sample rate in Hz. The gateway always uses 16000.
	SampleRate int

	// Channels is the number of audio channels. 1 = mono.
	Channels int

	// Language is the BCP-47 language tag for recognition (e.g., "en-US").
	Language string

	// EndpointingMs is the trailing-silence duration in milliseconds after which
	// the provider finalises an utterance. Zero uses the provider default.
	EndpointingMs int
}

// SessionHandle represents an open STT streaming session. It is an interface so
// that test code can provide mock implementations without a live provider
// connection.
//
// Callers must call Close when the session is no longer needed. Failing to do
// so may leak goroutines and network connections inside the provider
// implementation. All methods must be safe for concurrent use.
type SessionHandle interface {
	// SendAudio delivers a chunk of raw PCM audio bytes to the provider for
	// transcription. The chunk must match the SampleRate, Channels, and
	// bit-depth agreed in StreamConfig. Calling SendAudio after Close returns
	// an error.
	SendAudio(chunk []byte) error

	// Results returns a read-only channel that emits Transcript values, interim
	// and final interleaved in provider order. The channel is closed when the
	// session ends.
	Results() <-chan Transcript

	// Close terminates the session, flushes any pending audio, and releases all
	// associated resources. Calling Close more than once is safe and returns nil.
	Close() error
}

// Provider is the abstraction over any streaming STT backend.
//
// Implementations must be safe for concurrent use; multiple sessions may be
// open simultaneously.
type Provider interface {
	// StartStream opens a new streaming transcription session with the given
	// audio format and recognition configuration. The returned SessionHandle is
	// ready to accept audio immediately.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}

// BatchRecognizer is the abstraction over an offline, non-streaming recogniser.
// The Adapter batch-submits buffered audio to it when the streaming provider
// cannot be reached.
type BatchRecognizer interface {
	// Transcribe submits a complete PCM buffer and returns the recognised text.
	Transcribe(ctx context.Context, pcm []byte, cfg StreamConfig) (string, error)
}
