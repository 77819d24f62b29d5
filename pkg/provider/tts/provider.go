// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., ElevenLabs or
// Cartesia) and presents a uniform streaming interface. The primary entry
// point is SynthesizeStream, which accepts a channel of text fragments and
// returns a channel of raw PCM audio bytes as they become available, enabling
// low-latency pipelining between LLM sentence output and audio playback.
//
// All providers emit the gateway's fixed output format: 16 kHz, 16-bit signed
// little-endian, mono PCM.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Voice identifies a synthesis voice at a specific provider.
type Voice struct {
	// ID is the provider-assigned voice identifier.
	ID string

	// Name is a human-readable label, for logging and display.
	Name string
}

// Provider is the abstraction over any TTS backend.
//
// Implementations must be safe for concurrent use; multiple synthesis requests
// may run in parallel.
type Provider interface {
	// SynthesizeStream consumes text fragments from the text channel and returns
	// a channel that emits raw PCM audio byte slices as they are synthesised.
	// This design allows the caller to pipe sentence-segmented LLM output
	// directly into synthesis without waiting for the full response.
	//
	// The returned audio channel is closed by the implementation when all text
	// has been synthesised or when ctx is cancelled. The caller must drain the
	// audio channel to avoid blocking the provider's internal goroutines.
	//
	// Returns a non-nil error only if the stream cannot be started. Errors
	// encountered mid-synthesis are signalled by closing the audio channel
	// early; callers should check ctx.Err() to distinguish cancellation from
	// provider failure.
	SynthesizeStream(ctx context.Context, text <-chan string, voice Voice) (<-chan []byte, error)
}
