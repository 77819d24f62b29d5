// Package vad defines the Detector interface for voice activity detection.
//
// A detector classifies a chunk of PCM audio as speech or non-speech. The
// gateway uses it to gate microphone audio before transcription so that
// silence and background noise never reach the STT provider.
//
// VAD is synchronous by design: Detect returns immediately, making it suitable
// for the low-latency per-chunk pipeline stage that feeds STT.
package vad

// Detector classifies PCM audio chunks. Implementations must be safe for
// concurrent use.
type Detector interface {
	// Detect reports whether the chunk contains speech. The chunk is 16-bit
	// little-endian PCM at the detector's configured sample rate.
	//
	// Callers should treat an error as "speech present": dropping real speech
	// on a detector fault is worse than transcribing noise.
	Detect(pcm []byte) (bool, error)
}
