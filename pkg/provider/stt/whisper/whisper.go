// Package whisper provides an offline batch recogniser backed by an
// OpenAI-compatible audio transcription endpoint (Whisper). It implements
// stt.BatchRecognizer and serves as the degraded-mode fallback when a
// streaming STT session cannot be established.
package whisper

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/voxgate-ai/voxgate/pkg/audio"
	"github.com/voxgate-ai/voxgate/pkg/provider/stt"
)

const defaultModel = "whisper-1"

// Option is a functional option for configuring the Recognizer.
type Option func(*Recognizer)

// WithModel sets the transcription model (e.g., "whisper-1").
func WithModel(model string) Option {
	return func(r *Recognizer) {
		r.model = model
	}
}

// WithBaseURL overrides the API base URL, for OpenAI-compatible endpoints that
// host Whisper models.
func WithBaseURL(url string) Option {
	return func(r *Recognizer) {
		r.baseURL = url
	}
}

// Recognizer implements stt.BatchRecognizer using the audio transcriptions API.
type Recognizer struct {
	client  oai.Client
	model   string
	baseURL string
}

var _ stt.BatchRecognizer = (*Recognizer)(nil)

// New creates a new Recognizer. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Recognizer, error) {
	if apiKey == "" {
		return nil, errors.New("whisper: apiKey must not be empty")
	}
	r := &Recognizer{model: defaultModel}
	for _, o := range opts {
		o(r)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if r.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(r.baseURL))
	}
	r.client = oai.NewClient(reqOpts...)
	return r, nil
}

// Transcribe wraps the PCM buffer in a WAV container and submits it for
// transcription. The returned text is the full recognised utterance.
func (r *Recognizer) Transcribe(ctx context.Context, pcm []byte, cfg stt.StreamConfig) (string, error) {
	if len(pcm) == 0 {
		return "", nil
	}

	sr := cfg.SampleRate
	if sr == 0 {
		sr = 16000
	}
	ch := cfg.Channels
	if ch == 0 {
		ch = 1
	}

	wav := audio.WrapPCMAsWAV(pcm, sr, ch, 16)

	resp, err := r.client.Audio.Transcriptions.New(ctx, oai.AudioTranscriptionNewParams{
		Model: oai.AudioModel(r.model),
		File:  oai.File(bytes.NewReader(wav), "audio.wav", "audio/wav"),
	})
	if err != nil {
		return "", fmt.Errorf("whisper: transcribe: %w", err)
	}
	return resp.Text, nil
}
