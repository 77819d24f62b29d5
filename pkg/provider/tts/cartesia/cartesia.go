// Package cartesia provides a Cartesia-backed TTS provider using the Cartesia
// bytes API. It implements the tts.Provider interface and serves as the
// fallback synthesis path when the primary streaming provider fails.
//
// Unlike the ElevenLabs WebSocket provider, Cartesia synthesis is one HTTP
// request per text fragment. Latency per sentence is higher, but the provider
// needs no long-lived connection and recovers cleanly between fragments.
package cartesia

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/voxgate-ai/voxgate/pkg/provider/tts"
)

const (
	bytesEndpoint  = "https://api.cartesia.ai/tts/bytes"
	apiVersion     = "2024-06-10"
	defaultModel   = "sonic-2"
	outputEncoding = "pcm_s16le"
	outputRate     = 16000
)

// Option is a functional option for configuring the Cartesia Provider.
type Option func(*Provider)

// WithModel sets the Cartesia model ID (e.g., "sonic-2").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithHTTPClient overrides the HTTP client used for synthesis requests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// WithEndpoint overrides the synthesis endpoint URL. Used in tests.
func WithEndpoint(url string) Option {
	return func(p *Provider) {
		p.endpoint = url
	}
}

// Provider implements tts.Provider backed by the Cartesia bytes API.
type Provider struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
}

var _ tts.Provider = (*Provider)(nil)

// New creates a new Cartesia Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("cartesia: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		model:      defaultModel,
		endpoint:   bytesEndpoint,
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// synthesisRequest is the JSON body for POST /tts/bytes.
type synthesisRequest struct {
	ModelID    string       `json:"model_id"`
	Transcript string       `json:"transcript"`
	Voice      voiceRef     `json:"voice"`
	Output     outputFormat `json:"output_format"`
}

type voiceRef struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type outputFormat struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

// SynthesizeStream synthesises each incoming text fragment with one HTTP
// request and emits the resulting PCM on the returned channel. A fragment that
// fails to synthesise is skipped; synthesis continues with the next fragment.
func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string, voice tts.Voice) (<-chan []byte, error) {
	if voice.ID == "" {
		return nil, errors.New("cartesia: voice.ID must not be empty")
	}

	audioCh := make(chan []byte, 16)

	go func() {
		defer close(audioCh)
		for {
			select {
			case fragment, ok := <-text:
				if !ok {
					return
				}
				if fragment == "" {
					continue
				}
				pcm, err := p.synthesize(ctx, fragment, voice.ID)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
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

// synthesize runs one bytes-API request and returns the raw PCM response body.
func (p *Provider) synthesize(ctx context.Context, transcript, voiceID string) ([]byte, error) {
	body, err := json.Marshal(synthesisRequest{
		ModelID:    p.model,
		Transcript: transcript,
		Voice:      voiceRef{Mode: "id", ID: voiceID},
		Output: outputFormat{
			Container:  "raw",
			Encoding:   outputEncoding,
			SampleRate: outputRate,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("cartesia: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("cartesia: build request: %w", err)
	}
	req.Header.Set("X-API-Key", p.apiKey)
	req.Header.Set("Cartesia-Version", apiVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cartesia: synthesis HTTP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cartesia: unexpected status %d", resp.StatusCode)
	}

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("cartesia: read body: %w", err)
	}
	return pcm, nil
}
