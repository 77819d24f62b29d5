// Package gateway implements the real-time voice conversation endpoint at
// /ws/chat: one full-duplex websocket per client over which raw microphone
// PCM flows in and interleaved transcript, assistant text, and synthesised
// speech frames flow out.
//
// Audio in both directions is 16-bit signed little-endian mono PCM at
// 16 kHz. Inbound text frames are JSON control messages; outbound text
// frames are JSON with a "type" discriminator (see frames.go).
//
// Each connection runs a turn state machine: a final transcript from the
// speech recogniser starts a turn that streams the language model's response
// to the client while piping sentence-segmented text through speech
// synthesis. A new utterance or an explicit barge-in control frame aborts
// the in-flight turn; a generation counter guarantees that no frame from a
// superseded turn reaches the socket after a newer turn has begun.
package gateway

import (
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/coder/websocket"

	"github.com/voxgate-ai/voxgate/internal/history"
	"github.com/voxgate-ai/voxgate/internal/observe"
	"github.com/voxgate-ai/voxgate/internal/resilience"
	"github.com/voxgate-ai/voxgate/internal/router"
	"github.com/voxgate-ai/voxgate/internal/store"
	"github.com/voxgate-ai/voxgate/pkg/audio"
	"github.com/voxgate-ai/voxgate/pkg/provider/stt"
	"github.com/voxgate-ai/voxgate/pkg/provider/tts"
	"github.com/voxgate-ai/voxgate/pkg/provider/vad"
)

// SampleRate is the PCM sample rate on both sides of the socket.
const SampleRate = 16000

// sttEndpointingMs is the trailing-silence duration after which the STT
// provider finalises an utterance.
const sttEndpointingMs = 500

// Gateway owns the shared dependencies behind every voice connection.
type Gateway struct {
	sttProvider stt.Provider
	sttBatch    stt.BatchRecognizer
	tts         *resilience.FallbackGroup[tts.Provider]
	voice       tts.Voice
	detector    vad.Detector
	pre         *audio.Preprocessor
	newRouter   func() *router.Router
	history     history.Provider
	store       store.Store
	metrics     *observe.Metrics
	registry    *registry
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithBatchRecognizer sets the offline recogniser the STT adapter degrades to
// when the streaming provider cannot be reached.
func WithBatchRecognizer(b stt.BatchRecognizer) Option {
	return func(g *Gateway) { g.sttBatch = b }
}

// WithStore enables durable session and message persistence.
func WithStore(s store.Store) Option {
	return func(g *Gateway) { g.store = s }
}

// WithVoice sets the synthesis voice.
func WithVoice(v tts.Voice) Option {
	return func(g *Gateway) { g.voice = v }
}

// WithDetector overrides the voice activity detector.
func WithDetector(d vad.Detector) Option {
	return func(g *Gateway) { g.detector = d }
}

// WithMetrics overrides the metrics instruments, mainly for tests.
func WithMetrics(m *observe.Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

// New creates a Gateway. newRouter is called once per connection so each
// socket gets its own response-mode and system-prompt state over the shared
// providers.
func New(sttProvider stt.Provider, ttsGroup *resilience.FallbackGroup[tts.Provider], newRouter func() *router.Router, hist history.Provider, opts ...Option) (*Gateway, error) {
	if sttProvider == nil {
		return nil, errors.New("gateway: stt provider must not be nil")
	}
	if ttsGroup == nil {
		return nil, errors.New("gateway: tts group must not be nil")
	}
	if newRouter == nil {
		return nil, errors.New("gateway: router factory must not be nil")
	}
	if hist == nil {
		return nil, errors.New("gateway: history provider must not be nil")
	}

	g := &Gateway{
		sttProvider: sttProvider,
		tts:         ttsGroup,
		newRouter:   newRouter,
		history:     hist,
		pre:         audio.NewPreprocessor(SampleRate),
		metrics:     observe.DefaultMetrics(),
		registry:    newRegistry(),
	}
	for _, o := range opts {
		o(g)
	}
	return g, nil
}

// HandleWS upgrades the request and serves the voice connection until the
// socket closes. Mount it at /ws/chat. Query parameters: device_id
// (required; missing gets close code 1008) and session_id (optional).
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("device_id")
	sessionID := r.URL.Query().Get("session_id")

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}

	if deviceID == "" {
		_ = ws.Close(websocket.StatusPolicyViolation, "device_id is required")
		return
	}

	c := newConn(g, ws, deviceID, sessionID, remoteIP(r.RemoteAddr))
	c.serve(r.Context())
}

// remoteIP strips the port from a RemoteAddr for the per-host throttle.
func remoteIP(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
