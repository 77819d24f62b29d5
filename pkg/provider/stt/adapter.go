package stt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	// startAttempts is how many times Start tries to open the primary
	// streaming session before degrading to batch mode.
	startAttempts = 3

	// fallbackBatchChunks is the number of buffered audio chunks that triggers
	// a batch submission in degraded mode. At ~32ms of 16 kHz mono PCM per
	// chunk this is roughly two seconds of speech.
	fallbackBatchChunks = 60
)

// startBackoff returns the delay before retry attempt n (0-based).
// The schedule is 1s, 2s, 4s.
func startBackoff(attempt int) time.Duration {
	return time.Duration(1<<attempt) * time.Second
}

// TranscriptFunc receives recognition results from an Adapter. It is invoked
// from the adapter's internal goroutine; implementations must not block for
// long or recognition latency suffers.
type TranscriptFunc func(t Transcript)

// Adapter bridges a streaming STT provider to a callback-driven consumer.
//
// In the normal path it opens a streaming session on the primary provider and
// forwards every interim and final transcript to the callback. When the primary
// session cannot be established (after retries with backoff), the adapter
// degrades to batch mode: audio is buffered and periodically submitted to the
// offline BatchRecognizer, whose results are delivered as finals.
//
// SendAudio never blocks the caller on network I/O.
type Adapter struct {
	primary  Provider
	fallback BatchRecognizer
	cfg      StreamConfig
	onResult TranscriptFunc
	log      *slog.Logger

	mu       sync.Mutex
	session  SessionHandle
	degraded bool
	buffer   []byte
	chunks   int
	closed   bool

	wg sync.WaitGroup
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithLogger sets the logger used for degradation and batch-submit events.
func WithLogger(log *slog.Logger) AdapterOption {
	return func(a *Adapter) {
		a.log = log
	}
}

// NewAdapter constructs an Adapter. primary and onResult are required; fallback
// may be nil, in which case a failure to open the primary stream is fatal.
func NewAdapter(primary Provider, fallback BatchRecognizer, cfg StreamConfig, onResult TranscriptFunc, opts ...AdapterOption) (*Adapter, error) {
	if primary == nil {
		return nil, errors.New("stt: primary provider must not be nil")
	}
	if onResult == nil {
		return nil, errors.New("stt: onResult callback must not be nil")
	}
	a := &Adapter{
		primary:  primary,
		fallback: fallback,
		cfg:      cfg,
		onResult: onResult,
		log:      slog.Default(),
	}
	for _, o := range opts {
		o(a)
	}
	return a, nil
}

// Start opens the streaming session, retrying with backoff on failure. If all
// attempts fail and a BatchRecognizer is configured, the adapter enters
// degraded batch mode and Start returns nil. Without a fallback the last
// streaming error is returned.
func (a *Adapter) Start(ctx context.Context) error {
	var lastErr error
	for attempt := 0; attempt < startAttempts; attempt++ {
		sess, err := a.primary.StartStream(ctx, a.cfg)
		if err == nil {
			a.mu.Lock()
			a.session = sess
			a.mu.Unlock()
			a.wg.Add(1)
			go a.pumpResults(sess)
			return nil
		}
		lastErr = err
		a.log.Warn("stt stream start failed",
			"attempt", attempt+1,
			"error", err)

		if attempt < startAttempts-1 {
			select {
			case <-time.After(startBackoff(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	if a.fallback == nil {
		return fmt.Errorf("stt: start stream: %w", lastErr)
	}

	a.mu.Lock()
	a.degraded = true
	a.mu.Unlock()
	a.log.Warn("stt degraded to batch recognition", "error", lastErr)
	return nil
}

// Degraded reports whether the adapter is running in batch fallback mode.
func (a *Adapter) Degraded() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.degraded
}

// SendAudio delivers one chunk of PCM audio. In streaming mode it is queued to
// the provider session; in degraded mode it is buffered and batch-submitted
// once enough audio has accumulated. SendAudio returns promptly in both modes.
func (a *Adapter) SendAudio(chunk []byte) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return errors.New("stt: adapter is stopped")
	}
	if !a.degraded {
		sess := a.session
		a.mu.Unlock()
		if sess == nil {
			return errors.New("stt: adapter not started")
		}
		return sess.SendAudio(chunk)
	}

	a.buffer = append(a.buffer, chunk...)
	a.chunks++
	var batch []byte
	if a.chunks >= fallbackBatchChunks {
		batch = a.buffer
		a.buffer = nil
		a.chunks = 0
	}
	a.mu.Unlock()

	if batch != nil {
		a.wg.Add(1)
		go a.submitBatch(batch)
	}
	return nil
}

// Stop closes the streaming session or flushes any buffered batch audio, then
// waits for in-flight result delivery to finish.
func (a *Adapter) Stop() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	sess := a.session
	a.session = nil
	var batch []byte
	if a.degraded && len(a.buffer) > 0 {
		batch = a.buffer
		a.buffer = nil
		a.chunks = 0
	}
	a.mu.Unlock()

	if batch != nil {
		a.wg.Add(1)
		go a.submitBatch(batch)
	}

	var err error
	if sess != nil {
		err = sess.Close()
	}
	a.wg.Wait()
	return err
}

// pumpResults forwards session transcripts to the callback until the session's
// result channel closes.
func (a *Adapter) pumpResults(sess SessionHandle) {
	defer a.wg.Done()
	for t := range sess.Results() {
		a.onResult(t)
	}
}

// submitBatch runs one offline recognition over an accumulated audio buffer
// and delivers a final transcript.
func (a *Adapter) submitBatch(pcm []byte) {
	defer a.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	text, err := a.fallback.Transcribe(ctx, pcm, a.cfg)
	if err != nil {
		a.log.Error("stt batch transcription failed", "error", err, "bytes", len(pcm))
		return
	}
	if text == "" {
		return
	}
	a.onResult(Transcript{Text: text, IsFinal: true})
}
