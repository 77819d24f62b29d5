package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/voxgate-ai/voxgate/internal/observe"
	"github.com/voxgate-ai/voxgate/internal/router"
	"github.com/voxgate-ai/voxgate/internal/validate"
	"github.com/voxgate-ai/voxgate/pkg/provider/stt"
)

const (
	// bargeInQuiesce is how long the interrupt signal stays raised after an
	// explicit barge-in control frame.
	bargeInQuiesce = 50 * time.Millisecond

	// turnQuiesce is how long the interrupt signal stays raised when a new
	// utterance supersedes an in-flight turn.
	turnQuiesce = 100 * time.Millisecond

	// writeQueueSize bounds the outbound frame channel. PCM blocks dominate;
	// at 16 KiB per block this is a few seconds of audio headroom.
	writeQueueSize = 64
)

// startupLogs are emitted once per connection before the pipeline starts.
var startupLogs = []string{
	"Connection secure",
	"Buffer synchronized",
	"Neural weights loaded",
	"Engine ready",
}

// socket is the slice of *websocket.Conn the connection uses, an interface so
// tests can drive the serve loop in memory.
type socket interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Close(code websocket.StatusCode, reason string) error
}

// outbound is one queued socket write. gen tags the turn the payload belongs
// to; zero means connection-scoped, written unconditionally.
type outbound struct {
	gen    int64
	binary bool
	data   []byte
}

// Conn is one live voice connection.
type Conn struct {
	gw        *Gateway
	sock      socket
	deviceID  string
	sessionID string
	remoteIP  string

	router  *router.Router
	tracker *observe.Tracker

	// generation identifies the current turn; aborted is the highest
	// generation cancelled by barge-in or supersession. The writer drops any
	// frame whose gen is stale on either count.
	generation  atomic.Int64
	aborted     atomic.Int64
	interrupted atomic.Bool

	writeCh chan outbound
	events  chan stt.Transcript

	mu          sync.Mutex
	cancelServe context.CancelFunc
	cancelTurn  context.CancelFunc
}

func newConn(g *Gateway, sock socket, deviceID, sessionID, remoteIP string) *Conn {
	return &Conn{
		gw:        g,
		sock:      sock,
		deviceID:  deviceID,
		sessionID: sessionID,
		remoteIP:  remoteIP,
		router:    g.newRouter(),
		tracker:   observe.NewTracker(),
		writeCh:   make(chan outbound, writeQueueSize),
		events:    make(chan stt.Transcript, 16),
	}
}

// serve runs the connection until the socket closes or the context is
// cancelled. It owns the read loop; a writer goroutine owns all socket
// writes, and a transcript goroutine turns recogniser results into turns.
func (c *Conn) serve(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.mu.Lock()
	c.cancelServe = cancel
	c.mu.Unlock()

	prior, err := c.gw.registry.acquire(c.deviceID, c.remoteIP, c)
	if err != nil {
		slog.Warn("connection refused", "device_id", c.deviceID, "remote", c.remoteIP, "error", err)
		payload := encodeFrame(errorFrame("Too many connections from this address"))
		_ = c.sock.Write(ctx, websocket.MessageText, payload)
		_ = c.sock.Close(websocket.StatusPolicyViolation, "connection limit reached")
		return
	}
	defer c.gw.registry.release(c.deviceID, c.remoteIP, c)
	if prior != nil {
		slog.Info("evicting prior connection for device", "device_id", c.deviceID)
		prior.evict()
	}

	c.gw.metrics.ActiveConnections.Add(ctx, 1)
	defer c.gw.metrics.ActiveConnections.Add(ctx, -1)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writeLoop(ctx)
	}()
	defer wg.Wait()
	defer cancel()

	c.resolveSession(ctx)

	for _, line := range startupLogs {
		c.sendFrame(0, systemLogFrame(line))
	}

	adapter, err := stt.NewAdapter(c.gw.sttProvider, c.gw.sttBatch, stt.StreamConfig{
		SampleRate:    SampleRate,
		Channels:      1,
		Language:      "en-US",
		EndpointingMs: sttEndpointingMs,
	}, func(t stt.Transcript) {
		select {
		case c.events <- t:
		case <-ctx.Done():
		}
	})
	if err != nil {
		slog.Error("stt adapter construction failed", "error", err)
		c.sendFrame(0, errorFrame("Speech recognition is unavailable"))
		return
	}
	if err := adapter.Start(ctx); err != nil {
		slog.Error("stt start failed", "device_id", c.deviceID, "error", err)
		c.sendFrame(0, errorFrame("Speech recognition is unavailable"))
		// Text input still works without audio recognition.
	}
	defer func() {
		if err := adapter.Stop(); err != nil {
			slog.Warn("stt adapter stop failed", "error", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.transcriptLoop(ctx)
	}()

	slog.Info("voice connection open",
		"device_id", c.deviceID,
		"session_id", c.sessionID,
		"remote", c.remoteIP)

	for {
		typ, data, err := c.sock.Read(ctx)
		if err != nil {
			slog.Info("voice connection closed", "device_id", c.deviceID, "error", err)
			return
		}
		switch typ {
		case websocket.MessageBinary:
			c.handleAudio(data, adapter)
		case websocket.MessageText:
			c.handleControl(ctx, data)
		}
	}
}

// resolveSession validates or replaces the client-supplied session ID and
// ensures the session row exists when a store is configured. A rejected ID is
// reported with a session_reset frame.
func (c *Conn) resolveSession(ctx context.Context) {
	requested := c.sessionID
	if requested == "" || !validate.ValidateSessionID(requested) {
		c.sessionID = uuid.NewString()
		if requested != "" {
			slog.Warn("rejected session id", "device_id", c.deviceID)
			c.sendFrame(0, sessionResetFrame(c.sessionID))
		}
	}

	if c.gw.store != nil {
		if _, err := c.gw.store.EnsureSession(ctx, c.sessionID); err != nil {
			slog.Error("session store unavailable", "session_id", c.sessionID, "error", err)
		}
	}
}

// writeLoop is the single owner of socket writes. Frames tagged with a stale
// or aborted generation are dropped, which upholds the cross-turn ordering
// guarantee even for frames enqueued just before a barge-in.
func (c *Conn) writeLoop(ctx context.Context) {
	for {
		select {
		case m := <-c.writeCh:
			if len(m.data) == 0 {
				continue
			}
			if m.gen != 0 && (m.gen != c.generation.Load() || m.gen <= c.aborted.Load()) {
				continue
			}
			typ := websocket.MessageText
			if m.binary {
				typ = websocket.MessageBinary
			}
			if err := c.sock.Write(ctx, typ, m.data); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// transcriptLoop consumes recogniser results: interims are forwarded to the
// client, finals start turns.
func (c *Conn) transcriptLoop(ctx context.Context) {
	for {
		select {
		case t := <-c.events:
			if !t.IsFinal {
				if text := strings.TrimSpace(t.Text); text != "" {
					c.sendFrame(0, transcriptInterimFrame(text))
				}
				continue
			}
			text := validate.SanitizeTranscript(t.Text)
			if text == "" {
				continue
			}
			c.startTurn(ctx, text)
		case <-ctx.Done():
			return
		}
	}
}

// handleAudio meters one inbound PCM chunk and forwards it to recognition.
// The VAD verdict only gates the stt_latency stopwatch; audio is always
// forwarded because the provider's endpointing is authoritative and starving
// it of silence would break utterance finalisation.
func (c *Conn) handleAudio(chunk []byte, adapter *stt.Adapter) {
	speech := true
	if c.gw.detector != nil {
		if got, err := c.gw.detector.Detect(chunk); err == nil {
			speech = got
		}
	}
	if speech && !c.tracker.Running(observe.TimingSTTLatency) {
		c.tracker.StartTiming(observe.TimingSTTLatency)
	}

	if err := adapter.SendAudio(c.gw.pre.Process(chunk)); err != nil {
		slog.Warn("audio forward failed", "error", err)
	}
}

// handleControl dispatches one inbound JSON control message. Unknown types
// are ignored.
func (c *Conn) handleControl(ctx context.Context, data []byte) {
	var msg controlFrame
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendFrame(0, errorFrame("invalid control message"))
		return
	}

	switch msg.Type {
	case "ping":
		c.sendFrame(0, pongFrame())

	case "barge-in":
		slog.Info("barge-in", "device_id", c.deviceID, "generation", c.generation.Load())
		c.abortTurn(bargeInQuiesce)

	case "speech_end":
		// Advisory. Provider endpointing finalises the utterance.

	case "update_context":
		if prompt := validate.SanitizeSystemPrompt(msg.Text); prompt != "" {
			c.router.SetSystemPrompt(prompt)
			slog.Info("system prompt updated", "session_id", c.sessionID)
		}

	case "set_response_mode":
		mode, ok := router.ParseMode(msg.Mode)
		if !ok {
			c.sendFrame(0, errorFrame("unknown response mode: "+msg.Mode))
			return
		}
		c.router.SetMode(mode)
		c.tracker.SetModel(c.router.Model())
		c.sendFrame(0, statusFrame("Response mode set to "+string(mode)))
		c.sendFrame(0, metricsFrame(c.tracker.Snapshot()))

	case "text_input":
		if text := validate.SanitizeTranscript(msg.Text); text != "" {
			select {
			case c.events <- stt.Transcript{Text: text, IsFinal: true}:
			case <-ctx.Done():
			}
		}

	default:
		slog.Debug("ignoring unknown control frame", "type", msg.Type)
	}
}

// abortTurn raises the interrupt signal, cancels the in-flight turn, and
// clears the signal after the quiesce window. It runs on the control path so
// the sleep is a real pause in frame handling.
func (c *Conn) abortTurn(quiesce time.Duration) {
	c.aborted.Store(c.generation.Load())
	c.interrupted.Store(true)
	c.mu.Lock()
	cancel := c.cancelTurn
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	time.Sleep(quiesce)
	c.interrupted.Store(false)
}

// startTurn supersedes any in-flight turn and launches a new one for the
// finalised utterance.
func (c *Conn) startTurn(ctx context.Context, text string) {
	c.tracker.StopTiming(observe.TimingSTTLatency)
	c.abortTurn(turnQuiesce)

	gen := c.generation.Add(1)
	turnCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancelTurn = cancel
	c.mu.Unlock()

	go c.runTurn(turnCtx, gen, text)
}

// turnAlive reports whether output tagged gen may still be produced.
func (c *Conn) turnAlive(ctx context.Context, gen int64) bool {
	return ctx.Err() == nil &&
		gen == c.generation.Load() &&
		gen > c.aborted.Load() &&
		!c.interrupted.Load()
}

// evict closes a connection that has been superseded by a newer one for the
// same device.
func (c *Conn) evict() {
	_ = c.sock.Close(StatusSuperseded, "superseded by a newer connection")
	c.mu.Lock()
	cancel := c.cancelServe
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// sendFrame enqueues one JSON frame for the writer. gen zero marks a
// connection-scoped frame.
func (c *Conn) sendFrame(gen int64, f frame) {
	c.enqueue(outbound{gen: gen, data: encodeFrame(f)})
}

// sendPCM enqueues one binary audio block for the writer.
func (c *Conn) sendPCM(gen int64, pcm []byte) {
	c.enqueue(outbound{gen: gen, binary: true, data: pcm})
}

func (c *Conn) enqueue(m outbound) {
	select {
	case c.writeCh <- m:
	default:
		// A full queue means the client is not draining; dropping here is
		// preferable to stalling the whole pipeline.
		slog.Warn("outbound queue full, dropping frame", "device_id", c.deviceID, "binary", m.binary)
	}
}
