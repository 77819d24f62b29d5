package gateway

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/voxgate-ai/voxgate/internal/observe"
	"github.com/voxgate-ai/voxgate/internal/resilience"
	"github.com/voxgate-ai/voxgate/internal/router"
	"github.com/voxgate-ai/voxgate/internal/segment"
	"github.com/voxgate-ai/voxgate/internal/store"
	"github.com/voxgate-ai/voxgate/pkg/provider/tts"
)

// runTurn executes one user-utterance → assistant-response exchange. It is
// the only producer of turn-tagged frames for its generation; everything it
// emits passes the turnAlive check, and the writer double-checks the
// generation before the socket write.
func (c *Conn) runTurn(ctx context.Context, gen int64, userText string) {
	tr := c.tracker
	tr.ResetTokens()
	tr.SetModel(c.router.Model())
	tr.StartTiming(observe.TimingLLMGeneration)
	tr.StartTiming(observe.TimingTTSLatency)
	tr.StartTiming(observe.TimingTotalTurnaround)

	hist, err := c.gw.history.Recent(ctx, c.sessionID, 0)
	if err != nil {
		slog.Warn("history unavailable, answering without context", "session_id", c.sessionID, "error", err)
		hist = nil
	}
	if err := c.gw.history.Append(ctx, c.sessionID, "user", userText); err != nil {
		slog.Warn("history append failed", "session_id", c.sessionID, "error", err)
	}
	// The user side is durable as soon as it is final, before the LLM runs.
	c.persistMessage(ctx, userText, true)

	c.sendFrame(gen, userTranscriptFrame(userText))
	c.sendFrame(gen, assistantStartFrame())

	var (
		seg        segment.Buffer
		full       strings.Builder
		spoken     = make(map[string]struct{})
		firstAudio = false
	)

	for chunk := range c.router.Stream(ctx, userText, hist, tr) {
		if !c.turnAlive(ctx, gen) {
			break
		}
		if payload, ok := router.ParseStatus(chunk); ok {
			c.sendFrame(gen, statusFrame(payload))
			continue
		}

		c.sendFrame(gen, transcriptChunkFrame(chunk))
		full.WriteString(chunk)
		tr.AddTokens(len(strings.Fields(chunk)))

		for _, sentence := range seg.AddChunk(chunk) {
			c.speak(ctx, gen, sentence, spoken, &firstAudio)
		}
	}

	// Residual text after the stream ends is spoken lowercased; it is usually
	// a trailing fragment, not a sentence.
	if tail := strings.TrimSpace(seg.Flush()); tail != "" && c.turnAlive(ctx, gen) {
		c.speak(ctx, gen, strings.ToLower(tail), spoken, &firstAudio)
	}

	if !c.turnAlive(ctx, gen) {
		slog.Info("turn aborted", "session_id", c.sessionID, "generation", gen)
		c.gw.metrics.TurnsAborted.Add(context.WithoutCancel(ctx), 1)
		return
	}

	c.completeTurn(ctx, gen, userText, full.String())
}

// completeTurn emits the final transcript, persists the assistant side, and
// closes the turn with a metrics frame.
func (c *Conn) completeTurn(ctx context.Context, gen int64, userText, assistantText string) {
	tr := c.tracker

	c.sendFrame(gen, assistantTranscriptFrame(assistantText))

	if assistantText != "" {
		if err := c.gw.history.Append(ctx, c.sessionID, "assistant", assistantText); err != nil {
			slog.Warn("history append failed", "session_id", c.sessionID, "error", err)
		}
		c.persistMessage(ctx, assistantText, false)
	}

	llmDur := tr.StopTiming(observe.TimingLLMGeneration)
	totalDur := tr.StopTiming(observe.TimingTotalTurnaround)

	mode := attribute.String("mode", string(c.router.Mode()))
	c.gw.metrics.LLMGeneration.Record(ctx, llmDur.Seconds(), metric.WithAttributes(mode))
	c.gw.metrics.TurnTurnaround.Record(ctx, totalDur.Seconds(), metric.WithAttributes(mode))
	c.gw.metrics.TurnsCompleted.Add(ctx, 1, metric.WithAttributes(mode))

	c.sendFrame(gen, metricsFrame(tr.Snapshot()))
}

// speak synthesises one sentence and forwards its audio. Sentences are
// cleaned for prosody, deduplicated on their cleaned form, and rechunked into
// client-sized blocks. The first audio block of a turn stops the tts_latency
// stopwatch.
func (c *Conn) speak(ctx context.Context, gen int64, sentence string, spoken map[string]struct{}, firstAudio *bool) {
	clean := segment.CleanForSpeech(sentence)
	if clean == "" {
		return
	}
	if _, dup := spoken[clean]; dup {
		return
	}
	spoken[clean] = struct{}{}
	if !c.turnAlive(ctx, gen) {
		return
	}

	audioCh, served, err := resilience.Try(c.gw.tts, func(p tts.Provider) (<-chan []byte, error) {
		text := make(chan string, 1)
		text <- clean
		close(text)
		return p.SynthesizeStream(ctx, text, c.gw.voice)
	})
	if err != nil {
		// A silent assistant beats a dead turn; the text already went out.
		slog.Warn("speech synthesis unavailable", "session_id", c.sessionID, "error", err)
		c.gw.metrics.RecordProviderError(ctx, "all", "tts")
		return
	}
	c.gw.metrics.RecordProviderRequest(ctx, served, "tts", "ok")

	for block := range tts.Rechunk(audioCh, 0) {
		if !*firstAudio {
			*firstAudio = true
			ttsDur := c.tracker.StopTiming(observe.TimingTTSLatency)
			c.gw.metrics.TTSLatency.Record(ctx, ttsDur.Seconds())
		}
		if !c.turnAlive(ctx, gen) {
			// Keep draining so the provider goroutine can exit; nothing more
			// reaches the socket.
			continue
		}
		c.sendPCM(gen, block)
	}
}

// persistMessage writes one message to the durable store when configured,
// auto-titling the session after its first exchange.
func (c *Conn) persistMessage(ctx context.Context, text string, isUser bool) {
	if c.gw.store == nil {
		return
	}

	if err := c.gw.store.AddMessage(ctx, c.sessionID, text, isUser); err != nil {
		slog.Error("message persistence failed", "session_id", c.sessionID, "error", err)
		return
	}

	if isUser {
		return
	}
	count, err := c.gw.store.MessageCount(ctx, c.sessionID)
	if err != nil || count != 2 {
		return
	}
	title := c.firstUserTitle(ctx)
	if title == "" {
		return
	}
	if err := c.gw.store.SetTitle(ctx, c.sessionID, title); err != nil {
		slog.Warn("auto-title failed", "session_id", c.sessionID, "error", err)
	}
}

// firstUserTitle derives the session title from the first user message.
func (c *Conn) firstUserTitle(ctx context.Context) string {
	msgs, err := c.gw.store.Messages(ctx, c.sessionID)
	if err != nil {
		return ""
	}
	for _, m := range msgs {
		if m.IsUser {
			return store.AutoTitle(m.Text)
		}
	}
	return ""
}
