package observe

import (
	"sync"
	"time"
)

// Stopwatch names used by the conversation pipeline. The same names appear as
// keys in the metrics frame sent to the client.
const (
	TimingSTTLatency      = "stt_latency"
	TimingLLMGeneration   = "llm_generation"
	TimingTTSLatency      = "tts_latency"
	TimingSearchLatency   = "search_latency"
	TimingTotalTurnaround = "total_turnaround"
)

// timing is one named stopwatch. A zero stop time means it is still running.
type timing struct {
	start    time.Time
	duration time.Duration
	stopped  bool
}

// Tracker is the per-connection stopwatch registry and token counter behind
// the metrics frame emitted after each completed turn. Stopwatches are
// restarted at the top of every turn, so a snapshot always reflects the most
// recent one.
//
// Tracker is safe for concurrent use: the STT path, the turn goroutine, and
// the router all record into it.
type Tracker struct {
	mu      sync.Mutex
	timings map[string]*timing
	tokens  int
	model   string

	now func() time.Time
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		timings: make(map[string]*timing),
		now:     time.Now,
	}
}

// SetModel records the model name reported in snapshots.
func (t *Tracker) SetModel(model string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.model = model
}

// StartTiming starts (or restarts) the named stopwatch.
func (t *Tracker) StartTiming(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timings[name] = &timing{start: t.now()}
}

// Running reports whether the named stopwatch has been started and not yet
// stopped. The audio path uses this to start stt_latency only on the rising
// edge of voice activity.
func (t *Tracker) Running(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	tm, ok := t.timings[name]
	return ok && !tm.stopped
}

// StopTiming stops the named stopwatch and returns the elapsed duration.
// Stopping a stopwatch that was never started, or stopping one twice, returns
// zero without side effects.
func (t *Tracker) StopTiming(name string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	tm, ok := t.timings[name]
	if !ok || tm.stopped {
		return 0
	}
	tm.duration = t.now().Sub(tm.start)
	tm.stopped = true
	return tm.duration
}

// AddTokens adds n to the completion token count used for the tps figure.
func (t *Tracker) AddTokens(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tokens += n
}

// ResetTokens zeroes the token count at the start of a new turn.
func (t *Tracker) ResetTokens() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tokens = 0
}

// Snapshot returns the metrics payload for the client: every stopped
// stopwatch's duration in milliseconds, tokens-per-second over the LLM
// generation window, and the model name.
func (t *Tracker) Snapshot() map[string]any {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]any, len(t.timings)+2)
	for name, tm := range t.timings {
		var d time.Duration
		if tm.stopped {
			d = tm.duration
		}
		out[name] = float64(d) / float64(time.Millisecond)
	}

	var tps float64
	if tm, ok := t.timings[TimingLLMGeneration]; ok && tm.stopped && tm.duration > 0 {
		tps = float64(t.tokens) / tm.duration.Seconds()
	}
	out["tps"] = tps
	out["model"] = t.model
	return out
}
