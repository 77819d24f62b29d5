package observe

import (
	"testing"
	"time"
)

// fakeClock returns a now() func that advances by step on every call.
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	t := start
	return func() time.Time {
		t = t.Add(step)
		return t
	}
}

func TestTracker_StartStop(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	tr.now = fakeClock(time.Unix(0, 0), 100*time.Millisecond)

	tr.StartTiming(TimingSTTLatency)
	if !tr.Running(TimingSTTLatency) {
		t.Fatal("stopwatch should be running after start")
	}
	d := tr.StopTiming(TimingSTTLatency)
	if d != 100*time.Millisecond {
		t.Errorf("duration: want 100ms, got %v", d)
	}
	if tr.Running(TimingSTTLatency) {
		t.Error("stopwatch should not be running after stop")
	}
}

func TestTracker_StopWithoutStart(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	if d := tr.StopTiming("never_started"); d != 0 {
		t.Errorf("stop without start: want 0, got %v", d)
	}
}

func TestTracker_DoubleStop(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	tr.now = fakeClock(time.Unix(0, 0), 50*time.Millisecond)
	tr.StartTiming(TimingTTSLatency)
	first := tr.StopTiming(TimingTTSLatency)
	if first != 50*time.Millisecond {
		t.Errorf("first stop: want 50ms, got %v", first)
	}
	if second := tr.StopTiming(TimingTTSLatency); second != 0 {
		t.Errorf("second stop: want 0, got %v", second)
	}
}

func TestTracker_Snapshot(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	tr.now = fakeClock(time.Unix(0, 0), 500*time.Millisecond)
	tr.SetModel("llama-3.3-70b-versatile")

	tr.StartTiming(TimingLLMGeneration)
	tr.AddTokens(25)
	tr.StopTiming(TimingLLMGeneration) // 500ms elapsed

	snap := tr.Snapshot()
	if got := snap[TimingLLMGeneration].(float64); got != 500 {
		t.Errorf("llm_generation ms: want 500, got %v", got)
	}
	// 25 tokens over 0.5s = 50 tps.
	if got := snap["tps"].(float64); got != 50 {
		t.Errorf("tps: want 50, got %v", got)
	}
	if got := snap["model"].(string); got != "llama-3.3-70b-versatile" {
		t.Errorf("model: want llama-3.3-70b-versatile, got %q", got)
	}
}

func TestTracker_SnapshotRunningStopwatchIsZero(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	tr.StartTiming(TimingSearchLatency)
	snap := tr.Snapshot()
	if got := snap[TimingSearchLatency].(float64); got != 0 {
		t.Errorf("running stopwatch in snapshot: want 0, got %v", got)
	}
}

func TestTracker_ResetTokens(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	tr.now = fakeClock(time.Unix(0, 0), time.Second)
	tr.AddTokens(10)
	tr.ResetTokens()
	tr.StartTiming(TimingLLMGeneration)
	tr.AddTokens(4)
	tr.StopTiming(TimingLLMGeneration) // 1s

	snap := tr.Snapshot()
	if got := snap["tps"].(float64); got != 4 {
		t.Errorf("tps after reset: want 4, got %v", got)
	}
}
