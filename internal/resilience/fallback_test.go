package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestFallbackGroup_PrimaryServes(t *testing.T) {
	t.Parallel()

	g := NewFallbackGroup("primary", 1, BreakerConfig{})
	g.Add("secondary", 2)

	got, name, err := Try(g, func(v int) (int, error) { return v * 10, nil })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 10 || name != "primary" {
		t.Errorf("want (10, primary), got (%d, %s)", got, name)
	}
}

func TestFallbackGroup_FallsBackOnError(t *testing.T) {
	t.Parallel()

	g := NewFallbackGroup("primary", 1, BreakerConfig{})
	g.Add("secondary", 2)

	got, name, err := Try(g, func(v int) (int, error) {
		if v == 1 {
			return 0, errBoom
		}
		return v * 10, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 20 || name != "secondary" {
		t.Errorf("want (20, secondary), got (%d, %s)", got, name)
	}
}

func TestFallbackGroup_AllFail(t *testing.T) {
	t.Parallel()

	g := NewFallbackGroup("primary", 1, BreakerConfig{})
	g.Add("secondary", 2)

	_, _, err := Try(g, func(v int) (int, error) { return 0, errBoom })
	if !errors.Is(err, ErrAllFailed) {
		t.Errorf("want ErrAllFailed, got %v", err)
	}
}

func TestFallbackGroup_SkipsOpenBreaker(t *testing.T) {
	t.Parallel()

	g := NewFallbackGroup("primary", 1, BreakerConfig{MaxFailures: 1, Cooldown: time.Hour})
	g.Add("secondary", 2)

	// Trip the primary's breaker.
	_, _, _ = Try(g, func(v int) (int, error) {
		if v == 1 {
			return 0, errBoom
		}
		return v, nil
	})

	calls := 0
	got, name, err := Try(g, func(v int) (int, error) {
		calls++
		return v, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "secondary" || got != 2 {
		t.Errorf("want secondary to serve, got (%d, %s)", got, name)
	}
	if calls != 1 {
		t.Errorf("primary with open breaker must be skipped, fn called %d times", calls)
	}
}
