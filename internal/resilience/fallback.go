package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every entry in a [FallbackGroup] fails or has
// an open circuit breaker.
var ErrAllFailed = errors.New("resilience: all providers failed")

// entry pairs a named provider with its dedicated circuit breaker.
type entry[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup composes a primary provider with zero or more fallbacks of
// the same type. Calls go to the first entry whose breaker is closed; on
// failure the next entry is tried in registration order.
//
// FallbackGroup is safe for concurrent use after construction; Add must not
// race with Try.
type FallbackGroup[T any] struct {
	entries []entry[T]
	breaker BreakerConfig
}

// NewFallbackGroup creates a group with primary as its first entry. The
// breaker config is cloned per entry.
func NewFallbackGroup[T any](primaryName string, primary T, breaker BreakerConfig) *FallbackGroup[T] {
	g := &FallbackGroup[T]{breaker: breaker}
	g.Add(primaryName, primary)
	return g
}

// Add appends a fallback provider. Fallbacks are tried in insertion order
// after the primary.
func (g *FallbackGroup[T]) Add(name string, value T) {
	cfg := g.breaker
	cfg.Name = name
	g.entries = append(g.entries, entry[T]{
		name:    name,
		value:   value,
		breaker: NewCircuitBreaker(cfg),
	})
}

// Try runs fn against each entry in order until one succeeds. Entries with an
// open breaker are skipped. The name of the entry that served the call is
// returned alongside fn's result; on total failure the last error is wrapped
// in [ErrAllFailed].
func Try[T any, R any](g *FallbackGroup[T], fn func(T) (R, error)) (R, string, error) {
	var (
		lastErr error
		zero    R
	)
	for i := range g.entries {
		e := &g.entries[i]
		var result R
		err := e.breaker.Execute(func() error {
			var innerErr error
			result, innerErr = fn(e.value)
			return innerErr
		})
		if err == nil {
			return result, e.name, nil
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping provider, circuit open", "provider", e.name)
		} else {
			slog.Warn("provider failed, trying next", "provider", e.name, "error", err)
		}
	}
	return zero, "", fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}
