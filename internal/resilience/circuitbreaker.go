// Package resilience provides the failover primitives used around external
// providers: a three-state circuit breaker and a generic fallback group that
// tries a primary provider first and degrades to configured fallbacks.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] while the breaker is
// open and the cooldown has not yet elapsed.
var ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

// Breaker state constants.
type State int

const (
	// StateClosed forwards all calls; consecutive failures are counted.
	StateClosed State = iota

	// StateOpen rejects calls immediately until the cooldown elapses.
	StateOpen

	// StateHalfOpen lets a limited number of probe calls through to decide
	// whether to close or re-open.
	StateHalfOpen
)

// String returns the human-readable state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig holds the tuning knobs for a [CircuitBreaker]. Zero values
// select the defaults noted per field.
type BreakerConfig struct {
	// Name labels the breaker in log messages.
	Name string

	// MaxFailures is the consecutive-failure count that trips the breaker.
	// Default: 5.
	MaxFailures int

	// Cooldown is how long the breaker stays open before probing.
	// Default: 30s.
	Cooldown time.Duration

	// HalfOpenProbes is how many successful probes close the breaker again.
	// Default: 2.
	HalfOpenProbes int
}

// CircuitBreaker protects a provider from being hammered while it is failing.
// It is safe for concurrent use.
type CircuitBreaker struct {
	cfg BreakerConfig

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	openedAt  time.Time

	now func() time.Time
}

// NewCircuitBreaker creates a breaker with the given config, applying
// defaults for zero fields.
func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.HalfOpenProbes <= 0 {
		cfg.HalfOpenProbes = 2
	}
	return &CircuitBreaker{cfg: cfg, now: time.Now}
}

// State returns the breaker's current state, accounting for cooldown expiry.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentState()
}

// Execute runs fn if the breaker allows it and records the outcome. When the
// breaker is open, fn is not called and [ErrCircuitOpen] is returned.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	switch cb.currentState() {
	case StateOpen:
		cb.mu.Unlock()
		return ErrCircuitOpen
	case StateHalfOpen, StateClosed:
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err != nil {
		cb.onFailure()
		return err
	}
	cb.onSuccess()
	return nil
}

// currentState resolves Open → HalfOpen once the cooldown has elapsed.
// Caller must hold mu.
func (cb *CircuitBreaker) currentState() State {
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.cfg.Cooldown {
		cb.state = StateHalfOpen
		cb.successes = 0
		slog.Debug("circuit breaker probing", "name", cb.cfg.Name)
	}
	return cb.state
}

// onFailure counts a failure and trips the breaker when warranted.
// Caller must hold mu.
func (cb *CircuitBreaker) onFailure() {
	switch cb.state {
	case StateHalfOpen:
		cb.trip()
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.cfg.MaxFailures {
			cb.trip()
		}
	}
}

// onSuccess counts a success and closes the breaker after enough probes.
// Caller must hold mu.
func (cb *CircuitBreaker) onSuccess() {
	switch cb.state {
	case StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.cfg.HalfOpenProbes {
			cb.state = StateClosed
			cb.failures = 0
			slog.Info("circuit breaker closed", "name", cb.cfg.Name)
		}
	case StateClosed:
		cb.failures = 0
	}
}

// trip opens the breaker. Caller must hold mu.
func (cb *CircuitBreaker) trip() {
	cb.state = StateOpen
	cb.openedAt = cb.now()
	cb.failures = 0
	slog.Warn("circuit breaker opened",
		"name", cb.cfg.Name, "cooldown", cb.cfg.Cooldown)
}
