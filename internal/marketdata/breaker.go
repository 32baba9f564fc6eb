package marketdata

import (
	"context"
	"errors"
	"sync"
	"time"
)

// BreakerState is the upstream circuit breaker state.
type BreakerState int

const (
	BreakerClosed   BreakerState = 0 // upstream calls pass through
	BreakerOpen     BreakerState = 1 // upstream calls rejected until the cooldown ends
	BreakerHalfOpen BreakerState = 2 // one probe call allowed
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned while the upstream is considered down.
var ErrCircuitOpen = errors.New("market data upstream unavailable (circuit open)")

// CircuitBreaker stops hammering an upstream that keeps failing. After
// maxFailures consecutive failures it opens for cooldown, then lets one
// probe through. Request errors (bad ticker, no data, caller cancellation)
// say nothing about upstream health and are not counted.
type CircuitBreaker struct {
	mu          sync.Mutex
	state       BreakerState
	failures    int
	maxFailures int
	cooldown    time.Duration
	openedAt    time.Time
	probing     bool
	now         func() time.Time

	// OnStateChange, if set, is called with the lock held on every transition.
	OnStateChange func(from, to BreakerState)
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(maxFailures int, cooldown time.Duration) *CircuitBreaker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	return &CircuitBreaker{
		maxFailures: maxFailures,
		cooldown:    cooldown,
		now:         time.Now,
	}
}

// Execute runs fn unless the breaker is open.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn(ctx)
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerOpen:
		if cb.now().Sub(cb.openedAt) < cb.cooldown {
			return ErrCircuitOpen
		}
		cb.transition(BreakerHalfOpen)
		cb.probing = true
	case BreakerHalfOpen:
		if cb.probing {
			return ErrCircuitOpen
		}
		cb.probing = true
	}
	return nil
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	wasProbe := cb.state == BreakerHalfOpen
	cb.probing = false

	switch {
	case err == nil, errors.Is(err, ErrNoData):
		// The upstream answered.
		if wasProbe {
			cb.transition(BreakerClosed)
		}
		cb.failures = 0
		return
	case !countsAsFailure(err):
		// Cancelled or rejected before reaching the upstream: nothing was
		// learned, so a half-open breaker stays half-open for the next probe.
		return
	}

	cb.failures++
	if wasProbe || cb.failures >= cb.maxFailures {
		cb.openedAt = cb.now()
		cb.transition(BreakerOpen)
	}
}

func countsAsFailure(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrNoData):
		return false
	case errors.Is(err, context.Canceled):
		return false
	}
	return true
}

// State returns the current state.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) transition(to BreakerState) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if to == BreakerClosed {
		cb.failures = 0
	}
	if cb.OnStateChange != nil {
		cb.OnStateChange(from, to)
	}
}
