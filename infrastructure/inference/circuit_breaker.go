package inference

import (
	"context"
	"errors"
	"sync"
	"time"
)

// CircuitBreakerState is the state of a CircuitBreaker.
type CircuitBreakerState int

// Circuit breaker states.
const (
	// StateClosed lets every request through.
	StateClosed CircuitBreakerState = iota
	// StateOpen rejects requests until the cooldown expires.
	StateOpen
	// StateHalfOpen lets one probe through after the cooldown.
	StateHalfOpen
)

// String returns the state name used in metric labels.
func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreaker opens after maxFailures consecutive failures and rejects
// calls with ErrCircuitOpen until cooldown has passed. The next call is a
// probe: success closes the circuit, failure reopens it.
type CircuitBreaker struct {
	mu           sync.Mutex
	state        CircuitBreakerState
	failures     int
	maxFailures  int
	cooldown     time.Duration
	lastFailure  time.Time
	now          func() time.Time
	probeRunning bool
}

// NewCircuitBreaker creates a closed CircuitBreaker.
func NewCircuitBreaker(maxFailures int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		state:       StateClosed,
		maxFailures: maxFailures,
		cooldown:    cooldown,
		now:         time.Now,
	}
}

// Call runs fn unless the circuit is open. The lock is not held while fn
// runs, so concurrent callers are not serialized.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if err := cb.before(); err != nil {
		return err
	}
	err := fn()
	cb.after(err)
	return err
}

func (cb *CircuitBreaker) before() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.lastFailure) < cb.cooldown {
			return ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.probeRunning = true
	case StateHalfOpen:
		if cb.probeRunning {
			return ErrCircuitOpen
		}
		cb.probeRunning = true
	}
	return nil
}

func (cb *CircuitBreaker) after(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	wasProbe := cb.state == StateHalfOpen
	cb.probeRunning = false
	if err == nil {
		cb.failures = 0
		cb.state = StateClosed
		return
	}
	// Canceled callers say nothing about provider health.
	if errors.Is(err, context.Canceled) {
		if wasProbe {
			cb.state = StateOpen
		}
		return
	}
	cb.failures++
	cb.lastFailure = cb.now()
	if wasProbe || cb.failures >= cb.maxFailures {
		cb.state = StateOpen
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

type circuitBreakerLLM struct {
	next CoreLLM
	cb   *CircuitBreaker
}

// CircuitBreakerMiddleware shares one breaker across every request that
// passes through the returned middleware.
func CircuitBreakerMiddleware(maxFailures int, cooldown time.Duration) Middleware {
	cb := NewCircuitBreaker(maxFailures, cooldown)
	return func(next CoreLLM) CoreLLM {
		return &circuitBreakerLLM{next: next, cb: cb}
	}
}

func (c *circuitBreakerLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	var response string
	var tokensIn, tokensOut int
	err := c.cb.Call(func() error {
		var err error
		response, tokensIn, tokensOut, err = c.next.DoRequest(ctx, prompt, opts)
		return err
	})
	return response, tokensIn, tokensOut, err
}

func (c *circuitBreakerLLM) GetModel() string { return c.next.GetModel() }
