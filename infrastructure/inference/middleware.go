package inference

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"golang.org/x/time/rate"

	"github.com/ahrav/credcheck/internal/ports"
)

// ResilienceConfig configures StandardMiddleware.
type ResilienceConfig struct {
	// Timeout bounds each attempt.
	Timeout time.Duration `yaml:"timeout" env:"CREDCHECK_INFERENCE_TIMEOUT" validate:"required,min=1ms"`
	// MaxRetries is the number of extra attempts after the first.
	MaxRetries int `yaml:"max_retries" env:"CREDCHECK_INFERENCE_MAX_RETRIES" validate:"min=0,max=10"`
	// RetryBaseDelay is the first backoff delay.
	RetryBaseDelay time.Duration `yaml:"retry_base_delay" validate:"required,min=1ms"`
	// RetryMaxDelay caps the backoff delay.
	RetryMaxDelay time.Duration `yaml:"retry_max_delay" validate:"required,gtefield=RetryBaseDelay"`
	// RequestsPerSecond limits the request rate across all callers.
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gt=0"`
	// Burst is the rate limiter bucket size.
	Burst int `yaml:"burst" validate:"min=1"`
	// BreakerFailures is the consecutive failure count that opens the circuit.
	BreakerFailures int `yaml:"breaker_failures" validate:"min=1"`
	// BreakerCooldown is how long the circuit stays open.
	BreakerCooldown time.Duration `yaml:"breaker_cooldown" validate:"required,min=1ms"`
}

// DefaultResilienceConfig returns production defaults.
func DefaultResilienceConfig() ResilienceConfig {
	return ResilienceConfig{
		Timeout:           20 * time.Second,
		MaxRetries:        2,
		RetryBaseDelay:    500 * time.Millisecond,
		RetryMaxDelay:     5 * time.Second,
		RequestsPerSecond: 5,
		Burst:             10,
		BreakerFailures:   5,
		BreakerCooldown:   30 * time.Second,
	}
}

// StandardMiddleware builds the production chain, outermost first:
// tracing, metrics, circuit breaker, retry, rate limit, per-attempt timeout.
// collector may be nil.
func StandardMiddleware(cfg ResilienceConfig, collector ports.MetricsCollector) []Middleware {
	chain := []Middleware{TracingMiddleware("credcheck-inference")}
	if collector != nil {
		chain = append(chain, MetricsMiddleware(collector))
	}
	return append(chain,
		CircuitBreakerMiddleware(cfg.BreakerFailures, cfg.BreakerCooldown),
		RetryMiddleware(cfg.MaxRetries, cfg.RetryBaseDelay, cfg.RetryMaxDelay),
		RateLimitMiddleware(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		TimeoutMiddleware(cfg.Timeout),
	)
}

type timeoutLLM struct {
	next    CoreLLM
	timeout time.Duration
}

// TimeoutMiddleware bounds each request. When only this deadline fires the
// error is reported as a retryable timeout.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &timeoutLLM{next: next, timeout: timeout}
	}
}

func (t *timeoutLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	response, tokensIn, tokensOut, err := t.next.DoRequest(attemptCtx, prompt, opts)
	if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		var pe *ProviderError
		if !errors.As(err, &pe) {
			err = NewProviderError("inference", ErrorTypeTimeout, 0, fmt.Sprintf("no response within %s", t.timeout), err)
		}
	}
	return response, tokensIn, tokensOut, err
}

func (t *timeoutLLM) GetModel() string { return t.next.GetModel() }

type retryLLM struct {
	next       CoreLLM
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// RetryMiddleware retries retryable failures with exponential backoff and
// jitter. It stops early when the caller's context ends.
func RetryMiddleware(maxRetries int, baseDelay, maxDelay time.Duration) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &retryLLM{
			next:       next,
			maxRetries: maxRetries,
			baseDelay:  baseDelay,
			maxDelay:   maxDelay,
		}
	}
}

func (r *retryLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		attempts++
		response, tokensIn, tokensOut, err := r.next.DoRequest(ctx, prompt, opts)
		if err == nil {
			return response, tokensIn, tokensOut, nil
		}
		lastErr = err

		if ctx.Err() != nil || !isRetryable(err) || attempt == r.maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return "", 0, 0, ctx.Err()
		case <-time.After(r.delay(attempt)):
		}
	}
	if attempts == 1 {
		return "", 0, 0, lastErr
	}
	return "", 0, 0, fmt.Errorf("request failed after %d attempts: %w", attempts, lastErr)
}

// delay returns the backoff before the next attempt: base * 2^attempt,
// spread by -25%..+25% jitter and capped at maxDelay.
func (r *retryLLM) delay(attempt int) time.Duration {
	if attempt > 30 {
		attempt = 30
	}
	d := time.Duration(float64(r.baseDelay) * float64(uint(1)<<uint(attempt)))
	jitter := time.Duration(rand.Float64() * float64(d) * 0.5)
	d = d + jitter - d/4
	if d > r.maxDelay {
		d = r.maxDelay
	}
	return d
}

func (r *retryLLM) GetModel() string { return r.next.GetModel() }

type rateLimitedLLM struct {
	next    CoreLLM
	limiter *rate.Limiter
}

// RateLimitMiddleware shares one token bucket across every request that
// passes through the returned middleware.
func RateLimitMiddleware(limit rate.Limit, burst int) Middleware {
	limiter := rate.NewLimiter(limit, burst)
	return func(next CoreLLM) CoreLLM {
		return &rateLimitedLLM{next: next, limiter: limiter}
	}
}

func (r *rateLimitedLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", 0, 0, fmt.Errorf("rate limit: %w", err)
	}
	return r.next.DoRequest(ctx, prompt, opts)
}

func (r *rateLimitedLLM) GetModel() string { return r.next.GetModel() }
