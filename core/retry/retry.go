package retry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/easygocv/admission/core/breaker"
)

// Class buckets a failure for retry and breaker purposes.
type Class int

const (
	// ClassRetryableUpstream covers transient upstream malfunction:
	// network errors, timeouts, throttling, and 5xx-equivalent responses.
	// These are retried and count against the circuit breaker.
	ClassRetryableUpstream Class = iota
	// ClassCallerError covers malformed-input failures that no retry can
	// fix. They propagate immediately and do not count against the
	// breaker: the upstream answered, the request was wrong.
	ClassCallerError
)

// Classifier assigns a failure class to an error. It must be a pure
// function of the error value.
type Classifier func(error) Class

// Config holds the retry schedule.
type Config struct {
	// MaxAttempts is the total number of attempts, first call included.
	MaxAttempts int `env:"RETRY_MAX_ATTEMPTS" envDefault:"3"`
	// BaseDelay is the backoff before the first retry; it doubles each
	// attempt with jitter applied.
	BaseDelay time.Duration `env:"RETRY_BASE_DELAY" envDefault:"1s"`
	// MaxDelay caps the computed backoff.
	MaxDelay time.Duration `env:"RETRY_MAX_DELAY" envDefault:"10s"`
}

// DefaultConfig returns the production defaults: 3 attempts, 1s base
// delay doubling up to 10s.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    10 * time.Second,
	}
}

// Validate checks the configuration for usable values.
func (c Config) Validate() error {
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("%w: max attempts must be > 0, got %d", ErrInvalidConfig, c.MaxAttempts)
	}
	if c.BaseDelay <= 0 {
		return fmt.Errorf("%w: base delay must be > 0, got %v", ErrInvalidConfig, c.BaseDelay)
	}
	if c.MaxDelay < c.BaseDelay {
		return fmt.Errorf("%w: max delay %v is below base delay %v", ErrInvalidConfig, c.MaxDelay, c.BaseDelay)
	}
	return nil
}

// Executor runs upstream calls with bounded retries behind a circuit
// breaker. The breaker is consulted before every attempt, fed one
// failure event per attempt that indicates upstream malfunction, and
// reset on success.
type Executor struct {
	cfg      Config
	guard    *breaker.Breaker
	classify Classifier
	logger   *slog.Logger
	sleep    func(context.Context, time.Duration) error
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger for retry events.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithSleep overrides the backoff sleep. Intended for tests.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(e *Executor) {
		if sleep != nil {
			e.sleep = sleep
		}
	}
}

// New creates an executor guarded by the given breaker. The classifier
// decides which failures are worth retrying; if nil, every failure is
// treated as retryable upstream malfunction.
func New(cfg Config, guard *breaker.Breaker, classify Classifier, opts ...Option) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if guard == nil {
		return nil, ErrNilBreaker
	}
	if classify == nil {
		classify = func(error) Class { return ClassRetryableUpstream }
	}

	e := &Executor{
		cfg:      cfg,
		guard:    guard,
		classify: classify,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		sleep:    sleepCtx,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Do runs thunk through the executor. Retryable failures are re-attempted
// up to the configured budget with exponential backoff and jitter; the
// exhausted failure surfaces wrapped in ErrExhausted. Caller errors
// propagate immediately unwrapped. A breaker rejection surfaces as
// breaker.ErrOpen without an upstream attempt.
func Do[T any](ctx context.Context, e *Executor, thunk func(context.Context) (T, error)) (T, error) {
	var zero T

	schedule := backoff.NewExponentialBackOff()
	schedule.InitialInterval = e.cfg.BaseDelay
	schedule.MaxInterval = e.cfg.MaxDelay
	schedule.Multiplier = 2
	schedule.MaxElapsedTime = 0 // attempts are bounded by count, not time
	schedule.Reset()

	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		if err := e.guard.Allow(); err != nil {
			return zero, err
		}

		result, err := thunk(ctx)
		if err == nil {
			e.guard.RecordSuccess()
			return result, nil
		}

		if e.classify(err) == ClassCallerError {
			// The upstream answered; the request itself was bad. That is
			// a healthy dependency, not a failure event.
			e.guard.RecordSuccess()
			return zero, err
		}

		e.guard.RecordFailure()
		lastErr = err

		if attempt == e.cfg.MaxAttempts {
			break
		}

		delay := schedule.NextBackOff()
		e.logger.Warn("upstream call failed, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", e.cfg.MaxAttempts),
			slog.Duration("backoff", delay),
			slog.Any("error", err))

		if err := e.sleep(ctx, delay); err != nil {
			return zero, err
		}
	}

	return zero, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, e.cfg.MaxAttempts, lastErr)
}

// sleepCtx pauses for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
