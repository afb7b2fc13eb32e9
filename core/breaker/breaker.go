package breaker

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// State is the breaker's position in its finite state machine.
type State int

const (
	// StateClosed passes calls through and counts consecutive failures.
	StateClosed State = iota
	// StateOpen rejects calls outright until the cooldown elapses.
	StateOpen
	// StateHalfOpen allows a single probe call to test recovery.
	StateHalfOpen
)

// String returns the state name for logs and status endpoints.
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

// Config holds the breaker thresholds.
type Config struct {
	// FailureThreshold is the number of consecutive failures that trips
	// the breaker from closed to open.
	FailureThreshold int `env:"BREAKER_FAILURE_THRESHOLD" envDefault:"5"`
	// Cooldown is how long the breaker stays open before admitting a probe.
	Cooldown time.Duration `env:"BREAKER_COOLDOWN" envDefault:"60s"`
}

// DefaultConfig returns the production defaults: trip after 5 consecutive
// failures, probe after a 60 second cooldown.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		Cooldown:         60 * time.Second,
	}
}

// Validate checks the configuration for usable values.
func (c Config) Validate() error {
	if c.FailureThreshold <= 0 {
		return fmt.Errorf("%w: failure threshold must be > 0, got %d", ErrInvalidConfig, c.FailureThreshold)
	}
	if c.Cooldown <= 0 {
		return fmt.Errorf("%w: cooldown must be > 0, got %v", ErrInvalidConfig, c.Cooldown)
	}
	return nil
}

// Breaker guards calls to a shared upstream dependency. It is
// process-wide: it models the health of the upstream, not any one
// caller's entitlement. All state transitions happen inside this type;
// external code only reports call outcomes.
type Breaker struct {
	mu             sync.Mutex
	state          State
	failures       int
	lastTransition time.Time
	probeInFlight  bool

	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	// Observability counters
	rejected int64
	tripped  int64
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithLogger sets the logger for state transitions.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Breaker) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		if now != nil {
			b.now = now
		}
	}
}

// New creates a breaker in the closed state.
func New(cfg Config, opts ...Option) (*Breaker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	b := &Breaker{
		state:  StateClosed,
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(b)
	}
	b.lastTransition = b.now()

	return b, nil
}

// Allow decides whether a call may proceed. A nil return admits the
// call; the caller must then report the outcome with RecordSuccess or
// RecordFailure. ErrOpen means the call must be rejected without
// touching upstream.
//
// While open, the first call after the cooldown flips the breaker to
// half-open and becomes the probe; calls arriving while that probe is
// outstanding are rejected as if the breaker were still open.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil

	case StateOpen:
		if b.now().Sub(b.lastTransition) < b.cfg.Cooldown {
			b.rejected++
			return ErrOpen
		}
		b.transition(StateHalfOpen)
		b.probeInFlight = true
		return nil

	case StateHalfOpen:
		if b.probeInFlight {
			b.rejected++
			return ErrOpen
		}
		b.probeInFlight = true
		return nil
	}

	return nil
}

// RecordSuccess reports a successful upstream call. In the closed state
// it resets the consecutive-failure counter; a successful probe closes
// the breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		b.probeInFlight = false
		b.failures = 0
		b.transition(StateClosed)
	}
}

// RecordFailure reports a failed upstream call. Reaching the threshold
// of consecutive failures while closed trips the breaker; a failed probe
// reopens it and restarts the cooldown clock.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.failures = 0
			b.tripped++
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		b.probeInFlight = false
		b.tripped++
		b.transition(StateOpen)
	}
}

// transition moves the FSM and stamps the change. Caller holds the lock.
func (b *Breaker) transition(next State) {
	prev := b.state
	b.state = next
	b.lastTransition = b.now()
	b.logger.Info("circuit breaker state changed",
		slog.String("from", prev.String()),
		slog.String("to", next.String()))
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Status is a read-only snapshot of the breaker.
type Status struct {
	State          State
	Failures       int
	Threshold      int
	LastTransition time.Time
	Rejected       int64
	Tripped        int64
}

// Snapshot returns the current breaker status for operational visibility.
func (b *Breaker) Snapshot() Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Status{
		State:          b.state,
		Failures:       b.failures,
		Threshold:      b.cfg.FailureThreshold,
		LastTransition: b.lastTransition,
		Rejected:       b.rejected,
		Tripped:        b.tripped,
	}
}
