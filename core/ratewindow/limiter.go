package ratewindow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Config holds the rate limiting parameters.
type Config struct {
	// Limit is the maximum number of admissions inside the trailing window.
	Limit int `env:"RATE_LIMIT_REQUESTS" envDefault:"10"`
	// Window is the trailing interval admissions are counted over.
	Window time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"60s"`
}

// DefaultConfig returns the production defaults: 10 admissions per rolling minute.
func DefaultConfig() Config {
	return Config{
		Limit:  10,
		Window: 60 * time.Second,
	}
}

// Validate checks the configuration for usable values.
func (c Config) Validate() error {
	if c.Limit <= 0 {
		return fmt.Errorf("%w: limit must be > 0, got %d", ErrInvalidConfig, c.Limit)
	}
	if c.Window <= 0 {
		return fmt.Errorf("%w: window must be > 0, got %v", ErrInvalidConfig, c.Window)
	}
	return nil
}

// window keeps the recent admission timestamps for one user.
type window struct {
	admissions []time.Time
	lastAccess time.Time
}

// Limiter admits at most Limit operations per user inside a true sliding
// window. Timestamps outside the trailing interval are pruned lazily on
// each check, so bursts cannot double across window edges the way they
// can with fixed buckets.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	cfg     Config

	cleanupInterval time.Duration
	logger          *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// Observability metrics
	admitted atomic.Int64
	denied   atomic.Int64
	swept    atomic.Int64

	now func() time.Time // swappable for tests
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithCleanupInterval sets how often idle windows are swept from memory.
// Set to 0 to disable the background sweep; pruning still happens lazily.
func WithCleanupInterval(interval time.Duration) Option {
	return func(l *Limiter) {
		l.cleanupInterval = interval
	}
}

// WithLogger sets the logger for internal operations.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// New creates a sliding-window limiter.
func New(cfg Config, opts ...Option) (*Limiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l := &Limiter{
		windows:         make(map[string]*window),
		cfg:             cfg,
		cleanupInterval: 5 * time.Minute,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:             time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l, nil
}

// TryAdmit records an admission for userID and returns true iff fewer
// than the configured limit of admissions fall inside the trailing
// window. A denied call leaves no trace: it does not consume window
// capacity. Safe for concurrent use across users and for racing calls
// on the same user.
func (l *Limiter) TryAdmit(userID string) bool {
	now := l.now()
	cutoff := now.Add(-l.cfg.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[userID]
	if !ok {
		w = &window{}
		l.windows[userID] = w
	}
	w.lastAccess = now

	// Prune expired timestamps in place. The slice is ordered oldest
	// first, so scanning from the front is enough.
	keep := 0
	for keep < len(w.admissions) && !w.admissions[keep].After(cutoff) {
		keep++
	}
	if keep > 0 {
		w.admissions = w.admissions[keep:]
	}

	if len(w.admissions) >= l.cfg.Limit {
		l.denied.Add(1)
		return false
	}

	w.admissions = append(w.admissions, now)
	l.admitted.Add(1)
	return true
}

// Remaining reports how many admissions the user has left in the current
// window without consuming one.
func (l *Limiter) Remaining(userID string) int {
	cutoff := l.now().Add(-l.cfg.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[userID]
	if !ok {
		return l.cfg.Limit
	}

	active := 0
	for _, ts := range w.admissions {
		if ts.After(cutoff) {
			active++
		}
	}
	if active >= l.cfg.Limit {
		return 0
	}
	return l.cfg.Limit - active
}

// Start runs the background sweep that drops windows idle for longer
// than the configured window. It blocks until ctx is cancelled; use
// Run for the errgroup pattern or call it in a goroutine.
func (l *Limiter) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.cancel != nil {
		l.mu.Unlock()
		return fmt.Errorf("rate limiter already started")
	}
	if l.cleanupInterval <= 0 {
		l.mu.Unlock()
		return fmt.Errorf("cleanup interval must be > 0, got %v", l.cleanupInterval)
	}
	l.ctx, l.cancel = context.WithCancel(ctx)
	l.mu.Unlock()

	l.logger.InfoContext(l.ctx, "rate limiter sweep started",
		slog.Duration("cleanup_interval", l.cleanupInterval))

	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.ctx.Done():
			return l.ctx.Err()
		case <-ticker.C:
			l.removeIdle()
		}
	}
}

// Stop cancels the background sweep started by Start.
func (l *Limiter) Stop() {
	l.mu.Lock()
	cancel := l.cancel
	l.cancel = nil
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Run provides errgroup compatibility for coordinated lifecycle management.
func (l *Limiter) Run(ctx context.Context) func() error {
	return func() error {
		err := l.Start(ctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	}
}

// removeIdle drops windows whose newest activity is older than one full
// window interval. Such windows cannot influence any future decision.
func (l *Limiter) removeIdle() {
	cutoff := l.now().Add(-l.cfg.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, w := range l.windows {
		if w.lastAccess.Before(cutoff) {
			delete(l.windows, key)
			removed++
		}
	}
	if removed > 0 {
		l.swept.Add(int64(removed))
		l.logger.Debug("idle rate windows removed", slog.Int("count", removed))
	}
}

// Stats is a snapshot of limiter-wide counters.
type Stats struct {
	ActiveWindows int
	Admitted      int64
	Denied        int64
	Swept         int64
}

// Snapshot returns current limiter statistics.
func (l *Limiter) Snapshot() Stats {
	l.mu.Lock()
	active := len(l.windows)
	l.mu.Unlock()

	return Stats{
		ActiveWindows: active,
		Admitted:      l.admitted.Load(),
		Denied:        l.denied.Load(),
		Swept:         l.swept.Load(),
	}
}
