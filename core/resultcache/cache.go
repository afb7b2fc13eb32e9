package resultcache

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

// Config holds the cache parameters.
type Config struct {
	// TTL is how long a completed result stays visible to lookups.
	TTL time.Duration `env:"RESULT_CACHE_TTL" envDefault:"10m"`
	// CleanupInterval is how often the optional background sweep reclaims
	// expired entries. Expiry itself is lazy; the sweep only frees memory.
	// Set to 0 to disable.
	CleanupInterval time.Duration `env:"RESULT_CACHE_CLEANUP_INTERVAL" envDefault:"5m"`
	// Logger receives internal events. Defaults to a discard logger.
	Logger *slog.Logger
	// Clock overrides the time source. Intended for tests; defaults to time.Now.
	Clock func() time.Time
}

// DefaultConfig returns the production defaults: 10 minute TTL with a
// 5 minute sweep.
func DefaultConfig() Config {
	return Config{
		TTL:             10 * time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

// Validate checks the configuration for usable values.
func (c Config) Validate() error {
	if c.TTL <= 0 {
		return fmt.Errorf("%w: ttl must be > 0, got %v", ErrInvalidConfig, c.TTL)
	}
	return nil
}

// Status describes the outcome of a LookupOrReserve call.
type Status int

const (
	// StatusHit means a completed, unexpired result was returned. This
	// covers both direct hits and waits that resolved to the owner's
	// successful result.
	StatusHit Status = iota
	// StatusReserved means the caller now owns the fingerprint and must
	// call Complete or Abandon exactly once.
	StatusReserved
	// StatusFailed means the caller waited on another request's in-flight
	// call and that call was abandoned. No entry remains; a fresh request
	// will reach upstream again.
	StatusFailed
)

// String returns the status name for logs.
func (s Status) String() string {
	switch s {
	case StatusHit:
		return "hit"
	case StatusReserved:
		return "reserved"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// entry is one fingerprint slot. While done is open the slot is an
// in-flight reservation; after done closes it is either a completed
// result (completed=true) or an abandoned marker observed only by
// waiters that already hold the pointer.
type entry[T any] struct {
	done      chan struct{}
	value     T
	completed bool
	expiresAt time.Time
}

// Cache maps request fingerprints to recently produced results and
// collapses concurrent identical requests into a single upstream call.
//
// For any fingerprint at most one reservation is outstanding at a time;
// every concurrent caller for the same fingerprint waits on that
// reservation and observes its result. A completed result is visible
// until the TTL elapses; an abandoned reservation leaves nothing behind.
type Cache[T any] struct {
	mu      sync.Mutex
	entries map[string]*entry[T]
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	// Observability metrics
	hits         atomic.Int64
	reservations atomic.Int64
	waits        atomic.Int64
	completions  atomic.Int64
	abandons     atomic.Int64
	swept        atomic.Int64
}

// New creates an empty cache.
func New[T any](cfg Config) (*Cache[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}

	return &Cache[T]{
		entries: make(map[string]*entry[T]),
		cfg:     cfg,
		logger:  logger,
		now:     now,
	}, nil
}

// LookupOrReserve resolves a fingerprint to one of three outcomes:
//
//   - StatusHit: a completed unexpired entry exists, or another caller's
//     in-flight call for the same fingerprint completed while we waited.
//     The value carries the stored result.
//   - StatusReserved: the fingerprint was free and now belongs to this
//     caller, which must settle it with Complete or Abandon.
//   - StatusFailed: the in-flight call we waited on was abandoned.
//
// Waiting is bounded by ctx: cancellation abandons only this caller's
// wait, never the owning call, and returns ctx.Err().
func (c *Cache[T]) LookupOrReserve(ctx context.Context, fingerprint string) (T, Status, error) {
	var zero T

	c.mu.Lock()
	e, ok := c.entries[fingerprint]
	if ok {
		select {
		case <-e.done:
			// Settled entry: either a live result or an expired leftover.
			if e.completed && c.now().Before(e.expiresAt) {
				value := e.value
				c.mu.Unlock()
				c.hits.Add(1)
				return value, StatusHit, nil
			}
			// Expired: fall through and take over the slot.
		default:
			// In flight: wait for the owner outside the lock.
			c.mu.Unlock()
			c.waits.Add(1)
			select {
			case <-e.done:
			case <-ctx.Done():
				return zero, StatusFailed, ctx.Err()
			}
			if e.completed {
				c.hits.Add(1)
				return e.value, StatusHit, nil
			}
			return zero, StatusFailed, nil
		}
	}

	reserved := &entry[T]{done: make(chan struct{})}
	c.entries[fingerprint] = reserved
	c.mu.Unlock()

	c.reservations.Add(1)
	return zero, StatusReserved, nil
}

// Complete settles a reservation with a successful result, makes it
// visible to lookups for the configured TTL, and releases every waiter
// with the same value. Calling it for a fingerprint that is not reserved
// returns ErrNotReserved.
func (c *Cache[T]) Complete(fingerprint string, value T) error {
	c.mu.Lock()
	e, ok := c.entries[fingerprint]
	if !ok || settled(e.done) {
		c.mu.Unlock()
		return ErrNotReserved
	}

	e.value = value
	e.completed = true
	e.expiresAt = c.now().Add(c.cfg.TTL)
	close(e.done)
	c.mu.Unlock()

	c.completions.Add(1)
	return nil
}

// Abandon settles a reservation after a failed operation. Every waiter
// is released with StatusFailed and the fingerprint slot is removed, so
// the next identical request goes back upstream instead of replaying the
// failure. Calling it for a fingerprint that is not reserved returns
// ErrNotReserved.
func (c *Cache[T]) Abandon(fingerprint string) error {
	c.mu.Lock()
	e, ok := c.entries[fingerprint]
	if !ok || settled(e.done) {
		c.mu.Unlock()
		return ErrNotReserved
	}

	delete(c.entries, fingerprint)
	close(e.done)
	c.mu.Unlock()

	c.abandons.Add(1)
	return nil
}

// settled reports whether an entry's done channel is closed.
func settled(done chan struct{}) bool {
	select {
	case <-done:
		return true
	default:
		return false
	}
}

// CleanExpired removes completed entries whose TTL elapsed and returns
// how many were reclaimed. In-flight reservations are never touched.
func (c *Cache[T]) CleanExpired() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if settled(e.done) && !now.Before(e.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	if removed > 0 {
		c.swept.Add(int64(removed))
	}
	return removed
}

// Start runs the periodic CleanExpired sweep. It blocks until ctx is
// cancelled; use Run for the errgroup pattern or call it in a goroutine.
func (c *Cache[T]) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return fmt.Errorf("result cache already started")
	}
	if c.cfg.CleanupInterval <= 0 {
		c.mu.Unlock()
		return fmt.Errorf("cleanup interval must be > 0, got %v", c.cfg.CleanupInterval)
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	c.logger.InfoContext(c.ctx, "result cache sweep started",
		slog.Duration("cleanup_interval", c.cfg.CleanupInterval),
		slog.Duration("ttl", c.cfg.TTL))

	ticker := time.NewTicker(c.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return c.ctx.Err()
		case <-ticker.C:
			if n := c.CleanExpired(); n > 0 {
				c.logger.Debug("expired results removed", slog.Int("count", n))
			}
		}
	}
}

// Stop cancels the background sweep started by Start.
func (c *Cache[T]) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Run provides errgroup compatibility for coordinated lifecycle management.
func (c *Cache[T]) Run(ctx context.Context) func() error {
	return func() error {
		err := c.Start(ctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	}
}

// Stats is a snapshot of cache-wide counters.
type Stats struct {
	Entries      int
	InFlight     int
	Hits         int64
	Reservations int64
	Waits        int64
	Completions  int64
	Abandons     int64
	Swept        int64
}

// Snapshot returns current cache statistics.
func (c *Cache[T]) Snapshot() Stats {
	c.mu.Lock()
	entries := len(c.entries)
	inFlight := 0
	for _, e := range c.entries {
		if !settled(e.done) {
			inFlight++
		}
	}
	c.mu.Unlock()

	return Stats{
		Entries:      entries,
		InFlight:     inFlight,
		Hits:         c.hits.Load(),
		Reservations: c.reservations.Load(),
		Waits:        c.waits.Load(),
		Completions:  c.completions.Load(),
		Abandons:     c.abandons.Load(),
		Swept:        c.swept.Load(),
	}
}
