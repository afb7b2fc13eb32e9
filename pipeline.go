package admission

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/easygocv/admission/core/breaker"
	"github.com/easygocv/admission/core/ledger"
	"github.com/easygocv/admission/core/logger"
	"github.com/easygocv/admission/core/ratewindow"
	"github.com/easygocv/admission/core/resultcache"
	"github.com/easygocv/admission/core/retry"
	"github.com/easygocv/admission/pkg/fingerprint"
)

// Thunk is the caller-supplied upstream call. It must be safe to invoke
// at most once per admission and is expected to classify its failures
// for the retry executor.
type Thunk[T any] func(ctx context.Context) (T, error)

// Request describes one chargeable operation entering the pipeline.
// UserID must already be authenticated and Fingerprint already
// normalized by the calling layer.
type Request[T any] struct {
	UserID      string
	Operation   string
	Fingerprint string
	Thunk       Thunk[T]
}

// Components are the shared instances the pipeline sequences. Each one
// owns its slice of state exclusively; the pipeline holds no state of
// its own beyond counters, so all cross-cutting consistency lives
// inside the components.
type Components[T any] struct {
	Ledger   *ledger.Ledger
	Limiter  *ratewindow.Limiter
	Cache    *resultcache.Cache[T]
	Executor *retry.Executor
	Breaker  *breaker.Breaker
}

// Pipeline is the admission path every chargeable operation passes
// through: cache lookup, rate check, balance check, guarded upstream
// call, debit, cache store.
type Pipeline[T any] struct {
	cfg    Config
	c      Components[T]
	logger *slog.Logger
}

// Option configures a Pipeline.
type Option[T any] func(*Pipeline[T])

// WithLogger sets the logger used for admission records. Defaults to a
// no-op logger.
func WithLogger[T any](log *slog.Logger) Option[T] {
	return func(p *Pipeline[T]) {
		if log != nil {
			p.logger = log
		}
	}
}

// New creates a pipeline over the given components. Every component is
// required; tests substitute fresh instances rather than nils.
func New[T any](cfg Config, c Components[T], opts ...Option[T]) (*Pipeline[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch {
	case c.Ledger == nil:
		return nil, fmt.Errorf("%w: ledger", ErrMissingComponent)
	case c.Limiter == nil:
		return nil, fmt.Errorf("%w: rate limiter", ErrMissingComponent)
	case c.Cache == nil:
		return nil, fmt.Errorf("%w: result cache", ErrMissingComponent)
	case c.Executor == nil:
		return nil, fmt.Errorf("%w: retry executor", ErrMissingComponent)
	case c.Breaker == nil:
		return nil, fmt.Errorf("%w: circuit breaker", ErrMissingComponent)
	}
	p := &Pipeline[T]{
		cfg:    cfg,
		c:      c,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Admit runs one chargeable operation through the pipeline and returns
// its outcome. Denials and upstream failures are data in the Outcome;
// the error return is reserved for caller bugs (ErrInvalidRequest) and
// context cancellation while waiting on a shared flight.
//
// Ordering is deliberate: the cache comes first so repeated identical
// requests are free and unlimited; the rate check precedes billing so
// abusive traffic cannot drain its own budget; the debit precedes the
// upstream call so concurrent distinct requests cannot race past the
// balance.
func (p *Pipeline[T]) Admit(ctx context.Context, req Request[T]) (Outcome[T], error) {
	var zero Outcome[T]

	if req.UserID == "" || req.Thunk == nil || !fingerprint.Valid(req.Fingerprint) {
		return zero, ErrInvalidRequest
	}

	start := time.Now()
	admissionID := uuid.NewString()
	log := p.logger.With(
		logger.AdmissionID(admissionID),
		logger.UserID(req.UserID),
		logger.Operation(req.Operation),
		logger.Fingerprint(req.Fingerprint))

	value, status, err := p.c.Cache.LookupOrReserve(ctx, req.Fingerprint)
	if err != nil {
		// Cancelled while waiting on another caller's flight. The owning
		// call is unaffected and will still resolve its other waiters.
		return zero, err
	}

	switch status {
	case resultcache.StatusHit:
		outcome := Outcome[T]{
			Decision: DecisionCacheHit,
			Result:   value,
			Balance:  p.c.Ledger.Balance(req.UserID),
		}
		p.observe(log, start, outcome)
		return outcome, nil

	case resultcache.StatusFailed:
		outcome := Outcome[T]{
			Decision: DecisionUpstreamFailed,
			Err:      ErrSharedFlightFailed,
			Balance:  p.c.Ledger.Balance(req.UserID),
		}
		p.observe(log, start, outcome)
		return outcome, nil
	}

	// This caller owns the reservation and must settle it on every path
	// below.

	if !p.c.Limiter.TryAdmit(req.UserID) {
		_ = p.c.Cache.Abandon(req.Fingerprint)
		outcome := Outcome[T]{
			Decision: DecisionDeniedRateLimit,
			Balance:  p.c.Ledger.Balance(req.UserID),
		}
		p.observe(log, start, outcome)
		return outcome, nil
	}

	cost := p.cfg.CostFor(req.Operation)
	if !p.c.Ledger.TryDebit(req.UserID, cost) {
		_ = p.c.Cache.Abandon(req.Fingerprint)
		outcome := Outcome[T]{
			Decision: DecisionDeniedInsufficientBalance,
			Balance:  p.c.Ledger.Balance(req.UserID),
		}
		p.observe(log, start, outcome)
		return outcome, nil
	}

	result, err := retry.Do(ctx, p.c.Executor, req.Thunk)
	if err != nil {
		// The debit is the concurrency gate, so it happens before the
		// call; any failure past it refunds in full.
		p.c.Ledger.Credit(req.UserID, cost)
		_ = p.c.Cache.Abandon(req.Fingerprint)

		decision := DecisionUpstreamFailed
		if errors.Is(err, breaker.ErrOpen) {
			decision = DecisionDeniedCircuitOpen
			err = nil
		}
		outcome := Outcome[T]{
			Decision: decision,
			Err:      err,
			Balance:  p.c.Ledger.Balance(req.UserID),
		}
		p.observe(log, start, outcome)
		return outcome, nil
	}

	if err := p.c.Cache.Complete(req.Fingerprint, result); err != nil {
		// The reservation is exclusively ours; a settle failure here is
		// a programming error worth surfacing in logs, not to users.
		log.Error("failed to settle cache reservation", logger.Error(err))
	}

	outcome := Outcome[T]{
		Decision: DecisionAdmitted,
		Result:   result,
		Cost:     cost,
		Balance:  p.c.Ledger.Balance(req.UserID),
	}
	p.observe(log, start, outcome)
	return outcome, nil
}

// observe logs one settled admission.
func (p *Pipeline[T]) observe(log *slog.Logger, start time.Time, o Outcome[T]) {
	log.Info("admission settled",
		logger.Outcome(o.Decision.String()),
		logger.Cost(o.Cost),
		logger.Balance(o.Balance),
		logger.Elapsed(start),
		logger.Error(o.Err))
}

// Status is an advisory snapshot of the pipeline's components for
// operational visibility. It is not part of the admission contract.
type Status struct {
	Ledger      ledger.SystemStats
	RateLimiter ratewindow.Stats
	Cache       resultcache.Stats
	Breaker     breaker.Status
}

// Status returns aggregate counts across the pipeline's components.
func (p *Pipeline[T]) Status() Status {
	return Status{
		Ledger:      p.c.Ledger.SystemSnapshot(),
		RateLimiter: p.c.Limiter.Snapshot(),
		Cache:       p.c.Cache.Snapshot(),
		Breaker:     p.c.Breaker.Snapshot(),
	}
}
