package admission_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easygocv/admission"
	"github.com/easygocv/admission/core/breaker"
	"github.com/easygocv/admission/core/ledger"
	"github.com/easygocv/admission/core/ratewindow"
	"github.com/easygocv/admission/core/resultcache"
	"github.com/easygocv/admission/core/retry"
	"github.com/easygocv/admission/pkg/fingerprint"
)

type fixture struct {
	pipeline *admission.Pipeline[string]
	ledger   *ledger.Ledger
	limiter  *ratewindow.Limiter
	cache    *resultcache.Cache[string]
	executor *retry.Executor
	breaker  *breaker.Breaker
}

type fixtureConfig struct {
	startingGrant    int
	rateLimit        int
	failureThreshold int
	maxAttempts      int
	classify         retry.Classifier
}

func newFixture(t *testing.T, fc fixtureConfig) *fixture {
	t.Helper()

	if fc.startingGrant == 0 {
		fc.startingGrant = 5
	}
	if fc.rateLimit == 0 {
		fc.rateLimit = 100
	}
	if fc.failureThreshold == 0 {
		fc.failureThreshold = 5
	}
	if fc.maxAttempts == 0 {
		fc.maxAttempts = 3
	}

	tokens := ledger.New(ledger.WithStartingGrant(fc.startingGrant))

	limiter, err := ratewindow.New(ratewindow.Config{
		Limit:  fc.rateLimit,
		Window: time.Minute,
	})
	require.NoError(t, err)

	cache, err := resultcache.New[string](resultcache.DefaultConfig())
	require.NoError(t, err)

	guard, err := breaker.New(breaker.Config{
		FailureThreshold: fc.failureThreshold,
		Cooldown:         time.Minute,
	})
	require.NoError(t, err)

	executor, err := retry.New(retry.Config{
		MaxAttempts: fc.maxAttempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    10 * time.Millisecond,
	}, guard, fc.classify, retry.WithSleep(func(context.Context, time.Duration) error {
		return nil
	}))
	require.NoError(t, err)

	pipeline, err := admission.New(admission.DefaultConfig(), admission.Components[string]{
		Ledger:   tokens,
		Limiter:  limiter,
		Cache:    cache,
		Executor: executor,
		Breaker:  guard,
	})
	require.NoError(t, err)

	return &fixture{
		pipeline: pipeline,
		ledger:   tokens,
		limiter:  limiter,
		cache:    cache,
		executor: executor,
		breaker:  guard,
	}
}

func mustFingerprint(t *testing.T, operation, userID string, payload any) string {
	t.Helper()
	fp, err := fingerprint.Request(operation, payload, fingerprint.WithUser(userID))
	require.NoError(t, err)
	return fp
}

func staticThunk(result string) admission.Thunk[string] {
	return func(context.Context) (string, error) {
		return result, nil
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("rejects missing components", func(t *testing.T) {
		t.Parallel()

		full := newFixture(t, fixtureConfig{})

		cases := []struct {
			name string
			c    admission.Components[string]
		}{
			{"no ledger", admission.Components[string]{Limiter: full.limiter, Cache: full.cache, Executor: full.executor, Breaker: full.breaker}},
			{"no limiter", admission.Components[string]{Ledger: full.ledger, Cache: full.cache, Executor: full.executor, Breaker: full.breaker}},
			{"no cache", admission.Components[string]{Ledger: full.ledger, Limiter: full.limiter, Executor: full.executor, Breaker: full.breaker}},
			{"no executor", admission.Components[string]{Ledger: full.ledger, Limiter: full.limiter, Cache: full.cache, Breaker: full.breaker}},
			{"no breaker", admission.Components[string]{Ledger: full.ledger, Limiter: full.limiter, Cache: full.cache, Executor: full.executor}},
		}
		for _, tc := range cases {
			_, err := admission.New(admission.DefaultConfig(), tc.c)
			assert.ErrorIs(t, err, admission.ErrMissingComponent, tc.name)
		}
	})

	t.Run("rejects invalid config", func(t *testing.T) {
		t.Parallel()

		_, err := admission.New(admission.Config{DefaultCost: -1}, admission.Components[string]{})
		require.ErrorIs(t, err, admission.ErrInvalidConfig)
	})
}

func TestPipelineAdmit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("rejects malformed requests", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, fixtureConfig{})
		fp := mustFingerprint(t, "optimize", "u1", "payload")

		_, err := f.pipeline.Admit(ctx, admission.Request[string]{
			Operation: "optimize", Fingerprint: fp, Thunk: staticThunk("x"),
		})
		assert.ErrorIs(t, err, admission.ErrInvalidRequest, "missing user")

		_, err = f.pipeline.Admit(ctx, admission.Request[string]{
			UserID: "u1", Operation: "optimize", Fingerprint: fp,
		})
		assert.ErrorIs(t, err, admission.ErrInvalidRequest, "missing thunk")

		_, err = f.pipeline.Admit(ctx, admission.Request[string]{
			UserID: "u1", Operation: "optimize", Fingerprint: "not-a-fingerprint", Thunk: staticThunk("x"),
		})
		assert.ErrorIs(t, err, admission.ErrInvalidRequest, "malformed fingerprint")
	})

	t.Run("admits and charges", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, fixtureConfig{})

		outcome, err := f.pipeline.Admit(ctx, admission.Request[string]{
			UserID:      "u1",
			Operation:   "optimize",
			Fingerprint: mustFingerprint(t, "optimize", "u1", "resume"),
			Thunk:       staticThunk("improved resume"),
		})
		require.NoError(t, err)

		assert.Equal(t, admission.DecisionAdmitted, outcome.Decision)
		assert.Equal(t, "improved resume", outcome.Result)
		assert.Equal(t, 2, outcome.Cost)
		assert.Equal(t, 3, outcome.Balance)
		assert.True(t, outcome.Granted())
		assert.False(t, outcome.Denied())
	})

	t.Run("serves repeats from cache without charging", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, fixtureConfig{})
		fp := mustFingerprint(t, "optimize", "u1", "resume")

		var calls int
		req := admission.Request[string]{
			UserID:      "u1",
			Operation:   "optimize",
			Fingerprint: fp,
			Thunk: func(context.Context) (string, error) {
				calls++
				return "improved resume", nil
			},
		}

		first, err := f.pipeline.Admit(ctx, req)
		require.NoError(t, err)
		require.Equal(t, admission.DecisionAdmitted, first.Decision)

		second, err := f.pipeline.Admit(ctx, req)
		require.NoError(t, err)

		assert.Equal(t, admission.DecisionCacheHit, second.Decision)
		assert.Equal(t, "improved resume", second.Result)
		assert.Equal(t, 0, second.Cost, "hits are free")
		assert.Equal(t, first.Balance, second.Balance, "hits do not touch the ledger")
		assert.Equal(t, 1, calls, "upstream called once")
	})

	t.Run("cache hits bypass the rate limit", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, fixtureConfig{rateLimit: 1})
		req := admission.Request[string]{
			UserID:      "u1",
			Operation:   "suggestions",
			Fingerprint: mustFingerprint(t, "suggestions", "u1", "q"),
			Thunk:       staticThunk("answer"),
		}

		first, err := f.pipeline.Admit(ctx, req)
		require.NoError(t, err)
		require.Equal(t, admission.DecisionAdmitted, first.Decision)

		// The single rate slot is spent, but identical repeats still land.
		for range 3 {
			outcome, err := f.pipeline.Admit(ctx, req)
			require.NoError(t, err)
			assert.Equal(t, admission.DecisionCacheHit, outcome.Decision)
		}
	})

	t.Run("denies over rate limit without side effects", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, fixtureConfig{rateLimit: 1})

		first, err := f.pipeline.Admit(ctx, admission.Request[string]{
			UserID:      "u1",
			Operation:   "suggestions",
			Fingerprint: mustFingerprint(t, "suggestions", "u1", "q1"),
			Thunk:       staticThunk("a1"),
		})
		require.NoError(t, err)
		require.Equal(t, admission.DecisionAdmitted, first.Decision)

		var calls int
		denied, err := f.pipeline.Admit(ctx, admission.Request[string]{
			UserID:      "u1",
			Operation:   "suggestions",
			Fingerprint: mustFingerprint(t, "suggestions", "u1", "q2"),
			Thunk: func(context.Context) (string, error) {
				calls++
				return "a2", nil
			},
		})
		require.NoError(t, err)

		assert.Equal(t, admission.DecisionDeniedRateLimit, denied.Decision)
		assert.True(t, denied.Denied())
		assert.Equal(t, first.Balance, denied.Balance, "denial does not charge")
		assert.Zero(t, calls, "denial does not call upstream")
		assert.Zero(t, f.cache.Snapshot().InFlight, "denial releases the reservation")
	})

	t.Run("denies on insufficient balance", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, fixtureConfig{startingGrant: 1})

		var calls int
		outcome, err := f.pipeline.Admit(ctx, admission.Request[string]{
			UserID:      "u1",
			Operation:   "generate",
			Fingerprint: mustFingerprint(t, "generate", "u1", "doc"),
			Thunk: func(context.Context) (string, error) {
				calls++
				return "doc", nil
			},
		})
		require.NoError(t, err)

		assert.Equal(t, admission.DecisionDeniedInsufficientBalance, outcome.Decision)
		assert.Equal(t, 1, outcome.Balance, "balance untouched")
		assert.Zero(t, calls)
		assert.Zero(t, f.cache.Snapshot().InFlight)
	})

	t.Run("refunds in full on upstream failure", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, fixtureConfig{maxAttempts: 2})

		upstreamErr := errors.New("service unavailable")
		var calls int
		outcome, err := f.pipeline.Admit(ctx, admission.Request[string]{
			UserID:      "u1",
			Operation:   "optimize",
			Fingerprint: mustFingerprint(t, "optimize", "u1", "resume"),
			Thunk: func(context.Context) (string, error) {
				calls++
				return "", upstreamErr
			},
		})
		require.NoError(t, err)

		assert.Equal(t, admission.DecisionUpstreamFailed, outcome.Decision)
		assert.ErrorIs(t, outcome.Err, retry.ErrExhausted)
		assert.ErrorIs(t, outcome.Err, upstreamErr)
		assert.Equal(t, 5, outcome.Balance, "failed call is free")
		assert.Equal(t, 2, calls, "retried to the attempt budget")
		assert.Zero(t, f.cache.Snapshot().InFlight)
	})

	t.Run("caller errors are not retried", func(t *testing.T) {
		t.Parallel()

		badInput := errors.New("invalid prompt")
		f := newFixture(t, fixtureConfig{classify: func(err error) retry.Class {
			if errors.Is(err, badInput) {
				return retry.ClassCallerError
			}
			return retry.ClassRetryableUpstream
		}})

		var calls int
		outcome, err := f.pipeline.Admit(ctx, admission.Request[string]{
			UserID:      "u1",
			Operation:   "optimize",
			Fingerprint: mustFingerprint(t, "optimize", "u1", "resume"),
			Thunk: func(context.Context) (string, error) {
				calls++
				return "", badInput
			},
		})
		require.NoError(t, err)

		assert.Equal(t, admission.DecisionUpstreamFailed, outcome.Decision)
		assert.ErrorIs(t, outcome.Err, badInput)
		assert.NotErrorIs(t, outcome.Err, retry.ErrExhausted)
		assert.Equal(t, 1, calls)
		assert.Equal(t, 5, outcome.Balance, "refunded")
		assert.Equal(t, breaker.StateClosed, f.breaker.State())
	})

	t.Run("denies while circuit is open", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, fixtureConfig{failureThreshold: 1})
		f.breaker.RecordFailure()
		require.Equal(t, breaker.StateOpen, f.breaker.State())

		var calls int
		outcome, err := f.pipeline.Admit(ctx, admission.Request[string]{
			UserID:      "u1",
			Operation:   "optimize",
			Fingerprint: mustFingerprint(t, "optimize", "u1", "resume"),
			Thunk: func(context.Context) (string, error) {
				calls++
				return "x", nil
			},
		})
		require.NoError(t, err)

		assert.Equal(t, admission.DecisionDeniedCircuitOpen, outcome.Decision)
		assert.NoError(t, outcome.Err)
		assert.Zero(t, calls, "open circuit skips upstream")
		assert.Equal(t, 5, outcome.Balance, "refunded")
		assert.Zero(t, f.cache.Snapshot().InFlight)
	})

	t.Run("unknown operations use the default cost", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, fixtureConfig{})
		outcome, err := f.pipeline.Admit(ctx, admission.Request[string]{
			UserID:      "u1",
			Operation:   "translate",
			Fingerprint: mustFingerprint(t, "translate", "u1", "doc"),
			Thunk:       staticThunk("done"),
		})
		require.NoError(t, err)

		assert.Equal(t, admission.DecisionAdmitted, outcome.Decision)
		assert.Equal(t, 1, outcome.Cost)
		assert.Equal(t, 4, outcome.Balance)
	})
}

func TestPipelineStatus(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t, fixtureConfig{})

	for _, user := range []string{"u1", "u2"} {
		outcome, err := f.pipeline.Admit(ctx, admission.Request[string]{
			UserID:      user,
			Operation:   "suggestions",
			Fingerprint: mustFingerprint(t, "suggestions", user, "q"),
			Thunk:       staticThunk("a"),
		})
		require.NoError(t, err)
		require.Equal(t, admission.DecisionAdmitted, outcome.Decision)
	}

	status := f.pipeline.Status()
	assert.Equal(t, 2, status.Ledger.ActiveUsers)
	assert.Equal(t, int64(2), status.Ledger.DebitsGranted)
	assert.Equal(t, 2, status.Cache.Entries)
	assert.Zero(t, status.Cache.InFlight)
	assert.Equal(t, breaker.StateClosed, status.Breaker.State)
}

// TestPipelineDepletion walks one user through their full token grant:
// two successful calls at cost 2, a free cache hit in between, and a
// final denial once the balance cannot cover another call.
func TestPipelineDepletion(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t, fixtureConfig{})
	const user = "u1"

	optimize := admission.Request[string]{
		UserID:      user,
		Operation:   "optimize",
		Fingerprint: mustFingerprint(t, "optimize", user, "resume v1"),
		Thunk:       staticThunk("optimized"),
	}

	first, err := f.pipeline.Admit(ctx, optimize)
	require.NoError(t, err)
	require.Equal(t, admission.DecisionAdmitted, first.Decision)
	require.Equal(t, 3, first.Balance)

	repeat, err := f.pipeline.Admit(ctx, optimize)
	require.NoError(t, err)
	require.Equal(t, admission.DecisionCacheHit, repeat.Decision)
	require.Equal(t, 3, repeat.Balance, "cache hit is free")

	generate, err := f.pipeline.Admit(ctx, admission.Request[string]{
		UserID:      user,
		Operation:   "generate",
		Fingerprint: mustFingerprint(t, "generate", user, "cover letter"),
		Thunk:       staticThunk("generated"),
	})
	require.NoError(t, err)
	require.Equal(t, admission.DecisionAdmitted, generate.Decision)
	require.Equal(t, 1, generate.Balance)

	broke, err := f.pipeline.Admit(ctx, admission.Request[string]{
		UserID:      user,
		Operation:   "optimize",
		Fingerprint: mustFingerprint(t, "optimize", user, "resume v2"),
		Thunk:       staticThunk("never"),
	})
	require.NoError(t, err)
	require.Equal(t, admission.DecisionDeniedInsufficientBalance, broke.Decision)
	require.Equal(t, 1, broke.Balance)
}

func TestPipelineSingleFlight(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("identical concurrent requests collapse to one call", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, fixtureConfig{})
		fp := mustFingerprint(t, "optimize", "u1", "resume")

		const waiters = 10
		release := make(chan struct{})
		var calls int

		var wg sync.WaitGroup
		outcomes := make([]admission.Outcome[string], waiters)
		errs := make([]error, waiters)

		var ownerOutcome admission.Outcome[string]
		var ownerErr error
		ownerDone := make(chan struct{})
		go func() {
			defer close(ownerDone)
			ownerOutcome, ownerErr = f.pipeline.Admit(ctx, admission.Request[string]{
				UserID:      "u1",
				Operation:   "optimize",
				Fingerprint: fp,
				Thunk: func(context.Context) (string, error) {
					calls++
					<-release
					return "shared", nil
				},
			})
		}()

		// Wait until the rest are parked on the owner's flight before
		// letting it finish.
		require.Eventually(t, func() bool {
			return f.cache.Snapshot().InFlight == 1
		}, time.Second, time.Millisecond)

		for i := range waiters {
			wg.Add(1)
			go func() {
				defer wg.Done()
				outcomes[i], errs[i] = f.pipeline.Admit(ctx, admission.Request[string]{
					UserID:      "u1",
					Operation:   "optimize",
					Fingerprint: fp,
					Thunk:       staticThunk("should not run"),
				})
			}()
		}

		require.Eventually(t, func() bool {
			return f.cache.Snapshot().Waits == int64(waiters)
		}, time.Second, time.Millisecond)
		close(release)
		wg.Wait()
		<-ownerDone

		require.NoError(t, ownerErr)
		assert.Equal(t, admission.DecisionAdmitted, ownerOutcome.Decision)
		for i := range waiters {
			require.NoError(t, errs[i])
			assert.Equal(t, admission.DecisionCacheHit, outcomes[i].Decision)
			assert.Equal(t, "shared", outcomes[i].Result)
		}
		assert.Equal(t, 1, calls, "one upstream call for the whole group")
		assert.Equal(t, 3, f.ledger.Balance("u1"), "one debit for the whole group")
	})

	t.Run("waiters see the owner's failure", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, fixtureConfig{maxAttempts: 1})
		fp := mustFingerprint(t, "optimize", "u1", "resume")

		release := make(chan struct{})
		ownerDone := make(chan struct{})
		go func() {
			defer close(ownerDone)
			_, _ = f.pipeline.Admit(ctx, admission.Request[string]{
				UserID:      "u1",
				Operation:   "optimize",
				Fingerprint: fp,
				Thunk: func(context.Context) (string, error) {
					<-release
					return "", errors.New("service unavailable")
				},
			})
		}()

		require.Eventually(t, func() bool {
			return f.cache.Snapshot().InFlight == 1
		}, time.Second, time.Millisecond)

		waiterDone := make(chan struct{})
		var outcome admission.Outcome[string]
		var waitErr error
		go func() {
			defer close(waiterDone)
			outcome, waitErr = f.pipeline.Admit(ctx, admission.Request[string]{
				UserID:      "u1",
				Operation:   "optimize",
				Fingerprint: fp,
				Thunk:       staticThunk("should not run"),
			})
		}()

		require.Eventually(t, func() bool {
			return f.cache.Snapshot().Waits == 1
		}, time.Second, time.Millisecond)
		close(release)
		<-ownerDone
		<-waiterDone

		require.NoError(t, waitErr)
		assert.Equal(t, admission.DecisionUpstreamFailed, outcome.Decision)
		assert.ErrorIs(t, outcome.Err, admission.ErrSharedFlightFailed)
	})
}
