// Package admission sequences every chargeable request through the
// protective components that sit between clients and a rate-limited
// upstream completion provider: result cache, per-user rate limiter,
// token ledger, circuit breaker, and retry executor.
//
// The pipeline owns the ordering and refund semantics; each component
// owns its own state and synchronization. A request flows as:
//
//  1. Result cache lookup. A hit is free and does not consume rate or
//     token budget. A miss atomically reserves the fingerprint, so
//     concurrent identical requests collapse onto one upstream call.
//  2. Rate limiter check over a sliding window. Denials have no side
//     effects.
//  3. Token ledger debit for the operation's cost. The debit happens
//     before the upstream call so concurrent requests cannot overdraw
//     the balance; any later failure refunds in full.
//  4. Upstream call through the retry executor, which backs off on
//     retryable failures and feeds the circuit breaker.
//  5. On success the result is published to the cache and released to
//     every waiting caller.
//
// Usage:
//
//	tokens := ledger.New()
//	limiter, _ := ratewindow.New(ratewindow.DefaultConfig())
//	cache, _ := resultcache.New[completion.Result](resultcache.DefaultConfig())
//	guard, _ := breaker.New(breaker.DefaultConfig())
//	executor, _ := retry.New(retry.DefaultConfig(), guard, completion.ClassifyOpenAI)
//
//	pipeline, _ := admission.New(admission.DefaultConfig(), admission.Components[completion.Result]{
//		Ledger:   tokens,
//		Limiter:  limiter,
//		Cache:    cache,
//		Executor: executor,
//		Breaker:  guard,
//	})
//
//	fp, _ := fingerprint.Request("optimize", payload, fingerprint.WithUser(userID))
//	outcome, err := pipeline.Admit(ctx, admission.Request[completion.Result]{
//		UserID:      userID,
//		Operation:   "optimize",
//		Fingerprint: fp,
//		Thunk:       completion.Bind(completer, completionReq),
//	})
//	if err != nil {
//		return err // caller bug or context cancellation
//	}
//	if outcome.Denied() {
//		// outcome.Decision says why; outcome.Balance is current
//	}
//
// All components are safe for concurrent use. The pipeline holds no
// locks across the upstream call, so slow completions never block
// unrelated admissions.
package admission
