// Package retry provides a bounded-attempt executor with exponential
// backoff, guarded by a circuit breaker.
//
// Failures are classified up front into retryable upstream malfunction
// and caller errors. Only the former are retried and reported to the
// breaker; caller errors propagate immediately because no retry can fix
// a malformed request.
//
//	guard, _ := breaker.New(breaker.DefaultConfig())
//	ex, err := retry.New(retry.DefaultConfig(), guard, classify)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := retry.Do(ctx, ex, func(ctx context.Context) (string, error) {
//		return provider.Complete(ctx, prompt)
//	})
//	switch {
//	case errors.Is(err, breaker.ErrOpen):
//		// rejected without touching upstream
//	case errors.Is(err, retry.ErrExhausted):
//		// transient failure survived every attempt
//	}
//
// The backoff schedule doubles from BaseDelay up to MaxDelay with
// jitter, and sleeping respects context cancellation.
package retry
