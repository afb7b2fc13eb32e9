// Package breaker provides a process-wide three-state circuit breaker
// for a shared upstream dependency.
//
// The breaker starts closed. Consecutive failures trip it open; while
// open, calls are rejected instantly with ErrOpen. After the cooldown
// the next call becomes a single half-open probe: its success closes the
// breaker, its failure reopens it and restarts the cooldown. Callers
// arriving while the probe is outstanding are rejected as if open.
//
//	b, err := breaker.New(breaker.DefaultConfig())
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	if err := b.Allow(); err != nil {
//		return err // breaker.ErrOpen: do not call upstream
//	}
//	result, err := callUpstream(ctx)
//	if err != nil {
//		b.RecordFailure()
//		return err
//	}
//	b.RecordSuccess()
//
// Every Allow that returns nil must be paired with exactly one
// RecordSuccess or RecordFailure, otherwise a half-open probe never
// resolves. Only failures that indicate upstream malfunction should be
// recorded; caller errors say nothing about upstream health.
package breaker
