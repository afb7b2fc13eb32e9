// Package resultcache provides a short-TTL result cache with
// single-flight collapsing of concurrent identical requests.
//
// The cache is keyed by request fingerprints. A lookup has three
// possible outcomes: a hit on a completed unexpired result, a
// reservation that makes the caller responsible for producing the
// result, or a wait on a reservation some other caller already owns.
// For any fingerprint at most one underlying operation runs at a time;
// every concurrent identical request shares its outcome.
//
//	cache, err := resultcache.New[string](resultcache.DefaultConfig())
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	value, status, err := cache.LookupOrReserve(ctx, fp)
//	switch status {
//	case resultcache.StatusHit:
//		return value // free, no upstream call
//	case resultcache.StatusReserved:
//		result, err := callUpstream(ctx)
//		if err != nil {
//			cache.Abandon(fp) // waiters fail, nothing is stored
//			return err
//		}
//		cache.Complete(fp, result) // waiters get result, entry lives for TTL
//	case resultcache.StatusFailed:
//		// the flight we piggybacked on was abandoned
//	}
//
// Results are visible only after the operation completed successfully;
// a failed operation leaves no residual entry, so the next identical
// request reaches upstream again instead of replaying the failure.
//
// Expiry is lazy: expired entries are treated as misses on lookup. The
// optional Start/Stop sweep only reclaims memory and is not required
// for correctness.
package resultcache
