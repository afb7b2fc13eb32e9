// Package ratewindow provides per-user sliding-window rate limiting.
//
// Each user owns an ordered list of recent admission timestamps. A call
// is admitted iff fewer than Limit timestamps fall inside the trailing
// Window; denied calls leave no trace. The window slides continuously,
// so a burst at a window edge cannot be doubled the way it can with
// fixed buckets.
//
// Denial is not an error condition. TryAdmit returns false and the
// caller decides how to surface it:
//
//	limiter, err := ratewindow.New(ratewindow.Config{
//		Limit:  10,
//		Window: time.Minute,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	if !limiter.TryAdmit("user-1") {
//		// deny with a rate-limit outcome
//	}
//
// Expired timestamps are pruned lazily on each check. An optional
// background sweep reclaims windows that have been idle for a full
// interval:
//
//	go limiter.Start(ctx) // or g.Go(limiter.Run(ctx))
//	defer limiter.Stop()
package ratewindow
