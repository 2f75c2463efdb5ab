// Package ratelimit paces requests to the remote source.
//
// The default Limiter is a token bucket from golang.org/x/time/rate sized in
// requests per minute. Wait honours context cancellation so an interrupted
// run never sleeps past its deadline.
//
//	limiter := ratelimit.New(60, 1)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
package ratelimit
