// Package instagram fetches pages of a user's timeline from Instagram's web
// GraphQL endpoint.
//
// Each call to FetchPage issues one GET request for at most batchSize posts
// after the given cursor and returns the posts as raw records together with
// the cursor of the next page. Failures are returned as *errors.Error values
// whose type tells the caller whether a retry can help:
//
//	client := instagram.NewClient(cfg.Instagram, cfg.Fetch.Timeout, log)
//	client.SetLimiter(ratelimit.New(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.BurstSize))
//
//	page, err := client.FetchPage(ctx, "natgeo", nil, 50)
//	if err != nil && errors.ClassOf(err) == errors.ClassTransient {
//	    // back off and try again
//	}
package instagram
