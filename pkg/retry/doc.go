// Package retry provides bounded exponential backoff for transient failures.
//
// Do runs an operation until it succeeds, returns an error that RetryIf
// rejects, or MaxAttempts is reached. Waits honour the context and any
// Retry-After hint carried by a typed error.
//
//	err := retry.Do(func(attempt int) error {
//		page, err = client.FetchPage(ctx, target, cursor, 50)
//		return err
//	}, retry.FromConfig(ctx, cfg.Retry, log))
//	if retry.IsExhausted(err) {
//		// transient failure persisted; safe to re-run later
//	}
package retry
