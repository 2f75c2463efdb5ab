// Package scraper drives the resumable fetch loop that archives a target's
// timeline.
//
// A run is a small state machine:
//
//	init -> fetching -> merging -> checkpointing -> (fetching | done | failed)
//
// On init the saved checkpoint and archive are loaded. Each batch then
// fetches one page after the checkpoint cursor, merges it into the archive
// without duplicates, saves the archive, and finally advances the
// checkpoint. Because the archive is always written before the checkpoint,
// a crash between the two only causes the same page to be fetched again on
// the next run, where the merge absorbs it.
//
// Transient fetch failures are retried with exponential backoff. Fatal
// failures stop the run at once, leaving the durable state of the last
// completed batch in place:
//
//	s := scraper.New(client, checkpoints, archives, cfg.Retry, log)
//	result, err := s.Run(ctx, "natgeo", scraper.Options{BatchSize: 50})
//	if err != nil && result.Retryable {
//	    // run again later
//	}
package scraper
