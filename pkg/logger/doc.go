// Package logger provides the structured logging interface used across igarchive.
//
// It wraps zerolog. Console output is colourised and written to stderr; when a
// log file is configured every line is also appended to it as JSON.
//
//	log, err := logger.New(&cfg.Logging)
//	log.WithField("target", "acct1").InfoWithFields("Batch checkpointed", map[string]interface{}{
//	    "batch":   3,
//	    "fetched": 150,
//	})
//
// Tests use NewTestLogger to capture messages, or NewNopLogger to discard them.
package logger
