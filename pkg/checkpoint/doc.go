// Package checkpoint persists the resume position of each target.
//
// A checkpoint is a small JSON document:
//
//	{
//	  "after_cursor": "QVFE...",
//	  "cumulative_count": 150,
//	  "updated_at": "2024-05-01T12:00:00.123456789Z"
//	}
//
// A null after_cursor means the next run starts from the newest item. Saves are
// atomic, and a checkpoint that cannot be parsed is reported as a fatal error
// instead of silently restarting from the beginning.
package checkpoint
