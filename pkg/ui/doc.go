// Package ui renders igarchive's terminal output: colored messages, the
// per-batch progress of a run and an optional desktop notification at the end.
// Quiet mode silences everything except errors.
package ui
