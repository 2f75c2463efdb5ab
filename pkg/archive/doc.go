// Package archive keeps the de-duplicated list of records fetched for a target.
//
// The archive file is a JSON array of record objects written in full after
// every batch. Records are identified by a configurable field (default "id");
// records without it are identified by a SHA-256 of their canonical JSON.
package archive
