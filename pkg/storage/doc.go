// Package storage owns the on-disk layout of igarchive.
//
// Every target has one checkpoint and one archive file:
//
//	<data_dir>/checkpoints/<key>[_<version>].checkpoint.json
//	<data_dir>/archives/<key>[_<version>].json
//
// All writes go through WriteAtomic, which writes a temporary file in the
// same directory, fsyncs it and renames it over the destination.
package storage
