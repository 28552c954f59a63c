// Package tracker implements the change-tracking ledger for incremental
// indexing.
//
// The ledger is a single SQLite table stored next to the vector index:
//
//	tracked_files(path TEXT PRIMARY KEY, directory TEXT, filename TEXT,
//	              digest TEXT, indexed_at TIMESTAMP)
//
// A row exists for a path if and only if the vector store holds the chunks
// derived from the recorded digest. Lifecycle states are derived, never
// stored:
//
//	no row                     -> StateNew
//	row, digest differs        -> StateModified
//	row, digest matches        -> StateUnchanged
//	row, path not enumerated   -> StateDeleted (see DeletedPaths)
//
// # Usage
//
//	t, err := tracker.Open(ctx, "/var/lib/dirrag", logger)
//	state, err := t.Status(ctx, "/docs/a.txt")
//	if state.NeedsIndexing() {
//	    // remove old chunks, add new ones, save the store...
//	    _, err = t.Commit(ctx, "/docs/a.txt")
//	}
//
// Commit must only run after the vector store mutation for that path has
// been persisted. Reversing the order could record a digest whose chunks
// never reached the store, and the file would then be skipped forever.
package tracker
