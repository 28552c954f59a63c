// Package indexer keeps a vector store in step with a set of document
// directories.
//
// # Basic Usage
//
//	tr, err := tracker.Open(ctx, storeDir, logger)
//	m, err := indexer.NewMutator(ctx, vectorstore.ChromemBackend{}, storeDir, logger)
//	idx, err := indexer.New(indexer.Options{
//	    Embedder: emb,
//	    Tracker:  tr,
//	    Mutator:  m,
//	    Logger:   logger,
//	})
//
//	stats, err := idx.Sync(ctx, []string{"/srv/docs"})
//	fmt.Printf("%d processed, %d skipped\n", stats.FilesProcessed, stats.FilesSkipped)
//
// # Sync Pass
//
// A pass runs these steps:
//
//  1. List the current files of every directory (non-recursive, filtered by
//     extension) and take their union.
//  2. Purge tracked files that are gone: remove their chunks, save the
//     store, then drop the ledger row. A purge failure aborts the pass.
//  3. Visit current files in path order, one at a time. Unchanged files are
//     skipped. Modified files lose their old chunks first. New and modified
//     files are loaded, split, embedded, added to the store (which is saved)
//     and only then committed to the ledger.
//
// A file that fails at any step is recorded in Statistics.Errors and left
// uncommitted, so the next pass sees it as new or modified again. A file
// that yields no chunks is treated the same way.
//
// # Crash Behaviour
//
// The store save and the ledger commit are two separate writes. A crash
// between them leaves chunks in the store for a file the ledger still
// considers new or modified; the next pass removes them and indexes the
// file again.
//
// # Concurrency
//
// Files are processed strictly sequentially. Within one file the embedding
// sub-batches may run concurrently (see embedder.EmbedTexts) and all of them
// finish before the chunks are added. Only one pass runs per Indexer;
// a second call returns ErrSyncInProgress. Separate processes writing the
// same store directory are not coordinated.
package indexer
