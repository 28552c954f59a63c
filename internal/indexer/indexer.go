package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/dshills/dirrag/internal/chunker"
	"github.com/dshills/dirrag/internal/embedder"
	"github.com/dshills/dirrag/internal/loader"
	"github.com/dshills/dirrag/internal/tracker"
	"github.com/dshills/dirrag/internal/vectorstore"
)

var (
	// ErrSyncInProgress is returned when a pass is already running on this Indexer
	ErrSyncInProgress = errors.New("sync already in progress")
	// ErrNoChunks is recorded for files that produced no text to index
	ErrNoChunks = errors.New("no chunks extracted")
)

// Lister enumerates candidate files in one directory.
type Lister interface {
	ListFiles(dir string, exts []string) []string
}

// Loader extracts documents from a file. Failures yield no documents.
type Loader interface {
	Load(path string) []loader.Document
}

// Splitter cuts documents into chunks.
type Splitter interface {
	Split(docs []loader.Document) []chunker.Chunk
}

// Options wires an Indexer. Tracker, Mutator and Embedder are required.
type Options struct {
	Lister   Lister
	Loader   Loader
	Splitter Splitter
	Embedder embedder.Embedder
	Tracker  *tracker.Tracker
	Mutator  *Mutator
	Logger   *slog.Logger
	Observer Observer

	Extensions  []string // default loader.DefaultExtensions
	BatchSize   int      // texts per embedding request
	Concurrency int      // embedding requests in flight per file
}

// SyncOptions tune a single pass.
type SyncOptions struct {
	// Force re-indexes every current file regardless of its digest
	Force bool
	// Scoped limits the purge to files directly inside the synced
	// directories. By default anything outside the current listing is purged.
	Scoped bool
}

// Statistics summarizes one sync pass
type Statistics struct {
	FilesDiscovered int           `json:"files_discovered"`
	FilesProcessed  int           `json:"files_processed"`
	FilesSkipped    int           `json:"files_skipped"`
	FilesFailed     int           `json:"files_failed"`
	FilesDeleted    int           `json:"files_deleted"`
	ChunksAdded     int           `json:"chunks_added"`
	ChunksRemoved   int           `json:"chunks_removed"`
	Duration        time.Duration `json:"duration"`
	Errors          []string      `json:"errors,omitempty"`
}

// Indexer brings a vector store and its ledger in line with the contents of
// a set of directories. One pass runs at a time.
type Indexer struct {
	lister      Lister
	loader      Loader
	splitter    Splitter
	embedder    embedder.Embedder
	tracker     *tracker.Tracker
	mutator     *Mutator
	logger      *slog.Logger
	observer    Observer
	extensions  []string
	batchSize   int
	concurrency int

	lock IndexLock
}

// New creates an Indexer from opts.
func New(opts Options) (*Indexer, error) {
	if opts.Tracker == nil || opts.Mutator == nil || opts.Embedder == nil {
		return nil, errors.New("indexer requires a tracker, a mutator and an embedder")
	}

	idx := &Indexer{
		lister:      opts.Lister,
		loader:      opts.Loader,
		splitter:    opts.Splitter,
		embedder:    opts.Embedder,
		tracker:     opts.Tracker,
		mutator:     opts.Mutator,
		logger:      opts.Logger,
		observer:    opts.Observer,
		extensions:  opts.Extensions,
		batchSize:   opts.BatchSize,
		concurrency: opts.Concurrency,
	}
	if idx.logger == nil {
		idx.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if idx.lister == nil || idx.loader == nil {
		fl := loader.New(idx.logger)
		if idx.lister == nil {
			idx.lister = fl
		}
		if idx.loader == nil {
			idx.loader = fl
		}
	}
	if idx.splitter == nil {
		idx.splitter = chunker.Default()
	}
	if idx.observer == nil {
		idx.observer = NopObserver{}
	}
	if len(idx.extensions) == 0 {
		idx.extensions = loader.DefaultExtensions
	}
	return idx, nil
}

// Mutator returns the mutator owning the vector store.
func (idx *Indexer) Mutator() *Mutator {
	return idx.mutator
}

// Tracker returns the ledger.
func (idx *Indexer) Tracker() *tracker.Tracker {
	return idx.tracker
}

// Running reports whether a pass is in progress.
func (idx *Indexer) Running() bool {
	return idx.lock.Held()
}

// Sync runs one incremental pass over dirs.
func (idx *Indexer) Sync(ctx context.Context, dirs []string) (*Statistics, error) {
	return idx.SyncWithOptions(ctx, dirs, SyncOptions{})
}

// SyncWithOptions runs one pass over dirs. Deleted files are purged first,
// then current files are processed one at a time in path order. Per-file
// failures are recorded in the statistics and the pass continues; failing
// to purge a deleted file or to read the ledger aborts the pass.
func (idx *Indexer) SyncWithOptions(ctx context.Context, dirs []string, opts SyncOptions) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrSyncInProgress
	}
	defer idx.lock.Release()

	start := time.Now()
	stats := &Statistics{}

	current := tracker.NewPathSet()
	for _, dir := range dirs {
		for _, path := range idx.lister.ListFiles(dir, idx.extensions) {
			current.Add(path)
		}
	}
	files := current.Sorted()
	stats.FilesDiscovered = len(files)
	idx.logger.Info("starting sync", slog.Int("files", len(files)), slog.Any("dirs", dirs), slog.Bool("force", opts.Force))
	idx.observer.OnPassStart(len(files))

	var scope tracker.PathSet
	if opts.Scoped {
		scope = tracker.NewPathSet()
		for _, dir := range dirs {
			if abs, err := filepath.Abs(dir); err == nil {
				scope.Add(abs)
			}
		}
	}
	if err := idx.purgeDeleted(ctx, current, scope, stats); err != nil {
		return nil, err
	}

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		outcome, err := idx.syncFile(ctx, path, opts, stats)
		if err != nil {
			stats.FilesFailed++
			stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", path, err))
			idx.logger.Warn("failed to index file", slog.String("path", path), slog.Any("error", err))
		}
		idx.observer.OnFileDone(path, outcome)
	}

	stats.Duration = time.Since(start)
	idx.logger.Info(fmt.Sprintf("Indexing complete: %d files processed, %d files skipped",
		stats.FilesProcessed, stats.FilesSkipped),
		slog.Int("failed", stats.FilesFailed),
		slog.Int("deleted", stats.FilesDeleted),
		slog.Int("chunks_added", stats.ChunksAdded),
		slog.Int("chunks_removed", stats.ChunksRemoved),
		slog.Duration("duration", stats.Duration))
	idx.observer.OnPassComplete(stats)
	return stats, nil
}

// purgeDeleted removes chunks and ledger rows for files that are no longer
// present. Those are tracked paths plus chunk sources the ledger never
// recorded. The store is saved before the row is dropped so a crash leaves
// the row for the next pass to retry. A non-nil scope restricts the purge
// to files whose directory is in scope.
func (idx *Indexer) purgeDeleted(ctx context.Context, current, scope tracker.PathSet, stats *Statistics) error {
	deleted, err := idx.tracker.DeletedPaths(ctx, current)
	if err != nil {
		return fmt.Errorf("failed to read ledger: %w", err)
	}
	stored, err := idx.mutator.SourcePaths(ctx)
	if err != nil {
		return err
	}
	for path := range stored.Difference(current) {
		deleted.Add(path)
	}
	if scope != nil {
		for path := range deleted {
			if !scope.Has(filepath.Dir(path)) {
				delete(deleted, path)
			}
		}
	}

	for _, path := range deleted.Sorted() {
		removed, err := idx.mutator.RemoveBySource(ctx, path)
		if err != nil {
			return fmt.Errorf("failed to purge %s: %w", path, err)
		}
		if removed > 0 {
			if err := idx.mutator.Save(ctx); err != nil {
				return fmt.Errorf("failed to purge %s: %w", path, err)
			}
		}
		if err := idx.tracker.Remove(ctx, path); err != nil {
			return fmt.Errorf("failed to purge %s: %w", path, err)
		}

		stats.FilesDeleted++
		stats.ChunksRemoved += removed
		idx.logger.Info("file deleted", slog.String("path", path), slog.Int("chunks_removed", removed))
	}
	return nil
}

// syncFile brings one current file up to date. The ledger is committed only
// after its chunks are durably stored.
func (idx *Indexer) syncFile(ctx context.Context, path string, opts SyncOptions, stats *Statistics) (Outcome, error) {
	name := filepath.Base(path)

	state, err := idx.tracker.Status(ctx, path)
	if err != nil {
		return OutcomeFailed, err
	}

	if state == tracker.StateUnchanged && !opts.Force {
		idx.logger.Info("skipping unchanged file", slog.String("file", name))
		stats.FilesSkipped++
		return OutcomeSkipped, nil
	}

	// A new file can still have chunks when a save landed and its commit did not.
	removed, err := idx.mutator.RemoveBySource(ctx, path)
	if err != nil {
		return OutcomeFailed, err
	}
	stats.ChunksRemoved += removed
	if removed > 0 || state != tracker.StateNew {
		idx.logger.Info("removed old chunks", slog.String("file", name), slog.String("state", state.String()), slog.Int("chunks", removed))
	}

	docs := idx.loader.Load(path)
	idx.logger.Info("loaded documents", slog.String("file", name), slog.Int("documents", len(docs)))

	chunks := idx.splitter.Split(docs)
	if len(chunks) == 0 {
		idx.logger.Warn("no chunks created", slog.String("file", name))
		return OutcomeFailed, ErrNoChunks
	}
	idx.logger.Info("created chunks", slog.String("file", name), slog.Int("chunks", len(chunks)))

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := embedder.EmbedTexts(ctx, idx.embedder, texts, idx.batchSize, idx.concurrency)
	if err != nil {
		return OutcomeFailed, err
	}

	records := make([]vectorstore.Chunk, len(chunks))
	for i, c := range chunks {
		records[i] = vectorstore.Chunk{
			Source:    path,
			Content:   c.Content,
			Metadata:  c.Metadata,
			Embedding: vectors[i],
		}
	}
	if err := idx.mutator.Add(ctx, records); err != nil {
		return OutcomeFailed, err
	}

	if _, err := idx.tracker.Commit(ctx, path); err != nil {
		return OutcomeFailed, fmt.Errorf("failed to commit ledger: %w", err)
	}

	stats.FilesProcessed++
	stats.ChunksAdded += len(records)
	idx.logger.Info("indexed file", slog.String("file", name), slog.Int("chunks", len(records)))
	return OutcomeIndexed, nil
}
