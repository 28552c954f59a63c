package tracker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dshills/dirrag/internal/fingerprint"
	"github.com/dshills/dirrag/internal/sqlitedb"
)

// LedgerFile is the ledger database name inside the vector DB directory.
const LedgerFile = "file_tracker.db"

var (
	// ErrNotFound is returned when a path has no ledger row
	ErrNotFound = errors.New("not found")
	// ErrLedgerUnavailable is returned when the ledger cannot be opened
	ErrLedgerUnavailable = errors.New("ledger unavailable")
)

// Tracker is a durable path -> digest ledger backed by SQLite.
type Tracker struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
	now    func() time.Time
}

// Open opens (or creates) the ledger inside dir. Opening an existing ledger
// leaves its rows untouched.
func Open(ctx context.Context, dir string, logger *slog.Logger) (*Tracker, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create directory %s: %v", ErrLedgerUnavailable, dir, err)
	}

	dbPath := filepath.Join(dir, LedgerFile)
	db, err := sqlitedb.Open(ctx, dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}

	if err := ApplyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}

	logger.Info("file tracker initialized", slog.String("path", dbPath))
	return &Tracker{db: db, path: dbPath, logger: logger, now: time.Now}, nil
}

// Path returns the ledger file location.
func (t *Tracker) Path() string {
	return t.path
}

// Close closes the ledger connection.
func (t *Tracker) Close() error {
	return t.db.Close()
}

// Status fingerprints path and compares it with the stored row. It never
// writes to the ledger. A fingerprint failure is returned as an error so it
// is never mistaken for an unchanged file.
func (t *Tracker) Status(ctx context.Context, path string) (State, error) {
	current, err := fingerprint.File(path)
	if err != nil {
		return StateNew, err
	}

	row, err := t.Get(ctx, path)
	if errors.Is(err, ErrNotFound) {
		return StateNew, nil
	}
	if err != nil {
		return StateNew, err
	}

	if row.Digest != current {
		return StateModified, nil
	}
	return StateUnchanged, nil
}

// Commit records the current digest of path. Callers must only commit after
// the file's chunks were added and the vector store was saved.
func (t *Tracker) Commit(ctx context.Context, path string) (TrackedFile, error) {
	digest, err := fingerprint.File(path)
	if err != nil {
		return TrackedFile{}, err
	}

	row := TrackedFile{
		Path:      path,
		Directory: filepath.Dir(path),
		Filename:  filepath.Base(path),
		Digest:    digest,
		IndexedAt: t.now().UTC(),
	}

	query := `
		INSERT INTO tracked_files (path, directory, filename, digest, indexed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			directory = excluded.directory,
			filename = excluded.filename,
			digest = excluded.digest,
			indexed_at = excluded.indexed_at
	`
	if _, err := t.db.ExecContext(ctx, query,
		row.Path, row.Directory, row.Filename, row.Digest.String(), row.IndexedAt); err != nil {
		return TrackedFile{}, fmt.Errorf("failed to commit %s: %w", path, err)
	}

	t.logger.Debug("updated checksum", slog.String("path", path), slog.String("digest", row.Digest.String()))
	return row, nil
}

// Remove deletes the row for path. Removing an untracked path is a no-op.
func (t *Tracker) Remove(ctx context.Context, path string) error {
	if _, err := t.db.ExecContext(ctx, "DELETE FROM tracked_files WHERE path = ?", path); err != nil {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	t.logger.Debug("removed from tracker", slog.String("path", path))
	return nil
}

// Get returns the row for path or ErrNotFound.
func (t *Tracker) Get(ctx context.Context, path string) (*TrackedFile, error) {
	query := `
		SELECT path, directory, filename, digest, indexed_at
		FROM tracked_files
		WHERE path = ?
	`
	row, err := scanTrackedFile(t.db.QueryRowContext(ctx, query, path))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", path, err)
	}
	return row, nil
}

// List returns every ledger row ordered by path.
func (t *Tracker) List(ctx context.Context) ([]TrackedFile, error) {
	rows, err := t.db.QueryContext(ctx, `
		SELECT path, directory, filename, digest, indexed_at
		FROM tracked_files
		ORDER BY path
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracked files: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var files []TrackedFile
	for rows.Next() {
		f, err := scanTrackedFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, *f)
	}
	return files, rows.Err()
}

// AllTrackedPaths scans the whole ledger.
func (t *Tracker) AllTrackedPaths(ctx context.Context) (PathSet, error) {
	rows, err := t.db.QueryContext(ctx, "SELECT path FROM tracked_files")
	if err != nil {
		return nil, fmt.Errorf("failed to scan tracked paths: %w", err)
	}
	defer func() { _ = rows.Close() }()

	paths := make(PathSet)
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths.Add(p)
	}
	return paths, rows.Err()
}

// DeletedPaths returns tracked paths missing from current.
func (t *Tracker) DeletedPaths(ctx context.Context, current PathSet) (PathSet, error) {
	tracked, err := t.AllTrackedPaths(ctx)
	if err != nil {
		return nil, err
	}
	return tracked.Difference(current), nil
}

// Count returns the number of ledger rows.
func (t *Tracker) Count(ctx context.Context) (int, error) {
	var n int
	if err := t.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tracked_files").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count tracked files: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrackedFile(s rowScanner) (*TrackedFile, error) {
	var (
		f      TrackedFile
		digest string
	)
	if err := s.Scan(&f.Path, &f.Directory, &f.Filename, &digest, &f.IndexedAt); err != nil {
		return nil, err
	}
	d, err := fingerprint.ParseDigest(digest)
	if err != nil {
		return nil, fmt.Errorf("corrupt digest for %s: %w", f.Path, err)
	}
	f.Digest = d
	return &f, nil
}
