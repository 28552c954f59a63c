package tracker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/dirrag/internal/fingerprint"
)

func setupTracker(t *testing.T) (*Tracker, string) {
	t.Helper()
	dir := t.TempDir()
	tr, err := Open(context.Background(), filepath.Join(dir, "db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	return tr, dir
}

func writeDoc(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestOpen_CreatesLedger(t *testing.T) {
	tr, dir := setupTracker(t)

	assert.FileExists(t, filepath.Join(dir, "db", LedgerFile))
	assert.Equal(t, filepath.Join(dir, "db", LedgerFile), tr.Path())

	n, err := tr.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOpen_ExistingLedgerKeepsRows(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dbDir := filepath.Join(dir, "db")
	doc := writeDoc(t, dir, "a.txt", "alpha")

	tr, err := Open(ctx, dbDir, nil)
	require.NoError(t, err)
	committed, err := tr.Commit(ctx, doc)
	require.NoError(t, err)
	require.NoError(t, tr.Close())

	reopened, err := Open(ctx, dbDir, nil)
	require.NoError(t, err)
	defer reopened.Close()

	row, err := reopened.Get(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, committed.Digest, row.Digest)
	assert.WithinDuration(t, committed.IndexedAt, row.IndexedAt, time.Second)

	state, err := reopened.Status(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, StateUnchanged, state)
}

func TestStatus_Lifecycle(t *testing.T) {
	ctx := context.Background()
	tr, dir := setupTracker(t)
	doc := writeDoc(t, dir, "a.txt", "version one")

	state, err := tr.Status(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, StateNew, state)
	assert.True(t, state.NeedsIndexing())

	// Status is side-effect free
	n, err := tr.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = tr.Commit(ctx, doc)
	require.NoError(t, err)

	state, err = tr.Status(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, StateUnchanged, state)
	assert.False(t, state.NeedsIndexing())

	writeDoc(t, dir, "a.txt", "version two")
	state, err = tr.Status(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, StateModified, state)
	assert.True(t, state.NeedsIndexing())
}

func TestStatus_UnreadableFile(t *testing.T) {
	tr, dir := setupTracker(t)

	_, err := tr.Status(context.Background(), filepath.Join(dir, "missing.txt"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCommit_Upserts(t *testing.T) {
	ctx := context.Background()
	tr, dir := setupTracker(t)
	doc := writeDoc(t, dir, "a.txt", "one")

	first, err := tr.Commit(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, dir, first.Directory)
	assert.Equal(t, "a.txt", first.Filename)
	assert.Equal(t, fingerprint.Bytes([]byte("one")), first.Digest)

	writeDoc(t, dir, "a.txt", "two")
	second, err := tr.Commit(ctx, doc)
	require.NoError(t, err)
	assert.NotEqual(t, first.Digest, second.Digest)

	n, err := tr.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	row, err := tr.Get(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, second.Digest, row.Digest)
}

func TestCommit_MissingFile(t *testing.T) {
	tr, dir := setupTracker(t)

	_, err := tr.Commit(context.Background(), filepath.Join(dir, "gone.txt"))
	assert.Error(t, err)
}

func TestRemove_Idempotent(t *testing.T) {
	ctx := context.Background()
	tr, dir := setupTracker(t)
	doc := writeDoc(t, dir, "a.txt", "one")

	_, err := tr.Commit(ctx, doc)
	require.NoError(t, err)

	require.NoError(t, tr.Remove(ctx, doc))
	require.NoError(t, tr.Remove(ctx, doc))

	_, err = tr.Get(ctx, doc)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeletedPaths(t *testing.T) {
	ctx := context.Background()
	tr, dir := setupTracker(t)
	a := writeDoc(t, dir, "a.txt", "a")
	b := writeDoc(t, dir, "b.txt", "b")
	c := writeDoc(t, dir, "c.txt", "c")

	for _, p := range []string{a, b, c} {
		_, err := tr.Commit(ctx, p)
		require.NoError(t, err)
	}

	tracked, err := tr.AllTrackedPaths(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{a, b, c}, tracked.Sorted())

	deleted, err := tr.DeletedPaths(ctx, NewPathSet(a, c, filepath.Join(dir, "new.txt")))
	require.NoError(t, err)
	assert.Equal(t, []string{b}, deleted.Sorted())

	deleted, err = tr.DeletedPaths(ctx, NewPathSet())
	require.NoError(t, err)
	assert.Len(t, deleted, 3)
}

func TestList(t *testing.T) {
	ctx := context.Background()
	tr, dir := setupTracker(t)
	b := writeDoc(t, dir, "b.txt", "b")
	a := writeDoc(t, dir, "a.txt", "a")

	for _, p := range []string{b, a} {
		_, err := tr.Commit(ctx, p)
		require.NoError(t, err)
	}

	files, err := tr.List(ctx)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, a, files[0].Path)
	assert.Equal(t, b, files[1].Path)
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateNew, "new"},
		{StateModified, "modified"},
		{StateUnchanged, "unchanged"},
		{StateDeleted, "deleted"},
		{State(42), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.state.String())
	}
	assert.False(t, StateDeleted.NeedsIndexing())
}

func TestApplyMigrations_Idempotent(t *testing.T) {
	ctx := context.Background()
	tr, _ := setupTracker(t)

	require.NoError(t, ApplyMigrations(ctx, tr.db))
	require.NoError(t, ApplyMigrations(ctx, tr.db))

	var count int
	require.NoError(t, tr.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_version").Scan(&count))
	assert.Equal(t, len(AllMigrations), count)
}

func TestRollbackMigration(t *testing.T) {
	ctx := context.Background()
	tr, _ := setupTracker(t)

	require.NoError(t, RollbackMigration(ctx, tr.db))

	var name string
	err := tr.db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name='tracked_files'").Scan(&name)
	assert.Error(t, err)

	require.NoError(t, ApplyMigrations(ctx, tr.db))
	n, err := tr.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
