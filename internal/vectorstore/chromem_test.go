package vectorstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// snapshotDir returns the contents of every regular file in dir.
func snapshotDir(t *testing.T, dir string) map[string][]byte {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	files := make(map[string][]byte, len(entries))
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		require.NoError(t, err)
		files[e.Name()] = data
	}
	return files
}

func restoreDir(t *testing.T, dir string, files map[string][]byte) {
	t.Helper()
	for name, data := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
	}
}

func collectionFiles(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "index.*.chromem.gob.gz*"))
	require.NoError(t, err)
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = filepath.Base(m)
	}
	return names
}

func idsFor(t *testing.T, s Store, source string) []string {
	t.Helper()
	sources, err := s.Sources(context.Background())
	require.NoError(t, err)
	var ids []string
	for id, src := range sources {
		if src == source {
			ids = append(ids, id)
		}
	}
	return ids
}

func TestChromemSaveGenerations(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b := ChromemBackend{}

	s, err := b.Create(ctx, dir, testChunks("/docs/a.txt", []float32{1, 0}))
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx))
	assert.Equal(t, []string{chromemIndexFile(1)}, collectionFiles(t, dir))

	require.NoError(t, s.Add(ctx, testChunks("/docs/b.txt", []float32{0, 1})))
	require.NoError(t, s.Save(ctx))
	assert.Equal(t, []string{chromemIndexFile(2)}, collectionFiles(t, dir))

	// a fresh store in the same directory continues after the committed save
	fresh, err := b.Create(ctx, dir, testChunks("/docs/c.txt", []float32{1, 1}))
	require.NoError(t, err)
	require.NoError(t, fresh.Save(ctx))
	assert.Equal(t, []string{chromemIndexFile(3)}, collectionFiles(t, dir))

	loaded, err := b.Load(ctx, dir)
	require.NoError(t, err)
	n, err := loaded.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, idsFor(t, loaded, "/docs/c.txt"), 1)
}

func TestChromemInterruptedSaveKeepsLastCommit(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b := ChromemBackend{}

	s, err := b.Create(ctx, dir, testChunks("/docs/old.txt", []float32{1, 0}))
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx))
	committed := snapshotDir(t, dir)

	require.NoError(t, s.Delete(ctx, idsFor(t, s, "/docs/old.txt")...))
	require.NoError(t, s.Add(ctx, testChunks("/docs/new.txt", []float32{0, 1})))
	require.NoError(t, s.Save(ctx))

	// the new collection file was written but the docstore never committed
	restoreDir(t, dir, committed)
	require.Len(t, collectionFiles(t, dir), 2)

	loaded, err := b.Load(ctx, dir)
	require.NoError(t, err)
	n, err := loaded.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, idsFor(t, loaded, "/docs/old.txt"), 1)
	assert.Empty(t, idsFor(t, loaded, "/docs/new.txt"))

	results, err := loaded.Search(ctx, []float32{0, 1}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "/docs/old.txt", results[0].Chunk.Source)

	// the next save replaces the orphaned generation
	require.NoError(t, loaded.Save(ctx))
	assert.Equal(t, []string{chromemIndexFile(2)}, collectionFiles(t, dir))
	reloaded, err := b.Load(ctx, dir)
	require.NoError(t, err)
	assert.Len(t, idsFor(t, reloaded, "/docs/old.txt"), 1)
}

func TestChromemLoadRejectsMismatchedFiles(t *testing.T) {
	ctx := context.Background()
	b := ChromemBackend{}

	save := func(t *testing.T) string {
		dir := t.TempDir()
		s, err := b.Create(ctx, dir, testChunks("/docs/a.txt", []float32{1, 0}))
		require.NoError(t, err)
		require.NoError(t, s.Save(ctx))
		return dir
	}

	t.Run("collection from another save", func(t *testing.T) {
		dir := save(t)
		s, err := b.Load(ctx, dir)
		require.NoError(t, err)
		require.NoError(t, s.Delete(ctx, idsFor(t, s, "/docs/a.txt")...))
		require.NoError(t, s.Add(ctx, testChunks("/docs/b.txt", []float32{0, 1})))

		// same count, different ids: gen 2 content under the gen 1 name
		committed := snapshotDir(t, dir)
		require.NoError(t, s.Save(ctx))
		replaced, err := os.ReadFile(filepath.Join(dir, chromemIndexFile(2)))
		require.NoError(t, err)
		restoreDir(t, dir, committed)
		require.NoError(t, os.WriteFile(filepath.Join(dir, chromemIndexFile(1)), replaced, 0o644))

		_, err = b.Load(ctx, dir)
		assert.ErrorIs(t, err, ErrInconsistent)
	})

	t.Run("docstore id not in collection", func(t *testing.T) {
		dir := save(t)
		path := filepath.Join(dir, ChromemDocstoreFile)
		data, err := os.ReadFile(path)
		require.NoError(t, err)

		var ds docstore
		require.NoError(t, json.Unmarshal(data, &ds))
		renamed := make(map[string]map[string]string, len(ds.Chunks))
		for id, md := range ds.Chunks {
			renamed["not-"+id] = md
		}
		ds.Chunks = renamed
		data, err = json.Marshal(ds)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path, data, 0o644))

		_, err = b.Load(ctx, dir)
		assert.ErrorIs(t, err, ErrInconsistent)
	})

	t.Run("collection file missing", func(t *testing.T) {
		dir := save(t)
		require.NoError(t, os.Remove(filepath.Join(dir, chromemIndexFile(1))))
		assert.False(t, b.Exists(dir))

		_, err := b.Load(ctx, dir)
		assert.Error(t, err)
	})
}
