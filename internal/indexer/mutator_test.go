package indexer

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/dirrag/internal/vectorstore"
)

func chunk(source string, v ...float32) vectorstore.Chunk {
	return vectorstore.Chunk{Source: source, Content: source, Embedding: v}
}

func TestMutator_EmptyStore(t *testing.T) {
	ctx := context.Background()
	m, err := NewMutator(ctx, vectorstore.ChromemBackend{}, t.TempDir(), nil)
	require.NoError(t, err)

	_, ok := m.Store()
	assert.False(t, ok)

	n, err := m.RemoveBySource(ctx, "/docs/a.txt")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	assert.NoError(t, m.Save(ctx))
	assert.NoError(t, m.Add(ctx, nil))
	assert.NoError(t, m.Close())
}

func TestMutator_AddCreatesThenAppends(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	backend := vectorstore.SQLiteBackend{}

	m, err := NewMutator(ctx, backend, dir, nil)
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.Add(ctx, []vectorstore.Chunk{chunk("/docs/a.txt", 1, 0)}))
	assert.True(t, backend.Exists(dir))
	store, ok := m.Store()
	require.True(t, ok)

	require.NoError(t, m.Add(ctx, []vectorstore.Chunk{chunk("/docs/b.txt", 0, 1), chunk("/docs/b.txt", 1, 1)}))
	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestMutator_RemoveBySource(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	m, err := NewMutator(ctx, vectorstore.ChromemBackend{}, dir, nil)
	require.NoError(t, err)
	require.NoError(t, m.Add(ctx, []vectorstore.Chunk{
		chunk("/docs/a.txt", 1, 0),
		chunk("/docs/b.txt", 0, 1),
		chunk("/docs/b.txt", 1, 1),
	}))

	n, err := m.RemoveBySource(ctx, "/docs/b.txt")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = m.RemoveBySource(ctx, "/docs/b.txt")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = m.RemoveBySource(ctx, "/docs/missing.txt")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, m.Save(ctx))

	// Reload from disk
	reloaded, err := NewMutator(ctx, vectorstore.ChromemBackend{}, dir, nil)
	require.NoError(t, err)
	store, ok := reloaded.Store()
	require.True(t, ok)
	sources, err := store.Sources(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	for _, src := range sources {
		assert.Equal(t, "/docs/a.txt", src)
	}
}

func TestMutator_SourcePaths(t *testing.T) {
	ctx := context.Background()
	m, err := NewMutator(ctx, vectorstore.ChromemBackend{}, t.TempDir(), nil)
	require.NoError(t, err)

	paths, err := m.SourcePaths(ctx)
	require.NoError(t, err)
	assert.Empty(t, paths)

	require.NoError(t, m.Add(ctx, []vectorstore.Chunk{
		chunk("/docs/a.txt", 1, 0),
		chunk("/docs/b.txt", 0, 1),
		chunk("/docs/b.txt", 1, 1),
	}))
	paths, err = m.SourcePaths(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"/docs/a.txt", "/docs/b.txt"}, paths.Sorted())
}

func TestMutator_RefusesInconsistentStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	m, err := NewMutator(ctx, vectorstore.ChromemBackend{}, dir, nil)
	require.NoError(t, err)
	require.NoError(t, m.Add(ctx, []vectorstore.Chunk{chunk("/docs/a.txt", 1, 0)}))

	// docstore lists a chunk the collection does not hold
	path := filepath.Join(dir, vectorstore.ChromemDocstoreFile)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	chunks := raw["chunks"].(map[string]any)
	chunks["extra"] = map[string]any{vectorstore.MetadataSource: "/docs/a.txt"}
	data, err = json.Marshal(raw)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = NewMutator(ctx, vectorstore.ChromemBackend{}, dir, nil)
	assert.ErrorIs(t, err, vectorstore.ErrInconsistent)
}
