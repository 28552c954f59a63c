package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestListFiles(t *testing.T) {
	dir := t.TempDir()
	b := writeFile(t, dir, "b.txt", "b")
	a := writeFile(t, dir, "a.TXT", "a")
	p := writeFile(t, dir, "c.pdf", "%PDF")
	writeFile(t, dir, "notes.md", "ignored")
	writeFile(t, dir, "noext", "ignored")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.txt"), 0o755))
	writeFile(t, filepath.Join(dir, "sub.txt"), "nested.txt", "not recursive")

	l := New(nil)
	files := l.ListFiles(dir, nil)
	assert.Equal(t, []string{a, b, p}, files)

	onlyText := l.ListFiles(dir, []string{"txt"})
	assert.Equal(t, []string{a, b}, onlyText)
}

func TestListFilesMissingDir(t *testing.T) {
	l := New(nil)
	files := l.ListFiles(filepath.Join(t.TempDir(), "missing"), nil)
	assert.NotNil(t, files)
	assert.Empty(t, files)
}

func TestListFilesReturnsAbsolutePaths(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "a")

	wd, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Chdir(wd) })
	require.NoError(t, os.Chdir(dir))

	files := New(nil).ListFiles(".", nil)
	require.Len(t, files, 1)
	assert.True(t, filepath.IsAbs(files[0]))
}

func TestMatchExtension(t *testing.T) {
	tests := []struct {
		name string
		exts []string
		want bool
	}{
		{"a.txt", []string{".txt"}, true},
		{"a.PDF", []string{".pdf"}, true},
		{"a.pdf", []string{"PDF"}, true},
		{"a.txt.bak", []string{".txt"}, false},
		{"README", []string{".txt"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchExtension(tt.name, tt.exts))
		})
	}
}

func TestLoadText(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "hello\n\nworld")

	docs := New(nil).Load(path)
	require.Len(t, docs, 1)
	assert.Equal(t, "hello\n\nworld", docs[0].Content)
	assert.Equal(t, path, docs[0].Metadata[MetaSource])
}

func TestLoadTextInvalidUTF8(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bin.txt")
	require.NoError(t, os.WriteFile(path, []byte{'o', 'k', 0xff}, 0o644))

	docs := New(nil).Load(path)
	require.Len(t, docs, 1)
	assert.Equal(t, "ok�", docs[0].Content)
}

func TestLoadFailures(t *testing.T) {
	dir := t.TempDir()
	l := New(nil)

	assert.Empty(t, l.Load(filepath.Join(dir, "missing.txt")))
	assert.Empty(t, l.Load(writeFile(t, dir, "notes.md", "markdown")))
	assert.Empty(t, l.Load(writeFile(t, dir, "broken.pdf", "not a pdf")))
}
