package fingerprint

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestFile_Stable(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", []byte("hello world"))

	first, err := File(path)
	require.NoError(t, err)
	second, err := File(path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, Bytes([]byte("hello world")), first)
	assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", first.String())
}

func TestFile_SingleByteChange(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", []byte("content-A"))
	b := writeFile(t, dir, "b.txt", []byte("content-B"))

	da, err := File(a)
	require.NoError(t, err)
	db, err := File(b)
	require.NoError(t, err)

	assert.NotEqual(t, da, db)
}

func TestFile_SameContentDifferentPaths(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "one.txt", []byte("same"))
	b := writeFile(t, filepath.Join(dir), "two.txt", []byte("same"))

	da, err := File(a)
	require.NoError(t, err)
	db, err := File(b)
	require.NoError(t, err)
	assert.Equal(t, da, db)
}

func TestFile_LargerThanBlock(t *testing.T) {
	dir := t.TempDir()
	content := bytes.Repeat([]byte("0123456789abcdef"), BlockSize)
	path := writeFile(t, dir, "big.txt", content)

	d, err := File(path)
	require.NoError(t, err)
	assert.Equal(t, Bytes(content), d)
}

func TestFile_Missing(t *testing.T) {
	_, err := File(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseDigest(t *testing.T) {
	d := Bytes([]byte("x"))

	parsed, err := ParseDigest(d.String())
	require.NoError(t, err)
	assert.Equal(t, d, parsed)
	assert.False(t, parsed.IsZero())

	_, err = ParseDigest("zz")
	assert.Error(t, err)

	_, err = ParseDigest("abcd")
	assert.Error(t, err)
}
