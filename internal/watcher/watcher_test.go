package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	batches [][]string
}

func (r *recorder) record(_ context.Context, files []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, files)
}

func (r *recorder) snapshot() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.batches...)
}

func startWatcher(t *testing.T, dir string) (*recorder, context.CancelFunc) {
	t.Helper()
	w, err := New([]string{dir}, []string{".txt"}, nil)
	require.NoError(t, err)
	w.SetDebounce(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	rec := &recorder{}
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx, rec.record)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		w.Close()
	})
	return rec, cancel
}

func TestNewMissingDirectory(t *testing.T) {
	_, err := New([]string{filepath.Join(t.TempDir(), "missing")}, nil, nil)
	require.Error(t, err)
}

func TestRunDebouncesChanges(t *testing.T) {
	dir := t.TempDir()
	rec, _ := startWatcher(t, dir)

	a := filepath.Join(dir, "a.txt")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(a, []byte{byte('a' + i)}, 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.md"), []byte("md"), 0o644))

	require.Eventually(t, func() bool { return len(rec.snapshot()) > 0 }, 2*time.Second, 10*time.Millisecond)

	var seen []string
	for _, batch := range rec.snapshot() {
		seen = append(seen, batch...)
	}
	assert.Contains(t, seen, a)
	assert.Contains(t, seen, filepath.Join(dir, "b.txt"))
	assert.NotContains(t, seen, filepath.Join(dir, "ignored.md"))
}

func TestRunReportsRemoval(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	rec, _ := startWatcher(t, dir)
	require.NoError(t, os.Remove(path))

	require.Eventually(t, func() bool {
		for _, batch := range rec.snapshot() {
			for _, f := range batch {
				if f == path {
					return true
				}
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRunStopsOnCancel(t *testing.T) {
	w, err := New([]string{t.TempDir()}, nil, nil)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, func(context.Context, []string) {}) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRelevant(t *testing.T) {
	w := &Watcher{extensions: []string{".txt", ".pdf"}}

	tests := []struct {
		event fsnotify.Event
		want  bool
	}{
		{fsnotify.Event{Name: "a.txt", Op: fsnotify.Write}, true},
		{fsnotify.Event{Name: "a.PDF", Op: fsnotify.Create}, true},
		{fsnotify.Event{Name: "a.txt", Op: fsnotify.Remove}, true},
		{fsnotify.Event{Name: "a.txt", Op: fsnotify.Rename}, true},
		{fsnotify.Event{Name: "a.txt", Op: fsnotify.Chmod}, false},
		{fsnotify.Event{Name: "a.md", Op: fsnotify.Write}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, w.relevant(tt.event), "%s %s", tt.event.Name, tt.event.Op)
	}
}
