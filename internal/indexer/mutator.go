package indexer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/dshills/dirrag/internal/tracker"
	"github.com/dshills/dirrag/internal/vectorstore"
)

// Mutator applies chunk additions and removals to the vector store. The
// store may not exist yet; it is created from the first batch added.
type Mutator struct {
	mu      sync.RWMutex
	backend vectorstore.Backend
	dir     string
	store   vectorstore.Store // nil until something has been added
	logger  *slog.Logger
}

// NewMutator loads the store in dir if one has been saved.
func NewMutator(ctx context.Context, backend vectorstore.Backend, dir string, logger *slog.Logger) (*Mutator, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	store, err := vectorstore.OpenIfExists(ctx, backend, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load vector store: %w", err)
	}
	if store != nil {
		logger.Debug("loaded vector store", slog.String("dir", dir), slog.String("backend", backend.Name()))
	}
	return &Mutator{backend: backend, dir: dir, store: store, logger: logger}, nil
}

// Store returns the open store and whether one exists.
func (m *Mutator) Store() (vectorstore.Store, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.store, m.store != nil
}

// RemoveBySource deletes every chunk whose source is path in one batch and
// returns how many were removed. Nothing is saved.
func (m *Mutator) RemoveBySource(ctx context.Context, path string) (int, error) {
	if m.store == nil {
		return 0, nil
	}

	sources, err := m.store.Sources(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to scan chunk sources: %w", err)
	}

	var ids []string
	for id, source := range sources {
		if source == path {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	if err := m.store.Delete(ctx, ids...); err != nil {
		return 0, fmt.Errorf("failed to remove chunks for %s: %w", path, err)
	}
	m.logger.Debug("removed chunks", slog.String("source", path), slog.Int("count", len(ids)))
	return len(ids), nil
}

// SourcePaths returns the distinct sources of the stored chunks.
func (m *Mutator) SourcePaths(ctx context.Context) (tracker.PathSet, error) {
	paths := make(tracker.PathSet)
	if m.store == nil {
		return paths, nil
	}
	sources, err := m.store.Sources(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to scan chunk sources: %w", err)
	}
	for _, source := range sources {
		paths.Add(source)
	}
	return paths, nil
}

// Add appends chunks, creating the store on first use, then saves it.
// The store is durable when Add returns nil.
func (m *Mutator) Add(ctx context.Context, chunks []vectorstore.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	if m.store == nil {
		store, err := m.backend.Create(ctx, m.dir, chunks)
		if err != nil {
			return fmt.Errorf("failed to create vector store: %w", err)
		}
		m.mu.Lock()
		m.store = store
		m.mu.Unlock()
		m.logger.Info("created vector store", slog.String("dir", m.dir), slog.String("backend", m.backend.Name()))
	} else if err := m.store.Add(ctx, chunks); err != nil {
		return fmt.Errorf("failed to add chunks: %w", err)
	}

	return m.Save(ctx)
}

// Save persists the store if it exists.
func (m *Mutator) Save(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	if err := m.store.Save(ctx); err != nil {
		return fmt.Errorf("failed to save vector store: %w", err)
	}
	return nil
}

// Close releases the store without saving.
func (m *Mutator) Close() error {
	if m.store == nil {
		return nil
	}
	return m.store.Close()
}
