// Package vectorstore defines the persistent similarity index the indexer
// writes chunks into, plus its concrete backends.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// MetadataSource is the metadata key joining chunks to ledger paths.
const MetadataSource = "source"

var (
	// ErrNotExist is returned when loading a store that was never created
	ErrNotExist = errors.New("vector store does not exist")
	// ErrEmptyEmbedding is returned when a chunk has no vector
	ErrEmptyEmbedding = errors.New("chunk has no embedding")
	// ErrDimensionMismatch is returned when a vector does not match the store
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrUnknownBackend is returned for an unsupported backend name
	ErrUnknownBackend = errors.New("unknown vector store backend")
	// ErrInconsistent is returned when saved store files disagree
	ErrInconsistent = errors.New("vector store is inconsistent")
)

// Chunk is one indexed piece of a source document.
type Chunk struct {
	ID        string
	Source    string
	Content   string
	Metadata  map[string]string
	Embedding []float32
}

// Result is a chunk with its similarity to a query vector.
type Result struct {
	Chunk      Chunk
	Similarity float64
}

// Store is an open vector index.
type Store interface {
	// Add appends chunks. Chunks without an ID get a generated one.
	Add(ctx context.Context, chunks []Chunk) error
	// Delete removes chunks by id in one batch.
	Delete(ctx context.Context, ids ...string) error
	// Sources returns the chunk id -> source mapping.
	Sources(ctx context.Context) (map[string]string, error)
	// Search returns the k chunks most similar to vector.
	Search(ctx context.Context, vector []float32, k int) ([]Result, error)
	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)
	// Save persists the store durably before returning.
	Save(ctx context.Context) error
	// Close releases resources without saving.
	Close() error
}

// Backend creates and loads stores rooted at a directory.
type Backend interface {
	Name() string
	// Exists reports whether a saved store is present in dir.
	Exists(dir string) bool
	// Create builds a new store in dir from its first batch of chunks.
	Create(ctx context.Context, dir string, chunks []Chunk) (Store, error)
	// Load opens the saved store in dir, or returns ErrNotExist.
	Load(ctx context.Context, dir string) (Store, error)
}

// Backend names
const (
	BackendChromem = "chromem"
	BackendSQLite  = "sqlite"
)

// NewBackend returns the backend registered under name.
func NewBackend(name string) (Backend, error) {
	switch strings.ToLower(name) {
	case "", BackendChromem:
		return ChromemBackend{}, nil
	case BackendSQLite:
		return SQLiteBackend{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, name)
	}
}

// OpenIfExists loads the store in dir, returning (nil, nil) when none has
// been created yet.
func OpenIfExists(ctx context.Context, b Backend, dir string) (Store, error) {
	if !b.Exists(dir) {
		return nil, nil
	}
	s, err := b.Load(ctx, dir)
	if errors.Is(err, ErrNotExist) {
		return nil, nil
	}
	return s, err
}

// validateChunks checks embeddings and returns their common dimension.
func validateChunks(chunks []Chunk, dimension int) (int, error) {
	for i, c := range chunks {
		if len(c.Embedding) == 0 {
			return 0, fmt.Errorf("%w: chunk %d from %s", ErrEmptyEmbedding, i, c.Source)
		}
		if dimension == 0 {
			dimension = len(c.Embedding)
		}
		if len(c.Embedding) != dimension {
			return 0, fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, dimension, len(c.Embedding))
		}
	}
	return dimension, nil
}

// chunkMetadata merges the source into a copy of the chunk metadata.
func chunkMetadata(c Chunk) map[string]string {
	md := make(map[string]string, len(c.Metadata)+1)
	for k, v := range c.Metadata {
		md[k] = v
	}
	md[MetadataSource] = c.Source
	return md
}
