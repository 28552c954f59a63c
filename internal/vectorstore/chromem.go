package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"
)

const (
	// ChromemDocstoreFile holds the chunk id -> metadata mapping and names
	// the collection file it was saved with. Renaming it into place is the
	// commit point of a save.
	ChromemDocstoreFile = "index.json"

	chromemCollection = "documents"
	docstoreVersion   = 2
)

// chromemIndexFile names the exported collection of one save generation.
func chromemIndexFile(generation int) string {
	return fmt.Sprintf("index.%06d.chromem.gob.gz", generation)
}

var errEmbeddingRequired = errors.New("chunks must be embedded before they are added")

// noEmbedding keeps chromem-go from computing embeddings on its own.
func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, errEmbeddingRequired
}

// ChromemBackend persists stores with chromem-go export files.
type ChromemBackend struct{}

// Name returns the backend name
func (ChromemBackend) Name() string { return BackendChromem }

// Exists reports whether a docstore and the collection it names are saved.
func (ChromemBackend) Exists(dir string) bool {
	ds, err := readDocstore(filepath.Join(dir, ChromemDocstoreFile))
	if err != nil {
		return false
	}
	_, err = os.Stat(filepath.Join(dir, ds.Collection))
	return err == nil
}

// Create builds a new in-memory store from chunks. Nothing is written
// until Save.
func (b ChromemBackend) Create(ctx context.Context, dir string, chunks []Chunk) (Store, error) {
	db := chromem.NewDB()
	collection, err := db.CreateCollection(chromemCollection, nil, noEmbedding)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	s := &chromemStore{
		dir:        dir,
		db:         db,
		collection: collection,
		docs:       make(map[string]map[string]string),
	}
	if err := s.Add(ctx, chunks); err != nil {
		return nil, err
	}
	return s, nil
}

// Load imports the last committed save from dir. The collection must hold
// exactly the chunk ids listed in the docstore.
func (b ChromemBackend) Load(ctx context.Context, dir string) (Store, error) {
	docPath := filepath.Join(dir, ChromemDocstoreFile)
	if _, err := os.Stat(docPath); errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotExist
	}
	ds, err := readDocstore(docPath)
	if err != nil {
		return nil, err
	}

	db := chromem.NewDB()
	if err := db.ImportFromFile(filepath.Join(dir, ds.Collection), ""); err != nil {
		return nil, fmt.Errorf("failed to import vector store: %w", err)
	}
	collection := db.GetCollection(chromemCollection, noEmbedding)
	if collection == nil {
		return nil, fmt.Errorf("%w: %s has no %q collection", ErrInconsistent, dir, chromemCollection)
	}
	if collection.Count() != len(ds.Chunks) {
		return nil, fmt.Errorf("%w: %s has %d vectors and %d docstore entries",
			ErrInconsistent, dir, collection.Count(), len(ds.Chunks))
	}
	for id := range ds.Chunks {
		if _, err := collection.GetByID(ctx, id); err != nil {
			return nil, fmt.Errorf("%w: chunk %s is missing from %s", ErrInconsistent, id, ds.Collection)
		}
	}

	return &chromemStore{
		dir:        dir,
		db:         db,
		collection: collection,
		docs:       ds.Chunks,
		dimension:  ds.Dimension,
		generation: ds.Generation,
	}, nil
}

// docstore is the JSON sidecar saved next to the collection.
type docstore struct {
	Version    int                          `json:"version"`
	Generation int                          `json:"generation"`
	Collection string                       `json:"collection"`
	Dimension  int                          `json:"dimension"`
	Chunks     map[string]map[string]string `json:"chunks"`
}

func readDocstore(path string) (*docstore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read docstore: %w", err)
	}
	var ds docstore
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("failed to decode docstore: %w", err)
	}
	if ds.Version != docstoreVersion {
		return nil, fmt.Errorf("unsupported docstore version %d", ds.Version)
	}
	if ds.Collection != chromemIndexFile(ds.Generation) {
		return nil, fmt.Errorf("%w: docstore names unexpected collection file %q", ErrInconsistent, ds.Collection)
	}
	if ds.Chunks == nil {
		ds.Chunks = make(map[string]map[string]string)
	}
	return &ds, nil
}

// chromemStore is a Store backed by one chromem-go collection.
type chromemStore struct {
	mu         sync.RWMutex
	dir        string
	db         *chromem.DB
	collection *chromem.Collection
	docs       map[string]map[string]string // chunk id -> metadata
	dimension  int
	generation int // last committed save
}

func (s *chromemStore) Add(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dim, err := validateChunks(chunks, s.dimension)
	if err != nil {
		return err
	}

	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		id := c.ID
		if id == "" {
			id = uuid.NewString()
		}
		docs[i] = chromem.Document{
			ID:        id,
			Content:   c.Content,
			Embedding: c.Embedding,
			Metadata:  chunkMetadata(c),
		}
	}

	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	for _, d := range docs {
		s.docs[d.ID] = d.Metadata
	}
	s.dimension = dim
	return nil
}

func (s *chromemStore) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.collection.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	for _, id := range ids {
		delete(s.docs, id)
	}
	return nil
}

func (s *chromemStore) Sources(_ context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.docs))
	for id, md := range s.docs {
		out[id] = md[MetadataSource]
	}
	return out, nil
}

func (s *chromemStore) Search(ctx context.Context, vector []float32, k int) ([]Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := s.collection.Count()
	if k <= 0 || k > n {
		k = n
	}
	if k == 0 {
		return []Result{}, nil
	}
	if s.dimension != 0 && len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, s.dimension, len(vector))
	}

	hits, err := s.collection.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}

	results := make([]Result, len(hits))
	for i, h := range hits {
		md := make(map[string]string, len(h.Metadata))
		for key, v := range h.Metadata {
			md[key] = v
		}
		results[i] = Result{
			Chunk: Chunk{
				ID:        h.ID,
				Source:    md[MetadataSource],
				Content:   h.Content,
				Metadata:  md,
				Embedding: h.Embedding,
			},
			Similarity: float64(h.Similarity),
		}
	}
	sortResults(results)
	return results, nil
}

func (s *chromemStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collection.Count(), nil
}

// Save exports the collection under a new generation, then commits it by
// renaming a docstore that names that generation into place. A crash
// before the rename leaves the previous save intact.
func (s *chromemStore) Save(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	generation := max(s.generation, committedGeneration(s.dir)) + 1
	indexName := chromemIndexFile(generation)
	indexPath := filepath.Join(s.dir, indexName)
	indexTmp := indexPath + ".tmp"
	if err := s.db.ExportToFile(indexTmp, true, "", chromemCollection); err != nil {
		_ = os.Remove(indexTmp)
		return fmt.Errorf("failed to export collection: %w", err)
	}
	if err := syncFile(indexTmp); err != nil {
		_ = os.Remove(indexTmp)
		return err
	}
	if err := os.Rename(indexTmp, indexPath); err != nil {
		_ = os.Remove(indexTmp)
		return fmt.Errorf("failed to publish collection file: %w", err)
	}

	data, err := json.Marshal(docstore{
		Version:    docstoreVersion,
		Generation: generation,
		Collection: indexName,
		Dimension:  s.dimension,
		Chunks:     s.docs,
	})
	if err != nil {
		return fmt.Errorf("failed to encode docstore: %w", err)
	}
	docPath := filepath.Join(s.dir, ChromemDocstoreFile)
	docTmp := docPath + ".tmp"
	if err := writeFileSync(docTmp, data); err != nil {
		return err
	}
	if err := os.Rename(docTmp, docPath); err != nil {
		return fmt.Errorf("failed to commit docstore: %w", err)
	}
	if err := syncDir(s.dir); err != nil {
		return err
	}
	s.generation = generation

	s.removeStaleGenerations(indexName)
	return nil
}

// committedGeneration returns the generation of the docstore saved in dir,
// or 0 when there is none.
func committedGeneration(dir string) int {
	ds, err := readDocstore(filepath.Join(dir, ChromemDocstoreFile))
	if err != nil {
		return 0
	}
	return ds.Generation
}

// removeStaleGenerations deletes collection files other than current. They
// belong to earlier saves or to saves that never committed.
func (s *chromemStore) removeStaleGenerations(current string) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "index.*.chromem.gob.gz*"))
	if err != nil {
		return
	}
	for _, m := range matches {
		if filepath.Base(m) != current {
			_ = os.Remove(m)
		}
	}
}

func (s *chromemStore) Close() error {
	return nil
}

// writeFileSync writes data and fsyncs it before returning.
func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	return f.Close()
}

// syncFile fsyncs an existing file.
func syncFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	return f.Close()
}

// syncDir makes renames inside dir durable.
func syncDir(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	return syncFile(dir)
}
