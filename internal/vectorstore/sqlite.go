package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dshills/dirrag/internal/sqlitedb"
	"github.com/google/uuid"
)

// SQLiteIndexFile is the database holding chunks for the SQLite backend.
const SQLiteIndexFile = "index.db"

// deleteBatchSize stays below SQLite's default host parameter limit.
const deleteBatchSize = 500

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS chunks (
	id TEXT PRIMARY KEY,
	source TEXT NOT NULL,
	content TEXT NOT NULL,
	metadata TEXT NOT NULL,
	vector BLOB NOT NULL,
	dimension INTEGER NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source);
`

// SQLiteBackend keeps chunks and vectors in one SQLite table. Builds with
// the sqlite_vec tag rank with vec_distance_cosine; other builds rank in Go.
type SQLiteBackend struct{}

// Name returns the backend name
func (SQLiteBackend) Name() string { return BackendSQLite }

// Exists reports whether the index database is present.
func (SQLiteBackend) Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, SQLiteIndexFile))
	return err == nil
}

// Create opens a fresh index database in dir and inserts chunks.
func (b SQLiteBackend) Create(ctx context.Context, dir string, chunks []Chunk) (Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	s, err := openSQLiteStore(ctx, dir)
	if err != nil {
		return nil, err
	}
	if err := s.Add(ctx, chunks); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Load opens the existing index database in dir.
func (b SQLiteBackend) Load(ctx context.Context, dir string) (Store, error) {
	if !b.Exists(dir) {
		return nil, ErrNotExist
	}
	return openSQLiteStore(ctx, dir)
}

type sqliteStore struct {
	db *sql.DB

	// mu serializes Add and guards dimension.
	mu        sync.RWMutex
	dimension int
}

func openSQLiteStore(ctx context.Context, dir string) (*sqliteStore, error) {
	db, err := sqlitedb.Open(ctx, filepath.Join(dir, SQLiteIndexFile))
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create chunks table: %w", err)
	}

	s := &sqliteStore{db: db}
	var dim sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT MAX(dimension) FROM chunks`).Scan(&dim); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to read dimension: %w", err)
	}
	s.dimension = int(dim.Int64)
	return s, nil
}

func (s *sqliteStore) Add(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dim, err := validateChunks(chunks, s.dimension)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, source, content, metadata, vector, dimension)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, c := range chunks {
		id := c.ID
		if id == "" {
			id = uuid.NewString()
		}
		md, err := json.Marshal(chunkMetadata(c))
		if err != nil {
			return fmt.Errorf("failed to encode metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, id, c.Source, c.Content, string(md),
			serializeVector(c.Embedding), len(c.Embedding)); err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunks: %w", err)
	}
	s.dimension = dim
	return nil
}

func (s *sqliteStore) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for start := 0; start < len(ids); start += deleteBatchSize {
		end := min(start+deleteBatchSize, len(ids))
		batch := ids[start:end]

		placeholders := make([]string, len(batch))
		args := make([]interface{}, len(batch))
		for i, id := range batch {
			placeholders[i] = "?"
			args[i] = id
		}
		query := `DELETE FROM chunks WHERE id IN (` + strings.Join(placeholders, ",") + `)`
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to delete chunks: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	return nil
}

func (s *sqliteStore) Sources(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, source FROM chunks`)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]string)
	for rows.Next() {
		var id, source string
		if err := rows.Scan(&id, &source); err != nil {
			return nil, err
		}
		out[id] = source
	}
	return out, rows.Err()
}

func (s *sqliteStore) Search(ctx context.Context, vector []float32, k int) ([]Result, error) {
	s.mu.RLock()
	dim := s.dimension
	s.mu.RUnlock()
	if dim != 0 && len(vector) != dim {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, dim, len(vector))
	}
	if sqlitedb.VectorExtensionAvailable {
		return s.searchExtension(ctx, vector, k)
	}
	return s.searchScan(ctx, vector, k)
}

// searchExtension ranks inside SQLite. vec_distance_cosine returns a
// distance, so similarity is 1 - distance.
func (s *sqliteStore) searchExtension(ctx context.Context, vector []float32, k int) ([]Result, error) {
	query := `
		SELECT id, source, content, metadata, vector,
			1.0 - vec_distance_cosine(vector, ?) AS similarity
		FROM chunks
		ORDER BY similarity DESC, id ASC
	`
	args := []interface{}{serializeVector(vector)}
	if k > 0 {
		query += " LIMIT ?"
		args = append(args, k)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []Result
	for rows.Next() {
		var r Result
		var blob []byte
		var md string
		if err := rows.Scan(&r.Chunk.ID, &r.Chunk.Source, &r.Chunk.Content, &md, &blob, &r.Similarity); err != nil {
			return nil, err
		}
		if err := decodeMetadata(md, &r.Chunk); err != nil {
			return nil, err
		}
		r.Chunk.Embedding = deserializeVector(blob)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if results == nil {
		results = []Result{}
	}
	return results, nil
}

// searchScan loads every vector and ranks in Go.
func (s *sqliteStore) searchScan(ctx context.Context, vector []float32, k int) ([]Result, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, source, content, metadata, vector FROM chunks`)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := []Result{}
	for rows.Next() {
		var r Result
		var blob []byte
		var md string
		if err := rows.Scan(&r.Chunk.ID, &r.Chunk.Source, &r.Chunk.Content, &md, &blob); err != nil {
			return nil, err
		}
		if err := decodeMetadata(md, &r.Chunk); err != nil {
			return nil, err
		}
		r.Chunk.Embedding = deserializeVector(blob)
		r.Similarity = cosineSimilarity(vector, r.Chunk.Embedding)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortResults(results)
	return topK(results, k), nil
}

func decodeMetadata(raw string, c *Chunk) error {
	if err := json.Unmarshal([]byte(raw), &c.Metadata); err != nil {
		return fmt.Errorf("failed to decode metadata for %s: %w", c.ID, err)
	}
	return nil
}

func (s *sqliteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

// Save checkpoints the WAL so the main database file is current.
func (s *sqliteStore) Save(ctx context.Context) error {
	return sqlitedb.Checkpoint(ctx, s.db)
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}
