package searcher

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/dshills/dirrag/internal/embedder"
	"github.com/dshills/dirrag/internal/vectorstore"
)

const (
	// DefaultLimit is the number of chunks retrieved per question
	DefaultLimit = 10
	// MaxLimit caps a single request
	MaxLimit = 100

	// PreviewChars is how many runes of each end of a chunk a preview shows
	PreviewChars = 100

	cacheSize = 1000
	cacheTTL  = time.Hour
)

var (
	// ErrEmptyQuery is returned for a blank query
	ErrEmptyQuery = errors.New("query cannot be empty")
	// ErrNoIndex is returned when nothing has been indexed yet
	ErrNoIndex = errors.New("vector store has not been created")
)

// noiseMetadata are PDF producer fields hidden from previews
var noiseMetadata = []string{"producer", "creator", "creationdate", "moddate", "total_pages"}

// StoreProvider exposes the current vector store, which may not exist yet.
type StoreProvider interface {
	Store() (vectorstore.Store, bool)
}

// staticStore is a StoreProvider over a store opened by the caller.
type staticStore struct{ store vectorstore.Store }

func (s staticStore) Store() (vectorstore.Store, bool) { return s.store, s.store != nil }

// Static wraps an open store as a StoreProvider.
func Static(store vectorstore.Store) StoreProvider {
	return staticStore{store: store}
}

// SearchRequest contains parameters for a search operation
type SearchRequest struct {
	Query    string
	Limit    int
	UseCache bool
}

// Result is one retrieved chunk
type Result struct {
	Rank       int               `json:"rank"`
	ID         string            `json:"id"`
	Source     string            `json:"source"`
	Content    string            `json:"content"`
	Metadata   map[string]string `json:"metadata"`
	Similarity float64           `json:"similarity"`
}

// SearchResponse contains search results and metadata
type SearchResponse struct {
	Results      []Result      `json:"results"`
	TotalResults int           `json:"total_results"`
	Duration     time.Duration `json:"duration"`
	CacheHit     bool          `json:"cache_hit"`
}

// Searcher embeds queries and retrieves the most similar chunks.
type Searcher struct {
	stores   StoreProvider
	embedder embedder.Embedder
	cache    *expirable.LRU[[32]byte, []Result]
}

// NewSearcher creates a Searcher. Cached responses expire after an hour.
func NewSearcher(stores StoreProvider, emb embedder.Embedder) *Searcher {
	return &Searcher{
		stores:   stores,
		embedder: emb,
		cache:    expirable.NewLRU[[32]byte, []Result](cacheSize, nil, cacheTTL),
	}
}

// Search returns up to req.Limit chunks ordered by descending similarity.
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	start := time.Now()

	if err := validateRequest(&req); err != nil {
		return nil, fmt.Errorf("invalid search request: %w", err)
	}

	key := computeQueryHash(req)
	if req.UseCache {
		if cached, ok := s.cache.Get(key); ok {
			results := copyResults(cached)
			return &SearchResponse{
				Results:      results,
				TotalResults: len(results),
				Duration:     time.Since(start),
				CacheHit:     true,
			}, nil
		}
	}

	store, ok := s.stores.Store()
	if !ok {
		return nil, ErrNoIndex
	}

	emb, err := s.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: req.Query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := store.Search(ctx, emb.Vector, req.Limit)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	results := make([]Result, len(hits))
	for i, h := range hits {
		results[i] = Result{
			Rank:       i + 1,
			ID:         h.Chunk.ID,
			Source:     h.Chunk.Source,
			Content:    h.Chunk.Content,
			Metadata:   h.Chunk.Metadata,
			Similarity: h.Similarity,
		}
	}

	if req.UseCache {
		s.cache.Add(key, copyResults(results))
	}

	return &SearchResponse{
		Results:      results,
		TotalResults: len(results),
		Duration:     time.Since(start),
	}, nil
}

// InvalidateCache drops all cached responses. Call it after the store changes.
func (s *Searcher) InvalidateCache() {
	s.cache.Purge()
}

func validateRequest(req *SearchRequest) error {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return ErrEmptyQuery
	}
	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}
	if req.Limit > MaxLimit {
		req.Limit = MaxLimit
	}
	return nil
}

func computeQueryHash(req SearchRequest) [32]byte {
	return sha256.Sum256([]byte(fmt.Sprintf("%s|%d", req.Query, req.Limit)))
}

func copyResults(src []Result) []Result {
	dst := make([]Result, len(src))
	for i, r := range src {
		dst[i] = r
		dst[i].Metadata = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			dst[i].Metadata[k] = v
		}
	}
	return dst
}

// FormatContext joins chunk contents with blank lines, in rank order.
func FormatContext(results []Result) string {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = r.Content
	}
	return strings.Join(parts, "\n\n")
}

// SourcePreview is a short description of a retrieved chunk.
type SourcePreview struct {
	Index    int               `json:"index"`
	Metadata map[string]string `json:"metadata"`
	Head     string            `json:"head"`
	Tail     string            `json:"tail"`
}

// Preview describes r without PDF producer noise, with the source reduced
// to its base name and the content flattened to one line.
func Preview(index int, r Result) SourcePreview {
	md := make(map[string]string, len(r.Metadata))
	for k, v := range r.Metadata {
		md[k] = v
	}
	for _, k := range noiseMetadata {
		delete(md, k)
	}
	if src, ok := md[vectorstore.MetadataSource]; ok {
		md[vectorstore.MetadataSource] = filepath.Base(src)
	}

	flat := []rune(strings.ReplaceAll(r.Content, "\n", " "))
	head, tail := flat, flat
	if len(flat) > PreviewChars {
		head = flat[:PreviewChars]
		tail = flat[len(flat)-PreviewChars:]
	}

	return SourcePreview{
		Index:    index,
		Metadata: md,
		Head:     string(head),
		Tail:     string(tail),
	}
}

// String renders the preview the way the query loop prints it.
func (p SourcePreview) String() string {
	md, _ := json.Marshal(p.Metadata)
	return fmt.Sprintf("Source [%d]:\n%s\n%s\n<... skipped ...>\n%s\n", p.Index, md, p.Head, p.Tail)
}

// Previews returns a preview for each result, numbered from 1.
func Previews(results []Result) []SourcePreview {
	out := make([]SourcePreview, len(results))
	for i, r := range results {
		out[i] = Preview(i+1, r)
	}
	return out
}
