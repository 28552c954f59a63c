package embedder

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds the sub-batches in flight for one EmbedTexts call
const DefaultConcurrency = 4

// EmbedTexts embeds texts in sub-batches of batchSize with at most
// concurrency requests in flight. Vectors are returned in input order.
// The first failure cancels the remaining sub-batches.
func EmbedTexts(ctx context.Context, e Embedder, texts []string, batchSize, concurrency int) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if batchSize <= 0 || batchSize > MaxBatchSize {
		batchSize = DefaultBatchSize
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	vectors := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for start := 0; start < len(texts); start += batchSize {
		start := start
		end := min(start+batchSize, len(texts))

		g.Go(func() error {
			resp, err := e.GenerateBatch(gctx, BatchEmbeddingRequest{Texts: texts[start:end]})
			if err != nil {
				return fmt.Errorf("embedding texts %d-%d: %w", start, end-1, err)
			}
			if len(resp.Embeddings) != end-start {
				return fmt.Errorf("%w: expected %d embeddings, got %d", ErrProviderFailed, end-start, len(resp.Embeddings))
			}
			// Each goroutine writes a disjoint range
			for i, emb := range resp.Embeddings {
				vectors[start+i] = emb.Vector
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}
