// Package embedder generates vector embeddings for document chunks.
//
// Three providers are available: OpenAI (the default, or any endpoint
// speaking the OpenAI embeddings API), Ollama via /api/embed, and a local
// feature-hashing provider that works offline.
//
// # Basic Usage
//
//	emb, err := embedder.New(embedder.Config{
//	    Provider: embedder.ProviderOpenAI,
//	    APIKey:   cfg.Embedding.APIKey,
//	})
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	result, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{
//	    Text: "How are refunds processed?",
//	})
//
// # Batch Processing
//
// GenerateBatch accepts up to MaxBatchSize texts. EmbedTexts splits a longer
// list into sub-batches and runs them concurrently with errgroup, returning
// vectors in input order:
//
//	vectors, err := embedder.EmbedTexts(ctx, emb, texts, embedder.DefaultBatchSize, 4)
//
// # Caching
//
// Providers keep an LRU cache keyed by the SHA-256 of the text. Only cache
// misses reach the remote API. Cached embeddings are copied on the way in
// and out.
//
// # Retries
//
// Remote calls retry with exponential backoff (100ms doubling up to 5s,
// three attempts). Rate limiting (429) and server errors are retried; other
// client errors fail at once. Failures wrap ErrProviderFailed.
//
// # Dimensions
//
// Dimension reports the vector size for well-known models, otherwise the
// size of the first vector returned. A provider rejects responses whose
// size differs from the one it has seen.
package embedder
