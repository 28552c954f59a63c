package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dshills/dirrag/internal/chunker"
	"github.com/dshills/dirrag/internal/embedder"
	"github.com/dshills/dirrag/internal/indexer"
	"github.com/dshills/dirrag/internal/loader"
	"github.com/dshills/dirrag/internal/searcher"
	"github.com/dshills/dirrag/internal/tracker"
	"github.com/dshills/dirrag/internal/vectorstore"
)

// pipeline is the ledger, store and embedder behind one command.
type pipeline struct {
	tracker  *tracker.Tracker
	mutator  *indexer.Mutator
	embedder embedder.Embedder
	indexer  *indexer.Indexer
	searcher *searcher.Searcher
}

func (a *app) openPipeline(ctx context.Context, observer indexer.Observer) (*pipeline, error) {
	cfg := a.cfg

	backend, err := vectorstore.NewBackend(cfg.Store.Backend)
	if err != nil {
		return nil, err
	}
	splitter, err := chunker.New(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		return nil, err
	}
	emb, err := embedder.New(cfg.EmbedderConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	if err := os.MkdirAll(cfg.VectorDBPath, 0o755); err != nil {
		_ = emb.Close()
		return nil, fmt.Errorf("failed to create %s: %w", cfg.VectorDBPath, err)
	}

	tr, err := tracker.Open(ctx, cfg.VectorDBPath, a.logger)
	if err != nil {
		_ = emb.Close()
		return nil, err
	}
	m, err := indexer.NewMutator(ctx, backend, cfg.VectorDBPath, a.logger)
	if err != nil {
		_ = tr.Close()
		_ = emb.Close()
		return nil, err
	}

	files := loader.New(a.logger)
	idx, err := indexer.New(indexer.Options{
		Lister:      files,
		Loader:      files,
		Splitter:    splitter,
		Embedder:    emb,
		Tracker:     tr,
		Mutator:     m,
		Logger:      a.logger,
		Observer:    observer,
		Extensions:  cfg.Extensions,
		BatchSize:   cfg.Embedding.BatchSize,
		Concurrency: cfg.Embedding.Concurrency,
	})
	if err != nil {
		_ = m.Close()
		_ = tr.Close()
		_ = emb.Close()
		return nil, err
	}

	return &pipeline{
		tracker:  tr,
		mutator:  m,
		embedder: emb,
		indexer:  idx,
		searcher: searcher.NewSearcher(m, emb),
	}, nil
}

func (p *pipeline) Close() error {
	return errors.Join(p.mutator.Close(), p.tracker.Close(), p.embedder.Close())
}
