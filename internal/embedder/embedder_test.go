package embedder

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeHash(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", ComputeHash(""))
	assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", ComputeHash("hello world"))
	assert.Equal(t, ComputeHash("test"), ComputeHash("test"))
}

func TestValidateBatchRequest(t *testing.T) {
	tests := []struct {
		name    string
		texts   []string
		wantErr error
	}{
		{"valid", []string{"a", "b"}, nil},
		{"empty list", nil, ErrInvalidInput},
		{"empty text", []string{"a", ""}, ErrInvalidInput},
		{"too large", make([]string, MaxBatchSize+1), ErrBatchTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBatchRequest(BatchEmbeddingRequest{Texts: tt.texts})
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}

	assert.ErrorIs(t, ValidateRequest(EmbeddingRequest{}), ErrEmptyText)
}

func TestCache(t *testing.T) {
	t.Run("set and get copies", func(t *testing.T) {
		cache := NewCache(3)
		_, ok := cache.Get("missing")
		assert.False(t, ok)

		emb := &Embedding{Vector: []float32{1, 2, 3}, Dimension: 3, Hash: "h1"}
		cache.Set("h1", emb)
		emb.Vector[0] = 99

		got, ok := cache.Get("h1")
		require.True(t, ok)
		assert.Equal(t, []float32{1, 2, 3}, got.Vector)

		got.Vector[1] = 42
		again, _ := cache.Get("h1")
		assert.Equal(t, float32(2), again.Vector[1])
	})

	t.Run("evicts least recently used", func(t *testing.T) {
		cache := NewCache(2)
		cache.Set("a", &Embedding{Hash: "a"})
		cache.Set("b", &Embedding{Hash: "b"})
		cache.Get("a")
		cache.Set("c", &Embedding{Hash: "c"})

		assert.Equal(t, 2, cache.Size())
		_, ok := cache.Get("b")
		assert.False(t, ok)
		_, ok = cache.Get("a")
		assert.True(t, ok)
	})

	t.Run("clear", func(t *testing.T) {
		cache := NewCache(0)
		cache.Set("a", &Embedding{})
		cache.Clear()
		assert.Equal(t, 0, cache.Size())
	})

	t.Run("concurrent access", func(t *testing.T) {
		cache := NewCache(100)
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					hash := ComputeHash(fmt.Sprintf("text-%d-%d", id, j))
					cache.Set(hash, &Embedding{Vector: []float32{float32(id)}})
					cache.Get(hash)
				}
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 100, cache.Size())
	})
}

func TestLocalProvider(t *testing.T) {
	ctx := context.Background()
	p, err := NewLocalProvider(NewCache(10))
	require.NoError(t, err)

	assert.Equal(t, ProviderLocal, p.Provider())
	assert.Equal(t, DefaultLocalModel, p.Model())
	assert.Equal(t, LocalDimension, p.Dimension())

	a, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "refund policy for orders"})
	require.NoError(t, err)
	assert.Len(t, a.Vector, LocalDimension)

	again, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "refund policy for orders"})
	require.NoError(t, err)
	assert.Equal(t, a.Vector, again.Vector)

	related, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "what is the refund policy"})
	require.NoError(t, err)
	unrelated, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "volcanic basalt geology"})
	require.NoError(t, err)
	assert.Greater(t, dot(a.Vector, related.Vector), dot(a.Vector, unrelated.Vector))

	punct, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "!!!"})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, dot(punct.Vector, punct.Vector), 1e-5)

	_, err = p.GenerateEmbedding(ctx, EmbeddingRequest{})
	assert.ErrorIs(t, err, ErrEmptyText)

	batch, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"one", "two"}})
	require.NoError(t, err)
	assert.Len(t, batch.Embeddings, 2)
	assert.NoError(t, p.Close())
}

func TestNormalizeVector(t *testing.T) {
	v := NormalizeVector([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)
	assert.Equal(t, []float32{0, 0}, NormalizeVector([]float32{0, 0}))
}

func TestEmbedTexts(t *testing.T) {
	ctx := context.Background()
	p, err := NewLocalProvider(nil)
	require.NoError(t, err)

	texts := make([]string, 23)
	for i := range texts {
		texts[i] = fmt.Sprintf("chunk number %d", i)
	}

	vectors, err := EmbedTexts(ctx, p, texts, 5, 3)
	require.NoError(t, err)
	require.Len(t, vectors, len(texts))
	for i, text := range texts {
		emb, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: text})
		require.NoError(t, err)
		assert.Equal(t, emb.Vector, vectors[i], "vector %d out of order", i)
	}

	empty, err := EmbedTexts(ctx, p, nil, 5, 3)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

type failingEmbedder struct {
	LocalProvider
	failOn string
}

func (f *failingEmbedder) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	for _, text := range req.Texts {
		if strings.Contains(text, f.failOn) {
			return nil, fmt.Errorf("%w: boom", ErrProviderFailed)
		}
	}
	return f.LocalProvider.GenerateBatch(ctx, req)
}

func TestEmbedTextsPropagatesFailure(t *testing.T) {
	f := &failingEmbedder{LocalProvider: LocalProvider{model: DefaultLocalModel}, failOn: "bad"}
	_, err := EmbedTexts(context.Background(), f, []string{"good", "good", "bad", "good"}, 1, 2)
	assert.ErrorIs(t, err, ErrProviderFailed)
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i] * b[i])
	}
	return s
}
