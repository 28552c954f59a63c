package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/dirrag/internal/embedder"
	"github.com/dshills/dirrag/internal/llm"
	"github.com/dshills/dirrag/internal/searcher"
	"github.com/dshills/dirrag/internal/vectorstore"
)

type fakeChat struct {
	reply    string
	err      error
	messages []llm.Message
}

func (f *fakeChat) Generate(_ context.Context, messages []llm.Message) (string, error) {
	f.messages = messages
	return f.reply, f.err
}

func (f *fakeChat) Model() string { return "fake" }

func newSearcher(t *testing.T, texts ...string) *searcher.Searcher {
	t.Helper()
	ctx := context.Background()
	emb, err := embedder.NewLocalProvider(nil)
	require.NoError(t, err)

	chunks := make([]vectorstore.Chunk, len(texts))
	for i, text := range texts {
		e, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
		require.NoError(t, err)
		chunks[i] = vectorstore.Chunk{Source: "/docs/policy.txt", Content: text, Embedding: e.Vector}
	}
	store, err := vectorstore.ChromemBackend{}.Create(ctx, t.TempDir(), chunks)
	require.NoError(t, err)
	return searcher.NewSearcher(searcher.Static(store), emb)
}

func TestAsk(t *testing.T) {
	chat := &fakeChat{reply: "  Fourteen days.\n"}
	s := NewSession(newSearcher(t, "Refunds take fourteen days.", "Shipping is free."), chat, 1, nil)

	answer, err := s.Ask(context.Background(), "How long do refunds take?")
	require.NoError(t, err)
	assert.Equal(t, "Fourteen days.", answer.Text)
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, "policy.txt", answer.Sources[0].Metadata["source"])

	require.Len(t, chat.messages, 1)
	prompt := chat.messages[0].Content
	assert.Contains(t, prompt, "Context:\nRefunds take fourteen days.\n\nQuestion: How long do refunds take?")
	assert.Contains(t, prompt, "just say that you don't know")
	assert.NotContains(t, prompt, "Shipping")
}

func TestAsk_ChatError(t *testing.T) {
	chat := &fakeChat{err: errors.New("model unavailable")}
	s := NewSession(newSearcher(t, "text"), chat, 0, nil)

	_, err := s.Ask(context.Background(), "question")
	assert.ErrorContains(t, err, "model unavailable")
}

func TestAsk_NoIndex(t *testing.T) {
	emb, err := embedder.NewLocalProvider(nil)
	require.NoError(t, err)
	s := NewSession(searcher.NewSearcher(searcher.Static(nil), emb), &fakeChat{}, 5, nil)

	_, err = s.Ask(context.Background(), "question")
	assert.ErrorIs(t, err, searcher.ErrNoIndex)
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("ctx", "q?")
	assert.Contains(t, p, "Context:\nctx\n\nQuestion: q?\n\nAnswer:")
}

func TestIsExit(t *testing.T) {
	assert.True(t, IsExit("exit"))
	assert.True(t, IsExit(" QUIT \n"))
	assert.False(t, IsExit("exit now"))
	assert.False(t, IsExit(""))
}
