// Package rag answers questions with a chat model grounded on chunks
// retrieved from the vector store.
package rag

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/dshills/dirrag/internal/llm"
	"github.com/dshills/dirrag/internal/searcher"
)

// PromptTemplate frames the retrieved context and the question. The first
// %s is the context, the second the question.
const PromptTemplate = `You are a helpful assistant that provides accurate information based on
the given context. If you don't know the answer based on the context,
just say that you don't know. Don't try to make up an answer.

Context:
%s

Question: %s

Answer:
`

// Answer is a model reply with the chunks it was given.
type Answer struct {
	Text    string                   `json:"answer"`
	Sources []searcher.SourcePreview `json:"sources"`
}

// Session runs retrieval-augmented questions against one store.
type Session struct {
	searcher *searcher.Searcher
	chat     llm.Chat
	k        int
	logger   *slog.Logger
}

// NewSession creates a session retrieving k chunks per question.
func NewSession(s *searcher.Searcher, chat llm.Chat, k int, logger *slog.Logger) *Session {
	if k <= 0 {
		k = searcher.DefaultLimit
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Session{searcher: s, chat: chat, k: k, logger: logger}
}

// BuildPrompt fills PromptTemplate.
func BuildPrompt(contextText, question string) string {
	return fmt.Sprintf(PromptTemplate, contextText, question)
}

// Ask retrieves context for question and asks the chat model.
func (s *Session) Ask(ctx context.Context, question string) (*Answer, error) {
	question = strings.TrimSpace(question)

	resp, err := s.searcher.Search(ctx, searcher.SearchRequest{Query: question, Limit: s.k})
	if err != nil {
		return nil, err
	}
	s.logger.Info("retrieved documents", slog.Int("count", len(resp.Results)))

	prompt := BuildPrompt(searcher.FormatContext(resp.Results), question)
	text, err := s.chat.Generate(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}})
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	return &Answer{
		Text:    strings.TrimSpace(text),
		Sources: searcher.Previews(resp.Results),
	}, nil
}

// IsExit reports whether input ends an interactive session.
func IsExit(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "exit", "quit":
		return true
	}
	return false
}
