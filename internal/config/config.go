// Package config loads dirrag settings from defaults, a YAML file, the
// environment and command-line flags.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dshills/dirrag/internal/chunker"
	"github.com/dshills/dirrag/internal/embedder"
	"github.com/dshills/dirrag/internal/llm"
	"github.com/dshills/dirrag/internal/loader"
	"github.com/dshills/dirrag/internal/vectorstore"
)

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete dirrag configuration.
type Config struct {
	DocsPaths    []string        `yaml:"docs_paths" mapstructure:"docs_paths"`
	VectorDBPath string          `yaml:"vector_db_path" mapstructure:"vector_db_path"`
	Extensions   []string        `yaml:"extensions" mapstructure:"extensions"`
	Chunking     ChunkingConfig  `yaml:"chunking" mapstructure:"chunking"`
	Embedding    EmbeddingConfig `yaml:"embedding" mapstructure:"embedding"`
	Chat         ChatConfig      `yaml:"chat" mapstructure:"chat"`
	Store        StoreConfig     `yaml:"store" mapstructure:"store"`
	TopK         int             `yaml:"top_k" mapstructure:"top_k"`
	LogLevel     string          `yaml:"log_level" mapstructure:"log_level"`
}

// ChunkingConfig sizes chunks in runes.
type ChunkingConfig struct {
	Size    int `yaml:"size" mapstructure:"size"`
	Overlap int `yaml:"overlap" mapstructure:"overlap"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	Provider    string `yaml:"provider" mapstructure:"provider"` // openai, ollama or local
	Model       string `yaml:"model" mapstructure:"model"`
	APIKey      string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	CacheSize   int    `yaml:"cache_size" mapstructure:"cache_size"`
	BatchSize   int    `yaml:"batch_size" mapstructure:"batch_size"`
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
}

// ChatConfig configures the model answering queries.
type ChatConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"` // openai or ollama
	Model       string  `yaml:"model" mapstructure:"model"`
	APIKey      string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// StoreConfig selects the vector store backend.
type StoreConfig struct {
	Backend string `yaml:"backend" mapstructure:"backend"` // chromem or sqlite
}

// Default returns a configuration with the built-in defaults.
func Default() *Config {
	return &Config{
		Extensions: append([]string(nil), loader.DefaultExtensions...),
		Chunking: ChunkingConfig{
			Size:    chunker.DefaultChunkSize,
			Overlap: chunker.DefaultChunkOverlap,
		},
		Embedding: EmbeddingConfig{
			Provider:    embedder.ProviderOpenAI,
			CacheSize:   embedder.DefaultCacheSize,
			BatchSize:   embedder.DefaultBatchSize,
			Concurrency: embedder.DefaultConcurrency,
		},
		Chat: ChatConfig{
			Provider:    llm.ProviderOpenAI,
			Temperature: llm.DefaultTemperature,
		},
		Store:    StoreConfig{Backend: vectorstore.BackendChromem},
		TopK:     10,
		LogLevel: "info",
	}
}

// Validate checks settings shared by every command. It does no I/O.
func (c *Config) Validate() error {
	errs := c.storeErrors()

	if c.Chunking.Size <= 0 {
		errs = append(errs, fmt.Errorf("chunk size must be positive, got %d", c.Chunking.Size))
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		errs = append(errs, fmt.Errorf("chunk overlap must be in [0, %d), got %d", c.Chunking.Size, c.Chunking.Overlap))
	}
	if !oneOf(c.Embedding.Provider, embedder.Providers()...) {
		errs = append(errs, fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider))
	}
	if strings.EqualFold(c.Embedding.Provider, embedder.ProviderOpenAI) && c.Embedding.APIKey == "" {
		errs = append(errs, errors.New("embedding api key is required for openai (set OPENAI_API_KEY)"))
	}
	if c.Embedding.BatchSize < 0 || c.Embedding.BatchSize > embedder.MaxBatchSize {
		errs = append(errs, fmt.Errorf("embedding batch size must be at most %d", embedder.MaxBatchSize))
	}
	if c.TopK <= 0 {
		errs = append(errs, fmt.Errorf("top_k must be positive, got %d", c.TopK))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	return wrapErrors(errs)
}

// ValidateStore checks only what is needed to open an existing index.
func (c *Config) ValidateStore() error {
	return wrapErrors(c.storeErrors())
}

func (c *Config) storeErrors() []error {
	var errs []error
	if strings.TrimSpace(c.VectorDBPath) == "" {
		errs = append(errs, errors.New("vector database path is not set"))
	}
	if _, err := vectorstore.NewBackend(c.Store.Backend); err != nil {
		errs = append(errs, err)
	}
	return errs
}

// ValidateDocs checks the document directories for an index pass.
func (c *Config) ValidateDocs() error {
	if len(c.DocsPaths) == 0 {
		return fmt.Errorf("%w: documents path is not set", ErrInvalidConfig)
	}
	var errs []error
	for _, p := range c.DocsPaths {
		info, err := os.Stat(p)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("documents path %s: %w", p, err))
		case !info.IsDir():
			errs = append(errs, fmt.Errorf("documents path %s is not a directory", p))
		}
	}
	return wrapErrors(errs)
}

// ValidateChat checks the chat settings needed by query.
func (c *Config) ValidateChat() error {
	if !oneOf(c.Chat.Provider, llm.ProviderOpenAI, llm.ProviderOllama) {
		return fmt.Errorf("%w: unknown chat provider %q", ErrInvalidConfig, c.Chat.Provider)
	}
	if strings.EqualFold(c.Chat.Provider, llm.ProviderOpenAI) && c.Chat.APIKey == "" {
		return fmt.Errorf("%w: chat api key is required for openai (set OPENAI_API_KEY)", ErrInvalidConfig)
	}
	return nil
}

// Redacted returns a copy with secrets masked.
func (c *Config) Redacted() *Config {
	out := *c
	out.DocsPaths = append([]string(nil), c.DocsPaths...)
	out.Extensions = append([]string(nil), c.Extensions...)
	out.Embedding.APIKey = redact(c.Embedding.APIKey)
	out.Chat.APIKey = redact(c.Chat.APIKey)
	return &out
}

// YAML renders the configuration with secrets masked.
func (c *Config) YAML() (string, error) {
	data, err := yaml.Marshal(c.Redacted())
	if err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}
	return string(data), nil
}

// SlogLevel returns the configured log level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// EmbedderConfig maps the embedding settings onto embedder.Config.
func (c *Config) EmbedderConfig() embedder.Config {
	return embedder.Config{
		Provider:  c.Embedding.Provider,
		Model:     c.Embedding.Model,
		APIKey:    c.Embedding.APIKey,
		BaseURL:   c.Embedding.BaseURL,
		CacheSize: c.Embedding.CacheSize,
	}
}

// LLMConfig maps the chat settings onto llm.Config.
func (c *Config) LLMConfig() llm.Config {
	temperature := c.Chat.Temperature
	return llm.Config{
		Provider:    c.Chat.Provider,
		Model:       c.Chat.Model,
		APIKey:      c.Chat.APIKey,
		BaseURL:     c.Chat.BaseURL,
		Temperature: &temperature,
	}
}

// ParseLevel parses debug, info, warn or error.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

// SplitPaths splits a path list on the OS list separator, dropping empty
// entries and cleaning the rest.
func SplitPaths(s string) []string {
	var out []string
	for _, p := range filepath.SplitList(s) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, filepath.Clean(p))
		}
	}
	return out
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if strings.EqualFold(v, o) {
			return true
		}
	}
	return false
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "****"
}

func wrapErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}
