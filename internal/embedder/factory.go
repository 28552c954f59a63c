package embedder

import (
	"fmt"
	"strings"
	"time"
)

// Config holds embedder configuration. Values come from the caller; this
// package never reads the environment.
type Config struct {
	Provider  string
	Model     string
	APIKey    string
	BaseURL   string
	CacheSize int // 0 uses DefaultCacheSize, negative disables caching
	Timeout   time.Duration
	Retry     RetryConfig
}

// New creates an embedder with explicit configuration. An empty provider
// selects OpenAI.
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize >= 0 {
		cache = NewCache(cfg.CacheSize)
	}

	switch strings.ToLower(cfg.Provider) {
	case "", ProviderOpenAI:
		return NewOpenAIProvider(cfg, cache)
	case ProviderOllama:
		return NewOllamaProvider(cfg, cache)
	case ProviderLocal:
		return NewLocalProvider(cache)
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// Providers lists the supported provider names
func Providers() []string {
	return []string{ProviderOpenAI, ProviderOllama, ProviderLocal}
}
