package embedder

import (
	"context"
	"strings"
)

// OllamaProvider implements Embedder using a local Ollama server's
// /api/embed endpoint.
type OllamaProvider struct {
	*remoteProvider
	baseURL string
}

// NewOllamaProvider creates an Ollama embedder. An empty model or base URL
// selects the defaults.
func NewOllamaProvider(cfg Config, cache *Cache) (*OllamaProvider, error) {
	model := cfg.Model
	if model == "" {
		model = DefaultOllamaModel
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultOllamaBaseURL
	}

	o := &OllamaProvider{
		remoteProvider: newRemoteProvider(ProviderOllama, model, cfg.Timeout, cache, cfg.Retry),
		baseURL:        baseURL,
	}
	o.call = o.callAPI
	return o, nil
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (o *OllamaProvider) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	var resp ollamaEmbedResponse
	err := o.postJSON(ctx, o.baseURL+"/api/embed", nil,
		ollamaEmbedRequest{Model: o.model, Input: texts}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Embeddings, nil
}
