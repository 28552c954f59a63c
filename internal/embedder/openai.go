package embedder

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// OpenAIProvider implements Embedder using the OpenAI embeddings API or any
// compatible endpoint.
type OpenAIProvider struct {
	*remoteProvider
	apiKey  string
	baseURL string
}

// NewOpenAIProvider creates an OpenAI embedder. An empty model or base URL
// selects the defaults.
func NewOpenAIProvider(cfg Config, cache *Cache) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai api key not set", ErrNoProviderEnabled)
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}

	o := &OpenAIProvider{
		remoteProvider: newRemoteProvider(ProviderOpenAI, model, cfg.Timeout, cache, cfg.Retry),
		apiKey:         cfg.APIKey,
		baseURL:        baseURL,
	}
	o.call = o.callAPI
	return o, nil
}

func (o *OpenAIProvider) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}

	err := o.postJSON(ctx, o.baseURL+"/embeddings",
		map[string]string{"Authorization": "Bearer " + o.apiKey},
		map[string]interface{}{"input": texts, "model": o.model},
		&apiResp)
	if err != nil {
		return nil, err
	}

	// The API may return items out of order
	sort.Slice(apiResp.Data, func(i, j int) bool {
		return apiResp.Data[i].Index < apiResp.Data[j].Index
	})

	vectors := make([][]float32, len(apiResp.Data))
	for i, d := range apiResp.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}
