// Package llm talks to chat models that answer questions from retrieved
// context.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Provider names
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	DefaultOpenAIModel   = "gpt-4o"
	DefaultOllamaModel   = "llama3.2"
	DefaultTemperature   = 0.7
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOllamaBaseURL = "http://localhost:11434"

	defaultTimeout = 5 * time.Minute
)

var (
	// ErrNoAPIKey is returned when a hosted provider has no key
	ErrNoAPIKey = errors.New("chat api key not set")
	// ErrUnknownProvider is returned for an unsupported provider name
	ErrUnknownProvider = errors.New("unknown chat provider")
	// ErrEmptyResponse is returned when the model sends no content
	ErrEmptyResponse = errors.New("chat model returned no content")
)

// Roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat generates a reply to a conversation.
type Chat interface {
	Generate(ctx context.Context, messages []Message) (string, error)
	Model() string
}

// Config selects and configures a chat provider.
type Config struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Temperature *float64 // nil uses DefaultTemperature
	Timeout     time.Duration
}

// New creates the chat client named by cfg.Provider. An empty provider
// selects OpenAI.
func New(cfg Config) (Chat, error) {
	temperature := DefaultTemperature
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := &http.Client{Timeout: timeout}

	switch strings.ToLower(cfg.Provider) {
	case "", ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, ErrNoAPIKey
		}
		return &OpenAIChat{
			baseURL:     orDefault(strings.TrimRight(cfg.BaseURL, "/"), DefaultOpenAIBaseURL),
			apiKey:      cfg.APIKey,
			model:       orDefault(cfg.Model, DefaultOpenAIModel),
			temperature: temperature,
			client:      client,
		}, nil
	case ProviderOllama:
		return &OllamaChat{
			baseURL:     orDefault(strings.TrimRight(cfg.BaseURL, "/"), DefaultOllamaBaseURL),
			model:       orDefault(cfg.Model, DefaultOllamaModel),
			temperature: temperature,
			client:      client,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// OpenAIChat calls the chat completions API.
type OpenAIChat struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	client      *http.Client
}

// Model returns the configured model name.
func (c *OpenAIChat) Model() string { return c.model }

type openAIChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Generate sends the conversation and returns the first choice.
func (c *OpenAIChat) Generate(ctx context.Context, messages []Message) (string, error) {
	var resp openAIChatResponse
	err := postJSON(ctx, c.client, c.baseURL+"/chat/completions",
		map[string]string{"Authorization": "Bearer " + c.apiKey},
		openAIChatRequest{Model: c.model, Messages: messages, Temperature: c.temperature},
		&resp)
	if err != nil {
		return "", fmt.Errorf("openai chat request: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

// OllamaChat calls the Ollama /api/chat endpoint for generative responses.
type OllamaChat struct {
	baseURL     string
	model       string
	temperature float64
	client      *http.Client
}

// Model returns the configured model name.
func (c *OllamaChat) Model() string { return c.model }

type ollamaChatRequest struct {
	Model    string             `json:"model"`
	Messages []Message          `json:"messages"`
	Stream   bool               `json:"stream"`
	Options  map[string]float64 `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message Message `json:"message"`
}

// Generate sends a conversation to Ollama and returns the assistant's response.
func (c *OllamaChat) Generate(ctx context.Context, messages []Message) (string, error) {
	var resp ollamaChatResponse
	err := postJSON(ctx, c.client, c.baseURL+"/api/chat", nil,
		ollamaChatRequest{
			Model:    c.model,
			Messages: messages,
			Stream:   false,
			Options:  map[string]float64{"temperature": c.temperature},
		},
		&resp)
	if err != nil {
		return "", fmt.Errorf("ollama chat request: %w", err)
	}
	if resp.Message.Content == "" {
		return "", ErrEmptyResponse
	}
	return resp.Message.Content, nil
}

func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("returned %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
