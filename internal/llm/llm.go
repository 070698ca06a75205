// Package llm abstracts the language-model providers used for block
// classification and contract data extraction.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"iosplit/internal/fault"
)

// Provider is the interface for LLM providers. Generate is synchronous and
// bounded by ctx; callers own the timeout.
type Provider interface {
	Generate(ctx context.Context, system, prompt string, maxTokens int) (string, error)
	IsConfigured() bool
}

// AnthropicProvider calls the Anthropic Messages API.
type AnthropicProvider struct {
	Model   string
	BaseURL string
	APIKey  string
	client  *http.Client
}

// NewAnthropicProvider creates an Anthropic provider reading the key from
// the given environment variable.
func NewAnthropicProvider(model, baseURL, apiKeyEnv string) *AnthropicProvider {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	return &AnthropicProvider{
		Model:   model,
		BaseURL: baseURL,
		APIKey:  os.Getenv(apiKeyEnv),
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

// IsConfigured checks if the API key is set.
func (a *AnthropicProvider) IsConfigured() bool {
	return a.APIKey != ""
}

// Generate sends a prompt to Anthropic and returns the response text.
func (a *AnthropicProvider) Generate(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	if a.APIKey == "" {
		return "", fault.Unavailable(nil, "Anthropic API key not configured")
	}

	body := map[string]any{
		"model":      a.Model,
		"max_tokens": maxTokens,
		"system":     system,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": 0.1,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.BaseURL+"/v1/messages", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", classifyTransportError(err, "anthropic")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fault.Unavailable(nil, "anthropic API returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if len(result.Content) == 0 {
		return "", fault.DataQuality("anthropic response has no content blocks")
	}
	return result.Content[0].Text, nil
}

// OpenAIProvider is an OpenAI API provider.
type OpenAIProvider struct {
	Model  string
	APIKey string
	client *http.Client
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(model, apiKeyEnv string) *OpenAIProvider {
	return &OpenAIProvider{
		Model:  model,
		APIKey: os.Getenv(apiKeyEnv),
		client: &http.Client{Timeout: 120 * time.Second},
	}
}

// IsConfigured checks if the API key is set.
func (o *OpenAIProvider) IsConfigured() bool {
	return o.APIKey != ""
}

// Generate sends a prompt to OpenAI and returns the response.
func (o *OpenAIProvider) Generate(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	if o.APIKey == "" {
		return "", fault.Unavailable(nil, "OpenAI API key not configured")
	}

	body := map[string]any{
		"model": o.Model,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": prompt},
		},
		"max_tokens":  maxTokens,
		"temperature": 0.1,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", "https://api.openai.com/v1/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.APIKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", classifyTransportError(err, "openai")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fault.Unavailable(nil, "OpenAI API returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fault.DataQuality("no choices in OpenAI response")
	}
	return result.Choices[0].Message.Content, nil
}

// classifyTransportError distinguishes a deadline from an unreachable
// endpoint so callers can report retryability correctly.
func classifyTransportError(err error, provider string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fault.Timeout(err, "%s call exceeded its time budget", provider)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fault.Unavailable(err, "%s API unreachable", provider)
}

// CreateProvider creates an LLM provider based on configuration, falling
// back to OpenAI when the preferred provider is not configured.
func CreateProvider(provider, model, baseURL, openaiModel, apiKeyEnv, openaiKeyEnv string) Provider {
	if strings.ToLower(provider) != "openai" {
		p := NewAnthropicProvider(model, baseURL, apiKeyEnv)
		if p.IsConfigured() {
			log.Printf("Using Anthropic with model: %s", model)
			return p
		}
		log.Println("Anthropic not configured, trying OpenAI fallback...")
	}

	p := NewOpenAIProvider(openaiModel, openaiKeyEnv)
	if p.IsConfigured() {
		log.Printf("Using OpenAI with model: %s", openaiModel)
		return p
	}

	log.Println("No LLM provider available. Set the configured API key environment variable.")
	return nil
}
