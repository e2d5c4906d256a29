package oracle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"tasksync/internal/logging"
)

// Client talks to an Ollama-compatible provider for embeddings and text
// generation. It is constructed once by the caller and injected everywhere a
// provider is needed; nothing looks it up from global state.
type Client struct {
	baseURL    string
	embedModel string
	genModel   string
	client     *http.Client

	maxRetries int
	sleep      func(time.Duration) // injectable for tests
}

// NewClient creates a provider client with bounded retries.
func NewClient(baseURL, embedModel, genModel string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if embedModel == "" {
		embedModel = "nomic-embed-text" // good default, 768 dims
	}
	if genModel == "" {
		genModel = "llama3.2"
	}
	return &Client{
		baseURL:    baseURL,
		embedModel: embedModel,
		genModel:   genModel,
		client: &http.Client{
			Timeout: 60 * time.Second, // generation can take longer
		},
		maxRetries: 3,
		sleep:      time.Sleep,
	}
}

// embeddingRequest is the provider API request format
type embeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// embeddingResponse is the provider API response format
type embeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Embed generates one embedding per text, preserving input order. A slot is
// nil when the provider failed for that text after retries; the call itself
// only errors when no request could be made at all.
func (c *Client) Embed(texts []string) ([][]float64, error) {
	vectors := make([][]float64, len(texts))
	var lastErr error
	failed := 0

	for i, text := range texts {
		if text == "" {
			continue
		}
		vec, err := c.embedOne(text)
		if err != nil {
			lastErr = err
			failed++
			logging.Debug("oracle", "embed failed for item %d: %v", i, err)
			continue
		}
		vectors[i] = vec
	}

	if failed == len(texts) && len(texts) > 0 {
		return vectors, fmt.Errorf("all %d embedding requests failed: %w", len(texts), lastErr)
	}
	return vectors, nil
}

func (c *Client) embedOne(text string) ([]float64, error) {
	reqBody := embeddingRequest{
		Model:  c.embedModel,
		Prompt: text,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if attempt > 1 {
			c.sleep(time.Duration(attempt) * time.Second)
		}

		resp, err := c.client.Post(
			c.baseURL+"/api/embeddings",
			"application/json",
			bytes.NewReader(jsonBody),
		)
		if err != nil {
			lastErr = fmt.Errorf("provider request: %w", err)
			continue
		}

		vec, err := decodeEmbedding(resp)
		if err != nil {
			lastErr = err
			continue
		}
		return vec, nil
	}
	return nil, lastErr
}

func decodeEmbedding(resp *http.Response) ([]float64, error) {
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("provider error (status %d): %s", resp.StatusCode, logging.Truncate(string(body), 200))
	}

	var result embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding returned")
	}

	return result.Embedding, nil
}

// generateRequest is the provider API request format for generation
type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// generateResponse is the provider API response format for generation
type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate creates a text completion, retrying transient failures with a
// linear backoff before giving up.
func (c *Client) Generate(prompt string) (string, error) {
	if prompt == "" {
		return "", fmt.Errorf("empty prompt")
	}

	reqBody := generateRequest{
		Model:  c.genModel,
		Prompt: prompt,
		Stream: false,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if attempt > 1 {
			c.sleep(time.Duration(attempt) * time.Second)
		}

		resp, err := c.client.Post(
			c.baseURL+"/api/generate",
			"application/json",
			bytes.NewReader(jsonBody),
		)
		if err != nil {
			lastErr = fmt.Errorf("provider request: %w", err)
			continue
		}

		text, err := decodeGeneration(resp)
		if err != nil {
			lastErr = err
			continue
		}
		return text, nil
	}
	return "", lastErr
}

func decodeGeneration(resp *http.Response) (string, error) {
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("provider error (status %d): %s", resp.StatusCode, logging.Truncate(string(body), 200))
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	return result.Response, nil
}
