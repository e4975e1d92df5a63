// Package ollama provides a client for a local Ollama server, covering the
// embeddings and generation endpoints used by the classification engine.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Client defines the Ollama operations.
type Client interface {
	// Embed returns the dense embedding of text under the embed model.
	Embed(ctx context.Context, text string) ([]float64, error)
	// Generate returns the completion for prompt under the generate model.
	Generate(ctx context.Context, prompt string) (string, error)
}

// Option configures the Ollama client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithEmbedModel overrides the embedding model.
func WithEmbedModel(model string) Option {
	return func(c *httpClient) {
		c.embedModel = model
	}
}

// WithGenerateModel overrides the generation model.
func WithGenerateModel(model string) Option {
	return func(c *httpClient) {
		c.generateModel = model
	}
}

// WithRateLimit caps outbound requests per second. Zero or negative disables
// limiting.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

type httpClient struct {
	baseURL       string
	embedModel    string
	generateModel string
	http          *http.Client
	limiter       *rate.Limiter
}

// NewClient creates an Ollama client with local-server defaults.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL:       "http://localhost:11434",
		embedModel:    "nomic-embed-text",
		generateModel: "qwen2.5:7b",
		http: &http.Client{
			Timeout: 120 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// retryableStatusCode returns true if the HTTP status code should trigger a retry.
func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable
}

// retryDo posts payload with exponential backoff retries on transient
// failures. The request body is rebuilt from payload on every attempt.
func (c *httpClient) retryDo(ctx context.Context, path string, payload []byte) ([]byte, int, error) {
	const maxAttempts = 3
	backoff := 1 * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, 0, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, 0, eris.Wrap(err, "ollama: create request")
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			if attempt < maxAttempts {
				select {
				case <-ctx.Done():
					return nil, 0, ctx.Err()
				case <-time.After(backoff):
				}
				backoff *= 2
				continue
			}
			return nil, 0, lastErr
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, resp.StatusCode, eris.Wrap(readErr, "ollama: read response body")
		}

		if retryableStatusCode(resp.StatusCode) && attempt < maxAttempts {
			lastErr = eris.Errorf("ollama: status %d: %s", resp.StatusCode, string(body))
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}

		return body, resp.StatusCode, nil
	}

	return nil, 0, lastErr
}

func (c *httpClient) Embed(ctx context.Context, text string) ([]float64, error) {
	payload, err := json.Marshal(map[string]any{
		"model":  c.embedModel,
		"prompt": text,
	})
	if err != nil {
		return nil, eris.Wrap(err, "ollama: marshal embed request")
	}

	body, statusCode, err := c.retryDo(ctx, "/api/embeddings", payload)
	if err != nil {
		return nil, eris.Wrap(err, "ollama: embed request failed")
	}
	if statusCode != http.StatusOK {
		return nil, eris.Errorf("ollama: embed unexpected status %d: %s", statusCode, string(body))
	}

	var result struct {
		Embedding []float64 `json:"embedding"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "ollama: unmarshal embed response")
	}
	if len(result.Embedding) == 0 {
		return nil, eris.New("ollama: empty embedding")
	}
	return result.Embedding, nil
}

func (c *httpClient) Generate(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"model":  c.generateModel,
		"prompt": prompt,
		"stream": false,
	})
	if err != nil {
		return "", eris.Wrap(err, "ollama: marshal generate request")
	}

	body, statusCode, err := c.retryDo(ctx, "/api/generate", payload)
	if err != nil {
		return "", eris.Wrap(err, "ollama: generate request failed")
	}
	if statusCode != http.StatusOK {
		return "", eris.Errorf("ollama: generate unexpected status %d: %s", statusCode, string(body))
	}

	var result struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", eris.Wrap(err, "ollama: unmarshal generate response")
	}
	return result.Response, nil
}
