package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"newslens/internal/domain"
)

// Client is an OpenAI-compatible embeddings client. The expected vector
// dimension is fixed at construction: the store's dimension is an
// init-time invariant, so a mismatch here means the wrong model is wired
// in and is never retried.
type Client struct {
	baseURL          string
	apiKey           string
	model            string
	dimension        int
	client           *http.Client
	maxRetries       int
	malformedRetries int
}

// Config configures the embeddings client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	Dimension int
	Timeout   time.Duration
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Dimension <= 0 {
		return nil, errors.New("embedding dimension must be positive")
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	return &Client{
		baseURL:          cfg.BaseURL,
		apiKey:           key,
		model:            cfg.Model,
		dimension:        cfg.Dimension,
		client:           &http.Client{Timeout: t},
		maxRetries:       5,
		malformedRetries: 2,
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "openai" }

// Dimension returns the configured dimensionality of produced vectors.
func (c *Client) Dimension() int { return c.dimension }

// Embed returns an embedding vector for the given text. Transient HTTP
// failures are retried with capped exponential backoff, and malformed
// responses are retried with the same input up to a small bound; either
// way exhaustion surfaces ErrEmbeddingFailed. A vector of the wrong
// dimension fails immediately with ErrDimensionMismatch.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	type reqBody struct {
		Input string `json:"input"`
		Model string `json:"model"`
	}
	body, _ := json.Marshal(reqBody{Input: text, Model: c.model})
	var lastErr error
	for attempt := 0; attempt <= c.malformedRetries; attempt++ {
		v, err := c.requestEmbedding(ctx, body)
		if err != nil {
			var ge *domain.GatewayError
			if errors.As(err, &ge) && ge.Kind == domain.GatewayMalformedOutput {
				lastErr = err
				continue
			}
			return nil, err
		}
		if len(v) != c.dimension {
			return nil, fmt.Errorf("%w: gateway returned %d, configured %d", domain.ErrDimensionMismatch, len(v), c.dimension)
		}
		return v, nil
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", domain.ErrEmbeddingFailed, c.malformedRetries+1, lastErr)
}

func (c *Client) requestEmbedding(ctx context.Context, body []byte) ([]float64, error) {
	url := fmt.Sprintf("%s/embeddings", c.baseURL)
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			if attempt < c.maxRetries {
				time.Sleep(retryDelay(attempt))
				continue
			}
			break
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("embeddings request failed: %s", resp.Status)
			delay := retryDelay(attempt)
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, err := strconv.Atoi(ra); err == nil {
					delay = time.Duration(secs) * time.Second
				}
			}
			_ = resp.Body.Close()
			if attempt < c.maxRetries {
				time.Sleep(delay)
				continue
			}
			break
		}

		if resp.StatusCode >= 300 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			_ = resp.Body.Close()
			return nil, &domain.GatewayError{Kind: domain.GatewayRejected, Op: "embed", Err: fmt.Errorf("%s: %s", resp.Status, string(b))}
		}

		var out struct {
			Data []struct {
				Embedding []float64 `json:"embedding"`
			} `json:"data"`
		}
		err = json.NewDecoder(resp.Body).Decode(&out)
		_ = resp.Body.Close()
		if err != nil {
			return nil, &domain.GatewayError{Kind: domain.GatewayMalformedOutput, Op: "embed", Err: err}
		}
		if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
			return nil, &domain.GatewayError{Kind: domain.GatewayMalformedOutput, Op: "embed", Err: errors.New("no embedding returned")}
		}
		return out.Data[0].Embedding, nil
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", domain.ErrEmbeddingFailed,
		c.maxRetries+1, &domain.GatewayError{Kind: domain.GatewayTransient, Op: "embed", Err: lastErr})
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := 200 * time.Millisecond
	// exponential backoff capped at 5s
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
