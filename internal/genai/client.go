package genai

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
	"strings"
	"time"

	"newslens/internal/domain"
)

// Client calls an OpenAI-compatible chat completions API for article
// summarization, topic tagging and query expansion.
type Client struct {
	baseURL          string
	apiKey           string
	model            string
	style            string
	maxInputChars    int
	client           *http.Client
	transportRetries int
	malformedRetries int
}

// Config configures the generative-AI gateway client.
type Config struct {
	BaseURL       string
	APIKeyEnv     string
	Model         string
	Style         string // "concise" or "detailed"
	Timeout       time.Duration
	MaxInputChars int
}

// NewClient creates a gateway client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Style == "" {
		cfg.Style = "concise"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	maxChars := cfg.MaxInputChars
	if maxChars == 0 {
		maxChars = 8000
	}
	return &Client{
		baseURL:          cfg.BaseURL,
		apiKey:           key,
		model:            cfg.Model,
		style:            cfg.Style,
		maxInputChars:    maxChars,
		client:           &http.Client{Timeout: t},
		transportRetries: 3,
		malformedRetries: 2,
	}, nil
}

const concisePrompt = `Summarize the following article in no more than 3-4 sentences and identify its 3-8 main topics.

Respond with ONLY a JSON object in this exact shape, no other text:
{"summary": "<summary>", "topics": ["topic1", "topic2"]}

Article:
%s`

const detailedPrompt = `Write a comprehensive summary of the following article covering the main points, key details and conclusions, and identify its 3-8 main topics.

Respond with ONLY a JSON object in this exact shape, no other text:
{"summary": "<summary>", "topics": ["topic1", "topic2"]}

Article:
%s`

const expandPrompt = `You are a search assistant. Given a search query, suggest %d alternative phrasings using synonyms and closely related terms that preserve the original intent.

Respond with one phrasing per line. No bullets, numbers, or other formatting.

Query: %s`

const relatedPrompt = `You are a search assistant. Given a search query, suggest %d follow-up searches a reader might be interested in next.

Respond with one suggestion per line. No bullets, numbers, or other formatting.

Query: %s`

// SummarizeAndTag derives a summary and topic list from article text.
// Structurally invalid model output is retried with the same input up to
// the malformed-output bound before ErrSummarizationFailed is surfaced.
func (c *Client) SummarizeAndTag(ctx context.Context, text string) (domain.Annotation, error) {
	text = truncate(text, c.maxInputChars)
	prompt := concisePrompt
	if c.style == "detailed" {
		prompt = detailedPrompt
	}
	var lastErr error
	for attempt := 0; attempt <= c.malformedRetries; attempt++ {
		out, err := c.chat(ctx, fmt.Sprintf(prompt, text))
		if err != nil {
			return domain.Annotation{}, err
		}
		ann, err := parseAnnotation(out)
		if err == nil {
			return ann, nil
		}
		lastErr = &domain.GatewayError{Kind: domain.GatewayMalformedOutput, Op: "summarize", Err: err}
	}
	return domain.Annotation{}, fmt.Errorf("%w after %d attempts: %v", domain.ErrSummarizationFailed, c.malformedRetries+1, lastErr)
}

// maxExpansions bounds the phrasings added to a query, original excluded.
const maxExpansions = 3

// Expand rewrites a query into up to maxExpansions related phrasings. The
// original query is always first. Gateway failure degrades to just the
// original; expansion never blocks search.
func (c *Client) Expand(ctx context.Context, query string) []string {
	out, err := c.chat(ctx, fmt.Sprintf(expandPrompt, maxExpansions, query))
	if err != nil {
		return []string{query}
	}
	expanded := []string{query}
	seen := map[string]struct{}{strings.ToLower(strings.TrimSpace(query)): {}}
	for _, line := range parseLines(out, maxExpansions+1) {
		key := strings.ToLower(line)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		expanded = append(expanded, line)
		if len(expanded) == maxExpansions+1 {
			break
		}
	}
	return expanded
}

// RelatedSearches suggests up to n follow-up queries for the given query.
func (c *Client) RelatedSearches(ctx context.Context, query string, n int) ([]string, error) {
	if n <= 0 {
		n = 3
	}
	out, err := c.chat(ctx, fmt.Sprintf(relatedPrompt, n, query))
	if err != nil {
		return nil, err
	}
	suggestions := parseLines(out, n)
	if len(suggestions) == 0 {
		return nil, &domain.GatewayError{Kind: domain.GatewayMalformedOutput, Op: "related", Err: errors.New("no suggestions in response")}
	}
	return suggestions, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) chat(ctx context.Context, prompt string) (string, error) {
	body, _ := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0.2,
	})
	url := fmt.Sprintf("%s/chat/completions", c.baseURL)
	var lastErr error
	for attempt := 0; attempt <= c.transportRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			lastErr = err
			if attempt < c.transportRetries {
				time.Sleep(retryDelay(attempt))
				continue
			}
			break
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("chat completions failed: %s", resp.Status)
			delay := retryDelay(attempt)
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, err := strconv.Atoi(ra); err == nil {
					delay = time.Duration(secs) * time.Second
				}
			}
			_ = resp.Body.Close()
			if attempt < c.transportRetries {
				time.Sleep(delay)
				continue
			}
			break
		}

		if resp.StatusCode >= 300 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			_ = resp.Body.Close()
			return "", &domain.GatewayError{Kind: domain.GatewayRejected, Op: "chat", Err: fmt.Errorf("%s: %s", resp.Status, string(b))}
		}

		var out chatResponse
		err = json.NewDecoder(resp.Body).Decode(&out)
		_ = resp.Body.Close()
		if err != nil {
			return "", &domain.GatewayError{Kind: domain.GatewayMalformedOutput, Op: "chat", Err: err}
		}
		if len(out.Choices) == 0 {
			return "", &domain.GatewayError{Kind: domain.GatewayMalformedOutput, Op: "chat", Err: errors.New("no choices in response")}
		}
		return out.Choices[0].Message.Content, nil
	}
	return "", &domain.GatewayError{Kind: domain.GatewayTransient, Op: "chat", Err: lastErr}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
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
