// Package llm wraps the Ollama HTTP API behind the same thin Client shape
// the teacher used for its generative-model calls: a struct holding a
// configured transport, a single internal generateContent helper, and
// purpose-specific methods that parse a structured line out of the raw
// response. Only the wire protocol changed (plain REST against a local
// Ollama server instead of the Gemini SDK); the parsing idiom is the
// teacher's own.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to a local Ollama server.
type Client struct {
	baseURL string
	model   string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the client's request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithHTTPClient overrides the underlying http.Client entirely (tests use
// this to point at an httptest.Server without touching timeouts).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient builds a Client for the given Ollama base URL and model.
func NewClient(baseURL, model string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type generateRequest struct {
	Model   string            `json:"model"`
	Prompt  string            `json:"prompt"`
	Stream  bool              `json:"stream"`
	Options generateReqOptions `json:"options"`
}

type generateReqOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// generateContent is the single low-level call every higher-level method
// funnels through, matching the teacher's internal-helper convention.
func (c *Client) generateContent(ctx context.Context, prompt string, temperature float64, numPredict int) (string, error) {
	reqBody, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
		Options: generateReqOptions{
			Temperature: temperature,
			NumPredict:  numPredict,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("building ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling ollama: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading ollama response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decoding ollama response: %w", err)
	}
	return parsed.Response, nil
}

// RelevanceResult is the outcome of a single relevance check, including
// enough detail to write a ValidationLog row.
type RelevanceResult struct {
	IsRelevant bool
	RawResponse string
	LatencyMS  int64
	Error      error
}

const relevancePromptTemplate = `You are screening news headlines for relevance to a specific topic.
Title: %s
Description: %s

Does this item concern the topic? Reply with exactly one word: YES or NO.`

// CheckRelevance asks the model a yes/no relevance question. On any
// failure (timeout, non-200, unparseable, ambiguous text) it fails open:
// IsRelevant is true and Error carries the reason, matching the original
// service's availability-over-precision policy.
func (c *Client) CheckRelevance(ctx context.Context, title, description string) RelevanceResult {
	start := time.Now()
	prompt := fmt.Sprintf(relevancePromptTemplate, title, description)

	raw, err := c.generateContent(ctx, prompt, 0.1, 10)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return RelevanceResult{IsRelevant: true, RawResponse: "", LatencyMS: latency, Error: err}
	}

	normalized := strings.ToUpper(strings.TrimSpace(raw))
	switch {
	case strings.HasPrefix(normalized, "YES"):
		return RelevanceResult{IsRelevant: true, RawResponse: raw, LatencyMS: latency}
	case strings.HasPrefix(normalized, "NO"):
		return RelevanceResult{IsRelevant: false, RawResponse: raw, LatencyMS: latency}
	default:
		return RelevanceResult{
			IsRelevant:  true,
			RawResponse: raw,
			LatencyMS:   latency,
			Error:       fmt.Errorf("ambiguous relevance response: %q", raw),
		}
	}
}

// HealthCheck reports whether the Ollama server is reachable by probing
// GET /api/tags.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("building health check request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ollama health check: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama health check returned status %d", resp.StatusCode)
	}
	return nil
}

// Model returns the configured model name, used by callers that need to
// record it on a ValidationLog row.
func (c *Client) Model() string {
	return c.model
}
