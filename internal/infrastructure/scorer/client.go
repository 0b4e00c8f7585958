package scorer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"NewsWeaver/internal/domain"
	"NewsWeaver/internal/ports"
)

// Client talks to the external scoring service that assigns each candidate
// an importance score before clustering.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ ports.Scorer = (*Client)(nil)

// NewClient creates a reusable HTTP client.
func NewClient(endpoint, apiKey string) *Client {
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 15 * time.Second},
	}
}

// Score posts the candidate's title and description and returns the
// assigned importance score (0-1000).
func (c *Client) Score(ctx context.Context, candidate domain.RawCandidate) (int, error) {
	payload := map[string]any{
		"title":       candidate.Title,
		"description": candidate.Description,
		"source":      candidate.SourceName,
	}

	var resp struct {
		Score int `json:"score"`
	}
	if err := c.post(ctx, "/score", payload, &resp); err != nil {
		return 0, err
	}

	if resp.Score < 0 || resp.Score > 1000 {
		return 0, fmt.Errorf("score %d out of range", resp.Score)
	}
	return resp.Score, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
