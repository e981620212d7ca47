// Package embedding implements embed.Provider against an OpenAI-compatible
// embeddings endpoint.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client calls an OpenAI-compatible embeddings endpoint.
type Client struct {
	BaseURL string
	APIKey  string
	Model   string
	// Dimension is the vector length the catalog expects. Responses of
	// any other length are errors; silently mixing dimensions would
	// poison similarity scores.
	Dimension int

	HTTPClient *http.Client
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Embed returns the embedding vector for text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.BaseURL == "" || c.Model == "" {
		return nil, fmt.Errorf("embedding: base URL and model required")
	}

	reqBody, err := json.Marshal(embedRequest{Model: c.Model, Input: []string{text}})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	if payload.Error != nil {
		return nil, fmt.Errorf("embedding error: %s", payload.Error.Message)
	}
	if len(payload.Data) == 0 {
		return nil, fmt.Errorf("embedding: empty response")
	}
	vec := payload.Data[0].Embedding
	if c.Dimension > 0 && len(vec) != c.Dimension {
		return nil, fmt.Errorf("embedding: got %d dimensions, want %d", len(vec), c.Dimension)
	}
	return vec, nil
}

// Dim returns the configured vector dimension.
func (c *Client) Dim() int { return c.Dimension }

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 15 * time.Second}
}
