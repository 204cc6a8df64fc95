package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// localProvider talks to an embedding service over HTTP.
//
// The service accepts POST {"texts": [...], "mode": "query"|"passage"} on the
// configured endpoint and answers {"embeddings": [[...], ...]}.
type localProvider struct {
	endpoint   string
	dimensions int
	client     *http.Client
}

// newLocalProvider creates a new local embedding provider for endpoint.
func newLocalProvider(endpoint string, dimensions int, timeout time.Duration) (*localProvider, error) {
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("invalid embedding endpoint %q: %w", endpoint, err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &localProvider{
		endpoint:   endpoint,
		dimensions: dimensions,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

// Initialize waits until the embedding service answers a test request.
func (p *localProvider) Initialize(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		if _, err := p.embed(ctx, []string{"ping"}, EmbedModeQuery); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for embedding service at %s", p.endpoint)
		case <-ticker.C:
		}
	}
}

// embedRequest represents the JSON request body for the embed endpoint.
type embedRequest struct {
	Texts []string `json:"texts"`
	Mode  string   `json:"mode,omitempty"`
}

// embedResponse represents the JSON response from the embed endpoint.
type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed converts a slice of text strings into their vector representations.
func (p *localProvider) Embed(ctx context.Context, texts []string, mode EmbedMode) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	return p.embed(ctx, texts, mode)
}

func (p *localProvider) embed(ctx context.Context, texts []string, mode EmbedMode) ([][]float32, error) {
	jsonData, err := json.Marshal(embedRequest{Texts: texts, Mode: string(mode)})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding server returned status %d", resp.StatusCode)
	}

	var embedResp embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(embedResp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding server returned %d vectors for %d texts", len(embedResp.Embeddings), len(texts))
	}

	return embedResp.Embeddings, nil
}

// Dimensions returns the configured dimensionality (384 for BGE-small-en-v1.5).
func (p *localProvider) Dimensions() int {
	return p.dimensions
}

// Close releases idle connections.
func (p *localProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}
