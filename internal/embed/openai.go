package embed

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// ErrMissingAPIKey is returned when the OpenAI provider has no key.
var ErrMissingAPIKey = errors.New("missing OpenAI API key")

// openAIProvider embeds texts through the OpenAI embeddings API.
type openAIProvider struct {
	client     *openai.Client
	apiKey     string
	model      openai.EmbeddingModel
	dimensions int
}

func newOpenAIProvider(apiKey, baseURL, model string, dimensions int) *openAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	return &openAIProvider{
		client:     openai.NewClientWithConfig(cfg),
		apiKey:     apiKey,
		model:      openai.EmbeddingModel(model),
		dimensions: dimensions,
	}
}

// Initialize only validates credentials; the API needs no warm-up.
func (p *openAIProvider) Initialize(ctx context.Context) error {
	if p.apiKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// Embed requests embeddings for texts. OpenAI models do not distinguish
// query and passage inputs, so mode is ignored.
func (p *openAIProvider) Embed(ctx context.Context, texts []string, mode EmbedMode) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      p.model,
		Dimensions: p.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedding request failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai returned %d vectors for %d texts", len(resp.Data), len(texts))
	}

	embeddings := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("openai returned out of range index %d", d.Index)
		}
		embeddings[d.Index] = d.Embedding
	}
	return embeddings, nil
}

func (p *openAIProvider) Dimensions() int {
	return p.dimensions
}

func (p *openAIProvider) Close() error {
	return nil
}
