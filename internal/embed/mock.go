package embed

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"strings"
)

// mockProvider generates deterministic embeddings from text content.
//
// Each whitespace separated token contributes a hashed vector, so texts
// sharing words end up close to each other. That is enough for tests and
// offline use where similarity only has to be plausible.
type mockProvider struct {
	dimensions int
}

// NewMockProvider creates a deterministic embedding provider.
// A non-positive dimensions value defaults to 384.
func NewMockProvider(dimensions int) Provider {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &mockProvider{dimensions: dimensions}
}

func (p *mockProvider) Initialize(ctx context.Context) error {
	return nil
}

// Embed generates mock embeddings by hashing the tokens of each text.
func (p *mockProvider) Embed(ctx context.Context, texts []string, mode EmbedMode) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))

	for i, text := range texts {
		embedding := make([]float32, p.dimensions)
		tokens := strings.Fields(strings.ToLower(text))
		if len(tokens) == 0 {
			tokens = []string{""}
		}

		for _, token := range tokens {
			hash := sha256.Sum256([]byte(token))
			for j := 0; j < p.dimensions; j++ {
				offset := (j * 4) % (len(hash) - 3)
				val := binary.BigEndian.Uint32(hash[offset : offset+4])
				// Normalize to [-1, 1] range
				embedding[j] += (float32(val)/float32(1<<32))*2.0 - 1.0
			}
		}

		embeddings[i] = embedding
	}

	return embeddings, nil
}

// Dimensions returns the dimensionality of mock embeddings.
func (p *mockProvider) Dimensions() int {
	return p.dimensions
}

// Close is a no-op for mock provider.
func (p *mockProvider) Close() error {
	return nil
}
