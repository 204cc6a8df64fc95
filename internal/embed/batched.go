package embed

import (
	"context"
	"fmt"
)

// DefaultBatchSize is used when a non-positive batch size is given.
const DefaultBatchSize = 32

// BatchProgress reports embedding progress after each batch.
type BatchProgress struct {
	BatchIndex      int // Current batch number (1-indexed)
	TotalBatches    int
	ProcessedChunks int
	TotalChunks     int
}

// EmbedWithProgress embeds texts in sequential batches and calls onBatch
// (if non-nil) after each one. Embeddings are returned in input order.
func EmbedWithProgress(
	ctx context.Context,
	provider Provider,
	texts []string,
	mode EmbedMode,
	batchSize int,
	onBatch func(BatchProgress),
) ([][]float32, error) {
	total := len(texts)
	if total == 0 {
		return [][]float32{}, nil
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	numBatches := (total + batchSize - 1) / batchSize
	results := make([][]float32, 0, total)

	for batch := 0; batch < numBatches; batch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := batch * batchSize
		end := min(start+batchSize, total)

		vectors, err := provider.Embed(ctx, texts[start:end], mode)
		if err != nil {
			return nil, fmt.Errorf("batch %d/%d failed: %w", batch+1, numBatches, err)
		}
		if len(vectors) != end-start {
			return nil, fmt.Errorf("batch %d/%d: got %d vectors for %d texts", batch+1, numBatches, len(vectors), end-start)
		}
		results = append(results, vectors...)

		if onBatch != nil {
			onBatch(BatchProgress{
				BatchIndex:      batch + 1,
				TotalBatches:    numBatches,
				ProcessedChunks: end,
				TotalChunks:     total,
			})
		}
	}

	return results, nil
}
