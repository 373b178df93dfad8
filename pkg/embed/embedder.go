// Package embed implements the fixed-dimension, L2-normalized embedding
// stage: an Embedder contract, a deterministic local hashing embedder for
// offline use, and a content-addressed pgvector/redis-backed store.
package embed

import "context"

// Embedder produces fixed-dimension, L2-normalized vectors for a batch of
// texts. Implementations must be deterministic for identical input text so
// re-embedding the same (entry_id, text) pair is a no-op in effect.
type Embedder interface {
	Dimension() int
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// BatchEmbed splits texts into batches of batchSize and calls embedder on
// each, concatenating the results in order.
func BatchEmbed(ctx context.Context, embedder Embedder, texts []string, batchSize int) ([][]float32, error) {
	if batchSize <= 0 {
		batchSize = len(texts)
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := embedder.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}
