package embed

import (
	"context"
	"fmt"
	"math"

	"github.com/tmc/langchaingo/embeddings"
)

// LangchainEmbedder adapts a langchaingo embeddings.Embedder (OpenAI,
// Bedrock, HuggingFace, ...) to this package's Embedder contract: L2
// normalization is enforced here since langchaingo's providers do not all
// guarantee unit-length output, and every vector stored downstream must be
// unit-length regardless of provider.
type LangchainEmbedder struct {
	inner     embeddings.Embedder
	dimension int
}

// NewLangchainEmbedder wraps inner, which must produce vectors of
// dimension length.
func NewLangchainEmbedder(inner embeddings.Embedder, dimension int) *LangchainEmbedder {
	return &LangchainEmbedder{inner: inner, dimension: dimension}
}

func (e *LangchainEmbedder) Dimension() int { return e.dimension }

// Embed implements Embedder by delegating to the wrapped provider's
// EmbedDocuments and re-normalizing each resulting vector to unit L2 norm.
func (e *LangchainEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := e.inner.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("langchain embedder failed: %w", err)
	}
	out := make([][]float32, len(vectors))
	for i, v := range vectors {
		out[i] = l2Normalize(v)
	}
	return out, nil
}

func l2Normalize(v []float32) []float32 {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return v
	}
	norm := float32(math.Sqrt(sumSquares))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}
