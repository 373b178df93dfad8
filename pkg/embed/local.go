package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"github.com/sirupsen/logrus"
)

const defaultDimension = 384

// LocalEmbeddingService is a deterministic, offline embedder: each token is
// hashed into one of Dimension buckets and accumulated, then the resulting
// vector is L2-normalized. It has no semantic quality beyond bag-of-hashed-
// tokens, but is stable across process restarts and requires no network
// call.
type LocalEmbeddingService struct {
	dimension int
	logger    *logrus.Logger
}

// NewLocalEmbeddingService builds a service producing vectors of the given
// dimension; dimension <= 0 falls back to 384.
func NewLocalEmbeddingService(dimension int, logger *logrus.Logger) *LocalEmbeddingService {
	if dimension <= 0 {
		dimension = defaultDimension
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(discardWriter{})
	}
	return &LocalEmbeddingService{dimension: dimension, logger: logger}
}

func (s *LocalEmbeddingService) Dimension() int { return s.dimension }

// Embed implements Embedder.
func (s *LocalEmbeddingService) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = s.GenerateTextEmbedding(text)
	}
	return out, nil
}

// GenerateTextEmbedding produces a single L2-normalized vector for text.
func (s *LocalEmbeddingService) GenerateTextEmbedding(text string) []float32 {
	vec := make([]float64, s.dimension)
	tokens := strings.Fields(strings.ToLower(text))
	for _, tok := range tokens {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		bucket := int(h.Sum64() % uint64(s.dimension))

		signHash := fnv.New32a()
		_, _ = signHash.Write([]byte("sign:" + tok))
		sign := 1.0
		if signHash.Sum32()%2 == 0 {
			sign = -1.0
		}
		vec[bucket] += sign
	}

	var sumSquares float64
	for _, v := range vec {
		sumSquares += v * v
	}
	if sumSquares == 0 {
		return make([]float32, s.dimension)
	}
	norm := math.Sqrt(sumSquares)

	out := make([]float32, s.dimension)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
