package hashed

import (
	"context"
	"hash/fnv"
	"math"

	"studyrag/internal/textproc"
)

// DefaultDimensions is the vector size used when none is configured.
const DefaultDimensions = 512

// Embedder maps text to a feature-hashed term-frequency vector. It needs no
// corpus preparation, so every index and every query in a session share the
// same function. Vectors are L2-normalized; text without content tokens maps
// to the zero vector.
type Embedder struct {
	dimensions int
}

// NewEmbedder creates a hashing embedder with the given dimension.
func NewEmbedder(dimensions int) *Embedder {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &Embedder{dimensions: dimensions}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "hashed" }

// Dimension returns the dimensionality of the produced embedding vectors.
func (e *Embedder) Dimension() int { return e.dimensions }

// Embed computes one vector per input text.
func (e *Embedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.vector(text)
	}
	return out, nil
}

func (e *Embedder) vector(text string) []float32 {
	tf := make(map[string]int)
	for _, tok := range textproc.ContentTokens(text) {
		tf[tok]++
	}
	acc := make([]float64, e.dimensions)
	for tok, count := range tf {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()
		idx := int(sum % uint64(e.dimensions))
		weight := 1 + math.Log(float64(count))
		// The top bit picks the sign so colliding tokens tend to cancel.
		if sum>>63 == 1 {
			weight = -weight
		}
		acc[idx] += weight
	}

	norm := 0.0
	for _, v := range acc {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	vec := make([]float32, e.dimensions)
	if norm == 0 {
		return vec
	}
	for i, v := range acc {
		vec[i] = float32(v / norm)
	}
	return vec
}
