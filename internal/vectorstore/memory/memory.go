package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/viant/vec/search"

	"studyrag/internal/vectorstore"
)

// Metric selects the distance function.
type Metric string

const (
	MetricEuclidean Metric = "euclidean"
	MetricCosine    Metric = "cosine"
)

// ParseMetric maps a config value to a Metric; empty means euclidean.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case "", MetricEuclidean:
		return MetricEuclidean, nil
	case MetricCosine:
		return MetricCosine, nil
	default:
		return "", fmt.Errorf("unknown metric %q", s)
	}
}

// Storage is an in-memory vector store using exact brute-force search.
type Storage struct {
	mu         sync.RWMutex
	metric     Metric
	dimension  int
	vectors    []search.Float32s
	magnitudes []float32
}

// NewStorage creates an empty store; an empty metric means euclidean.
func NewStorage(metric Metric) *Storage {
	if metric == "" {
		metric = MetricEuclidean
	}
	return &Storage{metric: metric}
}

// NewFactory returns a vectorstore.Factory producing memory stores.
func NewFactory(metric Metric) vectorstore.Factory {
	return func(string) (vectorstore.Storage, error) {
		return NewStorage(metric), nil
	}
}

func (s *Storage) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	s.vectors = nil
	s.magnitudes = nil
	return nil
}

func (s *Storage) Upsert(_ context.Context, vectors [][]float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range vectors {
		if len(v) != s.dimension {
			return fmt.Errorf("vector dimension mismatch: got %d, want %d", len(v), s.dimension)
		}
	}
	for _, v := range vectors {
		fv := search.Float32s(v)
		s.vectors = append(s.vectors, fv)
		s.magnitudes = append(s.magnitudes, fv.Magnitude())
	}
	return nil
}

func (s *Storage) Search(_ context.Context, vector []float32, topK int) ([]vectorstore.Neighbor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.vectors) == 0 || topK <= 0 {
		return nil, nil
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("query dimension mismatch: got %d, want %d", len(vector), s.dimension)
	}

	query := search.Float32s(vector)
	queryMag := query.Magnitude()
	neighbors := make([]vectorstore.Neighbor, len(s.vectors))
	for i, v := range s.vectors {
		neighbors[i] = vectorstore.Neighbor{Position: i, Distance: s.distance(query, queryMag, v, s.magnitudes[i])}
	}
	sort.SliceStable(neighbors, func(a, b int) bool {
		return neighbors[a].Distance < neighbors[b].Distance
	})
	if topK > len(neighbors) {
		topK = len(neighbors)
	}
	return neighbors[:topK], nil
}

func (s *Storage) distance(q search.Float32s, qm float32, v search.Float32s, vm float32) float64 {
	if s.metric == MetricCosine {
		// Zero vectors have no direction; treat them as orthogonal.
		if qm == 0 || vm == 0 {
			return 1
		}
		return float64(q.CosineDistance(v))
	}
	return float64(q.EuclideanDistance(v))
}

func (s *Storage) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors = nil
	s.magnitudes = nil
	return nil
}

// Len returns the number of stored vectors.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors)
}
