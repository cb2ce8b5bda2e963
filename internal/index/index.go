package index

import (
	"context"
	"fmt"
	"sync"
	"time"

	"studyrag/internal/domain"
	"studyrag/internal/metrics"
	"studyrag/internal/vectorstore"
)

const (
	DefaultBatchSize = 1000
	DefaultNeighbors = 5
)

// Options tunes fitting and querying.
type Options struct {
	BatchSize int
	Neighbors int
}

// Index pairs one document's chunks with their vectors in a Storage. It is
// fitted exactly once.
type Index struct {
	embedder domain.Embedder
	storage  vectorstore.Storage
	opts     Options

	mu        sync.RWMutex
	fitted    bool
	chunks    []domain.Chunk
	neighbors int
}

// New creates an unfitted index.
func New(embedder domain.Embedder, storage vectorstore.Storage, opts Options) *Index {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Neighbors <= 0 {
		opts.Neighbors = DefaultNeighbors
	}
	return &Index{embedder: embedder, storage: storage, opts: opts}
}

// Fit embeds chunks in batches and stores the vectors. An empty chunk list
// fits successfully and leaves the index empty.
func (x *Index) Fit(ctx context.Context, chunks []domain.Chunk) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.fitted {
		return domain.ErrAlreadyFitted
	}
	start := time.Now()

	if len(chunks) > 0 {
		if err := x.embedAll(ctx, chunks); err != nil {
			return err
		}
	}

	x.chunks = append([]domain.Chunk(nil), chunks...)
	x.neighbors = min(x.opts.Neighbors, len(chunks))
	x.fitted = true
	metrics.IndexFitDuration.Observe(time.Since(start).Seconds())
	return nil
}

func (x *Index) embedAll(ctx context.Context, chunks []domain.Chunk) error {
	dimension := 0
	for offset := 0; offset < len(chunks); offset += x.opts.BatchSize {
		end := min(offset+x.opts.BatchSize, len(chunks))
		texts := make([]string, 0, end-offset)
		for _, c := range chunks[offset:end] {
			texts = append(texts, c.Rendered())
		}

		vecs, err := x.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed chunks %d-%d: %w", offset, end, err)
		}
		if len(vecs) != len(texts) {
			return fmt.Errorf("embedder returned %d vectors for %d chunks: %w",
				len(vecs), len(texts), domain.ErrEmbeddingService)
		}
		for i, v := range vecs {
			if dimension == 0 {
				dimension = len(v)
				if dimension == 0 {
					return fmt.Errorf("empty vector: %w", domain.ErrEmbeddingService)
				}
				if err := x.storage.Init(ctx, dimension); err != nil {
					return fmt.Errorf("init storage: %w", err)
				}
			}
			if len(v) != dimension {
				return fmt.Errorf("vector %d has dimension %d, want %d: %w",
					offset+i, len(v), dimension, domain.ErrEmbeddingService)
			}
		}
		if err := x.storage.Upsert(ctx, vecs); err != nil {
			return fmt.Errorf("store vectors: %w", err)
		}
	}
	return nil
}

// Query returns up to k chunks nearest to text, nearest first. k <= 0 uses
// the fitted neighbour count.
func (x *Index) Query(ctx context.Context, text string, k int) ([]domain.Chunk, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if !x.fitted {
		return nil, domain.ErrNotFitted
	}
	if len(x.chunks) == 0 {
		return nil, nil
	}
	if k <= 0 {
		k = x.neighbors
	}
	k = min(k, len(x.chunks))

	vecs, err := x.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for query: %w", len(vecs), domain.ErrEmbeddingService)
	}

	hits, err := x.storage.Search(ctx, vecs[0], k)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	out := make([]domain.Chunk, 0, len(hits))
	for _, h := range hits {
		if h.Position < 0 || h.Position >= len(x.chunks) {
			continue
		}
		out = append(out, x.chunks[h.Position])
	}
	return out, nil
}

// Len returns the number of fitted chunks.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.chunks)
}

// Chunks returns a copy of the fitted chunks in position order.
func (x *Index) Chunks() []domain.Chunk {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return append([]domain.Chunk(nil), x.chunks...)
}

func (x *Index) Fitted() bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.fitted
}

// Empty reports a fitted index with no chunks.
func (x *Index) Empty() bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.fitted && len(x.chunks) == 0
}
