package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"studyrag/internal/domain"
	"studyrag/internal/metrics"
)

// Instrumented wraps an Embedder with logging and Prometheus metrics. Any
// failure from the inner embedder surfaces as domain.ErrEmbeddingService.
type Instrumented struct {
	inner  domain.Embedder
	logger *zap.Logger
}

// NewInstrumented wraps inner; a nil logger disables logging.
func NewInstrumented(inner domain.Embedder, logger *zap.Logger) *Instrumented {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Instrumented{inner: inner, logger: logger}
}

// Name reports the wrapped embedder's name.
func (p *Instrumented) Name() string { return p.inner.Name() }

// Embed delegates to the inner embedder and records the outcome.
func (p *Instrumented) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	provider := p.inner.Name()
	start := time.Now()

	vecs, err := p.inner.Embed(ctx, texts)

	duration := time.Since(start)
	metrics.EmbeddingTextsTotal.WithLabelValues(provider).Add(float64(len(texts)))
	metrics.EmbeddingRequestDuration.WithLabelValues(provider).Observe(duration.Seconds())

	if err == nil && len(vecs) != len(texts) {
		err = fmt.Errorf("got %d vectors for %d texts: %w", len(vecs), len(texts), domain.ErrEmbeddingService)
	}
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(provider, "error").Inc()
		p.logger.Error("Embedding request failed",
			zap.String("provider", provider),
			zap.Int("batch_size", len(texts)),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		if !errors.Is(err, domain.ErrEmbeddingService) {
			err = fmt.Errorf("%s: %v: %w", provider, err, domain.ErrEmbeddingService)
		}
		return nil, err
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(provider, "success").Inc()
	p.logger.Debug("Embedding request completed",
		zap.String("provider", provider),
		zap.Int("batch_size", len(texts)),
		zap.Duration("duration", duration),
	)
	return vecs, nil
}
