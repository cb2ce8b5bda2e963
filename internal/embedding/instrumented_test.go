package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyrag/internal/domain"
	"studyrag/internal/metrics"
)

type stubEmbedder struct {
	name string
	vecs [][]float32
	err  error
}

func (s *stubEmbedder) Name() string { return s.name }

func (s *stubEmbedder) Embed(_ context.Context, _ []string) ([][]float32, error) {
	return s.vecs, s.err
}

func TestInstrumented_Success(t *testing.T) {
	inner := &stubEmbedder{name: "stub-ok", vecs: [][]float32{{1}, {2}}}
	p := NewInstrumented(inner, nil)

	before := testutil.ToFloat64(metrics.EmbeddingRequestsTotal.WithLabelValues("stub-ok", "success"))
	vecs, err := p.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)

	assert.Equal(t, inner.vecs, vecs)
	assert.Equal(t, "stub-ok", p.Name())
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.EmbeddingRequestsTotal.WithLabelValues("stub-ok", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.EmbeddingTextsTotal.WithLabelValues("stub-ok")))
}

func TestInstrumented_WrapsFailure(t *testing.T) {
	p := NewInstrumented(&stubEmbedder{name: "stub-fail", err: errors.New("connection refused")}, nil)

	_, err := p.Embed(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbeddingService)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.EmbeddingRequestsTotal.WithLabelValues("stub-fail", "error")))
}

func TestInstrumented_CountMismatch(t *testing.T) {
	p := NewInstrumented(&stubEmbedder{name: "stub-short", vecs: [][]float32{{1}}}, nil)

	_, err := p.Embed(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, domain.ErrEmbeddingService)
}

func TestInstrumented_EmptyBatch(t *testing.T) {
	p := NewInstrumented(&stubEmbedder{name: "stub-empty", err: errors.New("unused")}, nil)

	vecs, err := p.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}
