package generation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyrag/internal/domain"
	"studyrag/internal/metrics"
)

type stubGateway struct {
	name string
	text string
	err  error
	got  Request
}

func (s *stubGateway) Name() string { return s.name }

func (s *stubGateway) Generate(_ context.Context, req Request) (string, error) {
	s.got = req
	return s.text, s.err
}

func TestRun_Success(t *testing.T) {
	gw := &stubGateway{name: "stub-ok", text: "answer [Page no. 2]"}
	res := Run(context.Background(), gw, Request{Prompt: "p"}, nil)

	assert.True(t, res.OK())
	assert.Equal(t, "answer [Page no. 2]", res.Text)
	assert.Equal(t, "p", gw.got.Prompt)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.GenerationRequestsTotal.WithLabelValues("stub-ok", "success")))
}

func TestRun_FailureIsTyped(t *testing.T) {
	gw := &stubGateway{name: "stub-fail", err: errors.New("quota exceeded")}
	res := Run(context.Background(), gw, Request{Prompt: "p"}, nil)

	require.False(t, res.OK())
	assert.ErrorIs(t, res.Err, domain.ErrGenerationService)

	var genErr *Error
	require.ErrorAs(t, res.Err, &genErr)
	assert.Equal(t, "stub-fail", genErr.Provider)
	assert.Contains(t, res.Err.Error(), "quota exceeded")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.GenerationRequestsTotal.WithLabelValues("stub-fail", "error")))
}

func TestRun_EmptyCompletionFails(t *testing.T) {
	res := Run(context.Background(), &stubGateway{name: "stub-empty"}, Request{Prompt: "p"}, nil)
	assert.ErrorIs(t, res.Err, domain.ErrGenerationService)
}

func TestLoadImage(t *testing.T) {
	img, err := LoadImage("")
	require.NoError(t, err)
	assert.Nil(t, img)

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	path := filepath.Join(t.TempDir(), "diagram.png")
	require.NoError(t, os.WriteFile(path, png, 0o644))

	img, err = LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIMEType)
	assert.Equal(t, png, img.Data)

	_, err = LoadImage(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}
