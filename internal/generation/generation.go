package generation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"studyrag/internal/domain"
	"studyrag/internal/metrics"
)

// Image is an attachment sent alongside the prompt.
type Image struct {
	MIMEType string
	Data     []byte
}

// Request is one completion request.
type Request struct {
	Prompt string
	Image  *Image
}

// Gateway is a text (and optionally vision) completion service.
type Gateway interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// Error is a failed generation attempt.
type Error struct {
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", domain.ErrGenerationService, e.Provider, e.Err)
}

// Is makes errors.Is(err, domain.ErrGenerationService) hold.
func (e *Error) Is(target error) bool { return target == domain.ErrGenerationService }

func (e *Error) Unwrap() error { return e.Err }

// Result is either generated text or the error that prevented it.
type Result struct {
	Text string
	Err  error
}

// OK reports whether generation succeeded.
func (r Result) OK() bool { return r.Err == nil }

// Run calls the gateway and folds the outcome into a Result. Failures are
// always *Error.
func Run(ctx context.Context, gw Gateway, req Request, logger *zap.Logger) Result {
	if logger == nil {
		logger = zap.NewNop()
	}
	provider := gw.Name()
	start := time.Now()

	text, err := gw.Generate(ctx, req)

	duration := time.Since(start)
	metrics.GenerationRequestDuration.WithLabelValues(provider).Observe(duration.Seconds())
	if err == nil && text == "" {
		err = errors.New("empty completion")
	}
	if err != nil {
		metrics.GenerationRequestsTotal.WithLabelValues(provider, "error").Inc()
		logger.Error("Generation request failed",
			zap.String("provider", provider),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		var genErr *Error
		if !errors.As(err, &genErr) {
			genErr = &Error{Provider: provider, Err: err}
		}
		return Result{Err: genErr}
	}

	metrics.GenerationRequestsTotal.WithLabelValues(provider, "success").Inc()
	logger.Debug("Generation request completed",
		zap.String("provider", provider),
		zap.Duration("duration", duration),
		zap.Int("prompt_chars", len(req.Prompt)),
		zap.Bool("image", req.Image != nil),
	)
	return Result{Text: text}
}

// LoadImage reads an image file and sniffs its MIME type. An empty path
// yields nil.
func LoadImage(path string) (*Image, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return &Image{MIMEType: http.DetectContentType(data), Data: data}, nil
}
