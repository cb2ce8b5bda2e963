package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"studyrag/internal/generation"
)

const defaultModel = "gemini-2.0-flash"

// Config configures the Gemini gateway.
type Config struct {
	APIKey string
	Model  string
}

// contentGenerator is the slice of *genai.Models the gateway uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gateway generates answers with the Gemini API.
type Gateway struct {
	models contentGenerator
	model  string
}

// NewGateway creates a Gemini client. An empty API key falls back to the
// GEMINI_API_KEY / GOOGLE_API_KEY environment variables read by genai.
func NewGateway(ctx context.Context, cfg Config) (*Gateway, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return newGateway(client.Models, cfg.Model), nil
}

func newGateway(models contentGenerator, model string) *Gateway {
	if model == "" {
		model = defaultModel
	}
	return &Gateway{models: models, model: model}
}

func (g *Gateway) Name() string { return "gemini" }

func (g *Gateway) Generate(ctx context.Context, req generation.Request) (string, error) {
	resp, err := g.models.GenerateContent(ctx, g.model, buildContents(req), nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("no candidates found")
	}
	return strings.TrimSpace(resp.Text()), nil
}

// buildContents packs the prompt and optional image into one user turn.
func buildContents(req generation.Request) []*genai.Content {
	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	if req.Image != nil {
		mime := req.Image.MIMEType
		if mime == "" {
			mime = "image/jpeg"
		}
		parts = append(parts, genai.NewPartFromBytes(req.Image.Data, mime))
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}
