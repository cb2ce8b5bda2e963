package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"studyrag/internal/chunker"
	"studyrag/internal/config"
	"studyrag/internal/domain"
	"studyrag/internal/embedding"
	"studyrag/internal/embedding/hashed"
	embopenai "studyrag/internal/embedding/openai"
	"studyrag/internal/generation"
	"studyrag/internal/generation/gemini"
	genopenai "studyrag/internal/generation/openai"
	"studyrag/internal/service"
	"studyrag/internal/summarizer"
	"studyrag/internal/vectorstore"
	"studyrag/internal/vectorstore/memory"
	"studyrag/internal/vectorstore/qdrant"
)

// app is a wired session plus whatever must be closed with it.
type app struct {
	session *service.Session
	closers []func() error
}

func (a *app) Close() {
	for _, c := range a.closers {
		_ = c()
	}
}

func buildApp(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*app, error) {
	a := &app{}

	emb, err := buildEmbedder(cfg.Embedder, logger)
	if err != nil {
		return nil, err
	}
	storage, closeStorage, err := buildStorage(cfg.Index, logger)
	if err != nil {
		return nil, err
	}
	if closeStorage != nil {
		a.closers = append(a.closers, closeStorage)
	}
	gen, err := buildGenerator(ctx, cfg.Generator)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.session, err = service.NewSession(service.Deps{
		Chunker:    chunker.NewWordChunker(cfg.Chunker.WordsPerChunk),
		Embedder:   embedding.NewInstrumented(emb, logger),
		Storage:    storage,
		Generator:  gen,
		Summarizer: summarizer.NewFrequencySummarizer(),
		Logger:     logger,
	}, sessionOptions(cfg))
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func sessionOptions(cfg *config.AppConfig) service.Options {
	return service.Options{
		StartPage:          cfg.Extract.StartPage,
		EndPage:            cfg.Extract.EndPage,
		BatchSize:          cfg.Index.BatchSize,
		Neighbors:          cfg.Index.Neighbors,
		KPerCorpus:         cfg.Assembler.KPerCorpus,
		MaxChars:           cfg.Assembler.MaxChars,
		Workers:            cfg.Ingest.Workers,
		SummarySentences:   cfg.Summarizer.MaxSentences,
		FlashcardStartPage: cfg.Flashcards.StartPage,
		FlashcardMaxChars:  cfg.Flashcards.MaxChars,
	}
}

func buildEmbedder(cfg config.EmbedderConfig, logger *zap.Logger) (domain.Embedder, error) {
	switch cfg.Type {
	case "hashed":
		dim := 0
		if cfg.Hashed != nil {
			dim = cfg.Hashed.Dimensions
		}
		return hashed.NewEmbedder(dim), nil
	case "openai":
		o := cfg.OpenAI
		if o == nil {
			return nil, fmt.Errorf("openai embedder config missing")
		}
		key, err := config.APIKey(o.APIKeyEnv)
		if err != nil {
			return nil, err
		}
		client, err := embopenai.NewClient(embopenai.Config{
			APIKey:            key,
			BaseURL:           o.BaseURL,
			Model:             o.Model,
			Timeout:           time.Duration(o.TimeoutSecs) * time.Second,
			RequestsPerMinute: o.RequestsPerMinute,
			MaxRetries:        o.MaxRetries,
			Logger:            logger,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}
}

// buildStorage returns the per-corpus storage factory and, for remote
// stores, a closer for the shared connection.
func buildStorage(cfg config.IndexConfig, logger *zap.Logger) (vectorstore.Factory, func() error, error) {
	switch cfg.Store {
	case "memory":
		metric, err := memory.ParseMetric(cfg.Metric)
		if err != nil {
			return nil, nil, err
		}
		return memory.NewFactory(metric), nil, nil
	case "qdrant":
		if cfg.Qdrant == nil {
			return nil, nil, fmt.Errorf("qdrant config missing")
		}
		client, err := qdrant.Dial(qdrant.Config{
			Addr:             cfg.Qdrant.Addr,
			APIKey:           cfg.Qdrant.APIKey,
			CollectionPrefix: cfg.Qdrant.CollectionPrefix,
			Metric:           cfg.Metric,
			Logger:           logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return client.Factory(), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown vector store: %s", cfg.Store)
	}
}

func buildGenerator(ctx context.Context, cfg config.GeneratorConfig) (generation.Gateway, error) {
	switch cfg.Type {
	case "openai":
		o := cfg.OpenAI
		if o == nil {
			return nil, fmt.Errorf("openai generator config missing")
		}
		key, err := config.APIKey(o.APIKeyEnv)
		if err != nil {
			return nil, err
		}
		gw, err := genopenai.NewGateway(genopenai.Config{
			APIKey:      key,
			BaseURL:     o.BaseURL,
			Model:       o.Model,
			VisionModel: o.VisionModel,
			Timeout:     time.Duration(o.TimeoutSecs) * time.Second,
			Temperature: o.Temperature,
		})
		if err != nil {
			return nil, err
		}
		return gw, nil
	case "gemini":
		g := cfg.Gemini
		if g == nil {
			return nil, fmt.Errorf("gemini generator config missing")
		}
		key, err := config.APIKey(g.APIKeyEnv)
		if err != nil {
			return nil, err
		}
		gw, err := gemini.NewGateway(ctx, gemini.Config{APIKey: key, Model: g.Model})
		if err != nil {
			return nil, err
		}
		return gw, nil
	default:
		return nil, fmt.Errorf("unknown generator: %s", cfg.Type)
	}
}

// documentsIn lists the supported documents directly inside dir.
func documentsIn(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || domain.KindFromPath(e.Name()) == domain.KindUnknown {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	return out, nil
}

// loadAll loads documents and reports partial failures on stderr.
func loadAll(ctx context.Context, session *service.Session, patterns []string, logger *zap.Logger) error {
	report, err := session.LoadDocuments(ctx, patterns)
	for _, f := range report.Failed {
		logger.Warn("Document skipped", zap.String("path", f.Path), zap.Error(f.Err))
	}
	for _, id := range report.Empty() {
		logger.Warn("Document has no text", zap.String("path", id))
	}
	if err != nil {
		return fmt.Errorf("load documents: %w", err)
	}
	return nil
}
