package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"studyrag/internal/assembler"
	"studyrag/internal/domain"
	"studyrag/internal/extract"
	"studyrag/internal/generation"
	"studyrag/internal/index"
	"studyrag/internal/metrics"
	"studyrag/internal/registry"
	"studyrag/internal/vectorstore"
)

// Deps are the collaborators a session is built from.
type Deps struct {
	Chunker    domain.Chunker
	Embedder   domain.Embedder
	Storage    vectorstore.Factory
	Generator  generation.Gateway
	Summarizer domain.Summarizer
	Logger     *zap.Logger
}

// Options tune extraction, retrieval and prompt assembly.
type Options struct {
	StartPage          int
	EndPage            int
	BatchSize          int
	Neighbors          int
	KPerCorpus         int
	MaxChars           *int
	Workers            int
	SummarySentences   int
	FlashcardStartPage int
	FlashcardMaxChars  int
}

const (
	defaultWorkers            = 4
	defaultFlashcardStartPage = 3
	defaultFlashcardMaxChars  = 5000
)

// Session owns the corpora of one question-answering session.
type Session struct {
	id        string
	deps      Deps
	opts      Options
	registry  *registry.Registry
	assembler *assembler.Assembler
	logger    *zap.Logger

	mu    sync.RWMutex
	texts map[string]string
}

// NewSession creates an empty session.
func NewSession(deps Deps, opts Options) (*Session, error) {
	if deps.Chunker == nil || deps.Embedder == nil || deps.Storage == nil {
		return nil, errors.New("session needs a chunker, an embedder and a storage factory")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if opts.StartPage <= 0 {
		opts.StartPage = 1
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.FlashcardStartPage <= 0 {
		opts.FlashcardStartPage = defaultFlashcardStartPage
	}
	if opts.FlashcardMaxChars <= 0 {
		opts.FlashcardMaxChars = defaultFlashcardMaxChars
	}

	id := uuid.NewString()
	logger := deps.Logger.With(zap.String("session", id))
	return &Session{
		id:   id,
		deps: deps,
		opts: opts,
		assembler: assembler.New(assembler.Options{
			KPerCorpus: opts.KPerCorpus,
			MaxChars:   opts.MaxChars,
			Logger:     logger,
		}),
		registry: registry.New(),
		logger:   logger,
		texts:    make(map[string]string),
	}, nil
}

func (s *Session) ID() string { return s.id }

// Loaded describes one registered document.
type Loaded struct {
	ID     string
	Kind   domain.Kind
	Pages  int
	Chunks int
	// Warning is domain.ErrEmptyCorpus when the document produced no chunks.
	Warning error
}

// Failure is a document that could not be registered.
type Failure struct {
	Path string
	Err  error
}

// LoadReport summarises a LoadDocuments call.
type LoadReport struct {
	Loaded []Loaded
	Failed []Failure
}

// Empty lists loaded documents that produced no chunks.
func (r LoadReport) Empty() []string {
	var out []string
	for _, l := range r.Loaded {
		if l.Chunks == 0 {
			out = append(out, l.ID)
		}
	}
	return out
}

type fitted struct {
	loaded Loaded
	index  *index.Index
	text   string
}

// LoadDocument extracts, chunks and indexes one file and registers it under
// its path. A document already registered is replaced.
func (s *Session) LoadDocument(ctx context.Context, path string) (Loaded, error) {
	f, err := s.fit(ctx, path)
	if err != nil {
		return Loaded{}, err
	}
	s.register(f)
	return f.loaded, nil
}

// LoadDocuments expands globs and loads every match. Documents are fitted in
// parallel and registered in input order. Individual failures are reported,
// not returned; an error is returned only when nothing could be loaded.
func (s *Session) LoadDocuments(ctx context.Context, patterns []string) (LoadReport, error) {
	paths := expand(patterns)
	if len(paths) == 0 {
		return LoadReport{}, errors.New("no documents found")
	}

	results := make([]fitted, len(paths))
	errs := make([]error, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i, p := range paths {
		g.Go(func() error {
			results[i], errs[i] = s.fit(gctx, p)
			return nil
		})
	}
	_ = g.Wait()

	var report LoadReport
	var failures []error
	for i, p := range paths {
		if errs[i] != nil {
			report.Failed = append(report.Failed, Failure{Path: p, Err: errs[i]})
			failures = append(failures, fmt.Errorf("%s: %w", p, errs[i]))
			continue
		}
		s.register(results[i])
		report.Loaded = append(report.Loaded, results[i].loaded)
	}
	if len(report.Loaded) == 0 {
		return report, errors.Join(failures...)
	}
	return report, nil
}

func (s *Session) fit(ctx context.Context, path string) (fitted, error) {
	kind := domain.KindFromPath(path)
	if kind == domain.KindUnknown {
		return fitted{}, fmt.Errorf("%s: %w", path, domain.ErrUnsupportedFormat)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return fitted{}, fmt.Errorf("read %s: %w", path, err)
	}
	doc := domain.Document{ID: path, Path: path, Kind: kind, Content: content}

	pages, err := extract.Extract(doc, s.opts.StartPage, s.opts.EndPage)
	if err != nil {
		return fitted{}, err
	}
	chunks := s.deps.Chunker.Chunk(doc.ID, pages, s.opts.StartPage)

	storage, err := s.deps.Storage(doc.ID)
	if err != nil {
		return fitted{}, fmt.Errorf("storage for %s: %w", path, err)
	}
	idx := index.New(s.deps.Embedder, storage, index.Options{
		BatchSize: s.opts.BatchSize,
		Neighbors: s.opts.Neighbors,
	})
	if err := idx.Fit(ctx, chunks); err != nil {
		return fitted{}, fmt.Errorf("index %s: %w", path, err)
	}

	loaded := Loaded{ID: doc.ID, Kind: kind, Pages: len(pages), Chunks: len(chunks)}
	if len(chunks) == 0 {
		loaded.Warning = domain.ErrEmptyCorpus
	}
	return fitted{loaded: loaded, index: idx, text: strings.Join(pages, " ")}, nil
}

func (s *Session) register(f fitted) {
	s.registry.Register(f.loaded.ID, f.index)
	s.mu.Lock()
	s.texts[f.loaded.ID] = f.text
	s.mu.Unlock()
	metrics.RegisteredCorpora.Set(float64(s.registry.Len()))

	if f.loaded.Warning != nil {
		s.logger.Warn("Document registered without chunks",
			zap.String("document", f.loaded.ID),
			zap.Error(f.loaded.Warning),
		)
		return
	}
	s.logger.Info("Document registered",
		zap.String("document", f.loaded.ID),
		zap.String("kind", string(f.loaded.Kind)),
		zap.Int("pages", f.loaded.Pages),
		zap.Int("chunks", f.loaded.Chunks),
	)
}

// expand resolves glob patterns, keeping literal paths that match nothing.
func expand(patterns []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range patterns {
		matches, _ := filepath.Glob(p)
		if matches == nil {
			matches = []string{p}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	return out
}

// CorpusInfo describes a registered corpus.
type CorpusInfo struct {
	ID     string `json:"id"`
	Chunks int    `json:"chunks"`
}

// Corpora lists registered corpora in registration order.
func (s *Session) Corpora() []CorpusInfo {
	entries := s.registry.Entries()
	out := make([]CorpusInfo, len(entries))
	for i, e := range entries {
		out[i] = CorpusInfo{ID: e.ID, Chunks: e.Corpus.Len()}
	}
	return out
}

// Question is one user query.
type Question struct {
	Text      string
	Context   string
	ImagePath string
}

// Answer carries the assembled prompt alongside the generation outcome, so
// a failed generation can be resubmitted without repeating retrieval.
type Answer struct {
	Prompt assembler.Prompt
	Result generation.Result
}

// Ask retrieves context from every registered corpus and generates an
// answer. Retrieval failures are returned as errors; generation failures are
// reported in Answer.Result.
func (s *Session) Ask(ctx context.Context, q Question) (Answer, error) {
	if s.deps.Generator == nil {
		return Answer{}, errors.New("no generator configured")
	}
	img, err := generation.LoadImage(q.ImagePath)
	if err != nil {
		return Answer{}, err
	}
	prompt, err := s.assembler.Assemble(ctx, q.Text, s.registry.Entries(), q.Context)
	if err != nil {
		return Answer{}, err
	}
	s.logger.Debug("Prompt assembled",
		zap.Int("chunks", len(prompt.Chunks)),
		zap.Int("chars", len(prompt.Text)),
	)
	res := generation.Run(ctx, s.deps.Generator, generation.Request{Prompt: prompt.Text, Image: img}, s.logger)
	return Answer{Prompt: prompt, Result: res}, nil
}

// Resubmit sends a previously assembled prompt to the generator again.
func (s *Session) Resubmit(ctx context.Context, prompt, imagePath string) generation.Result {
	if s.deps.Generator == nil {
		return generation.Result{Err: &generation.Error{Provider: "none", Err: errors.New("no generator configured")}}
	}
	img, err := generation.LoadImage(imagePath)
	if err != nil {
		return generation.Result{Err: &generation.Error{Provider: s.deps.Generator.Name(), Err: err}}
	}
	return generation.Run(ctx, s.deps.Generator, generation.Request{Prompt: prompt, Image: img}, s.logger)
}

// Summary is an extractive summary of one registered document.
type Summary struct {
	ID   string
	Text string
}

// Summaries summarises every registered document in registration order.
func (s *Session) Summaries() ([]Summary, error) {
	if s.deps.Summarizer == nil {
		return nil, nil
	}
	ids := s.registry.IDs()
	out := make([]Summary, 0, len(ids))
	for _, id := range ids {
		s.mu.RLock()
		text := s.texts[id]
		s.mu.RUnlock()
		sum, err := s.deps.Summarizer.Summarize(text, s.opts.SummarySentences)
		if err != nil {
			return nil, fmt.Errorf("summarize %s: %w", id, err)
		}
		out = append(out, Summary{ID: id, Text: sum})
	}
	return out, nil
}
