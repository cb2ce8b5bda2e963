package assembler

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"studyrag/internal/domain"
	"studyrag/internal/registry"
)

const (
	DefaultKPerCorpus = 5
	DefaultMaxChars   = 5000

	resultsHeading = "search results:\n\n"
	chunkSeparator = "\n\n"
)

// Instructions is the fixed block telling the generator how to answer.
const Instructions = "Instructions: Compose a comprehensive reply to the query using the search results given " +
	"and the context of the question. " +
	"Cite each reference using [Page no. N] notation (every result has this number at the beginning). " +
	"Citation should be done at the end of each sentence. " +
	"If the search results mention multiple subjects with the same name, create separate answers for each. " +
	"Answer step-by-step.\n\n"

// Options tunes retrieval breadth and the size budget of the chunk section.
type Options struct {
	KPerCorpus int
	// MaxChars bounds the runes taken by included chunks and their
	// separators. Nil or negative selects DefaultMaxChars; 0 includes no
	// chunks at all.
	MaxChars *int
	Logger   *zap.Logger
}

// Prompt is an assembled generation prompt and the chunks it includes.
type Prompt struct {
	Text   string
	Chunks []domain.Chunk
}

// Assembler turns a question and a set of corpora into a prompt.
type Assembler struct {
	k        int
	maxChars int
	logger   *zap.Logger
}

func New(opts Options) *Assembler {
	if opts.KPerCorpus <= 0 {
		opts.KPerCorpus = DefaultKPerCorpus
	}
	maxChars := DefaultMaxChars
	if opts.MaxChars != nil && *opts.MaxChars >= 0 {
		maxChars = *opts.MaxChars
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Assembler{k: opts.KPerCorpus, maxChars: maxChars, logger: opts.Logger}
}

// Assemble queries every corpus in order and builds the prompt. Chunks are
// appended whole until the next one would exceed the budget; nothing after
// that point is included. It returns domain.ErrNoResults when no corpus
// yields a chunk.
func (a *Assembler) Assemble(ctx context.Context, question string, corpora []registry.Entry, extraContext string) (Prompt, error) {
	var retrieved []domain.Chunk
	for _, e := range corpora {
		chunks, err := e.Corpus.Query(ctx, question, a.k)
		if err != nil {
			return Prompt{}, fmt.Errorf("query %s: %w", e.ID, err)
		}
		a.logger.Debug("Corpus searched",
			zap.String("corpus", e.ID),
			zap.Int("chunks", len(chunks)),
		)
		retrieved = append(retrieved, chunks...)
	}
	if len(retrieved) == 0 {
		return Prompt{}, domain.ErrNoResults
	}

	var included []domain.Chunk
	var body strings.Builder
	used := 0
	for _, c := range retrieved {
		piece := c.Rendered() + chunkSeparator
		n := utf8.RuneCountInString(piece)
		if used+n > a.maxChars {
			break
		}
		used += n
		body.WriteString(piece)
		included = append(included, c)
	}
	if len(included) < len(retrieved) {
		a.logger.Debug("Chunk budget reached",
			zap.Int("included", len(included)),
			zap.Int("retrieved", len(retrieved)),
			zap.Int("max_chars", a.maxChars),
		)
	}

	var sb strings.Builder
	if len(included) > 0 {
		sb.WriteString(resultsHeading)
		sb.WriteString(body.String())
	}
	sb.WriteString("Context :\n\n")
	sb.WriteString(extraContext)
	sb.WriteString("\n\n")
	sb.WriteString(Instructions)
	sb.WriteString("Query: ")
	sb.WriteString(question)
	sb.WriteString("\nAnswer:")

	return Prompt{Text: sb.String(), Chunks: included}, nil
}
