package assembler

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyrag/internal/domain"
	"studyrag/internal/registry"
)

type fixedCorpus struct {
	chunks []domain.Chunk
	err    error
	gotK   int
}

func (f *fixedCorpus) Query(_ context.Context, _ string, k int) ([]domain.Chunk, error) {
	f.gotK = k
	if f.err != nil {
		return nil, f.err
	}
	return f.chunks[:min(k, len(f.chunks))], nil
}

func (f *fixedCorpus) Len() int { return len(f.chunks) }

func chunk(doc, text string, page int) domain.Chunk {
	return domain.Chunk{DocumentID: doc, Text: text, PageNumber: page}
}

func budget(n int) *int { return &n }

func TestAssemble_Layout(t *testing.T) {
	a := New(Options{})
	first := &fixedCorpus{chunks: []domain.Chunk{chunk("a", "alpha", 1), chunk("a", "beta", 2)}}
	second := &fixedCorpus{chunks: []domain.Chunk{chunk("b", "gamma", 7)}}

	p, err := a.Assemble(context.Background(), "What is alpha?",
		[]registry.Entry{{ID: "a", Corpus: first}, {ID: "b", Corpus: second}}, "Course: PSY101")
	require.NoError(t, err)

	want := "search results:\n\n" +
		"[Page no. 1] \"alpha\"\n\n" +
		"[Page no. 2] \"beta\"\n\n" +
		"[Page no. 7] \"gamma\"\n\n" +
		"Context :\n\nCourse: PSY101\n\n" +
		Instructions +
		"Query: What is alpha?\nAnswer:"
	assert.Equal(t, want, p.Text)
	assert.Len(t, p.Chunks, 3)
	assert.Equal(t, DefaultKPerCorpus, first.gotK)
}

func TestAssemble_BudgetStopsAtFirstOverflow(t *testing.T) {
	// Each rendered chunk is `[Page no. 1] "xxxx"` (19 runes) plus 2 for the separator.
	short := chunk("a", "xxxx", 1)
	long := chunk("a", strings.Repeat("y", 40), 1)
	corpus := &fixedCorpus{chunks: []domain.Chunk{short, long, short}}

	a := New(Options{KPerCorpus: 3, MaxChars: budget(50)})
	p, err := a.Assemble(context.Background(), "q", []registry.Entry{{ID: "a", Corpus: corpus}}, "")
	require.NoError(t, err)

	assert.Equal(t, []domain.Chunk{short}, p.Chunks, "a later chunk that would fit is still dropped")
	assert.Equal(t, 1, strings.Count(p.Text, "[Page no."))
}

func TestAssemble_BudgetExact(t *testing.T) {
	c := chunk("a", "xxxx", 1)
	piece := c.Rendered() + "\n\n"
	corpus := &fixedCorpus{chunks: []domain.Chunk{c, c}}

	a := New(Options{MaxChars: budget(2 * len(piece))})
	p, err := a.Assemble(context.Background(), "q", []registry.Entry{{ID: "a", Corpus: corpus}}, "")
	require.NoError(t, err)
	assert.Len(t, p.Chunks, 2)
}

func TestAssemble_RunesNotBytes(t *testing.T) {
	c := chunk("a", "ééé", 1)
	runes := len([]rune(c.Rendered() + "\n\n"))
	corpus := &fixedCorpus{chunks: []domain.Chunk{c}}

	a := New(Options{MaxChars: budget(runes)})
	p, err := a.Assemble(context.Background(), "q", []registry.Entry{{ID: "a", Corpus: corpus}}, "")
	require.NoError(t, err)
	assert.Len(t, p.Chunks, 1)
}

func TestAssemble_NothingFits(t *testing.T) {
	corpus := &fixedCorpus{chunks: []domain.Chunk{chunk("a", strings.Repeat("z", 100), 1)}}

	a := New(Options{MaxChars: budget(10)})
	p, err := a.Assemble(context.Background(), "q", []registry.Entry{{ID: "a", Corpus: corpus}}, "ctx")
	require.NoError(t, err)
	assert.Empty(t, p.Chunks)
	assert.True(t, strings.HasPrefix(p.Text, "Context :"))
}

func TestAssemble_ZeroBudgetOmitsChunks(t *testing.T) {
	corpus := &fixedCorpus{chunks: []domain.Chunk{chunk("a", "x", 1)}}

	a := New(Options{MaxChars: budget(0)})
	p, err := a.Assemble(context.Background(), "q", []registry.Entry{{ID: "a", Corpus: corpus}}, "ctx")
	require.NoError(t, err)

	assert.Empty(t, p.Chunks)
	assert.NotContains(t, p.Text, "search results:")
	assert.NotContains(t, p.Text, "[Page no.")
	assert.Equal(t, "Context :\n\nctx\n\n"+Instructions+"Query: q\nAnswer:", p.Text)
}

func TestAssemble_UnsetOrNegativeBudgetUsesDefault(t *testing.T) {
	c := chunk("a", strings.Repeat("w", DefaultMaxChars/2), 1)
	corpus := &fixedCorpus{chunks: []domain.Chunk{c, c, c}}
	entries := []registry.Entry{{ID: "a", Corpus: corpus}}

	for _, opts := range []Options{{}, {MaxChars: budget(-1)}} {
		p, err := New(opts).Assemble(context.Background(), "q", entries, "")
		require.NoError(t, err)
		assert.Len(t, p.Chunks, 1, "two half-budget chunks plus framing exceed the default")
	}
}

func TestAssemble_NoResults(t *testing.T) {
	a := New(Options{})

	_, err := a.Assemble(context.Background(), "q", nil, "")
	assert.ErrorIs(t, err, domain.ErrNoResults)

	empty := &fixedCorpus{}
	_, err = a.Assemble(context.Background(), "q", []registry.Entry{{ID: "e", Corpus: empty}}, "")
	assert.ErrorIs(t, err, domain.ErrNoResults)
}

func TestAssemble_EmptyCorpusDoesNotBlockOthers(t *testing.T) {
	a := New(Options{})
	empty := &fixedCorpus{}
	full := &fixedCorpus{chunks: []domain.Chunk{chunk("b", "kept", 3)}}

	p, err := a.Assemble(context.Background(), "q",
		[]registry.Entry{{ID: "e", Corpus: empty}, {ID: "b", Corpus: full}}, "")
	require.NoError(t, err)
	assert.Len(t, p.Chunks, 1)
}

func TestAssemble_QueryErrorPropagates(t *testing.T) {
	a := New(Options{})
	broken := &fixedCorpus{err: domain.ErrEmbeddingService}

	_, err := a.Assemble(context.Background(), "q", []registry.Entry{{ID: "x", Corpus: broken}}, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrEmbeddingService))
}
