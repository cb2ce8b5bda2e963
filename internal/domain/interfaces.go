package domain

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Kind selects the extraction strategy for a document.
type Kind string

const (
	KindUnknown    Kind = ""
	KindFlatText   Kind = "text"
	KindPaginated  Kind = "paginated"
	KindStructured Kind = "structured"
)

// KindFromPath maps a file extension to a document kind.
func KindFromPath(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		return KindFlatText
	case ".pdf":
		return KindPaginated
	case ".docx":
		return KindStructured
	default:
		return KindUnknown
	}
}

// Document is a raw source handed to the extractor by a document source.
type Document struct {
	ID      string
	Path    string
	Kind    Kind
	Content []byte
}

// Chunk is the atomic retrieval unit: a bounded run of words tagged with the
// page it was emitted from.
type Chunk struct {
	DocumentID string
	Text       string
	PageNumber int
	Index      int
}

// Rendered returns the chunk with its page marker embedded, the form that is
// embedded, retrieved and cited.
func (c Chunk) Rendered() string {
	return fmt.Sprintf("[Page no. %d] \"%s\"", c.PageNumber, c.Text)
}

// Embedder converts a batch of texts into vectors of a fixed dimension.
// Output count and order match the input.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Chunker splits per-page text into page-tagged chunks.
type Chunker interface {
	Chunk(docID string, pages []string, startPage int) []Chunk
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
