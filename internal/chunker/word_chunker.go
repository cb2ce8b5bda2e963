package chunker

import (
	"strings"

	"studyrag/internal/domain"
)

// DefaultWordsPerChunk is the chunk size used when none is configured.
const DefaultWordsPerChunk = 150

// WordChunker splits page texts into fixed word-count chunks. A short
// remainder at the end of any page but the last is carried into the next
// page's words instead of being emitted, so only the final page can produce
// an undersized chunk. Carried words are tagged with the next page number.
type WordChunker struct {
	size int
}

func NewWordChunker(wordsPerChunk int) *WordChunker {
	if wordsPerChunk <= 0 {
		wordsPerChunk = DefaultWordsPerChunk
	}
	return &WordChunker{size: wordsPerChunk}
}

// Size returns the configured words per chunk.
func (c *WordChunker) Size() int { return c.size }

func (c *WordChunker) Chunk(docID string, pages []string, startPage int) []domain.Chunk {
	var chunks []domain.Chunk
	var carry []string
	last := len(pages) - 1
	for p, page := range pages {
		words := append(carry, strings.Fields(page)...)
		carry = nil
		for i := 0; i < len(words); i += c.size {
			end := i + c.size
			if end > len(words) {
				end = len(words)
			}
			if end-i < c.size && p != last {
				carry = append([]string(nil), words[i:end]...)
				break
			}
			chunks = append(chunks, domain.Chunk{
				DocumentID: docID,
				Text:       strings.Join(words[i:end], " "),
				PageNumber: startPage + p,
				Index:      len(chunks),
			})
		}
	}
	return chunks
}
