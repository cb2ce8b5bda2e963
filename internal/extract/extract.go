// Package extract turns raw documents into ordered, normalized page texts.
package extract

import (
	"fmt"
	"regexp"
	"strings"

	"studyrag/internal/domain"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// Normalize folds newlines to spaces and collapses whitespace runs.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\n", " ")
	return whitespaceRun.ReplaceAllString(text, " ")
}

// Extract returns one normalized string per page of doc. startPage and
// endPage are 1-based and inclusive and only apply to paginated documents;
// endPage <= 0 means the last page. Flat and structured documents always
// produce a single page.
func Extract(doc domain.Document, startPage, endPage int) ([]string, error) {
	switch doc.Kind {
	case domain.KindFlatText:
		return []string{Normalize(string(doc.Content))}, nil
	case domain.KindPaginated:
		return pdfPages(doc.Content, startPage, endPage)
	case domain.KindStructured:
		text, err := docxText(doc.Content)
		if err != nil {
			return nil, err
		}
		return []string{Normalize(text)}, nil
	default:
		return nil, fmt.Errorf("%s (kind %q): %w", doc.Path, doc.Kind, domain.ErrUnsupportedFormat)
	}
}

// pageRange clamps a 1-based inclusive range to [1, total].
func pageRange(startPage, endPage, total int) (int, int) {
	if startPage < 1 {
		startPage = 1
	}
	if endPage <= 0 || endPage > total {
		endPage = total
	}
	return startPage, endPage
}
