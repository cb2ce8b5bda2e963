package extract

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"rsc.io/pdf"
)

func pdfPages(content []byte, startPage, endPage int) (pages []string, err error) {
	// rsc.io/pdf panics on some malformed content streams.
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("read pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	first, last := pageRange(startPage, endPage, r.NumPage())
	for i := first; i <= last; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, Normalize(pageText(p.Content().Text)))
	}
	return pages, nil
}

// pageText joins positioned glyph runs. A change of baseline starts a new
// line; a horizontal gap wider than a fraction of the font size becomes a
// space.
func pageText(runs []pdf.Text) string {
	var b strings.Builder
	for i, t := range runs {
		if i > 0 {
			prev := runs[i-1]
			switch {
			case math.Abs(t.Y-prev.Y) > 0.5*math.Max(prev.FontSize, 1):
				b.WriteByte('\n')
			case t.X-(prev.X+prev.W) > 0.15*math.Max(t.FontSize, 1):
				b.WriteByte(' ')
			}
		}
		b.WriteString(t.S)
	}
	return b.String()
}
