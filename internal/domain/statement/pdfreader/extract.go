package pdfreader

import (
	"log/slog"
	"strings"

	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement"
)

// TextExtractor turns an opened Document into per-page text and metadata.
type TextExtractor struct {
	logger *slog.Logger
}

// NewTextExtractor creates a TextExtractor.
func NewTextExtractor(logger *slog.Logger) *TextExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &TextExtractor{logger: logger}
}

// Extract reads every page of doc. A page that cannot be decoded yields empty text
// instead of failing the document, so image-only PDFs come back blank. The caller
// owns doc and must close it.
func (e *TextExtractor) Extract(doc Document) *statement.ExtractedText {
	n := doc.NumPages()
	pages := make([]statement.Page, 0, n)
	failed := 0

	for i := 1; i <= n; i++ {
		content, err := doc.Page(i)
		if err != nil {
			failed++
			e.logger.Debug("page text unavailable", slog.Int("page", i), slog.Any("error", err))
			content = PageContent{Width: content.Width, Height: content.Height}
		}
		pages = append(pages, statement.Page{
			Index:  i,
			Text:   normalizeText(content.Text),
			Width:  content.Width,
			Height: content.Height,
		})
	}

	meta := doc.Metadata()
	if meta == nil {
		meta = map[string]any{}
	}
	if _, ok := meta["num_pages"]; !ok {
		meta["num_pages"] = n
	}
	if failed > 0 {
		meta["unreadable_pages"] = failed
	}

	et := statement.NewExtractedText(pages, meta)
	e.logger.Debug("text extracted",
		slog.Int("pages", et.PageCount),
		slog.Int("unreadable_pages", failed),
		slog.Int("chars", len(et.FullText)),
	)
	return et
}

// normalizeText unifies line endings, drops control characters other than newline
// and tab, and trims trailing spaces from every line.
func normalizeText(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case r == ' ' || r == '　':
			return ' '
		case r < 0x20 || r == 0x7f || r == '�':
			return -1
		}
		return r
	}, s)

	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	return strings.Trim(strings.Join(lines, "\n"), "\n")
}
