// Package pdfreader opens PDF documents (resolving passwords through a cascade of
// candidates) and extracts per-page text and metadata from them.
package pdfreader

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrPasswordRequired is returned by an Opener when the document is encrypted and the
// supplied password (possibly empty) does not unlock it.
var ErrPasswordRequired = errors.New("password required or incorrect")

// ErrUnsupportedEncryption is returned when the document uses a security handler
// the PDF library cannot decrypt, whatever the password.
var ErrUnsupportedEncryption = errors.New("unsupported encryption")

// Opener opens raw PDF bytes with a password ("" means none).
type Opener interface {
	Open(data []byte, password string) (Document, error)
}

// PageContent is what a Document reports for one page.
type PageContent struct {
	Text   string
	Width  float64
	Height float64
}

// Document is an opened PDF handle. Close must be called on every exit path.
type Document interface {
	NumPages() int
	// Page returns the content of the 1-based page i.
	Page(i int) (PageContent, error)
	Metadata() map[string]any
	Encrypted() bool
	Close() error
}

// LibraryOpener opens documents with github.com/ledongthuc/pdf.
type LibraryOpener struct{}

// NewLibraryOpener returns the production Opener.
func NewLibraryOpener() *LibraryOpener {
	return &LibraryOpener{}
}

// Open parses data and, when encrypted, authenticates with password. The library
// panics on some malformed inputs; those panics surface as errors here.
func (o *LibraryOpener) Open(data []byte, password string) (doc Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("parse pdf: %v", r)
		}
	}()

	served := false
	next := func() string {
		if served {
			return ""
		}
		served = true
		return password
	}

	reader, err := pdf.NewReaderEncrypted(bytes.NewReader(data), int64(len(data)), next)
	if err != nil {
		if errors.Is(err, pdf.ErrInvalidPassword) {
			return nil, ErrPasswordRequired
		}
		if strings.Contains(strings.ToLower(err.Error()), "encrypt") {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedEncryption, err)
		}
		return nil, fmt.Errorf("parse pdf: %w", err)
	}
	return &libraryDocument{reader: reader}, nil
}

type libraryDocument struct {
	reader *pdf.Reader
}

func (d *libraryDocument) NumPages() int {
	if d.reader == nil {
		return 0
	}
	return d.reader.NumPage()
}

func (d *libraryDocument) Encrypted() bool {
	return d.reader != nil && !d.reader.Trailer().Key("Encrypt").IsNull()
}

func (d *libraryDocument) Close() error {
	d.reader = nil
	return nil
}

func (d *libraryDocument) Page(i int) (content PageContent, err error) {
	if d.reader == nil {
		return PageContent{}, errors.New("document closed")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d: %v", i, r)
		}
	}()

	page := d.reader.Page(i)
	if page.V.IsNull() {
		return PageContent{}, fmt.Errorf("page %d: missing", i)
	}

	content.Width, content.Height = mediaBox(page.V)

	rows, err := page.GetTextByRow()
	if err != nil {
		return content, fmt.Errorf("page %d: %w", i, err)
	}
	content.Text = joinRows(rows)
	return content, nil
}

// metadataKeys maps PDF Info dictionary keys to result metadata keys.
var metadataKeys = map[string]string{
	"Title":        "title",
	"Author":       "author",
	"Subject":      "subject",
	"Creator":      "creator",
	"Producer":     "producer",
	"CreationDate": "creation_date",
	"ModDate":      "modification_date",
}

func (d *libraryDocument) Metadata() (meta map[string]any) {
	meta = map[string]any{}
	if d.reader == nil {
		return meta
	}
	defer func() {
		if r := recover(); r != nil {
			meta["metadata_error"] = fmt.Sprint(r)
		}
	}()

	meta["num_pages"] = d.reader.NumPage()
	meta["is_encrypted"] = d.Encrypted()

	info := d.reader.Trailer().Key("Info")
	if info.IsNull() {
		return meta
	}
	for pdfKey, key := range metadataKeys {
		v := info.Key(pdfKey)
		if v.Kind() != pdf.String {
			continue
		}
		if text := strings.TrimSpace(v.Text()); text != "" {
			meta[key] = text
		}
	}
	return meta
}

// mediaBox returns page width and height, following the Parent chain for inherited boxes.
func mediaBox(page pdf.Value) (float64, float64) {
	for v, depth := page, 0; !v.IsNull() && depth < 16; v, depth = v.Key("Parent"), depth+1 {
		box := v.Key("MediaBox")
		if box.Kind() == pdf.Array && box.Len() == 4 {
			return box.Index(2).Float64() - box.Index(0).Float64(), box.Index(3).Float64() - box.Index(1).Float64()
		}
	}
	return 0, 0
}

// joinRows renders library rows top-to-bottom and each row left-to-right. A space
// is inserted between glyph runs separated by a visible horizontal gap.
func joinRows(rows pdf.Rows) string {
	sorted := make([]*pdf.Row, 0, len(rows))
	for _, r := range rows {
		if r != nil && len(r.Content) > 0 {
			sorted = append(sorted, r)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Position > sorted[j].Position })

	lines := make([]string, 0, len(sorted))
	for _, row := range sorted {
		texts := append(pdf.TextHorizontal(nil), row.Content...)
		sort.SliceStable(texts, func(i, j int) bool { return texts[i].X < texts[j].X })

		var b strings.Builder
		prevEnd := 0.0
		for i, t := range texts {
			if i > 0 && t.X-prevEnd > gapThreshold(t.FontSize) && !strings.HasSuffix(b.String(), " ") {
				b.WriteByte(' ')
			}
			b.WriteString(t.S)
			prevEnd = t.X + t.W
		}
		if line := strings.TrimRight(b.String(), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func gapThreshold(fontSize float64) float64 {
	if fontSize <= 0 {
		return 1.5
	}
	return fontSize * 0.25
}
