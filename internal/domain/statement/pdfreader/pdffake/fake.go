// Package pdffake provides in-memory Opener and Document doubles for tests of code
// that sits above the PDF library.
package pdffake

import (
	"sync"

	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement/pdfreader"
)

// Document is a fake pdfreader.Document. Pages holds page text; PageErrors marks
// 1-based pages whose decoding fails.
type Document struct {
	Pages       []string
	PageErrors  map[int]error
	Meta        map[string]any
	IsEncrypted bool

	mu     sync.Mutex
	closed int
}

func (d *Document) NumPages() int { return len(d.Pages) }

func (d *Document) Page(i int) (pdfreader.PageContent, error) {
	if err, ok := d.PageErrors[i]; ok {
		return pdfreader.PageContent{Width: 612, Height: 792}, err
	}
	return pdfreader.PageContent{Text: d.Pages[i-1], Width: 612, Height: 792}, nil
}

func (d *Document) Metadata() map[string]any {
	meta := make(map[string]any, len(d.Meta))
	for k, v := range d.Meta {
		meta[k] = v
	}
	return meta
}

func (d *Document) Encrypted() bool { return d.IsEncrypted }

func (d *Document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed++
	return nil
}

// Closed reports how many times Close was called.
func (d *Document) Closed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Opener is a fake pdfreader.Opener. When Password is empty the document opens
// without one; otherwise only Password unlocks it. A non-nil OpenErr is returned
// for every attempt, simulating a corrupt file.
type Opener struct {
	Doc      *Document
	Password string
	OpenErr  error

	mu       sync.Mutex
	attempts []string
}

func (o *Opener) Open(_ []byte, password string) (pdfreader.Document, error) {
	o.mu.Lock()
	o.attempts = append(o.attempts, password)
	o.mu.Unlock()

	if o.OpenErr != nil {
		return nil, o.OpenErr
	}
	if o.Password != "" && password != o.Password {
		return nil, pdfreader.ErrPasswordRequired
	}
	o.Doc.IsEncrypted = o.Password != ""
	return o.Doc, nil
}

// Attempts returns every password tried, the empty probe included, in order.
func (o *Opener) Attempts() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.attempts...)
}
