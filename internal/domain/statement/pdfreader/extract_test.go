package pdfreader

import (
	"errors"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement"
	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement/pdfreader/pdftest"
)

type stubDocument struct {
	pages []PageContent
	errs  map[int]error
	meta  map[string]any
}

func (d *stubDocument) NumPages() int { return len(d.pages) }
func (d *stubDocument) Page(i int) (PageContent, error) {
	if err := d.errs[i]; err != nil {
		return PageContent{}, err
	}
	return d.pages[i-1], nil
}
func (d *stubDocument) Metadata() map[string]any { return d.meta }
func (d *stubDocument) Encrypted() bool          { return false }
func (d *stubDocument) Close() error             { return nil }

func TestTextExtractor_Extract(t *testing.T) {
	doc := &stubDocument{
		pages: []PageContent{
			{Text: "Opening Balance 50,000.00\r\nClosing Balance 48,500.00  ", Width: 612, Height: 792},
			{},
			{Text: "never read"},
		},
		errs: map[int]error{3: errors.New("bad content stream")},
		meta: map[string]any{"title": "Statement"},
	}

	et := NewTextExtractor(nil).Extract(doc)

	require.Equal(t, 3, et.PageCount)
	assert.Len(t, et.Pages, et.PageCount)
	assert.Equal(t, "Opening Balance 50,000.00\nClosing Balance 48,500.00", et.Pages[0].Text)
	assert.Equal(t, 612.0, et.Pages[0].Width)
	assert.Empty(t, et.Pages[1].Text)
	assert.Empty(t, et.Pages[2].Text, "a failing page degrades to empty text")
	assert.Equal(t, 3, et.Pages[2].Index)

	assert.Equal(t, "Statement", et.Metadata["title"])
	assert.Equal(t, 3, et.Metadata["num_pages"])
	assert.Equal(t, 1, et.Metadata["unreadable_pages"])
	assert.Equal(t, []string{"Opening Balance 50,000.00", "Closing Balance 48,500.00"}, et.Lines())
}

func TestTextExtractor_ImageOnlyDocument(t *testing.T) {
	doc := &stubDocument{pages: []PageContent{{}, {}}}
	et := NewTextExtractor(nil).Extract(doc)

	assert.Equal(t, 2, et.PageCount)
	assert.True(t, et.IsBlank())
	assert.NotNil(t, et.Metadata)
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"crlf", "a\r\nb\rc", "a\nb\nc"},
		{"control characters", "a\x00b\x07c", "abc"},
		{"ideographic space", "帳戶　餘額", "帳戶 餘額"},
		{"trailing blanks", "\n\nline  \t\n\n", "line"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeText(tt.in))
		})
	}
}

func TestJoinRows(t *testing.T) {
	rows := pdf.Rows{
		{Position: 700, Content: pdf.TextHorizontal{
			{S: "50,000.00", X: 300},
			{S: "Opening Balance", X: 72},
		}},
		{Position: 720, Content: pdf.TextHorizontal{
			{S: "Statement", X: 72, W: 50, FontSize: 12},
			{S: "Period", X: 123, W: 30, FontSize: 12},
		}},
		{Position: 680, Content: nil},
	}

	assert.Equal(t, "StatementPeriod\nOpening Balance 50,000.00", joinRows(rows))
}

func TestLibraryOpener(t *testing.T) {
	data := pdftest.Build("Monthly Statement",
		[]string{"Statement of Account", "Opening Balance 50,000.00"},
		[]string{"Closing Balance 48,500.00"},
	)

	doc, err := NewLibraryOpener().Open(data, "")
	require.NoError(t, err)
	defer doc.Close()

	assert.Equal(t, 2, doc.NumPages())
	assert.False(t, doc.Encrypted())

	et := NewTextExtractor(nil).Extract(doc)
	require.Equal(t, 2, et.PageCount)
	assert.Contains(t, et.Pages[0].Text, "Statement of Account")
	assert.Contains(t, et.Pages[0].Text, "Opening Balance 50,000.00")
	assert.Contains(t, et.Pages[1].Text, "Closing Balance 48,500.00")
	assert.Equal(t, 612.0, et.Pages[0].Width)
	assert.Equal(t, 792.0, et.Pages[0].Height)
	assert.Equal(t, "Monthly Statement", et.Metadata["title"])
	assert.Equal(t, 2, et.PageOf(len(et.FullText)-1))
}

func TestLibraryOpener_Corrupt(t *testing.T) {
	inputs := map[string][]byte{
		"empty":     nil,
		"not a pdf": []byte("hello world, this is not a document"),
		"truncated": pdftest.Build("x", []string{"a"})[:40],
	}
	for name, data := range inputs {
		t.Run(name, func(t *testing.T) {
			doc, err := NewLibraryOpener().Open(data, "")
			require.Error(t, err)
			assert.Nil(t, doc)
			assert.NotErrorIs(t, err, ErrPasswordRequired)
		})
	}
}

func TestCascade_CorruptThroughLibrary(t *testing.T) {
	_, err := NewCascade(NewLibraryOpener(), []string{"a"}, nil).Resolve([]byte("garbage"), "")
	assert.ErrorIs(t, err, statement.ErrCorrupt)
}
