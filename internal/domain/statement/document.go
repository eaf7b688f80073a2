// Package statement holds the domain model shared by every stage of the
// document extraction pipeline: raw input, extracted text, document types,
// per-type summaries, transactions and the final result.
package statement

import (
	"sort"
	"strings"
)

// DocumentType identifies which field extractor handles a document.
type DocumentType string

const (
	BankStatement     DocumentType = "bank_statement"
	CreditCard        DocumentType = "credit_card"
	TransactionNotice DocumentType = "transaction_notice"
	Unknown           DocumentType = "unknown"
)

// KnownTypes lists every document type in classification tie-break priority order.
var KnownTypes = []DocumentType{BankStatement, CreditCard, TransactionNotice}

// Valid reports whether t is one of the closed set of types, Unknown included.
func (t DocumentType) Valid() bool {
	switch t {
	case BankStatement, CreditCard, TransactionNotice, Unknown:
		return true
	}
	return false
}

// Label returns a human-readable name.
func (t DocumentType) Label() string {
	switch t {
	case BankStatement:
		return "Bank statement"
	case CreditCard:
		return "Credit card bill"
	case TransactionNotice:
		return "Transaction notice"
	default:
		return "Unknown document"
	}
}

// RawDocument is the per-request input. It is never persisted.
type RawDocument struct {
	Data     []byte
	Password string       // optional explicit password
	TypeHint DocumentType // empty means no hint
}

// PageSeparator joins page texts in ExtractedText.FullText. The form feed keeps
// page boundaries recoverable without colliding with ordinary line breaks.
const PageSeparator = "\n\f\n"

// Page is the text of one PDF page.
type Page struct {
	Index  int     `json:"index"` // 1-based
	Text   string  `json:"text"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
}

// ExtractedText is the output of the text extraction stage.
type ExtractedText struct {
	Pages     []Page         `json:"pages"`
	FullText  string         `json:"full_text"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	PageCount int            `json:"page_count"`

	offsets []int // start offset of each page inside FullText
}

// NewExtractedText builds FullText and page offsets from pages.
func NewExtractedText(pages []Page, metadata map[string]any) *ExtractedText {
	if metadata == nil {
		metadata = map[string]any{}
	}
	var b strings.Builder
	offsets := make([]int, len(pages))
	for i, p := range pages {
		if i > 0 {
			b.WriteString(PageSeparator)
		}
		offsets[i] = b.Len()
		b.WriteString(p.Text)
	}
	return &ExtractedText{
		Pages:     pages,
		FullText:  b.String(),
		Metadata:  metadata,
		PageCount: len(pages),
		offsets:   offsets,
	}
}

// PageOf returns the 1-based page index that contains the given FullText byte offset,
// or 0 when the offset is out of range.
func (e *ExtractedText) PageOf(offset int) int {
	if e == nil || offset < 0 || offset > len(e.FullText) || len(e.offsets) == 0 {
		return 0
	}
	i := sort.Search(len(e.offsets), func(i int) bool { return e.offsets[i] > offset }) - 1
	if i < 0 {
		return 0
	}
	return e.Pages[i].Index
}

// Lines returns every non-empty trimmed line of FullText in reading order.
func (e *ExtractedText) Lines() []string {
	if e == nil {
		return nil
	}
	raw := strings.Split(e.FullText, "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimSpace(strings.ReplaceAll(l, "\f", ""))
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// IsBlank reports whether no page produced any text.
func (e *ExtractedText) IsBlank() bool {
	return e == nil || strings.TrimSpace(strings.ReplaceAll(e.FullText, "\f", "")) == ""
}
