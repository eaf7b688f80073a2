// Package extractor turns extracted statement text into a typed summary and a list
// of transactions. Each document type has its own Extractor; all of them share the
// numeric, date, anchor and line rules in this package. Extraction never fails:
// a field that cannot be located stays nil.
package extractor

import (
	"strings"

	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement"
	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement/normalizer"
	"github.com/FACorreiaa/statement-pipeline/pkg/money"
)

// Extractor produces the summary and transactions of one document type.
type Extractor interface {
	Type() statement.DocumentType
	Extract(text *statement.ExtractedText) statement.Extraction
}

// Options tune extraction.
type Options struct {
	// DefaultCurrency is reported when the text names no currency. Empty leaves
	// the currency unset.
	DefaultCurrency string
}

// Registry maps each document type to its extractor.
type Registry struct {
	extractors map[statement.DocumentType]Extractor
	unknown    Extractor
}

// NewRegistry registers the built-in extractors.
func NewRegistry(opts Options) *Registry {
	merchants := normalizer.NewMerchantSanitizer()
	return NewRegistryWith(
		NewBankStatement(opts),
		NewCreditCard(opts),
		NewTransactionNotice(opts, merchants),
	)
}

// NewRegistryWith builds a registry over custom extractors. Unknown documents are
// always handled by the empty extractor.
func NewRegistryWith(extractors ...Extractor) *Registry {
	r := &Registry{
		extractors: make(map[statement.DocumentType]Extractor, len(extractors)),
		unknown:    unknownExtractor{},
	}
	for _, e := range extractors {
		r.extractors[e.Type()] = e
	}
	return r
}

// For returns the extractor for t, or the Unknown extractor when none is registered.
func (r *Registry) For(t statement.DocumentType) Extractor {
	if e, ok := r.extractors[t]; ok {
		return e
	}
	return r.unknown
}

// Extract is shorthand for r.For(t).Extract(text).
func (r *Registry) Extract(t statement.DocumentType, text *statement.ExtractedText) statement.Extraction {
	ex := r.For(t).Extract(text)
	if ex.Transactions == nil {
		ex.Transactions = []statement.Transaction{}
	}
	return ex
}

type unknownExtractor struct{}

func (unknownExtractor) Type() statement.DocumentType { return statement.Unknown }

func (unknownExtractor) Extract(*statement.ExtractedText) statement.Extraction {
	return statement.Extraction{Summary: statement.UnknownSummary{}, Transactions: []statement.Transaction{}}
}

func detectCurrency(text, fallback string) string {
	if c := money.DetectCurrency(text); c != "" {
		return c
	}
	if fallback = strings.ToUpper(fallback); money.IsKnownCurrency(fallback) {
		return fallback
	}
	return ""
}
