package extractor

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/statement-pipeline/pkg/money"
)

// AmountMatch is a monetary token found in text.
type AmountMatch struct {
	Span
	Raw   string
	Value money.Amount
}

func (m AmountMatch) span() Span { return m.Span }

var amountToken = regexp.MustCompile(
	`[-+(]?(?:(?:NT|US|HK)\$|NTD|TWD|USD|EUR|GBP|JPY|CNY|[$€£¥])?\s?[-+]?\d[\d,.]*\)?(?:\s?元)?`)

var percentToken = regexp.MustCompile(`(\d{1,3}(?:\.\d+)?)\s*%`)

// maxBareDigits bounds plain digit runs (no separator, decimals or currency) that
// still count as amounts. Longer runs are identifiers.
const maxBareDigits = 9

// FindAmounts returns the amount-shaped tokens of s, ordered by position. Tokens
// overlapping a date, followed by "%", glued to letters, or failing strict parsing
// are skipped.
func FindAmounts(s string) []AmountMatch {
	dates := FindDates(s)
	var out []AmountMatch
	for _, loc := range amountToken.FindAllStringIndex(s, -1) {
		span := Span{loc[0], loc[1]}
		raw := s[span.Start:span.End]

		// A trailing separator belongs to the sentence, not the number.
		trimmed := strings.TrimRight(raw, ",.")
		if strings.HasSuffix(raw, ")") && !strings.Contains(raw, "(") {
			trimmed = strings.TrimSuffix(trimmed, ")")
		}
		span.End = span.Start + len(trimmed)
		raw = strings.TrimLeft(trimmed, " ")
		span.Start = span.End - len(raw)
		raw = strings.TrimSpace(raw)

		if claimed(dates, span) || !amountBoundary(s, span) {
			continue
		}
		if !amountShaped(raw) {
			continue
		}
		v, err := money.ParseAmount(raw)
		if err != nil {
			continue
		}
		out = append(out, AmountMatch{Span: span, Raw: raw, Value: v})
	}
	return out
}

// FindPercents returns percentage values such as "8.62%".
func FindPercents(s string) []AmountMatch {
	var out []AmountMatch
	for _, loc := range percentToken.FindAllStringSubmatchIndex(s, -1) {
		span := Span{loc[0], loc[1]}
		if loc[2] > 0 {
			r, _ := utf8.DecodeLastRuneInString(s[:loc[2]])
			if isASCIIAlnum(r) || strings.ContainsRune(".:/*#", r) {
				continue
			}
		}
		d, err := decimal.NewFromString(s[loc[2]:loc[3]])
		if err != nil {
			continue
		}
		out = append(out, AmountMatch{Span: span, Raw: s[span.Start:span.End], Value: money.NewAmount(d)})
	}
	return out
}

// amountShaped rejects bare identifiers: long digit runs and zero-padded numbers.
func amountShaped(raw string) bool {
	digits, _ := money.StripCurrency(raw)
	hasMarker := digits != strings.TrimSpace(raw)
	digits = strings.Trim(digits, "-+() ")
	if strings.ContainsAny(digits, ",.") || hasMarker {
		return true
	}
	if len(digits) > maxBareDigits {
		return false
	}
	return len(digits) == 1 || digits[0] != '0'
}

// amountBoundary requires the token not to continue an identifier, a time, a
// fraction or a masked number, and not to be a percentage.
func amountBoundary(s string, span Span) bool {
	if span.Start > 0 {
		r, _ := utf8.DecodeLastRuneInString(s[:span.Start])
		if isASCIIAlnum(r) || strings.ContainsRune(".:/*#", r) {
			return false
		}
	}
	if span.End < len(s) {
		rest := strings.TrimLeft(s[span.End:], " ")
		if strings.HasPrefix(rest, "%") {
			return false
		}
		r, _ := utf8.DecodeRuneInString(s[span.End:])
		if isASCIIAlnum(r) || strings.ContainsRune(":/*%", r) {
			return false
		}
	}
	return true
}

func isASCIIAlnum(r rune) bool {
	return isDigit(r) || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
