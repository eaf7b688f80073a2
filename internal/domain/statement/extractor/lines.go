package extractor

import (
	"regexp"
	"sort"
	"strings"

	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement"
	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement/normalizer"
)

// document is the per-extraction view of the text: redacted lines plus the card
// digits seen while redacting.
type document struct {
	lines     []string
	raw       []string
	cardLast4 string
	currency  string
}

func prepare(text *statement.ExtractedText, fallbackCurrency string) document {
	raw := text.Lines()
	doc := document{lines: make([]string, len(raw)), raw: raw}
	for i, l := range raw {
		redacted, last4 := redactCards(l)
		if doc.cardLast4 == "" {
			doc.cardLast4 = last4
		}
		doc.lines[i] = redacted
	}
	doc.currency = detectCurrency(text.FullText, fallbackCurrency)
	return doc
}

// candidateLine is a line holding both a date and an amount.
type candidateLine struct {
	index   int
	line    string
	dates   []DateMatch
	amounts []AmountMatch
}

// transactionLines returns the lines that qualify as transaction records, skipping
// those consumed by anchor resolution.
func transactionLines(lines []string, skip map[int]bool) []candidateLine {
	var out []candidateLine
	for i, line := range lines {
		if skip[i] {
			continue
		}
		dates := FindDates(line)
		if len(dates) == 0 {
			continue
		}
		amounts := FindAmounts(line)
		if len(amounts) == 0 {
			continue
		}
		out = append(out, candidateLine{index: i, line: line, dates: dates, amounts: amounts})
	}
	return out
}

// describe removes the given spans from line and cleans what remains.
func describe(line string, spans ...Span) string {
	sort.Slice(spans, func(i, j int) bool { return spans[i].Start > spans[j].Start })
	for _, s := range spans {
		if s.Start < 0 || s.End > len(line) || s.Start >= s.End {
			continue
		}
		line = line[:s.Start] + " " + line[s.End:]
	}
	return normalizer.CleanDescription(line)
}

func dateSpans(dates []DateMatch) []Span {
	spans := make([]Span, len(dates))
	for i, d := range dates {
		spans[i] = d.Span
	}
	return spans
}

// containsAny reports whether s contains one of the keywords, ignoring case.
// Latin keywords must stand as whole words so "fee" does not match "coffee".
func containsAny(s string, keywords ...string) bool {
	lower := strings.ToLower(s)
	for _, k := range keywords {
		k = strings.ToLower(k)
		for from := 0; ; {
			i := strings.Index(lower[from:], k)
			if i < 0 {
				break
			}
			start, end := from+i, from+i+len(k)
			if wordEdge(lower, start, end) {
				return true
			}
			from = start + 1
		}
	}
	return false
}

func wordEdge(s string, start, end int) bool {
	isLatin := func(b byte) bool { return b >= 'a' && b <= 'z' }
	if start > 0 && isLatin(s[start-1]) && isLatin(s[start]) {
		return false
	}
	if end < len(s) && isLatin(s[end]) && isLatin(s[end-1]) {
		return false
	}
	return true
}

var lineCurrency = regexp.MustCompile(`\b(TWD|NTD|USD|JPY|EUR|GBP|CNY|HKD)\b`)

// currencyOf returns an explicit currency code on the line, or fallback.
func currencyOf(line, fallback string) string {
	if m := lineCurrency.FindStringSubmatch(line); m != nil {
		if m[1] == "NTD" {
			return "TWD"
		}
		return m[1]
	}
	return fallback
}
