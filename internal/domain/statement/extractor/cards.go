package extractor

import (
	"regexp"
	"strings"
)

// Card-number shapes: 16 digits in groups of four (optionally masked in the middle)
// and the 15-digit 4-6-5 layout.
var cardNumberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{4}[- ]?[\d*Xx]{4}[- ]?[\d*Xx]{4}[- ]?(\d{4})\b`),
	regexp.MustCompile(`\b\d{4}[- ]?[\d*Xx]{6}[- ]?\d{0,1}(\d{4})\b`),
}

// cardSuffix captures "末4碼1234" style last-four mentions.
var cardSuffix = regexp.MustCompile(`末\s*[4４]\s*碼\s*[:：]?\s*(\d{4})`)

// cardLabel captures a masked number after a card label, e.g. "卡號: ****1234".
var cardLabel = regexp.MustCompile(`(?i)(?:卡號|card\s*(?:no\.?|number)|ending\s+in)\s*[:：]?\s*[\d*Xx\-. ]*?(\d{4})\b`)

// redactCards replaces every card-number-shaped token in s with "...1234" and
// returns the last four digits of the first one found.
func redactCards(s string) (string, string) {
	first := ""
	for _, re := range cardNumberPatterns {
		s = re.ReplaceAllStringFunc(s, func(m string) string {
			sub := re.FindStringSubmatch(m)
			last4 := sub[len(sub)-1]
			if !digitCount(m, 15) {
				return m
			}
			if first == "" {
				first = last4
			}
			return "..." + last4
		})
	}
	return s, first
}

// digitCount reports whether m holds at least n digit-or-mask characters.
func digitCount(m string, n int) bool {
	count := 0
	for _, r := range m {
		if isDigit(r) || r == '*' || r == 'X' || r == 'x' {
			count++
		}
	}
	return count >= n
}

// cardLast4 finds the last four digits of the card a document is about. lines are
// expected to be redacted already.
func cardLast4(lines []string, redactedFirst string) *string {
	if redactedFirst != "" {
		return &redactedFirst
	}
	for _, line := range lines {
		if m := cardSuffix.FindStringSubmatch(line); m != nil {
			return &m[1]
		}
	}
	for _, line := range lines {
		if m := cardLabel.FindStringSubmatch(line); m != nil {
			return &m[1]
		}
	}
	return nil
}

// cardTypePattern captures the product name before "末4碼", e.g. "JCB晶緻正卡".
var cardTypePattern = regexp.MustCompile(`([\p{Han}A-Za-z][\p{Han}A-Za-z ]*卡)\s*末\s*[4４]\s*碼`)

var cardBrands = []string{"American Express", "AMEX", "Mastercard", "MasterCard", "VISA", "Visa", "JCB", "UnionPay", "銀聯", "Diners"}

func cardType(lines []string) *string {
	for _, line := range lines {
		if m := cardTypePattern.FindStringSubmatch(line); m != nil {
			t := strings.TrimSpace(m[1])
			return &t
		}
	}
	for _, line := range lines {
		for _, brand := range cardBrands {
			if strings.Contains(line, brand) {
				b := brand
				return &b
			}
		}
	}
	return nil
}
