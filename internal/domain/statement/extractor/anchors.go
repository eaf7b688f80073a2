package extractor

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Anchor is a labelled role, such as "opening_balance", with the phrases that
// introduce its value.
type Anchor struct {
	Role    string
	Phrases []string
}

// AnchorSet matches every phrase of a group of anchors in one pass. Overlapping
// phrases resolve to the earliest start, then the longest phrase, so
// "最低應繳金額" wins over the "應繳金額" it contains.
type AnchorSet struct {
	re     *regexp.Regexp
	byText map[string]string // lowercased phrase -> role
	roles  []string
}

// NewAnchorSet compiles anchors. A phrase listed under two roles keeps the first.
func NewAnchorSet(anchors ...Anchor) *AnchorSet {
	set := &AnchorSet{byText: make(map[string]string)}
	var phrases []string
	for _, a := range anchors {
		set.roles = append(set.roles, a.Role)
		for _, p := range a.Phrases {
			key := strings.ToLower(p)
			if _, dup := set.byText[key]; dup || p == "" {
				continue
			}
			set.byText[key] = a.Role
			phrases = append(phrases, p)
		}
	}
	// Longest first so the alternation prefers the longest phrase at a given start.
	sort.SliceStable(phrases, func(i, j int) bool {
		return utf8.RuneCountInString(phrases[i]) > utf8.RuneCountInString(phrases[j])
	})
	quoted := make([]string, len(phrases))
	for i, p := range phrases {
		quoted[i] = regexp.QuoteMeta(p)
	}
	if len(quoted) == 0 {
		set.re = regexp.MustCompile(`[^\s\S]`)
		return set
	}
	set.re = regexp.MustCompile(`(?i)` + strings.Join(quoted, "|"))
	return set
}

// AnchorHit is one anchor phrase found on a line.
type AnchorHit struct {
	Span
	Role string
}

// Find returns the non-overlapping anchor hits of line in order.
func (a *AnchorSet) Find(line string) []AnchorHit {
	var hits []AnchorHit
	for _, loc := range a.re.FindAllStringIndex(line, -1) {
		role, ok := a.byText[strings.ToLower(line[loc[0]:loc[1]])]
		if !ok {
			continue
		}
		hits = append(hits, AnchorHit{Span: Span{loc[0], loc[1]}, Role: role})
	}
	return hits
}

// Contains reports whether line mentions any anchor.
func (a *AnchorSet) Contains(line string) bool {
	return a.re.MatchString(line)
}

// Token is a value located in a line, typically an AmountMatch or DateMatch.
type Token interface {
	span() Span
}

// Resolution records which lines took part in role assignment.
type Resolution[T Token] struct {
	Values map[string]T
	Lines  map[int]bool // indexes of anchor lines and the value lines they fed
}

// Resolve assigns tokens to roles. A token takes the role of the nearest anchor
// that precedes it on the same line. A line whose anchors have no tokens is a label
// line; its roles are handed in order to the tokens of the immediately following
// line when carry accepts that line (nil accepts all). Tokens without an anchor in
// that window are dropped, and the first value seen for a role wins.
func Resolve[T Token](lines []string, set *AnchorSet, find func(string) []T, carry func(string) bool) Resolution[T] {
	res := Resolution[T]{Values: make(map[string]T), Lines: make(map[int]bool)}
	assign := func(role string, tok T) {
		if _, taken := res.Values[role]; !taken {
			res.Values[role] = tok
		}
	}

	var pending []string
	for i, line := range lines {
		hits := set.Find(line)
		tokens := find(line)
		carried := pending
		pending = nil

		if len(hits) > 0 {
			res.Lines[i] = true
		}

		var unanchored []T
		for _, tok := range tokens {
			if role, ok := nearestPreceding(hits, tok.span()); ok {
				assign(role, tok)
				continue
			}
			unanchored = append(unanchored, tok)
		}

		if len(carried) > 0 && len(unanchored) > 0 && (carry == nil || carry(line)) {
			res.Lines[i] = true
			for j, tok := range unanchored {
				if j >= len(carried) {
					break
				}
				assign(carried[j], tok)
			}
		}

		if len(hits) > 0 && len(tokens) == 0 {
			for _, h := range hits {
				pending = append(pending, h.Role)
			}
		}
	}
	return res
}

// withoutDates accepts value lines that are not dated records.
func withoutDates(line string) bool {
	return len(FindDates(line)) == 0
}

func nearestPreceding(hits []AnchorHit, tok Span) (string, bool) {
	role, found := "", false
	for _, h := range hits {
		if h.End <= tok.Start {
			role, found = h.Role, true
		}
	}
	return role, found
}
