package privacy

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement"
)

// ErrUnknownCategory is returned for a category name outside the catalog.
var ErrUnknownCategory = errors.New("unknown masking category")

// maxPasses bounds the re-scan loop. Placeholders never re-match, so a second pass
// only finds values that the first pass exposed by joining neighbours.
const maxPasses = 8

// maxExamples is the number of masked samples kept per manifest entry.
const maxExamples = 3

// Options select what a Masker redacts.
type Options struct {
	// Categories names the enabled categories; empty enables every standard one.
	// Naming an aggressive category enables it without Aggressive.
	Categories []string
	// Aggressive adds amount and digit_run masking.
	Aggressive bool
	// DigitRunThreshold is the shortest digit run masked in aggressive mode.
	DigitRunThreshold int
}

// Match is one masked value. Start and End index the text of the pass that found it;
// for the first pass that is the caller's input.
type Match struct {
	Category       string `json:"category"`
	Start          int    `json:"start"`
	End            int    `json:"end"`
	OriginalLength int    `json:"original_length"`
	Masked         string `json:"masked"`
	Pass           int    `json:"pass"`
}

// Result is the output of Mask.
type Result struct {
	Text     string                    `json:"text"`
	Matches  []Match                   `json:"matches"`
	Manifest []statement.ManifestEntry `json:"manifest"`
}

// Masker redacts the enabled categories. It is immutable and safe for concurrent use.
type Masker struct {
	entries []entry
}

// New builds a Masker from opts.
func New(opts Options) (*Masker, error) {
	enabled, err := ParseCategories(opts.Categories)
	if err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(enabled))
	for _, name := range enabled {
		want[name] = true
	}

	threshold := opts.DigitRunThreshold
	if threshold == 0 {
		threshold = DefaultDigitRunThreshold
	}
	if threshold < minDigitRunThreshold {
		return nil, fmt.Errorf("digit run threshold %d below %d", threshold, minDigitRunThreshold)
	}

	m := &Masker{}
	for _, e := range catalog {
		on := want[e.Name] || (len(enabled) == 0 && !e.Aggressive) || (opts.Aggressive && e.Aggressive)
		if !on {
			continue
		}
		if e.Name == DigitRun && threshold != DefaultDigitRunThreshold {
			e.pattern = digitRunPattern(threshold)
		}
		m.entries = append(m.entries, e)
	}
	return m, nil
}

// MustNew is New for fixed options; it panics on error.
func MustNew(opts Options) *Masker {
	m, err := New(opts)
	if err != nil {
		panic(err)
	}
	return m
}

// ParseCategories resolves names and aliases to catalog names, in catalog order.
// Blank names are ignored.
func ParseCategories(names []string) ([]string, error) {
	seen := make(map[string]bool, len(names))
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" {
			continue
		}
		if alias, ok := aliases[name]; ok {
			name = alias
		}
		if !known(name) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, raw)
		}
		seen[name] = true
	}
	var out []string
	for _, e := range catalog {
		if seen[e.Name] {
			out = append(out, e.Name)
		}
	}
	return out, nil
}

func known(name string) bool {
	for _, e := range catalog {
		if e.Name == name {
			return true
		}
	}
	return false
}

// Enabled returns the enabled category names in priority order.
func (m *Masker) Enabled() []string {
	out := make([]string, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Name
	}
	return out
}

// Mask redacts text. Passes repeat until one finds nothing, so masking the output
// again returns it unchanged.
func (m *Masker) Mask(text string) Result {
	res := Result{Text: text}
	for pass := 1; pass <= maxPasses; pass++ {
		found := m.scan(res.Text, pass)
		if len(found) == 0 {
			break
		}
		res.Text = apply(res.Text, found)
		res.Matches = append(res.Matches, found...)
	}
	if res.Matches == nil {
		res.Matches = []Match{}
	}
	res.Manifest = manifest(m.entries, res.Matches)
	return res
}

// Detect reports what Mask would redact in its first pass, without producing text.
func (m *Masker) Detect(text string) []Match {
	found := m.scan(text, 1)
	if found == nil {
		return []Match{}
	}
	return found
}

// MaskValue walks a decoded JSON value and masks every string in it. Maps and
// slices are copied; the input is left untouched.
func (m *Masker) MaskValue(v any) any {
	switch t := v.(type) {
	case string:
		return m.Mask(t).Text
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = m.MaskValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = m.MaskValue(val)
		}
		return out
	case []string:
		out := make([]string, len(t))
		for i, val := range t {
			out[i] = m.Mask(val).Text
		}
		return out
	default:
		return v
	}
}

// scan resolves matches across categories: priority order first, then
// leftmost-longest within a category. Overlaps with an accepted match are dropped.
func (m *Masker) scan(text string, pass int) []Match {
	var accepted []Match
	for _, e := range m.entries {
		for _, loc := range e.pattern.FindAllStringIndex(text, -1) {
			if loc[0] == loc[1] || overlapsAny(accepted, loc[0], loc[1]) {
				continue
			}
			original := text[loc[0]:loc[1]]
			accepted = append(accepted, Match{
				Category:       e.Name,
				Start:          loc[0],
				End:            loc[1],
				OriginalLength: len([]rune(original)),
				Masked:         m.safeReveal(e, original),
				Pass:           pass,
			})
		}
	}
	sort.Slice(accepted, func(i, j int) bool { return accepted[i].Start < accepted[j].Start })
	return accepted
}

// safeReveal applies the category's partial reveal and falls back to a fixed token
// when the revealed form would match an enabled pattern again.
func (m *Masker) safeReveal(e entry, original string) string {
	masked := e.reveal(original)
	for _, other := range m.entries {
		if other.pattern.MatchString(masked) {
			return placeholder(e.Name)
		}
	}
	return masked
}

func overlapsAny(matches []Match, start, end int) bool {
	for _, m := range matches {
		if start < m.End && m.Start < end {
			return true
		}
	}
	return false
}

// apply substitutes sorted, non-overlapping matches.
func apply(text string, matches []Match) string {
	var b strings.Builder
	b.Grow(len(text))
	prev := 0
	for _, m := range matches {
		b.WriteString(text[prev:m.Start])
		b.WriteString(m.Masked)
		prev = m.End
	}
	b.WriteString(text[prev:])
	return b.String()
}

func manifest(entries []entry, matches []Match) []statement.ManifestEntry {
	out := []statement.ManifestEntry{}
	for _, e := range entries {
		var item *statement.ManifestEntry
		for _, match := range matches {
			if match.Category != e.Name {
				continue
			}
			if item == nil {
				item = &statement.ManifestEntry{Category: e.Name, Label: e.Label, Examples: []string{}}
			}
			item.Count++
			if len(item.Examples) < maxExamples && !slices.Contains(item.Examples, match.Masked) {
				item.Examples = append(item.Examples, match.Masked)
			}
		}
		if item != nil {
			out = append(out, *item)
		}
	}
	return out
}
