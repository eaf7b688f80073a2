package extractor

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement"
)

// rocOffset converts Republic of China (Minguo) years to Gregorian years.
const rocOffset = 1911

// Span is a half-open byte range inside a line.
type Span struct {
	Start int
	End   int
}

func (s Span) overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// DateMatch is a date token found in text, normalized to ISO form.
type DateMatch struct {
	Span
	ISO string
}

type dateOrder int

const (
	orderYMD dateOrder = iota
	orderROC           // ROC year, month, day
	orderDayFirstOrMonthFirst
	orderDayMonthName
	orderMonthNameDay
)

type dateFormat struct {
	name  string
	re    *regexp.Regexp
	order dateOrder
}

var monthNames = `(jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\.?`

// dateFormats are attempted in this order. A later format never claims text already
// matched by an earlier one.
var dateFormats = []dateFormat{
	{"iso-dash", regexp.MustCompile(`(\d{4})-(\d{1,2})-(\d{1,2})`), orderYMD},
	{"iso-slash", regexp.MustCompile(`(\d{4})/(\d{1,2})/(\d{1,2})`), orderYMD},
	{"iso-dot", regexp.MustCompile(`(\d{4})\.(\d{1,2})\.(\d{1,2})`), orderYMD},
	{"cjk", regexp.MustCompile(`(\d{4})\s*年\s*(\d{1,2})\s*月\s*(\d{1,2})\s*日?`), orderYMD},
	{"cjk-roc", regexp.MustCompile(`(?:民國\s*)?(\d{2,3})\s*年\s*(\d{1,2})\s*月\s*(\d{1,2})\s*日`), orderROC},
	{"roc-slash", regexp.MustCompile(`(1\d{2})/(\d{1,2})/(\d{1,2})`), orderROC},
	{"numeric-dmy-mdy", regexp.MustCompile(`(\d{1,2})[/.\-](\d{1,2})[/.\-](\d{4})`), orderDayFirstOrMonthFirst},
	{"day-month-name", regexp.MustCompile(`(?i)(\d{1,2})\s+` + monthNames + `,?\s+(\d{4})`), orderDayMonthName},
	{"month-name-day", regexp.MustCompile(`(?i)` + monthNames + `\s+(\d{1,2}),?\s+(\d{4})`), orderMonthNameDay},
}

var monthIndex = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "sept": 9, "oct": 10, "nov": 11, "dec": 12,
}

// FindDates returns every unambiguous, calendar-valid date in s ordered by position.
// Ambiguous numeric dates such as 03/04/2024 are dropped rather than guessed.
func FindDates(s string) []DateMatch {
	var found []DateMatch
	for _, f := range dateFormats {
		for _, loc := range f.re.FindAllStringSubmatchIndex(s, -1) {
			span := Span{loc[0], loc[1]}
			if !digitBoundary(s, span) || claimed(found, span) {
				continue
			}
			groups := make([]string, 0, 3)
			for g := 1; g < len(loc)/2; g++ {
				groups = append(groups, s[loc[2*g]:loc[2*g+1]])
			}
			iso, ok := normalizeDate(f.order, groups)
			if !ok {
				continue
			}
			found = append(found, DateMatch{Span: span, ISO: iso})
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Start < found[j].Start })
	return found
}

// ParseDate normalizes a single date token to YYYY-MM-DD. The whole token, ignoring
// surrounding whitespace, must be one date.
func ParseDate(token string) (string, bool) {
	token = strings.TrimSpace(token)
	dates := FindDates(token)
	if len(dates) != 1 || dates[0].Start != 0 || dates[0].End != len(token) {
		return "", false
	}
	return dates[0].ISO, true
}

var rangeMarkers = map[string]bool{
	"~": true, "～": true, "至": true, "到": true, "-": true, "－": true, "–": true, "—": true, "to": true,
}

// FindRange returns the first pair of dates in s joined by a range marker
// ("~", "至", "到", "-", "to").
func FindRange(s string) *statement.Period {
	dates := FindDates(s)
	for i := 0; i+1 < len(dates); i++ {
		between := strings.ToLower(strings.TrimSpace(s[dates[i].End:dates[i+1].Start]))
		if rangeMarkers[between] {
			return &statement.Period{Start: dates[i].ISO, End: dates[i+1].ISO}
		}
	}
	return nil
}

func normalizeDate(order dateOrder, g []string) (string, bool) {
	atoi := func(s string) int {
		n, err := strconv.Atoi(s)
		if err != nil {
			return -1
		}
		return n
	}

	var y, m, d int
	switch order {
	case orderYMD:
		y, m, d = atoi(g[0]), atoi(g[1]), atoi(g[2])
	case orderROC:
		y, m, d = atoi(g[0])+rocOffset, atoi(g[1]), atoi(g[2])
	case orderDayFirstOrMonthFirst:
		a, b := atoi(g[0]), atoi(g[1])
		y = atoi(g[2])
		switch {
		case a == b:
			m, d = a, b
		case a > 12 && b <= 12:
			d, m = a, b
		case b > 12 && a <= 12:
			m, d = a, b
		default:
			return "", false
		}
	case orderDayMonthName:
		d, m, y = atoi(g[0]), monthIndex[strings.ToLower(g[1])], atoi(g[2])
	case orderMonthNameDay:
		m, d, y = monthIndex[strings.ToLower(g[0])], atoi(g[1]), atoi(g[2])
	}
	return isoDate(y, m, d)
}

func isoDate(y, m, d int) (string, bool) {
	if y < 1900 || y > 2200 || m < 1 || m > 12 || d < 1 || d > 31 {
		return "", false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d || int(t.Month()) != m {
		return "", false
	}
	return fmt.Sprintf("%04d-%02d-%02d", y, m, d), true
}

// monthPeriod returns the first and last day of a month.
func monthPeriod(y, m int) *statement.Period {
	if _, ok := isoDate(y, m, 1); !ok {
		return nil
	}
	first := time.Date(y, time.Month(m), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return &statement.Period{Start: first.Format(time.DateOnly), End: last.Format(time.DateOnly)}
}

func claimed[T Token](found []T, s Span) bool {
	for _, f := range found {
		if f.span().overlaps(s) {
			return true
		}
	}
	return false
}

func (m DateMatch) span() Span { return m.Span }

// digitBoundary rejects matches glued to further digits, e.g. "12024-10-31".
func digitBoundary(s string, span Span) bool {
	if span.Start > 0 {
		r, _ := utf8.DecodeLastRuneInString(s[:span.Start])
		if isDigit(r) {
			return false
		}
	}
	if span.End < len(s) {
		r, _ := utf8.DecodeRuneInString(s[span.End:])
		if isDigit(r) {
			return false
		}
	}
	return true
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }
