// Package privacy detects and partially redacts personal data in free text. One
// ordered catalog drives both masking and detection so the two cannot drift apart.
package privacy

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Category names. The order of catalog below is the overlap priority.
const (
	CreditCard  = "credit_card"
	Email       = "email"
	NationalID  = "national_id"
	MobilePhone = "mobile_phone"
	Landline    = "landline"
	BankAccount = "bank_account"
	Address     = "address"
	DateOfBirth = "date_of_birth"
	Amount      = "amount"
	DigitRun    = "digit_run"
)

// DefaultDigitRunThreshold is the shortest digit run masked in aggressive mode.
const DefaultDigitRunThreshold = 6

// minDigitRunThreshold keeps digit_run from swallowing ordinary numbers.
const minDigitRunThreshold = 3

// Category describes one entry of the catalog.
type Category struct {
	Name       string `json:"type"`
	Label      string `json:"name"`
	Aggressive bool   `json:"aggressive"`
}

type entry struct {
	Category
	pattern *regexp.Regexp
	reveal  func(string) string
}

// aliases accepts the historical category names.
var aliases = map[string]string{
	"taiwan_id": NationalID,
	"phone":     MobilePhone,
	"numbers":   DigitRun,
	"card":      CreditCard,
	"dob":       DateOfBirth,
}

func longest(expr string) *regexp.Regexp {
	re := regexp.MustCompile(expr)
	re.Longest()
	return re
}

var catalog = []entry{
	{
		Category: Category{Name: CreditCard, Label: "Credit card number"},
		pattern:  longest(`\b(?:\d{4}[- ]?\d{4}[- ]?\d{4}[- ]?\d{4}|\d{4}[- ]?\d{6}[- ]?\d{5})\b`),
		reveal: func(m string) string {
			d := digitsOf(m)
			return "**** **** **** " + d[len(d)-4:]
		},
	},
	{
		Category: Category{Name: Email, Label: "Email address"},
		pattern:  longest(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`),
		reveal: func(m string) string {
			at := strings.LastIndexByte(m, '@')
			first, _ := utf8.DecodeRuneInString(m)
			return string(first) + "***" + m[at:]
		},
	},
	{
		Category: Category{Name: NationalID, Label: "National ID number"},
		pattern:  longest(`\b[A-Z][12ABCD89]\d{8}\b`),
		reveal: func(m string) string {
			return m[:1] + strings.Repeat("*", len(m)-2) + m[len(m)-1:]
		},
	},
	{
		Category: Category{Name: MobilePhone, Label: "Mobile phone number"},
		pattern:  longest(`(?:\+886[- ]?9|\b09)\d{2}[- ]?\d{3}[- ]?\d{3}\b`),
		reveal:   func(m string) string { return maskDigits(m, 4, 2) },
	},
	{
		Category: Category{Name: Landline, Label: "Landline phone number"},
		pattern:  longest(`(?:\(0\d{1,2}\)|\b0\d{1,2})[- ]?\d{3,4}[- ]?\d{4}\b`),
		reveal:   func(m string) string { return maskDigits(m, 2, 2) },
	},
	{
		Category: Category{Name: BankAccount, Label: "Bank account number"},
		pattern:  longest(`\b(?:\d{3,4}-\d{3,4}-\d{4,8}|\d{10,16})\b`),
		reveal:   func(m string) string { return maskDigits(m, 0, 4) },
	},
	{
		Category: Category{Name: Address, Label: "Postal address"},
		pattern: longest(`\p{Han}{0,2}[縣市]\p{Han}{1,3}[鄉鎮市區][^\s,，;；]{0,12}[路街道段巷弄][^\s,，;；]{0,12}?\d+\s*號` +
			`(?:\s*\d+\s*樓(?:\s*之\s*\d+)?)?`),
		reveal: func(m string) string {
			runes := []rune(m)
			keep := min(6, len(runes)/2)
			return string(runes[:keep]) + "***"
		},
	},
	{
		// Only labelled dates count: statements are full of transaction dates.
		Category: Category{Name: DateOfBirth, Label: "Date of birth"},
		pattern: longest(`(?i)(?:出生日期|出生年月日|生日|\bdate\s+of\s+birth|\bbirth\s*date|\bd\.?o\.?b\b\.?)\s*[:：]?\s*` +
			`(?:\d{4}\s*[-/.年]\s*\d{1,2}\s*[-/.月]\s*\d{1,2}\s*日?|(?:民國\s*)?\d{2,3}\s*[年/]\s*\d{1,2}\s*[月/]\s*\d{1,2}\s*日?)`),
		reveal: func(m string) string {
			i := strings.IndexFunc(m, func(r rune) bool { return r >= '0' && r <= '9' })
			if i > 0 && strings.HasSuffix(m[:i], "民國") {
				i -= len("民國")
			}
			return m[:i] + "****-**-**"
		},
	},
	{
		Category: Category{Name: Amount, Label: "Monetary amount", Aggressive: true},
		pattern: longest(`(?:NT\$|US\$|HK\$|NTD|TWD|USD|[$€£¥])\s?-?\d[\d,]*(?:\.\d+)?(?:\s?元)?` +
			`|-?\d{1,3}(?:,\d{3})+(?:\.\d+)?(?:\s?元)?` +
			`|-?\d+\.\d{2}\b(?:\s?元)?` +
			`|\d[\d,]*(?:\.\d+)?\s?元`),
		reveal: func(m string) string {
			prefix := m[:strings.IndexAny(m, "-0123456789")]
			suffix := ""
			if strings.HasSuffix(m, "元") {
				suffix = "元"
			}
			return prefix + "***" + suffix
		},
	},
	{
		Category: Category{Name: DigitRun, Label: "Long digit sequence", Aggressive: true},
		pattern:  digitRunPattern(DefaultDigitRunThreshold),
		reveal:   func(m string) string { return strings.Repeat("*", len(m)) },
	},
}

func digitRunPattern(threshold int) *regexp.Regexp {
	return longest(`\d{` + strconv.Itoa(threshold) + `,}`)
}

// Categories lists the catalog in priority order.
func Categories() []Category {
	out := make([]Category, len(catalog))
	for i, e := range catalog {
		out[i] = e.Category
	}
	return out
}

// placeholder is the fallback used when a partial reveal would still match the catalog.
func placeholder(category string) string {
	return "[" + strings.ToUpper(category) + "]"
}

// maskDigits replaces every digit except the first keepFirst and last keepLast
// with '*'. Separators stay in place.
func maskDigits(s string, keepFirst, keepLast int) string {
	total := len(digitsOf(s))
	seen := 0
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < '0' || r > '9' {
			b.WriteRune(r)
			continue
		}
		seen++
		if seen <= keepFirst || seen > total-keepLast {
			b.WriteRune(r)
		} else {
			b.WriteByte('*')
		}
	}
	return b.String()
}

func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
