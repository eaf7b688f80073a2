// Package money provides strict parsing of monetary tokens found in statement text
// and a decimal Amount type that always carries at most two fractional digits.
// Currency metadata (codes, graphemes, display formatting) comes from go-money.
package money

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Common currency codes (ISO-4217)
const (
	TWD = "TWD" // New Taiwan Dollar
	USD = "USD" // US Dollar
	EUR = "EUR" // Euro
	GBP = "GBP" // British Pound
	JPY = "JPY" // Japanese Yen
	CNY = "CNY" // Chinese Yuan
	HKD = "HKD" // Hong Kong Dollar
)

// Scale is the number of fractional digits every Amount is rounded to.
const Scale = 2

var (
	// ErrEmptyAmount is returned when the token holds no digits at all.
	ErrEmptyAmount = errors.New("empty amount")
	// ErrMalformedAmount is returned when the stripped token is not a plain decimal.
	ErrMalformedAmount = errors.New("malformed amount")
)

// currencyMarkers maps symbols and codes that prefix or suffix amounts to ISO codes.
// Longer markers come first so "NT$" wins over "$".
var currencyMarkers = []struct {
	marker string
	code   string
}{
	{"NT$", TWD},
	{"NTD", TWD},
	{"TWD", TWD},
	{"US$", USD},
	{"USD", USD},
	{"HK$", HKD},
	{"HKD", HKD},
	{"EUR", EUR},
	{"GBP", GBP},
	{"JPY", JPY},
	{"CNY", CNY},
	{"RMB", CNY},
	{"新台幣", TWD},
	{"台幣", TWD},
	{"€", EUR},
	{"£", GBP},
	{"¥", JPY},
	{"$", USD},
	{"元", TWD},
}

var plainDecimal = regexp.MustCompile(`^\d+(?:\.\d+)?$`)

// Amount is a decimal monetary value. It marshals to a JSON number with two
// fractional digits so consumers never see a quoted string.
type Amount struct {
	d decimal.Decimal
}

// NewAmount rounds d to Scale digits.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{d: d.Round(Scale)}
}

// MustAmount parses a plain decimal literal; it panics on bad input and is meant for tests and constants.
func MustAmount(s string) Amount {
	return NewAmount(decimal.RequireFromString(s))
}

// Decimal returns the underlying value.
func (a Amount) Decimal() decimal.Decimal {
	return a.d
}

// String returns the fixed two-digit representation, e.g. "50000.00".
func (a Amount) String() string {
	return a.d.StringFixed(Scale)
}

// Equal reports whether both amounts hold the same value.
func (a Amount) Equal(other Amount) bool {
	return a.d.Equal(other.d)
}

// Add returns a + other.
func (a Amount) Add(other Amount) Amount {
	return NewAmount(a.d.Add(other.d))
}

// Neg returns -a.
func (a Amount) Neg() Amount {
	return Amount{d: a.d.Neg()}
}

// Abs returns |a|.
func (a Amount) Abs() Amount {
	return Amount{d: a.d.Abs()}
}

// IsNegative reports a < 0.
func (a Amount) IsNegative() bool {
	return a.d.IsNegative()
}

// Ptr returns a pointer to a copy of a, handy for optional summary fields.
func (a Amount) Ptr() *Amount {
	return &a
}

// MarshalJSON writes the amount as a bare JSON number.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts both numbers and quoted decimal strings.
func (a *Amount) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	*a = NewAmount(d)
	return nil
}

// ParseAmount parses a monetary token such as "50,000.00", "NT$1,234", "-12.5" or "(300.00)".
// Thousands separators, currency symbols/codes and whitespace are stripped first; the
// remainder must be digits with at most one decimal point, otherwise the token is rejected.
func ParseAmount(token string) (Amount, error) {
	s, code := StripCurrency(token)
	for code != "" {
		s, code = StripCurrency(s)
	}
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")

	negative := false
	switch {
	case strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")"):
		negative = true
		s = s[1 : len(s)-1]
	case strings.HasPrefix(s, "-"):
		negative = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}

	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return Amount{}, ErrEmptyAmount
	}
	if !plainDecimal.MatchString(s) {
		return Amount{}, fmt.Errorf("%w: %q", ErrMalformedAmount, token)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrMalformedAmount, token)
	}
	if negative {
		d = d.Neg()
	}
	return NewAmount(d), nil
}

// StripCurrency removes the first currency marker found in token and reports its ISO code.
func StripCurrency(token string) (string, string) {
	s := strings.TrimSpace(token)
	for _, cm := range currencyMarkers {
		if strings.Contains(s, cm.marker) {
			return strings.TrimSpace(strings.Replace(s, cm.marker, "", 1)), cm.code
		}
	}
	return s, ""
}

// DetectCurrency returns the ISO code of the first currency marker that appears in text,
// by earliest position, or "" when none is present.
func DetectCurrency(text string) string {
	best, bestPos := "", -1
	for _, cm := range currencyMarkers {
		if cm.marker == "元" || cm.marker == "$" {
			continue
		}
		if pos := strings.Index(text, cm.marker); pos >= 0 && (bestPos < 0 || pos < bestPos) {
			best, bestPos = cm.code, pos
		}
	}
	if best != "" {
		return best
	}
	// A bare "$" or "元" is weak evidence; only use it when nothing else matched.
	if strings.Contains(text, "元") {
		return TWD
	}
	if strings.Contains(text, "$") {
		return USD
	}
	return ""
}

// IsKnownCurrency reports whether code is a valid ISO-4217 code known to go-money.
func IsKnownCurrency(code string) bool {
	return code != "" && money.GetCurrency(code) != nil
}

// Display formats the amount in the given currency, e.g. "$1,234.56".
// Unknown currency codes fall back to the plain decimal string.
func Display(a Amount, currencyCode string) string {
	currency := money.GetCurrency(currencyCode)
	if currency == nil {
		return a.String()
	}
	multiplier := decimal.New(1, int32(currency.Fraction))
	minor := a.d.Mul(multiplier).Round(0).IntPart()
	return money.New(minor, currencyCode).Display()
}
