// Package normalizer cleans merchant names and transaction descriptions taken from
// statement lines and detects a coarse merchant category.
package normalizer

import (
	"regexp"
	"strings"
	"unicode"
)

// MerchantInfo contains normalized merchant information
type MerchantInfo struct {
	OriginalName   string `json:"original_name"`
	NormalizedName string `json:"normalized_name"`
	Category       string `json:"category,omitempty"`
	Subcategory    string `json:"subcategory,omitempty"`
}

// MerchantPattern defines a pattern for matching and normalizing merchants
type MerchantPattern struct {
	Pattern     *regexp.Regexp
	Name        string
	Category    string
	Subcategory string
}

// MerchantSanitizer normalizes merchant names and detects categories. Patterns are
// read-only after construction; AddPattern is meant for setup only.
type MerchantSanitizer struct {
	patterns []MerchantPattern
}

// NewMerchantSanitizer creates a new sanitizer with common merchant patterns
func NewMerchantSanitizer() *MerchantSanitizer {
	return &MerchantSanitizer{
		patterns: defaultMerchantPatterns(),
	}
}

// Sanitize normalizes a merchant name and detects its category
func (s *MerchantSanitizer) Sanitize(rawMerchant string) MerchantInfo {
	result := MerchantInfo{OriginalName: rawMerchant}

	cleaned := CleanDescription(rawMerchant)
	result.NormalizedName = cleaned
	if cleaned == "" {
		return result
	}

	for _, pattern := range s.patterns {
		if pattern.Pattern.MatchString(cleaned) {
			result.NormalizedName = pattern.Name
			result.Category = pattern.Category
			result.Subcategory = pattern.Subcategory
			return result
		}
	}

	result.NormalizedName = titleCase(cleaned)
	return result
}

// AddPattern adds a custom merchant pattern
func (s *MerchantSanitizer) AddPattern(pattern string, name, category, subcategory string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	s.patterns = append(s.patterns, MerchantPattern{
		Pattern:     re,
		Name:        name,
		Category:    category,
		Subcategory: subcategory,
	})
	return nil
}

var (
	noisePrefixes = []string{
		"PURCHASE ", "PAYMENT ", "POS ", "VISA ", "MASTERCARD ", "JCB ",
		"消費 ", "刷卡 ", "網路交易 ", "國外交易 ",
	}
	installmentPattern = regexp.MustCompile(`[(（]\s*\d+\s*/\s*\d+\s*期\s*[)）]`)
	currencyCodes      = regexp.MustCompile(`\b(TWD|NTD|USD|JPY|EUR|GBP|CNY|HKD)\b`)
	countryTail        = regexp.MustCompile(`\s+(TW|TWN|JP|JPN|US|USA|HK|HKG|GB|GBR)$`)
	refPattern         = regexp.MustCompile(`\s+\d{4,}/?$`)
	datePattern        = regexp.MustCompile(`\s+\d{1,2}/\d{1,2}/?$`)
	spacePattern       = regexp.MustCompile(`\s+`)
)

// CleanDescription removes statement noise from a description or merchant field:
// channel prefixes, installment markers, currency and country codes, trailing
// reference numbers and repeated whitespace.
func CleanDescription(raw string) string {
	result := spacePattern.ReplaceAllString(strings.TrimSpace(raw), " ")

	upper := strings.ToUpper(result)
	for _, prefix := range noisePrefixes {
		if strings.HasPrefix(upper, prefix) {
			result = result[len(prefix):]
			break
		}
	}

	result = installmentPattern.ReplaceAllString(result, "")
	result = currencyCodes.ReplaceAllString(result, "")
	result = spacePattern.ReplaceAllString(strings.TrimSpace(result), " ")

	// Trailing references and country codes can stack, e.g. "APP 100001 JPN".
	for range 3 {
		before := result
		result = countryTail.ReplaceAllString(result, "")
		result = refPattern.ReplaceAllString(result, "")
		result = datePattern.ReplaceAllString(result, "")
		if result == before {
			break
		}
	}

	return strings.Trim(strings.TrimSpace(result), ":：-/ ")
}

// titleCase converts ASCII words to title case and leaves other scripts alone.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		if !isASCIIWord(word) {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
	}
	return strings.Join(words, " ")
}

func isASCIIWord(w string) bool {
	for _, r := range w {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return w != ""
}

// defaultMerchantPatterns returns common merchant patterns for Taiwan and global online services
func defaultMerchantPatterns() []MerchantPattern {
	return []MerchantPattern{
		// Convenience stores and supermarkets
		{regexp.MustCompile(`(?i)7-?ELEVEN|統一超商|7-11`), "7-Eleven", "Groceries", "Convenience Store"},
		{regexp.MustCompile(`(?i)FAMILY\s*MART|全家便利|全家`), "FamilyMart", "Groceries", "Convenience Store"},
		{regexp.MustCompile(`(?i)HI-?LIFE|萊爾富`), "Hi-Life", "Groceries", "Convenience Store"},
		{regexp.MustCompile(`(?i)PX\s*MART|全聯`), "PX Mart", "Groceries", "Supermarket"},
		{regexp.MustCompile(`(?i)CARREFOUR|家樂福`), "Carrefour", "Groceries", "Supermarket"},
		{regexp.MustCompile(`(?i)COSTCO|好市多`), "Costco", "Groceries", "Warehouse"},

		// Coffee & Restaurants
		{regexp.MustCompile(`(?i)STARBUCKS|星巴克`), "Starbucks", "Food & Drink", "Coffee"},
		{regexp.MustCompile(`(?i)LOUISA|路易莎`), "Louisa Coffee", "Food & Drink", "Coffee"},
		{regexp.MustCompile(`(?i)MC\s*DONALDS|MCDONALD|麥當勞`), "McDonald's", "Food & Drink", "Fast Food"},
		{regexp.MustCompile(`(?i)UBER\s*EATS`), "Uber Eats", "Food & Drink", "Delivery"},
		{regexp.MustCompile(`(?i)FOODPANDA|富胖達`), "foodpanda", "Food & Drink", "Delivery"},

		// Transport (delivery patterns above match first for UBER EATS)
		{regexp.MustCompile(`(?i)\bUBER\b`), "Uber", "Transport", "Rideshare"},
		{regexp.MustCompile(`(?i)台灣高鐵|THSR`), "Taiwan High Speed Rail", "Transport", "Train"},
		{regexp.MustCompile(`(?i)台鐵|TAIWAN RAILWAY`), "Taiwan Railway", "Transport", "Train"},
		{regexp.MustCompile(`(?i)悠遊卡|EASYCARD`), "EasyCard", "Transport", "Public Transit"},
		{regexp.MustCompile(`(?i)中油|CPC CORP`), "CPC", "Transport", "Fuel"},
		{regexp.MustCompile(`(?i)EVA\s*AIR|長榮航空`), "EVA Air", "Transport", "Flights"},
		{regexp.MustCompile(`(?i)CHINA\s*AIRLINES|中華航空`), "China Airlines", "Transport", "Flights"},

		// Utilities
		{regexp.MustCompile(`(?i)台電|TAIPOWER`), "Taipower", "Utilities", "Electricity"},
		{regexp.MustCompile(`(?i)自來水`), "Water Corporation", "Utilities", "Water"},
		{regexp.MustCompile(`(?i)中華電信|CHUNGHWA TELECOM`), "Chunghwa Telecom", "Utilities", "Telecom"},
		{regexp.MustCompile(`(?i)台灣大哥大|TAIWAN MOBILE`), "Taiwan Mobile", "Utilities", "Telecom"},
		{regexp.MustCompile(`(?i)遠傳|FAR\s*EASTONE`), "FarEasTone", "Utilities", "Telecom"},

		// Shopping
		{regexp.MustCompile(`(?i)AMAZON`), "Amazon", "Shopping", "Online"},
		{regexp.MustCompile(`(?i)SHOPEE|蝦皮`), "Shopee", "Shopping", "Online"},
		{regexp.MustCompile(`(?i)MOMO|富邦媒體`), "momo", "Shopping", "Online"},
		{regexp.MustCompile(`(?i)PCHOME|網路家庭`), "PChome", "Shopping", "Online"},
		{regexp.MustCompile(`(?i)UNIQLO`), "Uniqlo", "Shopping", "Clothing"},
		{regexp.MustCompile(`(?i)IKEA`), "IKEA", "Shopping", "Home"},

		// Entertainment
		{regexp.MustCompile(`(?i)NETFLIX`), "Netflix", "Entertainment", "Streaming"},
		{regexp.MustCompile(`(?i)SPOTIFY`), "Spotify", "Entertainment", "Streaming"},
		{regexp.MustCompile(`(?i)DISNEY\s*\+|DISNEYPLUS`), "Disney+", "Entertainment", "Streaming"},
		{regexp.MustCompile(`(?i)GOOGLE\s*PLAY`), "Google Play", "Entertainment", "Apps"},
		{regexp.MustCompile(`(?i)APPLE\.COM|APPLE\s*MUSIC|ITUNES`), "Apple", "Entertainment", "Streaming"},
		{regexp.MustCompile(`(?i)PLAYSTATION|PSN`), "PlayStation", "Entertainment", "Gaming"},
		{regexp.MustCompile(`(?i)STEAM`), "Steam", "Entertainment", "Gaming"},

		// Health
		{regexp.MustCompile(`(?i)屈臣氏|WATSONS`), "Watsons", "Health", "Pharmacy"},
		{regexp.MustCompile(`(?i)康是美|COSMED`), "Cosmed", "Health", "Pharmacy"},

		// Finance
		{regexp.MustCompile(`(?i)PAYPAL`), "PayPal", "Finance", "Payment"},
		{regexp.MustCompile(`(?i)LINE\s*PAY`), "LINE Pay", "Finance", "Payment"},
		{regexp.MustCompile(`(?i)街口`), "JKOPAY", "Finance", "Payment"},
	}
}
