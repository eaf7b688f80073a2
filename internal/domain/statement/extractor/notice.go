package extractor

import (
	"regexp"
	"strings"

	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement"
	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement/normalizer"
)

// Transaction notice roles.
const (
	RoleAmount          = "amount"
	RoleTransactionDate = "transaction_date"
)

var noticeAmountAnchors = NewAnchorSet(
	Anchor{RoleAmount, []string{"交易金額", "消費金額", "刷卡金額", "金額", "transaction amount", "amount"}},
)

var noticeDateAnchors = NewAnchorSet(
	Anchor{RoleTransactionDate, []string{"交易日期", "消費日期", "交易時間", "消費時間", "transaction date", "date"}},
)

// merchantLabel captures the rest of a line after a merchant label.
var merchantLabel = regexp.MustCompile(`(?i)(?:特約商店|商店名稱|商家名稱|消費地點|商家|商店|商戶|merchant(?:\s+name)?)\s*[:：]\s*(.+)`)

// noticeFieldLabels end a merchant value that shares its line with other fields.
var noticeFieldLabels = regexp.MustCompile(`(?i)\s*(交易金額|消費金額|金額|交易日期|消費日期|交易時間|授權碼|卡號|amount|date|authorization|card)\s*[:：]?`)

var authorizationPattern = regexp.MustCompile(`(?i)授權碼|authori[sz]ation\s*code|auth\.?\s*code|approval\s*code`)

// noticeTypes are checked in order; the first keyword found decides.
var noticeTypes = []struct {
	typ      string
	keywords []string
}{
	{statement.TxPurchase, []string{"消費", "purchase", "debit"}},
	{statement.TxRefund, []string{"退款", "refund", "credit"}},
	{statement.TxTransfer, []string{"轉帳", "transfer"}},
	{statement.TxWithdrawal, []string{"提款", "withdrawal", "atm"}},
}

// TransactionNotice extracts single-transaction notifications.
type TransactionNotice struct {
	opts      Options
	merchants *normalizer.MerchantSanitizer
}

func NewTransactionNotice(opts Options, merchants *normalizer.MerchantSanitizer) *TransactionNotice {
	if merchants == nil {
		merchants = normalizer.NewMerchantSanitizer()
	}
	return &TransactionNotice{opts: opts, merchants: merchants}
}

func (*TransactionNotice) Type() statement.DocumentType { return statement.TransactionNotice }

func (n *TransactionNotice) Extract(text *statement.ExtractedText) statement.Extraction {
	doc := prepare(text, n.opts.DefaultCurrency)
	summary := statement.TransactionNoticeSummary{Currency: doc.currency}

	summary.CardLast4 = cardLast4(doc.lines, doc.cardLast4)
	summary.TransactionType = noticeType(strings.Join(doc.lines, "\n"))
	summary.AuthorizationFound = authorizationPattern.MatchString(text.FullText)

	amounts := Resolve(doc.lines, noticeAmountAnchors, FindAmounts, withoutDates)
	summary.Amount = amountOf(amounts.Values, RoleAmount)
	if summary.Amount == nil {
		for _, line := range doc.lines {
			if cardSuffix.MatchString(line) || cardLabel.MatchString(line) {
				continue
			}
			if found := FindAmounts(line); len(found) > 0 {
				summary.Amount = found[0].Value.Ptr()
				break
			}
		}
	}

	dates := Resolve(doc.lines, noticeDateAnchors, FindDates, nil)
	summary.TransactionDate = dateOf(dates.Values, RoleTransactionDate)
	if summary.TransactionDate == nil {
		for _, line := range doc.lines {
			if found := FindDates(line); len(found) > 0 {
				summary.TransactionDate = statement.StrPtr(found[0].ISO)
				break
			}
		}
	}

	if raw := merchantName(doc.lines); raw != "" {
		info := n.merchants.Sanitize(raw)
		if info.NormalizedName != "" {
			summary.Merchant = statement.StrPtr(info.NormalizedName)
		}
		if info.Category != "" {
			summary.MerchantCategory = statement.StrPtr(info.Category)
		}
	}

	return statement.Extraction{Summary: summary, Transactions: []statement.Transaction{}}
}

func merchantName(lines []string) string {
	for _, line := range lines {
		m := merchantLabel.FindStringSubmatchIndex(line)
		if m == nil {
			continue
		}
		value := line[m[2]:m[3]]
		if loc := noticeFieldLabels.FindStringIndex(value); loc != nil && loc[0] > 0 {
			value = value[:loc[0]]
		}
		if v := strings.TrimSpace(value); v != "" {
			return v
		}
	}
	return ""
}

func noticeType(text string) string {
	for _, t := range noticeTypes {
		if containsAny(text, t.keywords...) {
			return t.typ
		}
	}
	return statement.TxOther
}
