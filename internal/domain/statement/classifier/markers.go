package classifier

import (
	"regexp"

	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement"
)

// Marker is one piece of evidence for a document type. Exactly one of Phrase or
// Pattern is set; phrases are matched case-insensitively.
type Marker struct {
	Type    statement.DocumentType
	Name    string
	Phrase  string
	Pattern *regexp.Regexp
}

func phrase(t statement.DocumentType, p string) Marker {
	return Marker{Type: t, Name: p, Phrase: p}
}

func pattern(t statement.DocumentType, name, expr string) Marker {
	return Marker{Type: t, Name: name, Pattern: regexp.MustCompile(expr)}
}

// DefaultMarkers is the built-in marker catalog for English and Traditional Chinese
// statements.
var DefaultMarkers = []Marker{
	phrase(statement.BankStatement, "opening balance"),
	phrase(statement.BankStatement, "closing balance"),
	phrase(statement.BankStatement, "beginning balance"),
	phrase(statement.BankStatement, "ending balance"),
	phrase(statement.BankStatement, "total deposits"),
	phrase(statement.BankStatement, "total withdrawals"),
	phrase(statement.BankStatement, "bank statement"),
	phrase(statement.BankStatement, "statement of account"),
	phrase(statement.BankStatement, "期初餘額"),
	phrase(statement.BankStatement, "期末餘額"),
	phrase(statement.BankStatement, "存款"),
	phrase(statement.BankStatement, "提款"),
	phrase(statement.BankStatement, "對帳單"),
	phrase(statement.BankStatement, "存摺"),
	pattern(statement.BankStatement, "opening+closing balance",
		`(?is)(opening|beginning|期初).{0,200}(closing|ending|期末)`),

	phrase(statement.CreditCard, "credit card"),
	phrase(statement.CreditCard, "minimum payment"),
	phrase(statement.CreditCard, "minimum amount due"),
	phrase(statement.CreditCard, "total amount due"),
	phrase(statement.CreditCard, "payment due date"),
	phrase(statement.CreditCard, "credit limit"),
	phrase(statement.CreditCard, "信用卡"),
	phrase(statement.CreditCard, "最低應繳金額"),
	phrase(statement.CreditCard, "本期應繳總額"),
	phrase(statement.CreditCard, "繳款截止日"),
	phrase(statement.CreditCard, "循環信用利率"),
	phrase(statement.CreditCard, "信用額度"),
	phrase(statement.CreditCard, "帳單結帳日"),
	pattern(statement.CreditCard, "card number",
		`\b\d{4}[- ]?[\d*Xx]{4}[- ]?[\d*Xx]{4}[- ]?\d{4}\b`),
	pattern(statement.CreditCard, "billing cycle+minimum payment",
		`(?is)(billing (cycle|period)|statement period|帳單週期|帳單年月|帳單期間).*(minimum (payment|amount due)|最低應繳)`),

	phrase(statement.TransactionNotice, "transaction notice"),
	phrase(statement.TransactionNotice, "transaction alert"),
	phrase(statement.TransactionNotice, "authorization code"),
	phrase(statement.TransactionNotice, "transaction amount"),
	phrase(statement.TransactionNotice, "交易通知"),
	phrase(statement.TransactionNotice, "消費通知"),
	phrase(statement.TransactionNotice, "刷卡通知"),
	phrase(statement.TransactionNotice, "授權碼"),
	phrase(statement.TransactionNotice, "消費地點"),
	phrase(statement.TransactionNotice, "交易金額"),
	pattern(statement.TransactionNotice, "merchant+amount",
		`(?is)(merchant|商家|商店|消費地點)\s*[:：].{0,200}(amount|金額)`),
}
