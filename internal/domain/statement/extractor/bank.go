package extractor

import (
	"regexp"

	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement"
)

// Bank statement roles.
const (
	RoleOpeningBalance   = "opening_balance"
	RoleClosingBalance   = "closing_balance"
	RoleTotalDeposits    = "total_deposits"
	RoleTotalWithdrawals = "total_withdrawals"
	RoleStatementPeriod  = "statement_period"
)

var bankAmountAnchors = NewAnchorSet(
	Anchor{RoleOpeningBalance, []string{"opening balance", "beginning balance", "balance brought forward", "期初餘額", "上期餘額", "前期餘額"}},
	Anchor{RoleClosingBalance, []string{"closing balance", "ending balance", "balance carried forward", "期末餘額", "本期餘額", "結餘"}},
	Anchor{RoleTotalDeposits, []string{"total deposits", "total credits", "存入總額", "存入合計", "存款合計"}},
	Anchor{RoleTotalWithdrawals, []string{"total withdrawals", "total debits", "提出總額", "支出合計", "提款合計"}},
)

var bankPeriodAnchors = NewAnchorSet(
	Anchor{RoleStatementPeriod, []string{"statement period", "period", "對帳期間", "帳單期間", "交易期間", "查詢期間", "期間"}},
)

// A bare "account" needs a separator so that "Statement of Account 2024-10-01" is not read as a number.
var accountNumberPattern = regexp.MustCompile(
	`(?i)(?:帳號\s*[:：#]?|戶號\s*[:：#]?|account\s*(?:number|no\.?)\s*[:：#]?|account\s*[:：#])\s*([\d*Xx][\d\-*Xx ]{5,}\d)`)

var (
	withdrawalKeywords = []string{"提款", "轉出", "扣款", "支出", "withdrawal", "atm", "debit", "payment to", "transfer out"}
	depositKeywords    = []string{"存入", "轉入", "薪資", "利息", "deposit", "salary", "interest", "credit", "transfer in"}
)

// BankStatement extracts deposit account statements.
type BankStatement struct {
	opts Options
}

func NewBankStatement(opts Options) *BankStatement {
	return &BankStatement{opts: opts}
}

func (*BankStatement) Type() statement.DocumentType { return statement.BankStatement }

func (b *BankStatement) Extract(text *statement.ExtractedText) statement.Extraction {
	doc := prepare(text, b.opts.DefaultCurrency)
	summary := statement.BankStatementSummary{Currency: doc.currency}

	summary.AccountLast4 = accountLast4(doc.raw)

	amounts := Resolve(doc.lines, bankAmountAnchors, FindAmounts, withoutDates)
	summary.OpeningBalance = amountOf(amounts.Values, RoleOpeningBalance)
	summary.ClosingBalance = amountOf(amounts.Values, RoleClosingBalance)
	summary.TotalDeposits = amountOf(amounts.Values, RoleTotalDeposits)
	summary.TotalWithdrawals = amountOf(amounts.Values, RoleTotalWithdrawals)

	skip := amounts.Lines
	summary.StatementPeriod, skip = statementPeriod(doc.lines, skip)

	var txs []statement.Transaction
	for _, c := range transactionLines(doc.lines, skip) {
		txs = append(txs, bankTransaction(c, doc.currency))
	}
	summary.TransactionCount = len(txs)

	return statement.Extraction{Summary: summary, Transactions: txs}
}

// bankTransaction reads "date description amount [balance]". With two or more
// amounts the last one is the running balance.
func bankTransaction(c candidateLine, currency string) statement.Transaction {
	amount := c.amounts[0]
	spans := append(dateSpans(c.dates), amount.Span)

	tx := statement.Transaction{
		Date:     statement.StrPtr(c.dates[0].ISO),
		Currency: currencyOf(c.line, currency),
		RawLine:  c.line,
	}
	if len(c.amounts) > 1 {
		balance := c.amounts[len(c.amounts)-1]
		tx.Balance = balance.Value.Ptr()
		spans = append(spans, balance.Span)
	}
	tx.Description = describe(c.line, spans...)

	value := amount.Value
	switch {
	case value.IsNegative() || containsAny(tx.Description, withdrawalKeywords...):
		tx.Type = statement.TxWithdrawal
		if !value.IsNegative() {
			value = value.Neg()
		}
	case containsAny(tx.Description, depositKeywords...):
		tx.Type = statement.TxDeposit
	case containsAny(tx.Description, "轉帳", "transfer"):
		tx.Type = statement.TxTransfer
	default:
		tx.Type = statement.TxOther
	}
	tx.Amount = value.Ptr()
	return tx
}

func accountLast4(lines []string) *string {
	for _, line := range lines {
		m := accountNumberPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		digits := make([]rune, 0, len(m[1]))
		for _, r := range m[1] {
			if isDigit(r) {
				digits = append(digits, r)
			}
		}
		if len(digits) >= 4 {
			last := string(digits[len(digits)-4:])
			return &last
		}
	}
	return nil
}

// statementPeriod prefers a range on a labelled line and falls back to the first
// range anywhere in the document. The labelled line is excluded from transactions.
func statementPeriod(lines []string, skip map[int]bool) (*statement.Period, map[int]bool) {
	for i, line := range lines {
		if !bankPeriodAnchors.Contains(line) {
			continue
		}
		if p := FindRange(line); p != nil {
			skip[i] = true
			return p, skip
		}
	}
	for i, line := range lines {
		if p := FindRange(line); p != nil {
			skip[i] = true
			return p, skip
		}
	}
	return nil, skip
}
