package extractor

import (
	"regexp"
	"strconv"

	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement"
	"github.com/FACorreiaa/statement-pipeline/pkg/money"
)

// Credit card roles.
const (
	RoleMinimumPayment   = "minimum_payment"
	RoleTotalAmountDue   = "total_amount_due"
	RolePreviousBalance  = "previous_balance"
	RoleNewCharges       = "new_charges"
	RoleCreditLimit      = "credit_limit"
	RoleCashAdvanceLimit = "cash_advance_limit"
	RoleRevolvingAPR     = "revolving_apr"
	RoleInstallmentAPR   = "installment_apr"
	RoleStatementDate    = "statement_date"
	RoleDueDate          = "due_date"
	RoleBillingPeriod    = "billing_period"
)

var cardAmountAnchors = NewAnchorSet(
	Anchor{RoleMinimumPayment, []string{"最低應繳金額", "最低應繳", "minimum payment due", "minimum payment", "minimum amount due"}},
	Anchor{RoleTotalAmountDue, []string{"本期應繳總額", "本期應繳金額", "應繳總額", "應繳金額", "total amount due", "new balance", "statement balance"}},
	Anchor{RolePreviousBalance, []string{"前期應繳總額", "上期應繳總額", "上期帳單金額", "previous balance"}},
	Anchor{RoleNewCharges, []string{"本期新增消費", "本期新增款項", "本期新增", "new charges", "new purchases"}},
	Anchor{RoleCreditLimit, []string{"信用額度", "credit limit"}},
	Anchor{RoleCashAdvanceLimit, []string{"國內預借現金額度", "預借現金額度", "cash advance limit"}},
)

var cardRateAnchors = NewAnchorSet(
	Anchor{RoleRevolvingAPR, []string{"循環信用年利率", "循環信用利率", "revolving apr", "purchase apr", "revolving interest rate"}},
	Anchor{RoleInstallmentAPR, []string{"帳單分期年利率", "帳單分期利率", "installment apr"}},
)

var cardDateAnchors = NewAnchorSet(
	Anchor{RoleStatementDate, []string{"帳單結帳日", "結帳日", "statement date", "closing date"}},
	Anchor{RoleDueDate, []string{"繳款截止日", "繳款期限", "到期日", "payment due date", "due date"}},
)

var billingPeriodAnchors = NewAnchorSet(
	Anchor{RoleBillingPeriod, []string{"帳單週期", "帳單期間", "billing period", "billing cycle", "statement period"}},
)

// billingMonth matches "帳單年月 113/08" (ROC year) and "帳單年月 2024/08".
var billingMonth = regexp.MustCompile(`帳單年月[^\d]{0,6}(\d{2,4})\s*[/年]\s*(\d{1,2})`)

// installmentTerm matches "(14/24期)", the current and total installment count.
var installmentTerm = regexp.MustCompile(`[(（]\s*\d+\s*/\s*\d+\s*期\s*[)）]`)

var (
	paymentKeywords     = []string{"繳款", "扣繳", "payment", "thank you"}
	installmentKeywords = []string{"分期", "installment"}
	feeKeywords         = []string{"服務費", "手續費", "年費", "循環息", "利息", "annual fee", "late fee", "fee", "interest charge"}
	refundKeywords      = []string{"退款", "退貨", "refund", "reversal"}
)

// CreditCard extracts credit card bills. Card numbers are reduced to their last four
// digits before anything else reads the text.
type CreditCard struct {
	opts Options
}

func NewCreditCard(opts Options) *CreditCard {
	return &CreditCard{opts: opts}
}

func (*CreditCard) Type() statement.DocumentType { return statement.CreditCard }

func (c *CreditCard) Extract(text *statement.ExtractedText) statement.Extraction {
	doc := prepare(text, c.opts.DefaultCurrency)
	summary := statement.CreditCardSummary{Currency: doc.currency}

	summary.CardLast4 = cardLast4(doc.lines, doc.cardLast4)
	summary.CardType = cardType(doc.lines)

	amounts := Resolve(doc.lines, cardAmountAnchors, FindAmounts, withoutDates)
	summary.MinimumPayment = amountOf(amounts.Values, RoleMinimumPayment)
	summary.TotalAmountDue = amountOf(amounts.Values, RoleTotalAmountDue)
	summary.PreviousBalance = amountOf(amounts.Values, RolePreviousBalance)
	summary.NewCharges = amountOf(amounts.Values, RoleNewCharges)
	summary.CreditLimit = amountOf(amounts.Values, RoleCreditLimit)
	summary.CashAdvanceLimit = amountOf(amounts.Values, RoleCashAdvanceLimit)

	rates := Resolve(doc.lines, cardRateAnchors, FindPercents, nil)
	summary.RevolvingAPR = amountOf(rates.Values, RoleRevolvingAPR)
	summary.InstallmentAPR = amountOf(rates.Values, RoleInstallmentAPR)

	dates := Resolve(doc.lines, cardDateAnchors, FindDates, nil)
	summary.StatementDate = dateOf(dates.Values, RoleStatementDate)
	summary.DueDate = dateOf(dates.Values, RoleDueDate)

	summary.BillingPeriod = billingPeriod(doc.lines)

	skip := make(map[int]bool)
	for _, res := range []map[int]bool{amounts.Lines, rates.Lines, dates.Lines} {
		for i := range res {
			skip[i] = true
		}
	}
	for i, line := range doc.lines {
		if billingPeriodAnchors.Contains(line) {
			skip[i] = true
		}
	}

	var txs []statement.Transaction
	for _, cl := range transactionLines(doc.lines, skip) {
		txs = append(txs, cardTransaction(cl, doc.currency))
	}
	summary.TransactionCount = len(txs)
	if len(txs) > 0 {
		summary.TotalPurchases, summary.TotalPayments, summary.TotalFees = cardTotals(txs)
	}

	return statement.Extraction{Summary: summary, Transactions: txs}
}

// cardTransaction reads "date [post date] description amount". The amount is the
// last amount on the line; payments and refunds are negative.
func cardTransaction(c candidateLine, currency string) statement.Transaction {
	amount := c.amounts[len(c.amounts)-1]
	tx := statement.Transaction{
		Date:     statement.StrPtr(c.dates[0].ISO),
		Currency: currencyOf(c.line, currency),
		RawLine:  c.line,
	}
	if len(c.dates) > 1 {
		tx.PostDate = statement.StrPtr(c.dates[1].ISO)
	}
	tx.Description = describe(c.line, append(dateSpans(c.dates), amount.Span)...)

	value := amount.Value
	switch {
	case containsAny(c.line, paymentKeywords...):
		tx.Type = statement.TxPayment
	case containsAny(c.line, installmentKeywords...) || installmentTerm.MatchString(c.line):
		tx.Type = statement.TxInstallment
	case containsAny(c.line, refundKeywords...):
		tx.Type = statement.TxRefund
	case containsAny(c.line, feeKeywords...):
		tx.Type = statement.TxFee
	case value.IsNegative():
		tx.Type = statement.TxRefund
	default:
		tx.Type = statement.TxPurchase
	}
	if (tx.Type == statement.TxPayment || tx.Type == statement.TxRefund) && !value.IsNegative() {
		value = value.Neg()
	}
	tx.Amount = value.Ptr()
	return tx
}

// cardTotals sums purchases (installments included), payments as a positive
// figure, and fees.
func cardTotals(txs []statement.Transaction) (*money.Amount, *money.Amount, *money.Amount) {
	var purchases, payments, fees money.Amount
	for _, tx := range txs {
		if tx.Amount == nil {
			continue
		}
		switch tx.Type {
		case statement.TxPurchase, statement.TxInstallment:
			purchases = purchases.Add(*tx.Amount)
		case statement.TxPayment:
			payments = payments.Add(tx.Amount.Abs())
		case statement.TxFee:
			fees = fees.Add(*tx.Amount)
		}
	}
	return purchases.Ptr(), payments.Ptr(), fees.Ptr()
}

func billingPeriod(lines []string) *statement.Period {
	for _, line := range lines {
		if billingPeriodAnchors.Contains(line) {
			if p := FindRange(line); p != nil {
				return p
			}
		}
	}
	for _, line := range lines {
		m := billingMonth.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		if y < 1000 {
			y += rocOffset
		}
		if p := monthPeriod(y, mo); p != nil {
			return p
		}
	}
	return nil
}

func amountOf(values map[string]AmountMatch, role string) *money.Amount {
	if m, ok := values[role]; ok {
		return m.Value.Ptr()
	}
	return nil
}

func dateOf(values map[string]DateMatch, role string) *string {
	if m, ok := values[role]; ok {
		return statement.StrPtr(m.ISO)
	}
	return nil
}
