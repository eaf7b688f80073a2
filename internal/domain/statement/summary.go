package statement

import (
	"encoding/json"
	"fmt"

	"github.com/FACorreiaa/statement-pipeline/pkg/money"
)

// Summary is the per-type structured view of a document. Every field of every
// implementation is optional; a field that could not be located stays nil.
type Summary interface {
	DocumentType() DocumentType
}

// Period is an inclusive ISO date range.
type Period struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// Transaction is a single line item. RawLine keeps the source line so rules can be
// re-run without the PDF.
type Transaction struct {
	Date        *string       `json:"date,omitempty"`
	PostDate    *string       `json:"post_date,omitempty"`
	Description string        `json:"description"`
	Amount      *money.Amount `json:"amount,omitempty"`
	Balance     *money.Amount `json:"balance,omitempty"`
	Currency    string        `json:"currency,omitempty"`
	Type        string        `json:"type,omitempty"`
	RawLine     string        `json:"raw_line"`
}

// Transaction types assigned by the extractors.
const (
	TxPurchase    = "purchase"
	TxPayment     = "payment"
	TxInstallment = "installment"
	TxFee         = "fee"
	TxRefund      = "refund"
	TxTransfer    = "transfer"
	TxDeposit     = "deposit"
	TxWithdrawal  = "withdrawal"
	TxOther       = "other"
)

// BankStatementSummary describes a deposit account statement.
type BankStatementSummary struct {
	AccountLast4     *string       `json:"account_last4,omitempty"`
	StatementPeriod  *Period       `json:"statement_period,omitempty"`
	Currency         string        `json:"currency,omitempty"`
	OpeningBalance   *money.Amount `json:"opening_balance,omitempty"`
	ClosingBalance   *money.Amount `json:"closing_balance,omitempty"`
	TotalDeposits    *money.Amount `json:"total_deposits,omitempty"`
	TotalWithdrawals *money.Amount `json:"total_withdrawals,omitempty"`
	TransactionCount int           `json:"transaction_count"`
}

func (BankStatementSummary) DocumentType() DocumentType { return BankStatement }

// CreditCardSummary describes a credit card bill. The card number is reduced to
// its last four digits at extraction time and never stored in full.
type CreditCardSummary struct {
	CardLast4        *string       `json:"card_last4,omitempty"`
	CardType         *string       `json:"card_type,omitempty"`
	BillingPeriod    *Period       `json:"billing_period,omitempty"`
	StatementDate    *string       `json:"statement_date,omitempty"`
	DueDate          *string       `json:"due_date,omitempty"`
	Currency         string        `json:"currency,omitempty"`
	MinimumPayment   *money.Amount `json:"minimum_payment,omitempty"`
	TotalAmountDue   *money.Amount `json:"total_amount_due,omitempty"`
	PreviousBalance  *money.Amount `json:"previous_balance,omitempty"`
	NewCharges       *money.Amount `json:"new_charges,omitempty"`
	CreditLimit      *money.Amount `json:"credit_limit,omitempty"`
	CashAdvanceLimit *money.Amount `json:"cash_advance_limit,omitempty"`
	RevolvingAPR     *money.Amount `json:"revolving_apr,omitempty"`
	InstallmentAPR   *money.Amount `json:"installment_apr,omitempty"`
	TotalPurchases   *money.Amount `json:"total_purchases,omitempty"`
	TotalPayments    *money.Amount `json:"total_payments,omitempty"`
	TotalFees        *money.Amount `json:"total_fees,omitempty"`
	TransactionCount int           `json:"transaction_count"`
}

func (CreditCardSummary) DocumentType() DocumentType { return CreditCard }

// MaskedCardNumber renders the stored last four digits as "...1234".
func (s CreditCardSummary) MaskedCardNumber() string {
	if s.CardLast4 == nil {
		return ""
	}
	return "..." + *s.CardLast4
}

// TransactionNoticeSummary describes a single-transaction notification.
type TransactionNoticeSummary struct {
	TransactionDate    *string       `json:"transaction_date,omitempty"`
	Merchant           *string       `json:"merchant,omitempty"`
	MerchantCategory   *string       `json:"merchant_category,omitempty"`
	TransactionType    string        `json:"transaction_type,omitempty"`
	Amount             *money.Amount `json:"amount,omitempty"`
	Currency           string        `json:"currency,omitempty"`
	CardLast4          *string       `json:"card_last4,omitempty"`
	AuthorizationFound bool          `json:"authorization_found,omitempty"`
}

func (TransactionNoticeSummary) DocumentType() DocumentType { return TransactionNotice }

// UnknownSummary is intentionally empty: an unclassified document yields no fields.
type UnknownSummary struct{}

func (UnknownSummary) DocumentType() DocumentType { return Unknown }

// Extraction is the output of a field extractor.
type Extraction struct {
	Summary      Summary       `json:"summary"`
	Transactions []Transaction `json:"transactions"`
}

// DecodeSummary reads a JSON object into the summary type of t. Keys the type does
// not know are ignored.
func DecodeSummary(t DocumentType, data []byte) (Summary, error) {
	switch t {
	case BankStatement:
		return decodeAs[BankStatementSummary](t, data)
	case CreditCard:
		return decodeAs[CreditCardSummary](t, data)
	case TransactionNotice:
		return decodeAs[TransactionNoticeSummary](t, data)
	}
	return nil, fmt.Errorf("no summary for document type %q", t)
}

func decodeAs[T Summary](t DocumentType, data []byte) (Summary, error) {
	var s T
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode %s summary: %w", t, err)
	}
	return s, nil
}

// StrPtr returns a pointer to s.
func StrPtr(s string) *string {
	return &s
}
