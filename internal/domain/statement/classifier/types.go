package classifier

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement"
)

// ErrUnknownType is returned by ParseType for input that names no document type.
var ErrUnknownType = errors.New("unknown document type")

type alias struct {
	name string
	typ  statement.DocumentType
}

var aliases = []alias{
	{"bank_statement", statement.BankStatement},
	{"bank statement", statement.BankStatement},
	{"statement of account", statement.BankStatement},
	{"account statement", statement.BankStatement},
	{"bank", statement.BankStatement},
	{"銀行對帳單", statement.BankStatement},
	{"對帳單", statement.BankStatement},
	{"credit_card", statement.CreditCard},
	{"credit card", statement.CreditCard},
	{"credit card bill", statement.CreditCard},
	{"card statement", statement.CreditCard},
	{"信用卡帳單", statement.CreditCard},
	{"信用卡", statement.CreditCard},
	{"transaction_notice", statement.TransactionNotice},
	{"transaction notice", statement.TransactionNotice},
	{"transaction alert", statement.TransactionNotice},
	{"notice", statement.TransactionNotice},
	{"消費通知", statement.TransactionNotice},
	{"交易通知", statement.TransactionNotice},
	{"unknown", statement.Unknown},
}

// ParseType maps a loose, caller-supplied type name to a DocumentType. Empty input
// and "auto" mean no hint and return "". Exact aliases win; otherwise the closest
// fuzzy match over the alias table is used.
func ParseType(s string) (statement.DocumentType, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "" || key == "auto" {
		return "", nil
	}
	key = strings.NewReplacer("-", " ", "_", " ").Replace(key)
	key = strings.Join(strings.Fields(key), " ")

	targets := make([]string, len(aliases))
	for i, a := range aliases {
		targets[i] = strings.ReplaceAll(a.name, "_", " ")
		if targets[i] == key {
			return a.typ, nil
		}
	}

	ranks := fuzzy.RankFindNormalizedFold(key, targets)
	if len(ranks) == 0 {
		return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
	}
	sort.Stable(ranks)
	return aliases[ranks[0].OriginalIndex].typ, nil
}
