package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement"
	"github.com/FACorreiaa/statement-pipeline/pkg/money"
)

func sampleTransactions() []statement.Transaction {
	return []statement.Transaction{
		{
			Date:        statement.StrPtr("2024-10-01"),
			Description: "Salary",
			Amount:      money.MustAmount("3000").Ptr(),
			Balance:     money.MustAmount("53000").Ptr(),
			Currency:    "USD",
			Type:        statement.TxDeposit,
			RawLine:     "2024-10-01 Salary 3,000.00 53,000.00",
		},
		{
			Description: "Rent, October",
			Amount:      money.MustAmount("-2500.5").Ptr(),
			Type:        statement.TxWithdrawal,
			RawLine:     "Rent, October -2,500.50",
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatJSON, false},
		{"CSV", FormatCSV, false},
		{" xlsx ", FormatXLSX, false},
		{"pdf", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCSVRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleTransactions()))

	firstLine := strings.SplitN(buf.String(), "\n", 2)[0]
	assert.Equal(t, "date,post_date,description,amount,balance,currency,type,raw_line", firstLine)

	rows, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, Rows(sampleTransactions()), rows)
	require.Len(t, rows, 2)
	assert.Equal(t, "-2500.50", rows[1].Amount)
	assert.Equal(t, "", rows[1].Date)
	assert.Equal(t, "Rent, October", rows[1].Description)
}

func TestWriteXLSX(t *testing.T) {
	summary := statement.BankStatementSummary{
		StatementPeriod:  &statement.Period{Start: "2024-10-01", End: "2024-10-31"},
		OpeningBalance:   money.MustAmount("50000").Ptr(),
		TransactionCount: 2,
	}

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, summary, sampleTransactions()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{transactionsSheet, summarySheet}, f.GetSheetList())

	rows, err := f.GetRows(transactionsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Description", rows[0][2])
	assert.Equal(t, "Salary", rows[1][2])
	assert.Equal(t, "3000", rows[1][3])
	assert.Equal(t, "-2500.5", rows[2][3])
	assert.Equal(t, "Display", rows[0][8])
	assert.Equal(t, "$3,000.00", rows[1][8])

	fields, err := f.GetRows(summarySheet)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Field", "Value"},
		{"opening_balance", "50000.00"},
		{"statement_period.end", "2024-10-31"},
		{"statement_period.start", "2024-10-01"},
		{"transaction_count", "2"},
	}, fields)
}

func TestDisplayAmount(t *testing.T) {
	tests := []struct {
		name     string
		amount   *money.Amount
		currency string
		want     string
	}{
		{"known currency", money.MustAmount("1234.56").Ptr(), "USD", "$1,234.56"},
		{"unknown currency", money.MustAmount("12.3").Ptr(), "ABC", "12.30"},
		{"no currency", money.MustAmount("5").Ptr(), "", ""},
		{"no amount", nil, "USD", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := statement.Transaction{Amount: tt.amount, Currency: tt.currency}
			assert.Equal(t, tt.want, displayAmount(tx))
		})
	}
}

func TestWriteXLSX_WithoutSummary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, nil, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{transactionsSheet}, f.GetSheetList())
}
