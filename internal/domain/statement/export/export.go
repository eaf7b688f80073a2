// Package export writes extracted transactions as CSV or XLSX.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement"
	"github.com/FACorreiaa/statement-pipeline/pkg/money"
)

// Format is an output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts json, csv and xlsx, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV, FormatXLSX:
		return f, nil
	case "":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unsupported format %q", s)
}

// Row is the flat, spreadsheet-friendly form of a transaction. Amounts are plain
// decimal strings so no precision is lost.
type Row struct {
	Date        string `csv:"date"`
	PostDate    string `csv:"post_date"`
	Description string `csv:"description"`
	Amount      string `csv:"amount"`
	Balance     string `csv:"balance"`
	Currency    string `csv:"currency"`
	Type        string `csv:"type"`
	RawLine     string `csv:"raw_line"`
}

var header = []any{"Date", "Post date", "Description", "Amount", "Balance", "Currency", "Type", "Source line", "Display"}

// Rows flattens transactions.
func Rows(txs []statement.Transaction) []Row {
	rows := make([]Row, len(txs))
	for i, tx := range txs {
		rows[i] = Row{
			Date:        deref(tx.Date),
			PostDate:    deref(tx.PostDate),
			Description: tx.Description,
			Amount:      amountString(tx.Amount),
			Balance:     amountString(tx.Balance),
			Currency:    tx.Currency,
			Type:        tx.Type,
			RawLine:     tx.RawLine,
		}
	}
	return rows
}

// WriteCSV writes one header line and one line per transaction.
func WriteCSV(w io.Writer, txs []statement.Transaction) error {
	rows := Rows(txs)
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// ReadCSV reads rows written by WriteCSV.
func ReadCSV(r io.Reader) ([]Row, error) {
	var rows []Row
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rows, nil
}

const (
	transactionsSheet = "Transactions"
	summarySheet      = "Summary"
)

// WriteXLSX writes a workbook with a Transactions sheet and, when summary is not
// nil, a Summary sheet of field/value pairs.
func WriteXLSX(w io.Writer, summary statement.Summary, txs []statement.Transaction) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", transactionsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	if err := f.SetSheetRow(transactionsSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(header), 1)
	if err := f.SetCellStyle(transactionsSheet, "A1", last, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, tx := range txs {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []any{
			deref(tx.Date),
			deref(tx.PostDate),
			tx.Description,
			amountCell(tx.Amount),
			amountCell(tx.Balance),
			tx.Currency,
			tx.Type,
			tx.RawLine,
			displayAmount(tx),
		}
		if err := f.SetSheetRow(transactionsSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if summary != nil {
		fields, err := flatten(summary)
		if err != nil {
			return err
		}
		if _, err := f.NewSheet(summarySheet); err != nil {
			return fmt.Errorf("create summary sheet: %w", err)
		}
		_ = f.SetSheetRow(summarySheet, "A1", &[]any{"Field", "Value"})
		_ = f.SetCellStyle(summarySheet, "A1", "B1", bold)
		for i, kv := range fields {
			cell, _ := excelize.CoordinatesToCellName(1, i+2)
			if err := f.SetSheetRow(summarySheet, cell, &[]any{kv[0], kv[1]}); err != nil {
				return fmt.Errorf("write summary row: %w", err)
			}
		}
	}

	f.SetActiveSheet(0)
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

// flatten turns a summary into sorted dotted-key/value pairs.
func flatten(summary statement.Summary) ([][2]string, error) {
	data, err := json.Marshal(summary)
	if err != nil {
		return nil, fmt.Errorf("encode summary: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}

	var out [][2]string
	var walk func(prefix string, v any)
	walk = func(prefix string, v any) {
		if m, ok := v.(map[string]any); ok {
			for k, val := range m {
				key := k
				if prefix != "" {
					key = prefix + "." + k
				}
				walk(key, val)
			}
			return
		}
		out = append(out, [2]string{prefix, fmt.Sprint(v)})
	}
	walk("", doc)
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func amountString(a *money.Amount) string {
	if a == nil {
		return ""
	}
	return a.String()
}

// displayAmount renders the amount with its currency symbol, or "" when either
// is missing.
func displayAmount(tx statement.Transaction) string {
	if tx.Amount == nil || tx.Currency == "" {
		return ""
	}
	return money.Display(*tx.Amount, tx.Currency)
}

// amountCell stores amounts as numbers so spreadsheets can sum them.
func amountCell(a *money.Amount) any {
	if a == nil {
		return ""
	}
	return a.Decimal().InexactFloat64()
}
