package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement"
	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement/annotate"
	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement/classifier"
	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement/extractor"
	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement/pdfreader"
	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement/pdfreader/pdffake"
	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement/privacy"
	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement/schema"
	"github.com/FACorreiaa/statement-pipeline/pkg/config"
)

const bankText = `ACME Bank Statement of Account
Account Number: 0123-4567-8901
Statement Period 2024-10-01 ~ 2024-10-31
Opening Balance 50,000.00
2024-10-01 Salary 3,000.00 53,000.00
2024-10-05 ATM Withdrawal 2,000.00 51,000.00
2024-10-20 Rent payment to landlord 2,500.00 48,500.00
Closing Balance 48,500.00`

const cardText = `台北富邦銀行 信用卡帳單
卡號 1234567890121234
帳單結帳日 113/08/24 繳款截止日 113/09/09
本期應繳總額 7,483元 最低應繳金額 1,000元
113/08/10 113/08/12 STARBUCKS COFFEE TWD 150`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type recorder struct {
	mu        sync.Mutex
	documents map[string]int
	stages    map[string]int
	masked    map[string]int
	warnings  map[string]int
}

func newRecorder() *recorder {
	return &recorder{
		documents: map[string]int{},
		stages:    map[string]int{},
		masked:    map[string]int{},
		warnings:  map[string]int{},
	}
}

func (r *recorder) RecordDocument(documentType, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.documents[documentType+"/"+outcome]++
}

func (r *recorder) ObserveStage(stage string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages[stage]++
}

func (r *recorder) RecordMasked(category string, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.masked[category] += count
}

func (r *recorder) RecordWarning(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings[kind]++
}

func newProcessor(t *testing.T, opener pdfreader.Opener, fallbacks ...string) *Processor {
	t.Helper()
	logger := quietLogger()
	p, err := NewProcessor(
		pdfreader.NewCascade(opener, fallbacks, logger),
		pdfreader.NewTextExtractor(logger),
		classifier.New(logger),
		extractor.NewRegistry(extractor.Options{}),
		privacy.Options{},
		logger,
	)
	require.NoError(t, err)
	return p.WithValidator(schema.NewValidator(schema.NewRepository("", logger), logger))
}

func fakeOpener(pages ...string) *pdffake.Opener {
	return &pdffake.Opener{Doc: &pdffake.Document{Pages: pages}}
}

func TestProcess_BankStatement(t *testing.T) {
	opener := fakeOpener(bankText)
	rec := newRecorder()
	p := newProcessor(t, opener).WithMetrics(rec)

	res, err := p.Process(context.Background(), Request{Data: []byte("%PDF"), Validate: true})
	require.NoError(t, err)

	assert.Equal(t, statement.BankStatement, res.DocumentType)
	assert.False(t, res.Classification.FromHint)
	summary, ok := res.Summary.(statement.BankStatementSummary)
	require.True(t, ok)
	assert.Equal(t, "50000.00", summary.OpeningBalance.String())
	assert.Equal(t, "48500.00", summary.ClosingBalance.String())
	assert.Len(t, res.Transactions, 3)
	assert.Equal(t, 1, res.TotalPages)
	assert.NotEqual(t, uuid.Nil, res.ID)

	require.NotNil(t, res.Validation)
	assert.True(t, res.Validation.Valid, "%+v", res.Validation.Errors)
	assert.Empty(t, res.Warnings)
	assert.Nil(t, res.Masking)
	assert.Nil(t, res.Annotation)

	assert.Equal(t, 1, opener.Doc.Closed())
	assert.Equal(t, 1, rec.documents["bank_statement/ok"])
	assert.Equal(t, 1, rec.stages["validate"])
	assert.Zero(t, rec.stages["mask"])
}

func TestProcess_PasswordCascade(t *testing.T) {
	opener := fakeOpener(bankText)
	opener.Password = "secret"
	p := newProcessor(t, opener, "first", "secret", "never")

	res, err := p.Process(context.Background(), Request{Data: []byte("%PDF")})
	require.NoError(t, err)

	assert.Equal(t, []string{"", "first", "secret"}, opener.Attempts())
	assert.Equal(t, statement.Encryption{WasEncrypted: true, PasswordUsed: true, PasswordHint: "s***t", Attempts: 2}, res.Encryption)

	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
}

func TestProcess_Failures(t *testing.T) {
	t.Run("encrypted", func(t *testing.T) {
		opener := fakeOpener(bankText)
		opener.Password = "secret"
		rec := newRecorder()
		p := newProcessor(t, opener, "wrong").WithMetrics(rec)

		res, err := p.Process(context.Background(), Request{Data: []byte("%PDF"), Password: "also-wrong"})
		assert.Nil(t, res)
		assert.ErrorIs(t, err, statement.ErrEncrypted)
		assert.Equal(t, statement.KindEncrypted, statement.KindOf(err))
		assert.Equal(t, []string{"", "also-wrong", "wrong"}, opener.Attempts())
		assert.Equal(t, 1, rec.documents["none/encrypted"])
	})

	t.Run("corrupt", func(t *testing.T) {
		opener := fakeOpener(bankText)
		opener.OpenErr = errors.New("xref table missing")
		rec := newRecorder()
		p := newProcessor(t, opener).WithMetrics(rec)

		_, err := p.Process(context.Background(), Request{Data: []byte("junk")})
		assert.ErrorIs(t, err, statement.ErrCorrupt)
		assert.Equal(t, statement.KindCorrupt, statement.KindOf(err))
		assert.Zero(t, opener.Doc.Closed())
		assert.Equal(t, 1, rec.documents["none/corrupt"])
	})
}

func TestProcess_CreditCardMasking(t *testing.T) {
	rec := newRecorder()
	p := newProcessor(t, fakeOpener(cardText)).WithMetrics(rec)

	res, err := p.Process(context.Background(), Request{Data: []byte("%PDF"), Mask: true})
	require.NoError(t, err)
	assert.Equal(t, statement.CreditCard, res.DocumentType)

	summary := res.Summary.(statement.CreditCardSummary)
	require.NotNil(t, summary.CardLast4)
	assert.Equal(t, "1234", *summary.CardLast4)

	require.NotNil(t, res.Masking)
	assert.NotContains(t, res.Masking.Text, "1234567890121234")
	assert.Contains(t, res.Masking.Text, "1234")
	require.NotEmpty(t, res.Masking.Manifest)
	assert.Equal(t, privacy.CreditCard, res.Masking.Manifest[0].Category)
	assert.Equal(t, 1, rec.masked[privacy.CreditCard])

	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "1234567890121234")
}

func TestProcess_MaskedSummary(t *testing.T) {
	p := newProcessor(t, fakeOpener(bankText))
	res, err := p.Process(context.Background(), Request{Data: []byte("%PDF"), Mask: true, Aggressive: true})
	require.NoError(t, err)

	summary, ok := res.Masking.Summary.(map[string]any)
	require.True(t, ok, "%T", res.Masking.Summary)
	assert.Equal(t, "8901", summary["account_last4"])
	assert.Equal(t, 50000.0, summary["opening_balance"])
	assert.NotContains(t, res.Masking.Text, "50,000.00")
	assert.NotContains(t, res.Masking.Text, "0123-4567-8901")
}

func TestProcess_UnknownMaskCategoryWarns(t *testing.T) {
	p := newProcessor(t, fakeOpener(bankText))
	res, err := p.Process(context.Background(), Request{Data: []byte("%PDF"), Mask: true, MaskCategories: []string{"passport"}})
	require.NoError(t, err)

	require.NotNil(t, res.Masking)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0].Message, "passport")
}

func TestProcess_UnknownDocument(t *testing.T) {
	p := newProcessor(t, fakeOpener("Dear customer, thank you for your visit."))
	res, err := p.Process(context.Background(), Request{Data: []byte("%PDF"), Validate: true})
	require.NoError(t, err)

	assert.Equal(t, statement.Unknown, res.DocumentType)
	assert.Equal(t, statement.UnknownSummary{}, res.Summary)
	assert.NotNil(t, res.Transactions)
	assert.Empty(t, res.Transactions)
	assert.Nil(t, res.Validation, "unknown documents have no schema")
	assert.Empty(t, res.Warnings)
}

func TestProcess_ValidationFailureIsAWarning(t *testing.T) {
	rec := newRecorder()
	p := newProcessor(t, fakeOpener("nothing useful here")).WithMetrics(rec)

	res, err := p.Process(context.Background(), Request{
		Data:     []byte("%PDF"),
		TypeHint: statement.CreditCard,
		Validate: true,
	})
	require.NoError(t, err)

	assert.Equal(t, statement.CreditCard, res.DocumentType)
	assert.True(t, res.Classification.FromHint)
	require.NotNil(t, res.Validation)
	assert.False(t, res.Validation.Valid)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, statement.KindValidationFailed, res.Warnings[0].Kind)
	assert.Equal(t, 1, rec.warnings[string(statement.KindValidationFailed)])
}

func TestProcess_BlankDocument(t *testing.T) {
	opener := fakeOpener("", "")
	p := newProcessor(t, opener)
	res, err := p.Process(context.Background(), Request{Data: []byte("%PDF")})
	require.NoError(t, err)

	assert.Equal(t, statement.Unknown, res.DocumentType)
	assert.Equal(t, 2, res.TotalPages)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0].Message, "no text layer")
	assert.Equal(t, 1, opener.Doc.Closed())
}

func TestProcess_AnnotatorSeesMaskedTextOnly(t *testing.T) {
	var seen string
	a := annotate.Func(func(_ context.Context, text string, docType statement.DocumentType) (*statement.Annotation, error) {
		seen = text
		return &statement.Annotation{Provider: "test", Content: string(docType)}, nil
	})
	p := newProcessor(t, fakeOpener(bankText+"\nContact john.doe@example.com")).WithAnnotator(a)
	assert.True(t, p.AnnotationEnabled())

	res, err := p.Process(context.Background(), Request{Data: []byte("%PDF"), Annotate: true})
	require.NoError(t, err)

	assert.Equal(t, &statement.Annotation{Provider: "test", Content: "bank_statement"}, res.Annotation)
	assert.Nil(t, res.Masking)
	assert.NotContains(t, seen, "john.doe@example.com")
	assert.NotContains(t, seen, "0123-4567-8901")
	assert.Contains(t, seen, "j***@example.com")
}

func TestProcess_AnnotatorFailureIsAWarning(t *testing.T) {
	a := annotate.Func(func(context.Context, string, statement.DocumentType) (*statement.Annotation, error) {
		return nil, errors.New("model offline")
	})
	p := newProcessor(t, fakeOpener(bankText)).WithAnnotator(a)

	res, err := p.Process(context.Background(), Request{Data: []byte("%PDF"), Annotate: true})
	require.NoError(t, err)
	assert.Nil(t, res.Annotation)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0].Message, "model offline")

	// Without the flag the annotator is not called at all.
	res, err = p.Process(context.Background(), Request{Data: []byte("%PDF")})
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
}

func TestProcess_ExtractionFallback(t *testing.T) {
	const page = "ACME Bank Statement of Account\nContact john.doe@example.com"
	validAnswer := `{"account_last4": "4321", "opening_balance": 100, "closing_balance": 80, "transaction_count": 0}`

	tests := []struct {
		name       string
		page       string
		answer     string
		err        error
		wantCalled bool
		wantValid  bool
		wantSource string
		wantKinds  []statement.ErrorKind
	}{
		{
			name:       "valid answer replaces the summary",
			page:       page,
			answer:     validAnswer,
			wantCalled: true,
			wantValid:  true,
			wantSource: statement.SummaryFromAnnotator,
			wantKinds:  []statement.ErrorKind{""},
		},
		{
			name:       "invalid answer keeps the rule-based summary",
			page:       page,
			answer:     `{"opening_balance": 100}`,
			wantCalled: true,
			wantKinds:  []statement.ErrorKind{statement.KindValidationFailed},
		},
		{
			name:       "no json in the answer",
			page:       page,
			answer:     `not json`,
			wantCalled: true,
			wantKinds:  []statement.ErrorKind{"", statement.KindValidationFailed},
		},
		{
			name:       "annotator down",
			page:       page,
			err:        errors.New("model offline"),
			wantCalled: true,
			wantKinds:  []statement.ErrorKind{"", statement.KindValidationFailed},
		},
		{
			name:      "rule-based summary already valid",
			page:      bankText,
			answer:    validAnswer,
			wantValid: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var called bool
			var seen string
			fallback := annotate.SummaryFunc(func(_ context.Context, text string, docType statement.DocumentType) ([]byte, error) {
				called = true
				seen = text
				assert.Equal(t, statement.BankStatement, docType)
				return []byte(tt.answer), tt.err
			})
			p := newProcessor(t, fakeOpener(tt.page)).WithExtractionFallback(fallback)

			res, err := p.Process(context.Background(), Request{
				Data:     []byte("%PDF"),
				TypeHint: statement.BankStatement,
				Mask:     true,
				Validate: true,
			})
			require.NoError(t, err)

			assert.Equal(t, tt.wantCalled, called)
			assert.NotContains(t, seen, "john.doe@example.com")
			require.NotNil(t, res.Validation)
			assert.Equal(t, tt.wantValid, res.Validation.Valid)
			assert.Equal(t, tt.wantSource, res.SummarySource)

			kinds := make([]statement.ErrorKind, 0, len(res.Warnings))
			for _, w := range res.Warnings {
				kinds = append(kinds, w.Kind)
			}
			if len(tt.wantKinds) == 0 {
				assert.Empty(t, kinds)
			} else {
				assert.Equal(t, tt.wantKinds, kinds, "%+v", res.Warnings)
			}

			if tt.wantSource == statement.SummaryFromAnnotator {
				summary, ok := res.Summary.(statement.BankStatementSummary)
				require.True(t, ok)
				require.NotNil(t, summary.AccountLast4)
				assert.Equal(t, "4321", *summary.AccountLast4)
				masked, ok := res.Masking.Summary.(map[string]any)
				require.True(t, ok)
				assert.Equal(t, 100.0, masked["opening_balance"])
			}
		})
	}
}

func TestProcess_ExtractionFallbackNeedsValidation(t *testing.T) {
	fallback := annotate.SummaryFunc(func(context.Context, string, statement.DocumentType) ([]byte, error) {
		t.Fatal("fallback called without validation")
		return nil, nil
	})
	p := newProcessor(t, fakeOpener("nothing useful here")).WithExtractionFallback(fallback)

	res, err := p.Process(context.Background(), Request{Data: []byte("%PDF"), TypeHint: statement.BankStatement})
	require.NoError(t, err)
	assert.Nil(t, res.Validation)
	assert.Empty(t, res.SummarySource)
}

func TestMaskText(t *testing.T) {
	p := newProcessor(t, fakeOpener())

	res, err := p.MaskText("john@example.com 0912345678", []string{"email"}, false)
	require.NoError(t, err)
	assert.Equal(t, "j***@example.com 0912345678", res.Text)

	res, err = p.MaskText("john@example.com 0912345678", nil, false)
	require.NoError(t, err)
	assert.Equal(t, "j***@example.com 0912****78", res.Text)

	_, err = p.MaskText("x", []string{"passport"}, false)
	assert.ErrorIs(t, err, privacy.ErrUnknownCategory)
}

func TestDetectText(t *testing.T) {
	p := newProcessor(t, fakeOpener())
	const text = "john@example.com 0912345678"

	tests := []struct {
		name       string
		categories []string
		want       []string
	}{
		{"email only", []string{privacy.Email}, []string{privacy.Email}},
		{"configured categories", nil, []string{privacy.Email, privacy.MobilePhone}},
		{"nothing enabled matches", []string{privacy.NationalID}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches, err := p.DetectText(text, tt.categories, false)
			require.NoError(t, err)
			got := make([]string, 0, len(matches))
			for _, m := range matches {
				got = append(got, m.Category)
				assert.Equal(t, m.End-m.Start, m.OriginalLength)
			}
			assert.ElementsMatch(t, tt.want, got)
		})
	}

	_, err := p.DetectText(text, []string{"passport"}, false)
	assert.ErrorIs(t, err, privacy.ErrUnknownCategory)
}

func TestNewProcessor_RejectsBadMaskOptions(t *testing.T) {
	_, err := NewProcessor(nil, nil, nil, nil, privacy.Options{DigitRunThreshold: 1}, nil)
	assert.Error(t, err)
}

func TestBuild(t *testing.T) {
	cfg, err := config.FromEnv(func(string) (string, bool) { return "", false })
	require.NoError(t, err)

	p, repo, err := Build(cfg, quietLogger())
	require.NoError(t, err)
	assert.False(t, p.AnnotationEnabled())
	assert.ElementsMatch(t, statement.KnownTypes, repo.Available())

	cfg.Annotator.URL = "http://localhost:11434"
	p, _, err = Build(cfg, quietLogger())
	require.NoError(t, err)
	assert.True(t, p.AnnotationEnabled())

	assert.Nil(t, p.fallback, "the extraction fallback is opt-in")

	cfg.Annotator.ExtractionFallback = true
	p, _, err = Build(cfg, quietLogger())
	require.NoError(t, err)
	assert.NotNil(t, p.fallback)

	cfg.Masking.Types = []string{"passport"}
	_, _, err = Build(cfg, quietLogger())
	assert.ErrorIs(t, err, privacy.ErrUnknownCategory)
}
