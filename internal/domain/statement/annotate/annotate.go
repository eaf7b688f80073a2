// Package annotate sends masked document text to an external language model, either
// for a free-form analysis that stays opaque to the pipeline or for the summary
// fields of a document the rule-based extractors could not read.
package annotate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement"
)

// Provider is reported on every annotation produced by Client.
const Provider = "ollama"

// Annotator produces an annotation for already masked text.
type Annotator interface {
	Annotate(ctx context.Context, maskedText string, docType statement.DocumentType) (*statement.Annotation, error)
}

// Func adapts a function to Annotator.
type Func func(ctx context.Context, maskedText string, docType statement.DocumentType) (*statement.Annotation, error)

func (f Func) Annotate(ctx context.Context, maskedText string, docType statement.DocumentType) (*statement.Annotation, error) {
	return f(ctx, maskedText, docType)
}

// SummaryExtractor asks a model for the summary fields of a document as a JSON object.
type SummaryExtractor interface {
	ExtractSummary(ctx context.Context, maskedText string, docType statement.DocumentType) ([]byte, error)
}

// SummaryFunc adapts a function to SummaryExtractor.
type SummaryFunc func(ctx context.Context, maskedText string, docType statement.DocumentType) ([]byte, error)

func (f SummaryFunc) ExtractSummary(ctx context.Context, maskedText string, docType statement.DocumentType) ([]byte, error) {
	return f(ctx, maskedText, docType)
}

// ErrNoJSON is returned when the model answer holds no JSON object.
var ErrNoJSON = errors.New("model answer holds no json object")

// Config configures Client. Zero values fall back to the defaults below.
type Config struct {
	URL     string
	Model   string
	Timeout time.Duration

	// RatePerSecond and Burst bound outgoing requests per process.
	RatePerSecond float64
	Burst         int

	// MaxChars truncates the prompt text, in runes.
	MaxChars int

	BreakerMinRequests  uint32
	BreakerFailureRatio float64
	BreakerOpenTimeout  time.Duration
}

func (c Config) normalize() Config {
	c.URL = strings.TrimRight(strings.TrimSpace(c.URL), "/")
	if c.Model == "" {
		c.Model = "llama3.2"
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.RatePerSecond <= 0 {
		c.RatePerSecond = 1
	}
	if c.Burst <= 0 {
		c.Burst = 2
	}
	if c.MaxChars <= 0 {
		c.MaxChars = 12000
	}
	if c.BreakerMinRequests == 0 {
		c.BreakerMinRequests = 5
	}
	if c.BreakerFailureRatio <= 0 {
		c.BreakerFailureRatio = 0.6
	}
	if c.BreakerOpenTimeout <= 0 {
		c.BreakerOpenTimeout = 30 * time.Second
	}
	return c
}

// Enabled reports whether an endpoint is configured.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.URL) != ""
}

// Client talks to an Ollama compatible /api/generate endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[string]
	logger     *slog.Logger
}

// FromConfig returns a Client as an Annotator, or nil when cfg has no URL.
func FromConfig(cfg Config, logger *slog.Logger) Annotator {
	if !cfg.Enabled() {
		return nil
	}
	return New(cfg, logger)
}

// New returns a Client for cfg.URL.
func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.normalize()

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		logger:     logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "annotator",
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.BreakerMinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.BreakerFailureRatio
		},
		// A caller giving up is not a fault of the endpoint.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit_breaker_state_change",
				slog.String("operation", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})
	return c
}

// Annotate waits for the rate limiter, then asks the model through the circuit breaker.
func (c *Client) Annotate(ctx context.Context, maskedText string, docType statement.DocumentType) (*statement.Annotation, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("annotate rate limit: %w", err)
	}

	content, err := c.breaker.Execute(func() (string, error) {
		return c.generate(ctx, buildPrompt(maskedText, docType, c.cfg.MaxChars), "")
	})
	if err != nil {
		return nil, fmt.Errorf("annotate: %w", err)
	}

	c.logger.Debug("annotation received",
		slog.String("document_type", string(docType)),
		slog.Int("chars", len(content)))
	return &statement.Annotation{Provider: Provider, Model: c.cfg.Model, Content: content}, nil
}

// ExtractSummary asks the model for the summary fields of docType and returns the
// JSON object found in its answer. It shares the rate limiter and breaker with Annotate.
func (c *Client) ExtractSummary(ctx context.Context, maskedText string, docType statement.DocumentType) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("extract summary rate limit: %w", err)
	}

	content, err := c.breaker.Execute(func() (string, error) {
		return c.generate(ctx, buildExtractionPrompt(maskedText, docType, c.cfg.MaxChars), "json")
	})
	if err != nil {
		return nil, fmt.Errorf("extract summary: %w", err)
	}
	obj, err := jsonObject(content)
	if err != nil {
		return nil, fmt.Errorf("extract summary: %w", err)
	}
	c.logger.Debug("summary received",
		slog.String("document_type", string(docType)),
		slog.Int("bytes", len(obj)))
	return obj, nil
}

// IsCircuitOpen reports whether err comes from an open or saturated breaker.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// generate posts one prompt. A non-empty format is passed through as Ollama's
// structured output mode.
func (c *Client) generate(ctx context.Context, prompt, format string) (string, error) {
	payload := map[string]any{
		"model":  c.cfg.Model,
		"prompt": prompt,
		"stream": false,
	}
	if format != "" {
		payload["format"] = format
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("generate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("generate status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	return strings.TrimSpace(out.Response), nil
}

func buildPrompt(text string, docType statement.DocumentType, maxChars int) string {
	runes := []rune(text)
	if len(runes) > maxChars {
		text = string(runes[:maxChars])
	}

	var b strings.Builder
	b.WriteString("You are reviewing a financial document. Personal data has been masked; do not try to recover it.\n")
	fmt.Fprintf(&b, "Document type: %s (%s)\n", docType, docType.Label())
	b.WriteString("Summarise the account activity, notable charges, fees and due dates in a few short bullet points.\n\n")
	b.WriteString("Document:\n")
	b.WriteString(text)
	return b.String()
}

// summaryKeys are the fields the extraction prompt asks for, per document type.
var summaryKeys = map[statement.DocumentType]string{
	statement.BankStatement: `account_last4 (string of 4 digits), statement_period {start, end} (YYYY-MM-DD),
currency (ISO code), opening_balance, closing_balance, total_deposits, total_withdrawals (numbers),
transaction_count (integer)`,
	statement.CreditCard: `card_last4 (string of 4 digits), card_type, billing_period {start, end}, statement_date,
due_date (YYYY-MM-DD), currency (ISO code), minimum_payment, total_amount_due, previous_balance,
new_charges, credit_limit, cash_advance_limit, revolving_apr, installment_apr, total_purchases,
total_payments, total_fees (numbers), transaction_count (integer)`,
	statement.TransactionNotice: `transaction_date (YYYY-MM-DD), merchant, merchant_category, transaction_type,
amount (number), currency (ISO code), card_last4 (string of 4 digits), authorization_found (boolean)`,
}

func buildExtractionPrompt(text string, docType statement.DocumentType, maxChars int) string {
	runes := []rune(text)
	if len(runes) > maxChars {
		text = string(runes[:maxChars])
	}

	var b strings.Builder
	b.WriteString("You are reading a financial document. Personal data has been masked; do not try to recover it.\n")
	fmt.Fprintf(&b, "Document type: %s (%s)\n", docType, docType.Label())
	b.WriteString("Answer with one JSON object and nothing else. Leave out any field you cannot find.\n")
	if keys, ok := summaryKeys[docType]; ok {
		b.WriteString("Fields: ")
		b.WriteString(keys)
		b.WriteString("\n")
	}
	b.WriteString("\nDocument:\n")
	b.WriteString(text)
	return b.String()
}

// jsonObject returns the outermost {...} of a model answer, which may come wrapped
// in prose or a code fence.
func jsonObject(answer string) ([]byte, error) {
	start := strings.IndexByte(answer, '{')
	end := strings.LastIndexByte(answer, '}')
	if start < 0 || end < start {
		return nil, ErrNoJSON
	}
	obj := []byte(answer[start : end+1])
	if !json.Valid(obj) {
		return nil, ErrNoJSON
	}
	return obj, nil
}
