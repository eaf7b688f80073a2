// Package service runs the statement pipeline end to end: decrypt, extract text,
// classify, extract fields, then optionally mask, validate and annotate.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement"
	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement/annotate"
	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement/classifier"
	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement/extractor"
	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement/pdfreader"
	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement/privacy"
	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement/schema"
)

const tracerName = "github.com/FACorreiaa/statement-pipeline/internal/domain/statement/service"

// Outcomes recorded per processed document.
const (
	OutcomeOK        = "ok"
	OutcomeCorrupt   = "corrupt"
	OutcomeEncrypted = "encrypted"
)

// Recorder receives pipeline metrics. observability.Metrics implements it.
type Recorder interface {
	RecordDocument(documentType, outcome string)
	ObserveStage(stage string, d time.Duration)
	RecordMasked(category string, count int)
	RecordWarning(kind string)
}

type nopRecorder struct{}

func (nopRecorder) RecordDocument(string, string) {}
func (nopRecorder) ObserveStage(string, time.Duration) {}
func (nopRecorder) RecordMasked(string, int) {}
func (nopRecorder) RecordWarning(string) {}

// Request is one document plus the caller's processing choices.
type Request struct {
	Data     []byte
	Password string
	TypeHint statement.DocumentType

	Mask           bool
	MaskCategories []string // empty keeps the processor's configured categories
	Aggressive     bool

	Validate bool
	Annotate bool
}

// Processor wires the pipeline stages. Every collaborator is read-only after
// construction, so one Processor serves concurrent requests.
type Processor struct {
	cascade    *pdfreader.Cascade
	text       *pdfreader.TextExtractor
	classifier *classifier.Classifier
	extractors *extractor.Registry
	maskOpts   privacy.Options
	masker     *privacy.Masker

	validator *schema.Validator
	annotator annotate.Annotator
	fallback  annotate.SummaryExtractor
	metrics   Recorder
	tracer    trace.Tracer
	logger    *slog.Logger
	now       func() time.Time
}

// NewProcessor creates a Processor. maskOpts are the defaults used whenever a
// request asks for masking without naming categories.
func NewProcessor(
	cascade *pdfreader.Cascade,
	text *pdfreader.TextExtractor,
	cls *classifier.Classifier,
	extractors *extractor.Registry,
	maskOpts privacy.Options,
	logger *slog.Logger,
) (*Processor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	masker, err := privacy.New(maskOpts)
	if err != nil {
		return nil, fmt.Errorf("default masker: %w", err)
	}
	return &Processor{
		cascade:    cascade,
		text:       text,
		classifier: cls,
		extractors: extractors,
		maskOpts:   maskOpts,
		masker:     masker,
		metrics:    nopRecorder{},
		tracer:     otel.Tracer(tracerName),
		logger:     logger,
		now:        time.Now,
	}, nil
}

// WithValidator enables schema validation for requests that ask for it.
func (p *Processor) WithValidator(v *schema.Validator) *Processor {
	p.validator = v
	return p
}

// WithAnnotator enables annotation for requests that ask for it. A nil annotator
// leaves annotation disabled.
func (p *Processor) WithAnnotator(a annotate.Annotator) *Processor {
	p.annotator = a
	return p
}

// WithExtractionFallback asks e for the summary whenever the rule-based one fails
// validation. The candidate replaces it only when it validates. A nil extractor
// leaves the fallback off.
func (p *Processor) WithExtractionFallback(e annotate.SummaryExtractor) *Processor {
	p.fallback = e
	return p
}

// WithMetrics sets the metrics recorder.
func (p *Processor) WithMetrics(r Recorder) *Processor {
	if r != nil {
		p.metrics = r
	}
	return p
}

// AnnotationEnabled reports whether an annotator is configured.
func (p *Processor) AnnotationEnabled() bool {
	return p.annotator != nil
}

// Process runs the pipeline. Only decryption and structural failures return an
// error; they come back as *statement.Error. Everything else degrades into nulls,
// empty collections and warnings on the result.
func (p *Processor) Process(ctx context.Context, req Request) (*statement.Result, error) {
	ctx, span := p.tracer.Start(ctx, "statement.Process")
	defer span.End()

	start := time.Now()
	dec, err := p.cascade.Resolve(req.Data, req.Password)
	p.metrics.ObserveStage("decrypt", time.Since(start))
	if err != nil {
		outcome := OutcomeCorrupt
		if errors.Is(err, statement.ErrEncrypted) {
			outcome = OutcomeEncrypted
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, string(statement.KindOf(err)))
		p.metrics.RecordDocument("", outcome)
		p.logger.Warn("document rejected", slog.String("kind", string(statement.KindOf(err))))
		return nil, err
	}
	defer func() {
		if err := dec.Document.Close(); err != nil {
			p.logger.Warn("close document", slog.Any("error", err))
		}
	}()
	span.AddEvent("decrypted", trace.WithAttributes(
		attribute.Bool("was_encrypted", dec.WasEncrypted),
		attribute.Int("attempts", dec.Attempts),
	))

	start = time.Now()
	text := p.text.Extract(dec.Document)
	p.metrics.ObserveStage("text", time.Since(start))
	span.AddEvent("text_extracted", trace.WithAttributes(attribute.Int("pages", text.PageCount)))

	start = time.Now()
	cls := p.classifier.Classify(text.FullText, req.TypeHint)
	extraction := p.extractors.Extract(cls.Type, text)
	p.metrics.ObserveStage("extract", time.Since(start))
	span.AddEvent("fields_extracted", trace.WithAttributes(
		attribute.String("document_type", string(cls.Type)),
		attribute.Bool("from_hint", cls.FromHint),
		attribute.Int("transactions", len(extraction.Transactions)),
	))

	res := &statement.Result{
		ID:             uuid.New(),
		DocumentType:   cls.Type,
		Classification: cls,
		Summary:        extraction.Summary,
		Transactions:   extraction.Transactions,
		Metadata:       text.Metadata,
		TotalPages:     text.PageCount,
		Encryption:     dec.Encryption(),
		ProcessedAt:    p.now().UTC(),
	}
	if text.IsBlank() {
		p.warn(res, "", "no text layer found; image-only pages are not supported")
	}

	var masked *privacy.Result
	if req.Mask {
		start = time.Now()
		masked = p.mask(res, text.FullText, req)
		p.metrics.ObserveStage("mask", time.Since(start))
		span.AddEvent("masked", trace.WithAttributes(attribute.Int("matches", len(masked.Matches))))
	}

	if req.Validate {
		start = time.Now()
		p.validate(ctx, res, text.FullText, req)
		p.metrics.ObserveStage("validate", time.Since(start))
	}

	if req.Annotate && p.annotator != nil {
		start = time.Now()
		p.annotate(ctx, res, text.FullText, masked)
		p.metrics.ObserveStage("annotate", time.Since(start))
	}

	p.metrics.RecordDocument(string(res.DocumentType), OutcomeOK)
	span.SetAttributes(
		attribute.String("document_type", string(res.DocumentType)),
		attribute.Int("warnings", len(res.Warnings)),
	)
	p.logger.Info("document processed",
		slog.String("id", res.ID.String()),
		slog.String("document_type", string(res.DocumentType)),
		slog.Int("pages", res.TotalPages),
		slog.Int("transactions", len(res.Transactions)),
		slog.Int("warnings", len(res.Warnings)),
	)
	return res, nil
}

// MaskText masks free text. Unlike Process it reports unknown categories as
// privacy.ErrUnknownCategory so callers can reject the request.
func (p *Processor) MaskText(text string, categories []string, aggressive bool) (privacy.Result, error) {
	m, err := p.maskerFor(categories, aggressive)
	if err != nil {
		return privacy.Result{}, err
	}
	res := m.Mask(text)
	p.recordManifest(res.Manifest)
	return res, nil
}

// DetectText reports the sensitive spans MaskText would redact, without masking.
func (p *Processor) DetectText(text string, categories []string, aggressive bool) ([]privacy.Match, error) {
	m, err := p.maskerFor(categories, aggressive)
	if err != nil {
		return nil, err
	}
	return m.Detect(text), nil
}

func (p *Processor) maskerFor(categories []string, aggressive bool) (*privacy.Masker, error) {
	if len(categories) == 0 && aggressive == p.maskOpts.Aggressive {
		return p.masker, nil
	}
	opts := p.maskOpts
	opts.Aggressive = aggressive
	if len(categories) > 0 {
		opts.Categories = categories
	}
	return privacy.New(opts)
}

func (p *Processor) mask(res *statement.Result, fullText string, req Request) *privacy.Result {
	m, err := p.maskerFor(req.MaskCategories, req.Aggressive || p.maskOpts.Aggressive)
	if err != nil {
		p.warn(res, "", fmt.Sprintf("masking categories ignored: %v", err))
		m = p.masker
	}

	masked := m.Mask(fullText)
	summary, err := generic(res.Summary)
	if err != nil {
		p.logger.Warn("summary not maskable", slog.Any("error", err))
		summary = nil
	}
	res.Masking = &statement.Masking{
		Text:     masked.Text,
		Summary:  m.MaskValue(summary),
		Manifest: masked.Manifest,
	}
	p.recordManifest(masked.Manifest)
	return &masked
}

func (p *Processor) validate(ctx context.Context, res *statement.Result, fullText string, req Request) {
	if p.validator == nil {
		return
	}
	vr, err := p.validator.Validate(res.DocumentType, res.Summary)
	switch {
	case errors.Is(err, schema.ErrSchemaNotFound):
		return
	case err != nil:
		p.logger.Warn("validation skipped", slog.Any("error", err))
		p.warn(res, "", fmt.Sprintf("validation skipped: %v", err))
		return
	}
	if !vr.Valid && p.fallback != nil {
		if recovered := p.recoverSummary(ctx, res, fullText, req); recovered != nil {
			vr = recovered
		}
	}
	res.Validation = vr
	if !vr.Valid {
		p.warn(res, statement.KindValidationFailed,
			fmt.Sprintf("summary does not match schema %s (%d errors)", vr.Schema, len(vr.Errors)))
	}
}

// recoverSummary asks the fallback extractor for the summary of the masked text and
// keeps it when it validates. It returns nil when the rule-based summary stays.
func (p *Processor) recoverSummary(ctx context.Context, res *statement.Result, fullText string, req Request) *statement.ValidationResult {
	start := time.Now()
	defer func() { p.metrics.ObserveStage("extraction_fallback", time.Since(start)) }()

	m, err := p.maskerFor(req.MaskCategories, req.Aggressive || p.maskOpts.Aggressive)
	if err != nil {
		m = p.masker
	}
	data, err := p.fallback.ExtractSummary(ctx, m.Mask(fullText).Text, res.DocumentType)
	if err != nil {
		p.logger.Warn("extraction fallback failed", slog.Any("error", err))
		p.warn(res, "", fmt.Sprintf("extraction fallback unavailable: %v", err))
		return nil
	}
	summary, err := statement.DecodeSummary(res.DocumentType, data)
	if err != nil {
		p.warn(res, "", fmt.Sprintf("extraction fallback answer unusable: %v", err))
		return nil
	}
	vr, err := p.validator.Validate(res.DocumentType, summary)
	if err != nil || !vr.Valid {
		p.logger.Info("extraction fallback summary rejected",
			slog.String("document_type", string(res.DocumentType)))
		return nil
	}

	res.Summary = summary
	res.SummarySource = statement.SummaryFromAnnotator
	if res.Masking != nil {
		if plain, err := generic(summary); err == nil {
			res.Masking.Summary = m.MaskValue(plain)
		}
	}
	p.warn(res, "", "rule-based summary failed validation; using the summary from the annotator")
	return vr
}

// annotate sends masked text only. When the request did not mask, the text is
// masked here with the default categories.
func (p *Processor) annotate(ctx context.Context, res *statement.Result, fullText string, masked *privacy.Result) {
	var input string
	if masked != nil {
		input = masked.Text
	} else {
		input = p.masker.Mask(fullText).Text
	}

	ann, err := p.annotator.Annotate(ctx, input, res.DocumentType)
	if err != nil {
		p.logger.Warn("annotation failed", slog.Any("error", err))
		p.warn(res, "", fmt.Sprintf("annotation unavailable: %v", err))
		return
	}
	res.Annotation = ann
}

func (p *Processor) warn(res *statement.Result, kind statement.ErrorKind, msg string) {
	res.Warnings = append(res.Warnings, statement.Warning{Kind: kind, Message: msg})
	p.metrics.RecordWarning(string(kind))
}

func (p *Processor) recordManifest(manifest []statement.ManifestEntry) {
	for _, e := range manifest {
		p.metrics.RecordMasked(e.Category, e.Count)
	}
}

// generic converts a summary into plain maps so it can be walked by the masker.
func generic(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
