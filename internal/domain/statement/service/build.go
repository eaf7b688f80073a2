package service

import (
	"log/slog"

	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement/annotate"
	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement/classifier"
	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement/extractor"
	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement/pdfreader"
	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement/privacy"
	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement/schema"
	"github.com/FACorreiaa/statement-pipeline/pkg/config"
)

// Build assembles a Processor backed by the real PDF library from cfg. The schema
// repository is returned so callers can watch it.
func Build(cfg *config.Config, logger *slog.Logger) (*Processor, *schema.Repository, error) {
	return BuildWith(cfg, pdfreader.NewLibraryOpener(), logger)
}

// BuildWith is Build with a caller-supplied Opener.
func BuildWith(cfg *config.Config, opener pdfreader.Opener, logger *slog.Logger) (*Processor, *schema.Repository, error) {
	repo := schema.NewRepository(cfg.Schema.Dir, logger)

	p, err := NewProcessor(
		pdfreader.NewCascade(opener, cfg.PDF.DefaultPasswords, logger),
		pdfreader.NewTextExtractor(logger),
		classifier.New(logger),
		extractor.NewRegistry(extractor.Options{DefaultCurrency: cfg.PDF.DefaultCurrency}),
		privacy.Options{
			Categories:        cfg.Masking.Types,
			Aggressive:        cfg.Masking.Aggressive,
			DigitRunThreshold: cfg.Masking.DigitRunThreshold,
		},
		logger,
	)
	if err != nil {
		return nil, nil, err
	}

	annotator := annotate.FromConfig(annotate.Config{
		URL:           cfg.Annotator.URL,
		Model:         cfg.Annotator.Model,
		Timeout:       cfg.Annotator.Timeout,
		RatePerSecond: cfg.Annotator.RatePerSecond,
		Burst:         cfg.Annotator.Burst,
	}, logger)
	p.WithValidator(schema.NewValidator(repo, logger)).WithAnnotator(annotator)
	if se, ok := annotator.(annotate.SummaryExtractor); ok && cfg.Annotator.ExtractionFallback {
		p.WithExtractionFallback(se)
	}
	return p, repo, nil
}
