package main

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement/handler"
	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement/schema"
	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement/service"
	"github.com/FACorreiaa/statement-pipeline/pkg/config"
	"github.com/FACorreiaa/statement-pipeline/pkg/notify"
	"github.com/FACorreiaa/statement-pipeline/pkg/observability"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *observability.Metrics

	// Services
	Schemas   *schema.Repository
	Processor *service.Processor

	// Handlers
	StatementHandler *handler.StatementHandler
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewMetrics("statement"),
	}

	if err := deps.initServices(); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}
	deps.initHandlers()

	logger.Info("all dependencies initialized successfully",
		slog.Int("fallback_passwords", len(cfg.PDF.DefaultPasswords)),
		slog.Bool("annotation_enabled", deps.Processor.AnnotationEnabled()),
		slog.String("schema_dir", cfg.Schema.Dir),
		slog.Bool("notify_enabled", cfg.Notify.URL != ""),
	)
	return deps, nil
}

func (d *Dependencies) initServices() error {
	processor, repo, err := service.Build(d.Config, d.Logger)
	if err != nil {
		return err
	}
	d.Processor = processor.WithMetrics(d.Metrics)
	d.Schemas = repo
	return nil
}

func (d *Dependencies) initHandlers() {
	d.StatementHandler = handler.NewStatementHandler(d.Processor, d.Config.Server.MaxUploadBytes, d.Logger)
	if d.Config.Notify.URL != "" {
		d.StatementHandler.WithNotifier(notify.NewService(d.Config.Notify.URL, d.Config.Notify.Timeout, d.Logger), d.Config.Notify.Timeout)
	}
}

// Router builds the public HTTP handler with its middleware chain.
func (d *Dependencies) Router() http.Handler {
	mux := http.NewServeMux()
	d.StatementHandler.Register(mux)
	if d.Config.Observability.MetricsEnabled {
		mux.Handle("GET /metrics", d.Metrics.Handler())
	}

	return handler.Chain(mux,
		handler.RequestID,
		handler.Logging(d.Logger),
		d.Metrics.Middleware,
		handler.CORS(d.Config.Server.AllowedOrigins),
		handler.RateLimit(float64(d.Config.Server.RateLimitPerSecond), d.Config.Server.RateLimitBurst),
	)
}
