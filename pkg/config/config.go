package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/FACorreiaa/statement-pipeline/pkg/money"
)

// Config holds all application configuration. It is loaded once at start-up and
// never changed afterwards; pipeline stages receive the parts they need.
type Config struct {
	Server        ServerConfig
	PDF           PDFConfig
	Masking       MaskingConfig
	Schema        SchemaConfig
	Annotator     AnnotatorConfig
	Notify        NotifyConfig
	Observability ObservabilityConfig
}

type ServerConfig struct {
	Host               string
	Port               int
	RateLimitPerSecond int
	RateLimitBurst     int
	MaxUploadBytes     int64
	AllowedOrigins     []string
	ShutdownTimeout    time.Duration
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type PDFConfig struct {
	// DefaultPasswords is the fallback cascade, in trial order.
	DefaultPasswords []string
	DefaultCurrency  string
}

type MaskingConfig struct {
	Types             []string
	Aggressive        bool
	DigitRunThreshold int
}

type SchemaConfig struct {
	Dir   string
	Watch bool
}

type AnnotatorConfig struct {
	URL           string
	Model         string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int

	// ExtractionFallback asks the annotator for the summary fields when the
	// rule-based extraction fails validation.
	ExtractionFallback bool
}

// NotifyConfig points at a chat or automation webhook told about every document
// received through the Gmail webhook. An empty URL disables it.
type NotifyConfig struct {
	URL     string
	Timeout time.Duration
}

type ObservabilityConfig struct {
	ServiceName    string
	LogLevel       string
	MetricsEnabled bool
}

// Load reads .env files when present, then the environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from a lookup function such as os.LookupEnv.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	e := env{lookup: lookup}
	cfg := &Config{
		Server: ServerConfig{
			Host:               e.get("SERVER_HOST", "0.0.0.0"),
			Port:               e.getInt("SERVER_PORT", 8080),
			RateLimitPerSecond: e.getInt("SERVER_RATE_LIMIT_PER_SECOND", 20),
			RateLimitBurst:     e.getInt("SERVER_RATE_LIMIT_BURST", 40),
			MaxUploadBytes:     int64(e.getInt("MAX_UPLOAD_BYTES", 20<<20)),
			AllowedOrigins:     splitList(e.get("SERVER_ALLOWED_ORIGINS", "")),
			ShutdownTimeout:    e.getDuration("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		PDF: PDFConfig{
			DefaultPasswords: passwords(e),
			DefaultCurrency:  strings.ToUpper(e.get("PDF_DEFAULT_CURRENCY", "")),
		},
		Masking: MaskingConfig{
			Types:             splitList(e.get("MASK_TYPES", "")),
			Aggressive:        e.getBool("MASK_AGGRESSIVE", false),
			DigitRunThreshold: e.getInt("MASK_DIGIT_RUN_THRESHOLD", 6),
		},
		Schema: SchemaConfig{
			Dir:   e.get("SCHEMA_DIR", ""),
			Watch: e.getBool("SCHEMA_WATCH", true),
		},
		Annotator: AnnotatorConfig{
			URL:           e.get("ANNOTATOR_URL", ""),
			Model:         e.get("ANNOTATOR_MODEL", "llama3.2"),
			Timeout:       e.getDuration("ANNOTATOR_TIMEOUT", 60*time.Second),
			RatePerSecond: e.getFloat("ANNOTATOR_RATE_PER_SECOND", 1),
			Burst:         e.getInt("ANNOTATOR_BURST", 2),

			ExtractionFallback: e.getBool("ANNOTATOR_EXTRACTION_FALLBACK", false),
		},
		Notify: NotifyConfig{
			URL:     e.get("NOTIFY_URL", ""),
			Timeout: e.getDuration("NOTIFY_TIMEOUT", 10*time.Second),
		},
		Observability: ObservabilityConfig{
			ServiceName:    e.get("SERVICE_NAME", "statement-pipeline"),
			LogLevel:       e.get("LOG_LEVEL", "info"),
			MetricsEnabled: e.getBool("METRICS_ENABLED", true),
		},
	}

	if cfg.Masking.DigitRunThreshold < 3 {
		return nil, fmt.Errorf("MASK_DIGIT_RUN_THRESHOLD must be at least 3, got %d", cfg.Masking.DigitRunThreshold)
	}
	if cfg.Server.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	if c := cfg.PDF.DefaultCurrency; c != "" && !money.IsKnownCurrency(c) {
		return nil, fmt.Errorf("PDF_DEFAULT_CURRENCY %q is not an ISO-4217 code", c)
	}
	return cfg, nil
}

// passwords merges PDF_DEFAULT_PASSWORDS (comma separated) with PDF_PASSWORD_1..n,
// stopping at the first missing number. The comma list comes first, blanks are
// dropped and duplicates are kept in order.
func passwords(e env) []string {
	out := splitList(e.get("PDF_DEFAULT_PASSWORDS", ""))
	for i := 1; ; i++ {
		v, ok := e.lookup("PDF_PASSWORD_" + strconv.Itoa(i))
		if !ok {
			break
		}
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

type env struct {
	lookup func(string) (string, bool)
}

func (e env) get(key, defaultValue string) string {
	if value, ok := e.lookup(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func (e env) getInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(e.get(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func (e env) getFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(e.get(key, ""), 64); err == nil {
		return value
	}
	return defaultValue
}

func (e env) getBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(e.get(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func (e env) getDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(e.get(key, "")); err == nil {
		return value
	}
	return defaultValue
}
