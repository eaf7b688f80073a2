package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/FACorreiaa/statement-pipeline/pkg/money"
)

// File is the TOML overlay accepted by the CLI's --config flag. Only keys present
// in the file override the environment.
type File struct {
	PDF struct {
		Passwords       []string `toml:"passwords"`
		DefaultCurrency *string  `toml:"default_currency"`
	} `toml:"pdf"`
	Masking struct {
		Types             []string `toml:"types"`
		Aggressive        *bool    `toml:"aggressive"`
		DigitRunThreshold *int     `toml:"digit_run_threshold"`
	} `toml:"masking"`
	Schema struct {
		Dir *string `toml:"dir"`
	} `toml:"schema"`
	Annotator struct {
		URL     *string `toml:"url"`
		Model   *string `toml:"model"`
		Timeout *string `toml:"timeout"`

		ExtractionFallback *bool `toml:"extraction_fallback"`
	} `toml:"annotator"`
	Log struct {
		Level *string `toml:"level"`
	} `toml:"log"`
}

// ApplyFile overlays the TOML file at path onto cfg.
func ApplyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	var f File
	if err := toml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return f.apply(cfg)
}

func (f *File) apply(cfg *Config) error {
	if f.PDF.Passwords != nil {
		cfg.PDF.DefaultPasswords = nonBlank(f.PDF.Passwords)
	}
	if f.PDF.DefaultCurrency != nil {
		c := strings.ToUpper(*f.PDF.DefaultCurrency)
		if c != "" && !money.IsKnownCurrency(c) {
			return fmt.Errorf("pdf.default_currency %q is not an ISO-4217 code", c)
		}
		cfg.PDF.DefaultCurrency = c
	}
	if f.Masking.Types != nil {
		cfg.Masking.Types = nonBlank(f.Masking.Types)
	}
	if f.Masking.Aggressive != nil {
		cfg.Masking.Aggressive = *f.Masking.Aggressive
	}
	if f.Masking.DigitRunThreshold != nil {
		if *f.Masking.DigitRunThreshold < 3 {
			return fmt.Errorf("masking.digit_run_threshold must be at least 3, got %d", *f.Masking.DigitRunThreshold)
		}
		cfg.Masking.DigitRunThreshold = *f.Masking.DigitRunThreshold
	}
	if f.Schema.Dir != nil {
		cfg.Schema.Dir = *f.Schema.Dir
	}
	if f.Annotator.URL != nil {
		cfg.Annotator.URL = *f.Annotator.URL
	}
	if f.Annotator.Model != nil {
		cfg.Annotator.Model = *f.Annotator.Model
	}
	if f.Annotator.Timeout != nil {
		d, err := time.ParseDuration(*f.Annotator.Timeout)
		if err != nil {
			return fmt.Errorf("annotator.timeout: %w", err)
		}
		cfg.Annotator.Timeout = d
	}
	if f.Annotator.ExtractionFallback != nil {
		cfg.Annotator.ExtractionFallback = *f.Annotator.ExtractionFallback
	}
	if f.Log.Level != nil {
		cfg.Observability.LogLevel = *f.Log.Level
	}
	return nil
}

func nonBlank(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
