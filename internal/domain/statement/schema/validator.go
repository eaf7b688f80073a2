package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement"
)

// Validator checks summaries against the repository's schemas.
type Validator struct {
	repo   *Repository
	logger *slog.Logger
}

func NewValidator(repo *Repository, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{repo: repo, logger: logger}
}

// Validate checks summary against the schema of t. It returns ErrSchemaNotFound
// when t has no schema. summary is only read.
func (v *Validator) Validate(t statement.DocumentType, summary any) (*statement.ValidationResult, error) {
	s, err := v.repo.Get(t)
	if err != nil {
		return nil, err
	}
	res, err := Check(s, summary)
	if err != nil {
		return nil, err
	}
	res.Schema = string(t)
	if !res.Valid {
		v.logger.Info("summary failed schema validation",
			slog.String("document_type", string(t)),
			slog.Int("errors", len(res.Errors)))
	}
	return res, nil
}

// Check validates any JSON-encodable value against s, collecting every error.
func Check(s *openapi3.Schema, value any) (*statement.ValidationResult, error) {
	doc, err := normalize(value)
	if err != nil {
		return nil, err
	}

	res := &statement.ValidationResult{Valid: true, Errors: []statement.FieldError{}}
	if err := s.VisitJSON(doc, openapi3.MultiErrors()); err != nil {
		res.Valid = false
		res.Errors = fieldErrors(err)
	}
	return res, nil
}

// normalize round-trips value through JSON so the validator sees plain maps,
// slices and float64 numbers, and so the caller's value is never touched.
func normalize(value any) (any, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode summary: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	return doc, nil
}

// fieldErrors flattens kin-openapi errors. A SchemaError already carries its full
// path, so it is taken as is before looking into wrapped causes.
func fieldErrors(err error) []statement.FieldError {
	switch e := err.(type) {
	case *openapi3.SchemaError:
		return []statement.FieldError{{Path: pointer(e.JSONPointer()), Message: e.Reason}}
	case openapi3.MultiError:
		var out []statement.FieldError
		for _, inner := range e {
			out = append(out, fieldErrors(inner)...)
		}
		return out
	}

	var se *openapi3.SchemaError
	if errors.As(err, &se) {
		return []statement.FieldError{{Path: pointer(se.JSONPointer()), Message: se.Reason}}
	}
	return []statement.FieldError{{Path: "/", Message: err.Error()}}
}

// pointer renders an RFC 6901 JSON pointer; the document root is "/".
func pointer(parts []string) string {
	if len(parts) == 0 {
		return "/"
	}
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = strings.ReplaceAll(strings.ReplaceAll(p, "~", "~0"), "/", "~1")
	}
	return "/" + strings.Join(escaped, "/")
}
