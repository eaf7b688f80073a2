package statement

import (
	"time"

	"github.com/google/uuid"
)

// Encryption reports how the document was opened. The password itself is never kept.
type Encryption struct {
	WasEncrypted bool   `json:"was_encrypted"`
	PasswordUsed bool   `json:"password_used"`
	PasswordHint string `json:"password_hint,omitempty"`
	Attempts     int    `json:"attempts"`
}

// Classification records how the document type was chosen.
type Classification struct {
	Type     DocumentType              `json:"type"`
	FromHint bool                      `json:"from_hint"`
	Scores   map[DocumentType]int      `json:"scores,omitempty"`
	Markers  map[DocumentType][]string `json:"markers,omitempty"`
}

// FieldError is one schema diagnostic; Path is a JSON pointer into the summary.
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationResult is the outcome of schema validation.
type ValidationResult struct {
	Valid  bool         `json:"valid"`
	Schema string       `json:"schema,omitempty"`
	Errors []FieldError `json:"errors"`
}

// ManifestEntry summarises the matches of one masking category. Examples are
// already-masked values, never originals.
type ManifestEntry struct {
	Category string   `json:"category"`
	Label    string   `json:"label"`
	Count    int      `json:"count"`
	Examples []string `json:"examples"`
}

// Masking is attached to a result when masking was requested.
type Masking struct {
	Text     string          `json:"text"`
	Summary  any             `json:"summary,omitempty"`
	Manifest []ManifestEntry `json:"manifest"`
}

// Annotation is the opaque response of the external analysis collaborator.
type Annotation struct {
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
	Content  string `json:"content"`
}

// Warning is a non-fatal condition reported alongside a result.
type Warning struct {
	Kind    ErrorKind `json:"kind,omitempty"`
	Message string    `json:"message"`
}

// SummaryFromAnnotator marks a summary recovered by the annotator after the
// rule-based one failed validation.
const SummaryFromAnnotator = "annotator"

// Result is the structured output of the pipeline.
type Result struct {
	ID             uuid.UUID         `json:"id"`
	DocumentType   DocumentType      `json:"document_type"`
	Classification Classification    `json:"classification"`
	Summary        Summary           `json:"summary"`
	SummarySource  string            `json:"summary_source,omitempty"`
	Transactions   []Transaction     `json:"transactions"`
	Metadata       map[string]any    `json:"metadata"`
	TotalPages     int               `json:"total_pages"`
	Encryption     Encryption        `json:"encryption"`
	Masking        *Masking          `json:"masking,omitempty"`
	Validation     *ValidationResult `json:"validation,omitempty"`
	Annotation     *Annotation       `json:"annotation,omitempty"`
	Warnings       []Warning         `json:"warnings,omitempty"`
	ProcessedAt    time.Time         `json:"processed_at"`
}
