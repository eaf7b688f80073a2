package pdfreader

import (
	"errors"
	"log/slog"
	"unicode/utf8"

	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement"
)

// Decryption is the successful outcome of the password cascade.
type Decryption struct {
	Document     Document
	WasEncrypted bool
	PasswordUsed bool
	PasswordHint string // first and last character only, never the password
	Attempts     int    // passwords tried, the initial no-password probe excluded
}

// Encryption converts the outcome into the result's reporting shape.
func (d *Decryption) Encryption() statement.Encryption {
	return statement.Encryption{
		WasEncrypted: d.WasEncrypted,
		PasswordUsed: d.PasswordUsed,
		PasswordHint: d.PasswordHint,
		Attempts:     d.Attempts,
	}
}

// Cascade resolves a possibly encrypted document by trying an explicit password
// first and then a fixed, ordered list of fallback candidates.
type Cascade struct {
	opener    Opener
	fallbacks []string
	logger    *slog.Logger
}

// NewCascade creates a cascade. fallbacks is copied; the cascade never mutates it.
func NewCascade(opener Opener, fallbacks []string, logger *slog.Logger) *Cascade {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cascade{
		opener:    opener,
		fallbacks: append([]string(nil), fallbacks...),
		logger:    logger,
	}
}

// Candidates returns the number of configured fallback passwords.
func (c *Cascade) Candidates() int {
	return len(c.fallbacks)
}

// Resolve opens data. A document that opens without a password is returned without
// trying any candidate. Otherwise explicit (when non-empty) is tried first, then each
// fallback in order, stopping at the first success. Failure yields a *statement.Error
// of kind PDF_ENCRYPTED (no candidate worked) or PDF_CORRUPT (unreadable structure).
func (c *Cascade) Resolve(data []byte, explicit string) (*Decryption, error) {
	doc, err := c.opener.Open(data, "")
	switch {
	case err == nil:
		return &Decryption{Document: doc, WasEncrypted: doc.Encrypted()}, nil
	case errors.Is(err, ErrUnsupportedEncryption):
		c.logger.Warn("pdf uses unsupported encryption", slog.Any("error", err))
		return nil, statement.NewError(statement.KindEncrypted, "decrypt", ErrUnsupportedEncryption)
	case !errors.Is(err, ErrPasswordRequired):
		return nil, statement.NewError(statement.KindCorrupt, "open", err)
	}

	candidates := make([]string, 0, len(c.fallbacks)+1)
	if explicit != "" {
		candidates = append(candidates, explicit)
	}
	candidates = append(candidates, c.fallbacks...)

	attempts := 0
	for i, candidate := range candidates {
		if candidate == "" {
			continue
		}
		attempts++
		doc, err := c.opener.Open(data, candidate)
		if err == nil {
			hint := Hint(candidate)
			c.logger.Info("pdf decrypted",
				slog.Int("attempts", attempts),
				slog.Bool("explicit", explicit != "" && i == 0),
				slog.String("password_hint", hint),
			)
			return &Decryption{
				Document:     doc,
				WasEncrypted: true,
				PasswordUsed: true,
				PasswordHint: hint,
				Attempts:     attempts,
			}, nil
		}
		if !errors.Is(err, ErrPasswordRequired) {
			return nil, statement.NewError(statement.KindCorrupt, "decrypt", err)
		}
	}

	c.logger.Warn("pdf password cascade exhausted", slog.Int("attempts", attempts))
	return nil, statement.NewError(statement.KindEncrypted, "decrypt", nil)
}

// Hint redacts a password to its first and last character, e.g. "s***t".
// Passwords of two characters or fewer collapse to "***".
func Hint(password string) string {
	if utf8.RuneCountInString(password) <= 2 {
		return "***"
	}
	first, _ := utf8.DecodeRuneInString(password)
	last, _ := utf8.DecodeLastRuneInString(password)
	return string(first) + "***" + string(last)
}
