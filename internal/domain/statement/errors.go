package statement

import (
	"errors"
	"fmt"
)

// ErrorKind is the caller-facing error taxonomy of the pipeline.
type ErrorKind string

const (
	KindCorrupt          ErrorKind = "PDF_CORRUPT"
	KindEncrypted        ErrorKind = "PDF_ENCRYPTED"
	KindValidationFailed ErrorKind = "VALIDATION_FAILED"
)

var (
	ErrCorrupt          = errors.New("document structure unreadable")
	ErrEncrypted        = errors.New("document is encrypted and no password succeeded")
	ErrValidationFailed = errors.New("schema validation failed")
)

// Error carries a taxonomy kind plus the operation that produced it.
// It never includes a password.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	errs := []error{e.kindSentinel()}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func (e *Error) kindSentinel() error {
	switch e.Kind {
	case KindCorrupt:
		return ErrCorrupt
	case KindEncrypted:
		return ErrEncrypted
	default:
		return ErrValidationFailed
	}
}

// NewError builds an *Error of the given kind.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
