package message

import (
	"errors"
	"fmt"
)

// Parse error kinds. Every error returned by Parse wraps exactly one.
var (
	// ErrMalformed means the payload is not a JSON object.
	ErrMalformed = errors.New("message: malformed payload")

	// ErrMissingSource means the "source" tag is absent, empty, or not a string.
	ErrMissingSource = errors.New("message: missing source")

	// ErrSchemaMismatch means the data does not fit the variant named by source.
	ErrSchemaMismatch = errors.New("message: schema mismatch")
)

// ParseError describes why a frame was rejected.
type ParseError struct {
	Kind   error  // one of ErrMalformed, ErrMissingSource, ErrSchemaMismatch
	Source string // empty unless Kind is ErrSchemaMismatch
	Reason string
}

func (e *ParseError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("%v: %s: %s", e.Kind, e.Source, e.Reason)
	}
	if e.Reason != "" {
		return fmt.Sprintf("%v: %s", e.Kind, e.Reason)
	}
	return e.Kind.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Kind
}

func schemaError(source, format string, args ...any) *ParseError {
	return &ParseError{Kind: ErrSchemaMismatch, Source: source, Reason: fmt.Sprintf(format, args...)}
}
